package track

import (
	"fmt"

	"github.com/banshee-data/trajectory.report/internal/lap"
	"github.com/banshee-data/trajectory.report/internal/sparse"
)

// Connection is one row of an interpreted assignment. From or To is -1 for
// a birth or death respectively; phantom rows are omitted entirely.
type Connection struct {
	From int
	To   int
}

// F2FDebug captures the intermediate artefacts of one frame-pair linking
// step: the augmented cost matrix, the interpreted connections, and the
// per-connection costs with phantom entries filtered out.
type F2FDebug struct {
	CurFrame  int
	NextFrame int
	CurLocs   []int
	NextLocs  []int
	Cost      *sparse.Matrix
	// Connections hold detection indices; ConnCosts the selected per-row
	// costs above the phantom threshold.
	Connections []Connection
	ConnCosts   []float64
}

// GapCloseDebug captures the gap-closing cost matrix and its interpreted
// assignment. Connections hold track indices.
type GapCloseDebug struct {
	Cost        *sparse.Matrix
	Connections []Connection
	ConnCosts   []float64
}

// DebugF2F builds and solves the frame-to-frame cost matrix for curFrame
// without mutating tracking state. Valid from any state with detections
// loaded.
func (t *Tracker) DebugF2F(curFrame int) (*F2FDebug, error) {
	if t.state == StateEmpty {
		return nil, fmt.Errorf("debugF2F: no detections loaded: %w", ErrLogical)
	}
	if curFrame < t.firstFrame || curFrame >= t.lastFrame {
		return nil, fmt.Errorf("debugF2F: frame %d outside [%d,%d): %w",
			curFrame, t.firstFrame, t.lastFrame, ErrLogical)
	}
	nextFrame := curFrame + 1
	for len(t.frameLocs[nextFrame-t.firstFrame]) == 0 {
		nextFrame++
	}
	curLocs := t.frameLocs[curFrame-t.firstFrame]
	nextLocs := t.frameLocs[nextFrame-t.firstFrame]
	nCur, nNext := len(curLocs), len(nextLocs)

	cost, err := t.f2fCost(curFrame, nextFrame)
	if err != nil {
		return nil, err
	}
	sol, err := lap.Solve(cost)
	if err != nil {
		return nil, fmt.Errorf("debugF2F: solve frames %d->%d: %v: %w", curFrame, nextFrame, err, ErrLogical)
	}

	conns := make([]Connection, 0, nCur+nNext)
	for n := 0; n < nCur+nNext; n++ {
		var conn Connection
		if n >= nCur {
			if sol.X[n] >= nNext {
				continue // phantom
			}
			conn.From = -1 // birth
		} else {
			conn.From = curLocs[n]
		}
		if sol.X[n] >= nNext {
			conn.To = -1 // death
		} else {
			conn.To = nextLocs[sol.X[n]]
		}
		conns = append(conns, conn)
	}

	return &F2FDebug{
		CurFrame:    curFrame,
		NextFrame:   nextFrame,
		CurLocs:     append([]int(nil), curLocs...),
		NextLocs:    append([]int(nil), nextLocs...),
		Cost:        cost,
		Connections: conns,
		ConnCosts:   filterPhantomCosts(lap.ComputeCost(cost, sol.X)),
	}, nil
}

// DebugCloseGaps builds and solves the gap-closing cost matrix without
// mutating tracking state. Requires frame-to-frame linking to have run.
func (t *Tracker) DebugCloseGaps() (*GapCloseDebug, error) {
	if t.state != StateF2FLinked {
		return nil, fmt.Errorf("debugCloseGaps: state is %s, want %s: %w", t.state, StateF2FLinked, ErrLogical)
	}
	cost, err := t.gapCloseCost()
	if err != nil {
		return nil, err
	}
	sol, err := lap.Solve(cost)
	if err != nil {
		return nil, fmt.Errorf("debugCloseGaps: solve: %v: %w", err, ErrLogical)
	}

	nTracks := len(t.tracks)
	conns := make([]Connection, 0, nTracks)
	for n := 0; n < 2*nTracks; n++ {
		var conn Connection
		if n >= nTracks {
			if sol.X[n] >= nTracks {
				continue // phantom
			}
			conn.From = -1 // birth
		} else {
			conn.From = n
		}
		if sol.X[n] >= nTracks {
			conn.To = -1 // death
		} else {
			conn.To = sol.X[n]
		}
		conns = append(conns, conn)
	}

	return &GapCloseDebug{
		Cost:        cost,
		Connections: conns,
		ConnCosts:   filterPhantomCosts(lap.ComputeCost(cost, sol.X)),
	}, nil
}

// filterPhantomCosts drops entries at or below the phantom threshold.
func filterPhantomCosts(costs []float64) []float64 {
	out := make([]float64, 0, len(costs))
	for _, c := range costs {
		if c > costEpsilon {
			out = append(out, c)
		}
	}
	return out
}
