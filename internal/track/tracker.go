// Package track reconstructs trajectories from per-frame point detections
// with the two-pass linear-assignment approach: a frame-to-frame linking
// pass followed by a gap-closing pass over track fragments, each solved as
// a sparse LAP on an augmented cost matrix of link, birth, death and
// phantom entries.
package track

import (
	"fmt"
	"math"
	"strings"

	"github.com/banshee-data/trajectory.report/internal/lap"
)

// State is the tracking pipeline state. StateEmpty → StateUntracked
// (Initialize) → StateF2FLinked (LinkF2F) → StateGapsClosed (CloseGaps).
// Apart from Initialize, which returns to StateUntracked from any state,
// transitions only move forward.
type State int

const (
	StateEmpty      State = iota // No detections loaded
	StateUntracked               // Detections loaded, no links
	StateF2FLinked               // Frame-to-frame links done
	StateGapsClosed              // Terminal: final track list only
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateUntracked:
		return "untracked"
	case StateF2FLinked:
		return "f2f_linked"
	case StateGapsClosed:
		return "gaps_closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// unassigned marks a detection not yet claimed by any track.
const unassigned = -1

// log2Pi is the gaussian normalisation constant per dimension.
var log2Pi = math.Log(2 * math.Pi)

// costEpsilon is the structural "phantom" cost. Entries at or below it are
// padding that keeps the augmented assignment feasible, not real costs, so
// debug output filters them. Derived from the machine epsilon of float64.
var costEpsilon = math.Nextafter(1, 2) - 1

// Tracker is the offline multi-target tracking engine. It is not safe for
// concurrent use; a single instance runs one dataset through the pipeline.
type Tracker struct {
	params Params

	// Log-transformed rates, precomputed at construction.
	logKon    float64
	logKoff   float64
	log1mKoff float64
	logRho    float64

	// Detection store, immutable after Initialize.
	n         int
	nDims     int
	nFeatures int
	frameIdx  []int
	pos       [][]float64
	sePos     [][]float64 // variances, not standard deviations
	feat      [][]float64
	seFeat    [][]float64

	firstFrame int
	lastFrame  int
	nFrames    int
	frameLocs  [][]int // per-frame detection indices, input order preserved

	// Tracking state. tracks is an index arena: each track is a contiguous
	// slice of detection indices with strictly increasing frames, and the
	// table stays in birth order (non-decreasing birth frame).
	state           State
	tracks          [][]int
	trackAssignment []int // detection -> track, valid in StateF2FLinked
	birthFrame      []int // per track, valid in StateF2FLinked
	frameBirthStart []int // per frame: first track born at that frame or later
}

// New returns a Tracker in the pre-initialisation state.
func New(params Params) (*Tracker, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Tracker{
		params:    params,
		logKon:    math.Log(params.Kon),
		logKoff:   math.Log(params.Koff),
		log1mKoff: math.Log(1 - params.Koff),
		logRho:    math.Log(params.Rho),
		state:     StateEmpty,
	}, nil
}

// Params returns the parameters the tracker was built with.
func (t *Tracker) Params() Params { return t.params }

// State returns the current pipeline state.
func (t *Tracker) State() State { return t.state }

// LinkF2F links detections between consecutive non-empty frames. Every
// detection in the first frame seeds a track; each frame-pair assignment
// then extends, terminates, or births tracks.
func (t *Tracker) LinkF2F() error {
	if t.state != StateUntracked {
		return fmt.Errorf("linkF2F: state is %s, want %s: %w", t.state, StateUntracked, ErrLogical)
	}
	curFrame := t.firstFrame
	t.frameBirthStart = make([]int, t.nFrames)

	// The first frame is the minimum of frameIdx, so it has detections.
	for i, locIdx := range t.frameLocs[0] {
		t.tracks = append(t.tracks, []int{locIdx})
		t.trackAssignment[locIdx] = i
		t.birthFrame = append(t.birthFrame, curFrame)
	}
	t.frameBirthStart[0] = 0

	for curFrame < t.lastFrame {
		nextFrame := curFrame + 1
		for len(t.frameLocs[nextFrame-t.firstFrame]) == 0 {
			t.frameBirthStart[nextFrame-t.firstFrame] = len(t.tracks)
			nextFrame++
		}
		curLocs := t.frameLocs[curFrame-t.firstFrame]
		nextLocs := t.frameLocs[nextFrame-t.firstFrame]
		nCur, nNext := len(curLocs), len(nextLocs)
		if nCur == 0 {
			return fmt.Errorf("linkF2F: frame %d has no detections: %w", curFrame, ErrLogical)
		}

		cost, err := t.f2fCost(curFrame, nextFrame)
		if err != nil {
			return err
		}
		sol, err := lap.Solve(cost)
		if err != nil {
			return fmt.Errorf("linkF2F: solve frames %d->%d: %v: %w", curFrame, nextFrame, err, ErrLogical)
		}

		// Rows below nCur extend tracks (or die when assigned past nNext).
		for i := 0; i < nCur; i++ {
			if asgn := sol.X[i]; asgn < nNext {
				trackID := t.trackAssignment[curLocs[i]]
				if trackID < 0 {
					return fmt.Errorf("linkF2F: detection %d has no track: %w", curLocs[i], ErrLogical)
				}
				nextLoc := nextLocs[asgn]
				if t.trackAssignment[nextLoc] != unassigned {
					return fmt.Errorf("linkF2F: detection %d already assigned to track %d: %w",
						nextLoc, t.trackAssignment[nextLoc], ErrLogical)
				}
				t.trackAssignment[nextLoc] = trackID
				t.tracks[trackID] = append(t.tracks[trackID], nextLoc)
			}
		}

		// Tracks added from here on are born at nextFrame.
		t.frameBirthStart[nextFrame-t.firstFrame] = len(t.tracks)
		for i := nCur; i < nCur+nNext; i++ {
			if sol.X[i] >= nNext {
				continue // phantom
			}
			birthLoc := nextLocs[i-nCur]
			if t.trackAssignment[birthLoc] != unassigned {
				return fmt.Errorf("linkF2F: birth detection %d already assigned to track %d: %w",
					birthLoc, t.trackAssignment[birthLoc], ErrLogical)
			}
			trackID := len(t.tracks)
			t.trackAssignment[birthLoc] = trackID
			t.tracks = append(t.tracks, []int{birthLoc})
			t.birthFrame = append(t.birthFrame, nextFrame)
		}
		curFrame = nextFrame
	}
	t.state = StateF2FLinked
	return nil
}

// CloseGaps joins track fragments across temporal gaps and trims the final
// track list. Terminal: the per-detection assignment and birth indices are
// released afterwards.
func (t *Tracker) CloseGaps() error {
	if t.state != StateF2FLinked {
		return fmt.Errorf("closeGaps: state is %s, want %s: %w", t.state, StateF2FLinked, ErrLogical)
	}
	cost, err := t.gapCloseCost()
	if err != nil {
		return err
	}
	sol, err := lap.Solve(cost)
	if err != nil {
		return fmt.Errorf("closeGaps: solve: %v: %w", err, ErrLogical)
	}

	// Walk the assignment from the youngest track down. Birth order gives
	// m < n for any join m->n, so track n is still intact (never emptied
	// before it is spliced onto an older track).
	nTracks := len(t.tracks)
	for m := nTracks - 1; m >= 0; m-- {
		n := sol.X[m]
		if m >= n {
			return fmt.Errorf("closeGaps: join %d->%d violates birth order: %w", m, n, ErrLogical)
		}
		if n < nTracks {
			if len(t.tracks[m]) == 0 {
				return fmt.Errorf("closeGaps: joining from emptied track %d: %w", m, ErrLogical)
			}
			t.tracks[m] = append(t.tracks[m], t.tracks[n]...)
			t.tracks[n] = nil
		}
	}

	// Compact: drop emptied tracks, then apply the strict length filter.
	minLen := t.params.MinFinalTrackLength
	kept := t.tracks[:0]
	for _, tr := range t.tracks {
		if len(tr) == 0 {
			continue
		}
		if minLen <= 1 || len(tr) > minLen {
			kept = append(kept, tr)
		}
	}
	t.tracks = kept

	t.trackAssignment = nil
	t.birthFrame = nil
	t.frameBirthStart = nil
	t.state = StateGapsClosed
	return nil
}

// GenerateTracks advances the pipeline from whatever state it is in through
// linking and gap closing. Calling it again after completion is a no-op.
func (t *Tracker) GenerateTracks() error {
	switch t.state {
	case StateEmpty:
		return fmt.Errorf("generateTracks: no detections loaded: %w", ErrLogical)
	case StateUntracked:
		if err := t.LinkF2F(); err != nil {
			return err
		}
		fallthrough
	case StateF2FLinked:
		if err := t.CloseGaps(); err != nil {
			return err
		}
	}
	return nil
}

// Tracks returns a copy of the current track list. Each track is a sequence
// of detection indices with strictly increasing frame index.
func (t *Tracker) Tracks() [][]int {
	out := make([][]int, len(t.tracks))
	for i, tr := range t.tracks {
		out[i] = append([]int(nil), tr...)
	}
	return out
}

// Detection returns the frame index and position of detection idx.
func (t *Tracker) Detection(idx int) (frame int, pos []float64) {
	return t.frameIdx[idx], t.pos[idx]
}

// CheckFrameIdxs verifies the birth-order bookkeeping after frame-to-frame
// linking: frameBirthStart must walk the track table monotonically and every
// track's recorded birth frame must match its first detection.
func (t *Tracker) CheckFrameIdxs() error {
	if t.state != StateF2FLinked {
		return fmt.Errorf("checkFrameIdxs: state is %s, want %s: %w", t.state, StateF2FLinked, ErrLogical)
	}
	for k, tr := range t.tracks {
		if first := t.frameIdx[tr[0]]; t.birthFrame[k] != first {
			return fmt.Errorf("checkFrameIdxs: track %d birth frame %d, first detection at frame %d: %w",
				k, t.birthFrame[k], first, ErrLogical)
		}
	}
	trackIdx := 0
	for f := t.firstFrame; f <= t.lastFrame; f++ {
		if start := t.frameBirthStart[f-t.firstFrame]; start != trackIdx {
			return fmt.Errorf("checkFrameIdxs: frame %d start %d, want %d: %w", f, start, trackIdx, ErrLogical)
		}
		if trackIdx < len(t.tracks) && t.frameIdx[t.tracks[trackIdx][0]] < f {
			return fmt.Errorf("checkFrameIdxs: track %d born before frame %d: %w", trackIdx, f, ErrLogical)
		}
		for trackIdx < len(t.tracks) && t.frameIdx[t.tracks[trackIdx][0]] == f {
			trackIdx++
		}
	}
	return nil
}

// FormatTracks renders a human-readable track summary, one line per track.
func (t *Tracker) FormatTracks() string {
	var b strings.Builder
	fmt.Fprintf(&b, "tracks: %d\n", len(t.tracks))
	for n, tr := range t.tracks {
		if len(tr) == 0 {
			fmt.Fprintf(&b, "  track[%d]: empty\n", n)
			continue
		}
		fmt.Fprintf(&b, "  track[%d]: frames %d..%d locs %v\n",
			n, t.frameIdx[tr[0]], t.frameIdx[tr[len(tr)-1]], tr)
	}
	return b.String()
}
