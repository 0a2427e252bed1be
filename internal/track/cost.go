package track

import (
	"fmt"
	"math"

	"github.com/banshee-data/trajectory.report/internal/sparse"
)

// pairCost computes the gaussian log-likelihood cost of connecting detection
// a to detection b over deltaT frames under Brownian diffusion. Returns
// ok=false when any sigma or speed gate rejects the pair. The result is the
// common position+feature term; callers apply their own rate adjustment.
func (t *Tracker) pairCost(a, b, deltaT int) (cost float64, ok bool) {
	dDT := 2 * t.params.D * float64(deltaT)
	posCutoff := t.params.MaxPositionDisplacementSigma * t.params.MaxPositionDisplacementSigma / 2

	var c, totalDistSq float64
	for d := 0; d < t.nDims; d++ {
		distVar := dDT + t.sePos[a][d] + t.sePos[b][d]
		dist := t.pos[a][d] - t.pos[b][d]
		distSq := dist * dist
		totalDistSq += distSq
		exponent := distSq / distVar
		if exponent > posCutoff {
			return 0, false
		}
		c += exponent + math.Log(distVar)
	}
	if t.params.MaxSpeed > 0 && math.Sqrt(totalDistSq)/float64(deltaT) > t.params.MaxSpeed {
		return 0, false
	}
	for f := 0; f < t.nFeatures; f++ {
		featVar := t.params.FeatureVar[f] + t.seFeat[a][f] + t.seFeat[b][f]
		featDist := t.feat[a][f] - t.feat[b][f]
		exponent := featDist * featDist / featVar
		sigma := t.params.MaxFeatureDisplacementSigma[f]
		if exponent > sigma*sigma/2 {
			return 0, false
		}
		c += exponent + math.Log(featVar)
	}
	c += float64(t.nDims+t.nFeatures) * log2Pi
	c *= 0.5
	return c, true
}

// f2fCost builds the augmented (nCur+nNext)² cost matrix for linking
// curFrame to nextFrame. Layout: link block top-left, death diagonal
// top-right, birth diagonal bottom-left, phantom entries bottom-right
// (one per surviving link entry). Deaths plus births alone always form a
// perfect matching, so the matrix stays feasible under any gating.
func (t *Tracker) f2fCost(curFrame, nextFrame int) (*sparse.Matrix, error) {
	curLocs := t.frameLocs[curFrame-t.firstFrame]
	nextLocs := t.frameLocs[nextFrame-t.firstFrame]
	nCur, nNext := len(curLocs), len(nextLocs)
	nTot := nCur + nNext
	deltaT := nextFrame - curFrame

	sizeHint := nTot + 2*min(nCur*nNext, max(nCur, nNext)*10)
	b := sparse.NewBuilder(nTot, nTot, sizeHint)

	for j, nextIdx := range nextLocs {
		for i, curIdx := range curLocs {
			c, ok := t.pairCost(curIdx, nextIdx, deltaT)
			if !ok {
				continue
			}
			c -= t.log1mKoff
			b.Append(i, j, c)
			b.Append(nCur+j, nNext+i, costEpsilon)
		}
	}

	deathCost := -t.logKoff
	for i := 0; i < nCur; i++ {
		b.Append(i, nNext+i, deathCost)
	}
	birthCost := -t.logRho - t.logKon
	for j := 0; j < nNext; j++ {
		b.Append(nCur+j, j, birthCost)
	}

	m, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("f2fCost frames %d->%d: %v: %w", curFrame, nextFrame, err, ErrLogical)
	}
	return m, nil
}

// gapCloseCost builds the 2T×2T cost matrix over track endpoints: entry
// (i, j) joins the end of track i to the start of track j. Candidate targets
// for track i start at frameBirthStart[death(i)+2], the first track born at
// least two frames after i ends (one-frame successors were already handled
// by frame-to-frame linking).
func (t *Tracker) gapCloseCost() (*sparse.Matrix, error) {
	nTracks := len(t.tracks)
	b := sparse.NewBuilder(2*nTracks, 2*nTracks, nTracks*10)

	for i := 0; i < nTracks; i++ {
		if len(t.tracks[i]) < t.params.MinGapCloseTrackLength {
			continue
		}
		locI := t.tracks[i][len(t.tracks[i])-1]
		endI := t.frameIdx[locI]
		if endI >= t.lastFrame-1 {
			continue
		}
		for j := t.frameBirthStart[endI+2-t.firstFrame]; j < nTracks; j++ {
			if len(t.tracks[j]) < t.params.MinGapCloseTrackLength {
				continue
			}
			deltaT := t.birthFrame[j] - endI
			if deltaT < 1 {
				return nil, fmt.Errorf("gapCloseCost: join %d->%d spans %d frames: %w", i, j, deltaT, ErrLogical)
			}
			if deltaT >= t.params.MaxGapCloseFrames {
				continue
			}
			locJ := t.tracks[j][0]
			c, ok := t.pairCost(locI, locJ, deltaT)
			if !ok {
				continue
			}
			c -= t.logKon + t.logKoff*float64(deltaT)
			b.Append(i, j, c)
			b.Append(nTracks+j, nTracks+i, costEpsilon)
		}
	}

	deathCost := -t.logKoff
	birthCost := -t.logRho - t.logKon
	for i := 0; i < nTracks; i++ {
		b.Append(i, nTracks+i, deathCost)
		b.Append(nTracks+i, i, birthCost)
	}

	m, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("gapCloseCost: %v: %w", err, ErrLogical)
	}
	return m, nil
}
