package track

import (
	"fmt"
	"math"
	"sort"
)

// Initialize loads detections without features. frameIdx gives the integer
// frame of each detection; pos and sePos are per-detection rows of positions
// and their variances (σ², not σ), one column per spatial dimension.
func (t *Tracker) Initialize(frameIdx []int, pos, sePos [][]float64) error {
	return t.InitializeWithFeatures(frameIdx, pos, sePos, nil, nil)
}

// InitializeWithFeatures loads detections with an optional feature matrix.
// feat and seFeat follow the same row convention as pos/sePos; pass nil for
// both to track on position alone. Resets any previous tracking state.
func (t *Tracker) InitializeWithFeatures(frameIdx []int, pos, sePos, feat, seFeat [][]float64) error {
	n := len(frameIdx)
	if n == 0 {
		return fmt.Errorf("initialize: no detections: %w", ErrParameterValue)
	}
	if len(pos) != n {
		return fmt.Errorf("initialize: len(frameIdx)=%d != rows(pos)=%d: %w", n, len(pos), ErrParameterValue)
	}
	if len(sePos) != n {
		return fmt.Errorf("initialize: len(frameIdx)=%d != rows(SEpos)=%d: %w", n, len(sePos), ErrParameterValue)
	}
	nDims := len(pos[0])
	if nDims == 0 {
		return fmt.Errorf("initialize: positions have no columns: %w", ErrParameterValue)
	}
	for i := 0; i < n; i++ {
		if len(pos[i]) != nDims || len(sePos[i]) != nDims {
			return fmt.Errorf("initialize: row %d: pos has %d cols, SEpos has %d, want %d: %w",
				i, len(pos[i]), len(sePos[i]), nDims, ErrParameterValue)
		}
	}

	nFeatures := 0
	if feat != nil || seFeat != nil {
		if len(feat) != n {
			return fmt.Errorf("initialize: len(frameIdx)=%d != rows(feat)=%d: %w", n, len(feat), ErrParameterValue)
		}
		if len(seFeat) != n {
			return fmt.Errorf("initialize: len(frameIdx)=%d != rows(SEfeat)=%d: %w", n, len(seFeat), ErrParameterValue)
		}
		nFeatures = len(feat[0])
		for i := 0; i < n; i++ {
			if len(feat[i]) != nFeatures || len(seFeat[i]) != nFeatures {
				return fmt.Errorf("initialize: row %d: feat has %d cols, SEfeat has %d, want %d: %w",
					i, len(feat[i]), len(seFeat[i]), nFeatures, ErrParameterValue)
			}
		}
		if len(t.params.FeatureVar) < nFeatures {
			return fmt.Errorf("initialize: %d features but featureVar has %d entries: %w",
				nFeatures, len(t.params.FeatureVar), ErrParameterValue)
		}
		if len(t.params.MaxFeatureDisplacementSigma) < nFeatures {
			return fmt.Errorf("initialize: %d features but maxFeatureDisplacementSigma has %d entries: %w",
				nFeatures, len(t.params.MaxFeatureDisplacementSigma), ErrParameterValue)
		}
	}

	t.n = n
	t.nDims = nDims
	t.nFeatures = nFeatures
	t.frameIdx = frameIdx
	t.pos = pos
	t.sePos = sePos
	t.feat = feat
	t.seFeat = seFeat

	// Stable sort keeps input order within a frame.
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return frameIdx[order[a]] < frameIdx[order[b]]
	})
	t.firstFrame = frameIdx[order[0]]
	t.lastFrame = frameIdx[order[n-1]]
	t.nFrames = t.lastFrame - t.firstFrame + 1

	t.frameLocs = make([][]int, t.nFrames)
	for _, idx := range order {
		f := frameIdx[idx] - t.firstFrame
		t.frameLocs[f] = append(t.frameLocs[f], idx)
	}

	t.tracks = make([][]int, 0, int(math.Ceil(math.Sqrt(float64(n)))))
	t.trackAssignment = make([]int, n)
	for i := range t.trackAssignment {
		t.trackAssignment[i] = unassigned
	}
	t.birthFrame = nil
	t.frameBirthStart = nil
	t.state = StateUntracked
	return nil
}
