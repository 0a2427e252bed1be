package track

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Stats summarises a tracking run: store shape, track counts, and per-track
// speed quantiles, with the parameters echoed back.
type Stats struct {
	NLocalizations         int
	NDims                  int
	NFeatures              int
	FirstFrame             int
	LastFrame              int
	NFrames                int
	NTracks                int
	NLocalizationsAssigned int

	// Quantiles over per-track mean speeds (length/frame). Zero when no
	// track has at least two detections.
	TrackSpeedP50 float64
	TrackSpeedP95 float64

	Params Params
}

// Stats returns the current run statistics. Valid in any state; fields that
// depend on released bookkeeping (assignment counts) read as zero after gap
// closing, matching the terminal-state cleanup.
func (t *Tracker) Stats() Stats {
	s := Stats{
		NLocalizations: t.n,
		NDims:          t.nDims,
		NFeatures:      t.nFeatures,
		FirstFrame:     t.firstFrame,
		LastFrame:      t.lastFrame,
		NFrames:        t.nFrames,
		NTracks:        len(t.tracks),
		Params:         t.params,
	}
	for _, a := range t.trackAssignment {
		if a != unassigned {
			s.NLocalizationsAssigned++
		}
	}

	speeds := make([]float64, 0, len(t.tracks))
	for _, tr := range t.tracks {
		if v, ok := t.meanSpeed(tr); ok {
			speeds = append(speeds, v)
		}
	}
	if len(speeds) > 0 {
		sort.Float64s(speeds)
		s.TrackSpeedP50 = stat.Quantile(0.5, stat.Empirical, speeds, nil)
		s.TrackSpeedP95 = stat.Quantile(0.95, stat.Empirical, speeds, nil)
	}
	return s
}

// meanSpeed averages the per-step speed (euclidean displacement per frame)
// along one track.
func (t *Tracker) meanSpeed(tr []int) (float64, bool) {
	if len(tr) < 2 {
		return 0, false
	}
	var sum float64
	for k := 1; k < len(tr); k++ {
		a, b := tr[k-1], tr[k]
		var distSq float64
		for d := 0; d < t.nDims; d++ {
			diff := t.pos[b][d] - t.pos[a][d]
			distSq += diff * diff
		}
		dt := float64(t.frameIdx[b] - t.frameIdx[a])
		sum += math.Sqrt(distSq) / dt
	}
	return sum / float64(len(tr)-1), true
}
