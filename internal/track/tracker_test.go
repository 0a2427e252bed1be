package track

import (
	"errors"
	"testing"
)

// se returns n rows of constant per-axis variance.
func se(n, dims int, v float64) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, dims)
		for d := range row {
			row[d] = v
		}
		rows[i] = row
	}
	return rows
}

func mustTracker(t *testing.T, p Params) *Tracker {
	t.Helper()
	tr, err := New(p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tr
}

func TestNewValidatesParams(t *testing.T) {
	p := DefaultParams()
	p.Kon = 1.5
	if _, err := New(p); !errors.Is(err, ErrParameterValue) {
		t.Errorf("expected ErrParameterValue, got %v", err)
	}
	p = DefaultParams()
	p.Koff = 0
	if _, err := New(p); !errors.Is(err, ErrParameterValue) {
		t.Errorf("expected ErrParameterValue, got %v", err)
	}
	p = DefaultParams()
	p.Rho = -1
	if _, err := New(p); !errors.Is(err, ErrParameterValue) {
		t.Errorf("expected ErrParameterValue, got %v", err)
	}
}

func TestZeroDisplacementLinksAcrossFrames(t *testing.T) {
	tr := mustTracker(t, DefaultParams())
	frames := []int{1, 2}
	pos := [][]float64{{0, 0}, {0, 0}}
	if err := tr.Initialize(frames, pos, se(2, 2, 0.01)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := tr.GenerateTracks(); err != nil {
		t.Fatalf("GenerateTracks: %v", err)
	}
	tracks := tr.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("got %d tracks, want 1: %v", len(tracks), tracks)
	}
	if len(tracks[0]) != 2 || tracks[0][0] != 0 || tracks[0][1] != 1 {
		t.Errorf("track = %v, want [0 1]", tracks[0])
	}
}

func TestSigmaGateBlocksDistantLink(t *testing.T) {
	tr := mustTracker(t, DefaultParams())
	frames := []int{1, 2}
	pos := [][]float64{{0, 0}, {100, 100}}
	if err := tr.Initialize(frames, pos, se(2, 2, 0.01)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := tr.GenerateTracks(); err != nil {
		t.Fatalf("GenerateTracks: %v", err)
	}
	tracks := tr.Tracks()
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks, want 2: %v", len(tracks), tracks)
	}
	for _, track := range tracks {
		if len(track) != 1 {
			t.Errorf("track = %v, want length 1", track)
		}
	}
}

func TestSingleGapSpanningPairIsLinked(t *testing.T) {
	// Frames 1 and 3 are the two consecutive non-empty frames, so the pair
	// is connected during frame-to-frame linking even though frame 2 is
	// empty; the end result is a single track of length 2.
	p := DefaultParams()
	p.D = 0.01
	tr := mustTracker(t, p)
	frames := []int{1, 3}
	pos := [][]float64{{0, 0}, {0, 0}}
	if err := tr.Initialize(frames, pos, se(2, 2, 0.01)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := tr.GenerateTracks(); err != nil {
		t.Fatalf("GenerateTracks: %v", err)
	}
	tracks := tr.Tracks()
	if len(tracks) != 1 || len(tracks[0]) != 2 {
		t.Fatalf("tracks = %v, want one track [0 1]", tracks)
	}
}

// gapFixture loads four detections where track A dies at frame 1 because B
// alone occupies frame 2, the next non-empty frame, and A reappears at
// frame 4 after the empty frame 3. The
// only way to reconnect A is a gap-close join over a 3-frame gap.
func gapFixture(t *testing.T, p Params) *Tracker {
	t.Helper()
	tr := mustTracker(t, p)
	frames := []int{1, 1, 2, 4}
	pos := [][]float64{
		{0, 0},   // A
		{10, 10}, // B
		{10, 10}, // B continues
		{0, 0},   // A reappears
	}
	if err := tr.Initialize(frames, pos, se(4, 2, 0.01)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return tr
}

func gapParams() Params {
	p := DefaultParams()
	p.D = 0.1
	p.Kon = 0.5
	p.Koff = 0.5
	return p
}

func TestGapCloseJoinsFragments(t *testing.T) {
	tr := gapFixture(t, gapParams())
	if err := tr.LinkF2F(); err != nil {
		t.Fatalf("LinkF2F: %v", err)
	}
	if got := len(tr.Tracks()); got != 3 {
		t.Fatalf("after LinkF2F got %d tracks, want 3: %v", got, tr.Tracks())
	}
	if err := tr.CloseGaps(); err != nil {
		t.Fatalf("CloseGaps: %v", err)
	}
	tracks := tr.Tracks()
	if len(tracks) != 2 {
		t.Fatalf("after CloseGaps got %d tracks, want 2: %v", len(tracks), tracks)
	}
	// Birth order: A's track (born frame 1) carries the joined fragment.
	if tracks[0][0] != 0 || tracks[0][1] != 3 {
		t.Errorf("joined track = %v, want [0 3]", tracks[0])
	}
	if tracks[1][0] != 1 || tracks[1][1] != 2 {
		t.Errorf("continuous track = %v, want [1 2]", tracks[1])
	}
	// Gap bound: 1 <= birth(j) - death(i) < maxGapCloseFrames.
	gap := 4 - 1
	if gap < 1 || gap >= tr.Params().MaxGapCloseFrames {
		t.Errorf("join gap %d outside [1,%d)", gap, tr.Params().MaxGapCloseFrames)
	}
}

func TestGapBoundBlocksLongJoins(t *testing.T) {
	p := gapParams()
	p.MaxGapCloseFrames = 3 // the fixture's gap is exactly 3 frames
	tr := gapFixture(t, p)
	if err := tr.GenerateTracks(); err != nil {
		t.Fatalf("GenerateTracks: %v", err)
	}
	if got := len(tr.Tracks()); got != 3 {
		t.Errorf("got %d tracks, want 3 (join suppressed): %v", got, tr.Tracks())
	}
}

func TestMinFinalTrackLengthTrimsSingletons(t *testing.T) {
	p := DefaultParams()
	p.MinFinalTrackLength = 2
	tr := mustTracker(t, p)
	frames := []int{1, 4, 7}
	pos := [][]float64{{0, 0}, {1000, 1000}, {2000, 2000}}
	if err := tr.Initialize(frames, pos, se(3, 2, 0.01)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := tr.GenerateTracks(); err != nil {
		t.Fatalf("GenerateTracks: %v", err)
	}
	if got := len(tr.Tracks()); got != 0 {
		t.Errorf("got %d tracks, want 0: %v", got, tr.Tracks())
	}
}

func TestStateMachineRejectsMisuse(t *testing.T) {
	tr := mustTracker(t, DefaultParams())
	if err := tr.GenerateTracks(); !errors.Is(err, ErrLogical) {
		t.Errorf("GenerateTracks before Initialize: got %v, want ErrLogical", err)
	}
	if err := tr.CloseGaps(); !errors.Is(err, ErrLogical) {
		t.Errorf("CloseGaps before Initialize: got %v, want ErrLogical", err)
	}

	frames := []int{1, 2}
	pos := [][]float64{{0, 0}, {0, 0}}
	if err := tr.Initialize(frames, pos, se(2, 2, 0.01)); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := tr.CloseGaps(); !errors.Is(err, ErrLogical) {
		t.Errorf("CloseGaps before LinkF2F: got %v, want ErrLogical", err)
	}
	if err := tr.LinkF2F(); err != nil {
		t.Fatalf("LinkF2F: %v", err)
	}
	if err := tr.LinkF2F(); !errors.Is(err, ErrLogical) {
		t.Errorf("second LinkF2F: got %v, want ErrLogical", err)
	}
	if err := tr.CloseGaps(); err != nil {
		t.Fatalf("CloseGaps: %v", err)
	}
	if err := tr.CloseGaps(); !errors.Is(err, ErrLogical) {
		t.Errorf("second CloseGaps: got %v, want ErrLogical", err)
	}
}

func TestGenerateTracksIsIdempotent(t *testing.T) {
	tr := gapFixture(t, gapParams())
	if err := tr.GenerateTracks(); err != nil {
		t.Fatalf("GenerateTracks: %v", err)
	}
	first := tr.Tracks()
	if err := tr.GenerateTracks(); err != nil {
		t.Fatalf("second GenerateTracks: %v", err)
	}
	second := tr.Tracks()
	if len(first) != len(second) {
		t.Fatalf("track count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if len(first[i]) != len(second[i]) {
			t.Errorf("track %d changed: %v vs %v", i, first[i], second[i])
		}
		for k := range first[i] {
			if first[i][k] != second[i][k] {
				t.Errorf("track %d changed: %v vs %v", i, first[i], second[i])
			}
		}
	}
}

func TestPartitionAfterF2FLinking(t *testing.T) {
	tr := gapFixture(t, gapParams())
	if err := tr.LinkF2F(); err != nil {
		t.Fatalf("LinkF2F: %v", err)
	}
	seen := make(map[int]int)
	for trackIdx, track := range tr.Tracks() {
		for _, det := range track {
			if prev, dup := seen[det]; dup {
				t.Errorf("detection %d in tracks %d and %d", det, prev, trackIdx)
			}
			seen[det] = trackIdx
		}
	}
	if len(seen) != 4 {
		t.Errorf("%d detections in tracks, want 4", len(seen))
	}
	if err := tr.CheckFrameIdxs(); err != nil {
		t.Errorf("CheckFrameIdxs: %v", err)
	}
}

func TestTrackFramesStrictlyIncrease(t *testing.T) {
	tr := gapFixture(t, gapParams())
	if err := tr.GenerateTracks(); err != nil {
		t.Fatalf("GenerateTracks: %v", err)
	}
	for trackIdx, track := range tr.Tracks() {
		for k := 1; k < len(track); k++ {
			prev, _ := tr.Detection(track[k-1])
			cur, _ := tr.Detection(track[k])
			if cur <= prev {
				t.Errorf("track %d: frame %d after %d", trackIdx, cur, prev)
			}
		}
	}
}

func TestBirthOrderMaintained(t *testing.T) {
	tr := gapFixture(t, gapParams())
	if err := tr.LinkF2F(); err != nil {
		t.Fatalf("LinkF2F: %v", err)
	}
	last := tr.firstFrame
	for trackIdx, track := range tr.Tracks() {
		birth, _ := tr.Detection(track[0])
		if birth < last {
			t.Errorf("track %d born at %d after a track born at %d", trackIdx, birth, last)
		}
		last = birth
	}
}

func TestMaxSpeedGate(t *testing.T) {
	run := func(maxSpeed float64) int {
		p := DefaultParams()
		p.D = 5
		p.MaxSpeed = maxSpeed
		tr := mustTracker(t, p)
		frames := []int{1, 2}
		pos := [][]float64{{0, 0}, {8, 0}}
		if err := tr.Initialize(frames, pos, se(2, 2, 0.01)); err != nil {
			t.Fatalf("Initialize: %v", err)
		}
		if err := tr.GenerateTracks(); err != nil {
			t.Fatalf("GenerateTracks: %v", err)
		}
		return len(tr.Tracks())
	}
	if got := run(5); got != 2 {
		t.Errorf("maxSpeed=5: got %d tracks, want 2", got)
	}
	if got := run(20); got != 1 {
		t.Errorf("maxSpeed=20: got %d tracks, want 1", got)
	}
	if got := run(0); got != 1 {
		t.Errorf("maxSpeed=0 (disabled): got %d tracks, want 1", got)
	}
}

func TestFeatureGate(t *testing.T) {
	run := func(featB float64) int {
		p := DefaultParams()
		p.FeatureVar = []float64{0.1}
		p.MaxFeatureDisplacementSigma = []float64{5}
		tr := mustTracker(t, p)
		frames := []int{1, 2}
		pos := [][]float64{{0, 0}, {0, 0}}
		feat := [][]float64{{0}, {featB}}
		if err := tr.InitializeWithFeatures(frames, pos, se(2, 2, 0.01), feat, se(2, 1, 0.01)); err != nil {
			t.Fatalf("InitializeWithFeatures: %v", err)
		}
		if err := tr.GenerateTracks(); err != nil {
			t.Fatalf("GenerateTracks: %v", err)
		}
		return len(tr.Tracks())
	}
	if got := run(0.1); got != 1 {
		t.Errorf("similar features: got %d tracks, want 1", got)
	}
	if got := run(10); got != 2 {
		t.Errorf("distant features: got %d tracks, want 2", got)
	}
}

func TestStats(t *testing.T) {
	tr := gapFixture(t, gapParams())
	if err := tr.LinkF2F(); err != nil {
		t.Fatalf("LinkF2F: %v", err)
	}
	s := tr.Stats()
	if s.NLocalizations != 4 || s.NDims != 2 || s.NFeatures != 0 {
		t.Errorf("store stats = %+v", s)
	}
	if s.FirstFrame != 1 || s.LastFrame != 4 || s.NFrames != 4 {
		t.Errorf("frame stats = %+v", s)
	}
	if s.NTracks != 3 {
		t.Errorf("NTracks = %d, want 3", s.NTracks)
	}
	if s.NLocalizationsAssigned != 4 {
		t.Errorf("NLocalizationsAssigned = %d, want 4", s.NLocalizationsAssigned)
	}
	if s.Params.D != 0.1 {
		t.Errorf("params not echoed: %+v", s.Params)
	}

	if err := tr.CloseGaps(); err != nil {
		t.Fatalf("CloseGaps: %v", err)
	}
	s = tr.Stats()
	if s.NTracks != 2 {
		t.Errorf("NTracks after gap close = %d, want 2", s.NTracks)
	}
	// Assignment bookkeeping is released in the terminal state.
	if s.NLocalizationsAssigned != 0 {
		t.Errorf("NLocalizationsAssigned after gap close = %d, want 0", s.NLocalizationsAssigned)
	}
	if s.TrackSpeedP50 < 0 {
		t.Errorf("TrackSpeedP50 = %v", s.TrackSpeedP50)
	}
}
