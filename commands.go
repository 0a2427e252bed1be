package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/trajectory.report/internal/monitor"
	"github.com/banshee-data/trajectory.report/internal/track"
	"github.com/banshee-data/trajectory.report/internal/trackdb"
)

// paramFlags registers the tracking model flags on fs and returns a fetcher
// for the resulting Params.
func paramFlags(fs *flag.FlagSet) func() track.Params {
	defaults := track.DefaultParams()
	d := fs.Float64("D", defaults.D, "diffusion constant (length²/frame)")
	kon := fs.Float64("kon", defaults.Kon, "per-frame birth probability in (0,1)")
	koff := fs.Float64("koff", defaults.Koff, "per-frame death probability in (0,1)")
	rho := fs.Float64("rho", defaults.Rho, "background birth density")
	maxSpeed := fs.Float64("max-speed", defaults.MaxSpeed, "hard speed cap (length/frame); <=0 disables")
	maxSigma := fs.Float64("max-sigma", defaults.MaxPositionDisplacementSigma, "position displacement gate in sigmas")
	maxGap := fs.Int("max-gap", defaults.MaxGapCloseFrames, "exclusive upper bound on gap-close frame span")
	minGapLen := fs.Int("min-gap-len", defaults.MinGapCloseTrackLength, "minimum track length to join across gaps")
	minTrackLen := fs.Int("min-track-len", defaults.MinFinalTrackLength, "discard final tracks with length <= this; values <= 1 keep every track")
	return func() track.Params {
		p := defaults
		p.D = *d
		p.Kon = *kon
		p.Koff = *koff
		p.Rho = *rho
		p.MaxSpeed = *maxSpeed
		p.MaxPositionDisplacementSigma = *maxSigma
		p.MaxGapCloseFrames = *maxGap
		p.MinGapCloseTrackLength = *minGapLen
		p.MinFinalTrackLength = *minTrackLen
		return p
	}
}

func runTrack(args []string) error {
	fs := flag.NewFlagSet("track", flag.ExitOnError)
	in := fs.String("in", "", "detections CSV: frame,x...,se_x... (required)")
	dims := fs.Int("dims", 2, "number of spatial dimensions in the CSV")
	dbPath := fs.String("db", "", "SQLite database to record the run in (optional)")
	outDir := fs.String("out-dir", "", "directory for rendered trajectory plots (optional)")
	verbose := fs.Bool("verbose", false, "log per-track detail")
	params := paramFlags(fs)
	fs.Parse(args)
	if *in == "" {
		return fmt.Errorf("missing required -in flag")
	}

	frames, pos, sePos, err := loadDetectionsCSV(*in, *dims)
	if err != nil {
		return err
	}
	log.Printf("loaded %d detections from %s", len(frames), *in)

	tracker, err := track.New(params())
	if err != nil {
		return err
	}
	if err := tracker.Initialize(frames, pos, sePos); err != nil {
		return err
	}
	if err := tracker.GenerateTracks(); err != nil {
		return err
	}

	stats := tracker.Stats()
	log.Printf("tracked %d detections over frames %d..%d into %d tracks",
		stats.NLocalizations, stats.FirstFrame, stats.LastFrame, stats.NTracks)
	if *verbose {
		fmt.Print(tracker.FormatTracks())
	}

	if *dbPath != "" {
		db, err := trackdb.Open(*dbPath)
		if err != nil {
			return err
		}
		defer db.Close()
		runID, err := db.InsertRun(tracker)
		if err != nil {
			return err
		}
		log.Printf("recorded run %s in %s", runID, *dbPath)
	}
	if *outDir != "" {
		png, err := monitor.RenderPNG(tracker, *outDir)
		if err != nil {
			return err
		}
		html, err := monitor.RenderHTML(tracker, *outDir)
		if err != nil {
			return err
		}
		log.Printf("rendered %s and %s", png, html)
	}
	return nil
}

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dbPath := fs.String("db", "", "SQLite database to read (required)")
	fs.Parse(args)
	if *dbPath == "" {
		return fmt.Errorf("missing required -db flag")
	}
	db, err := trackdb.Open(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	runs, err := db.ListRuns()
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %d detections  %d tracks  frames %d..%d\n",
			r.RunID, r.Created.Format("2006-01-02 15:04:05"),
			r.Stats.NLocalizations, r.Stats.NTracks, r.Stats.FirstFrame, r.Stats.LastFrame)
	}
	return nil
}

func runDebugF2F(args []string) error {
	fs := flag.NewFlagSet("debug-f2f", flag.ExitOnError)
	in := fs.String("in", "", "detections CSV: frame,x...,se_x... (required)")
	dims := fs.Int("dims", 2, "number of spatial dimensions in the CSV")
	frame := fs.Int("frame", 0, "current frame to link from")
	params := paramFlags(fs)
	fs.Parse(args)
	if *in == "" {
		return fmt.Errorf("missing required -in flag")
	}

	frames, pos, sePos, err := loadDetectionsCSV(*in, *dims)
	if err != nil {
		return err
	}
	tracker, err := track.New(params())
	if err != nil {
		return err
	}
	if err := tracker.Initialize(frames, pos, sePos); err != nil {
		return err
	}
	dbg, err := tracker.DebugF2F(*frame)
	if err != nil {
		return err
	}

	fmt.Printf("frames %d -> %d\ncur locs:  %v\nnext locs: %v\n",
		dbg.CurFrame, dbg.NextFrame, dbg.CurLocs, dbg.NextLocs)
	fmt.Printf("cost matrix (unstored entries as 0):\n%v\n",
		mat.Formatted(dbg.Cost.ToDense(), mat.Prefix(""), mat.Squeeze()))
	for _, conn := range dbg.Connections {
		switch {
		case conn.From == -1:
			fmt.Printf("  birth -> %d\n", conn.To)
		case conn.To == -1:
			fmt.Printf("  %d -> death\n", conn.From)
		default:
			fmt.Printf("  %d -> %d\n", conn.From, conn.To)
		}
	}
	fmt.Printf("connection costs: %v\n", dbg.ConnCosts)
	return nil
}

// loadDetectionsCSV reads frame,x...,se_x... rows. A header row is skipped
// when its first field is not an integer. SE columns store variances.
func loadDetectionsCSV(path string, dims int) (frames []int, pos, sePos [][]float64, err error) {
	if dims < 1 {
		return nil, nil, nil, fmt.Errorf("dims must be >= 1, got %d", dims)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 1 + 2*dims
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		line++
		frame, err := strconv.Atoi(rec[0])
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, nil, nil, fmt.Errorf("%s line %d: bad frame %q", path, line, rec[0])
		}
		p := make([]float64, dims)
		se := make([]float64, dims)
		for d := 0; d < dims; d++ {
			if p[d], err = strconv.ParseFloat(rec[1+d], 64); err != nil {
				return nil, nil, nil, fmt.Errorf("%s line %d: bad position %q", path, line, rec[1+d])
			}
			if se[d], err = strconv.ParseFloat(rec[1+dims+d], 64); err != nil {
				return nil, nil, nil, fmt.Errorf("%s line %d: bad SE %q", path, line, rec[1+dims+d])
			}
		}
		frames = append(frames, frame)
		pos = append(pos, p)
		sePos = append(sePos, se)
	}
	if len(frames) == 0 {
		return nil, nil, nil, fmt.Errorf("%s: no detections", path)
	}
	return frames, pos, sePos, nil
}
