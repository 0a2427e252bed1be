// Command trajectory-report reconstructs trajectories from per-frame point
// detections using two-pass linear-assignment tracking, persists runs to
// SQLite, and renders the results.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/trajectory.report/internal/version"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: trajectory-report <command> [flags]

commands:
  track      run the tracker over a detections CSV
  stats      list stored runs from a tracking database
  debug-f2f  print the frame-to-frame cost matrix and assignment for one frame
  version    print the build version

run "trajectory-report <command> -h" for command flags
`)
	os.Exit(2)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	if len(os.Args) < 2 {
		usage()
	}
	var err error
	switch os.Args[1] {
	case "track":
		err = runTrack(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "debug-f2f":
		err = runDebugF2F(os.Args[2:])
	case "version":
		fmt.Printf("trajectory-report %s\n", version.String())
	default:
		usage()
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}
