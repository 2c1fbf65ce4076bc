// Command rescene is the CLI front-end for the srr/srs toolkit.
package main

import (
	"github.com/javi11/rescene/cmd/rescene/cmd"

	// Blank-imported so each container's srs.Profiler/srs.Writer
	// registers itself via init(), per srs.RegisterProfiler's doc
	// comment on the registration pattern.
	_ "github.com/javi11/rescene/srs/avi"
	_ "github.com/javi11/rescene/srs/flac"
	_ "github.com/javi11/rescene/srs/mkv"
	_ "github.com/javi11/rescene/srs/mp3"
	_ "github.com/javi11/rescene/srs/mp4"
	_ "github.com/javi11/rescene/srs/stream"
	_ "github.com/javi11/rescene/srs/wmv"
)

func main() {
	cmd.Execute()
}
