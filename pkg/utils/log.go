package utils

import (
	"fmt"
	"os"

	"github.com/xyproto/env/v2"
)

// Verbose enables per-pass progress output on stderr.
var Verbose = env.Bool("RVLD_VERBOSE")

func Logf(format string, args ...any) {
	if !Verbose {
		return
	}
	fmt.Fprintf(os.Stderr, "rvld: "+format+"\n", args...)
}
