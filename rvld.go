package main

import (
	"fmt"
	"os"

	"github.com/hcyang1106/rvld/pkg/linker"
	"github.com/hcyang1106/rvld/pkg/utils"
)

var version = "dev"

// errors from the linker are fatal: message on stderr, exit status 1
func main() {
	ctx := linker.NewContext()

	// remaining holds object files, archives and -l references
	remaining, err := ctx.ParseArgs(os.Args[1:])
	utils.MustNo(err)

	if ctx.Args.PrintHelp {
		fmt.Printf("usage: %s [options] file...\n", os.Args[0])
		os.Exit(0)
	}
	if ctx.Args.PrintVersion {
		fmt.Printf("rvld %s\n", version)
		os.Exit(0)
	}

	utils.MustNo(linker.DetectEmulation(ctx, remaining))
	utils.MustNo(linker.Link(ctx, remaining))
	utils.MustNo(linker.WriteOutput(ctx))
}
