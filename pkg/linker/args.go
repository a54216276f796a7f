package linker

import (
	"path/filepath"
	"strings"

	"github.com/hcyang1106/rvld/pkg/utils"
	"github.com/xyproto/env/v2"
)

// ParseArgs fills ctx.Args from the command line and returns the input
// files in order, with libraries kept as "-l<name>".
func (ctx *Context) ParseArgs(args []string) ([]string, error) {
	arg := ""
	var missing string

	// "-o a.out", "-oa.out" for one-letter options, "--output=a.out"
	readArg := func(name string) bool {
		for _, opt := range utils.AddDashes(name) {
			if args[0] == opt {
				if len(args) == 1 {
					missing = name
					args = args[1:]
					return true
				}
				arg = args[1]
				args = args[2:]
				return true
			}

			prefix := opt
			if len(name) > 1 {
				prefix += "="
			}
			if val, ok := utils.RemovePrefix(args[0], prefix); ok {
				arg = val
				args = args[1:]
				return true
			}
		}
		return false
	}

	readFlag := func(name string) bool {
		for _, opt := range utils.AddDashes(name) {
			if args[0] == opt {
				args = args[1:]
				return true
			}
		}
		return false
	}

	remaining := make([]string, 0)
	for len(args) > 0 {
		if readFlag("help") {
			ctx.Args.PrintHelp = true
		} else if readFlag("v") || readFlag("version") {
			ctx.Args.PrintVersion = true
		} else if readArg("output") || readArg("o") {
			ctx.Args.Output = arg
		} else if readArg("m") {
			if missing == "" && arg != "elf64lriscv" {
				return nil, newUsageError("unknown -m argument: %s", arg)
			}
			ctx.Args.Emulation = MachineTypeRISCV64
		} else if readArg("L") {
			ctx.Args.LibraryPaths = append(ctx.Args.LibraryPaths, arg)
		} else if readArg("l") {
			remaining = append(remaining, "-l"+arg)
		} else if readFlag("build-id") ||
			readArg("sysroot") ||
			readFlag("static") ||
			readArg("plugin") ||
			readArg("plugin-opt") ||
			readFlag("as-needed") ||
			readFlag("start-group") ||
			readFlag("end-group") ||
			readArg("hash-style") ||
			readArg("build-id") ||
			readFlag("s") ||
			readFlag("no-relax") ||
			readArg("z") {
			// ignored
		} else {
			if strings.HasPrefix(args[0], "-") && args[0] != "-" {
				return nil, newUsageError("unknown command line option: %s", args[0])
			}
			remaining = append(remaining, args[0])
			args = args[1:]
		}

		if missing != "" {
			return nil, newUsageError("option -%s: argument missing", missing)
		}
	}

	for _, dir := range strings.Split(env.Str("LIBRARY_PATH"), ":") {
		if dir != "" {
			ctx.Args.LibraryPaths = append(ctx.Args.LibraryPaths, dir)
		}
	}
	for i, path := range ctx.Args.LibraryPaths {
		ctx.Args.LibraryPaths[i] = filepath.Clean(path)
	}

	return remaining, nil
}
