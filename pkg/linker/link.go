package linker

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/hcyang1106/rvld/pkg/utils"
)

// DetectEmulation takes the target from the first recognisable input
// object when no -m was given.
func DetectEmulation(ctx *Context, remaining []string) error {
	if ctx.Args.Emulation == MachineTypeNone {
		for _, filename := range remaining {
			if strings.HasPrefix(filename, "-") {
				continue
			}

			file, err := NewFile(filename)
			if err != nil {
				return err
			}
			ctx.Args.Emulation = GetMachineTypeFromContent(file.Content)
			if ctx.Args.Emulation != MachineTypeNone {
				break
			}
		}
	}

	if ctx.Args.Emulation != MachineTypeRISCV64 {
		return newUsageError("unknown emulation type")
	}
	return nil
}

// Link runs every pass in order and leaves the output image in ctx.Buf.
func Link(ctx *Context, remaining []string) error {
	if err := ReadInputFiles(ctx, remaining); err != nil {
		return err
	}
	utils.Logf("read %d objects, %d symbols", len(ctx.Objs), len(ctx.SymbolMap))

	ResolveSymbols(ctx)
	if err := MarkLiveObjects(ctx); err != nil {
		return err
	}
	ClearSymbols(ctx)
	RemoveDeadObjects(ctx)
	if err := CheckCommonSymbols(ctx); err != nil {
		return err
	}
	ResolveSymbols(ctx)

	CreateInternalFile(ctx)
	SkipEhframeSections(ctx)

	if err := SplitMergeableSections(ctx); err != nil {
		return err
	}
	if err := RegisterSectionPieces(ctx); err != nil {
		return err
	}
	ComputeMergedSectionSizes(ctx)

	CreateSyntheticSections(ctx)
	BinSections(ctx)
	ctx.Chunks = append(ctx.Chunks, CollectOutputSections(ctx)...)

	if err := ScanRelocations(ctx); err != nil {
		return err
	}
	ComputeSectionSizes(ctx)
	SortOutputSections(ctx)
	RemoveEmptyChunks(ctx)
	if err := AssignSectionIndices(ctx); err != nil {
		return err
	}

	for _, chunk := range ctx.Chunks {
		chunk.UpdateShdr(ctx)
	}

	fileSize := SetOutputSectionOffsets(ctx)
	FixSyntheticSymbols(ctx)
	if err := CheckRelocations(ctx); err != nil {
		return err
	}
	utils.Logf("layout: %d chunks, %d bytes", len(ctx.Chunks), fileSize)

	ctx.Buf = make([]byte, fileSize)
	for _, chunk := range ctx.Chunks {
		chunk.CopyBuf(ctx)
	}
	return nil
}

// WriteOutput replaces ctx.Args.Output with the linked image.
func WriteOutput(ctx *Context) error {
	if err := os.Remove(ctx.Args.Output); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &LinkError{Kind: ErrUsage, File: ctx.Args.Output, Msg: "cannot remove", Err: err}
	}
	if err := os.WriteFile(ctx.Args.Output, ctx.Buf, 0777); err != nil {
		return &LinkError{Kind: ErrUsage, File: ctx.Args.Output, Msg: "cannot write", Err: err}
	}
	return nil
}
