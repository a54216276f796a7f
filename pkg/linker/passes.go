package linker

import (
	"debug/elf"
	"math"
	"sort"

	"github.com/hcyang1106/rvld/pkg/utils"
)

func ResolveSymbols(ctx *Context) {
	for _, obj := range ctx.LiveObjects() {
		obj.ResolveSymbols(ctx)
	}
}

// MarkLiveObjects walks undefined references from the root objects,
// pulling in the archive members that define them.
func MarkLiveObjects(ctx *Context) error {
	queue := make([]ObjectID, 0)
	for _, obj := range ctx.LiveObjects() {
		if obj.IsAlive {
			queue = append(queue, obj.ID)
		}
	}
	if len(queue) == 0 {
		return newUsageError("no input files")
	}

	for len(queue) > 0 {
		obj := ctx.File(queue[0])
		queue = obj.MarkLiveObjects(ctx, queue[1:])
	}
	return nil
}

// ClearSymbols runs over survivors and dropped objects alike, so no
// symbol is left pointing into a dropped object.
func ClearSymbols(ctx *Context) {
	for _, obj := range ctx.LiveObjects() {
		obj.ClearSymbols(ctx)
	}
}

func RemoveDeadObjects(ctx *Context) {
	before := len(ctx.Objs)
	ctx.Objs = utils.RemoveIf(ctx.Objs, func(id ObjectID) bool {
		return !ctx.File(id).IsAlive
	})
	utils.Logf("gc: kept %d of %d objects", len(ctx.Objs), before)
}

func CheckCommonSymbols(ctx *Context) error {
	for _, obj := range ctx.LiveObjects() {
		if err := obj.CheckCommonSymbols(ctx); err != nil {
			return withFile(err, obj.Name())
		}
	}
	return nil
}

func SkipEhframeSections(ctx *Context) {
	for _, obj := range ctx.LiveObjects() {
		obj.SkipEhframeSections(ctx)
	}
}

func SplitMergeableSections(ctx *Context) error {
	for _, obj := range ctx.LiveObjects() {
		if err := obj.SplitMergeableSections(ctx); err != nil {
			return withFile(err, obj.Name())
		}
	}
	return nil
}

func RegisterSectionPieces(ctx *Context) error {
	for _, obj := range ctx.LiveObjects() {
		if err := obj.RegisterSectionPieces(ctx); err != nil {
			return withFile(err, obj.Name())
		}
	}
	return nil
}

func ComputeMergedSectionSizes(ctx *Context) {
	for _, obj := range ctx.LiveObjects() {
		for _, m := range obj.MergeableSections {
			if m == nil {
				continue
			}
			for _, frag := range m.Fragments {
				ctx.Fragment(frag).IsAlive = true
			}
		}
	}

	for _, m := range ctx.MergedSections {
		m.AssignOffsets(ctx)
	}
}

func CreateSyntheticSections(ctx *Context) {
	push := func(chunk Chunker) Chunker {
		ctx.Chunks = append(ctx.Chunks, chunk)
		return chunk
	}

	ctx.Ehdr = push(NewOutputEhdr()).(*OutputEhdr)
	ctx.Phdr = push(NewOutputPhdr()).(*OutputPhdr)
	ctx.Shdr = push(NewOutputShdr()).(*OutputShdr)
	ctx.Got = push(NewGotSection()).(*GotSection)
	ctx.ShStrtab = push(NewShStrtabSection()).(*ShStrtabSection)
}

// BinSections appends every live input section to its output section,
// in object order.
func BinSections(ctx *Context) {
	for _, obj := range ctx.LiveObjects() {
		for _, id := range obj.Sections {
			isec := ctx.Section(id)
			if isec == nil || !isec.IsAlive {
				continue
			}

			shdr := isec.Shdr(ctx)
			osecID := GetOutputSection(ctx, isec.Name(ctx), uint64(shdr.Type), shdr.Flags)
			isec.OutputSection = osecID
			osec := ctx.OutputSections[osecID]
			osec.Members = append(osec.Members, id)
		}
	}
}

func CollectOutputSections(ctx *Context) []Chunker {
	osecs := make([]Chunker, 0)
	for _, osec := range ctx.OutputSections {
		if len(osec.Members) > 0 {
			osecs = append(osecs, osec)
		}
	}

	for _, m := range ctx.MergedSections {
		if m.Shdr.Size > 0 {
			osecs = append(osecs, m)
		}
	}
	return osecs
}

// ScanRelocations sizes the GOT. Slots are handed out in object order,
// then symbol table order.
func ScanRelocations(ctx *Context) error {
	for _, obj := range ctx.LiveObjects() {
		if err := obj.ScanRelocations(ctx); err != nil {
			return withFile(err, obj.Name())
		}
	}

	for _, obj := range ctx.LiveObjects() {
		for _, id := range obj.Symbols {
			sym := ctx.Symbol(id)
			if sym.File != obj.ID && sym.File != NoObject {
				continue
			}

			if sym.Flags&NeedsGot != 0 {
				ctx.Got.AddGotSymbol(ctx, id)
			}
			if sym.Flags&NeedsGotTp != 0 {
				ctx.Got.AddGotTpSymbol(ctx, id)
			}
			sym.Flags = 0
		}
	}
	return nil
}

// CheckRelocations rejects relocations whose final value does not fit
// the instruction field it is encoded into. It needs final addresses.
func CheckRelocations(ctx *Context) error {
	for _, obj := range ctx.LiveObjects() {
		for _, id := range obj.Sections {
			isec := ctx.Section(id)
			if isec == nil || !isec.IsAlive || isec.Shdr(ctx).Flags&uint64(elf.SHF_ALLOC) == 0 {
				continue
			}
			if err := isec.CheckRelocations(ctx); err != nil {
				return withFile(err, obj.Name())
			}
		}
	}
	return nil
}

func ComputeSectionSizes(ctx *Context) {
	for _, osec := range ctx.OutputSections {
		offset := uint64(0)
		p2align := uint8(0)

		for _, id := range osec.Members {
			isec := ctx.Section(id)
			offset = utils.AlignTo(offset, 1<<isec.P2Align)
			isec.Offset = uint32(offset)
			offset += uint64(isec.ShSize)
			p2align = max(p2align, isec.P2Align)
		}

		osec.Shdr.Size = offset
		osec.Shdr.AddrAlign = 1 << p2align
	}
}

func getRank(ctx *Context, chunk Chunker) int32 {
	switch chunk {
	case Chunker(ctx.Ehdr):
		return 0
	case Chunker(ctx.Phdr):
		return 1
	case Chunker(ctx.Shdr):
		return math.MaxInt32
	}

	if isNote(chunk) {
		return 2
	}
	if !isAlloc(chunk) {
		return math.MaxInt32 - 1
	}

	b2i := func(b bool) int32 {
		if b {
			return 1
		}
		return 0
	}

	flags := chunk.GetShdr().Flags
	writable := b2i(flags&uint64(elf.SHF_WRITE) != 0)
	notExec := b2i(flags&uint64(elf.SHF_EXECINSTR) == 0)
	notTls := b2i(flags&uint64(elf.SHF_TLS) == 0)
	bss := b2i(elf.SectionType(chunk.GetShdr().Type) == elf.SHT_NOBITS)
	return writable<<7 | notExec<<6 | notTls<<5 | bss<<4
}

func SortOutputSections(ctx *Context) {
	sort.SliceStable(ctx.Chunks, func(i, j int) bool {
		return getRank(ctx, ctx.Chunks[i]) < getRank(ctx, ctx.Chunks[j])
	})
}

func RemoveEmptyChunks(ctx *Context) {
	ctx.Chunks = utils.RemoveIf(ctx.Chunks, func(chunk Chunker) bool {
		return chunk.Kind() != ChunkKindHeader && chunk.GetShdr().Size == 0
	})
}

// AssignSectionIndices numbers every non-header chunk from 1 and
// records its name in .shstrtab.
func AssignSectionIndices(ctx *Context) error {
	shndx := int64(1)
	for _, chunk := range ctx.Chunks {
		if chunk.Kind() == ChunkKindHeader {
			continue
		}
		chunk.SetShndx(shndx)
		shndx++

		off, err := ctx.ShStrtab.AddName(chunk.GetName())
		if err != nil {
			return err
		}
		chunk.GetShdr().Name = off
	}
	return nil
}

func setOutputSectionOffsets(ctx *Context) uint64 {
	addr := ImageBase
	for _, chunk := range ctx.Chunks {
		if !isAlloc(chunk) {
			continue
		}

		shdr := chunk.GetShdr()
		addr = utils.AlignTo(addr, shdr.AddrAlign)
		shdr.Addr = addr

		if !isTbss(chunk) {
			addr += shdr.Size
		}
	}

	// the leading allocated run mirrors its memory image
	i := 0
	fileoff := uint64(0)
	first := ctx.Chunks[0].GetShdr()
	for ; i < len(ctx.Chunks); i++ {
		if !isAlloc(ctx.Chunks[i]) {
			break
		}
		shdr := ctx.Chunks[i].GetShdr()
		shdr.Offset = shdr.Addr - first.Addr
		if elf.SectionType(shdr.Type) != elf.SHT_NOBITS {
			fileoff = max(fileoff, shdr.Offset+shdr.Size)
		}
	}

	for ; i < len(ctx.Chunks); i++ {
		shdr := ctx.Chunks[i].GetShdr()
		fileoff = utils.AlignTo(fileoff, shdr.AddrAlign)
		shdr.Offset = fileoff
		if elf.SectionType(shdr.Type) != elf.SHT_NOBITS {
			fileoff += shdr.Size
		}
	}

	return fileoff
}

// SetOutputSectionOffsets assigns addresses and file offsets and
// returns the file size. The program header table is rebuilt until its
// size stops changing, since it is itself laid out.
func SetOutputSectionOffsets(ctx *Context) uint64 {
	for {
		fileSize := setOutputSectionOffsets(ctx)
		size := ctx.Phdr.Shdr.Size
		ctx.Phdr.UpdateShdr(ctx)
		if size == ctx.Phdr.Shdr.Size {
			return fileSize
		}
	}
}
