package linker

import (
	"debug/elf"

	"github.com/hcyang1106/rvld/pkg/utils"
)

type OutputPhdr struct {
	Chunk
	Phdrs []Phdr
}

func NewOutputPhdr() *OutputPhdr {
	o := &OutputPhdr{Chunk: NewChunk()}
	o.Name = "phdr"
	o.Shdr.Flags = uint64(elf.SHF_ALLOC)
	o.Shdr.AddrAlign = 8
	return o
}

func (o *OutputPhdr) Kind() ChunkKind {
	return ChunkKindHeader
}

func (o *OutputPhdr) UpdateShdr(ctx *Context) {
	o.Phdrs = createPhdr(ctx)
	o.Shdr.Size = uint64(len(o.Phdrs)) * uint64(PhdrSize)
}

func (o *OutputPhdr) CopyBuf(ctx *Context) {
	start := ctx.Buf[o.Shdr.Offset:]
	for _, phdr := range o.Phdrs {
		utils.Write[Phdr](start, phdr)
		start = start[PhdrSize:]
	}
}

// file size is what the segment takes in the file, mem size what it
// occupies once loaded; they differ by the trailing bss
func createPhdr(ctx *Context) []Phdr {
	vec := make([]Phdr, 0)

	define := func(typ, flags uint32, minAlign uint64, chunk Chunker) {
		shdr := chunk.GetShdr()
		phdr := Phdr{
			Type:    typ,
			Flags:   flags,
			Align:   max(minAlign, shdr.AddrAlign),
			Offset:  shdr.Offset,
			VAddr:   shdr.Addr,
			PAddr:   shdr.Addr,
			MemSize: shdr.Size,
		}
		if elf.SectionType(shdr.Type) != elf.SHT_NOBITS {
			phdr.FileSize = shdr.Size
		}
		vec = append(vec, phdr)
	}

	// extends the last segment up to the end of chunk
	push := func(chunk Chunker) {
		shdr := chunk.GetShdr()
		phdr := &vec[len(vec)-1]
		phdr.Align = max(phdr.Align, shdr.AddrAlign)
		if elf.SectionType(shdr.Type) != elf.SHT_NOBITS {
			phdr.FileSize = shdr.Addr + shdr.Size - phdr.VAddr
		}
		phdr.MemSize = shdr.Addr + shdr.Size - phdr.VAddr
	}

	define(uint32(elf.PT_PHDR), uint32(elf.PF_R), 8, ctx.Phdr)

	chunks := ctx.Chunks
	for i := 0; i < len(chunks); {
		first := chunks[i]
		i++
		if !isNote(first) {
			continue
		}

		flags := toPhdrFlags(first)
		define(uint32(elf.PT_NOTE), flags, first.GetShdr().AddrAlign, first)
		for i < len(chunks) && isNote(chunks[i]) && toPhdrFlags(chunks[i]) == flags {
			push(chunks[i])
			i++
		}
	}

	// tbss takes no room in the loaded image
	loadable := utils.RemoveIf(append([]Chunker(nil), chunks...), isTbss)
	for i := 0; i < len(loadable); {
		first := loadable[i]
		i++
		if !isAlloc(first) {
			break
		}

		flags := toPhdrFlags(first)
		define(uint32(elf.PT_LOAD), flags, PageSize, first)

		if !isBss(first) {
			for i < len(loadable) && !isBss(loadable[i]) && toPhdrFlags(loadable[i]) == flags {
				push(loadable[i])
				i++
			}
		}
		for i < len(loadable) && isBss(loadable[i]) && toPhdrFlags(loadable[i]) == flags {
			push(loadable[i])
			i++
		}
	}

	for i := 0; i < len(chunks); i++ {
		if !isTls(chunks[i]) {
			continue
		}

		define(uint32(elf.PT_TLS), toPhdrFlags(chunks[i]), 1, chunks[i])
		i++
		for i < len(chunks) && isTls(chunks[i]) {
			push(chunks[i])
			i++
		}

		ctx.TpAddr = vec[len(vec)-1].VAddr
	}

	return vec
}
