package linker

import (
	"debug/elf"
)

type ChunkKind uint8

const (
	ChunkKindHeader ChunkKind = iota
	ChunkKindOutputSection
	ChunkKindSynthetic
)

// Chunker is anything placed in the output file. Layout passes only
// see chunks through this interface.
type Chunker interface {
	Kind() ChunkKind
	GetName() string
	GetShdr() *Shdr
	GetShndx() int64
	SetShndx(idx int64)
	UpdateShdr(ctx *Context)
	CopyBuf(ctx *Context)
}

type Chunk struct {
	Name  string
	Shdr  Shdr
	Shndx int64
}

func NewChunk() Chunk {
	return Chunk{Shdr: Shdr{AddrAlign: 1}}
}

func (c *Chunk) Kind() ChunkKind {
	return ChunkKindSynthetic
}

func (c *Chunk) GetName() string {
	return c.Name
}

func (c *Chunk) GetShdr() *Shdr {
	return &c.Shdr
}

func (c *Chunk) GetShndx() int64 {
	return c.Shndx
}

func (c *Chunk) SetShndx(idx int64) {
	c.Shndx = idx
}

func (c *Chunk) UpdateShdr(ctx *Context) {}

func (c *Chunk) CopyBuf(ctx *Context) {}

func isTbss(chunk Chunker) bool {
	shdr := chunk.GetShdr()
	return elf.SectionType(shdr.Type) == elf.SHT_NOBITS &&
		shdr.Flags&uint64(elf.SHF_TLS) != 0
}

func isBss(chunk Chunker) bool {
	shdr := chunk.GetShdr()
	return elf.SectionType(shdr.Type) == elf.SHT_NOBITS &&
		shdr.Flags&uint64(elf.SHF_TLS) == 0
}

func isNote(chunk Chunker) bool {
	shdr := chunk.GetShdr()
	return elf.SectionType(shdr.Type) == elf.SHT_NOTE &&
		shdr.Flags&uint64(elf.SHF_ALLOC) != 0
}

func isTls(chunk Chunker) bool {
	return chunk.GetShdr().Flags&uint64(elf.SHF_TLS) != 0
}

func isAlloc(chunk Chunker) bool {
	return chunk.GetShdr().Flags&uint64(elf.SHF_ALLOC) != 0
}

func toPhdrFlags(chunk Chunker) uint32 {
	ret := uint32(elf.PF_R)
	write := chunk.GetShdr().Flags&uint64(elf.SHF_WRITE) != 0
	if write {
		ret |= uint32(elf.PF_W)
	}
	if chunk.GetShdr().Flags&uint64(elf.SHF_EXECINSTR) != 0 {
		ret |= uint32(elf.PF_X)
	}
	return ret
}
