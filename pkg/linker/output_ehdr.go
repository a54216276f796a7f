package linker

import (
	"debug/elf"

	"github.com/hcyang1106/rvld/pkg/utils"
)

type OutputEhdr struct {
	Chunk
}

func NewOutputEhdr() *OutputEhdr {
	return &OutputEhdr{
		Chunk{
			Name: "ehdr",
			Shdr: Shdr{
				Flags:     uint64(elf.SHF_ALLOC),
				Size:      uint64(EhdrSize),
				AddrAlign: 8,
			},
		},
	}
}

func (o *OutputEhdr) Kind() ChunkKind {
	return ChunkKindHeader
}

// _start if something defines it, otherwise the start of .text
func getEntryAddr(ctx *Context) uint64 {
	if id, ok := ctx.SymbolMap["_start"]; ok {
		if sym := ctx.Symbol(id); sym.IsResolved() {
			return sym.GetAddr(ctx)
		}
	}
	for _, osec := range ctx.OutputSections {
		if osec.Name == ".text" {
			return osec.Shdr.Addr
		}
	}
	return 0
}

// the first object's flags, plus RVC if any object uses compressed instructions
func getFlags(ctx *Context) uint32 {
	var flags uint32
	first := true
	for _, obj := range ctx.LiveObjects() {
		if obj.File == nil {
			continue
		}
		if first {
			flags = obj.GetEhdr().Flags
			first = false
			continue
		}
		if obj.GetEhdr().Flags&EF_RISCV_RVC != 0 {
			flags |= EF_RISCV_RVC
		}
	}
	return flags
}

func (o *OutputEhdr) CopyBuf(ctx *Context) {
	ehdr := Ehdr{}
	WriteMagic(ehdr.Ident[:])
	ehdr.Ident[elf.EI_CLASS] = uint8(elf.ELFCLASS64)
	ehdr.Ident[elf.EI_DATA] = uint8(elf.ELFDATA2LSB)
	ehdr.Ident[elf.EI_VERSION] = uint8(elf.EV_CURRENT)
	ehdr.Ident[elf.EI_OSABI] = 0
	ehdr.Ident[elf.EI_ABIVERSION] = 0
	ehdr.Type = uint16(elf.ET_EXEC)
	ehdr.Machine = uint16(elf.EM_RISCV)
	ehdr.Version = uint32(elf.EV_CURRENT)
	ehdr.Entry = getEntryAddr(ctx)
	ehdr.PhOff = ctx.Phdr.Shdr.Offset
	ehdr.ShOff = ctx.Shdr.Shdr.Offset
	ehdr.Flags = getFlags(ctx)
	ehdr.EhSize = uint16(EhdrSize)
	ehdr.PhEntSize = uint16(PhdrSize)
	ehdr.PhNum = uint16(ctx.Phdr.Shdr.Size / uint64(PhdrSize))
	ehdr.ShEntSize = uint16(ShdrSize)
	ehdr.ShNum = uint16(ctx.Shdr.Shdr.Size / uint64(ShdrSize))
	ehdr.ShStrndx = uint16(ctx.ShStrtab.Shndx)

	utils.Write[Ehdr](ctx.Buf[o.Shdr.Offset:], ehdr)
}
