package linker

import (
	"debug/elf"
	"strings"
)

type OutputSection struct {
	Chunk
	Members []InputSectionID
	Idx     OutputSectionID
}

func NewOutputSection(name string, typ uint32, flags uint64, idx OutputSectionID) *OutputSection {
	o := &OutputSection{Chunk: NewChunk()}
	o.Name = name
	o.Shdr.Type = typ
	o.Shdr.Flags = flags
	o.Idx = idx
	return o
}

func (o *OutputSection) Kind() ChunkKind {
	return ChunkKindOutputSection
}

func (o *OutputSection) CopyBuf(ctx *Context) {
	if elf.SectionType(o.Shdr.Type) == elf.SHT_NOBITS {
		return
	}

	base := ctx.Buf[o.Shdr.Offset:]
	for _, id := range o.Members {
		isec := ctx.Section(id)
		isec.WriteTo(ctx, base[isec.Offset:])
	}
}

// GetOutputSection finds or creates the output section an input section
// named name with the given type and flags is binned into.
func GetOutputSection(ctx *Context, name string, typ uint64, flags uint64) OutputSectionID {
	name = GetOutputName(name, flags)
	flags = flags &^ uint64(elf.SHF_GROUP) &^ uint64(elf.SHF_COMPRESSED) &^
		uint64(elf.SHF_LINK_ORDER)

	for _, osec := range ctx.OutputSections {
		if name == osec.Name && typ == uint64(osec.Shdr.Type) && flags == osec.Shdr.Flags {
			return osec.Idx
		}
	}

	idx := OutputSectionID(len(ctx.OutputSections))
	ctx.OutputSections = append(ctx.OutputSections, NewOutputSection(name, uint32(typ), flags, idx))
	return idx
}

var prefixes = []string{
	".text.", ".data.rel.ro.", ".data.", ".rodata.", ".bss.rel.ro.", ".bss.",
	".init_array.", ".fini_array.", ".preinit_array.", ".tbss.", ".tdata.",
	".gcc_except_table.", ".ctors.", ".dtors.", ".sdata.", ".sbss.", ".srodata.",
}

func GetOutputName(name string, flags uint64) string {
	if (name == ".rodata" || strings.HasPrefix(name, ".rodata.")) &&
		flags&uint64(elf.SHF_MERGE) != 0 {
		if flags&uint64(elf.SHF_STRINGS) != 0 {
			return ".rodata.str"
		}
		return ".rodata.cst"
	}

	for _, prefix := range prefixes {
		stem := prefix[:len(prefix)-1]
		if name == stem || strings.HasPrefix(name, prefix) {
			return stem
		}
	}

	return name
}
