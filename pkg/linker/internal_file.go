package linker

import (
	"debug/elf"
)

type SyntheticSymbols struct {
	InitArrayStart    SymbolID
	InitArrayEnd      SymbolID
	FiniArrayStart    SymbolID
	FiniArrayEnd      SymbolID
	PreinitArrayStart SymbolID
	PreinitArrayEnd   SymbolID
	GlobalPointer     SymbolID
}

// CreateInternalFile adds an object with no backing file that defines
// the linker-provided absolute symbols. It must run after GC so that
// real definitions bind first.
func CreateInternalFile(ctx *Context) {
	obj := &ObjectFile{IsAlive: true}
	ctx.addFile(obj)
	ctx.InternalObj = obj.ID

	ctx.InternalEsyms = []Sym{{}}
	obj.Symbols = []SymbolID{ctx.addSymbol("")}
	obj.FirstGlobal = 1

	add := func(name string) SymbolID {
		esym := Sym{
			Info:  uint8(elf.STB_GLOBAL)<<4 | uint8(elf.STT_NOTYPE),
			Shndx: uint16(elf.SHN_ABS),
		}
		ctx.InternalEsyms = append(ctx.InternalEsyms, esym)
		id := ctx.GetSymbolByName(name)
		obj.Symbols = append(obj.Symbols, id)
		return id
	}

	ctx.Synthetic = SyntheticSymbols{
		InitArrayStart:    add("__init_array_start"),
		InitArrayEnd:      add("__init_array_end"),
		FiniArrayStart:    add("__fini_array_start"),
		FiniArrayEnd:      add("__fini_array_end"),
		PreinitArrayStart: add("__preinit_array_start"),
		PreinitArrayEnd:   add("__preinit_array_end"),
		GlobalPointer:     add("__global_pointer$"),
	}
	obj.ElfSyms = ctx.InternalEsyms

	obj.ResolveSymbols(ctx)
}

// FixSyntheticSymbols gives the linker-provided symbols their final
// values. Symbols some input defines itself are left alone.
func FixSyntheticSymbols(ctx *Context) {
	if ctx.InternalObj == NoObject {
		return
	}

	set := func(id SymbolID, val uint64) {
		if sym := ctx.Symbol(id); sym.File == ctx.InternalObj {
			sym.Value = val
		}
	}

	bounds := func(typ elf.SectionType) (uint64, uint64) {
		for _, chunk := range ctx.Chunks {
			shdr := chunk.GetShdr()
			if elf.SectionType(shdr.Type) == typ {
				return shdr.Addr, shdr.Addr + shdr.Size
			}
		}
		return 0, 0
	}

	start, end := bounds(elf.SHT_INIT_ARRAY)
	set(ctx.Synthetic.InitArrayStart, start)
	set(ctx.Synthetic.InitArrayEnd, end)

	start, end = bounds(elf.SHT_FINI_ARRAY)
	set(ctx.Synthetic.FiniArrayStart, start)
	set(ctx.Synthetic.FiniArrayEnd, end)

	start, end = bounds(elf.SHT_PREINIT_ARRAY)
	set(ctx.Synthetic.PreinitArrayStart, start)
	set(ctx.Synthetic.PreinitArrayEnd, end)

	gp := uint64(0)
	for _, chunk := range ctx.Chunks {
		if chunk.GetName() == ".sdata" {
			gp = chunk.GetShdr().Addr + 0x800
			break
		}
	}
	if gp == 0 {
		for _, chunk := range ctx.Chunks {
			if chunk.Kind() != ChunkKindHeader && isAlloc(chunk) {
				gp = chunk.GetShdr().Addr + 0x800
				break
			}
		}
	}
	set(ctx.Synthetic.GlobalPointer, gp)
}
