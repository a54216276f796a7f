package linker

import (
	"debug/elf"
	"math"
	"math/bits"

	"github.com/hcyang1106/rvld/pkg/utils"
)

// FragmentRef redirects a relocation against a section symbol of a
// split section to the fragment holding its target.
type FragmentRef struct {
	Frag   FragmentID
	Addend int64
}

type InputSection struct {
	File          ObjectID
	Contents      []byte
	Shndx         uint32
	ShSize        uint32
	IsAlive       bool
	P2Align       uint8
	Offset        uint32
	OutputSection OutputSectionID
	RelsecIdx     uint32
	Rels          []Rela
	RelFragments  map[int]FragmentRef // keyed by index into Rels
}

func NewInputSection(ctx *Context, obj *ObjectFile, shndx uint32) (*InputSection, error) {
	s := &InputSection{
		File:          obj.ID,
		Shndx:         shndx,
		IsAlive:       true,
		Offset:        math.MaxUint32,
		OutputSection: -1,
		RelsecIdx:     math.MaxUint32,
	}

	shdr := &obj.ElfSecHdrs[shndx]
	if shdr.Flags&uint64(elf.SHF_COMPRESSED) != 0 {
		return nil, newInputError("compressed section %s is not supported",
			ElfGetName(obj.ShStrTab, shdr.Name))
	}
	contents, err := obj.GetBytesFromShdr(shdr)
	if err != nil {
		return nil, err
	}
	s.Contents = contents
	if shdr.Size > math.MaxUint32 {
		return nil, newInputError("section too large: %d", shdr.Size)
	}
	s.ShSize = uint32(shdr.Size)

	if shdr.AddrAlign > 0 {
		if shdr.AddrAlign&(shdr.AddrAlign-1) != 0 {
			return nil, newInputError("bad section alignment: %d", shdr.AddrAlign)
		}
		s.P2Align = uint8(bits.TrailingZeros64(shdr.AddrAlign))
	}

	return s, nil
}

func (i *InputSection) Obj(ctx *Context) *ObjectFile {
	return ctx.File(i.File)
}

func (i *InputSection) Shdr(ctx *Context) *Shdr {
	obj := i.Obj(ctx)
	utils.Assert(i.Shndx < uint32(len(obj.ElfSecHdrs)))
	return &obj.ElfSecHdrs[i.Shndx]
}

func (i *InputSection) Name(ctx *Context) string {
	return ElfGetName(i.Obj(ctx).ShStrTab, i.Shdr(ctx).Name)
}

func (i *InputSection) GetAddr(ctx *Context) uint64 {
	return ctx.OutputSections[i.OutputSection].Shdr.Addr + uint64(i.Offset)
}

// GetRels reads the section's RELA entries on first use.
func (i *InputSection) GetRels(ctx *Context) ([]Rela, error) {
	if i.RelsecIdx == math.MaxUint32 || i.Rels != nil {
		return i.Rels, nil
	}

	bs, err := i.Obj(ctx).GetBytesFromIdx(i.RelsecIdx)
	if err != nil {
		return nil, err
	}
	if len(bs)%RelaSize != 0 {
		return nil, newInputError("relocation section size is not a multiple of %d", RelaSize)
	}
	if len(bs) == 0 {
		i.Rels = []Rela{}
		return i.Rels, nil
	}
	i.Rels = utils.ReadSlice[Rela](bs, RelaSize)
	return i.Rels, nil
}

func (i *InputSection) WriteTo(ctx *Context, buf []byte) {
	if elf.SectionType(i.Shdr(ctx).Type) == elf.SHT_NOBITS || i.ShSize == 0 {
		return
	}

	copy(buf, i.Contents)

	if i.Shdr(ctx).Flags&uint64(elf.SHF_ALLOC) != 0 {
		i.ApplyRelocAlloc(ctx, buf)
	}
}

// ScanRelocations flags symbols that need GOT slots and rejects
// references that can never be resolved.
func (i *InputSection) ScanRelocations(ctx *Context) error {
	rels, err := i.GetRels(ctx)
	if err != nil {
		return err
	}
	obj := i.Obj(ctx)

	for r, rel := range rels {
		typ := elf.R_RISCV(rel.Type)
		size := relocSize(typ)
		if size < 0 {
			return newInputError("%s: unknown relocation type: %v", i.Name(ctx), typ)
		}
		if rel.Offset+uint64(size) > uint64(i.ShSize) {
			return newInputError("%s: relocation offset out of range: %d", i.Name(ctx), rel.Offset)
		}
		if rel.Sym >= uint32(len(obj.Symbols)) {
			return newInputError("%s: bad symbol index: %d", i.Name(ctx), rel.Sym)
		}
		if rel.Sym == 0 {
			continue
		}

		sym := ctx.Symbol(obj.Symbols[rel.Sym])
		if !sym.IsResolved() && !obj.ElfSyms[rel.Sym].IsWeak() {
			return newInputError("undefined symbol: %s", sym.Name)
		}
		if sym.IsResolved() && !ctx.File(sym.File).IsAlive {
			return newInternalError("%s is bound to dropped object %s", sym.Name, ctx.File(sym.File).Name())
		}
		if _, ok := i.RelFragments[r]; !ok {
			if isec := ctx.Section(sym.InputSection()); isec != nil && !isec.IsAlive {
				return newInputError("%s: reference to discarded section %s: %s",
					i.Name(ctx), isec.Name(ctx), sym.Name)
			}
		}

		switch typ {
		case elf.R_RISCV_TLS_GOT_HI20:
			sym.Flags |= NeedsGotTp
		case elf.R_RISCV_GOT_HI20:
			sym.Flags |= NeedsGot
		}
	}
	return nil
}
