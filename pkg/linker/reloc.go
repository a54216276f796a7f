package linker

import (
	"debug/elf"

	"github.com/hcyang1106/rvld/pkg/utils"
)

// relocSize is the number of bytes a relocation patches, -1 if the
// type is not supported.
func relocSize(typ elf.R_RISCV) int {
	switch typ {
	case elf.R_RISCV_NONE, elf.R_RISCV_RELAX, elf.R_RISCV_ALIGN, elf.R_RISCV_TPREL_ADD:
		return 0
	case elf.R_RISCV_ADD8, elf.R_RISCV_SUB8, elf.R_RISCV_SET8,
		elf.R_RISCV_SUB6, elf.R_RISCV_SET6:
		return 1
	case elf.R_RISCV_ADD16, elf.R_RISCV_SUB16, elf.R_RISCV_SET16,
		elf.R_RISCV_RVC_BRANCH, elf.R_RISCV_RVC_JUMP:
		return 2
	case elf.R_RISCV_32, elf.R_RISCV_ADD32, elf.R_RISCV_SUB32, elf.R_RISCV_SET32,
		elf.R_RISCV_32_PCREL, elf.R_RISCV_BRANCH, elf.R_RISCV_JAL,
		elf.R_RISCV_GOT_HI20, elf.R_RISCV_TLS_GOT_HI20, elf.R_RISCV_PCREL_HI20,
		elf.R_RISCV_PCREL_LO12_I, elf.R_RISCV_PCREL_LO12_S,
		elf.R_RISCV_HI20, elf.R_RISCV_LO12_I, elf.R_RISCV_LO12_S,
		elf.R_RISCV_TPREL_HI20, elf.R_RISCV_TPREL_LO12_I, elf.R_RISCV_TPREL_LO12_S:
		return 4
	case elf.R_RISCV_64, elf.R_RISCV_ADD64, elf.R_RISCV_SUB64,
		elf.R_RISCV_CALL, elf.R_RISCV_CALL_PLT:
		return 8
	}
	return -1
}

// symbol address and addend for rel, with section-symbol references
// into split sections redirected to their fragment
func (i *InputSection) relocTarget(ctx *Context, idx int, rel *Rela) (uint64, uint64) {
	if ref, ok := i.RelFragments[idx]; ok {
		return ctx.Fragment(ref.Frag).GetAddr(ctx), uint64(ref.Addend)
	}
	sym := ctx.Symbol(i.Obj(ctx).Symbols[rel.Sym])
	return sym.GetAddr(ctx), uint64(rel.Addend)
}

// relocBits is the signed width of the value typ encodes, 0 if typ is
// not range checked. HI20 values are paired with a sign-extended LO12,
// so they are checked after rounding.
func relocBits(typ elf.R_RISCV) int {
	switch typ {
	case elf.R_RISCV_BRANCH:
		return 13
	case elf.R_RISCV_JAL:
		return 21
	case elf.R_RISCV_RVC_BRANCH:
		return 9
	case elf.R_RISCV_RVC_JUMP:
		return 12
	case elf.R_RISCV_32_PCREL, elf.R_RISCV_CALL, elf.R_RISCV_CALL_PLT,
		elf.R_RISCV_PCREL_HI20, elf.R_RISCV_GOT_HI20, elf.R_RISCV_TLS_GOT_HI20,
		elf.R_RISCV_HI20, elf.R_RISCV_TPREL_HI20:
		return 32
	}
	return 0
}

func (i *InputSection) CheckRelocations(ctx *Context) error {
	rels, err := i.GetRels(ctx)
	if err != nil {
		return err
	}
	obj := i.Obj(ctx)

	for a := range rels {
		rel := &rels[a]
		typ := elf.R_RISCV(rel.Type)
		n := relocBits(typ)
		if n == 0 || rel.Sym == 0 {
			continue
		}

		sym := ctx.Symbol(obj.Symbols[rel.Sym])
		if _, ok := i.RelFragments[a]; !ok && !sym.IsResolved() {
			continue
		}

		S, A := i.relocTarget(ctx, a, rel)
		P := i.GetAddr(ctx) + rel.Offset

		var val uint64
		switch typ {
		case elf.R_RISCV_GOT_HI20:
			val = sym.GetGotAddr(ctx) + A - P
		case elf.R_RISCV_TLS_GOT_HI20:
			val = sym.GetGotTpAddr(ctx) + A - P
		case elf.R_RISCV_HI20:
			val = S + A
		case elf.R_RISCV_TPREL_HI20:
			val = S + A - ctx.TpAddr
		default:
			val = S + A - P
		}

		if n == 32 && typ != elf.R_RISCV_32_PCREL {
			val += 0x800
		}
		if !utils.IsInt(int64(val), n) {
			return newInputError("%s: relocation %v against %s is out of range: %d",
				i.Name(ctx), typ, sym.Name, int64(val))
		}
	}
	return nil
}

// ApplyRelocAlloc patches base, the output bytes of i, in three passes.
// HI20 sites first receive the raw 32-bit value so PCREL_LO12 sites
// can pick up their low half, then get their U-type immediate.
func (i *InputSection) ApplyRelocAlloc(ctx *Context, base []byte) {
	rels, err := i.GetRels(ctx)
	utils.MustNo(err)
	obj := i.Obj(ctx)

	for a := range rels {
		rel := &rels[a]
		typ := elf.R_RISCV(rel.Type)
		if relocSize(typ) <= 0 {
			continue
		}

		sym := ctx.Symbol(obj.Symbols[rel.Sym])
		loc := base[rel.Offset:]

		S, A := i.relocTarget(ctx, a, rel)
		P := i.GetAddr(ctx) + rel.Offset

		switch typ {
		case elf.R_RISCV_32:
			utils.Write[uint32](loc, uint32(S+A))
		case elf.R_RISCV_64:
			utils.Write[uint64](loc, S+A)
		case elf.R_RISCV_32_PCREL:
			utils.Write[uint32](loc, uint32(S+A-P))
		case elf.R_RISCV_BRANCH:
			writeBtype(loc, uint32(S+A-P))
		case elf.R_RISCV_JAL:
			writeJtype(loc, uint32(S+A-P))
		case elf.R_RISCV_RVC_BRANCH:
			writeCBtype(loc, uint16(S+A-P))
		case elf.R_RISCV_RVC_JUMP:
			writeCJtype(loc, uint16(S+A-P))
		case elf.R_RISCV_CALL, elf.R_RISCV_CALL_PLT:
			val := uint32(S + A - P)
			writeUtype(loc, val)
			writeItype(loc[4:], val)
		case elf.R_RISCV_GOT_HI20:
			utils.Write[uint32](loc, uint32(sym.GetGotAddr(ctx)+A-P))
		case elf.R_RISCV_TLS_GOT_HI20:
			utils.Write[uint32](loc, uint32(sym.GetGotTpAddr(ctx)+A-P))
		case elf.R_RISCV_PCREL_HI20:
			utils.Write[uint32](loc, uint32(S+A-P))
		case elf.R_RISCV_HI20:
			writeUtype(loc, uint32(S+A))
		case elf.R_RISCV_TPREL_HI20:
			writeUtype(loc, uint32(S+A-ctx.TpAddr))
		case elf.R_RISCV_LO12_I, elf.R_RISCV_LO12_S:
			val := S + A
			if typ == elf.R_RISCV_LO12_I {
				writeItype(loc, uint32(val))
			} else {
				writeStype(loc, uint32(val))
			}

			if utils.SignExtend(val, 11) == val {
				setRs1(loc, 0)
			}
		case elf.R_RISCV_TPREL_LO12_I, elf.R_RISCV_TPREL_LO12_S:
			val := S + A - ctx.TpAddr
			if typ == elf.R_RISCV_TPREL_LO12_I {
				writeItype(loc, uint32(val))
			} else {
				writeStype(loc, uint32(val))
			}

			if utils.SignExtend(val, 11) == val {
				setRs1(loc, 4)
			}
		case elf.R_RISCV_ADD8:
			loc[0] += uint8(S + A)
		case elf.R_RISCV_ADD16:
			utils.Write[uint16](loc, read16(loc)+uint16(S+A))
		case elf.R_RISCV_ADD32:
			utils.Write[uint32](loc, read32(loc)+uint32(S+A))
		case elf.R_RISCV_ADD64:
			utils.Write[uint64](loc, read64(loc)+(S+A))
		case elf.R_RISCV_SUB8:
			loc[0] -= uint8(S + A)
		case elf.R_RISCV_SUB16:
			utils.Write[uint16](loc, read16(loc)-uint16(S+A))
		case elf.R_RISCV_SUB32:
			utils.Write[uint32](loc, read32(loc)-uint32(S+A))
		case elf.R_RISCV_SUB64:
			utils.Write[uint64](loc, read64(loc)-(S+A))
		case elf.R_RISCV_SUB6:
			loc[0] = loc[0]&0b1100_0000 | (loc[0]-uint8(S+A))&0b0011_1111
		case elf.R_RISCV_SET6:
			loc[0] = loc[0]&0b1100_0000 | uint8(S+A)&0b0011_1111
		case elf.R_RISCV_SET8:
			loc[0] = uint8(S + A)
		case elf.R_RISCV_SET16:
			utils.Write[uint16](loc, uint16(S+A))
		case elf.R_RISCV_SET32:
			utils.Write[uint32](loc, uint32(S+A))
		}
	}

	for a := range rels {
		typ := elf.R_RISCV(rels[a].Type)
		switch typ {
		case elf.R_RISCV_PCREL_LO12_I, elf.R_RISCV_PCREL_LO12_S:
			// the symbol labels the paired HI20 instruction
			sym := ctx.Symbol(obj.Symbols[rels[a].Sym])
			utils.Assert(ctx.Section(sym.InputSection()) == i)
			loc := base[rels[a].Offset:]
			val := read32(base[sym.Value:])

			if typ == elf.R_RISCV_PCREL_LO12_I {
				writeItype(loc, val)
			} else {
				writeStype(loc, val)
			}
		}
	}

	for a := range rels {
		switch elf.R_RISCV(rels[a].Type) {
		case elf.R_RISCV_PCREL_HI20, elf.R_RISCV_GOT_HI20, elf.R_RISCV_TLS_GOT_HI20:
			loc := base[rels[a].Offset:]
			val := read32(loc)
			utils.Write[uint32](loc, read32(i.Contents[rels[a].Offset:]))
			writeUtype(loc, val)
		}
	}
}
