package linker

import (
	"debug/elf"

	"github.com/hcyang1106/rvld/pkg/utils"
)

// GotSection holds 8-byte slots: plain GOT entries hold the symbol
// address, GOT-TP entries hold the offset from the thread pointer.
type GotSection struct {
	Chunk
	GotSyms   []SymbolID
	GotTpSyms []SymbolID
}

func NewGotSection() *GotSection {
	g := &GotSection{Chunk: NewChunk()}
	g.Name = ".got"
	g.Shdr.Type = uint32(elf.SHT_PROGBITS)
	g.Shdr.Flags = uint64(elf.SHF_ALLOC | elf.SHF_WRITE)
	g.Shdr.AddrAlign = 8
	return g
}

func (g *GotSection) AddGotSymbol(ctx *Context, id SymbolID) {
	sym := ctx.Symbol(id)
	if sym.GotIdx >= 0 {
		return
	}
	sym.GotIdx = int32(g.Shdr.Size / 8)
	g.Shdr.Size += 8
	g.GotSyms = append(g.GotSyms, id)
}

func (g *GotSection) AddGotTpSymbol(ctx *Context, id SymbolID) {
	sym := ctx.Symbol(id)
	if sym.GotTpIdx >= 0 {
		return
	}
	sym.GotTpIdx = int32(g.Shdr.Size / 8)
	g.Shdr.Size += 8
	g.GotTpSyms = append(g.GotTpSyms, id)
}

func (g *GotSection) CopyBuf(ctx *Context) {
	base := ctx.Buf[g.Shdr.Offset:]
	for _, id := range g.GotSyms {
		sym := ctx.Symbol(id)
		var val uint64
		if sym.IsResolved() {
			val = sym.GetAddr(ctx)
		}
		utils.Write[uint64](base[sym.GotIdx*8:], val)
	}

	for _, id := range g.GotTpSyms {
		sym := ctx.Symbol(id)
		utils.Write[uint64](base[sym.GotTpIdx*8:], sym.GetAddr(ctx)-ctx.TpAddr)
	}
}
