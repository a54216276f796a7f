package linker

import (
	"github.com/hcyang1106/rvld/pkg/utils"
)

const (
	NeedsGotTp uint32 = 1 << 0
	NeedsGot   uint32 = 1 << 1
)

type LocationKind uint8

const (
	LocationNone LocationKind = iota
	LocationSection
	LocationFragment
)

// SymbolLocation is where a defined symbol lives: an input section or a
// section fragment. Absolute and unresolved symbols have LocationNone.
type SymbolLocation struct {
	Kind     LocationKind
	Section  InputSectionID
	Fragment FragmentID
}

var noLocation = SymbolLocation{Kind: LocationNone, Section: NoSection, Fragment: NoFragment}

type Symbol struct {
	File     ObjectID
	Name     string
	Value    uint64
	SymIdx   int32
	GotIdx   int32
	GotTpIdx int32
	Loc      SymbolLocation
	Flags    uint32
}

func NewSymbol(name string) *Symbol {
	return &Symbol{
		File:     NoObject,
		Name:     name,
		SymIdx:   -1,
		GotIdx:   -1,
		GotTpIdx: -1,
		Loc:      noLocation,
	}
}

func (s *Symbol) SetInputSection(id InputSectionID) {
	s.Loc = SymbolLocation{Kind: LocationSection, Section: id, Fragment: NoFragment}
}

func (s *Symbol) SetSectionFragment(id FragmentID) {
	s.Loc = SymbolLocation{Kind: LocationFragment, Section: NoSection, Fragment: id}
}

func (s *Symbol) InputSection() InputSectionID {
	if s.Loc.Kind != LocationSection {
		return NoSection
	}
	return s.Loc.Section
}

// Clear turns s back into an unresolved symbol.
func (s *Symbol) Clear() {
	s.File = NoObject
	s.Loc = noLocation
	s.SymIdx = -1
	s.Value = 0
}

func (s *Symbol) IsResolved() bool {
	return s.File != NoObject
}

func (s *Symbol) ElfSym(ctx *Context) *Sym {
	utils.Assert(s.File != NoObject && s.SymIdx >= 0)
	obj := ctx.File(s.File)
	utils.Assert(int(s.SymIdx) < len(obj.ElfSyms))
	return &obj.ElfSyms[s.SymIdx]
}

func (s *Symbol) GetAddr(ctx *Context) uint64 {
	switch s.Loc.Kind {
	case LocationFragment:
		return ctx.Fragment(s.Loc.Fragment).GetAddr(ctx) + s.Value
	case LocationSection:
		return ctx.Section(s.Loc.Section).GetAddr(ctx) + s.Value
	}
	return s.Value
}

func (s *Symbol) GetGotTpAddr(ctx *Context) uint64 {
	utils.Assert(s.GotTpIdx >= 0)
	return ctx.Got.Shdr.Addr + uint64(s.GotTpIdx)*8
}

func (s *Symbol) GetGotAddr(ctx *Context) uint64 {
	utils.Assert(s.GotIdx >= 0)
	return ctx.Got.Shdr.Addr + uint64(s.GotIdx)*8
}
