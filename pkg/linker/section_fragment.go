package linker

import "math"

type SectionFragment struct {
	OutputSection MergedSectionID
	Offset        uint32
	P2Align       uint8
	IsAlive       bool
}

func NewSectionFragment(m MergedSectionID) SectionFragment {
	return SectionFragment{
		OutputSection: m,
		Offset:        math.MaxUint32,
	}
}

func (s *SectionFragment) GetAddr(ctx *Context) uint64 {
	return ctx.MergedSections[s.OutputSection].Shdr.Addr + uint64(s.Offset)
}
