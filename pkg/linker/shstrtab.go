package linker

import (
	"debug/elf"
)

// ShStrtabSection is the output .shstrtab. Names are added when
// section indices are assigned, so the section's own name is in it too.
type ShStrtabSection struct {
	Chunk
	Data    []byte
	offsets map[string]uint32
}

func NewShStrtabSection() *ShStrtabSection {
	s := &ShStrtabSection{Chunk: NewChunk()}
	s.Name = ".shstrtab"
	s.Shdr.Type = uint32(elf.SHT_STRTAB)
	s.reset()
	return s
}

func (s *ShStrtabSection) reset() {
	s.Data = []byte{0}
	s.offsets = map[string]uint32{"": 0}
	s.Shdr.Size = 1
}

// AddName returns the offset of name, appending it on first use.
func (s *ShStrtabSection) AddName(name string) (uint32, error) {
	if off, ok := s.offsets[name]; ok {
		return off, nil
	}
	bs, err := cString(name)
	if err != nil {
		return 0, newInputError("bad section name %q", name)
	}
	off := uint32(len(s.Data))
	s.Data = append(s.Data, bs...)
	s.offsets[name] = off
	s.Shdr.Size = uint64(len(s.Data))
	return off, nil
}

func (s *ShStrtabSection) CopyBuf(ctx *Context) {
	copy(ctx.Buf[s.Shdr.Offset:], s.Data)
}
