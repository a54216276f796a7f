package linker

import (
	"debug/elf"
	"sort"

	"github.com/hcyang1106/rvld/pkg/utils"
)

type MergedSection struct {
	Chunk
	Idx MergedSectionID
	Map map[string]FragmentID
}

func NewMergedSection(name string, flags uint64, typ uint32, idx MergedSectionID) *MergedSection {
	m := &MergedSection{
		Chunk: NewChunk(),
		Idx:   idx,
		Map:   make(map[string]FragmentID),
	}
	m.Name = name
	m.Shdr.Flags = flags
	m.Shdr.Type = typ
	return m
}

// GetMergedSectionInstance returns the merged section for the output
// identity of (name, type, flags), creating it on first use.
func GetMergedSectionInstance(ctx *Context, name string, typ uint32, flags uint64) MergedSectionID {
	name = GetOutputName(name, flags)
	flags = flags &^ uint64(elf.SHF_GROUP) &^ uint64(elf.SHF_MERGE) &^
		uint64(elf.SHF_STRINGS) &^ uint64(elf.SHF_COMPRESSED)

	for _, m := range ctx.MergedSections {
		if name == m.Name && flags == m.Shdr.Flags && typ == m.Shdr.Type {
			return m.Idx
		}
	}

	idx := MergedSectionID(len(ctx.MergedSections))
	ctx.MergedSections = append(ctx.MergedSections, NewMergedSection(name, flags, typ, idx))
	return idx
}

// Insert returns the fragment for key. A repeated key keeps the larger
// alignment.
func (m *MergedSection) Insert(ctx *Context, key string, p2align uint8) FragmentID {
	id, ok := m.Map[key]
	if !ok {
		ctx.Fragments = append(ctx.Fragments, NewSectionFragment(m.Idx))
		id = FragmentID(len(ctx.Fragments) - 1)
		m.Map[key] = id
	}

	frag := ctx.Fragment(id)
	if frag.P2Align < p2align {
		frag.P2Align = p2align
	}
	return id
}

// AssignOffsets lays out live fragments sorted by alignment, length
// and content, so the result does not depend on map order.
func (m *MergedSection) AssignOffsets(ctx *Context) {
	type entry struct {
		key string
		id  FragmentID
	}
	fragments := make([]entry, 0, len(m.Map))
	for key, id := range m.Map {
		if ctx.Fragment(id).IsAlive {
			fragments = append(fragments, entry{key, id})
		}
	}

	sort.Slice(fragments, func(i, j int) bool {
		x := ctx.Fragment(fragments[i].id)
		y := ctx.Fragment(fragments[j].id)
		if x.P2Align != y.P2Align {
			return x.P2Align < y.P2Align
		}
		if len(fragments[i].key) != len(fragments[j].key) {
			return len(fragments[i].key) < len(fragments[j].key)
		}
		return fragments[i].key < fragments[j].key
	})

	offset := uint64(0)
	p2align := uint8(0)
	for _, e := range fragments {
		frag := ctx.Fragment(e.id)
		offset = utils.AlignTo(offset, 1<<frag.P2Align)
		frag.Offset = uint32(offset)
		offset += uint64(len(e.key))
		p2align = max(p2align, frag.P2Align)
	}

	m.Shdr.Size = utils.AlignTo(offset, 1<<p2align)
	m.Shdr.AddrAlign = 1 << p2align
}

func (m *MergedSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[m.Shdr.Offset:]
	for key, id := range m.Map {
		if frag := ctx.Fragment(id); frag.IsAlive {
			copy(buf[frag.Offset:], key)
		}
	}
}
