package linker

import "sort"

// MergeableSection is an input section cut into fragment keys.
// Strs, FragOffsets and Fragments are parallel.
type MergeableSection struct {
	Parent      MergedSectionID
	P2Align     uint8
	Strs        []string
	FragOffsets []uint32
	Fragments   []FragmentID
}

// GetFragment returns the fragment covering offset and the offset
// inside it. ok is false when offset precedes the first fragment.
func (m *MergeableSection) GetFragment(offset uint32) (FragmentID, uint32, bool) {
	pos := sort.Search(len(m.FragOffsets), func(i int) bool {
		return offset < m.FragOffsets[i]
	})
	if pos == 0 {
		return NoFragment, 0, false
	}

	idx := pos - 1
	return m.Fragments[idx], offset - m.FragOffsets[idx], true
}
