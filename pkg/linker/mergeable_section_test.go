package linker

import "testing"

func TestGetFragment(t *testing.T) {
	m := &MergeableSection{
		FragOffsets: []uint32{4, 10, 16},
		Fragments:   []FragmentID{7, 8, 9},
	}

	if _, _, ok := m.GetFragment(3); ok {
		t.Error("offset before the first fragment must not resolve")
	}

	tests := []struct {
		offset uint32
		frag   FragmentID
		inner  uint32
	}{
		{4, 7, 0},
		{9, 7, 5},
		{10, 8, 0},
		{15, 8, 5},
		{16, 9, 0},
		{40, 9, 24},
	}
	for _, tt := range tests {
		frag, inner, ok := m.GetFragment(tt.offset)
		if !ok || frag != tt.frag || inner != tt.inner {
			t.Errorf("GetFragment(%d) = %d, %d, %v; want %d, %d", tt.offset, frag, inner, ok, tt.frag, tt.inner)
		}
	}
}

func TestMergedSectionInsert(t *testing.T) {
	ctx := NewContext()
	id := GetMergedSectionInstance(ctx, ".rodata.str1.1", 1, 0x32)
	if again := GetMergedSectionInstance(ctx, ".rodata.str1.8", 1, 0x32); again != id {
		t.Errorf("same output name gave a second merged section")
	}
	m := ctx.MergedSections[id]
	if m.Name != ".rodata.str" {
		t.Errorf("name = %q", m.Name)
	}

	a := m.Insert(ctx, "abc\x00", 0)
	b := m.Insert(ctx, "abc\x00", 3)
	if a != b {
		t.Fatalf("duplicate key gave fragments %d and %d", a, b)
	}
	if p := ctx.Fragment(a).P2Align; p != 3 {
		t.Errorf("p2align = %d, want the larger 3", p)
	}
	m.Insert(ctx, "abc\x00", 1)
	if p := ctx.Fragment(a).P2Align; p != 3 {
		t.Errorf("p2align dropped to %d", p)
	}
}

func TestMergedSectionAssignOffsets(t *testing.T) {
	ctx := NewContext()
	m := ctx.MergedSections[GetMergedSectionInstance(ctx, ".rodata", 1, 0x2)]

	keys := []struct {
		key     string
		p2align uint8
		alive   bool
	}{
		{"zz\x00", 0, true},
		{"a\x00", 0, true},
		{"dead\x00", 0, false},
		{"word", 2, true},
	}
	ids := map[string]FragmentID{}
	for _, k := range keys {
		id := m.Insert(ctx, k.key, k.p2align)
		ctx.Fragment(id).IsAlive = k.alive
		ids[k.key] = id
	}

	m.AssignOffsets(ctx)

	// a\0 at 0, zz\0 at 2, word rounded up to 8
	want := map[string]uint32{"a\x00": 0, "zz\x00": 2, "word": 8}
	for key, off := range want {
		if got := ctx.Fragment(ids[key]).Offset; got != off {
			t.Errorf("%q at %d, want %d", key, got, off)
		}
	}
	if m.Shdr.Size != 12 || m.Shdr.AddrAlign != 4 {
		t.Errorf("size %d align %d, want 12 and 4", m.Shdr.Size, m.Shdr.AddrAlign)
	}
}
