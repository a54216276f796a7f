package utils

import "testing"

func TestAlignTo(t *testing.T) {
	tests := []struct{ val, align, want uint64 }{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 4, 12},
		{5, 0, 5},
		{5, 1, 5},
	}
	for _, tt := range tests {
		if got := AlignTo(tt.val, tt.align); got != tt.want {
			t.Errorf("AlignTo(%d, %d) = %d, want %d", tt.val, tt.align, got, tt.want)
		}
	}
}

func TestSignExtend(t *testing.T) {
	if got := SignExtend(0x800, 11); got != 0xffff_ffff_ffff_f800 {
		t.Errorf("got %#x", got)
	}
	if got := SignExtend(0x7ff, 11); got != 0x7ff {
		t.Errorf("got %#x", got)
	}
	if got := SignExtend(0x1234_5678, 11); got != 0x678 {
		t.Errorf("upper bits must be dropped, got %#x", got)
	}
}

func TestBits(t *testing.T) {
	if got := Bits(uint32(0b1011_0110), 5, 2); got != 0b1101 {
		t.Errorf("Bits = %b", got)
	}
	if got := Bit(uint16(0x8000), 15); got != 1 {
		t.Errorf("Bit = %d", got)
	}
	if got := Bits(uint32(0xffff_ffff), 31, 0); got != 0xffff_ffff {
		t.Errorf("full width Bits = %#x", got)
	}
}

func TestRemoveIf(t *testing.T) {
	got := RemoveIf([]int{1, 2, 3, 4, 5, 6}, func(i int) bool { return i%2 == 0 })
	if len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 5 {
		t.Errorf("got %v", got)
	}
}

func TestAddDashes(t *testing.T) {
	if got := AddDashes("o"); len(got) != 1 || got[0] != "-o" {
		t.Errorf("got %v", got)
	}
	if got := AddDashes("output"); len(got) != 2 || got[1] != "--output" {
		t.Errorf("got %v", got)
	}
}

func TestReadWrite(t *testing.T) {
	buf := make([]byte, 8)
	Write[uint32](buf[2:], 0xdeadbeef)
	var v uint32
	Read[uint32](buf[2:], &v)
	if v != 0xdeadbeef || buf[2] != 0xef {
		t.Errorf("got %#x, buf %x", v, buf)
	}
}

func TestIsInt(t *testing.T) {
	tests := []struct {
		val  int64
		bits int
		want bool
	}{
		{4095, 13, true},
		{-4096, 13, true},
		{4096, 13, false},
		{-4097, 13, false},
		{1<<31 - 1, 32, true},
		{1 << 31, 32, false},
		{-1 << 31, 32, true},
	}
	for _, tt := range tests {
		if got := IsInt(tt.val, tt.bits); got != tt.want {
			t.Errorf("IsInt(%d, %d) = %v, want %v", tt.val, tt.bits, got, tt.want)
		}
	}
}
