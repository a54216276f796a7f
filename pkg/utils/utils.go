package utils

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
)

type Uint interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

func Fatal(v any) {
	fmt.Fprintf(os.Stderr, "rvld: fatal: %v\n", v)
	if Verbose {
		debug.PrintStack()
	}
	os.Exit(1)
}

func MustNo(err error) {
	if err != nil {
		Fatal(err)
	}
}

func Assert(res bool) {
	if !res {
		Fatal("assertion failed")
	}
}

func Read[T any](content []byte, val *T) {
	reader := bytes.NewReader(content)
	err := binary.Read(reader, binary.LittleEndian, val) //RISC-V uses little endian
	MustNo(err)
}

func ReadSlice[T any](content []byte, size int) []T {
	Assert(size > 0 && len(content)%size == 0)
	ret := make([]T, 0, len(content)/size)
	for len(content) > 0 {
		var ele T
		Read[T](content, &ele)
		ret = append(ret, ele)
		content = content[size:]
	}
	return ret
}

func Write[T any](content []byte, val T) {
	buf := &bytes.Buffer{}
	err := binary.Write(buf, binary.LittleEndian, val)
	MustNo(err)
	Assert(len(content) >= buf.Len())
	copy(content, buf.Bytes())
}

// o => -o
// plugin => -plugin, --plugin
func AddDashes(option string) []string {
	if len(option) == 1 {
		return []string{"-" + option}
	}
	return []string{"-" + option, "--" + option}
}

func RemovePrefix(s, prefix string) (string, bool) {
	if strings.HasPrefix(s, prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

// keeps the order of the surviving elements, reuses the backing array
func RemoveIf[T any](elems []T, condition func(T) bool) []T {
	i := 0
	for _, elem := range elems {
		if condition(elem) {
			continue
		}
		elems[i] = elem
		i++
	}
	return elems[:i]
}

func AllZeros(bs []byte) bool {
	b := byte(0)
	for _, s := range bs {
		b |= s
	}
	return b == 0
}

// align must be zero or a power of two
func AlignTo(val, align uint64) uint64 {
	if align == 0 {
		return val
	}
	return (val + align - 1) &^ (align - 1)
}

func Bit[T Uint](val T, pos int) T {
	return (val >> pos) & 1
}

// bits [hi:lo] of val, inclusive, shifted down to bit 0
func Bits[T Uint](val T, hi, lo int) T {
	return (val >> lo) & ((1 << (hi - lo + 1)) - 1)
}

// treats bit `size` of val as the sign bit
func SignExtend(val uint64, size int) uint64 {
	return uint64(int64(val<<(63-size)) >> (63 - size))
}

// whether val fits in a signed integer of the given width
func IsInt(val int64, bits int) bool {
	return val >= -(1<<(bits-1)) && val < 1<<(bits-1)
}
