package linker

import (
	"bytes"
)

var elfMagic = []byte("\177ELF")

func CheckMagic(content []byte) bool {
	return bytes.HasPrefix(content, elfMagic)
}

func WriteMagic(dst []byte) {
	copy(dst, elfMagic)
}
