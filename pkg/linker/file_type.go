package linker

import (
	"bytes"
	"debug/elf"

	"github.com/hcyang1106/rvld/pkg/utils"
)

type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeEmpty
	FileTypeObject
	FileTypeArchive
)

func (t FileType) String() string {
	switch t {
	case FileTypeEmpty:
		return "empty"
	case FileTypeObject:
		return "object"
	case FileTypeArchive:
		return "archive"
	}
	return "unknown"
}

var arMagic = []byte("!<arch>\n")

func GetFileTypeFromContent(content []byte) FileType {
	if len(content) == 0 {
		return FileTypeEmpty
	}

	if CheckMagic(content) && len(content) >= EhdrSize {
		var elfType uint16
		utils.Read[uint16](content[16:], &elfType)
		switch elf.Type(elfType) {
		case elf.ET_REL:
			return FileTypeObject
		}
		return FileTypeUnknown
	}

	if bytes.HasPrefix(content, arMagic) {
		return FileTypeArchive
	}

	return FileTypeUnknown
}

func CheckFileCompatibility(ctx *Context, file *File) error {
	mt := GetMachineTypeFromContent(file.Content)
	if mt != ctx.Args.Emulation {
		return &LinkError{
			Kind: ErrInput,
			File: file.DisplayName(),
			Msg:  "incompatible file type: " + mt.String(),
		}
	}
	return nil
}
