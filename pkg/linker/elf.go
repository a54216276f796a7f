package linker

import (
	"bytes"
	"debug/elf"
	"strconv"
	"strings"
	"unsafe"
)

const EhdrSize = int(unsafe.Sizeof(Ehdr{}))
const ShdrSize = int(unsafe.Sizeof(Shdr{}))
const SymSize = int(unsafe.Sizeof(Sym{}))
const PhdrSize = int(unsafe.Sizeof(Phdr{}))
const RelaSize = int(unsafe.Sizeof(Rela{}))
const ArHdrSize = int(unsafe.Sizeof(ArHdr{}))

const PageSize = 4096
const ImageBase uint64 = 0x200000

const EF_RISCV_RVC uint32 = 1

type Ehdr struct {
	Ident     [16]uint8
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	PhOff     uint64
	ShOff     uint64
	Flags     uint32
	EhSize    uint16
	PhEntSize uint16
	PhNum     uint16
	ShEntSize uint16
	ShNum     uint16
	ShStrndx  uint16
}

type Shdr struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	AddrAlign uint64
	EntSize   uint64
}

type Phdr struct {
	Type     uint32
	Flags    uint32
	Offset   uint64
	VAddr    uint64
	PAddr    uint64
	FileSize uint64
	MemSize  uint64
	Align    uint64
}

type Sym struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Val   uint64
	Size  uint64
}

// r_info is split into Type (low word) and Sym (high word)
type Rela struct {
	Offset uint64
	Type   uint32
	Sym    uint32
	Addend int64
}

func (s *Sym) IsAbs() bool {
	return s.Shndx == uint16(elf.SHN_ABS)
}

func (s *Sym) IsUndef() bool {
	return s.Shndx == uint16(elf.SHN_UNDEF)
}

func (s *Sym) IsCommon() bool {
	return s.Shndx == uint16(elf.SHN_COMMON)
}

func (s *Sym) Bind() elf.SymBind {
	return elf.ST_BIND(s.Info)
}

func (s *Sym) Type() elf.SymType {
	return elf.ST_TYPE(s.Info)
}

func (s *Sym) IsWeak() bool {
	return s.Bind() == elf.STB_WEAK
}

type ArHdr struct {
	Name [16]byte
	Date [12]byte
	Uid  [6]byte
	Gid  [6]byte
	Mode [8]byte
	Size [10]byte
	Fmag [2]byte
}

func (a *ArHdr) HasPrefix(s string) bool {
	return strings.HasPrefix(string(a.Name[:]), s)
}

// GNU "//" extended name table
func (a *ArHdr) IsStrTab() bool {
	return a.HasPrefix("// ")
}

// GNU "/" or "/SYM64/" symbol index
func (a *ArHdr) IsSymtab() bool {
	return a.HasPrefix("/ ") || a.HasPrefix("/SYM64/ ")
}

// BSD "#1/<len>": the name is stored in front of the member data
func (a *ArHdr) IsBSDLongName() bool {
	return a.HasPrefix("#1/")
}

func (a *ArHdr) GetSize() (int, error) {
	return strconv.Atoi(strings.TrimSpace(string(a.Size[:])))
}

func (a *ArHdr) BSDNameLen() (int, error) {
	return strconv.Atoi(strings.TrimSpace(string(a.Name[3:])))
}

// ReadName decodes GNU short ("name/") and long ("/123") member names.
func (a *ArHdr) ReadName(strTab []byte) (string, error) {
	// "/123    " => the number is the start index in strTab
	if a.HasPrefix("/") {
		start, err := strconv.Atoi(strings.TrimSpace(string(a.Name[1:])))
		if err != nil {
			return "", err
		}
		if start < 0 || start >= len(strTab) {
			return "", newInputError("archive long name offset out of range: %d", start)
		}
		end := bytes.Index(strTab[start:], []byte("/\n"))
		if end == -1 {
			return "", newInputError("archive long name is not terminated")
		}
		return string(strTab[start : start+end]), nil
	}

	end := bytes.IndexByte(a.Name[:], '/')
	if end == -1 {
		// BSD style short names carry no terminator
		return strings.TrimRight(string(a.Name[:]), " "), nil
	}
	return string(a.Name[:end]), nil
}

func ElfGetName(strTab []byte, offset uint32) string {
	if int(offset) >= len(strTab) {
		return ""
	}
	length := bytes.IndexByte(strTab[offset:], 0)
	if length == -1 {
		return string(strTab[offset:])
	}
	return string(strTab[offset : offset+uint32(length)])
}
