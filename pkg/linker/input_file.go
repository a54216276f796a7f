package linker

import (
	"debug/elf"

	"github.com/hcyang1106/rvld/pkg/utils"
)

// InputFile is the raw ELF view of a relocatable object: headers,
// symtab and the two string tables. File is nil for the internal object.
type InputFile struct {
	File         *File
	ElfEhdr      Ehdr
	ElfSecHdrs   []Shdr
	ElfSyms      []Sym
	SymTabSecHdr *Shdr // points into ElfSecHdrs
	FirstGlobal  uint32
	ShStrTab     []byte
	SymStrTab    []byte
}

func (f *InputFile) parseHeaders() error {
	content := f.File.Content
	if len(content) < EhdrSize {
		return newInputError("file too small")
	}
	if !CheckMagic(content) {
		return newInputError("not an ELF file")
	}
	utils.Read[Ehdr](content, &f.ElfEhdr)

	if f.ElfEhdr.ShOff == 0 {
		return nil
	}
	if f.ElfEhdr.ShOff+uint64(ShdrSize) > uint64(len(content)) {
		return newInputError("section header table is out of range")
	}

	shdr := Shdr{}
	utils.Read[Shdr](content[f.ElfEhdr.ShOff:], &shdr)

	// e_shnum == 0 means the real count lives in the first header
	numSecs := uint64(f.ElfEhdr.ShNum)
	if numSecs == 0 {
		numSecs = shdr.Size
	}
	end := f.ElfEhdr.ShOff + numSecs*uint64(ShdrSize)
	if numSecs == 0 || end > uint64(len(content)) || end < f.ElfEhdr.ShOff {
		return newInputError("section header table is out of range")
	}

	f.ElfSecHdrs = utils.ReadSlice[Shdr](content[f.ElfEhdr.ShOff:end], ShdrSize)

	shStrndx := uint32(f.ElfEhdr.ShStrndx)
	if shStrndx == uint32(elf.SHN_XINDEX) {
		shStrndx = f.ElfSecHdrs[0].Link
	}
	var err error
	f.ShStrTab, err = f.GetBytesFromIdx(shStrndx)
	return err
}

func (f *InputFile) GetBytesFromShdr(s *Shdr) ([]byte, error) {
	if elf.SectionType(s.Type) == elf.SHT_NOBITS {
		return nil, nil
	}
	end := s.Offset + s.Size
	if end > uint64(len(f.File.Content)) || end < s.Offset {
		return nil, newInputError("section header is out of range: %d", s.Offset)
	}
	return f.File.Content[s.Offset:end], nil
}

func (f *InputFile) GetBytesFromIdx(idx uint32) ([]byte, error) {
	if idx >= uint32(len(f.ElfSecHdrs)) {
		return nil, newInputError("section index out of range: %d", idx)
	}
	return f.GetBytesFromShdr(&f.ElfSecHdrs[idx])
}

func (f *InputFile) FindSectionHdr(typ elf.SectionType) *Shdr {
	for i := range f.ElfSecHdrs {
		if elf.SectionType(f.ElfSecHdrs[i].Type) == typ {
			return &f.ElfSecHdrs[i]
		}
	}
	return nil
}

func (f *InputFile) parseSymTab() error {
	f.SymTabSecHdr = f.FindSectionHdr(elf.SHT_SYMTAB)
	if f.SymTabSecHdr == nil {
		return nil
	}

	bs, err := f.GetBytesFromShdr(f.SymTabSecHdr)
	if err != nil {
		return err
	}
	if len(bs)%SymSize != 0 {
		return newInputError("symbol table size is not a multiple of %d", SymSize)
	}
	if len(bs) > 0 {
		f.ElfSyms = utils.ReadSlice[Sym](bs, SymSize)
	}

	f.FirstGlobal = f.SymTabSecHdr.Info
	if f.FirstGlobal > uint32(len(f.ElfSyms)) {
		return newInputError("first global index out of range: %d", f.FirstGlobal)
	}

	f.SymStrTab, err = f.GetBytesFromIdx(f.SymTabSecHdr.Link)
	return err
}

func (f *InputFile) GetEhdr() *Ehdr {
	return &f.ElfEhdr
}
