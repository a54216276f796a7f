package linker

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Helpers that assemble RISC-V relocatable objects and ar archives in
// memory, so tests do not depend on a cross toolchain.

const (
	insnNop        = 0x00000013 // addi x0, x0, 0
	insnAuipcRa    = 0x00000097 // auipc ra, 0
	insnJalrRa     = 0x000080e7 // jalr ra, 0(ra)
	insnLuiA0      = 0x00000537 // lui a0, 0
	insnAddiA0A0   = 0x00050513 // addi a0, a0, 0
	insnLuiA1      = 0x000005b7 // lui a1, 0
	insnAddiA1A1   = 0x00058593 // addi a1, a1, 0
	insnAuipcA0    = 0x00000517 // auipc a0, 0
	insnLdA0A0     = 0x00053503 // ld a0, 0(a0)
	shfText        = elf.SHF_ALLOC | elf.SHF_EXECINSTR
	shfData        = elf.SHF_ALLOC | elf.SHF_WRITE
	shfTData       = elf.SHF_ALLOC | elf.SHF_WRITE | elf.SHF_TLS
	shfMergeString = elf.SHF_ALLOC | elf.SHF_MERGE | elf.SHF_STRINGS
)

type testSym struct {
	name  string
	info  uint8
	shndx uint16
	value uint64
}

func localSym(name string, shndx uint16, value uint64) testSym {
	return testSym{name, elf.ST_INFO(elf.STB_LOCAL, elf.STT_NOTYPE), shndx, value}
}

func sectionSym(shndx uint16) testSym {
	return testSym{"", elf.ST_INFO(elf.STB_LOCAL, elf.STT_SECTION), shndx, 0}
}

func globalSym(name string, shndx uint16, value uint64) testSym {
	return testSym{name, elf.ST_INFO(elf.STB_GLOBAL, elf.STT_NOTYPE), shndx, value}
}

func weakSym(name string, shndx uint16, value uint64) testSym {
	return testSym{name, elf.ST_INFO(elf.STB_WEAK, elf.STT_NOTYPE), shndx, value}
}

func tlsSym(name string, shndx uint16, value uint64) testSym {
	return testSym{name, elf.ST_INFO(elf.STB_GLOBAL, elf.STT_TLS), shndx, value}
}

func undefSym(name string) testSym {
	return globalSym(name, uint16(elf.SHN_UNDEF), 0)
}

func absSym(name string, value uint64) testSym {
	return globalSym(name, uint16(elf.SHN_ABS), value)
}

type testSection struct {
	name    string
	typ     elf.SectionType
	flags   elf.SectionFlag
	align   uint64
	entsize uint64
	data    []byte
	size    uint64 // SHT_NOBITS only
	rels    []Rela
}

// objBuilder lays out: ehdr, section contents, rela tables, symtab,
// strtab, shstrtab, section headers. Symbols must be added locals first;
// the symbol index of the n-th added symbol is n (index 0 is null).
type objBuilder struct {
	sections []testSection
	syms     []testSym
	flags    uint32
}

func (b *objBuilder) section(s testSection) uint16 {
	if s.typ == 0 {
		s.typ = elf.SHT_PROGBITS
	}
	if s.align == 0 {
		s.align = 1
	}
	b.sections = append(b.sections, s)
	return uint16(len(b.sections))
}

func (b *objBuilder) sym(s testSym) uint32 {
	b.syms = append(b.syms, s)
	return uint32(len(b.syms))
}

func (b *objBuilder) rel(shndx uint16, rel Rela) {
	b.sections[shndx-1].rels = append(b.sections[shndx-1].rels, rel)
}

func appendStruct[T any](buf []byte, v T) []byte {
	w := bytes.Buffer{}
	if err := binary.Write(&w, binary.LittleEndian, v); err != nil {
		panic(err)
	}
	return append(buf, w.Bytes()...)
}

func words(ws ...uint32) []byte {
	buf := make([]byte, 0, 4*len(ws))
	for _, w := range ws {
		buf = binary.LittleEndian.AppendUint32(buf, w)
	}
	return buf
}

func (b *objBuilder) build() []byte {
	shstrtab := []byte{0}
	strtab := []byte{0}
	addStr := func(tab *[]byte, s string) uint32 {
		off := uint32(len(*tab))
		*tab = append(*tab, s...)
		*tab = append(*tab, 0)
		return off
	}

	buf := make([]byte, EhdrSize)
	align8 := func() {
		for len(buf)%8 != 0 {
			buf = append(buf, 0)
		}
	}

	shdrs := []Shdr{{}}
	for _, s := range b.sections {
		align8()
		shdr := Shdr{
			Name:      addStr(&shstrtab, s.name),
			Type:      uint32(s.typ),
			Flags:     uint64(s.flags),
			Offset:    uint64(len(buf)),
			AddrAlign: s.align,
			EntSize:   s.entsize,
		}
		if s.typ == elf.SHT_NOBITS {
			shdr.Size = s.size
		} else {
			shdr.Size = uint64(len(s.data))
			buf = append(buf, s.data...)
		}
		shdrs = append(shdrs, shdr)
	}

	numRela := 0
	for _, s := range b.sections {
		if len(s.rels) > 0 {
			numRela++
		}
	}
	symtabIdx := uint32(len(b.sections) + numRela + 1)

	for i, s := range b.sections {
		if len(s.rels) == 0 {
			continue
		}
		align8()
		shdr := Shdr{
			Name:      addStr(&shstrtab, ".rela"+s.name),
			Type:      uint32(elf.SHT_RELA),
			Flags:     uint64(elf.SHF_INFO_LINK),
			Offset:    uint64(len(buf)),
			Size:      uint64(len(s.rels) * RelaSize),
			Link:      symtabIdx,
			Info:      uint32(i + 1),
			AddrAlign: 8,
			EntSize:   uint64(RelaSize),
		}
		for _, rel := range s.rels {
			buf = appendStruct(buf, rel)
		}
		shdrs = append(shdrs, shdr)
	}

	firstGlobal := uint32(1)
	for _, s := range b.syms {
		if elf.ST_BIND(s.info) == elf.STB_LOCAL {
			firstGlobal++
		}
	}

	align8()
	symtab := Shdr{
		Name:      addStr(&shstrtab, ".symtab"),
		Type:      uint32(elf.SHT_SYMTAB),
		Offset:    uint64(len(buf)),
		Size:      uint64((len(b.syms) + 1) * SymSize),
		Link:      symtabIdx + 1,
		Info:      firstGlobal,
		AddrAlign: 8,
		EntSize:   uint64(SymSize),
	}
	buf = appendStruct(buf, Sym{})
	for _, s := range b.syms {
		buf = appendStruct(buf, Sym{
			Name:  addStr(&strtab, s.name),
			Info:  s.info,
			Shndx: s.shndx,
			Val:   s.value,
		})
	}
	shdrs = append(shdrs, symtab)

	shdrs = append(shdrs, Shdr{
		Name:      addStr(&shstrtab, ".strtab"),
		Type:      uint32(elf.SHT_STRTAB),
		Offset:    uint64(len(buf)),
		Size:      uint64(len(strtab)),
		AddrAlign: 1,
	})
	buf = append(buf, strtab...)

	shstrtabShdr := Shdr{
		Name:      addStr(&shstrtab, ".shstrtab"),
		Type:      uint32(elf.SHT_STRTAB),
		AddrAlign: 1,
	}
	shstrtabShdr.Offset = uint64(len(buf))
	shstrtabShdr.Size = uint64(len(shstrtab))
	buf = append(buf, shstrtab...)
	shdrs = append(shdrs, shstrtabShdr)

	align8()
	shoff := uint64(len(buf))
	for _, shdr := range shdrs {
		buf = appendStruct(buf, shdr)
	}

	ehdr := Ehdr{
		Type:      uint16(elf.ET_REL),
		Machine:   uint16(elf.EM_RISCV),
		Version:   uint32(elf.EV_CURRENT),
		ShOff:     shoff,
		Flags:     b.flags,
		EhSize:    uint16(EhdrSize),
		ShEntSize: uint16(ShdrSize),
		ShNum:     uint16(len(shdrs)),
		ShStrndx:  uint16(len(shdrs) - 1),
	}
	WriteMagic(ehdr.Ident[:])
	ehdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	ehdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	ehdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	copy(buf, appendStruct(nil, ehdr))
	return buf
}

type arMember struct {
	name string
	data []byte
}

func arHeader(name string, size int) string {
	return fmt.Sprintf("%-16s%-12s%-6s%-6s%-8s%-10d`\n", name, "0", "0", "0", "644", size)
}

// buildArchive writes a GNU archive with a (dummy) symbol index and an
// extended name table for names longer than 15 bytes.
func buildArchive(members []arMember) []byte {
	var names bytes.Buffer
	headers := make([]string, len(members))
	for i, m := range members {
		if len(m.name) > 15 {
			headers[i] = fmt.Sprintf("/%d", names.Len())
			names.WriteString(m.name + "/\n")
		} else {
			headers[i] = m.name + "/"
		}
	}

	out := bytes.Buffer{}
	out.Write(arMagic)
	pad := func() {
		if out.Len()%2 == 1 {
			out.WriteByte('\n')
		}
	}

	symtab := []byte{0, 0, 0, 0}
	out.WriteString(arHeader("/", len(symtab)))
	out.Write(symtab)

	if names.Len() > 0 {
		pad()
		out.WriteString(arHeader("//", names.Len()))
		out.Write(names.Bytes())
	}

	for i, m := range members {
		pad()
		out.WriteString(arHeader(headers[i], len(m.data)))
		out.Write(m.data)
	}
	return out.Bytes()
}

func writeTestFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestContext(dir string) *Context {
	ctx := NewContext()
	ctx.Args.Emulation = MachineTypeRISCV64
	ctx.Args.LibraryPaths = []string{dir}
	ctx.Args.Output = filepath.Join(dir, "a.out")
	return ctx
}

// startObj is a root object whose _start is a single nop.
func startObj() *objBuilder {
	b := &objBuilder{}
	text := b.section(testSection{name: ".text", flags: shfText, align: 4, data: words(insnNop)})
	b.sym(globalSym("_start", text, 0))
	return b
}

func symbolByName(t *testing.T, ctx *Context, name string) *Symbol {
	t.Helper()
	id, ok := ctx.SymbolMap[name]
	if !ok {
		t.Fatalf("symbol %s not found", name)
	}
	return ctx.Symbol(id)
}

func chunkByName(ctx *Context, name string) Chunker {
	for _, chunk := range ctx.Chunks {
		if chunk.GetName() == name {
			return chunk
		}
	}
	return nil
}

// bufAt returns the output bytes at virtual address addr.
func bufAt(t *testing.T, ctx *Context, addr uint64) []byte {
	t.Helper()
	for _, chunk := range ctx.Chunks {
		shdr := chunk.GetShdr()
		if !isAlloc(chunk) || elf.SectionType(shdr.Type) == elf.SHT_NOBITS {
			continue
		}
		if addr >= shdr.Addr && addr < shdr.Addr+shdr.Size {
			return ctx.Buf[shdr.Offset+addr-shdr.Addr:]
		}
	}
	t.Fatalf("address %#x is not in the image", addr)
	return nil
}
