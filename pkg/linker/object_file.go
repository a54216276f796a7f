package linker

import (
	"bytes"
	"debug/elf"
	"math"

	"github.com/hcyang1106/rvld/pkg/utils"
)

type ObjectFile struct {
	InputFile
	ID             ObjectID
	SymtabShndxSec []uint32
	IsAlive        bool // false for archive members until something references them

	Sections          []InputSectionID    // parallel to ElfSecHdrs
	MergeableSections []*MergeableSection // parallel to ElfSecHdrs
	Symbols           []SymbolID          // parallel to ElfSyms
}

// NewObjectFile parses file and registers it, its sections and its
// symbols with ctx.
func NewObjectFile(ctx *Context, file *File, isAlive bool) (*ObjectFile, error) {
	obj := &ObjectFile{
		InputFile: InputFile{File: file},
		IsAlive:   isAlive,
	}
	if err := obj.parseHeaders(); err != nil {
		return nil, withFile(err, file.DisplayName())
	}
	ctx.addFile(obj)
	if err := obj.Parse(ctx); err != nil {
		return nil, withFile(err, file.DisplayName())
	}
	return obj, nil
}

func (o *ObjectFile) Parse(ctx *Context) error {
	if err := o.parseSymTab(); err != nil {
		return err
	}
	if err := o.fillUpSymtabShndxSec(); err != nil {
		return err
	}
	if err := o.InitializeSections(ctx); err != nil {
		return err
	}
	return o.InitializeSymbols(ctx)
}

func (o *ObjectFile) Name() string {
	if o.File == nil {
		return "<internal>"
	}
	return o.File.DisplayName()
}

func (o *ObjectFile) fillUpSymtabShndxSec() error {
	shdr := o.FindSectionHdr(elf.SHT_SYMTAB_SHNDX)
	if shdr == nil {
		return nil
	}
	bs, err := o.GetBytesFromShdr(shdr)
	if err != nil {
		return err
	}
	if len(bs)%4 != 0 {
		return newInputError("bad SHT_SYMTAB_SHNDX size")
	}
	if len(bs) > 0 {
		o.SymtabShndxSec = utils.ReadSlice[uint32](bs, 4)
	}
	return nil
}

// InitializeSections creates an input section for every header that
// carries contents and attaches RELA tables to their targets.
func (o *ObjectFile) InitializeSections(ctx *Context) error {
	o.Sections = make([]InputSectionID, len(o.ElfSecHdrs))
	for i := range o.Sections {
		o.Sections[i] = NoSection
	}

	for i := range o.ElfSecHdrs {
		shdr := &o.ElfSecHdrs[i]
		switch elf.SectionType(shdr.Type) {
		case elf.SHT_GROUP, elf.SHT_SYMTAB, elf.SHT_STRTAB, elf.SHT_REL, elf.SHT_RELA,
			elf.SHT_NULL, elf.SHT_SYMTAB_SHNDX:
			continue
		}

		isec, err := NewInputSection(ctx, o, uint32(i))
		if err != nil {
			return err
		}
		o.Sections[i] = ctx.addSection(isec)
	}

	for i := range o.ElfSecHdrs {
		shdr := &o.ElfSecHdrs[i]
		if elf.SectionType(shdr.Type) != elf.SHT_RELA {
			continue
		}
		if shdr.Info >= uint32(len(o.Sections)) {
			return newInputError("relocation target out of range: %d", shdr.Info)
		}
		if target := ctx.Section(o.Sections[shdr.Info]); target != nil {
			if target.RelsecIdx != math.MaxUint32 {
				return newInputError("section %d has two relocation tables", shdr.Info)
			}
			target.RelsecIdx = uint32(i)
		}
	}
	return nil
}

// InitializeSymbols gives locals their own arena slot and maps globals
// to the shared symbol of the same name.
func (o *ObjectFile) InitializeSymbols(ctx *Context) error {
	if o.SymTabSecHdr == nil {
		return nil
	}

	o.Symbols = make([]SymbolID, len(o.ElfSyms))
	for i := 0; i < int(o.FirstGlobal); i++ {
		esym := &o.ElfSyms[i]
		id := ctx.addSymbol(ElfGetName(o.SymStrTab, esym.Name))
		o.Symbols[i] = id

		sym := ctx.Symbol(id)
		sym.File = o.ID
		sym.Value = esym.Val
		sym.SymIdx = int32(i)
		if i == 0 || esym.IsAbs() || esym.IsUndef() || esym.IsCommon() {
			continue
		}
		shndx, err := o.GetShndx(esym, i)
		if err != nil {
			return err
		}
		if isec := o.Sections[shndx]; isec != NoSection {
			sym.SetInputSection(isec)
		}
	}

	for i := int(o.FirstGlobal); i < len(o.ElfSyms); i++ {
		esym := &o.ElfSyms[i]
		name := ElfGetName(o.SymStrTab, esym.Name)
		if name == "" {
			return newInputError("global symbol %d has no name", i)
		}
		if !esym.IsAbs() && !esym.IsUndef() && !esym.IsCommon() {
			if _, err := o.GetShndx(esym, i); err != nil {
				return err
			}
		}
		o.Symbols[i] = ctx.GetSymbolByName(name)
	}
	return nil
}

func (o *ObjectFile) GetShndx(esym *Sym, idx int) (uint32, error) {
	shndx := uint32(esym.Shndx)
	if esym.Shndx == uint16(elf.SHN_XINDEX) {
		if idx >= len(o.SymtabShndxSec) {
			return 0, newInputError("symbol %d has no extended section index", idx)
		}
		shndx = o.SymtabShndxSec[idx]
	}
	if shndx >= uint32(len(o.Sections)) {
		return 0, newInputError("symbol %d section index out of range: %d", idx, shndx)
	}
	return shndx, nil
}

// ResolveSymbols binds every global this object defines, unless an
// earlier object already did.
func (o *ObjectFile) ResolveSymbols(ctx *Context) {
	for i := int(o.FirstGlobal); i < len(o.ElfSyms); i++ {
		esym := &o.ElfSyms[i]
		if esym.IsUndef() {
			continue
		}

		isec := NoSection
		if !esym.IsAbs() && !esym.IsCommon() {
			shndx, err := o.GetShndx(esym, i)
			utils.MustNo(err)
			isec = o.Sections[shndx]
			if isec == NoSection {
				continue
			}
		}

		sym := ctx.Symbol(o.Symbols[i])
		if sym.File != NoObject {
			continue
		}
		sym.File = o.ID
		if isec != NoSection {
			sym.SetInputSection(isec)
		}
		sym.Value = esym.Val
		sym.SymIdx = int32(i)
	}
}

// MarkLiveObjects appends to queue every dead object defining a symbol
// this object leaves undefined, marking it alive on the way.
func (o *ObjectFile) MarkLiveObjects(ctx *Context, queue []ObjectID) []ObjectID {
	utils.Assert(o.IsAlive)

	for i := int(o.FirstGlobal); i < len(o.ElfSyms); i++ {
		sym := ctx.Symbol(o.Symbols[i])
		if sym.File == NoObject || !o.ElfSyms[i].IsUndef() {
			continue
		}

		owner := ctx.File(sym.File)
		if !owner.IsAlive {
			owner.IsAlive = true
			queue = append(queue, owner.ID)
		}
	}
	return queue
}

// ClearSymbols detaches every global bound to an object GC dropped,
// whether this object owns it or only references it.
func (o *ObjectFile) ClearSymbols(ctx *Context) {
	for i := int(o.FirstGlobal); i < len(o.ElfSyms); i++ {
		sym := ctx.Symbol(o.Symbols[i])
		if sym.File != NoObject && !ctx.File(sym.File).IsAlive {
			sym.Clear()
		}
	}
}

// CheckCommonSymbols rejects tentative definitions, which would need
// .bss space the linker does not allocate.
func (o *ObjectFile) CheckCommonSymbols(ctx *Context) error {
	for i := int(o.FirstGlobal); i < len(o.ElfSyms); i++ {
		if o.ElfSyms[i].IsCommon() {
			return newInputError("common symbol %s is not supported, recompile with -fno-common",
				ctx.Symbol(o.Symbols[i]).Name)
		}
	}
	return nil
}

func (o *ObjectFile) SkipEhframeSections(ctx *Context) {
	for _, id := range o.Sections {
		if isec := ctx.Section(id); isec != nil && isec.IsAlive && isec.Name(ctx) == ".eh_frame" {
			isec.IsAlive = false
		}
	}
}

// SplitMergeableSections cuts every live SHF_MERGE section into
// fragment keys. The input section itself stops being output.
func (o *ObjectFile) SplitMergeableSections(ctx *Context) error {
	o.MergeableSections = make([]*MergeableSection, len(o.Sections))
	for i, id := range o.Sections {
		isec := ctx.Section(id)
		if isec == nil || !isec.IsAlive || isec.Shdr(ctx).Flags&uint64(elf.SHF_MERGE) == 0 {
			continue
		}

		m, err := splitSection(ctx, isec)
		if err != nil {
			return newInputError("%s: %v", isec.Name(ctx), err)
		}
		o.MergeableSections[i] = m
		isec.IsAlive = false
	}
	return nil
}

// findNull returns the offset of the first entSize-wide NUL in data,
// looking only at entSize-aligned positions.
func findNull(data []byte, entSize int) int {
	if entSize == 1 {
		return bytes.IndexByte(data, 0)
	}

	for i := 0; i+entSize <= len(data); i += entSize {
		if utils.AllZeros(data[i : i+entSize]) {
			return i
		}
	}
	return -1
}

func splitSection(ctx *Context, isec *InputSection) (*MergeableSection, error) {
	shdr := isec.Shdr(ctx)
	m := &MergeableSection{
		Parent:  GetMergedSectionInstance(ctx, isec.Name(ctx), shdr.Type, shdr.Flags),
		P2Align: isec.P2Align,
	}

	data := isec.Contents
	offset := uint64(0)
	if shdr.Flags&uint64(elf.SHF_STRINGS) != 0 {
		entSize := max(shdr.EntSize, 1)
		for len(data) > 0 {
			end := findNull(data, int(entSize))
			if end == -1 {
				return nil, newInputError("string is not null terminated")
			}

			sz := uint64(end) + entSize
			m.Strs = append(m.Strs, string(data[:sz]))
			m.FragOffsets = append(m.FragOffsets, uint32(offset))
			data = data[sz:]
			offset += sz
		}
		return m, nil
	}

	if shdr.EntSize == 0 || uint64(len(data))%shdr.EntSize != 0 {
		return nil, newInputError("section size is not multiple of entsize")
	}
	for len(data) > 0 {
		m.Strs = append(m.Strs, string(data[:shdr.EntSize]))
		m.FragOffsets = append(m.FragOffsets, uint32(offset))
		data = data[shdr.EntSize:]
		offset += shdr.EntSize
	}
	return m, nil
}

// RegisterSectionPieces inserts the object's fragment keys into their
// merged sections, then moves symbols and section-relative relocation
// targets from split sections onto fragments.
func (o *ObjectFile) RegisterSectionPieces(ctx *Context) error {
	for _, m := range o.MergeableSections {
		if m == nil {
			continue
		}
		merged := ctx.MergedSections[m.Parent]
		m.Fragments = make([]FragmentID, 0, len(m.Strs))
		for _, key := range m.Strs {
			m.Fragments = append(m.Fragments, merged.Insert(ctx, key, m.P2Align))
		}
	}

	for i := 1; i < len(o.ElfSyms); i++ {
		sym := ctx.Symbol(o.Symbols[i])
		if sym.File != o.ID || sym.SymIdx != int32(i) {
			continue
		}
		esym := sym.ElfSym(ctx)
		if esym.IsAbs() || esym.IsUndef() || esym.IsCommon() {
			continue
		}

		m := o.mergeableSectionOf(esym, i)
		if m == nil {
			continue
		}

		frag, fragOffset, ok := m.GetFragment(uint32(esym.Val))
		if !ok {
			return newInputError("bad symbol value: %s", sym.Name)
		}
		sym.SetSectionFragment(frag)
		sym.Value = uint64(fragOffset)
	}

	return o.registerRelocFragments(ctx)
}

func (o *ObjectFile) mergeableSectionOf(esym *Sym, idx int) *MergeableSection {
	shndx, err := o.GetShndx(esym, idx)
	if err != nil || int(shndx) >= len(o.MergeableSections) {
		return nil
	}
	return o.MergeableSections[shndx]
}

// Assemblers emit references to local string literals as section symbol
// plus addend. Those are pointed at the fragment the addend falls into.
func (o *ObjectFile) registerRelocFragments(ctx *Context) error {
	for _, id := range o.Sections {
		isec := ctx.Section(id)
		if isec == nil || !isec.IsAlive || isec.Shdr(ctx).Flags&uint64(elf.SHF_ALLOC) == 0 {
			continue
		}

		rels, err := isec.GetRels(ctx)
		if err != nil {
			return err
		}
		for r := range rels {
			rel := &rels[r]
			if rel.Sym == 0 || rel.Sym >= uint32(len(o.ElfSyms)) {
				continue
			}
			esym := &o.ElfSyms[rel.Sym]
			if esym.Type() != elf.STT_SECTION {
				continue
			}
			m := o.mergeableSectionOf(esym, int(rel.Sym))
			if m == nil {
				continue
			}

			frag, fragOffset, ok := m.GetFragment(uint32(esym.Val + uint64(rel.Addend)))
			if !ok {
				return newInputError("%s: bad relocation target", isec.Name(ctx))
			}
			if isec.RelFragments == nil {
				isec.RelFragments = make(map[int]FragmentRef)
			}
			isec.RelFragments[r] = FragmentRef{Frag: frag, Addend: int64(fragOffset)}
		}
	}
	return nil
}

func (o *ObjectFile) ScanRelocations(ctx *Context) error {
	for _, id := range o.Sections {
		isec := ctx.Section(id)
		if isec == nil || !isec.IsAlive || isec.Shdr(ctx).Flags&uint64(elf.SHF_ALLOC) == 0 {
			continue
		}
		if err := isec.ScanRelocations(ctx); err != nil {
			return err
		}
	}
	return nil
}
