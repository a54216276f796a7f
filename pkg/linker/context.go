package linker

import (
	"github.com/xyproto/env/v2"
)

// Handles into the Context arenas. Cross references between files,
// sections, symbols and fragments are always one of these.
type (
	ObjectID        int32
	SymbolID        int32
	InputSectionID  int32
	FragmentID      int32
	OutputSectionID int32
	MergedSectionID int32
)

const (
	NoObject   ObjectID       = -1
	NoSection  InputSectionID = -1
	NoFragment FragmentID     = -1
)

type ContextArgs struct {
	Output       string
	Emulation    MachineType
	LibraryPaths []string
	PrintHelp    bool
	PrintVersion bool
}

type Context struct {
	Args ContextArgs
	Buf  []byte

	Ehdr     *OutputEhdr
	Phdr     *OutputPhdr
	Shdr     *OutputShdr
	Got      *GotSection
	ShStrtab *ShStrtabSection

	TpAddr uint64

	Files     []*ObjectFile // indexed by ObjectID, never shrinks
	Objs      []ObjectID    // files that take part in the link, in input order
	Sections  []*InputSection
	Symbols   []Symbol
	SymbolMap map[string]SymbolID
	Fragments []SectionFragment

	OutputSections []*OutputSection
	MergedSections []*MergedSection
	Chunks         []Chunker

	InternalObj   ObjectID
	InternalEsyms []Sym
	Synthetic     SyntheticSymbols
}

func NewContext() *Context {
	return &Context{
		Args: ContextArgs{
			Output:    env.Str("RVLD_OUTPUT", "a.out"),
			Emulation: MachineTypeNone,
		},
		SymbolMap:   make(map[string]SymbolID),
		InternalObj: NoObject,
	}
}

func (ctx *Context) File(id ObjectID) *ObjectFile {
	return ctx.Files[id]
}

// Symbol pointers stay valid until the next symbol is created.
func (ctx *Context) Symbol(id SymbolID) *Symbol {
	return &ctx.Symbols[id]
}

func (ctx *Context) Section(id InputSectionID) *InputSection {
	if id == NoSection {
		return nil
	}
	return ctx.Sections[id]
}

func (ctx *Context) Fragment(id FragmentID) *SectionFragment {
	return &ctx.Fragments[id]
}

func (ctx *Context) addFile(obj *ObjectFile) ObjectID {
	obj.ID = ObjectID(len(ctx.Files))
	ctx.Files = append(ctx.Files, obj)
	ctx.Objs = append(ctx.Objs, obj.ID)
	return obj.ID
}

func (ctx *Context) addSection(isec *InputSection) InputSectionID {
	ctx.Sections = append(ctx.Sections, isec)
	return InputSectionID(len(ctx.Sections) - 1)
}

func (ctx *Context) addSymbol(name string) SymbolID {
	ctx.Symbols = append(ctx.Symbols, *NewSymbol(name))
	return SymbolID(len(ctx.Symbols) - 1)
}

// GetSymbolByName returns the canonical global symbol for name,
// creating an unresolved one on first use.
func (ctx *Context) GetSymbolByName(name string) SymbolID {
	if id, ok := ctx.SymbolMap[name]; ok {
		return id
	}
	id := ctx.addSymbol(name)
	ctx.SymbolMap[name] = id
	return id
}

// LiveObjects iterates ctx.Objs as files.
func (ctx *Context) LiveObjects() []*ObjectFile {
	objs := make([]*ObjectFile, 0, len(ctx.Objs))
	for _, id := range ctx.Objs {
		objs = append(objs, ctx.Files[id])
	}
	return objs
}
