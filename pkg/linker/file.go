package linker

import (
	"os"
	"path/filepath"
)

type File struct {
	Name    string
	Content []byte
	Parent  *File // the archive a member was extracted from
}

func NewFile(filename string) (*File, error) {
	content, err := readFileContent(filename)
	if err != nil {
		return nil, &LinkError{Kind: ErrInput, File: filename, Msg: "cannot open", Err: err}
	}
	return &File{
		Name:    filename,
		Content: content,
	}, nil
}

// nil when the file cannot be read, so library search can move on
func NewFileNoFatal(filename string) *File {
	if _, err := os.Stat(filename); err != nil {
		return nil
	}
	f, err := NewFile(filename)
	if err != nil {
		return nil
	}
	return f
}

// FindLibrary searches -L paths (then LIBRARY_PATH) for lib<name>.a.
func FindLibrary(ctx *Context, name string) (*File, error) {
	for _, dir := range ctx.Args.LibraryPaths {
		if f := NewFileNoFatal(filepath.Join(dir, "lib"+name+".a")); f != nil {
			return f, nil
		}
	}
	return nil, newUsageError("library not found: -l%s", name)
}

func (f *File) DisplayName() string {
	if f.Parent != nil {
		return f.Parent.Name + "(" + f.Name + ")"
	}
	return f.Name
}
