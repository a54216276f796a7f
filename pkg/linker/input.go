package linker

import (
	"github.com/hcyang1106/rvld/pkg/utils"
)

// ReadInputFiles loads every positional input in command line order.
// Objects become roots, archive members wait for GC to pull them in.
func ReadInputFiles(ctx *Context, remaining []string) error {
	for _, arg := range remaining {
		var file *File
		var err error
		if name, ok := utils.RemovePrefix(arg, "-l"); ok {
			file, err = FindLibrary(ctx, name)
		} else {
			file, err = NewFile(arg)
		}
		if err != nil {
			return err
		}
		if err := ReadFile(ctx, file); err != nil {
			return err
		}
	}

	if len(ctx.Objs) == 0 {
		return newUsageError("no input files")
	}
	return nil
}

func ReadFile(ctx *Context, file *File) error {
	switch GetFileTypeFromContent(file.Content) {
	case FileTypeObject:
		_, err := CreateObjectFile(ctx, file, false)
		return err
	case FileTypeArchive:
		members, err := ReadArchiveMembers(file)
		if err != nil {
			return err
		}
		for _, child := range members {
			if GetFileTypeFromContent(child.Content) != FileTypeObject {
				return &LinkError{Kind: ErrInput, File: child.DisplayName(), Msg: "archive member is not an object file"}
			}
			if _, err := CreateObjectFile(ctx, child, true); err != nil {
				return err
			}
		}
		utils.Logf("%s: %d members", file.Name, len(members))
		return nil
	}
	return &LinkError{Kind: ErrInput, File: file.Name, Msg: "unknown file type"}
}

func CreateObjectFile(ctx *Context, file *File, inLib bool) (*ObjectFile, error) {
	if err := CheckFileCompatibility(ctx, file); err != nil {
		return nil, err
	}
	return NewObjectFile(ctx, file, !inLib)
}
