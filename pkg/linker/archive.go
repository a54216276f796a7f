package linker

import (
	"bytes"

	"github.com/hcyang1106/rvld/pkg/utils"
)

// ReadArchiveMembers splits a Unix ar archive into its members. Symbol
// index members are skipped, the GNU extended name table is consumed.
func ReadArchiveMembers(file *File) ([]*File, error) {
	utils.Assert(GetFileTypeFromContent(file.Content) == FileTypeArchive)

	content := file.Content
	pos := len(arMagic)

	var strTab []byte
	var files []*File
	// members are 2-byte aligned, padded with '\n'
	for len(content)-pos > 1 {
		if pos%2 == 1 {
			pos++
		}
		if pos+ArHdrSize > len(content) {
			return nil, &LinkError{Kind: ErrInput, File: file.Name, Msg: "truncated archive member header"}
		}

		hdr := ArHdr{}
		utils.Read[ArHdr](content[pos:], &hdr)
		size, err := hdr.GetSize()
		if err != nil || size < 0 {
			return nil, &LinkError{Kind: ErrInput, File: file.Name, Msg: "bad archive member size", Err: err}
		}

		dataStart := pos + ArHdrSize
		pos = dataStart + size
		if pos > len(content) {
			return nil, &LinkError{Kind: ErrInput, File: file.Name, Msg: "archive member is out of range"}
		}
		data := content[dataStart:pos]

		if hdr.IsSymtab() {
			continue
		} else if hdr.IsStrTab() {
			strTab = data
			continue
		}

		var name string
		if hdr.IsBSDLongName() {
			n, err := hdr.BSDNameLen()
			if err != nil || n < 0 || n > len(data) {
				return nil, &LinkError{Kind: ErrInput, File: file.Name, Msg: "bad BSD member name", Err: err}
			}
			name = string(bytes.TrimRight(data[:n], "\x00"))
			data = data[n:]
		} else {
			name, err = hdr.ReadName(strTab)
			if err != nil {
				return nil, withFile(err, file.Name)
			}
		}

		if name == "__.SYMDEF" || name == "__.SYMDEF SORTED" {
			continue
		}

		files = append(files, &File{
			Name:    name,
			Content: data,
			Parent:  file,
		})
	}

	return files, nil
}
