//go:build unix

package linker

import (
	"os"

	"golang.org/x/sys/unix"
)

// readFileContent maps the file read-only. Mappings are never unmapped:
// input bytes are referenced until the process exits.
func readFileContent(filename string) ([]byte, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 || !info.Mode().IsRegular() {
		return os.ReadFile(filename)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(info.Size()),
		unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return os.ReadFile(filename)
	}
	return data, nil
}

// cString returns s followed by a NUL byte. Names containing NUL are rejected.
func cString(s string) ([]byte, error) {
	return unix.ByteSliceFromString(s)
}
