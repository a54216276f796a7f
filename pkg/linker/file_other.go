//go:build !unix

package linker

import (
	"os"
	"strings"
	"syscall"
)

func readFileContent(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

func cString(s string) ([]byte, error) {
	if strings.IndexByte(s, 0) != -1 {
		return nil, syscall.EINVAL
	}
	return append([]byte(s), 0), nil
}
