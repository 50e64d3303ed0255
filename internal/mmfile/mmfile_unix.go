//go:build unix

package mmfile

import (
	"os"

	"golang.org/x/sys/unix"
)

func mapReadOnly(f *os.File, size int) ([]byte, bool, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func unmap(data []byte) error {
	return unix.Munmap(data)
}
