// Package mmap memory-maps saved dataset payloads so loading can hand the
// Arrow reader a view of the file without copying it onto the heap first.
package mmap

import (
	"os"

	"github.com/leadblacktech/datasets/pkg/dserrors"
)

// Reader is a read-only memory mapping of a file. The returned bytes stay
// valid until Close; callers must finish decoding before closing.
type Reader struct {
	file *os.File
	data []byte
}

// Open maps path into memory and advises the kernel that access will be
// sequential.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path is caller-controlled
	if err != nil {
		return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "opening data file")
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "stating data file")
	}
	if stat.Size() == 0 {
		f.Close()
		return nil, dserrors.New(dserrors.ErrorTypeIO, "data file is empty")
	}

	data, err := mapFile(int(f.Fd()), int(stat.Size()))
	if err != nil {
		f.Close()
		return nil, dserrors.Wrap(err, dserrors.ErrorTypeIO, "mapping data file")
	}
	// Advisory only.
	_ = adviseSequential(data)

	return &Reader{file: f, data: data}, nil
}

// Bytes returns the mapped file contents.
func (r *Reader) Bytes() []byte {
	return r.data
}

// Size returns the mapped length in bytes.
func (r *Reader) Size() int64 {
	return int64(len(r.data))
}

// Close unmaps the file and closes it.
func (r *Reader) Close() error {
	var err error
	if r.data != nil {
		err = unmapFile(r.data)
		r.data = nil
	}
	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}
	return err
}
