package yapp

import (
	"os"

	"github.com/edsrzf/mmap-go"
)

// MappedImage is a PE borrowed from a memory-mapped file instead of a copied
// buffer. Closing it unmaps the file and invalidates the image region along
// with every view derived from it.
type MappedImage struct {
	pe      *PE
	file    *os.File
	mapping mmap.MMap
}

// OpenMapped maps an image file read-only and wraps it as a borrowed PE.
func OpenMapped(path string, imageType ImageType) (*MappedImage, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &OpenFileError{Path: path, Err: err}
	}

	mapping, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		file.Close()
		return nil, &OpenFileError{Path: path, Err: err}
	}

	if len(mapping) == 0 {
		mapping.Unmap()
		file.Close()
		return nil, ErrBadAllocation
	}

	pe, err := View(mapping, imageType)
	if err != nil {
		mapping.Unmap()
		file.Close()
		return nil, err
	}

	return &MappedImage{pe: pe, file: file, mapping: mapping}, nil
}

// PE returns the borrowed image.
func (m *MappedImage) PE() *PE { return m.pe }

// Close invalidates the image region and its descendants, unmaps the file
// and closes it. Any view still held fails with a dangling-view error.
func (m *MappedImage) Close() error {
	m.pe.tracker.Invalidate(m.pe.key())

	err := m.mapping.Unmap()

	if closeErr := m.file.Close(); err == nil {
		err = closeErr
	}
	return err
}
