package yapp

import "bytes"

const sectionHeaderSize = 40

// SectionHeader is a typed view over one section table entry.
type SectionHeader struct {
	m *Region[RawSectionHeader]
}

// NewSectionHeader wraps the section header at the given byte offset of an
// image.
func NewSectionHeader(image *Region[byte], byteOffset int) (*SectionHeader, error) {
	m, err := Sub[RawSectionHeader](image, byteOffset, 1)
	if err != nil {
		return nil, err
	}

	return &SectionHeader{m: m}, nil
}

// Raw returns a pointer to the underlying structure.
func (s *SectionHeader) Raw() (*RawSectionHeader, error) {
	return s.m.Get(0)
}

// NameSize returns the length of the name with trailing zero padding
// stripped.
func (s *SectionHeader) NameSize() (int, error) {
	raw, err := s.Raw()
	if err != nil {
		return 0, err
	}

	size := SizeOfShortName
	for size > 0 && raw.Name[size-1] == 0 {
		size--
	}
	return size, nil
}

// Name returns the section name as a string.
func (s *SectionHeader) Name() (string, error) {
	raw, err := s.Raw()
	if err != nil {
		return "", err
	}

	size, err := s.NameSize()
	if err != nil {
		return "", err
	}

	return string(raw.Name[:size]), nil
}

// NameBytes returns all eight name bytes, padding included.
func (s *SectionHeader) NameBytes() ([]byte, error) {
	raw, err := s.Raw()
	if err != nil {
		return nil, err
	}

	dup := make([]byte, SizeOfShortName)
	copy(dup, raw.Name[:])
	return dup, nil
}

// HasOffset reports whether the file offset falls within the section's raw
// data range.
func (s *SectionHeader) HasOffset(offset Offset) (bool, error) {
	raw, err := s.Raw()
	if err != nil {
		return false, err
	}

	o := uint32(offset)
	return o >= raw.PointerToRawData && o < raw.PointerToRawData+raw.SizeOfRawData, nil
}

// HasRVA reports whether the RVA falls within the section's virtual range.
func (s *SectionHeader) HasRVA(rva RVA) (bool, error) {
	raw, err := s.Raw()
	if err != nil {
		return false, err
	}

	r := uint32(rva)
	return r >= raw.VirtualAddress && r < raw.VirtualAddress+raw.VirtualSize, nil
}

// IsAlignedToFile reports whether the raw data pointer sits on the image's
// file alignment.
func (s *SectionHeader) IsAlignedToFile(pe *PE) (bool, error) {
	raw, err := s.Raw()
	if err != nil {
		return false, err
	}

	return pe.IsAlignedToFile(Offset(raw.PointerToRawData)), nil
}

// IsAlignedToSection reports whether the virtual address sits on the image's
// section alignment.
func (s *SectionHeader) IsAlignedToSection(pe *PE) (bool, error) {
	raw, err := s.Raw()
	if err != nil {
		return false, err
	}

	return pe.IsAlignedToSection(RVA(raw.VirtualAddress)), nil
}

// MemoryAddress returns the backing-byte index of the section's data for the
// PE's image type.
func (s *SectionHeader) MemoryAddress(pe *PE) (int, error) {
	raw, err := s.Raw()
	if err != nil {
		return 0, err
	}

	if pe.ImageType() == ImageTypeDisk {
		return Offset(raw.PointerToRawData).AsMemory(pe)
	}
	return RVA(raw.VirtualAddress).AsMemory(pe)
}

// Size returns the section's data size for the PE's image type: raw size on
// disk images, virtual size otherwise.
func (s *SectionHeader) Size(pe *PE) (int, error) {
	raw, err := s.Raw()
	if err != nil {
		return 0, err
	}

	if pe.ImageType() == ImageTypeDisk {
		return int(raw.SizeOfRawData), nil
	}
	return int(raw.VirtualSize), nil
}

// Data returns a sub-view of the PE's bytes covering the section's data.
func (s *SectionHeader) Data(pe *PE) (*Region[byte], error) {
	address, err := s.MemoryAddress(pe)
	if err != nil {
		return nil, err
	}

	size, err := s.Size(pe)
	if err != nil {
		return nil, err
	}

	return Sub[byte](pe.Region, address, size)
}

// SectionTable is an ordered view over the image's section headers.
// Iteration order is the on-disk order.
type SectionTable struct {
	m      *Region[RawSectionHeader]
	image  *Region[byte]
	offset int
}

// NewSectionTable wraps count section headers at the given byte offset of an
// image.
func NewSectionTable(image *Region[byte], byteOffset, count int) (*SectionTable, error) {
	m, err := Sub[RawSectionHeader](image, byteOffset, count)
	if err != nil {
		return nil, err
	}

	return &SectionTable{m: m, image: image, offset: byteOffset}, nil
}

// Count returns the number of sections in the table.
func (t *SectionTable) Count() int { return t.m.Elements() }

// At returns a view over the section header at the given index.
func (t *SectionTable) At(index int) (*SectionHeader, error) {
	if index < 0 || index >= t.Count() {
		return nil, &OutOfBoundsError{Offset: index, Length: t.Count()}
	}

	return NewSectionHeader(t.image, t.offset+index*sectionHeaderSize)
}

// HasOffset reports whether any section's raw range contains the offset.
func (t *SectionTable) HasOffset(offset Offset) (bool, error) {
	for i := 0; i < t.Count(); i++ {
		section, err := t.At(i)
		if err != nil {
			return false, err
		}

		ok, err := section.HasOffset(offset)
		if err != nil {
			return false, err
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

// HasRVA reports whether any section's virtual range contains the RVA.
func (t *SectionTable) HasRVA(rva RVA) (bool, error) {
	for i := 0; i < t.Count(); i++ {
		section, err := t.At(i)
		if err != nil {
			return false, err
		}

		ok, err := section.HasRVA(rva)
		if err != nil {
			return false, err
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

// SectionByOffset returns the section whose raw range contains the offset.
func (t *SectionTable) SectionByOffset(offset Offset) (*SectionHeader, error) {
	for i := 0; i < t.Count(); i++ {
		section, err := t.At(i)
		if err != nil {
			return nil, err
		}

		ok, err := section.HasOffset(offset)
		if err != nil {
			return nil, err
		}

		if ok {
			return section, nil
		}
	}

	return nil, ErrSectionNotFound
}

// SectionByRVA returns the section whose virtual range contains the RVA.
func (t *SectionTable) SectionByRVA(rva RVA) (*SectionHeader, error) {
	for i := 0; i < t.Count(); i++ {
		section, err := t.At(i)
		if err != nil {
			return nil, err
		}

		ok, err := section.HasRVA(rva)
		if err != nil {
			return nil, err
		}

		if ok {
			return section, nil
		}
	}

	return nil, ErrSectionNotFound
}

// SectionByName returns the section with the given name. Comparison is
// byte-exact against the zero-stripped name; lookups longer than eight bytes
// compare the eight-byte prefix.
func (t *SectionTable) SectionByName(name string) (*SectionHeader, error) {
	return t.SectionByNameBytes([]byte(name))
}

// SectionByNameBytes is SectionByName for a raw name.
func (t *SectionTable) SectionByNameBytes(name []byte) (*SectionHeader, error) {
	compare := minInt(len(name), SizeOfShortName)

	for i := 0; i < t.Count(); i++ {
		section, err := t.At(i)
		if err != nil {
			return nil, err
		}

		size, err := section.NameSize()
		if err != nil {
			return nil, err
		}

		if size != compare {
			continue
		}

		raw, err := section.Raw()
		if err != nil {
			return nil, err
		}

		if bytes.Equal(raw.Name[:compare], name[:compare]) {
			return section, nil
		}
	}

	return nil, ErrSectionNotFound
}
