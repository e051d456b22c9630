// Package yapp parses, validates, navigates and mutates Portable Executable
// images on any host platform. A PE holds a bounded byte region; headers,
// section tables and data directories are typed sub-views into that region,
// and addresses convert between file offsets, RVAs and virtual addresses
// through the section table.
package yapp

import (
	"unsafe"
)

// ImageType describes which layout the backing bytes follow.
type ImageType int

const (
	// ImageTypeDisk is an image laid out by file offsets.
	ImageTypeDisk ImageType = iota
	// ImageTypeMemory is an image already laid out virtually, but based
	// somewhere other than its image base.
	ImageTypeMemory
	// ImageTypeVirtual is an image laid out virtually at its live address in
	// this process.
	ImageTypeVirtual
)

// Arch is a recognised machine architecture.
type Arch uint16

const (
	ArchUnsupported Arch = ImageFileMachineUnknown
	ArchI386        Arch = ImageFileMachineI386
	ArchARM         Arch = ImageFileMachineARM
	ArchAMD64       Arch = ImageFileMachineAMD64
	ArchARM64       Arch = ImageFileMachineARM64
)

// PE is a Portable Executable image: a byte region plus the layout its bytes
// follow. The region is owned, except for images built by View or
// OpenMapped, which borrow it. Header accessors return borrowed views into the region;
// they never outlive it usefully, because freeing the region invalidates
// them.
type PE struct {
	*Region[byte]

	imageType ImageType
}

// New copies the given bytes into a fresh image.
func New(data []byte, imageType ImageType) (*PE, error) {
	region, err := Load[byte](data)
	if err != nil {
		return nil, err
	}

	return &PE{Region: region, imageType: imageType}, nil
}

// View adopts caller-owned bytes as a borrowed image. The caller keeps the
// bytes alive.
func View(data []byte, imageType ImageType) (*PE, error) {
	region, err := Borrow[byte](data)
	if err != nil {
		return nil, err
	}

	return &PE{Region: region, imageType: imageType}, nil
}

// Open reads a whole image file in binary mode.
func Open(path string, imageType ImageType) (*PE, error) {
	region, err := LoadFile[byte](path)
	if err != nil {
		return nil, err
	}

	return &PE{Region: region, imageType: imageType}, nil
}

// NewFromRegion adopts an existing byte region as an image.
func NewFromRegion(region *Region[byte], imageType ImageType) *PE {
	return &PE{Region: region, imageType: imageType}
}

// ImageType returns which layout the backing bytes follow.
func (pe *PE) ImageType() ImageType { return pe.imageType }

// DOSHeader returns a non-validating view over the DOS header.
func (pe *PE) DOSHeader() (*DOSHeader, error) {
	m, err := Sub[RawDOSHeader](pe.Region, 0, 1)
	if err != nil {
		return nil, err
	}

	return NewDOSHeader(m), nil
}

// ValidDOSHeader returns the DOS header after checking its signature.
func (pe *PE) ValidDOSHeader() (*DOSHeader, error) {
	header, err := pe.DOSHeader()
	if err != nil {
		return nil, err
	}

	if err := header.Validate(); err != nil {
		return nil, err
	}
	return header, nil
}

// eLfanew returns the offset of the NT headers from a validated DOS header.
func (pe *PE) eLfanew() (Offset, error) {
	header, err := pe.ValidDOSHeader()
	if err != nil {
		return 0, err
	}

	return header.AddressOfNewEXEHeader()
}

// DOSStub returns the bytes between the DOS header and the NT headers.
func (pe *PE) DOSStub() (*Region[byte], error) {
	offset, err := pe.eLfanew()
	if err != nil {
		return nil, err
	}

	if int(offset) < dosHeaderSize {
		return Sub[byte](pe.Region, dosHeaderSize, 0)
	}

	return Sub[byte](pe.Region, dosHeaderSize, int(offset)-dosHeaderSize)
}

// NTHeaders32 returns a non-validating 32-bit view over the NT headers.
func (pe *PE) NTHeaders32() (*NTHeaders32, error) {
	offset, err := pe.eLfanew()
	if err != nil {
		return nil, err
	}

	return NewNTHeaders32(pe.Region, int(offset))
}

// NTHeaders64 returns a non-validating 64-bit view over the NT headers.
func (pe *PE) NTHeaders64() (*NTHeaders64, error) {
	offset, err := pe.eLfanew()
	if err != nil {
		return nil, err
	}

	return NewNTHeaders64(pe.Region, int(offset))
}

// Machine returns the file header's machine code.
func (pe *PE) Machine() (uint16, error) {
	offset, err := pe.eLfanew()
	if err != nil {
		return 0, err
	}

	file, err := NewFileHeader(pe.Region, int(offset)+ntSignatureSize)
	if err != nil {
		return 0, err
	}

	raw, err := file.Raw()
	if err != nil {
		return 0, err
	}
	return raw.Machine, nil
}

// Arch maps the machine code onto a recognised architecture.
func (pe *PE) Arch() (Arch, error) {
	machine, err := pe.Machine()
	if err != nil {
		return ArchUnsupported, err
	}

	switch machine {
	case ImageFileMachineI386:
		return ArchI386, nil
	case ImageFileMachineAMD64:
		return ArchAMD64, nil
	case ImageFileMachineARM:
		return ArchARM, nil
	case ImageFileMachineARM64:
		return ArchARM64, nil
	default:
		return ArchUnsupported, nil
	}
}

// NTMagic returns the optional header's magic value.
func (pe *PE) NTMagic() (uint16, error) {
	offset, err := pe.eLfanew()
	if err != nil {
		return 0, err
	}

	magic, err := Cast[uint16](pe.Region, int(offset)+ntSignatureSize+fileHeaderSize)
	if err != nil {
		return 0, err
	}
	return *magic, nil
}

// ValidNTHeaders discriminates the NT headers by the optional header magic
// and validates them.
func (pe *PE) ValidNTHeaders() (*NTHeaders, error) {
	magic, err := pe.NTMagic()
	if err != nil {
		return nil, err
	}

	switch magic {
	case ImageNTOptionalHeader32Magic:
		headers, err := pe.NTHeaders32()
		if err != nil {
			return nil, err
		}

		if err := headers.Validate(); err != nil {
			return nil, err
		}
		return &NTHeaders{h32: headers}, nil
	case ImageNTOptionalHeader64Magic:
		headers, err := pe.NTHeaders64()
		if err != nil {
			return nil, err
		}

		if err := headers.Validate(); err != nil {
			return nil, err
		}
		return &NTHeaders{h64: headers}, nil
	default:
		return nil, &UnexpectedOptionalMagicError{Magic: magic}
	}
}

// imageSize returns SizeOfImage through the header matching the image's
// actual magic.
func (pe *PE) imageSize() (uint32, error) {
	headers, err := pe.ValidNTHeaders()
	if err != nil {
		return 0, err
	}

	if headers.Is32() {
		raw, err := headers.Get32().Raw()
		if err != nil {
			return 0, err
		}
		return raw.OptionalHeader.SizeOfImage, nil
	}

	raw, err := headers.Get64().Raw()
	if err != nil {
		return 0, err
	}
	return raw.OptionalHeader.SizeOfImage, nil
}

func (pe *PE) fileAlignment() (uint32, error) {
	headers, err := pe.ValidNTHeaders()
	if err != nil {
		return 0, err
	}

	if headers.Is32() {
		raw, err := headers.Get32().Raw()
		if err != nil {
			return 0, err
		}
		return raw.OptionalHeader.FileAlignment, nil
	}

	raw, err := headers.Get64().Raw()
	if err != nil {
		return 0, err
	}
	return raw.OptionalHeader.FileAlignment, nil
}

func (pe *PE) sectionAlignment() (uint32, error) {
	headers, err := pe.ValidNTHeaders()
	if err != nil {
		return 0, err
	}

	if headers.Is32() {
		raw, err := headers.Get32().Raw()
		if err != nil {
			return 0, err
		}
		return raw.OptionalHeader.SectionAlignment, nil
	}

	raw, err := headers.Get64().Raw()
	if err != nil {
		return 0, err
	}
	return raw.OptionalHeader.SectionAlignment, nil
}

// Entrypoint returns the image's entry point RVA.
func (pe *PE) Entrypoint() (RVA, error) {
	headers, err := pe.ValidNTHeaders()
	if err != nil {
		return 0, err
	}

	if headers.Is32() {
		raw, err := headers.Get32().Raw()
		if err != nil {
			return 0, err
		}
		return RVA(raw.OptionalHeader.AddressOfEntryPoint), nil
	}

	raw, err := headers.Get64().Raw()
	if err != nil {
		return 0, err
	}
	return RVA(raw.OptionalHeader.AddressOfEntryPoint), nil
}

// ImageBase returns the image's base address: the optional header's declared
// base, or the live buffer address for virtual images.
func (pe *PE) ImageBase() (uint64, error) {
	if pe.imageType == ImageTypeVirtual {
		if err := pe.valid(); err != nil {
			return 0, err
		}
		return uint64(uintptr(unsafe.Pointer(&pe.data[0]))), nil
	}

	headers, err := pe.ValidNTHeaders()
	if err != nil {
		return 0, err
	}

	if headers.Is32() {
		raw, err := headers.Get32().Raw()
		if err != nil {
			return 0, err
		}
		return uint64(raw.OptionalHeader.ImageBase), nil
	}

	raw, err := headers.Get64().Raw()
	if err != nil {
		return 0, err
	}
	return raw.OptionalHeader.ImageBase, nil
}

// DataDirectory returns the optional header's directory array view.
func (pe *PE) DataDirectory() (*DataDirectory, error) {
	headers, err := pe.ValidNTHeaders()
	if err != nil {
		return nil, err
	}

	optional, err := headers.OptionalHeader()
	if err != nil {
		return nil, err
	}

	return optional.DataDirectory()
}

// SectionTableOffset returns the file offset of the section table.
func (pe *PE) SectionTableOffset() (Offset, error) {
	offset, err := pe.eLfanew()
	if err != nil {
		return 0, err
	}

	headers, err := pe.ValidNTHeaders()
	if err != nil {
		return 0, err
	}

	file, err := headers.FileHeader()
	if err != nil {
		return 0, err
	}

	raw, err := file.Raw()
	if err != nil {
		return 0, err
	}

	return offset + ntSignatureSize + fileHeaderSize + Offset(raw.SizeOfOptionalHeader), nil
}

// SectionTable returns the image's section table view.
func (pe *PE) SectionTable() (*SectionTable, error) {
	offset, err := pe.SectionTableOffset()
	if err != nil {
		return nil, err
	}

	headers, err := pe.ValidNTHeaders()
	if err != nil {
		return nil, err
	}

	file, err := headers.FileHeader()
	if err != nil {
		return nil, err
	}

	raw, err := file.Raw()
	if err != nil {
		return nil, err
	}

	return NewSectionTable(pe.Region, int(offset), int(raw.NumberOfSections))
}

// AddSection appends a header to the section table. The header bytes must
// already fit inside the image's header space; the section count grows by
// one, up to the table's 0xFFFF ceiling.
func (pe *PE) AddSection(section *RawSectionHeader) (*SectionHeader, error) {
	headers, err := pe.ValidNTHeaders()
	if err != nil {
		return nil, err
	}

	file, err := headers.FileHeader()
	if err != nil {
		return nil, err
	}

	raw, err := file.Raw()
	if err != nil {
		return nil, err
	}

	if raw.NumberOfSections == 0xFFFF {
		return nil, ErrSectionTableOverflow
	}

	raw.NumberOfSections++

	table, err := pe.SectionTable()
	if err != nil {
		raw.NumberOfSections--
		return nil, err
	}

	added, err := table.At(table.Count() - 1)
	if err != nil {
		raw.NumberOfSections--
		return nil, err
	}

	target, err := added.Raw()
	if err != nil {
		raw.NumberOfSections--
		return nil, err
	}

	*target = *section
	return added, nil
}

// ValidateOffset reports whether the offset falls inside the file bytes.
func (pe *PE) ValidateOffset(offset Offset) bool {
	return int(offset) < pe.ByteLen()
}

// ValidateRVA reports whether the RVA falls inside the declared image size.
func (pe *PE) ValidateRVA(rva RVA) bool {
	size, err := pe.imageSize()
	if err != nil {
		return false
	}

	return uint32(rva) < size
}

// ValidateVA reports whether the virtual address falls inside the loaded
// image range.
func (pe *PE) ValidateVA(va VA) bool {
	size, err := pe.imageSize()
	if err != nil {
		return false
	}

	base, err := pe.ImageBase()
	if err != nil {
		return false
	}

	value := va.Value()
	return base <= value && value < base+uint64(size)
}

// IsAlignedToFile reports whether the offset sits on the file alignment.
func (pe *PE) IsAlignedToFile(offset Offset) bool {
	alignment, err := pe.fileAlignment()
	if err != nil || alignment == 0 {
		return false
	}

	return uint32(offset)%alignment == 0
}

// IsAlignedToSection reports whether the RVA sits on the section alignment.
func (pe *PE) IsAlignedToSection(rva RVA) bool {
	alignment, err := pe.sectionAlignment()
	if err != nil || alignment == 0 {
		return false
	}

	return uint32(rva)%alignment == 0
}

// AlignToFile rounds the offset up to the file alignment.
func (pe *PE) AlignToFile(offset Offset) (Offset, error) {
	alignment, err := pe.fileAlignment()
	if err != nil {
		return 0, err
	}

	return Align(offset, Offset(alignment)), nil
}

// AlignToSection rounds the RVA up to the section alignment.
func (pe *PE) AlignToSection(rva RVA) (RVA, error) {
	alignment, err := pe.sectionAlignment()
	if err != nil {
		return 0, err
	}

	return Align(rva, RVA(alignment)), nil
}

// OffsetToRVA converts a file offset to an RVA. Offsets inside a section map
// through the section's virtual address; offsets in the header space pass
// through when they are themselves valid RVAs.
func (pe *PE) OffsetToRVA(offset Offset) (RVA, error) {
	if !pe.ValidateOffset(offset) {
		return 0, &InvalidOffsetError{Offset: offset}
	}

	table, err := pe.SectionTable()
	if err != nil {
		return 0, err
	}

	section, err := table.SectionByOffset(offset)
	if err == ErrSectionNotFound {
		if !pe.ValidateRVA(RVA(offset)) {
			return 0, &InvalidRVAError{RVA: RVA(offset)}
		}
		return RVA(offset), nil
	}
	if err != nil {
		return 0, err
	}

	raw, err := section.Raw()
	if err != nil {
		return 0, err
	}

	rva := RVA(uint32(offset) - raw.PointerToRawData + raw.VirtualAddress)

	inSection, err := section.HasRVA(rva)
	if err != nil {
		return 0, err
	}

	if !pe.ValidateRVA(rva) || !inSection {
		return 0, &InvalidRVAError{RVA: rva}
	}
	return rva, nil
}

// OffsetToVA converts a file offset to a virtual address.
func (pe *PE) OffsetToVA(offset Offset) (VA, error) {
	rva, err := pe.OffsetToRVA(offset)
	if err != nil {
		return VA{}, err
	}

	return pe.RVAToVA(rva)
}

// RVAToOffset converts an RVA to a file offset. RVAs inside a section map
// through the section's raw pointer; RVAs outside every section pass through
// when they are themselves valid file offsets.
func (pe *PE) RVAToOffset(rva RVA) (Offset, error) {
	if !pe.ValidateRVA(rva) {
		return 0, &InvalidRVAError{RVA: rva}
	}

	table, err := pe.SectionTable()
	if err != nil {
		return 0, err
	}

	section, err := table.SectionByRVA(rva)
	if err == ErrSectionNotFound {
		if !pe.ValidateOffset(Offset(rva)) {
			return 0, &InvalidOffsetError{Offset: Offset(rva)}
		}
		return Offset(rva), nil
	}
	if err != nil {
		return 0, err
	}

	raw, err := section.Raw()
	if err != nil {
		return 0, err
	}

	offset := Offset(uint32(rva) - raw.VirtualAddress + raw.PointerToRawData)

	inSection, err := section.HasOffset(offset)
	if err != nil {
		return 0, err
	}

	if !pe.ValidateOffset(offset) || !inSection {
		return 0, &InvalidOffsetError{Offset: offset}
	}
	return offset, nil
}

// RVAToVA converts an RVA to a virtual address, narrowed to the width of the
// image's architecture.
func (pe *PE) RVAToVA(rva RVA) (VA, error) {
	if !pe.ValidateRVA(rva) {
		return VA{}, &InvalidRVAError{RVA: rva}
	}

	base, err := pe.ImageBase()
	if err != nil {
		return VA{}, err
	}

	arch, err := pe.Arch()
	if err != nil {
		return VA{}, err
	}

	var va VA

	switch arch {
	case ArchI386, ArchARM:
		va = NewVA32(VA32(uint32(rva) + uint32(base)))
	case ArchAMD64, ArchARM64:
		va = NewVA64(VA64(uint64(rva) + base))
	default:
		return VA{}, ErrUnsupportedArchitecture
	}

	if !pe.ValidateVA(va) {
		return VA{}, &InvalidVAError{VA: va}
	}
	return va, nil
}

// VAToRVA converts a virtual address back to an RVA.
func (pe *PE) VAToRVA(va VA) (RVA, error) {
	if !pe.ValidateVA(va) {
		return 0, &InvalidVAError{VA: va}
	}

	base, err := pe.ImageBase()
	if err != nil {
		return 0, err
	}

	rva := RVA(uint32(va.Value() - base))

	if !pe.ValidateRVA(rva) {
		return 0, &InvalidRVAError{RVA: rva}
	}
	return rva, nil
}

// VAToOffset converts a virtual address to a file offset.
func (pe *PE) VAToOffset(va VA) (Offset, error) {
	rva, err := pe.VAToRVA(va)
	if err != nil {
		return 0, err
	}

	return pe.RVAToOffset(rva)
}

// offsetMemoryAddress returns the backing-byte index named by a file offset:
// the offset itself on disk images, its RVA otherwise.
func (pe *PE) offsetMemoryAddress(offset Offset) (int, error) {
	if pe.imageType == ImageTypeDisk && pe.ValidateOffset(offset) {
		return int(offset), nil
	}

	rva, err := pe.OffsetToRVA(offset)
	if err != nil {
		return 0, err
	}
	return int(rva), nil
}

// rvaMemoryAddress returns the backing-byte index named by an RVA: its file
// offset on disk images, the RVA itself otherwise.
func (pe *PE) rvaMemoryAddress(rva RVA) (int, error) {
	if pe.imageType == ImageTypeDisk {
		offset, err := pe.RVAToOffset(rva)
		if err != nil {
			return 0, err
		}
		return int(offset), nil
	}

	if !pe.ValidateRVA(rva) {
		return 0, &InvalidRVAError{RVA: rva}
	}
	return int(rva), nil
}

// vaMemoryAddress returns the backing-byte index named by a virtual address.
func (pe *PE) vaMemoryAddress(va VA) (int, error) {
	rva, err := pe.VAToRVA(va)
	if err != nil {
		return 0, err
	}

	return pe.rvaMemoryAddress(rva)
}

// ExportDirectory resolves directory slot 0 and returns the export directory
// specialisation matching the image's architecture. The export arrays are
// sized by the directory's NumberOfFunctions and NumberOfNames counts, not by
// the slot's Size field; the slot is kept only to classify forwarder thunks.
func (pe *PE) ExportDirectory() (*ExportDirectory, error) {
	directory, err := pe.DataDirectory()
	if err != nil {
		return nil, err
	}

	if !directory.HasDirectory(pe, ImageDirectoryEntryExport) {
		return nil, &DirectoryUnavailableError{Index: ImageDirectoryEntryExport}
	}

	entry, err := directory.Entry(ImageDirectoryEntryExport)
	if err != nil {
		return nil, err
	}

	address, err := RVA(entry.VirtualAddress).AsMemory(pe)
	if err != nil {
		return nil, err
	}

	m, err := Sub[RawExportDirectory](pe.Region, address, 1)
	if err != nil {
		return nil, err
	}

	arch, err := pe.Arch()
	if err != nil {
		return nil, err
	}

	switch arch {
	case ArchI386, ArchARM:
		return &ExportDirectory{e32: &ExportDirectory32{m: m, slot: *entry}}, nil
	case ArchAMD64, ArchARM64:
		return &ExportDirectory{e64: &ExportDirectory64{m: m, slot: *entry}}, nil
	default:
		return nil, ErrUnsupportedArchitecture
	}
}

// CalculateChecksum folds a 32-bit sum over the whole image, treating the
// optional header's CheckSum field as zero.
func (pe *PE) CalculateChecksum() (uint32, error) {
	offset, err := pe.eLfanew()
	if err != nil {
		return 0, err
	}

	if _, err := pe.ValidNTHeaders(); err != nil {
		return 0, err
	}

	if err := pe.valid(); err != nil {
		return 0, err
	}

	checksumOffset := int(offset) + ntSignatureSize + fileHeaderSize + checksumFieldOffset
	eof := len(pe.data)

	var sum uint64

	for o := 0; o < eof; o += 4 {
		if o == checksumOffset {
			continue
		}

		var value uint32
		for i := 0; i < 4 && o+i < eof; i++ {
			value |= uint32(pe.data[o+i]) << (8 * i)
		}

		sum = (sum & 0xFFFFFFFF) + uint64(value) + (sum >> 32)
		if sum > 0xFFFFFFFF {
			sum = (sum & 0xFFFFFFFF) + (sum >> 32)
		}
	}

	sum = (sum & 0xFFFF) + (sum >> 16)
	sum = sum + (sum >> 16)
	sum = sum & 0xFFFF
	sum += uint64(eof)

	return uint32(sum & 0xFFFFFFFF), nil
}

// ValidateChecksum reports whether the optional header's CheckSum field
// matches the calculated checksum.
func (pe *PE) ValidateChecksum() (bool, error) {
	headers, err := pe.ValidNTHeaders()
	if err != nil {
		return false, err
	}

	var declared uint32

	if headers.Is32() {
		raw, err := headers.Get32().Raw()
		if err != nil {
			return false, err
		}
		declared = raw.OptionalHeader.CheckSum
	} else {
		raw, err := headers.Get64().Raw()
		if err != nil {
			return false, err
		}
		declared = raw.OptionalHeader.CheckSum
	}

	calculated, err := pe.CalculateChecksum()
	if err != nil {
		return false, err
	}

	return declared == calculated, nil
}

// CStringAt returns a view over the NUL-terminated string at the given
// backing-byte index, terminator included.
func (pe *PE) CStringAt(memoryOffset int) (*Region[byte], error) {
	if err := pe.valid(); err != nil {
		return nil, err
	}

	if memoryOffset < 0 || memoryOffset >= len(pe.data) {
		return nil, &OutOfBoundsError{Offset: memoryOffset, Length: len(pe.data)}
	}

	end := memoryOffset
	for end < len(pe.data) && pe.data[end] != 0 {
		end++
	}

	if end < len(pe.data) {
		end++ // keep the terminator
	}

	return Sub[byte](pe.Region, memoryOffset, end-memoryOffset)
}

// WStringAt returns a view over the NUL-terminated UTF-16 string at the
// given backing-byte index, terminator included.
func (pe *PE) WStringAt(memoryOffset int) (*Region[uint16], error) {
	if err := pe.valid(); err != nil {
		return nil, err
	}

	if memoryOffset < 0 || memoryOffset >= len(pe.data) {
		return nil, &OutOfBoundsError{Offset: memoryOffset, Length: len(pe.data)}
	}

	end := memoryOffset
	for end+2 <= len(pe.data) && (pe.data[end] != 0 || pe.data[end+1] != 0) {
		end += 2
	}

	if end+2 <= len(pe.data) {
		end += 2 // keep the terminator
	}

	return SubBytes[uint16](pe.Region, memoryOffset, end-memoryOffset)
}
