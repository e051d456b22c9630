package yapp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const compiledMarker = " * a 'compiled' PE\n"

// buildImage32 synthesizes a minimal 32-bit image: defaulted headers, one
// .text section at RVA 0x3000 backed by file offset 0x200, and a marker
// string at the start of the section data.
func buildImage32(t *testing.T) *PE {
	t.Helper()

	pe, err := New(make([]byte, 0x400), ImageTypeDisk)
	require.NoError(t, err)

	dos, err := pe.DOSHeader()
	require.NoError(t, err)
	require.NoError(t, dos.SetDefaults())

	rawDOS, err := dos.Raw()
	require.NoError(t, err)
	rawDOS.AddressOfNewEXEHeader = 0x40

	nt, err := NewNTHeaders32(pe.Region, 0x40)
	require.NoError(t, err)
	require.NoError(t, nt.SetDefaults())

	optional, err := nt.OptionalHeader()
	require.NoError(t, err)

	rawOptional, err := optional.Raw()
	require.NoError(t, err)
	rawOptional.AddressOfEntryPoint = 0x3000
	rawOptional.FileAlignment = 0x200
	rawOptional.SectionAlignment = 0x1000
	rawOptional.SizeOfImage = 0x4000
	rawOptional.SizeOfHeaders = 0x200

	_, err = pe.AddSection(&RawSectionHeader{
		Name:             [8]uint8{'.', 't', 'e', 'x', 't'},
		VirtualSize:      0x1000,
		VirtualAddress:   0x3000,
		SizeOfRawData:    0x200,
		PointerToRawData: 0x200,
		Characteristics:  ImageScnCntCode | ImageScnMemRead | ImageScnMemExecute,
	})
	require.NoError(t, err)

	require.NoError(t, pe.WriteBytes(0x200, []byte(compiledMarker)))

	return pe
}

// buildDLL64 synthesizes a minimal 64-bit DLL exporting one function named
// "export" at RVA 0x1024, with the export directory in an .edata section at
// RVA 0x1000.
func buildDLL64(t *testing.T) *PE {
	t.Helper()

	pe, err := New(make([]byte, 0x400), ImageTypeDisk)
	require.NoError(t, err)

	dos, err := pe.DOSHeader()
	require.NoError(t, err)
	require.NoError(t, dos.SetDefaults())

	rawDOS, err := dos.Raw()
	require.NoError(t, err)
	rawDOS.AddressOfNewEXEHeader = 0x40

	nt, err := NewNTHeaders64(pe.Region, 0x40)
	require.NoError(t, err)
	require.NoError(t, nt.SetDefaults())

	file, err := nt.FileHeader()
	require.NoError(t, err)

	rawFile, err := file.Raw()
	require.NoError(t, err)
	rawFile.Characteristics |= ImageFileDLL

	optional, err := nt.OptionalHeader()
	require.NoError(t, err)

	rawOptional, err := optional.Raw()
	require.NoError(t, err)
	rawOptional.AddressOfEntryPoint = 0x1000
	rawOptional.FileAlignment = 0x200
	rawOptional.SectionAlignment = 0x1000
	rawOptional.SizeOfImage = 0x2000
	rawOptional.SizeOfHeaders = 0x200
	rawOptional.DataDirectory[ImageDirectoryEntryExport] = RawDataDirectory{
		VirtualAddress: 0x1080,
		Size:           0x80,
	}

	_, err = pe.AddSection(&RawSectionHeader{
		Name:             [8]uint8{'.', 'e', 'd', 'a', 't', 'a'},
		VirtualSize:      0x1000,
		VirtualAddress:   0x1000,
		SizeOfRawData:    0x200,
		PointerToRawData: 0x200,
		Characteristics:  ImageScnCntInitializedData | ImageScnMemRead,
	})
	require.NoError(t, err)

	// export directory at RVA 0x1080 = offset 0x280
	require.NoError(t, Put(pe.Region, 0x280, RawExportDirectory{
		Name:                  0x10D0,
		Base:                  1,
		NumberOfFunctions:     1,
		NumberOfNames:         1,
		AddressOfFunctions:    0x10A8,
		AddressOfNames:        0x10B0,
		AddressOfNameOrdinals: 0x10B8,
	}))

	require.NoError(t, Put(pe.Region, 0x2A8, uint64(0x1024))) // function thunks
	require.NoError(t, Put(pe.Region, 0x2B0, uint32(0x10C0))) // name RVAs
	require.NoError(t, Put(pe.Region, 0x2B8, uint32(0)))      // name ordinals

	require.NoError(t, pe.WriteBytes(0x2C0, []byte("export\x00")))
	require.NoError(t, pe.WriteBytes(0x2D0, []byte("dll.dll\x00")))

	return pe
}
