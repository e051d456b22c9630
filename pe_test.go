package yapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPE_Validation(t *testing.T) {
	pe := buildImage32(t)

	dos, err := pe.DOSHeader()
	require.NoError(t, err)
	assert.True(t, dos.Valid())

	nt64, err := pe.NTHeaders64()
	require.NoError(t, err)
	assert.False(t, nt64.Valid())

	nt32, err := pe.NTHeaders32()
	require.NoError(t, err)
	assert.True(t, nt32.Valid())

	headers, err := pe.ValidNTHeaders()
	require.NoError(t, err)
	assert.True(t, headers.Is32())
	assert.False(t, headers.Is64())
}

func TestPE_InvalidSignatures(t *testing.T) {
	pe := buildImage32(t)

	dos, err := pe.DOSHeader()
	require.NoError(t, err)

	raw, err := dos.Raw()
	require.NoError(t, err)

	raw.Magic = 0x4D5A
	var invalidDOS *InvalidDOSSignatureError
	require.ErrorAs(t, dos.Validate(), &invalidDOS)
	raw.Magic = ImageDOSSignature

	nt, err := pe.NTHeaders32()
	require.NoError(t, err)

	rawNT, err := nt.Raw()
	require.NoError(t, err)

	rawNT.Signature = 0xDEADBEEF
	var invalidNT *InvalidNTSignatureError
	require.ErrorAs(t, nt.Validate(), &invalidNT)
	rawNT.Signature = ImageNTHeaderSignature

	rawNT.OptionalHeader.Magic = 0x1234
	var badMagic *UnexpectedOptionalMagicError
	_, err = pe.ValidNTHeaders()
	require.ErrorAs(t, err, &badMagic)
}

func TestPE_Accessors(t *testing.T) {
	pe := buildImage32(t)

	machine, err := pe.Machine()
	require.NoError(t, err)
	assert.Equal(t, uint16(ImageFileMachineI386), machine)

	arch, err := pe.Arch()
	require.NoError(t, err)
	assert.Equal(t, ArchI386, arch)

	magic, err := pe.NTMagic()
	require.NoError(t, err)
	assert.Equal(t, uint16(ImageNTOptionalHeader32Magic), magic)

	entrypoint, err := pe.Entrypoint()
	require.NoError(t, err)
	assert.Equal(t, RVA(0x3000), entrypoint)

	base, err := pe.ImageBase()
	require.NoError(t, err)
	assert.Equal(t, uint64(0x400000), base)
}

func TestPE_EntrypointResolvesToMarker(t *testing.T) {
	pe := buildImage32(t)

	entrypoint, err := pe.Entrypoint()
	require.NoError(t, err)

	offset, err := entrypoint.AsOffset(pe)
	require.NoError(t, err)
	assert.Equal(t, Offset(0x200), offset)

	data, err := ReadAs[byte](pe.Region, int(offset), len(compiledMarker))
	require.NoError(t, err)
	assert.Equal(t, []byte(compiledMarker), data)
}

func TestPE_DOSStub(t *testing.T) {
	pe := buildImage32(t)

	stub, err := pe.DOSStub()
	require.NoError(t, err)

	// e_lfanew sits right after the DOS header in this image
	assert.Equal(t, 0, stub.ByteLen())
}

func TestPE_Checksum(t *testing.T) {
	pe := buildImage32(t)

	checksum, err := pe.CalculateChecksum()
	require.NoError(t, err)

	valid, err := pe.ValidateChecksum()
	require.NoError(t, err)
	assert.False(t, valid)

	headers, err := pe.ValidNTHeaders()
	require.NoError(t, err)

	raw, err := headers.Get32().Raw()
	require.NoError(t, err)
	raw.OptionalHeader.CheckSum = checksum

	// the field itself is excluded from the sum, so writing it back
	// validates
	valid, err = pe.ValidateChecksum()
	require.NoError(t, err)
	assert.True(t, valid)

	recalculated, err := pe.CalculateChecksum()
	require.NoError(t, err)
	assert.Equal(t, checksum, recalculated)
}

func TestPE_SaveRoundTrip(t *testing.T) {
	pe := buildImage32(t)

	original, err := pe.Bytes()
	require.NoError(t, err)

	path := t.TempDir() + "/image.exe"
	require.NoError(t, pe.Save(path))

	reopened, err := Open(path, ImageTypeDisk)
	require.NoError(t, err)

	raw, err := reopened.Bytes()
	require.NoError(t, err)
	assert.Equal(t, original, raw)
}

func TestPE_AddSectionOverflow(t *testing.T) {
	pe := buildImage32(t)

	headers, err := pe.ValidNTHeaders()
	require.NoError(t, err)

	file, err := headers.FileHeader()
	require.NoError(t, err)

	raw, err := file.Raw()
	require.NoError(t, err)
	raw.NumberOfSections = 0xFFFF

	_, err = pe.AddSection(&RawSectionHeader{})
	require.ErrorIs(t, err, ErrSectionTableOverflow)

	// the count is untouched by the failed append
	assert.Equal(t, uint16(0xFFFF), raw.NumberOfSections)
}

func TestPE_DataDirectoryClamped(t *testing.T) {
	pe := buildImage32(t)

	headers, err := pe.ValidNTHeaders()
	require.NoError(t, err)

	raw, err := headers.Get32().Raw()
	require.NoError(t, err)
	raw.OptionalHeader.NumberOfRvaAndSizes = 32

	directory, err := pe.DataDirectory()
	require.NoError(t, err)
	assert.Equal(t, NumberOfDirectoryEntries, directory.Count())
}

func TestPE_DirectoryUnavailable(t *testing.T) {
	pe := buildImage32(t)

	_, err := pe.ExportDirectory()
	var unavailable *DirectoryUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, ImageDirectoryEntryExport, unavailable.Index)
}

func TestPE_CString(t *testing.T) {
	pe := buildImage32(t)

	require.NoError(t, pe.WriteBytes(0x300, []byte("forwarded.dll\x00")))

	value, err := CString(pe, 0x300)
	require.NoError(t, err)
	assert.Equal(t, "forwarded.dll", value)

	region, err := pe.CStringAt(0x300)
	require.NoError(t, err)
	assert.Equal(t, len("forwarded.dll")+1, region.ByteLen())
}

func TestPE_WString(t *testing.T) {
	pe := buildImage32(t)

	require.NoError(t, pe.WriteBytes(0x320, []byte{'e', 0, 'x', 0, 'e', 0, 0, 0}))

	value, err := WString(pe, 0x320)
	require.NoError(t, err)
	assert.Equal(t, "exe", value)

	region, err := pe.WStringAt(0x320)
	require.NoError(t, err)
	assert.Equal(t, 8, region.ByteLen())
	assert.Equal(t, 4, region.Elements())
}

func TestPE_ViewBorrowsCallerBytes(t *testing.T) {
	disk := buildImage32(t)

	raw, err := disk.Bytes()
	require.NoError(t, err)

	pe, err := View(raw, ImageTypeDisk)
	require.NoError(t, err)
	assert.False(t, pe.Owned())

	dos, err := pe.ValidDOSHeader()
	require.NoError(t, err)
	assert.True(t, dos.Valid())
}

func TestPE_MappedImage(t *testing.T) {
	disk := buildImage32(t)

	path := t.TempDir() + "/mapped.exe"
	require.NoError(t, disk.Save(path))

	mapped, err := OpenMapped(path, ImageTypeDisk)
	require.NoError(t, err)

	pe := mapped.PE()

	entrypoint, err := pe.Entrypoint()
	require.NoError(t, err)
	assert.Equal(t, RVA(0x3000), entrypoint)

	table, err := pe.SectionTable()
	require.NoError(t, err)
	section, err := table.At(0)
	require.NoError(t, err)

	require.NoError(t, mapped.Close())

	// the mapping is gone; views must not touch it
	_, err = section.Raw()
	var dangling *DanglingViewError
	require.ErrorAs(t, err, &dangling)
}
