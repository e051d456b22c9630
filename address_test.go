package yapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress_OffsetToRVA(t *testing.T) {
	pe := buildImage32(t)

	tests := []struct {
		name   string
		offset Offset
		want   RVA
	}{
		{name: "inside section", offset: 0x200, want: 0x3000},
		{name: "section interior", offset: 0x210, want: 0x3010},
		{name: "header passthrough", offset: 0x10, want: 0x10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rva, err := tt.offset.AsRVA(pe)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rva)
		})
	}
}

func TestAddress_RoundTrips(t *testing.T) {
	pe := buildImage32(t)

	offsets := []Offset{0x10, 0x200, 0x210, 0x3FF}

	for _, offset := range offsets {
		rva, err := offset.AsRVA(pe)
		require.NoError(t, err)

		back, err := rva.AsOffset(pe)
		require.NoError(t, err)
		assert.Equal(t, offset, back, "offset %#x", uint32(offset))
	}

	rvas := []RVA{0x10, 0x3000, 0x3010}

	for _, rva := range rvas {
		offset, err := rva.AsOffset(pe)
		require.NoError(t, err)

		back, err := offset.AsRVA(pe)
		require.NoError(t, err)
		assert.Equal(t, rva, back, "rva %#x", uint32(rva))
	}
}

func TestAddress_VARoundTrip(t *testing.T) {
	pe := buildImage32(t)

	for _, rva := range []RVA{0x10, 0x3000, 0x3010} {
		va, err := rva.AsVA(pe)
		require.NoError(t, err)
		require.True(t, va.Is32())
		assert.Equal(t, VA32(0x400000+uint32(rva)), va.Get32())

		back, err := va.AsRVA(pe)
		require.NoError(t, err)
		assert.Equal(t, rva, back)
	}
}

func TestAddress_VARoundTrip64(t *testing.T) {
	pe := buildDLL64(t)

	va, err := RVA(0x1024).AsVA(pe)
	require.NoError(t, err)
	require.True(t, va.Is64())
	assert.Equal(t, VA64(0x140001024), va.Get64())

	back, err := va.AsRVA(pe)
	require.NoError(t, err)
	assert.Equal(t, RVA(0x1024), back)
}

func TestAddress_InvalidConversions(t *testing.T) {
	pe := buildImage32(t)

	// outside the declared image
	_, err := RVA(0x4000).AsOffset(pe)
	var invalidRVA *InvalidRVAError
	require.ErrorAs(t, err, &invalidRVA)

	// outside the file bytes
	_, err = Offset(0x400).AsRVA(pe)
	var invalidOffset *InvalidOffsetError
	require.ErrorAs(t, err, &invalidOffset)

	// below the image base
	_, err = pe.VAToRVA(NewVA32(0x1000))
	var invalidVA *InvalidVAError
	require.ErrorAs(t, err, &invalidVA)
}

func TestAddress_UnsupportedArchitecture(t *testing.T) {
	pe := buildImage32(t)

	headers, err := pe.NTHeaders32()
	require.NoError(t, err)

	file, err := headers.FileHeader()
	require.NoError(t, err)

	raw, err := file.Raw()
	require.NoError(t, err)
	raw.Machine = 0x1234

	_, err = RVA(0x3000).AsVA(pe)
	require.ErrorIs(t, err, ErrUnsupportedArchitecture)
}

func TestAddress_MemoryAddress(t *testing.T) {
	pe := buildImage32(t)

	// on a disk image the native coordinate is the file offset
	address, err := RVA(0x3000).AsMemory(pe)
	require.NoError(t, err)
	assert.Equal(t, 0x200, address)

	address, err = Offset(0x200).AsMemory(pe)
	require.NoError(t, err)
	assert.Equal(t, 0x200, address)
}

func TestAddress_MemoryAddressVirtualLayout(t *testing.T) {
	disk := buildImage32(t)

	// lay the image out virtually: headers at zero, section data at its RVA
	laid := make([]byte, 0x4000)
	raw, err := disk.Bytes()
	require.NoError(t, err)
	copy(laid, raw[:0x200])
	copy(laid[0x3000:], raw[0x200:0x400])

	pe, err := New(laid, ImageTypeMemory)
	require.NoError(t, err)

	address, err := RVA(0x3000).AsMemory(pe)
	require.NoError(t, err)
	assert.Equal(t, 0x3000, address)

	address, err = Offset(0x200).AsMemory(pe)
	require.NoError(t, err)
	assert.Equal(t, 0x3000, address)

	marker, err := CString(pe, address)
	require.NoError(t, err)
	assert.Equal(t, compiledMarker, marker)
}

func TestAddress_Alignment(t *testing.T) {
	pe := buildImage32(t)

	aligned, err := pe.AlignToFile(Offset(0x201))
	require.NoError(t, err)
	assert.Equal(t, Offset(0x400), aligned)

	aligned, err = pe.AlignToFile(Offset(0x200))
	require.NoError(t, err)
	assert.Equal(t, Offset(0x200), aligned)

	alignedRVA, err := pe.AlignToSection(RVA(0x3001))
	require.NoError(t, err)
	assert.Equal(t, RVA(0x4000), alignedRVA)

	assert.True(t, pe.IsAlignedToFile(Offset(0x200)))
	assert.False(t, pe.IsAlignedToFile(Offset(0x201)))
	assert.True(t, pe.IsAlignedToSection(RVA(0x3000)))
	assert.False(t, pe.IsAlignedToSection(RVA(0x3001)))
}
