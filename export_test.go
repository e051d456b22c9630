package yapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportDirectory_Parse(t *testing.T) {
	pe := buildDLL64(t)

	directory, err := pe.ExportDirectory()
	require.NoError(t, err)
	require.True(t, directory.Is64())
	require.False(t, directory.Is32())
	assert.Equal(t, ImageDirectoryEntryExport, directory.DirectoryIndex())

	name, err := directory.Name(pe)
	require.NoError(t, err)
	assert.Equal(t, "dll.dll", name)

	exports, err := directory.Get64().ExportMap(pe)
	require.NoError(t, err)
	require.Len(t, exports, 1)

	thunk, ok := exports["export"]
	require.True(t, ok)
	assert.Equal(t, RVA(0x1024), thunk.RVA())
	assert.False(t, thunk.IsOrdinal())
	assert.Equal(t, ThunkFunction, directory.Get64().Classify(thunk))
}

func TestExportDirectory_RoundTrip(t *testing.T) {
	pe := buildDLL64(t)

	directory, err := pe.ExportDirectory()
	require.NoError(t, err)

	exports, err := directory.Get64().ExportMap(pe)
	require.NoError(t, err)

	functions, err := directory.Get64().Functions(pe)
	require.NoError(t, err)

	names, err := directory.Get64().Names(pe)
	require.NoError(t, err)

	ordinals, err := directory.Get64().NameOrdinals(pe)
	require.NoError(t, err)

	// every name resolves back to the thunk its ordinal points at
	for i := 0; i < names.Elements(); i++ {
		nameRVA, err := names.Get(i)
		require.NoError(t, err)

		address, err := nameRVA.AsMemory(pe)
		require.NoError(t, err)

		name, err := CString(pe, address)
		require.NoError(t, err)

		ordinal, err := ordinals.Get(i)
		require.NoError(t, err)

		thunk, err := functions.Get(int(*ordinal))
		require.NoError(t, err)

		assert.Equal(t, *thunk, exports[name])
	}
}

func TestExportDirectory_OrdinalLookup(t *testing.T) {
	pe := buildDLL64(t)

	directory, err := pe.ExportDirectory()
	require.NoError(t, err)

	// Base is 1, so the first function is ordinal 1
	thunk, err := directory.Get64().Function(pe, 1)
	require.NoError(t, err)
	assert.Equal(t, RVA(0x1024), thunk.RVA())
}

func TestExportDirectory_ThunkSemantics(t *testing.T) {
	pe := buildDLL64(t)

	directory, err := pe.ExportDirectory()
	require.NoError(t, err)
	exports := directory.Get64()

	ordinal := ExportThunk64(imageOrdinalFlag64 | 7)
	assert.True(t, ordinal.IsOrdinal())
	assert.Equal(t, uint32(7), ordinal.Ordinal())
	assert.Equal(t, ThunkOrdinal, exports.Classify(ordinal))

	// an RVA inside the directory's own slot range is a forwarder
	forwarder := ExportThunk64(0x10F0)
	assert.Equal(t, ThunkForwarder, exports.Classify(forwarder))

	require.NoError(t, pe.WriteBytes(0x2F0, []byte("other.other_export\x00")))

	target, err := exports.ForwarderString(pe, forwarder)
	require.NoError(t, err)
	assert.Equal(t, "other.other_export", target)
}

func TestExportThunk32_Semantics(t *testing.T) {
	ordinal := ExportThunk32(imageOrdinalFlag32 | 42)
	assert.True(t, ordinal.IsOrdinal())
	assert.Equal(t, uint16(42), ordinal.Ordinal())

	function := ExportThunk32(0x2000)
	assert.False(t, function.IsOrdinal())
	assert.Equal(t, RVA(0x2000), function.RVA())
}
