package yapp

// ThunkKind classifies an export thunk.
type ThunkKind int

const (
	// ThunkFunction is a thunk whose RVA points at code.
	ThunkFunction ThunkKind = iota
	// ThunkForwarder is a thunk whose RVA points back into the export
	// directory, at a "OtherDll.OtherName" forwarder string.
	ThunkForwarder
	// ThunkOrdinal is a thunk carrying an ordinal instead of an RVA.
	ThunkOrdinal
)

// ExportThunk32 is one entry of a 32-bit export functions array.
type ExportThunk32 uint32

// IsOrdinal reports whether the thunk's ordinal bit is set.
func (t ExportThunk32) IsOrdinal() bool { return uint32(t)&imageOrdinalFlag32 != 0 }

// Ordinal returns the thunk's ordinal value.
func (t ExportThunk32) Ordinal() uint16 { return uint16(uint32(t) & 0xFFFF) }

// RVA returns the thunk's RVA. Only meaningful for non-ordinal thunks.
func (t ExportThunk32) RVA() RVA { return RVA(uint32(t)) }

// ExportThunk64 is one entry of a 64-bit export functions array.
type ExportThunk64 uint64

// IsOrdinal reports whether the thunk's ordinal bit is set.
func (t ExportThunk64) IsOrdinal() bool { return uint64(t)&imageOrdinalFlag64 != 0 }

// Ordinal returns the thunk's ordinal value.
func (t ExportThunk64) Ordinal() uint32 { return uint32(uint64(t) & 0xFFFFFFFF) }

// RVA returns the thunk's RVA. Only meaningful for non-ordinal thunks.
func (t ExportThunk64) RVA() RVA { return RVA(uint32(uint64(t))) }

// ExportDirectory32 is a typed view over a 32-bit image's export directory.
type ExportDirectory32 struct {
	m    *Region[RawExportDirectory]
	slot RawDataDirectory
}

// DirectoryIndex returns the directory slot this type parses.
func (d *ExportDirectory32) DirectoryIndex() int { return ImageDirectoryEntryExport }

// Raw returns a pointer to the underlying structure.
func (d *ExportDirectory32) Raw() (*RawExportDirectory, error) {
	return d.m.Get(0)
}

// Name returns the DLL name the directory declares.
func (d *ExportDirectory32) Name(pe *PE) (string, error) {
	raw, err := d.Raw()
	if err != nil {
		return "", err
	}

	address, err := RVA(raw.Name).AsMemory(pe)
	if err != nil {
		return "", err
	}

	return CString(pe, address)
}

// Functions returns the export thunk array.
func (d *ExportDirectory32) Functions(pe *PE) (*Region[ExportThunk32], error) {
	raw, err := d.Raw()
	if err != nil {
		return nil, err
	}

	address, err := RVA(raw.AddressOfFunctions).AsMemory(pe)
	if err != nil {
		return nil, err
	}

	return Sub[ExportThunk32](pe.Region, address, int(raw.NumberOfFunctions))
}

// Names returns the parallel array of name RVAs.
func (d *ExportDirectory32) Names(pe *PE) (*Region[RVA], error) {
	raw, err := d.Raw()
	if err != nil {
		return nil, err
	}

	address, err := RVA(raw.AddressOfNames).AsMemory(pe)
	if err != nil {
		return nil, err
	}

	return Sub[RVA](pe.Region, address, int(raw.NumberOfNames))
}

// NameOrdinals returns the parallel array of name ordinals.
func (d *ExportDirectory32) NameOrdinals(pe *PE) (*Region[uint16], error) {
	raw, err := d.Raw()
	if err != nil {
		return nil, err
	}

	address, err := RVA(raw.AddressOfNameOrdinals).AsMemory(pe)
	if err != nil {
		return nil, err
	}

	return Sub[uint16](pe.Region, address, int(raw.NumberOfNames))
}

// Classify determines what the thunk refers to: an ordinal, a forwarder
// string inside the directory's own range, or a function RVA.
func (d *ExportDirectory32) Classify(thunk ExportThunk32) ThunkKind {
	if thunk.IsOrdinal() {
		return ThunkOrdinal
	}

	rva := uint32(thunk.RVA())
	if rva >= d.slot.VirtualAddress && rva < d.slot.VirtualAddress+d.slot.Size {
		return ThunkForwarder
	}
	return ThunkFunction
}

// ForwarderString reads the forwarder string a forwarder thunk points at.
func (d *ExportDirectory32) ForwarderString(pe *PE, thunk ExportThunk32) (string, error) {
	address, err := thunk.RVA().AsMemory(pe)
	if err != nil {
		return "", err
	}

	return CString(pe, address)
}

// ExportMap builds the name-to-thunk mapping from the parallel arrays.
// Unnamed exports do not appear; they remain reachable by ordinal through
// Function.
func (d *ExportDirectory32) ExportMap(pe *PE) (map[string]ExportThunk32, error) {
	raw, err := d.Raw()
	if err != nil {
		return nil, err
	}

	functions, err := d.Functions(pe)
	if err != nil {
		return nil, err
	}

	names, err := d.Names(pe)
	if err != nil {
		return nil, err
	}

	ordinals, err := d.NameOrdinals(pe)
	if err != nil {
		return nil, err
	}

	result := make(map[string]ExportThunk32, raw.NumberOfNames)

	for i := 0; i < int(raw.NumberOfNames); i++ {
		nameRVA, err := names.Get(i)
		if err != nil {
			return nil, err
		}

		ordinal, err := ordinals.Get(i)
		if err != nil {
			return nil, err
		}

		address, err := nameRVA.AsMemory(pe)
		if err != nil {
			return nil, err
		}

		name, err := CString(pe, address)
		if err != nil {
			return nil, err
		}

		thunk, err := functions.Get(int(*ordinal))
		if err != nil {
			return nil, err
		}

		result[name] = *thunk
	}

	return result, nil
}

// Function returns the thunk for a biased export ordinal.
func (d *ExportDirectory32) Function(pe *PE, ordinal uint32) (ExportThunk32, error) {
	raw, err := d.Raw()
	if err != nil {
		return 0, err
	}

	functions, err := d.Functions(pe)
	if err != nil {
		return 0, err
	}

	thunk, err := functions.Get(int(ordinal - raw.Base))
	if err != nil {
		return 0, err
	}
	return *thunk, nil
}

// ExportDirectory64 is a typed view over a 64-bit image's export directory.
type ExportDirectory64 struct {
	m    *Region[RawExportDirectory]
	slot RawDataDirectory
}

// DirectoryIndex returns the directory slot this type parses.
func (d *ExportDirectory64) DirectoryIndex() int { return ImageDirectoryEntryExport }

// Raw returns a pointer to the underlying structure.
func (d *ExportDirectory64) Raw() (*RawExportDirectory, error) {
	return d.m.Get(0)
}

// Name returns the DLL name the directory declares.
func (d *ExportDirectory64) Name(pe *PE) (string, error) {
	raw, err := d.Raw()
	if err != nil {
		return "", err
	}

	address, err := RVA(raw.Name).AsMemory(pe)
	if err != nil {
		return "", err
	}

	return CString(pe, address)
}

// Functions returns the export thunk array.
func (d *ExportDirectory64) Functions(pe *PE) (*Region[ExportThunk64], error) {
	raw, err := d.Raw()
	if err != nil {
		return nil, err
	}

	address, err := RVA(raw.AddressOfFunctions).AsMemory(pe)
	if err != nil {
		return nil, err
	}

	return Sub[ExportThunk64](pe.Region, address, int(raw.NumberOfFunctions))
}

// Names returns the parallel array of name RVAs.
func (d *ExportDirectory64) Names(pe *PE) (*Region[RVA], error) {
	raw, err := d.Raw()
	if err != nil {
		return nil, err
	}

	address, err := RVA(raw.AddressOfNames).AsMemory(pe)
	if err != nil {
		return nil, err
	}

	return Sub[RVA](pe.Region, address, int(raw.NumberOfNames))
}

// NameOrdinals returns the parallel array of name ordinals.
func (d *ExportDirectory64) NameOrdinals(pe *PE) (*Region[uint32], error) {
	raw, err := d.Raw()
	if err != nil {
		return nil, err
	}

	address, err := RVA(raw.AddressOfNameOrdinals).AsMemory(pe)
	if err != nil {
		return nil, err
	}

	return Sub[uint32](pe.Region, address, int(raw.NumberOfNames))
}

// Classify determines what the thunk refers to: an ordinal, a forwarder
// string inside the directory's own range, or a function RVA.
func (d *ExportDirectory64) Classify(thunk ExportThunk64) ThunkKind {
	if thunk.IsOrdinal() {
		return ThunkOrdinal
	}

	rva := uint32(thunk.RVA())
	if rva >= d.slot.VirtualAddress && rva < d.slot.VirtualAddress+d.slot.Size {
		return ThunkForwarder
	}
	return ThunkFunction
}

// ForwarderString reads the forwarder string a forwarder thunk points at.
func (d *ExportDirectory64) ForwarderString(pe *PE, thunk ExportThunk64) (string, error) {
	address, err := thunk.RVA().AsMemory(pe)
	if err != nil {
		return "", err
	}

	return CString(pe, address)
}

// ExportMap builds the name-to-thunk mapping from the parallel arrays.
func (d *ExportDirectory64) ExportMap(pe *PE) (map[string]ExportThunk64, error) {
	raw, err := d.Raw()
	if err != nil {
		return nil, err
	}

	functions, err := d.Functions(pe)
	if err != nil {
		return nil, err
	}

	names, err := d.Names(pe)
	if err != nil {
		return nil, err
	}

	ordinals, err := d.NameOrdinals(pe)
	if err != nil {
		return nil, err
	}

	result := make(map[string]ExportThunk64, raw.NumberOfNames)

	for i := 0; i < int(raw.NumberOfNames); i++ {
		nameRVA, err := names.Get(i)
		if err != nil {
			return nil, err
		}

		ordinal, err := ordinals.Get(i)
		if err != nil {
			return nil, err
		}

		address, err := nameRVA.AsMemory(pe)
		if err != nil {
			return nil, err
		}

		name, err := CString(pe, address)
		if err != nil {
			return nil, err
		}

		thunk, err := functions.Get(int(*ordinal))
		if err != nil {
			return nil, err
		}

		result[name] = *thunk
	}

	return result, nil
}

// Function returns the thunk for a biased export ordinal.
func (d *ExportDirectory64) Function(pe *PE, ordinal uint32) (ExportThunk64, error) {
	raw, err := d.Raw()
	if err != nil {
		return 0, err
	}

	functions, err := d.Functions(pe)
	if err != nil {
		return 0, err
	}

	thunk, err := functions.Get(int(ordinal - raw.Base))
	if err != nil {
		return 0, err
	}
	return *thunk, nil
}

// ExportDirectory carries the architecture specialisation matching the
// image: 32-bit thunks with 16-bit ordinals, or 64-bit thunks with 32-bit
// ordinals.
type ExportDirectory struct {
	e32 *ExportDirectory32
	e64 *ExportDirectory64
}

// DirectoryIndex returns the directory slot this type parses.
func (d *ExportDirectory) DirectoryIndex() int { return ImageDirectoryEntryExport }

// Is32 reports whether the directory is the 32-bit specialisation.
func (d *ExportDirectory) Is32() bool { return d.e32 != nil }

// Is64 reports whether the directory is the 64-bit specialisation.
func (d *ExportDirectory) Is64() bool { return d.e64 != nil }

// Get32 returns the 32-bit specialisation; nil for a 64-bit image.
func (d *ExportDirectory) Get32() *ExportDirectory32 { return d.e32 }

// Get64 returns the 64-bit specialisation; nil for a 32-bit image.
func (d *ExportDirectory) Get64() *ExportDirectory64 { return d.e64 }

// Name returns the DLL name the directory declares.
func (d *ExportDirectory) Name(pe *PE) (string, error) {
	if d.e32 != nil {
		return d.e32.Name(pe)
	}
	return d.e64.Name(pe)
}
