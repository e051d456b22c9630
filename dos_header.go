package yapp

// DOSHeader is a typed view over the DOS header at the start of an image.
type DOSHeader struct {
	m *Region[RawDOSHeader]
}

// NewDOSHeader wraps a single-element region positioned at a DOS header.
func NewDOSHeader(m *Region[RawDOSHeader]) *DOSHeader {
	return &DOSHeader{m: m}
}

// Raw returns a pointer to the underlying structure. Writes through it edit
// the image in place.
func (h *DOSHeader) Raw() (*RawDOSHeader, error) {
	return h.m.Get(0)
}

// Valid reports whether the e_magic field holds the DOS signature.
func (h *DOSHeader) Valid() bool {
	raw, err := h.Raw()
	if err != nil {
		return false
	}

	return raw.Magic == ImageDOSSignature
}

// Validate fails with a descriptive error when the header is not a DOS
// header.
func (h *DOSHeader) Validate() error {
	raw, err := h.Raw()
	if err != nil {
		return err
	}

	if raw.Magic != ImageDOSSignature {
		return &InvalidDOSSignatureError{Signature: raw.Magic}
	}
	return nil
}

// AddressOfNewEXEHeader returns e_lfanew, the offset of the NT headers.
func (h *DOSHeader) AddressOfNewEXEHeader() (Offset, error) {
	raw, err := h.Raw()
	if err != nil {
		return 0, err
	}

	return Offset(raw.AddressOfNewEXEHeader), nil
}

// SetDefaults populates the header with the canonical values of a fresh
// image: a minimal real-mode prelude and the NT headers at 0xE0.
func (h *DOSHeader) SetDefaults() error {
	raw, err := h.Raw()
	if err != nil {
		return err
	}

	*raw = RawDOSHeader{
		Magic:                    ImageDOSSignature,
		BytesOnLastPageOfFile:    0x90,
		PagesInFile:              0x03,
		SizeOfHeader:             0x04,
		MaxExtraParagraphsNeeded: 0xFFFF,
		InitialSP:                0xB8,
		AddressOfRelocationTable: 0x40,
		AddressOfNewEXEHeader:    0xE0,
	}
	return nil
}
