package yapp

// Offset is a byte index into the on-disk image.
type Offset uint32

// RVA is a byte index relative to the image base at load time.
type RVA uint32

// VA32 is an absolute virtual address in a 32-bit image.
type VA32 uint32

// VA64 is an absolute virtual address in a 64-bit image.
type VA64 uint64

// VA is either a VA32 or a VA64, depending on the architecture of the image
// that produced it.
type VA struct {
	value uint64
	is64  bool
}

// NewVA32 wraps a 32-bit virtual address.
func NewVA32(value VA32) VA { return VA{value: uint64(value)} }

// NewVA64 wraps a 64-bit virtual address.
func NewVA64(value VA64) VA { return VA{value: uint64(value), is64: true} }

// Is32 reports whether the address is 32 bits wide.
func (va VA) Is32() bool { return !va.is64 }

// Is64 reports whether the address is 64 bits wide.
func (va VA) Is64() bool { return va.is64 }

// Get32 returns the address as a VA32. Only meaningful when Is32 is true.
func (va VA) Get32() VA32 { return VA32(uint32(va.value)) }

// Get64 returns the address as a VA64. Only meaningful when Is64 is true.
func (va VA) Get64() VA64 { return VA64(va.value) }

// Value returns the address value widened to 64 bits.
func (va VA) Value() uint64 {
	if va.is64 {
		return va.value
	}
	return uint64(uint32(va.value))
}

// Align rounds base up to the next multiple of alignment.
func Align[T ~uint32 | ~uint64](base, alignment T) T {
	if alignment == 0 || base%alignment == 0 {
		return base
	}
	return base + (alignment - base%alignment)
}

// AsRVA converts the offset to an RVA through the PE's section table.
func (o Offset) AsRVA(pe *PE) (RVA, error) { return pe.OffsetToRVA(o) }

// AsVA converts the offset to a virtual address.
func (o Offset) AsVA(pe *PE) (VA, error) { return pe.OffsetToVA(o) }

// AsMemory returns the backing-byte index of the offset for the PE's image
// type.
func (o Offset) AsMemory(pe *PE) (int, error) { return pe.offsetMemoryAddress(o) }

// AsOffset converts the RVA to a file offset through the PE's section table.
func (r RVA) AsOffset(pe *PE) (Offset, error) { return pe.RVAToOffset(r) }

// AsVA converts the RVA to a virtual address.
func (r RVA) AsVA(pe *PE) (VA, error) { return pe.RVAToVA(r) }

// AsMemory returns the backing-byte index of the RVA for the PE's image
// type.
func (r RVA) AsMemory(pe *PE) (int, error) { return pe.rvaMemoryAddress(r) }

// AsRVA converts the virtual address to an RVA.
func (va VA32) AsRVA(pe *PE) (RVA, error) { return pe.VAToRVA(NewVA32(va)) }

// AsOffset converts the virtual address to a file offset.
func (va VA32) AsOffset(pe *PE) (Offset, error) { return pe.VAToOffset(NewVA32(va)) }

// AsMemory returns the backing-byte index of the virtual address.
func (va VA32) AsMemory(pe *PE) (int, error) { return pe.vaMemoryAddress(NewVA32(va)) }

// AsRVA converts the virtual address to an RVA.
func (va VA64) AsRVA(pe *PE) (RVA, error) { return pe.VAToRVA(NewVA64(va)) }

// AsOffset converts the virtual address to a file offset.
func (va VA64) AsOffset(pe *PE) (Offset, error) { return pe.VAToOffset(NewVA64(va)) }

// AsMemory returns the backing-byte index of the virtual address.
func (va VA64) AsMemory(pe *PE) (int, error) { return pe.vaMemoryAddress(NewVA64(va)) }

// AsRVA converts the virtual address to an RVA.
func (va VA) AsRVA(pe *PE) (RVA, error) { return pe.VAToRVA(va) }

// AsOffset converts the virtual address to a file offset.
func (va VA) AsOffset(pe *PE) (Offset, error) { return pe.VAToOffset(va) }

// AsMemory returns the backing-byte index of the virtual address.
func (va VA) AsMemory(pe *PE) (int, error) { return pe.vaMemoryAddress(va) }
