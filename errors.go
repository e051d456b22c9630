package yapp

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNullPointer is returned for operations on an empty or null region.
	ErrNullPointer = errors.New("operation on a null region")

	// ErrSearchTooBroad is returned when a dynamic search term is all wildcards.
	ErrSearchTooBroad = errors.New("search term is all wildcards")

	// ErrBadAllocation is returned when a backing allocation comes back unusable.
	ErrBadAllocation = errors.New("allocator returned an invalid allocation")

	// ErrNotAllocated is returned for mutations that require an owned region.
	ErrNotAllocated = errors.New("region is not allocated")

	// ErrSectionNotFound is returned when no section contains the lookup key.
	ErrSectionNotFound = errors.New("no section matches the given parameter")

	// ErrSectionTableOverflow is returned when adding a section would exceed 0xFFFF entries.
	ErrSectionTableOverflow = errors.New("operation would overflow the section table")

	// ErrUnsupportedArchitecture is returned when the machine code is not a recognised value.
	ErrUnsupportedArchitecture = errors.New("unsupported architecture")
)

// OutOfBoundsError reports an access past the end of a region. Offset and
// Length are in region elements.
type OutOfBoundsError struct {
	Offset int
	Length int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("region offset out of bounds: got offset %d, but size is %d", e.Offset, e.Length)
}

// AlignmentError reports two element sizes that do not divide evenly into one
// another, or a byte offset that does not land on an element boundary.
type AlignmentError struct {
	LeftSize  int
	RightSize int
}

func (e *AlignmentError) Error() string {
	return fmt.Sprintf("element sizes %d and %d do not align with one another", e.LeftSize, e.RightSize)
}

// InsufficientDataError reports a conversion that would split an element.
type InsufficientDataError struct {
	Offered  int
	UnitSize int
	Needed   int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: got %d units of size %d, but needed a multiple of %d",
		e.Offered, e.UnitSize, e.Needed)
}

// DanglingViewError reports an access through a sub-view whose backing region
// was freed or reallocated.
type DanglingViewError struct {
	Address uintptr
	Size    int
}

func (e *DanglingViewError) Error() string {
	return fmt.Sprintf("view %#x with size %d was invalidated before it could be used", e.Address, e.Size)
}

// InsufficientAllocationError reports an allocation smaller than one element.
type InsufficientAllocationError struct {
	Attempted int
	Needed    int
}

func (e *InsufficientAllocationError) Error() string {
	return fmt.Sprintf("allocation size insufficient: got %d bytes, but needed at least %d", e.Attempted, e.Needed)
}

// InvalidDOSSignatureError reports an e_magic field that isn't "MZ".
type InvalidDOSSignatureError struct {
	Signature uint16
}

func (e *InvalidDOSSignatureError) Error() string {
	return fmt.Sprintf("invalid DOS signature %#04x", e.Signature)
}

// InvalidNTSignatureError reports a Signature field that isn't "PE\0\0".
type InvalidNTSignatureError struct {
	Signature uint32
}

func (e *InvalidNTSignatureError) Error() string {
	return fmt.Sprintf("invalid NT signature %#08x", e.Signature)
}

// UnexpectedOptionalMagicError reports an optional header magic that doesn't
// match the expected value. Expected is zero when no particular width was
// expected and the magic is simply not a known value.
type UnexpectedOptionalMagicError struct {
	Magic    uint16
	Expected uint16
}

func (e *UnexpectedOptionalMagicError) Error() string {
	if e.Expected == 0 {
		return fmt.Sprintf("unexpected optional header magic %#04x", e.Magic)
	}
	return fmt.Sprintf("unexpected optional header magic %#04x, wanted %#04x", e.Magic, e.Expected)
}

// InvalidOffsetError reports a file offset outside the image.
type InvalidOffsetError struct {
	Offset Offset
}

func (e *InvalidOffsetError) Error() string {
	return fmt.Sprintf("invalid offset %#x", uint32(e.Offset))
}

// InvalidRVAError reports an RVA outside the image.
type InvalidRVAError struct {
	RVA RVA
}

func (e *InvalidRVAError) Error() string {
	return fmt.Sprintf("invalid RVA %#x", uint32(e.RVA))
}

// InvalidVAError reports a virtual address outside the loaded image range.
type InvalidVAError struct {
	VA VA
}

func (e *InvalidVAError) Error() string {
	return fmt.Sprintf("invalid VA %#x", e.VA.Value())
}

// DirectoryUnavailableError reports an empty or invalid data directory slot.
type DirectoryUnavailableError struct {
	Index int
}

func (e *DirectoryUnavailableError) Error() string {
	return fmt.Sprintf("directory index %d is either null or invalid", e.Index)
}

// OpenFileError reports a file that could not be opened or read.
type OpenFileError struct {
	Path string
	Err  error
}

func (e *OpenFileError) Error() string {
	return fmt.Sprintf("failed to open file %q: %v", e.Path, e.Err)
}

func (e *OpenFileError) Unwrap() error { return e.Err }
