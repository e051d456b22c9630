package yapp

import (
	"encoding/hex"
	"os"
	"unsafe"
)

// Region is a bounded, typed window over a run of bytes. An owned region
// holds its backing allocation and may grow or shrink; a borrowed region
// views memory owned elsewhere, usually another region. Every region
// registers itself with the process tracker, and every dereference consults
// the tracker first, so a view whose backing region was freed or reallocated
// fails with DanglingViewError instead of touching memory.
//
// A variadic region treats its entire byte length as a single element. It is
// used for variable-length structures, and it aligns with everything.
type Region[T comparable] struct {
	data     []byte
	owned    bool
	variadic bool
	tracker  *Tracker
}

func sizeOf[T any]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// alignsWith implements the element alignment rule: two sizes align iff the
// larger is a whole multiple of the smaller.
func alignsWith(a, b int) bool {
	if a <= 0 || b <= 0 {
		return false
	}

	if a < b {
		a, b = b, a
	}
	return a%b == 0
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func newRegion[T comparable](data []byte, owned, variadic bool, tracker *Tracker) *Region[T] {
	r := &Region[T]{data: data, owned: owned, variadic: variadic, tracker: tracker}
	if len(data) > 0 {
		tracker.Ref(r.key())
	}
	return r
}

// NewEmpty creates a null region. It allocates on the first growth
// operation.
func NewEmpty[T comparable]() *Region[T] {
	return &Region[T]{tracker: defaultTracker}
}

// NewRegion allocates an owned, zero-filled region of the given number of
// elements.
func NewRegion[T comparable](elements int) (*Region[T], error) {
	byteLen := elements * sizeOf[T]()
	if byteLen < sizeOf[T]() {
		return nil, &InsufficientAllocationError{Attempted: byteLen, Needed: sizeOf[T]()}
	}

	return newRegion[T](make([]byte, byteLen), true, false, defaultTracker), nil
}

// NewRegionFilled allocates an owned region with every element set to fill.
func NewRegionFilled[T comparable](elements int, fill T) (*Region[T], error) {
	r, err := NewRegion[T](elements)
	if err != nil {
		return nil, err
	}

	for i := 0; i < r.Elements(); i++ {
		if err := r.Set(i, fill); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Borrow wraps caller-owned bytes in a borrowed region. The bytes are not
// copied; the caller keeps ownership and must keep them alive.
func Borrow[T comparable](data []byte) (*Region[T], error) {
	if len(data) == 0 {
		return nil, ErrNullPointer
	}

	if len(data)%sizeOf[T]() != 0 {
		return nil, &InsufficientDataError{Offered: len(data), UnitSize: 1, Needed: sizeOf[T]()}
	}

	return newRegion[T](data, false, false, defaultTracker), nil
}

// BorrowSlice wraps a caller-owned element slice in a borrowed region.
func BorrowSlice[T comparable](items []T) (*Region[T], error) {
	if len(items) == 0 {
		return nil, ErrNullPointer
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(&items[0])), len(items)*sizeOf[T]())
	return Borrow[T](data)
}

// BorrowVariadic wraps caller-owned bytes in a borrowed variadic region whose
// element size equals its byte length.
func BorrowVariadic[T comparable](data []byte) (*Region[T], error) {
	if len(data) == 0 {
		return nil, ErrNullPointer
	}

	return newRegion[T](data, false, true, defaultTracker), nil
}

// Load copies caller bytes into a fresh owned region.
func Load[T comparable](data []byte) (*Region[T], error) {
	if len(data) == 0 {
		return nil, ErrNullPointer
	}

	if len(data)%sizeOf[T]() != 0 {
		return nil, &InsufficientDataError{Offered: len(data), UnitSize: 1, Needed: sizeOf[T]()}
	}

	dup := make([]byte, len(data))
	copy(dup, data)
	return newRegion[T](dup, true, false, defaultTracker), nil
}

// LoadSlice copies a caller element slice into a fresh owned region.
func LoadSlice[T comparable](items []T) (*Region[T], error) {
	if len(items) == 0 {
		return nil, ErrNullPointer
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(&items[0])), len(items)*sizeOf[T]())
	return Load[T](data)
}

// LoadFile reads a whole file in binary mode into a fresh owned region.
func LoadFile[T comparable](path string) (*Region[T], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &OpenFileError{Path: path, Err: err}
	}

	return Load[T](data)
}

// key identifies this region's byte run in the tracker.
func (r *Region[T]) key() regionKey {
	if len(r.data) == 0 {
		return regionKey{}
	}
	return regionKey{base: uintptr(unsafe.Pointer(&r.data[0])), size: len(r.data)}
}

// valid fails when the region is null or its tracker key has been
// invalidated. No access may touch the bytes before this passes.
func (r *Region[T]) valid() error {
	if len(r.data) == 0 {
		return ErrNullPointer
	}

	key := r.key()
	if !r.tracker.IsValid(key) {
		return &DanglingViewError{Address: key.base, Size: key.size}
	}
	return nil
}

// ElementSize returns the size of one element in bytes. For a variadic
// region this is the region's byte length.
func (r *Region[T]) ElementSize() int {
	if r.variadic {
		return len(r.data)
	}
	return sizeOf[T]()
}

// Elements returns the number of elements in the region.
func (r *Region[T]) Elements() int {
	if r.variadic {
		if len(r.data) > 0 {
			return 1
		}
		return 0
	}
	return len(r.data) / sizeOf[T]()
}

// ByteLen returns the region's length in bytes.
func (r *Region[T]) ByteLen() int { return len(r.data) }

// Empty reports whether the region has no bytes.
func (r *Region[T]) Empty() bool { return len(r.data) == 0 }

// Owned reports whether the region owns its backing allocation.
func (r *Region[T]) Owned() bool { return r.owned }

// Variadic reports whether the region is a single variable-length element.
func (r *Region[T]) Variadic() bool { return r.variadic }

// alignsWithSize reports whether a foreign element size aligns with this
// region's elements. Variadic regions are byte-addressable and align with
// everything.
func (r *Region[T]) alignsWithSize(size int) bool {
	if r.variadic {
		return true
	}
	return alignsWith(sizeOf[T](), size)
}

// strideOK reports whether a byte offset lands on a boundary shared by the
// region's elements and a foreign element size.
func (r *Region[T]) strideOK(byteOffset, foreignSize int) bool {
	if r.variadic {
		return true
	}
	return byteOffset%minInt(sizeOf[T](), foreignSize) == 0
}

// Get returns a pointer to the element at index. The pointer aliases the
// backing bytes; writes through it are visible to every view of the same
// run.
func (r *Region[T]) Get(index int) (*T, error) {
	if index < 0 || index >= r.Elements() {
		return nil, &OutOfBoundsError{Offset: index, Length: r.Elements()}
	}

	if err := r.valid(); err != nil {
		return nil, err
	}

	return (*T)(unsafe.Pointer(&r.data[index*r.ElementSize()])), nil
}

// Set overwrites the element at index.
func (r *Region[T]) Set(index int, value T) error {
	p, err := r.Get(index)
	if err != nil {
		return err
	}

	*p = value
	return nil
}

// Front returns the first element.
func (r *Region[T]) Front() (*T, error) { return r.Get(0) }

// Back returns the last element.
func (r *Region[T]) Back() (*T, error) {
	if r.Elements() == 0 {
		return nil, &OutOfBoundsError{Offset: 0, Length: 0}
	}
	return r.Get(r.Elements() - 1)
}

// Bytes returns a copy of the region's bytes.
func (r *Region[T]) Bytes() ([]byte, error) {
	if err := r.valid(); err != nil {
		return nil, err
	}

	dup := make([]byte, len(r.data))
	copy(dup, r.data)
	return dup, nil
}

// ToSlice returns a copy of the region as an element slice.
func (r *Region[T]) ToSlice() ([]T, error) {
	return r.Read(0, r.Elements())
}

// Read copies n elements starting at index.
func (r *Region[T]) Read(index, n int) ([]T, error) {
	if n < 0 || index < 0 || index+n > r.Elements() {
		return nil, &OutOfBoundsError{Offset: index + n, Length: r.Elements()}
	}

	if err := r.valid(); err != nil {
		return nil, err
	}

	out := make([]T, n)
	for i := 0; i < n; i++ {
		out[i] = *(*T)(unsafe.Pointer(&r.data[(index+i)*r.ElementSize()]))
	}
	return out, nil
}

// Write overwrites elements in place starting at index. Writing never grows
// the region, so it works on borrowed regions too.
func (r *Region[T]) Write(index int, values []T) error {
	if index < 0 || index+len(values) > r.Elements() {
		return &OutOfBoundsError{Offset: index + len(values), Length: r.Elements()}
	}

	if err := r.valid(); err != nil {
		return err
	}

	for i, v := range values {
		*(*T)(unsafe.Pointer(&r.data[(index+i)*r.ElementSize()])) = v
	}
	return nil
}

// WriteBytes overwrites raw bytes in place starting at the given byte
// offset.
func (r *Region[T]) WriteBytes(byteOffset int, src []byte) error {
	if byteOffset < 0 || byteOffset+len(src) > len(r.data) {
		return &OutOfBoundsError{Offset: (byteOffset + len(src)) / maxInt(r.ElementSize(), 1), Length: r.Elements()}
	}

	if err := r.valid(); err != nil {
		return err
	}

	copy(r.data[byteOffset:], src)
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Cast returns a pointer of a foreign type at the given byte offset. The
// offset must land on a boundary shared by both element sizes, and the two
// sizes must align with one another.
func Cast[U any, T comparable](r *Region[T], byteOffset int) (*U, error) {
	size := sizeOf[U]()

	if byteOffset < 0 || byteOffset >= len(r.data) {
		return nil, &OutOfBoundsError{Offset: byteOffset / maxInt(r.ElementSize(), 1), Length: r.Elements()}
	}

	if !r.alignsWithSize(size) {
		return nil, &AlignmentError{LeftSize: sizeOf[T](), RightSize: size}
	}

	if !r.strideOK(byteOffset, size) {
		return nil, &AlignmentError{LeftSize: sizeOf[T](), RightSize: byteOffset}
	}

	if byteOffset+size > len(r.data) {
		return nil, &OutOfBoundsError{Offset: (byteOffset + size) / maxInt(r.ElementSize(), 1), Length: r.Elements()}
	}

	if err := r.valid(); err != nil {
		return nil, err
	}

	return (*U)(unsafe.Pointer(&r.data[byteOffset])), nil
}

// Put writes one foreign-typed value at the given byte offset, with the same
// alignment rules as Cast.
func Put[U any, T comparable](r *Region[T], byteOffset int, value U) error {
	p, err := Cast[U](r, byteOffset)
	if err != nil {
		return err
	}

	*p = value
	return nil
}

// ReadAs copies n foreign-typed elements starting at the given byte offset.
func ReadAs[U any, T comparable](r *Region[T], byteOffset, n int) ([]U, error) {
	size := sizeOf[U]()
	byteLen := n * size

	if n < 0 || byteOffset < 0 || byteOffset+byteLen > len(r.data) {
		return nil, &OutOfBoundsError{Offset: (byteOffset + byteLen) / maxInt(r.ElementSize(), 1), Length: r.Elements()}
	}

	if !r.alignsWithSize(size) {
		return nil, &AlignmentError{LeftSize: sizeOf[T](), RightSize: size}
	}

	if !r.strideOK(byteOffset, size) {
		return nil, &AlignmentError{LeftSize: sizeOf[T](), RightSize: byteOffset}
	}

	if err := r.valid(); err != nil {
		return nil, err
	}

	out := make([]U, n)
	if n > 0 {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&out[0])), byteLen), r.data[byteOffset:])
	}
	return out, nil
}

// Sub creates a borrowed sub-view of the region with a foreign element type,
// sized in elements of that type. The sub-view is registered as a child of
// this region in the tracker.
func Sub[U comparable, T comparable](r *Region[T], byteOffset, elements int) (*Region[U], error) {
	return SubBytes[U](r, byteOffset, elements*sizeOf[U]())
}

// SubBytes creates a borrowed sub-view sized in bytes. The byte length must
// be a whole number of foreign elements.
func SubBytes[U comparable, T comparable](r *Region[T], byteOffset, byteLen int) (*Region[U], error) {
	size := sizeOf[U]()

	if byteLen%size != 0 {
		return nil, &InsufficientDataError{Offered: byteLen, UnitSize: 1, Needed: size}
	}

	return subBytes[U](r, byteOffset, byteLen, false)
}

// SubVariadic creates a borrowed variadic sub-view: one element whose size is
// the given byte length. Variable-length structures use this.
func SubVariadic[U comparable, T comparable](r *Region[T], byteOffset, byteLen int) (*Region[U], error) {
	return subBytes[U](r, byteOffset, byteLen, true)
}

func subBytes[U comparable, T comparable](r *Region[T], byteOffset, byteLen int, variadic bool) (*Region[U], error) {
	size := sizeOf[U]()

	if byteOffset < 0 || byteLen < 0 || byteOffset+byteLen > len(r.data) {
		return nil, &OutOfBoundsError{Offset: (byteOffset + byteLen) / maxInt(r.ElementSize(), 1), Length: r.Elements()}
	}

	if !variadic && !r.alignsWithSize(size) {
		return nil, &AlignmentError{LeftSize: sizeOf[T](), RightSize: size}
	}

	if !variadic && !r.strideOK(byteOffset, size) {
		return nil, &AlignmentError{LeftSize: sizeOf[T](), RightSize: byteOffset}
	}

	if len(r.data) > 0 {
		if err := r.valid(); err != nil {
			return nil, err
		}
	}

	window := r.data[byteOffset : byteOffset+byteLen : byteOffset+byteLen]

	child := &Region[U]{data: window, owned: false, variadic: variadic, tracker: r.tracker}
	if len(window) > 0 {
		r.tracker.Relationship(r.key(), child.key())
		r.tracker.Ref(child.key())
	}
	return child, nil
}

// Reinterpret views the whole region as another element type. The byte
// length must divide evenly into the new element size.
func Reinterpret[U comparable, T comparable](r *Region[T]) (*Region[U], error) {
	size := sizeOf[U]()

	if !r.alignsWithSize(size) {
		return nil, &AlignmentError{LeftSize: sizeOf[T](), RightSize: size}
	}

	if len(r.data)%size != 0 {
		return nil, &InsufficientDataError{Offered: len(r.data), UnitSize: 1, Needed: size}
	}

	return SubBytes[U](r, 0, len(r.data))
}

// SplitAt splits the region into two borrowed sub-views at the given element
// midpoint.
func (r *Region[T]) SplitAt(midpoint int) (*Region[T], *Region[T], error) {
	byteMid := midpoint * r.ElementSize()

	if midpoint < 0 || byteMid > len(r.data) {
		return nil, nil, &OutOfBoundsError{Offset: midpoint, Length: r.Elements()}
	}

	first, err := SubBytes[T](r, 0, byteMid)
	if err != nil {
		return nil, nil, err
	}

	second, err := SubBytes[T](r, byteMid, len(r.data)-byteMid)
	if err != nil {
		return nil, nil, err
	}

	return first, second, nil
}

// Swap exchanges the elements at the two indices.
func (r *Region[T]) Swap(left, right int) error {
	if left == right {
		return nil
	}

	lp, err := r.Get(left)
	if err != nil {
		return err
	}

	rp, err := r.Get(right)
	if err != nil {
		return err
	}

	*lp, *rp = *rp, *lp
	return nil
}

// Reverse reverses the element order in place.
func (r *Region[T]) Reverse() error {
	n := r.Elements()
	for i := 0; i < n/2; i++ {
		if err := r.Swap(i, n-i-1); err != nil {
			return err
		}
	}
	return nil
}

// requireOwned fails with ErrNotAllocated when the region views memory it
// does not own. A null region passes; growth operations allocate it fresh.
func (r *Region[T]) requireOwned() error {
	if len(r.data) != 0 && !r.owned {
		return ErrNotAllocated
	}
	return nil
}

// realloc moves the region to a fresh allocation of the given byte length,
// preserving the overlapping prefix. The old run and every registered
// descendant are invalidated before the bytes move.
func (r *Region[T]) realloc(byteLen int) error {
	if err := r.requireOwned(); err != nil {
		return err
	}

	if r.tracker == nil {
		r.tracker = defaultTracker
	}

	if byteLen < sizeOf[T]() && !r.variadic {
		return &InsufficientAllocationError{Attempted: byteLen, Needed: sizeOf[T]()}
	}

	old := r.data
	if len(old) > 0 {
		r.tracker.Invalidate(r.key())
	}

	fresh := make([]byte, byteLen)
	copy(fresh, old)

	r.data = fresh
	r.owned = true
	if len(r.data) > 0 {
		r.tracker.Ref(r.key())
	}
	return nil
}

// Deallocate frees the backing allocation and invalidates every descendant
// view. Further access to the region or any of its sub-views fails.
func (r *Region[T]) Deallocate() error {
	if err := r.requireOwned(); err != nil {
		return err
	}

	if len(r.data) > 0 {
		r.tracker.Invalidate(r.key())
	}

	r.data = nil
	r.owned = false
	return nil
}

// Clear is Deallocate under its collection name.
func (r *Region[T]) Clear() error { return r.Deallocate() }

// Release drops this view's reference in the tracker. Call it when a
// borrowed view is no longer needed; owned regions release on Deallocate.
func (r *Region[T]) Release() {
	if len(r.data) > 0 && !r.owned {
		r.tracker.Deref(r.key())
	}
}

// Resize grows or shrinks an owned region to the given number of elements.
// All outstanding sub-views are invalidated.
func (r *Region[T]) Resize(elements int) error {
	return r.realloc(elements * sizeOf[T]())
}

// ResizeFilled resizes and sets any newly added elements to fill.
func (r *Region[T]) ResizeFilled(elements int, fill T) error {
	previous := r.Elements()

	if err := r.Resize(elements); err != nil {
		return err
	}

	for i := previous; i < elements; i++ {
		if err := r.Set(i, fill); err != nil {
			return err
		}
	}
	return nil
}

// Append adds elements to the end of an owned region.
func (r *Region[T]) Append(values []T) error {
	previous := r.Elements()

	if err := r.realloc((previous + len(values)) * sizeOf[T]()); err != nil {
		return err
	}

	return r.Write(previous, values)
}

// AppendBytes adds raw bytes to the end of an owned region. The byte count
// must be a whole number of elements.
func (r *Region[T]) AppendBytes(src []byte) error {
	if len(src)%sizeOf[T]() != 0 {
		return &InsufficientDataError{Offered: len(src), UnitSize: 1, Needed: sizeOf[T]()}
	}

	previous := len(r.data)

	if err := r.realloc(previous + len(src)); err != nil {
		return err
	}

	copy(r.data[previous:], src)
	return nil
}

// Insert injects elements at the given element index, shifting the tail.
func (r *Region[T]) Insert(index int, values []T) error {
	if err := r.requireOwned(); err != nil {
		return err
	}

	n := r.Elements()
	if index < 0 || index > n {
		return &OutOfBoundsError{Offset: index, Length: n}
	}

	if r.tracker == nil {
		r.tracker = defaultTracker
	}

	size := sizeOf[T]()
	old := r.data

	if len(old) > 0 {
		if err := r.valid(); err != nil {
			return err
		}
		r.tracker.Invalidate(r.key())
	}

	fresh := make([]byte, (n+len(values))*size)
	copy(fresh, old[:index*size])
	copy(fresh[(index+len(values))*size:], old[index*size:])

	r.data = fresh
	r.owned = true
	if len(r.data) > 0 {
		r.tracker.Ref(r.key())
	}

	return r.Write(index, values)
}

// Erase removes the element at the given index.
func (r *Region[T]) Erase(index int) error {
	return r.EraseRange(index, index+1)
}

// EraseRange removes the elements in [start, end). Erasing everything
// deallocates the region.
func (r *Region[T]) EraseRange(start, end int) error {
	if err := r.requireOwned(); err != nil {
		return err
	}

	n := r.Elements()
	if start < 0 || end < start || end > n {
		return &OutOfBoundsError{Offset: end, Length: n}
	}

	if start == 0 && end == n {
		return r.Deallocate()
	}

	size := sizeOf[T]()
	old := r.data

	if err := r.valid(); err != nil {
		return err
	}
	r.tracker.Invalidate(r.key())

	fresh := make([]byte, (n-(end-start))*size)
	copy(fresh, old[:start*size])
	copy(fresh[start*size:], old[end*size:])

	r.data = fresh
	r.owned = true
	if len(r.data) > 0 {
		r.tracker.Ref(r.key())
	}
	return nil
}

// Push appends a single element.
func (r *Region[T]) Push(value T) error {
	return r.Append([]T{value})
}

// Pop removes and returns the last element.
func (r *Region[T]) Pop() (T, error) {
	var zero T

	n := r.Elements()
	if n == 0 {
		return zero, ErrNullPointer
	}

	p, err := r.Get(n - 1)
	if err != nil {
		return zero, err
	}
	value := *p

	if n == 1 {
		return value, r.Deallocate()
	}
	return value, r.Resize(n - 1)
}

// SplitOff truncates the region at the given element midpoint and returns
// the tail as a fresh owned region.
func (r *Region[T]) SplitOff(midpoint int) (*Region[T], error) {
	if err := r.requireOwned(); err != nil {
		return nil, err
	}

	n := r.Elements()
	if midpoint < 0 || midpoint > n {
		return nil, &OutOfBoundsError{Offset: midpoint, Length: n}
	}

	if err := r.valid(); err != nil {
		return nil, err
	}

	size := sizeOf[T]()
	tailBytes := make([]byte, (n-midpoint)*size)
	copy(tailBytes, r.data[midpoint*size:])

	if err := r.realloc(midpoint * size); err != nil {
		return nil, err
	}

	return newRegion[T](tailBytes, true, false, r.tracker), nil
}

// Save writes the region's bytes to disk verbatim.
func (r *Region[T]) Save(path string) error {
	if err := r.valid(); err != nil {
		return err
	}

	if err := os.WriteFile(path, r.data, 0o644); err != nil {
		return &OpenFileError{Path: path, Err: err}
	}
	return nil
}

// Hex returns the region's bytes as a lowercase hex string.
func (r *Region[T]) Hex() (string, error) {
	if err := r.valid(); err != nil {
		return "", err
	}

	return hex.EncodeToString(r.data), nil
}
