package yapp

import "unsafe"

// DynamicMatch is one hit from a wildcard search: the element offset of the
// match and a copy of the matched elements.
type DynamicMatch[T comparable] struct {
	Offset int
	Data   []T
}

// Search returns the element offsets of every occurrence of term, comparing
// element-wise. The scan is naive; PE-sized inputs keep it cheap.
func (r *Region[T]) Search(term []T) ([]int, error) {
	if len(term) == 0 {
		return nil, ErrNullPointer
	}

	n := r.Elements()
	if len(term) > n {
		return nil, &OutOfBoundsError{Offset: len(term), Length: n}
	}

	if err := r.valid(); err != nil {
		return nil, err
	}

	var result []int

	for i := 0; i+len(term) <= n; i++ {
		found := true

		for j := range term {
			p, err := r.Get(i + j)
			if err != nil {
				return nil, err
			}

			if *p != term[j] {
				found = false
				break
			}
		}

		if found {
			result = append(result, i)
		}
	}

	return result, nil
}

// SearchAs searches for a term of a foreign element type. The term is
// reinterpreted into this region's element type first, so matching happens
// element-wise on this region's element boundaries and the returned offsets
// are in this region's elements.
func SearchAs[U comparable, T comparable](r *Region[T], term []U) ([]int, error) {
	if len(term) == 0 {
		return nil, ErrNullPointer
	}

	uSize := sizeOf[U]()
	tSize := sizeOf[T]()

	if !r.alignsWithSize(uSize) {
		return nil, &AlignmentError{LeftSize: tSize, RightSize: uSize}
	}

	byteLen := len(term) * uSize
	if byteLen%tSize != 0 {
		return nil, &InsufficientDataError{Offered: byteLen, UnitSize: 1, Needed: tSize}
	}

	raw := unsafe.Slice((*byte)(unsafe.Pointer(&term[0])), byteLen)
	converted := make([]T, byteLen/tSize)
	if len(converted) > 0 {
		copy(unsafe.Slice((*byte)(unsafe.Pointer(&converted[0])), byteLen), raw)
	}

	return r.Search(converted)
}

// Contains reports whether the term occurs anywhere in the region.
func (r *Region[T]) Contains(term []T) (bool, error) {
	offsets, err := r.Search(term)
	if err != nil {
		return false, err
	}
	return len(offsets) > 0, nil
}

// SearchDynamic searches with a wildcard pattern: a nil entry matches any
// element. A pattern of nothing but wildcards is rejected.
func (r *Region[T]) SearchDynamic(pattern []*T) ([]DynamicMatch[T], error) {
	n := r.Elements()

	if len(pattern) > n {
		return nil, &OutOfBoundsError{Offset: len(pattern), Length: n}
	}

	shift := 0
	for shift < len(pattern) && pattern[shift] == nil {
		shift++
	}

	if shift == len(pattern) {
		return nil, ErrSearchTooBroad
	}

	if err := r.valid(); err != nil {
		return nil, err
	}

	anchor := *pattern[shift]

	var result []DynamicMatch[T]

	for i := shift; i <= n-(len(pattern)-shift); i++ {
		p, err := r.Get(i)
		if err != nil {
			return nil, err
		}

		if *p != anchor {
			continue
		}

		adjusted := i - shift
		found := true

		for j := shift + 1; j < len(pattern); j++ {
			if pattern[j] == nil {
				continue
			}

			q, err := r.Get(adjusted + j)
			if err != nil {
				return nil, err
			}

			if *q != *pattern[j] {
				found = false
				break
			}
		}

		if found {
			data, err := r.Read(adjusted, len(pattern))
			if err != nil {
				return nil, err
			}

			result = append(result, DynamicMatch[T]{Offset: adjusted, Data: data})
		}
	}

	return result, nil
}
