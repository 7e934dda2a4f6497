// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package lif

import (
	"fmt"
	"sync"
)

// A Var is a named, shaped, mutable numeric state variable owned by a
// process. The owning process reads and writes it during its own step
// execution; any other reader must use Get, which is safe to call while the
// driver is paused between step batches.
//
// The shape is fixed at construction. Data are stored flat in row-major
// order; the flat length is the product of the shape dimensions.
type Var[T Elem] struct {
	name  string
	shape []int

	μ    sync.Mutex
	data []T
}

// NewVar constructs a zero-initialized variable with the given name and
// shape. It panics if any dimension is not positive.
func NewVar[T Elem](name string, shape ...int) *Var[T] {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			panic(fmt.Sprintf("var %q: invalid dimension %d", name, d))
		}
		n *= d
	}
	return &Var[T]{name: name, shape: shape, data: make([]T, n)}
}

// Name reports the name assigned to v.
func (v *Var[T]) Name() string { return v.name }

// Shape reports the shape of v. The caller must not modify the result.
func (v *Var[T]) Shape() []int { return v.shape }

// Len reports the flat length of v.
func (v *Var[T]) Len() int { return len(v.data) }

// Get returns a snapshot copy of the current contents of v in row-major
// order.
func (v *Var[T]) Get() []T {
	v.μ.Lock()
	defer v.μ.Unlock()
	out := make([]T, len(v.data))
	copy(out, v.data)
	return out
}

// Set replaces the contents of v with data, which must match the flat
// length of v.
func (v *Var[T]) Set(data []T) error {
	v.μ.Lock()
	defer v.μ.Unlock()
	if len(data) != len(v.data) {
		return fmt.Errorf("var %q: set %d values, want %d", v.name, len(data), len(v.data))
	}
	copy(v.data, data)
	return nil
}

// SetRow replaces row i of the leading dimension of v. It reports an error
// if v has no leading dimension, i is out of range, or row does not match
// the row length.
func (v *Var[T]) SetRow(i int, row []T) error {
	n, err := v.rowLen()
	if err != nil {
		return err
	}
	v.μ.Lock()
	defer v.μ.Unlock()
	if i < 0 || i >= v.shape[0] {
		return fmt.Errorf("var %q: row %d out of range 0..%d", v.name, i, v.shape[0]-1)
	} else if len(row) != n {
		return fmt.Errorf("var %q: set row of %d values, want %d", v.name, len(row), n)
	}
	copy(v.data[i*n:], row)
	return nil
}

// Row returns a copy of row i of the leading dimension of v. A row that has
// not been written, or an index outside the leading dimension, yields the
// default-initialized (zero) row rather than an error. Row panics if v has
// no leading dimension to index.
func (v *Var[T]) Row(i int) []T {
	n, err := v.rowLen()
	if err != nil {
		panic(err)
	}
	out := make([]T, n)
	v.μ.Lock()
	defer v.μ.Unlock()
	if i >= 0 && i < v.shape[0] {
		copy(out, v.data[i*n:])
	}
	return out
}

// rowLen reports the flat length of one row of the leading dimension.
func (v *Var[T]) rowLen() (int, error) {
	if len(v.shape) < 2 {
		return 0, fmt.Errorf("var %q: shape %v has no rows", v.name, v.shape)
	}
	n := 1
	for _, d := range v.shape[1:] {
		n *= d
	}
	return n, nil
}

// write updates the contents of v from the owning process's step execution.
func (v *Var[T]) write(data []T) {
	v.μ.Lock()
	defer v.μ.Unlock()
	copy(v.data, data)
}
