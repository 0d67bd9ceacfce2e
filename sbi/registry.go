// Copyright (c) The GoTEE authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sbi

import (
	"fmt"
	"sync"
)

// Extension represents the binding of an inclusive range of extension
// identifiers to a handler.
type Extension struct {
	// Name is the extension name, used for diagnostics only.
	Name string
	// Start is the first extension identifier of the range.
	Start uint64
	// End is the last extension identifier of the range.
	End uint64
	// Handler services all calls within the range.
	Handler Handler
}

// Contains returns whether the extension identifier is in range.
func (e *Extension) Contains(ext uint64) bool {
	return e.Start <= ext && ext <= e.End
}

func (e *Extension) overlaps(o *Extension) bool {
	return !(o.End < e.Start || e.End < o.Start)
}

func (e *Extension) String() string {
	return fmt.Sprintf("%-8s %#.8x-%#.8x", e.Name, e.Start, e.End)
}

// Registry represents an insertion ordered collection of extensions with
// pairwise disjoint identifier ranges.
//
// Lookups scan the collection in registration order, therefore frequently
// invoked extensions should be registered first.
type Registry struct {
	sync.RWMutex
	exts []*Extension
}

// Register appends an extension to the registry, it fails with
// ErrInvalidArgument if the extension range is malformed, the handler is
// missing or the range overlaps any registered extension.
func (r *Registry) Register(ext *Extension) error {
	if ext == nil || ext.End < ext.Start || ext.Handler == nil {
		return ErrInvalidArgument
	}

	r.Lock()
	defer r.Unlock()

	for _, e := range r.exts {
		if e == ext || e.overlaps(ext) {
			return fmt.Errorf("%w, %s overlaps %s", ErrInvalidArgument, ext.Name, e.Name)
		}
	}

	r.exts = append(r.exts, ext)

	return nil
}

// Unregister removes a registered extension, an extension which is not
// registered is ignored.
func (r *Registry) Unregister(ext *Extension) {
	if ext == nil {
		return
	}

	r.Lock()
	defer r.Unlock()

	for i, e := range r.exts {
		if e == ext {
			r.exts = append(r.exts[:i:i], r.exts[i+1:]...)
			return
		}
	}
}

// Find returns the extension servicing an extension identifier, or nil if
// none is registered.
func (r *Registry) Find(ext uint64) *Extension {
	r.RLock()
	defer r.RUnlock()

	for _, e := range r.exts {
		if e.Contains(ext) {
			return e
		}
	}

	return nil
}

// Extensions returns the registered extensions in registration order.
func (r *Registry) Extensions() []*Extension {
	r.RLock()
	defer r.RUnlock()

	return append([]*Extension(nil), r.exts...)
}
