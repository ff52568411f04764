// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build amd64 && !appengine

package nativeentry

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/edsrzf/mmap-go"
)

// blockSize is the size of each page-backed region the allocator maps
// PROT_EXEC; most dispatch stubs are a handful of instructions, so one
// block comfortably serves many contracts before a new mmap call is
// needed.
const blockSize = 32 * 1024

// execBlock is a slice of a mmap'd executable region holding one
// assembled stub's code.
type execBlock struct {
	region mmap.MMap
	offset int
}

func (b *execBlock) ptr() unsafe.Pointer {
	return unsafe.Pointer(&b.region[b.offset])
}

// execAllocator bump-allocates machine code into PROT_EXEC pages. Code
// is never freed individually; the mapped pages live for the lifetime
// of the process, matching a JIT trampoline's use pattern (compiled
// once per contract, invoked many times).
type execAllocator struct {
	mu      sync.Mutex
	regions []mmap.MMap
	cursor  int
}

var globalAllocator execAllocator

// AllocateExec copies code into executable memory and returns an
// execBlock addressing it.
func (a *execAllocator) AllocateExec(code []byte) (*execBlock, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(code) > blockSize {
		region, err := mapExecRegion(len(code))
		if err != nil {
			return nil, err
		}
		copy(region, code)
		a.regions = append(a.regions, region)
		return &execBlock{region: region, offset: 0}, nil
	}

	if len(a.regions) == 0 || a.cursor+len(code) > len(a.regions[len(a.regions)-1]) {
		region, err := mapExecRegion(blockSize)
		if err != nil {
			return nil, err
		}
		a.regions = append(a.regions, region)
		a.cursor = 0
	}

	region := a.regions[len(a.regions)-1]
	offset := a.cursor
	copy(region[offset:], code)
	a.cursor += len(code)
	return &execBlock{region: region, offset: offset}, nil
}

// Close unmaps every region the allocator has handed out. It is meant
// for tests; a long-lived process has no reason to call it, since
// native stubs are invoked for as long as the contract they belong to
// stays loaded.
func (a *execAllocator) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	for _, r := range a.regions {
		if err := r.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.regions = nil
	a.cursor = 0
	return firstErr
}

func mapExecRegion(size int) (mmap.MMap, error) {
	region, err := mmap.MapRegion(nil, size, mmap.RDWR|mmap.EXEC, mmap.ANON, 0)
	if err != nil {
		return nil, fmt.Errorf("nativeentry: mmap executable region: %w", err)
	}
	return region, nil
}
