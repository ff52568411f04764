// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build amd64 && !appengine

package nativeentry

import "unsafe"

// jitcall transfers control to the machine code at mem, having loaded
// the stack and locals slice headers into the registers
// assembleDispatchStub's emitted code expects (R10, R11), and returns
// whatever the assembled code left in AX. Implemented in
// jitcall_amd64.s.
func jitcall(mem unsafe.Pointer, stack, locals *[]uint64) uint64
