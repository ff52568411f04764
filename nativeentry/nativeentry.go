// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nativeentry JIT-assembles the per-contract entry dispatch
// stub: on amd64, the is_deploy_code branch an EraVM target needs is
// compiled to real machine code with golang-asm and run through a
// tiny hand-written trampoline, the same way a native compiler
// backend assembles function bodies and invokes them via its own
// calling convention. Everything past the branch itself — the
// specialized block graph's actual opcode semantics — is delegated to
// a Fallback entry.Backend (interp in production use), since a
// general-purpose EVM JIT is out of scope for an entry-glue package.
// On platforms the trampoline was never ported to, Lower and Invoke
// fall straight through to Fallback.
package nativeentry

import (
	"fmt"

	"github.com/ethir-go/ethirc/entry"
	"github.com/ethir-go/ethirc/evmasm"
	"github.com/ethir-go/ethirc/specializer"
)

// Backend wraps a Fallback backend with a natively compiled dispatch
// stub for each EraVM-target contract it lowers.
type Backend struct {
	Fallback entry.Backend

	stubs map[string]*dispatchStub
}

// NewBackend returns a Backend that delegates segment execution to
// fallback and JIT-assembles an entry dispatch stub per contract where
// the platform supports it.
func NewBackend(fallback entry.Backend) *Backend {
	return &Backend{Fallback: fallback, stubs: make(map[string]*dispatchStub)}
}

type dispatchStub struct {
	code       nativeCode
	hasRuntime bool
}

// Lower lowers result into the fallback backend and, on every
// EraVM-target call, assembles the native is_deploy_code dispatch stub
// for the contract, replacing any stub an earlier call assembled. A
// failure to assemble the
// stub (an unsupported platform, or an allocator error) is not fatal:
// Invoke falls back to branching in Go.
func (b *Backend) Lower(contractIdentifier string, result *specializer.Result, link entry.Link) error {
	if err := b.Fallback.Lower(contractIdentifier, result, link); err != nil {
		return err
	}
	if link.Target != entry.EraVM {
		return nil
	}

	stub, ok := b.stubs[contractIdentifier]
	if !ok {
		stub = &dispatchStub{}
		b.stubs[contractIdentifier] = stub
	}
	if link.Segment == evmasm.Runtime {
		stub.hasRuntime = true
	}

	code, err := assembleDispatchStub()
	if err != nil {
		// Leave stub.code at its zero value; Invoke treats that as
		// "no native stub available" and branches in Go instead.
		return nil
	}
	stub.code = code
	return nil
}

// Invoke runs the dispatch decision for contractIdentifier — natively,
// through the assembled stub, when one exists, or directly in Go
// otherwise — then delegates the actual segment execution to Fallback.
func (b *Backend) Invoke(contractIdentifier string, isDeployCode bool) ([]byte, error) {
	stub, ok := b.stubs[contractIdentifier]
	decided := isDeployCode
	if ok && stub.code.available() {
		resolved, err := stub.code.dispatch(isDeployCode)
		if err != nil {
			return nil, fmt.Errorf("nativeentry: %q: %w", contractIdentifier, err)
		}
		decided = resolved
	}
	return b.Fallback.Invoke(contractIdentifier, decided)
}
