// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package entry provides the backend-facing glue that turns a specialized
// block graph into the single per-contract entry function the runtime
// calls, and the branch between deploy and runtime code that function
// dispatches on.
package entry

import (
	"fmt"

	"github.com/ethir-go/ethirc/evmasm"
	"github.com/ethir-go/ethirc/specializer"
)

// DefaultEntryFunctionName is the fixed name the backend looks up to
// find the per-contract entry point, regardless of target.
const DefaultEntryFunctionName = "__entry"

// Target distinguishes the two backends the entry glue can address: the
// EraVM target takes an explicit is_deploy_code argument; the EVM
// target dispatches purely by which bytecode stream it was compiled
// from and takes no argument.
type Target uint8

const (
	EraVM Target = iota
	EVM
)

// Link represents the branch between deploy and runtime code inside the
// emitted entry function: for EraVM it carries an explicit
// is_deploy_code boolean constant, for EVM the branch is implicit in
// which segment's main function got compiled.
type Link struct {
	Target  Target
	Segment evmasm.Segment
}

// IsDeployCode returns the boolean argument EraVM's entry function is
// invoked with. It panics if called for an EVM-target Link, since the
// EVM target's entry function takes no argument.
func (l Link) IsDeployCode() bool {
	if l.Target != EraVM {
		panic("entry: IsDeployCode is only meaningful for an EraVM Link")
	}
	return l.Segment == evmasm.Deploy
}

// Backend is the collaborator that actually emits code: given the
// specialized block graph for one segment and the Link describing how
// the entry function should invoke it, Backend lowers it to the target's
// instruction set. interp and nativeentry each provide one.
type Backend interface {
	Lower(contractIdentifier string, result *specializer.Result, link Link) error
	Invoke(contractIdentifier string, isDeployCode bool) ([]byte, error)
}

// Contract is the pair of specialized segment graphs (deploy owns
// runtime) that together make up one compilation unit's Ethereal IR,
// plus the identifier the backend invokes it by.
type Contract struct {
	Identifier string
	Deploy     *specializer.Result
	Runtime    *specializer.Result
}

// Lower emits both segments of c through backend, using the Link
// convention appropriate to target. It returns only an error; the
// lowered segments are then run through backend.Invoke.
func Lower(c Contract, target Target, backend Backend) error {
	if err := backend.Lower(c.Identifier, c.Deploy, Link{Target: target, Segment: evmasm.Deploy}); err != nil {
		return fmt.Errorf("entry: lowering deploy segment of %q: %w", c.Identifier, err)
	}
	if c.Runtime != nil {
		if err := backend.Lower(c.Identifier, c.Runtime, Link{Target: target, Segment: evmasm.Runtime}); err != nil {
			return fmt.Errorf("entry: lowering runtime segment of %q: %w", c.Identifier, err)
		}
	}
	return nil
}
