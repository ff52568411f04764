// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package evmasm models the legacy-assembly form produced by the external
// Solidity collaborator: the flat instruction stream plus the data
// sub-item map referenced by PUSH_DATA, and the recursive-function
// annotations carried alongside it. It is the input to block/ and
// specializer/, and owns no control-flow logic of its own.
package evmasm

import (
	"fmt"
	"sort"

	"github.com/ethir-go/ethirc/evmasm/opcodes"
	"github.com/ethir-go/ethirc/internal/bigtag"
)

// Segment distinguishes the deploy (constructor) code from the runtime
// code of a contract.
type Segment uint8

const (
	Deploy Segment = iota
	Runtime
)

func (s Segment) String() string {
	if s == Deploy {
		return "deploy"
	}
	return "runtime"
}

// Less implements the BlockKey total order: Deploy < Runtime.
func (s Segment) Less(o Segment) bool { return s < o }

// Instruction is a single legacy-assembly entry: an opcode, an optional
// operand (the tag, constant, data reference or library path string the
// opcode pushes or labels), and a source location passed through
// opaquely for diagnostics.
type Instruction struct {
	Opcode         opcodes.Opcode
	Operand        string // decimal tag, decimal constant, data id, or library path
	SourceLocation string
}

func (in Instruction) String() string {
	if in.Operand == "" {
		return opcodes.Name(in.Opcode)
	}
	return fmt.Sprintf("%s %s", opcodes.Name(in.Opcode), in.Operand)
}

// Tag parses Instruction.Operand as a bigtag.Tag. It is only meaningful
// for opcodes that carry a tag operand: Tag, PushTag.
func (in Instruction) Tag() (bigtag.Tag, error) {
	return bigtag.FromDecimal(in.Operand)
}

// DataItemKind distinguishes the three sub-item shapes a data-map entry
// can take.
type DataItemKind uint8

const (
	DataItemAssembly DataItemKind = iota
	DataItemHash
	DataItemPath
)

// DataItem is the sum type `{Assembly, Hash, Path}`. Exactly
// one of the three fields is meaningful, selected by Kind. Path only
// appears after a factory-dependency replacement pass has rewritten a
// Hash entry to its logical contract path.
type DataItem struct {
	Kind     DataItemKind
	Assembly *Assembly // DataItemAssembly
	Hash     string    // DataItemHash: keccak256 hex digest of a dependency
	Path     string    // DataItemPath: resolved "file:Contract" identifier
}

// RecursiveFunction is one entry of an Assembly's ExtraMetadata: it
// annotates a block reachable at CreationTag (in the deploy segment) or
// RuntimeTag (in the runtime segment) as a recursive-function entry, so
// the specializer only instantiates it once regardless of incoming
// stack hash.
type RecursiveFunction struct {
	Name        string
	CreationTag *bigtag.Tag
	RuntimeTag  *bigtag.Tag
}

// ExtraMetadata is the list of RecursiveFunction descriptors carried
// alongside an Assembly.
type ExtraMetadata struct {
	Functions []RecursiveFunction
}

// RecursiveFunctionFor looks up the RecursiveFunction, if any, whose tag
// for the given segment matches tag: Deploy segment blocks are
// matched against CreationTag, Runtime segment blocks against RuntimeTag.
func (m ExtraMetadata) RecursiveFunctionFor(segment Segment, tag bigtag.Tag) (RecursiveFunction, bool) {
	for _, fn := range m.Functions {
		var candidate *bigtag.Tag
		if segment == Deploy {
			candidate = fn.CreationTag
		} else {
			candidate = fn.RuntimeTag
		}
		if candidate != nil && candidate.Equal(tag) {
			return fn, true
		}
	}
	return RecursiveFunction{}, false
}

// Assembly is the top-of-file instruction array plus the data map from
// hex-encoded identifiers to sub-items, as produced by the external
// collaborator for one contract segment.
type Assembly struct {
	Instructions []Instruction
	Data         map[string]DataItem
	Metadata     ExtraMetadata

	// Sub is populated for the deploy segment's own Assembly: the
	// nested runtime-segment Assembly it owns, one level up from the
	// deploy/runtime chain Object tracks after specialization.
	Sub *Assembly
}

// MissingLibraries returns the set of library path strings referenced
// anywhere in the assembly, including nested data sub-assemblies, as a
// sorted slice.
func (a *Assembly) MissingLibraries() []string {
	set := make(map[string]struct{})
	a.collectMissingLibraries(set)
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (a *Assembly) collectMissingLibraries(set map[string]struct{}) {
	if a == nil {
		return
	}
	for _, in := range a.Instructions {
		if in.Opcode == opcodes.PushLib && in.Operand != "" {
			set[in.Operand] = struct{}{}
		}
	}
	for _, item := range a.Data {
		switch item.Kind {
		case DataItemAssembly:
			item.Assembly.collectMissingLibraries(set)
		case DataItemPath:
			set[item.Path] = struct{}{}
		}
	}
	a.Sub.collectMissingLibraries(set)
}
