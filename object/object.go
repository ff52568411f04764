// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package object models the compiled output of one contract segment and
// the two-level deploy/runtime object graph that links them together:
// assembling a dependency-laden bytecode buffer into a
// single blob, and the link-symbol and factory-dependency resolution
// that turns an ELF-format object into a Raw, deployable one.
package object

import (
	"fmt"
	"sort"

	"golang.org/x/crypto/sha3"

	"github.com/ethir-go/ethirc/evmasm"
)

// Format tracks whether an Object's bytecode still contains unresolved
// relocations (ELF) or is final (Raw).
type Format uint8

const (
	ELF Format = iota
	Raw
)

func (f Format) String() string {
	if f == Raw {
		return "raw"
	}
	return "elf"
}

// Object is the compiled output of one contract segment. Objects of a
// contract family form a two-element chain: the deploy Object owns a
// Runtime sub-object whose Identifier conventionally ends with a
// "_deployed" suffix.
type Object struct {
	Identifier        string
	ContractName      string
	Bytecode          []byte
	Segment           Segment
	MetadataBytes     []byte
	Dependencies      []string // declared, in declaration order; duplicates resolved by first occurrence
	UnlinkedLibraries map[string]struct{}
	IsAssembled       bool
	Format            Format
	Warnings          []evmasm.Warning

	Runtime *Object // set on a Deploy-segment Object
}

// Segment is the object graph's own copy of evmasm.Segment's two values:
// the object graph outlives any one Assembly and is addressed purely by
// identifier.
type Segment uint8

const (
	Deploy Segment = iota
	Runtime
)

// RequiresAssembling reports whether o still needs its dependency
// bytecodes concatenated in: it is unassembled and declares at least one
// dependency.
func (o *Object) RequiresAssembling() bool {
	return !o.IsAssembled && len(o.Dependencies) > 0
}

// Backend is the collaborator that turns an ordered list of bytecode
// buffers into one assembled blob. In production this is the real
// codegen backend; interp provides a stand-in for testing.
type Backend interface {
	Assemble(buffers [][]byte) ([]byte, error)
}

// ErrMissingDependency is returned by Assemble when a declared
// dependency identifier has no corresponding entry in allObjects.
type ErrMissingDependency struct {
	Object     string
	Dependency string
}

func (e ErrMissingDependency) Error() string {
	return fmt.Sprintf("object %q: missing dependency %q", e.Object, e.Dependency)
}

// Assemble concatenates o's own bytecode buffer with the buffers of
// every declared dependency, looked up by identifier in allObjects,
// resolving duplicate identifiers by first occurrence, then hands the
// ordered list to backend to produce the final blob.
func (o *Object) Assemble(allObjects map[string]*Object, backend Backend) error {
	buffers := [][]byte{o.Bytecode}

	seen := make(map[string]struct{}, len(o.Dependencies))
	for _, dep := range o.Dependencies {
		if _, dup := seen[dep]; dup {
			continue
		}
		seen[dep] = struct{}{}

		depObj, ok := allObjects[dep]
		if !ok {
			return ErrMissingDependency{Object: o.Identifier, Dependency: dep}
		}
		buffers = append(buffers, depObj.Bytecode)
	}

	assembled, err := backend.Assemble(buffers)
	if err != nil {
		return fmt.Errorf("object %q: assemble: %w", o.Identifier, err)
	}
	o.Bytecode = assembled
	o.IsAssembled = true
	return nil
}

// CBORMetadata is the compiler-identification payload appended after the
// hash-style metadata bytes of a runtime-segment Object, when CBOR
// output is requested.
type CBORMetadata struct {
	CompilerName string
	VersionList  []string
}

// AppendMetadata appends hashBytes (the hash-style metadata, opaque to
// this package) followed by cbor's CBOR-encoded map, to o.MetadataBytes.
// Only the runtime segment carries appended metadata.
func (o *Object) AppendMetadata(hashBytes []byte, cbor *CBORMetadata) error {
	if o.Segment != Runtime {
		return fmt.Errorf("object %q: metadata only applies to runtime-segment objects", o.Identifier)
	}
	o.MetadataBytes = append(o.MetadataBytes, hashBytes...)
	if cbor != nil {
		o.MetadataBytes = append(o.MetadataBytes, encodeCBORMetadata(cbor)...)
	}
	return nil
}

// encodeCBORMetadata hand-rolls the narrow CBOR subset needed here: a
// definite-length map of two fixed text-string keys, "compilerName" (a
// text string) and "version" (an array of text strings). No library in
// the retrieval pack provides CBOR encoding, and the fixed two-entry
// shape does not warrant pulling one in.
func encodeCBORMetadata(m *CBORMetadata) []byte {
	var buf []byte
	buf = append(buf, cborMapHeader(2)...)

	buf = append(buf, cborTextString("compilerName")...)
	buf = append(buf, cborTextString(m.CompilerName)...)

	buf = append(buf, cborTextString("version")...)
	buf = append(buf, cborArrayHeader(len(m.VersionList))...)
	for _, v := range m.VersionList {
		buf = append(buf, cborTextString(v)...)
	}

	return buf
}

func cborMapHeader(n int) []byte   { return cborHeader(0xa0, n) }
func cborArrayHeader(n int) []byte { return cborHeader(0x80, n) }

func cborHeader(major byte, n int) []byte {
	if n < 24 {
		return []byte{major | byte(n)}
	}
	// metadata maps here never exceed a handful of entries; the
	// one-byte-length encodings above are the only ones exercised.
	return []byte{major | 24, byte(n)}
}

func cborTextString(s string) []byte {
	out := cborHeader(0x60, len(s))
	return append(out, []byte(s)...)
}

// Keccak256 returns the content hash used both as the factory-dependency
// identifier and as the "hash" field of Standard-JSON output.
func (o *Object) Keccak256() [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(o.Bytecode)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SortedWarningCategories returns the category name of every Warning in
// o.Warnings, deduplicated and sorted, for stable printing after a run.
func (o *Object) SortedWarningCategories() []string {
	set := make(map[string]struct{}, len(o.Warnings))
	for _, w := range o.Warnings {
		set[w.Category.String()] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for w := range set {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
