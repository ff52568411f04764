// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linker

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/ethir-go/ethirc/object"
)

// Backend substitutes library placeholders in an ELF-format bytecode
// buffer, given the known library addresses and the hashes of factory
// dependencies already linked in earlier rounds. It reports whether any
// unresolved symbol remains.
type Backend interface {
	Link(bytecode []byte, libraries map[string][20]byte, factoryDeps map[string][32]byte) (linked []byte, format object.Format, err error)
	UndefinedReferences(bytecode []byte) (librarySymbols []string, factoryDependencyPaths []string)
}

// Linked is a fully resolved object: hex bytecode, its hash, and the
// library/factory-dependency symbols that were present before linking
// (kept for diagnostics).
type Linked struct {
	Bytecode            string
	Hash                string
	LibrarySymbols      []string
	FactoryDependencies []string
}

// Ignored is an input that was already Raw on entry: passed through
// unchanged, with its hash recomputed.
type Ignored struct {
	Bytecode string
	Hash     string
}

// Unlinked is residual after the fixpoint: still-undefined library
// symbols and factory dependencies.
type Unlinked struct {
	LibrarySymbols      []string
	FactoryDependencies []string
}

// Output is the linker's classification of every input path into
// exactly one of Linked, Ignored or Unlinked.
type Output struct {
	Linked   map[string]Linked   `json:"linked"`
	Ignored  map[string]Ignored  `json:"ignored"`
	Unlinked map[string]Unlinked `json:"unlinked"`
}

func newOutput() *Output {
	return &Output{
		Linked:   make(map[string]Linked),
		Ignored:  make(map[string]Ignored),
		Unlinked: make(map[string]Unlinked),
	}
}

// Link runs the factory-dependency fixpoint over bytecodes
// (path → raw bytes), given the resolved library address map.
func Link(bytecodes map[string][]byte, libraries map[string][20]byte, backend Backend) (*Output, error) {
	out := newOutput()
	factoryDeps := make(map[string][32]byte)

	type pending struct {
		path     string
		bytecode []byte
	}
	var unlinkedObjects []pending

	for path, bc := range bytecodes {
		format := detectFormat(bc)
		if format == object.Raw {
			hash := keccak256(bc)
			out.Ignored[path] = Ignored{Bytecode: hex.EncodeToString(bc), Hash: hex.EncodeToString(hash[:])}
			factoryDeps[path] = hash
			continue
		}
		unlinkedObjects = append(unlinkedObjects, pending{path: path, bytecode: bc})
	}

	for {
		linkedCount := 0
		var remaining []pending

		for _, p := range unlinkedObjects {
			librarySymbols, factoryDepPaths := backend.UndefinedReferences(p.bytecode)

			linkedBytes, format, err := backend.Link(p.bytecode, libraries, factoryDeps)
			if err != nil {
				return nil, fmt.Errorf("linker: %s: %w", p.path, err)
			}

			if format != object.Raw {
				remaining = append(remaining, pending{path: p.path, bytecode: linkedBytes})
				continue
			}

			hash := keccak256(linkedBytes)
			out.Linked[p.path] = Linked{
				Bytecode:            hex.EncodeToString(linkedBytes),
				Hash:                hex.EncodeToString(hash[:]),
				LibrarySymbols:      librarySymbols,
				FactoryDependencies: factoryDepPaths,
			}
			factoryDeps[p.path] = hash
			linkedCount++
		}

		unlinkedObjects = remaining
		if linkedCount == 0 {
			break
		}
	}

	for _, p := range unlinkedObjects {
		librarySymbols, factoryDepPaths := backend.UndefinedReferences(p.bytecode)
		out.Unlinked[p.path] = Unlinked{LibrarySymbols: librarySymbols, FactoryDependencies: factoryDepPaths}
	}

	return out, nil
}

// detectFormat is the entry-point classification: bytes that open with
// the ELF magic ("\x7fELF") are ELF, anything else is Raw. Link puts Raw
// inputs straight into Ignored without calling the backend.
func detectFormat(bc []byte) object.Format {
	if len(bc) >= 4 && string(bc[:4]) == "\x7fELF" {
		return object.ELF
	}
	return object.Raw
}

func keccak256(b []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
