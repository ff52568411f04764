// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package linker implements the CLI-level linker:
// parsing `<path>:<name>=<address>` library arguments, substituting
// library placeholders in ELF-format objects, and running the
// factory-dependency fixpoint that turns a batch of objects into the
// linked/ignored/unlinked classification reported on the linker's
// stdout.
package linker

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Library is one resolved `<path>:<name>=<address>` argument.
type Library struct {
	Path    string
	Name    string
	Address [20]byte
}

// ParseLibraryArgument parses a single library CLI argument in the
// `<path>:<name>=<0x-prefixed-20-byte-address>` format, producing
// exactly the four error messages solc's own `--libraries` flag does.
func ParseLibraryArgument(arg string) (Library, error) {
	pathAndRest, address, ok := strings.Cut(arg, "=")
	if !ok {
		return Library{}, fmt.Errorf("Library `%s` address is missing.", arg)
	}

	path, name, ok := strings.Cut(pathAndRest, ":")
	if !ok {
		return Library{}, fmt.Errorf("Library `%s` contract name is missing.", pathAndRest)
	}

	addr, err := decodeAddress(address)
	if err != nil {
		return Library{}, err
	}

	return Library{Path: path, Name: name, Address: addr}, nil
}

func decodeAddress(s string) ([20]byte, error) {
	var out [20]byte

	trimmed := strings.TrimPrefix(s, "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("Invalid address `%s`: %w.", s, err)
	}
	if len(decoded) != len(out) {
		return out, fmt.Errorf("Incorrect size of address `%s`: expected %d, found %d.", s, len(out), len(decoded))
	}

	copy(out[:], decoded)
	return out, nil
}

// LibraryPath is the `<path>:<name>` key a Library resolves, matching
// the identifier shape used throughout the object graph.
func (l Library) LibraryPath() string {
	return l.Path + ":" + l.Name
}

// ParseLibraries parses every element of args and returns a
// path→address map keyed by LibraryPath, as consumed by link-symbol
// resolution.
func ParseLibraries(args []string) (map[string][20]byte, error) {
	out := make(map[string][20]byte, len(args))
	for _, arg := range args {
		lib, err := ParseLibraryArgument(arg)
		if err != nil {
			return nil, err
		}
		out[lib.LibraryPath()] = lib.Address
	}
	return out, nil
}
