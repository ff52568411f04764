// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package object

import (
	"testing"

	"github.com/ethir-go/ethirc/evmasm"
)

type concatBackend struct{}

func (concatBackend) Assemble(buffers [][]byte) ([]byte, error) {
	var out []byte
	for _, b := range buffers {
		out = append(out, b...)
	}
	return out, nil
}

func TestRequiresAssembling(t *testing.T) {
	o := &Object{Bytecode: []byte{0x01}}
	if o.RequiresAssembling() {
		t.Fatalf("object with no dependencies should not require assembling")
	}
	o.Dependencies = []string{"dep"}
	if !o.RequiresAssembling() {
		t.Fatalf("unassembled object with dependencies should require assembling")
	}
	o.IsAssembled = true
	if o.RequiresAssembling() {
		t.Fatalf("already-assembled object should not require assembling")
	}
}

func TestAssembleConcatenatesInDeclarationOrderDedupingFirstOccurrence(t *testing.T) {
	main := &Object{Identifier: "main", Bytecode: []byte{0xaa}, Dependencies: []string{"dep1", "dep2", "dep1"}}
	all := map[string]*Object{
		"dep1": {Identifier: "dep1", Bytecode: []byte{0x01}},
		"dep2": {Identifier: "dep2", Bytecode: []byte{0x02}},
	}

	if err := main.Assemble(all, concatBackend{}); err != nil {
		t.Fatal(err)
	}
	want := []byte{0xaa, 0x01, 0x02}
	if string(main.Bytecode) != string(want) {
		t.Fatalf("got %v, want %v", main.Bytecode, want)
	}
	if !main.IsAssembled {
		t.Fatalf("IsAssembled should be true after Assemble")
	}
}

func TestAssembleMissingDependencyIsFatal(t *testing.T) {
	main := &Object{Identifier: "main", Bytecode: []byte{0xaa}, Dependencies: []string{"ghost"}}
	err := main.Assemble(map[string]*Object{}, concatBackend{})
	if err == nil {
		t.Fatal("expected an error for a missing dependency")
	}
	var missing ErrMissingDependency
	if !errorsAs(err, &missing) {
		t.Fatalf("got %v, want ErrMissingDependency", err)
	}
}

func errorsAs(err error, target *ErrMissingDependency) bool {
	for err != nil {
		if m, ok := err.(ErrMissingDependency); ok {
			*target = m
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func TestAppendMetadataRejectsDeploySegment(t *testing.T) {
	o := &Object{Segment: Deploy}
	if err := o.AppendMetadata([]byte{0x01}, nil); err == nil {
		t.Fatal("expected an error appending metadata to a deploy-segment object")
	}
}

func TestAppendMetadataRuntimeSegment(t *testing.T) {
	o := &Object{Segment: Runtime}
	err := o.AppendMetadata([]byte{0xde, 0xad}, &CBORMetadata{CompilerName: "ethirc", VersionList: []string{"0.1.0"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(o.MetadataBytes) <= 2 {
		t.Fatalf("expected CBOR bytes appended after the hash bytes, got %v", o.MetadataBytes)
	}
	if o.MetadataBytes[0] != 0xde || o.MetadataBytes[1] != 0xad {
		t.Fatalf("hash-style metadata bytes must come first, got %v", o.MetadataBytes)
	}
}

func TestKeccak256Deterministic(t *testing.T) {
	o1 := &Object{Bytecode: []byte{1, 2, 3}}
	o2 := &Object{Bytecode: []byte{1, 2, 3}}
	if o1.Keccak256() != o2.Keccak256() {
		t.Fatalf("identical bytecode must hash identically")
	}
}

func TestSortedWarningCategoriesDedupes(t *testing.T) {
	o := &Object{Warnings: []evmasm.Warning{
		{Category: evmasm.WarningECRecover},
		{Category: evmasm.WarningTxOrigin},
		{Category: evmasm.WarningECRecover},
	}}
	got := o.SortedWarningCategories()
	want := []string{"ecrecover", "txorigin"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
