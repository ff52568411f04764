// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package block

import (
	"testing"

	"github.com/ethir-go/ethirc/evmasm"
	"github.com/ethir-go/ethirc/evmasm/opcodes"
	"github.com/ethir-go/ethirc/internal/bigtag"
)

func in(op opcodes.Opcode, operand string) evmasm.Instruction {
	return evmasm.Instruction{Opcode: op, Operand: operand}
}

func TestDecomposeEntryBlockImplicitTagZero(t *testing.T) {
	instrs := []evmasm.Instruction{
		in(opcodes.PUSH1, "0x80"),
		in(opcodes.STOP, ""),
	}
	blocks, _, err := Decompose(evmasm.Runtime, instrs)
	if err != nil {
		t.Fatal(err)
	}
	entry := Key{Segment: evmasm.Runtime, Tag: bigtag.FromUint64(0)}
	b, ok := blocks[entry]
	if !ok {
		t.Fatalf("missing implicit entry block %v", entry)
	}
	if len(b.Elements) != 2 {
		t.Fatalf("got %d elements, want 2", len(b.Elements))
	}
}

func TestDecomposeLeadingTagSuppressesImplicitEntryBlock(t *testing.T) {
	instrs := []evmasm.Instruction{
		in(opcodes.Tag, "1"),
		in(opcodes.PUSH1, "0x01"),
		in(opcodes.STOP, ""),
	}
	blocks, order, err := Decompose(evmasm.Runtime, instrs)
	if err != nil {
		t.Fatal(err)
	}
	entry := Key{Segment: evmasm.Runtime, Tag: bigtag.FromUint64(0)}
	if _, ok := blocks[entry]; ok {
		t.Fatalf("did not expect a synthesized implicit tag-0 block when the stream opens with an explicit tag, got %v", blocks)
	}
	if len(blocks) != 1 || len(order) != 1 {
		t.Fatalf("got %d blocks (order %v), want exactly the tag-1 block", len(blocks), order)
	}
	tagged := blocks[Key{Segment: evmasm.Runtime, Tag: bigtag.FromUint64(1)}]
	if tagged == nil || len(tagged.Elements) != 2 {
		t.Fatalf("tag-1 block missing or wrong shape: %+v", tagged)
	}
}

func TestDecomposeDiscardsDeadCode(t *testing.T) {
	instrs := []evmasm.Instruction{
		in(opcodes.STOP, ""),
		in(opcodes.ADD, ""), // dead: between STOP and next Tag
		in(opcodes.Tag, "1"),
		in(opcodes.PUSH1, "0x01"),
	}
	blocks, _, err := Decompose(evmasm.Runtime, instrs)
	if err != nil {
		t.Fatal(err)
	}
	entry := blocks[Key{Segment: evmasm.Runtime, Tag: bigtag.FromUint64(0)}]
	if len(entry.Elements) != 1 {
		t.Fatalf("entry block should discard dead ADD, got %d elements", len(entry.Elements))
	}
	tagged := blocks[Key{Segment: evmasm.Runtime, Tag: bigtag.FromUint64(1)}]
	if tagged == nil || len(tagged.Elements) != 1 {
		t.Fatalf("tag-1 block missing or wrong shape: %+v", tagged)
	}
}

func TestDecomposeFallThroughClosesBlock(t *testing.T) {
	instrs := []evmasm.Instruction{
		in(opcodes.PUSH1, "0x01"),
		in(opcodes.Tag, "5"),
		in(opcodes.STOP, ""),
	}
	blocks, _, err := Decompose(evmasm.Deploy, instrs)
	if err != nil {
		t.Fatal(err)
	}
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	entry := blocks[Key{Segment: evmasm.Deploy, Tag: bigtag.FromUint64(0)}]
	if len(entry.Elements) != 1 {
		t.Fatalf("entry block should contain only the PUSH1, got %d", len(entry.Elements))
	}
}

func TestNextMapsTextualSuccessor(t *testing.T) {
	instrs := []evmasm.Instruction{
		in(opcodes.ADD, ""),
		in(opcodes.Tag, "1"),
		in(opcodes.ADD, ""),
		in(opcodes.Tag, "2"),
		in(opcodes.STOP, ""),
	}
	_, order, err := Decompose(evmasm.Runtime, instrs)
	if err != nil {
		t.Fatal(err)
	}
	next := Next(order)

	entry := Key{Segment: evmasm.Runtime, Tag: bigtag.FromUint64(0)}
	one := Key{Segment: evmasm.Runtime, Tag: bigtag.FromUint64(1)}
	two := Key{Segment: evmasm.Runtime, Tag: bigtag.FromUint64(2)}

	if next[entry] != one {
		t.Fatalf("got next[entry]=%v, want tag 1", next[entry])
	}
	if next[one] != two {
		t.Fatalf("got next[tag1]=%v, want tag 2", next[one])
	}
	if _, ok := next[two]; ok {
		t.Fatalf("last block must have no textual successor")
	}
}

func TestKeyOrdering(t *testing.T) {
	a := Key{Segment: evmasm.Deploy, Tag: bigtag.FromUint64(5)}
	b := Key{Segment: evmasm.Runtime, Tag: bigtag.FromUint64(0)}
	if !a.Less(b) {
		t.Fatalf("Deploy must order before Runtime regardless of tag")
	}

	c := Key{Segment: evmasm.Runtime, Tag: bigtag.FromUint64(1)}
	d := Key{Segment: evmasm.Runtime, Tag: bigtag.FromUint64(2)}
	if !c.Less(d) {
		t.Fatalf("within a segment, tags must order ascending")
	}
}
