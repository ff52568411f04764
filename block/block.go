// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package block decomposes a flat legacy-assembly instruction stream into
// basic blocks keyed by their leading JUMPDEST tag. The
// decomposer performs no control-flow resolution of its own: it only
// splits the stream at terminators and tags, leaving successor linking
// to the specializer package.
package block

import (
	"fmt"

	"github.com/ethir-go/ethirc/evmasm"
	"github.com/ethir-go/ethirc/evmasm/opcodes"
	"github.com/ethir-go/ethirc/internal/bigtag"
	"github.com/ethir-go/ethirc/stack"
)

// Key is the canonical identity of a pre-specialization block: a
// (segment, tag) pair. Deploy < Runtime; within a segment, tags order
// ascending.
type Key struct {
	Segment evmasm.Segment
	Tag     bigtag.Tag
}

func (k Key) String() string { return fmt.Sprintf("%s:%s", k.Segment, k.Tag) }

// Less implements the BlockKey total order.
func (k Key) Less(o Key) bool {
	if k.Segment != o.Segment {
		return k.Segment.Less(o.Segment)
	}
	return k.Tag.Cmp(o.Tag) < 0
}

// PredecessorEdge names a specific instance of a predecessor block, used
// because a BlockKey alone is ambiguous once a block has been cloned by
// the specializer.
type PredecessorEdge struct {
	Key      Key
	Instance int
}

// Block is a basic block, before or after specialization. Instance is
// nil until the specializer assigns one; a template Block produced by
// Decompose always has a nil Instance and empty Predecessors/InitialStack.
type Block struct {
	Key          Key
	Instance     *int
	Elements     []evmasm.Instruction
	Predecessors []PredecessorEdge
	InitialStack *stack.Stack
	Stack        *stack.Stack
	ExtraHashes  [][32]byte
}

// Clone returns a deep-enough copy suitable for specialization: Elements
// is shared (immutable once decomposed) but Predecessors, stacks and
// ExtraHashes are independent.
func (b *Block) Clone() *Block {
	c := &Block{
		Key:      b.Key,
		Elements: b.Elements,
	}
	return c
}

// Decompose splits instructions (belonging to the given segment) into
// basic blocks, per the following state machine:
//   - an optional leading Tag establishes the block's key; when the
//     stream does not open with one, an implicit entry block with tag 0
//     is synthesized to hold the instructions before the first Tag.
//   - RETURN, REVERT, STOP, INVALID and JUMP terminate the current
//     block; any instructions up to the next Tag are dead code and are
//     discarded.
//   - a Tag instruction starts a new block, closing the current one
//     even if it had no explicit terminator (a fall-through block).
//
// The result map's blocks have empty Predecessors, nil stacks and a nil
// Instance: Decompose never resolves control flow, only shape. Order
// lists the returned keys in textual (source) order, needed by the
// specializer to resolve fall-through edges between blocks that have no
// explicit terminator.
func Decompose(segment evmasm.Segment, instructions []evmasm.Instruction) (blocks map[Key]*Block, order []Key, err error) {
	blocks = make(map[Key]*Block)

	var current *Block
	if len(instructions) == 0 || instructions[0].Opcode != opcodes.Tag {
		current = &Block{Key: Key{Segment: segment, Tag: bigtag.FromUint64(0)}}
	}
	dead := false

	emit := func(b *Block) {
		if b == nil {
			return
		}
		logger.Printf("emitting block %s with %d elements", b.Key, len(b.Elements))
		blocks[b.Key] = b
		order = append(order, b.Key)
	}

	for _, in := range instructions {
		if in.Opcode == opcodes.Tag {
			emit(current)
			tag, terr := in.Tag()
			if terr != nil {
				return nil, nil, fmt.Errorf("block: malformed tag operand %q: %w", in.Operand, terr)
			}
			current = &Block{Key: Key{Segment: segment, Tag: tag}}
			dead = false
			continue
		}

		if dead {
			// discarded: unreachable code between a terminator and the
			// next Tag.
			continue
		}

		current.Elements = append(current.Elements, in)

		if opcodes.IsTerminator(in.Opcode) {
			dead = true
		}
	}
	emit(current)

	return blocks, order, nil
}

// Next builds the textual-successor map the specializer's fall-through
// resolution needs from Decompose's Order slice: each key maps to the
// one immediately after it, except the last.
func Next(order []Key) map[Key]Key {
	next := make(map[Key]Key, len(order))
	for i := 0; i+1 < len(order); i++ {
		next[order[i]] = order[i+1]
	}
	return next
}
