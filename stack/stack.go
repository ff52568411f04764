// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stack

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// ErrUnderflow is returned by Pop, PopTag, Dup and Swap when the stack
// does not hold enough elements for the requested operation.
var ErrUnderflow = errors.New("stack: underflow")

// ErrExpectedTag is returned by PopTag when the top element is not an
// ElementTag cell.
var ErrExpectedTag = errors.New("stack: expected tag at top")

// Stack is the symbolic stack maintained per in-flight specialization
// task. The zero value is an empty stack. Index 0 is the
// bottom; the last element is the top, mirroring EVM stack convention.
type Stack struct {
	elems []Element
}

// Len returns the number of elements currently on the stack.
func (s *Stack) Len() int { return len(s.elems) }

// Push appends e to the top of the stack.
func (s *Stack) Push(e Element) {
	logger.Printf("push %s, depth now %d", e, len(s.elems)+1)
	s.elems = append(s.elems, e)
}

// Pop removes and returns the top element.
func (s *Stack) Pop() (Element, error) {
	if len(s.elems) == 0 {
		return Element{}, ErrUnderflow
	}
	e := s.elems[len(s.elems)-1]
	s.elems = s.elems[:len(s.elems)-1]
	return e, nil
}

// PopN removes and discards the top n elements, in the arity-consuming
// style used when symbolically executing an opcode with declared pops.
func (s *Stack) PopN(n int) error {
	if len(s.elems) < n {
		return ErrUnderflow
	}
	s.elems = s.elems[:len(s.elems)-n]
	return nil
}

// PopTag removes and returns the top element's tag, failing with
// ErrExpectedTag if the top of stack is not an ElementTag cell.
func (s *Stack) PopTag() (Element, error) {
	e, err := s.Pop()
	if err != nil {
		return Element{}, err
	}
	if e.Kind != ElementTag {
		return Element{}, ErrExpectedTag
	}
	return e, nil
}

// Top returns the top element without removing it.
func (s *Stack) Top() (Element, error) {
	if len(s.elems) == 0 {
		return Element{}, ErrUnderflow
	}
	return s.elems[len(s.elems)-1], nil
}

// Dup duplicates the n-th element from the top (1-based, DUP1 duplicates
// the current top) and pushes the copy.
func (s *Stack) Dup(n int) error {
	if n < 1 || n > len(s.elems) {
		return ErrUnderflow
	}
	s.Push(s.elems[len(s.elems)-n])
	return nil
}

// Swap exchanges the top element with the (n+1)-th from the top (1-based,
// SWAP1 exchanges top and second-from-top).
func (s *Stack) Swap(n int) error {
	if n < 1 || n+1 > len(s.elems) {
		return ErrUnderflow
	}
	top := len(s.elems) - 1
	other := len(s.elems) - 1 - n
	s.elems[top], s.elems[other] = s.elems[other], s.elems[top]
	return nil
}

// Append concatenates other on top of s, bottom element of other first.
func (s *Stack) Append(other *Stack) {
	s.elems = append(s.elems, other.elems...)
}

// Clone returns an independent copy of the stack, used both when a
// worklist task is cloned into a Block instance and when a single
// terminator fans out to multiple successors.
func (s *Stack) Clone() *Stack {
	c := &Stack{elems: make([]Element, len(s.elems))}
	copy(c.elems, s.elems)
	return c
}

// Hash is a 32-byte digest over the in-order preimage of stack elements:
// the 32-byte big-endian tag encoding for ElementTag cells, a single
// zero byte for everything else. Equal hashes define
// block-instance identity during specialization.
func (s *Stack) Hash() [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, e := range s.elems {
		if e.Kind == ElementTag {
			b := e.Tag.Bytes32()
			h.Write(b[:])
		} else {
			h.Write([]byte{0x00})
		}
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (s *Stack) String() string {
	return fmt.Sprintf("%v", s.elems)
}
