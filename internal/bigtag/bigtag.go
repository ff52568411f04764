// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bigtag provides the arbitrary-precision non-negative integer
// arithmetic shared by the assembly model, the symbolic stack and the
// block specializer for tag and constant values. A tag is small in
// practice (it indexes a JUMPDEST within a single compilation unit) but
// the wire format is an unbounded decimal string, so values are carried
// in a uint256.Int rather than a machine word.
package bigtag

import (
	"fmt"

	"github.com/holiman/uint256"
)

// maxUint32Plus1 is 2^32, the boundary used to distinguish a
// deploy-segment tag from a runtime-segment tag reached by the same jump
// table.
var maxUint32Plus1 = uint256.NewInt(1).Lsh(uint256.NewInt(1), 32)

// Tag is a non-negative arbitrary-precision integer identifying a
// JUMPDEST.
type Tag struct {
	v uint256.Int
}

// FromUint64 builds a Tag from a machine word.
func FromUint64(n uint64) Tag {
	var t Tag
	t.v.SetUint64(n)
	return t
}

// FromDecimal parses the base-10 representation used on the wire by the
// external collaborator's legacy-assembly JSON.
func FromDecimal(s string) (Tag, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Tag{}, fmt.Errorf("bigtag: invalid decimal tag %q: %w", s, err)
	}
	return Tag{v: *v}, nil
}

// String returns the base-10 representation.
func (t Tag) String() string { return t.v.Dec() }

// Cmp orders two tags, consistent with BlockKey's "ascending by tag"
// ordering requirement.
func (t Tag) Cmp(o Tag) int { return t.v.Cmp(&o.v) }

// Equal reports whether two tags carry the same value.
func (t Tag) Equal(o Tag) bool { return t.v.Eq(&o.v) }

// IsRuntimeSegmentTag reports whether t exceeds 2^32-1, the condition
// under which a tag encountered in the deploy segment actually names a
// runtime-segment JUMPDEST.
func (t Tag) IsRuntimeSegmentTag() bool {
	return t.v.Cmp(maxUint32Plus1) >= 0
}

// RuntimeTag subtracts 2^32 from t, yielding the runtime-segment tag
// for a deploy-segment value where IsRuntimeSegmentTag is true.
func (t Tag) RuntimeTag() Tag {
	var out Tag
	out.v.Sub(&t.v, maxUint32Plus1)
	return out
}

// Bytes32 returns the 32-byte big-endian encoding used as the stack-hash
// preimage for a Tag-valued stack element.
func (t Tag) Bytes32() [32]byte {
	return t.v.Bytes32()
}

// Uint64 returns the value truncated to 64 bits, for use sites (worklist
// map keys, test fixtures) where the tag is known to be small.
func (t Tag) Uint64() uint64 { return t.v.Uint64() }
