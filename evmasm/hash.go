// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evmasm

import (
	"encoding/binary"
	"hash"
	"sort"

	"golang.org/x/crypto/sha3"
)

// Keccak256 returns a stable content hash of the assembly, used as a
// factory-dependency identifier when a nested Assembly data sub-item is
// replaced by its Hash. The preimage is the instruction count, the
// opcode byte and operand string of every instruction in order, then
// every data entry's key and content in sorted key order, then Sub's
// preimage; it deliberately excludes SourceLocation
// so that line-number churn in the frontend does not perturb dependency
// identity.
func (a *Assembly) Keccak256() [32]byte {
	h := sha3.NewLegacyKeccak256()
	a.writePreimage(h)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func (a *Assembly) writePreimage(h hash.Hash) {
	if a == nil {
		return
	}
	var lenBuf [8]byte
	binary.BigEndian.PutUint64(lenBuf[:], uint64(len(a.Instructions)))
	h.Write(lenBuf[:])

	for _, in := range a.Instructions {
		h.Write([]byte{byte(in.Opcode)})
		h.Write([]byte(in.Operand))
	}

	keys := make([]string, 0, len(a.Data))
	for k := range a.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		item := a.Data[k]
		h.Write([]byte(k))
		switch item.Kind {
		case DataItemAssembly:
			item.Assembly.writePreimage(h)
		case DataItemHash:
			h.Write([]byte(item.Hash))
		case DataItemPath:
			h.Write([]byte(item.Path))
		}
	}

	a.Sub.writePreimage(h)
}
