// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stack implements the symbolic stack simulated during block
// specialization: a stack of StackElement values carrying
// just enough identity (tag values) to resolve jumps, plus the
// content-addressed StackHash used to decide whether two traversals of
// the same block need separate clones.
package stack

import (
	"fmt"

	"github.com/ethir-go/ethirc/internal/bigtag"
)

// ElementKind discriminates the StackElement sum type.
type ElementKind uint8

const (
	ElementTag ElementKind = iota
	ElementConstant
	ElementData
	ElementPath
	ElementOpaque
)

func (k ElementKind) String() string {
	switch k {
	case ElementTag:
		return "tag"
	case ElementConstant:
		return "constant"
	case ElementData:
		return "data"
	case ElementPath:
		return "path"
	default:
		return "opaque"
	}
}

// Element is one cell of the symbolic stack. Only Kind == ElementTag
// carries identity into the stack hash; every other kind contributes a
// single zero byte to the hash preimage regardless of its payload.
type Element struct {
	Kind     ElementKind
	Tag      bigtag.Tag // ElementTag
	Constant bigtag.Tag // ElementConstant
	Data     string     // ElementData: dataoffset/datasize reference id
	Path     string     // ElementPath: resolved library/contract path
}

// NewTag builds an ElementTag cell.
func NewTag(t bigtag.Tag) Element { return Element{Kind: ElementTag, Tag: t} }

// NewConstant builds an ElementConstant cell.
func NewConstant(v bigtag.Tag) Element { return Element{Kind: ElementConstant, Constant: v} }

// NewData builds an ElementData cell.
func NewData(id string) Element { return Element{Kind: ElementData, Data: id} }

// NewPath builds an ElementPath cell.
func NewPath(path string) Element { return Element{Kind: ElementPath, Path: path} }

// Opaque is the shared value of every Opaque cell: opaque elements carry
// no payload, so a single value can be reused freely.
var Opaque = Element{Kind: ElementOpaque}

func (e Element) String() string {
	switch e.Kind {
	case ElementTag:
		return fmt.Sprintf("tag(%s)", e.Tag)
	case ElementConstant:
		return fmt.Sprintf("const(%s)", e.Constant)
	case ElementData:
		return fmt.Sprintf("data(%s)", e.Data)
	case ElementPath:
		return fmt.Sprintf("path(%s)", e.Path)
	default:
		return "opaque"
	}
}
