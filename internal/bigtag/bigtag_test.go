// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bigtag

import "testing"

func TestFromDecimalRoundTripsString(t *testing.T) {
	tag, err := FromDecimal("4294967296")
	if err != nil {
		t.Fatal(err)
	}
	if got := tag.String(); got != "4294967296" {
		t.Fatalf("got %q", got)
	}
}

func TestFromDecimalRejectsGarbage(t *testing.T) {
	if _, err := FromDecimal("not-a-number"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestIsRuntimeSegmentTagBoundary(t *testing.T) {
	below := FromUint64(0xffffffff)
	if below.IsRuntimeSegmentTag() {
		t.Fatalf("got %v IsRuntimeSegmentTag() = true, want false", below)
	}

	at, err := FromDecimal("4294967296")
	if err != nil {
		t.Fatal(err)
	}
	if !at.IsRuntimeSegmentTag() {
		t.Fatalf("got %v IsRuntimeSegmentTag() = false, want true", at)
	}
}

func TestRuntimeTagSubtractsBoundary(t *testing.T) {
	tag, err := FromDecimal("4294967297")
	if err != nil {
		t.Fatal(err)
	}
	if got := tag.RuntimeTag(); got.Uint64() != 1 {
		t.Fatalf("got %v, want 1", got)
	}
}

func TestCmpAndEqual(t *testing.T) {
	a := FromUint64(1)
	b := FromUint64(2)
	if a.Cmp(b) >= 0 {
		t.Fatalf("got a.Cmp(b) = %d, want negative", a.Cmp(b))
	}
	if !a.Equal(FromUint64(1)) {
		t.Fatal("expected equal tags to compare equal")
	}
}

func TestBytes32IsBigEndian(t *testing.T) {
	tag := FromUint64(1)
	b := tag.Bytes32()
	if b[31] != 1 {
		t.Fatalf("got %x, want last byte 1", b)
	}
	for _, x := range b[:31] {
		if x != 0 {
			t.Fatalf("got %x, want leading bytes zero", b)
		}
	}
}
