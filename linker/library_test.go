// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package linker

import "testing"

func TestParseLibraryArgument(t *testing.T) {
	lib, err := ParseLibraryArgument("contracts/Lib.sol:Lib=0x1234567890123456789012345678901234567890")
	if err != nil {
		t.Fatal(err)
	}
	if lib.Path != "contracts/Lib.sol" || lib.Name != "Lib" {
		t.Fatalf("got %+v", lib)
	}
	if lib.LibraryPath() != "contracts/Lib.sol:Lib" {
		t.Fatalf("got LibraryPath()=%q", lib.LibraryPath())
	}
}

func TestParseLibraryArgumentMissingAddress(t *testing.T) {
	_, err := ParseLibraryArgument("contracts/Lib.sol:Lib")
	want := "Library `contracts/Lib.sol:Lib` address is missing."
	if err == nil || err.Error() != want {
		t.Fatalf("got %v, want %q", err, want)
	}
}

func TestParseLibraryArgumentMissingContractName(t *testing.T) {
	_, err := ParseLibraryArgument("contracts/Lib.sol=0x1234567890123456789012345678901234567890")
	want := "Library `contracts/Lib.sol` contract name is missing."
	if err == nil || err.Error() != want {
		t.Fatalf("got %v, want %q", err, want)
	}
}

func TestParseLibraryArgumentWrongAddressSize(t *testing.T) {
	_, err := ParseLibraryArgument("f.sol:Lib=0x1234")
	want := "Incorrect size of address `0x1234`: expected 20, found 2."
	if err == nil || err.Error() != want {
		t.Fatalf("got %v, want %q", err, want)
	}
}

func TestParseLibraryArgumentInvalidHex(t *testing.T) {
	_, err := ParseLibraryArgument("f.sol:Lib=0xzz34567890123456789012345678901234567890")
	if err == nil {
		t.Fatal("expected an error for non-hex address")
	}
}
