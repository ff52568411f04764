// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package entry

import (
	"testing"

	"github.com/ethir-go/ethirc/evmasm"
	"github.com/ethir-go/ethirc/specializer"
)

type recordingBackend struct {
	lowered []Link
	ids     []string
}

func (b *recordingBackend) Lower(contractIdentifier string, result *specializer.Result, link Link) error {
	b.lowered = append(b.lowered, link)
	b.ids = append(b.ids, contractIdentifier)
	return nil
}

func (b *recordingBackend) Invoke(contractIdentifier string, isDeployCode bool) ([]byte, error) {
	return nil, nil
}

func TestIsDeployCode(t *testing.T) {
	deploy := Link{Target: EraVM, Segment: evmasm.Deploy}
	if !deploy.IsDeployCode() {
		t.Fatal("deploy segment should report IsDeployCode() == true")
	}
	runtime := Link{Target: EraVM, Segment: evmasm.Runtime}
	if runtime.IsDeployCode() {
		t.Fatal("runtime segment should report IsDeployCode() == false")
	}
}

func TestIsDeployCodePanicsForEVM(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic calling IsDeployCode on an EVM-target Link")
		}
	}()
	Link{Target: EVM}.IsDeployCode()
}

func TestLowerBothSegments(t *testing.T) {
	c := Contract{
		Identifier: "Foo",
		Deploy:     &specializer.Result{},
		Runtime:    &specializer.Result{},
	}
	b := &recordingBackend{}
	if err := Lower(c, EraVM, b); err != nil {
		t.Fatal(err)
	}
	if len(b.lowered) != 2 {
		t.Fatalf("got %d Lower calls, want 2", len(b.lowered))
	}
	if b.lowered[0].Segment != evmasm.Deploy || b.lowered[1].Segment != evmasm.Runtime {
		t.Fatalf("got %+v", b.lowered)
	}
	if b.ids[0] != "Foo" || b.ids[1] != "Foo" {
		t.Fatalf("got ids %v, want both %q", b.ids, "Foo")
	}
}

func TestLowerRuntimeOptional(t *testing.T) {
	c := Contract{Identifier: "Foo", Deploy: &specializer.Result{}}
	b := &recordingBackend{}
	if err := Lower(c, EVM, b); err != nil {
		t.Fatal(err)
	}
	if len(b.lowered) != 1 {
		t.Fatalf("got %d Lower calls, want 1", len(b.lowered))
	}
}
