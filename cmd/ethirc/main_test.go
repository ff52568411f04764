// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"testing"

	"github.com/ethir-go/ethirc/entry"
	"github.com/ethir-go/ethirc/evmasm"
	"github.com/ethir-go/ethirc/evmasm/opcodes"
	"github.com/ethir-go/ethirc/interp"
	"github.com/ethir-go/ethirc/project"
	"github.com/ethir-go/ethirc/standardjson"
)

func TestSpecializeContractStraightLine(t *testing.T) {
	deploy := []evmasm.Instruction{
		{Opcode: opcodes.PUSH1, Operand: "1"},
		{Opcode: opcodes.PUSH1, Operand: "2"},
		{Opcode: opcodes.ADD},
		{Opcode: opcodes.STOP},
	}
	deployResult, runtimeResult, err := specializeContract(deploy, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !deployResult.OK() || len(deployResult.Order) == 0 {
		t.Fatalf("got deployResult=%+v", deployResult)
	}
	if runtimeResult != nil {
		t.Fatalf("expected no runtime result, got %+v", runtimeResult)
	}
}

func TestSpecializeContractCrossesDeployToRuntime(t *testing.T) {
	// Deploy segment ends by jumping to u32::MAX + 1, which the
	// segment-crossing convention resolves to the Runtime segment's
	// entry tag 0, mirroring specializer_test.go's
	// TestSpecializeDeployToRuntimeCrossing.
	runtimeEntryTag := "4294967296"
	deploy := []evmasm.Instruction{
		{Opcode: opcodes.PushTag, Operand: runtimeEntryTag},
		{Opcode: opcodes.JUMP},
	}
	runtime := []evmasm.Instruction{
		{Opcode: opcodes.Tag, Operand: "0"},
		{Opcode: opcodes.JUMPDEST},
		{Opcode: opcodes.STOP},
	}

	deployResult, runtimeResult, err := specializeContract(deploy, runtime)
	if err != nil {
		t.Fatal(err)
	}
	if !deployResult.OK() {
		t.Fatalf("deploy errors: %v", deployResult.Errors)
	}
	if runtimeResult == nil || !runtimeResult.OK() {
		t.Fatalf("got runtimeResult=%+v", runtimeResult)
	}
}

func TestCompileOneProducesHexBytecode(t *testing.T) {
	deploy := []evmasm.Instruction{
		{Opcode: opcodes.PUSH1, Operand: "32"},
		{Opcode: opcodes.PUSH1, Operand: "0"},
		{Opcode: opcodes.RETURN},
	}
	req := recursiveRequest{Deploy: deploy}

	backend := interp.NewBackend()
	resp, err := compileOne("a.sol:A", req, entry.EVM, backend)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Deploy == "" {
		t.Fatal("expected non-empty deploy bytecode")
	}
	if resp.Runtime != "" {
		t.Fatalf("expected no runtime bytecode, got %q", resp.Runtime)
	}
}

func TestSplitIdentifier(t *testing.T) {
	cases := []struct{ id, path, name string }{
		{"a.sol:A", "a.sol", "A"},
		{"dir/b.sol:B", "dir/b.sol", "B"},
		{"noColon", "noColon", ""},
	}
	for _, c := range cases {
		path, name := splitIdentifier(c.id)
		if path != c.path || name != c.name {
			t.Errorf("splitIdentifier(%q) = (%q, %q), want (%q, %q)", c.id, path, name, c.path, c.name)
		}
	}
}

func TestContractOutputFromEncodesDeployBytecode(t *testing.T) {
	res := project.Result{Identifier: "a.sol:A", Deploy: []byte{0xde, 0xad, 0xbe, 0xef}}
	out := contractOutputFrom(res, nil, nil)
	if out.EVM.Bytecode.Object != "deadbeef" {
		t.Fatalf("got %q", out.EVM.Bytecode.Object)
	}
	if out.Hash == "" {
		t.Fatal("expected a non-empty hash")
	}
	if out.FactoryDeps != nil {
		t.Fatalf("expected no factory dependencies, got %v", out.FactoryDeps)
	}
}

func TestContractOutputFromPopulatesFactoryDeps(t *testing.T) {
	res := project.Result{Identifier: "a.sol:Main", Deploy: []byte{0x01}}
	c := &project.Contract{Identifier: "a.sol:Main", Dependencies: []string{"a.sol:Main#1"}}
	results := map[string]project.Result{
		"a.sol:Main#1": {Deploy: []byte{0x02}},
	}

	out := contractOutputFrom(res, c, results)
	if len(out.FactoryDeps) != 1 {
		t.Fatalf("got %v, want exactly one factory dependency", out.FactoryDeps)
	}
	for hash, name := range out.FactoryDeps {
		if name != "a.sol:Main#1" {
			t.Fatalf("got dependency name %q", name)
		}
		if len(hash) != 64 {
			t.Fatalf("got hash %q, want 32 hex-encoded bytes", hash)
		}
	}
}

func TestBuildContractsSkipsEntriesWithoutLegacyAssembly(t *testing.T) {
	input := &standardjson.Input{
		Contracts: map[string]map[string]standardjson.ContractInput{
			"a.sol": {
				"A": {IROptimized: "some yul text"},
			},
		},
	}
	contracts, err := buildContracts(input)
	if err != nil {
		t.Fatal(err)
	}
	if len(contracts) != 0 {
		t.Fatalf("got %+v, want no contracts built", contracts)
	}
}

func TestBuildContractsDecodesAndSpecializes(t *testing.T) {
	legacy := `{".code": [{"name": "PUSH", "value": "0"}, {"name": "STOP"}]}`
	var ci standardjson.ContractInput
	ci.EVM.LegacyAssembly = []byte(legacy)

	input := &standardjson.Input{
		Contracts: map[string]map[string]standardjson.ContractInput{
			"a.sol": {"A": ci},
		},
	}
	contracts, err := buildContracts(input)
	if err != nil {
		t.Fatal(err)
	}
	c, ok := contracts["a.sol:A"]
	if !ok {
		t.Fatalf("got %+v, want a.sol:A present", contracts)
	}
	if c.Source.Deploy == nil || !c.Source.Deploy.OK() {
		t.Fatalf("got deploy result %+v", c.Source.Deploy)
	}
}

func TestBuildContractsWiresFactoryDependency(t *testing.T) {
	legacy := `{
		".code": [{"name": "PUSH", "value": "0"}, {"name": "STOP"}],
		".data": {
			"1": {".code": [{"name": "PUSH", "value": "0"}, {"name": "STOP"}]}
		}
	}`
	var ci standardjson.ContractInput
	ci.EVM.LegacyAssembly = []byte(legacy)

	input := &standardjson.Input{
		Contracts: map[string]map[string]standardjson.ContractInput{
			"a.sol": {"Main": ci},
		},
	}
	contracts, err := buildContracts(input)
	if err != nil {
		t.Fatal(err)
	}

	main, ok := contracts["a.sol:Main"]
	if !ok {
		t.Fatalf("got %+v, want a.sol:Main present", contracts)
	}
	if len(main.Dependencies) != 1 || main.Dependencies[0] != "a.sol:Main#1" {
		t.Fatalf("got dependencies %v, want [a.sol:Main#1]", main.Dependencies)
	}

	dep, ok := contracts["a.sol:Main#1"]
	if !ok {
		t.Fatalf("got %+v, want the factory dependency registered under its own identifier", contracts)
	}
	if dep.Source.Deploy == nil || !dep.Source.Deploy.OK() {
		t.Fatalf("got factory dependency deploy result %+v", dep.Source.Deploy)
	}
	if !isFactoryDependencyIdentifier(dep.Identifier) {
		t.Fatalf("expected %q to be recognized as a factory dependency identifier", dep.Identifier)
	}
}
