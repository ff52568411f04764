// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package standardjson carries the thin Standard-JSON input/output
// shape the core reads from and writes to. It is ambient plumbing to
// drive a compilation from a file, not a reimplementation
// of the external collaborator's schema or validation. Marshaling goes
// through github.com/goccy/go-json, a drop-in encoding/json replacement,
// matching the rest of the module's JSON-at-the-edges convention.
package standardjson

import (
	"fmt"

	json "github.com/goccy/go-json"
)

// Input is the subset of a Standard-JSON compilation request the core
// reads: source text keyed by path, library addresses, and the
// per-contract assembly or optimized-IR text the upstream collaborator
// already produced. Every other top-level key solc accepts (remappings,
// metadata settings not named here, etc.) is out of scope.
type Input struct {
	Language string            `json:"language,omitempty"`
	Sources  map[string]Source `json:"sources"`
	Settings Settings          `json:"settings"`

	// Contracts carries the per-path, per-name ContractInput the
	// upstream collaborator already produced (solc's own
	// evm.legacyAssembly output, fed back in as this core's input).
	// Real solc Standard-JSON input never has this key; it exists only
	// at this stage of the pipeline, after the Solidity frontend has
	// already run and this core never parses Solidity source itself.
	Contracts map[string]map[string]ContractInput `json:"contracts,omitempty"`
}

// Source is one compilation unit's source text, keyed by its path in
// Input.Sources.
type Source struct {
	Content string `json:"content"`
}

// Settings carries the subset of Standard-JSON "settings" the core
// consumes directly; OutputSelection and Optimizer are kept as raw JSON
// without being interpreted, and Output does not carry them.
type Settings struct {
	Libraries       map[string]map[string]string `json:"libraries,omitempty"`
	OutputSelection json.RawMessage               `json:"outputSelection,omitempty"`
	Optimizer       json.RawMessage               `json:"optimizer,omitempty"`
	EVMVersion      string                        `json:"evmVersion,omitempty"`
}

// ContractInput is the per-contract compiler input the core actually
// lowers: either the EVMLA legacy-assembly tree or Yul-pipeline
// optimized IR text, exactly one of which is populated.
type ContractInput struct {
	EVM struct {
		LegacyAssembly json.RawMessage `json:"legacyAssembly,omitempty"`
	} `json:"evm,omitempty"`
	IROptimized string `json:"ir_optimized,omitempty"`
}

// Output carries per-contract bytecode, hash, factory dependencies and
// (on request) missing-library reports, keyed by path and contract
// name, plus contract-level errors. It does not repeat Input's sources
// or settings. Passthrough fields the core never interprets (abi,
// devdoc, userdoc, storageLayout, ast, metadata) are held as raw JSON.
type Output struct {
	Contracts map[string]map[string]*ContractOutput `json:"contracts,omitempty"`
	Errors    []OutputError                         `json:"errors,omitempty"`
}

// ContractOutput is one compiled contract's enriched Standard-JSON
// entry.
type ContractOutput struct {
	EVM              ContractEVMOutput `json:"evm"`
	Hash             string            `json:"hash,omitempty"`
	FactoryDeps      map[string]string `json:"factory_dependencies,omitempty"`
	MissingLibraries []string          `json:"missing_libraries,omitempty"`

	ABI           json.RawMessage `json:"abi,omitempty"`
	Devdoc        json.RawMessage `json:"devdoc,omitempty"`
	Userdoc       json.RawMessage `json:"userdoc,omitempty"`
	StorageLayout json.RawMessage `json:"storageLayout,omitempty"`
	AST           json.RawMessage `json:"ast,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}

// ContractEVMOutput carries the emitted bytecode and, optionally, the
// disassembled text form.
type ContractEVMOutput struct {
	Bytecode ContractBytecode `json:"bytecode"`
	Assembly string           `json:"assembly,omitempty"`
}

// ContractBytecode is the hex-encoded object, matching solc's
// "evm.bytecode.object" shape.
type ContractBytecode struct {
	Object string `json:"object"`
}

// OutputError reports a contract-level failure; errors are local to a
// contract, never to the whole run.
type OutputError struct {
	Severity           string `json:"severity"`
	Message            string `json:"message"`
	SourceLocation     string `json:"sourceLocation,omitempty"`
	ContractIdentifier string `json:"-"`
}

// Decode parses a Standard-JSON request body into an Input.
func Decode(data []byte) (*Input, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("standardjson: decoding input: %w", err)
	}
	return &in, nil
}

// Encode serializes out as the Standard-JSON response body written to
// stdout.
func Encode(out *Output) ([]byte, error) {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("standardjson: encoding output: %w", err)
	}
	return data, nil
}

// NewOutput returns an Output with its Contracts map ready to receive
// per-path, per-contract-name entries.
func NewOutput() *Output {
	return &Output{Contracts: make(map[string]map[string]*ContractOutput)}
}

// Put records contract's enriched output under path/name, creating the
// per-path map on first use.
func (o *Output) Put(path, name string, contract *ContractOutput) {
	if o.Contracts[path] == nil {
		o.Contracts[path] = make(map[string]*ContractOutput)
	}
	o.Contracts[path][name] = contract
}
