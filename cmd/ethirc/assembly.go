// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"math/big"

	json "github.com/goccy/go-json"

	"github.com/ethir-go/ethirc/evmasm"
	"github.com/ethir-go/ethirc/evmasm/opcodes"
)

// legacyInstr is one entry of a solc-shaped legacyAssembly ".code" array.
// Only the fields the core needs survive decoding; source-range fields
// (begin/end/source) collapse into Instruction.SourceLocation.
type legacyInstr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Begin int    `json:"begin"`
	End   int    `json:"end"`
}

// legacyAssembly is the shape this adapter understands: the top-level
// ".code" array is a segment's instruction stream, and each ".data" key
// is either a nested legacyAssembly (a sub-contract: the runtime segment
// under key "0", or a factory-created contract's own assembly under any
// other key) or a plain hex data item, which this adapter has no use for
// and leaves to fail the nested-unmarshal probe in decodeLegacyAssembly.
type legacyAssembly struct {
	Code []legacyInstr              `json:".code"`
	Data map[string]json.RawMessage `json:".data"`
}

// factoryDependency is one nested sub-contract assembly found under a
// non-"0" .data key: a contract CREATE/CREATE2-instantiates, embedded by
// solc alongside its creator rather than surfaced as its own top-level
// contracts entry.
type factoryDependency struct {
	Deploy  []evmasm.Instruction
	Runtime []evmasm.Instruction
}

// opcodeByName inverts opcodes.Name/opcodes.Lookup for the standard EVM
// mnemonics (ADD, MSTORE, PUSH1, DUP3, ...), built once at package init.
var opcodeByName = func() map[string]opcodes.Opcode {
	out := make(map[string]opcodes.Opcode, 256)
	for i := 0; i <= 0xff; i++ {
		op := opcodes.Opcode(i)
		if info, ok := opcodes.Lookup(op); ok {
			out[info.Name] = op
		}
	}
	return out
}()

// decodeLegacyAssembly turns raw Standard-JSON "evm.legacyAssembly" bytes
// into the deploy and runtime evmasm.Instruction streams block.Decompose
// expects, plus one factoryDependency per nested sub-contract assembly
// found under a .data key other than "0".
func decodeLegacyAssembly(data []byte) (deploy, runtime []evmasm.Instruction, deps map[string]factoryDependency, err error) {
	var asm legacyAssembly
	if err := json.Unmarshal(data, &asm); err != nil {
		return nil, nil, nil, fmt.Errorf("cmd/ethirc: decoding legacyAssembly: %w", err)
	}

	deploy, err = decodeLegacyCode(asm.Code)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("cmd/ethirc: deploy segment: %w", err)
	}

	for key, raw := range asm.Data {
		var item legacyAssembly
		if err := json.Unmarshal(raw, &item); err != nil || len(item.Code) == 0 {
			// a plain hex data item (auxdata, library placeholder, or a
			// nested item this adapter has no use for): skip it.
			continue
		}

		if key == "0" {
			runtime, err = decodeLegacyCode(item.Code)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("cmd/ethirc: runtime segment: %w", err)
			}
			continue
		}

		subDeploy, err := decodeLegacyCode(item.Code)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("cmd/ethirc: factory dependency %q: %w", key, err)
		}
		var subRuntime []evmasm.Instruction
		if rt, ok := item.Data["0"]; ok {
			var rtAsm legacyAssembly
			if err := json.Unmarshal(rt, &rtAsm); err == nil && len(rtAsm.Code) > 0 {
				subRuntime, err = decodeLegacyCode(rtAsm.Code)
				if err != nil {
					return nil, nil, nil, fmt.Errorf("cmd/ethirc: factory dependency %q runtime segment: %w", key, err)
				}
			}
		}

		if deps == nil {
			deps = make(map[string]factoryDependency)
		}
		deps[key] = factoryDependency{Deploy: subDeploy, Runtime: subRuntime}
	}

	return deploy, runtime, deps, nil
}

func decodeLegacyCode(code []legacyInstr) ([]evmasm.Instruction, error) {
	out := make([]evmasm.Instruction, 0, len(code))
	for _, in := range code {
		instr, err := decodeLegacyInstr(in)
		if err != nil {
			return nil, err
		}
		out = append(out, instr)
	}
	return out, nil
}

func decodeLegacyInstr(in legacyInstr) (evmasm.Instruction, error) {
	loc := fmt.Sprintf("%d:%d", in.Begin, in.End)

	switch in.Name {
	case "tag":
		operand, err := decimalFromValue(in.Value)
		if err != nil {
			return evmasm.Instruction{}, err
		}
		return evmasm.Instruction{Opcode: opcodes.Tag, Operand: operand, SourceLocation: loc}, nil

	case "PUSH [tag]":
		operand, err := decimalFromValue(in.Value)
		if err != nil {
			return evmasm.Instruction{}, err
		}
		return evmasm.Instruction{Opcode: opcodes.PushTag, Operand: operand, SourceLocation: loc}, nil

	case "PUSH [$]", "PUSH #[$]", "PUSH data":
		return evmasm.Instruction{Opcode: opcodes.PushData, Operand: in.Value, SourceLocation: loc}, nil

	case "PUSHLIB", "PUSH [lib]":
		return evmasm.Instruction{Opcode: opcodes.PushLib, Operand: in.Value, SourceLocation: loc}, nil

	case "PUSH":
		operand, err := decimalFromValue(in.Value)
		if err != nil {
			return evmasm.Instruction{}, err
		}
		width := (len(in.Value) + 1) / 2
		if width == 0 {
			return evmasm.Instruction{Opcode: opcodes.PUSH0, Operand: operand, SourceLocation: loc}, nil
		}
		if width > 32 {
			return evmasm.Instruction{}, fmt.Errorf("cmd/ethirc: PUSH value %q too wide", in.Value)
		}
		return evmasm.Instruction{Opcode: opcodes.PUSH1 + opcodes.Opcode(width-1), Operand: operand, SourceLocation: loc}, nil

	default:
		op, ok := opcodeByName[in.Name]
		if !ok {
			return evmasm.Instruction{}, fmt.Errorf("cmd/ethirc: unrecognized legacyAssembly instruction %q", in.Name)
		}
		return evmasm.Instruction{Opcode: op, SourceLocation: loc}, nil
	}
}

// decimalFromValue converts a legacyAssembly hex value (no 0x prefix)
// into the decimal string form every push-family operand uses
// throughout this module.
func decimalFromValue(hexValue string) (string, error) {
	if hexValue == "" {
		return "0", nil
	}
	n, ok := new(big.Int).SetString(hexValue, 16)
	if !ok {
		return "", fmt.Errorf("cmd/ethirc: malformed hex value %q", hexValue)
	}
	return n.String(), nil
}
