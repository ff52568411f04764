// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evmasm

import (
	"testing"

	"github.com/ethir-go/ethirc/evmasm/opcodes"
)

func instr(op opcodes.Opcode, operand string) Instruction {
	return Instruction{Opcode: op, Operand: operand, SourceLocation: "1:1"}
}

func TestDetectWarningsSendTransfer(t *testing.T) {
	got := DetectWarnings([]Instruction{instr(opcodes.CALL, "")})
	if len(got) != 1 || got[0].Category != WarningSendTransfer {
		t.Fatalf("got %+v", got)
	}
}

func TestDetectWarningsECRecoverOverridesSendTransfer(t *testing.T) {
	got := DetectWarnings([]Instruction{
		instr(opcodes.PUSH1, "1"),
		instr(opcodes.CALL, ""),
	})
	if len(got) != 1 || got[0].Category != WarningECRecover {
		t.Fatalf("got %+v", got)
	}
}

func TestDetectWarningsStaticcallOnlyFlagsECRecover(t *testing.T) {
	got := DetectWarnings([]Instruction{instr(opcodes.STATICCALL, "")})
	if len(got) != 0 {
		t.Fatalf("got %+v, want no warnings for a non-ecrecover STATICCALL", got)
	}

	got = DetectWarnings([]Instruction{
		instr(opcodes.PUSH1, "1"),
		instr(opcodes.STATICCALL, ""),
	})
	if len(got) != 1 || got[0].Category != WarningECRecover {
		t.Fatalf("got %+v", got)
	}
}

func TestDetectWarningsEnvironmentAndBlockReads(t *testing.T) {
	got := DetectWarnings([]Instruction{
		instr(opcodes.EXTCODESIZE, ""),
		instr(opcodes.ORIGIN, ""),
		instr(opcodes.TIMESTAMP, ""),
		instr(opcodes.NUMBER, ""),
		instr(opcodes.BLOCKHASH, ""),
		instr(opcodes.CREATE, ""),
		instr(opcodes.CREATE2, ""),
	})
	want := []WarningCategory{
		WarningExtCodeSize, WarningTxOrigin, WarningBlockTimestamp,
		WarningBlockNumber, WarningBlockHash, WarningAssemblyCreate, WarningAssemblyCreate,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d warnings, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Category != w {
			t.Fatalf("warning %d: got %v, want %v", i, got[i].Category, w)
		}
	}
}

func TestDetectWarningsResetsLastPushAcrossUnrelatedOpcodes(t *testing.T) {
	got := DetectWarnings([]Instruction{
		instr(opcodes.PUSH1, "1"),
		instr(opcodes.POP, ""),
		instr(opcodes.CALL, ""),
	})
	if len(got) != 1 || got[0].Category != WarningSendTransfer {
		t.Fatalf("got %+v, want a plain send/transfer once the pushed 1 has been consumed", got)
	}
}
