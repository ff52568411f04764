// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package evmasm

import "github.com/ethir-go/ethirc/evmasm/opcodes"

// WarningCategory names one of the suppressible diagnostic classes
// reported against constructs that are legal but easy to misuse: value
// transfers, the low-level precompiles, and environment/block reads
// that behave differently under a rollup sequencer than under an L1
// miner.
type WarningCategory uint8

const (
	WarningSendTransfer WarningCategory = iota
	WarningECRecover
	WarningExtCodeSize
	WarningTxOrigin
	WarningBlockTimestamp
	WarningBlockNumber
	WarningBlockHash
	WarningAssemblyCreate
)

func (c WarningCategory) String() string {
	switch c {
	case WarningSendTransfer:
		return "send/transfer"
	case WarningECRecover:
		return "ecrecover"
	case WarningExtCodeSize:
		return "extcodesize"
	case WarningTxOrigin:
		return "txorigin"
	case WarningBlockTimestamp:
		return "blocktimestamp"
	case WarningBlockNumber:
		return "blocknumber"
	case WarningBlockHash:
		return "blockhash"
	case WarningAssemblyCreate:
		return "assembly-create"
	default:
		return "unknown"
	}
}

// Warning is one occurrence of a suppressible WarningCategory, located
// at the instruction that triggered it.
type Warning struct {
	Category       WarningCategory
	SourceLocation string
}

// ecrecoverPrecompile is the address the ecrecover precompile lives at;
// a CALL/CALLCODE/STATICCALL whose address argument was pushed as this
// exact constant immediately beforehand is reported as WarningECRecover
// rather than the generic send/transfer (or ignored, for STATICCALL)
// category.
const ecrecoverPrecompile = "1"

// DetectWarnings scans a flat legacy-assembly instruction stream (before
// decomposition, so successor resolution plays no part) for the §7
// suppressible constructs and reports one Warning per occurrence, in
// stream order.
func DetectWarnings(instructions []Instruction) []Warning {
	var warnings []Warning
	var lastPush Instruction
	havePush := false

	report := func(category WarningCategory, loc string) {
		warnings = append(warnings, Warning{Category: category, SourceLocation: loc})
	}

	for _, in := range instructions {
		switch in.Opcode {
		case opcodes.CALL, opcodes.CALLCODE:
			if havePush && lastPush.Operand == ecrecoverPrecompile {
				report(WarningECRecover, in.SourceLocation)
			} else {
				report(WarningSendTransfer, in.SourceLocation)
			}
		case opcodes.STATICCALL:
			if havePush && lastPush.Operand == ecrecoverPrecompile {
				report(WarningECRecover, in.SourceLocation)
			}
		case opcodes.EXTCODESIZE:
			report(WarningExtCodeSize, in.SourceLocation)
		case opcodes.ORIGIN:
			report(WarningTxOrigin, in.SourceLocation)
		case opcodes.TIMESTAMP:
			report(WarningBlockTimestamp, in.SourceLocation)
		case opcodes.NUMBER:
			report(WarningBlockNumber, in.SourceLocation)
		case opcodes.BLOCKHASH:
			report(WarningBlockHash, in.SourceLocation)
		case opcodes.CREATE, opcodes.CREATE2:
			report(WarningAssemblyCreate, in.SourceLocation)
		}

		switch {
		case opcodes.IsPush(in.Opcode):
			lastPush = in
			havePush = true
		case in.Opcode == opcodes.Tag:
			// a tag never intervenes between a pushed address and the
			// call that consumes it; preserve lastPush across it.
		default:
			havePush = false
		}
	}

	return warnings
}
