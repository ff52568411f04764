// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package interp is a pure-Go reference backend: it lowers a specialized
// block graph into a flat instruction stream with a tag-indexed jump
// table and executes it directly, the way exec.VM walks a compiled
// wasm function's bytecode with a PC and an explicit stack. It exists
// to exercise decompose+specialize end to end without a real code
// generator, and is what the test suites of the packages upstream of
// it run their fixtures against.
package interp

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"

	"github.com/ethir-go/ethirc/entry"
	"github.com/ethir-go/ethirc/evmasm"
	"github.com/ethir-go/ethirc/evmasm/opcodes"
	"github.com/ethir-go/ethirc/object"
	"github.com/ethir-go/ethirc/specializer"
)

// ErrUnsupportedOpcode is returned by Invoke when the flattened program
// reaches an opcode this reference backend does not model, such as an
// external call or a precompile invocation. Real codegen backends are
// expected to support the full set; this one trades completeness for
// being a compact, auditable testing target.
type ErrUnsupportedOpcode struct {
	Opcode opcodes.Opcode
}

func (e ErrUnsupportedOpcode) Error() string {
	return fmt.Sprintf("interp: unsupported opcode %s", opcodes.Name(e.Opcode))
}

// ErrHalt reports an INVALID instruction or any other abnormal halt
// that is not a REVERT.
type ErrHalt struct {
	Reason string
}

func (e ErrHalt) Error() string { return "interp: halted: " + e.Reason }

// ErrReverted is returned by Invoke when the flattened program executes
// a REVERT instruction; Data carries the bytes it returned.
type ErrReverted struct {
	Data []byte
}

func (e ErrReverted) Error() string { return "interp: execution reverted" }

// program is one lowered segment: the flattened instruction stream in
// textual block order, plus the index into code at which each block's
// first instruction starts so JUMP/JUMPI can resolve a tag to a pc.
type program struct {
	code    []evmasm.Instruction
	tagPC   map[string]int // bigtag.Tag.String() -> index into code
	entryPC int
}

// Backend is the interp package's entry.Backend implementation. It also
// satisfies object.Backend and linker.Backend, so a single instance can
// drive assembly, linking and execution of a whole compilation unit in
// tests.
type Backend struct {
	programs map[string]map[evmasm.Segment]*program
	memory   map[string][]byte
	storage  map[string]map[[32]byte]*uint256.Int
}

// NewBackend returns a Backend with no lowered contracts yet.
func NewBackend() *Backend {
	return &Backend{
		programs: make(map[string]map[evmasm.Segment]*program),
		memory:   make(map[string][]byte),
		storage:  make(map[string]map[[32]byte]*uint256.Int),
	}
}

// Lower flattens result's specialized block graph into a linear
// instruction stream addressable by tag, and registers it under
// contractIdentifier/link.Segment for later Invoke calls. Each
// specialized instance of a block is lowered independently and
// appended in Order; a block revisited under a different stack hash
// therefore contributes its instructions more than once, matching how
// a real backend would emit a clone per specialization rather than
// sharing code between incompatible stack shapes.
func (b *Backend) Lower(contractIdentifier string, result *specializer.Result, link entry.Link) error {
	if !result.OK() {
		return fmt.Errorf("interp: cannot lower a specialization with %d error(s)", len(result.Errors))
	}

	p := &program{tagPC: make(map[string]int)}
	for _, ik := range result.Order {
		blk := result.Blocks[ik]
		if ik.Instance == 0 {
			p.tagPC[ik.Key.Tag.String()] = len(p.code)
		}
		p.code = append(p.code, blk.Elements...)
	}

	segs, ok := b.programs[contractIdentifier]
	if !ok {
		segs = make(map[evmasm.Segment]*program)
		b.programs[contractIdentifier] = segs
	}
	segs[link.Segment] = p
	return nil
}

// Invoke runs the deploy or runtime program lowered for
// contractIdentifier to completion and returns the bytes its RETURN
// instruction copied out, or an error wrapping ErrReverted/ErrHalt/
// ErrUnsupportedOpcode.
func (b *Backend) Invoke(contractIdentifier string, isDeployCode bool) ([]byte, error) {
	segs, ok := b.programs[contractIdentifier]
	if !ok {
		return nil, fmt.Errorf("interp: %q was never lowered", contractIdentifier)
	}
	segment := evmasm.Runtime
	if isDeployCode {
		segment = evmasm.Deploy
	}
	p, ok := segs[segment]
	if !ok {
		return nil, fmt.Errorf("interp: %q has no lowered %s segment", contractIdentifier, segment)
	}

	if _, ok := b.storage[contractIdentifier]; !ok {
		b.storage[contractIdentifier] = make(map[[32]byte]*uint256.Int)
	}

	m := &machine{
		code:    p.code,
		tagPC:   p.tagPC,
		memory:  append([]byte(nil), b.memory[contractIdentifier]...),
		storage: b.storage[contractIdentifier],
	}
	out, err := m.run()
	b.memory[contractIdentifier] = m.memory
	return out, err
}

// Assemble satisfies object.Backend by concatenating dependency buffers
// in the order object.Assemble already resolved; the reference backend
// has no relocation to perform, since PushData/PushLib operands are
// consumed symbolically by Lower rather than as raw offsets.
func (b *Backend) Assemble(buffers [][]byte) ([]byte, error) {
	var out []byte
	for _, buf := range buffers {
		out = append(out, buf...)
	}
	return out, nil
}

// UndefinedReferences satisfies linker.Backend. The reference backend
// never emits ELF-format objects with relocation symbols, so every
// input it is asked about is already fully defined.
func (b *Backend) UndefinedReferences(bytecode []byte) ([]string, []string) {
	return nil, nil
}

// Link satisfies linker.Backend by passing bytecode through unchanged
// and reporting it as Raw, matching the fact that Assemble never leaves
// a placeholder behind for Link to resolve.
func (b *Backend) Link(bytecode []byte, libraries map[string][20]byte, factoryDeps map[string][32]byte) ([]byte, object.Format, error) {
	return bytecode, object.Raw, nil
}

type machine struct {
	code    []evmasm.Instruction
	tagPC   map[string]int
	pc      int
	stack   []*uint256.Int
	memory  []byte
	storage map[[32]byte]*uint256.Int
}

func (m *machine) push(v *uint256.Int) { m.stack = append(m.stack, v) }

func (m *machine) pop() (*uint256.Int, error) {
	if len(m.stack) == 0 {
		return nil, fmt.Errorf("interp: stack underflow at pc %d", m.pc)
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (m *machine) run() ([]byte, error) {
	for m.pc < len(m.code) {
		in := m.code[m.pc]
		m.pc++

		switch {
		case in.Opcode == opcodes.Tag:
			continue
		case opcodes.IsPush(in.Opcode):
			v, err := pushValue(in)
			if err != nil {
				return nil, err
			}
			m.push(v)
			continue
		case in.Opcode == opcodes.PushTag || in.Opcode == opcodes.PushData || in.Opcode == opcodes.PushLib:
			v, err := pushValue(in)
			if err != nil {
				return nil, err
			}
			m.push(v)
			continue
		case opcodes.IsDup(in.Opcode):
			n := opcodes.DupIndex(in.Opcode)
			if n > len(m.stack) {
				return nil, fmt.Errorf("interp: DUP%d stack underflow at pc %d", n, m.pc-1)
			}
			m.push(m.stack[len(m.stack)-n].Clone())
			continue
		case opcodes.IsSwap(in.Opcode):
			n := opcodes.SwapIndex(in.Opcode)
			if n >= len(m.stack) {
				return nil, fmt.Errorf("interp: SWAP%d stack underflow at pc %d", n, m.pc-1)
			}
			top := len(m.stack) - 1
			m.stack[top], m.stack[top-n] = m.stack[top-n], m.stack[top]
			continue
		}

		switch in.Opcode {
		case opcodes.POP:
			if _, err := m.pop(); err != nil {
				return nil, err
			}
		case opcodes.ADD, opcodes.SUB, opcodes.MUL, opcodes.DIV, opcodes.SDIV, opcodes.MOD, opcodes.SMOD,
			opcodes.EXP, opcodes.AND, opcodes.OR, opcodes.XOR, opcodes.BYTE, opcodes.SHL, opcodes.SHR, opcodes.SAR:
			if err := m.binary(in.Opcode); err != nil {
				return nil, err
			}
		case opcodes.LT, opcodes.GT, opcodes.SLT, opcodes.SGT, opcodes.EQ:
			if err := m.compare(in.Opcode); err != nil {
				return nil, err
			}
		case opcodes.ISZERO:
			a, err := m.pop()
			if err != nil {
				return nil, err
			}
			if a.IsZero() {
				m.push(uint256.NewInt(1))
			} else {
				m.push(uint256.NewInt(0))
			}
		case opcodes.NOT:
			a, err := m.pop()
			if err != nil {
				return nil, err
			}
			m.push(new(uint256.Int).Not(a))
		case opcodes.JUMP:
			target, err := m.pop()
			if err != nil {
				return nil, err
			}
			pc, err := m.resolveTag(target)
			if err != nil {
				return nil, err
			}
			m.pc = pc
		case opcodes.JUMPI:
			target, err := m.pop()
			if err != nil {
				return nil, err
			}
			cond, err := m.pop()
			if err != nil {
				return nil, err
			}
			if !cond.IsZero() {
				pc, err := m.resolveTag(target)
				if err != nil {
					return nil, err
				}
				m.pc = pc
			}
		case opcodes.JUMPDEST:
			// no-op marker; block tags already carry jump targets.
		case opcodes.MLOAD:
			off, err := m.pop()
			if err != nil {
				return nil, err
			}
			m.push(new(uint256.Int).SetBytes(m.readMemory(off, 32)))
		case opcodes.MSTORE:
			off, err := m.pop()
			if err != nil {
				return nil, err
			}
			val, err := m.pop()
			if err != nil {
				return nil, err
			}
			m.writeMemory(off, val.PaddedBytes(32))
		case opcodes.MSTORE8:
			off, err := m.pop()
			if err != nil {
				return nil, err
			}
			val, err := m.pop()
			if err != nil {
				return nil, err
			}
			m.writeMemory(off, []byte{byte(val.Uint64())})
		case opcodes.SLOAD:
			key, err := m.pop()
			if err != nil {
				return nil, err
			}
			if v, ok := m.storage[key.Bytes32()]; ok {
				m.push(v.Clone())
			} else {
				m.push(uint256.NewInt(0))
			}
		case opcodes.SSTORE:
			key, err := m.pop()
			if err != nil {
				return nil, err
			}
			val, err := m.pop()
			if err != nil {
				return nil, err
			}
			m.storage[key.Bytes32()] = val
		case opcodes.PC:
			m.push(uint256.NewInt(uint64(m.pc - 1)))
		case opcodes.MSIZE:
			m.push(uint256.NewInt(uint64(len(m.memory))))
		case opcodes.GAS:
			m.push(new(uint256.Int).SetAllOne())
		case opcodes.CALLVALUE, opcodes.CALLDATASIZE, opcodes.TIMESTAMP, opcodes.NUMBER,
			opcodes.CHAINID, opcodes.ADDRESS, opcodes.ORIGIN, opcodes.CALLER, opcodes.GASPRICE,
			opcodes.COINBASE, opcodes.PREVRANDAO, opcodes.GASLIMIT, opcodes.BASEFEE, opcodes.SELFBALANCE:
			m.push(uint256.NewInt(0))
		case opcodes.CALLDATALOAD:
			if _, err := m.pop(); err != nil {
				return nil, err
			}
			m.push(uint256.NewInt(0))
		case opcodes.CALLDATACOPY, opcodes.CODECOPY, opcodes.RETURNDATACOPY:
			if _, err := m.pop(); err != nil {
				return nil, err
			}
			if _, err := m.pop(); err != nil {
				return nil, err
			}
			if _, err := m.pop(); err != nil {
				return nil, err
			}
		case opcodes.LOG0, opcodes.LOG1, opcodes.LOG2, opcodes.LOG3, opcodes.LOG4:
			n := 2 + int(in.Opcode-opcodes.LOG0)
			for i := 0; i < n; i++ {
				if _, err := m.pop(); err != nil {
					return nil, err
				}
			}
		case opcodes.RETURN:
			off, err := m.pop()
			if err != nil {
				return nil, err
			}
			size, err := m.pop()
			if err != nil {
				return nil, err
			}
			return m.readMemory(off, int(size.Uint64())), nil
		case opcodes.REVERT:
			off, err := m.pop()
			if err != nil {
				return nil, err
			}
			size, err := m.pop()
			if err != nil {
				return nil, err
			}
			return nil, ErrReverted{Data: m.readMemory(off, int(size.Uint64()))}
		case opcodes.STOP:
			return nil, nil
		case opcodes.INVALID:
			return nil, ErrHalt{Reason: "INVALID"}
		case opcodes.KECCAK256:
			off, err := m.pop()
			if err != nil {
				return nil, err
			}
			size, err := m.pop()
			if err != nil {
				return nil, err
			}
			m.push(new(uint256.Int).SetBytes(keccak(m.readMemory(off, int(size.Uint64())))))
		default:
			return nil, ErrUnsupportedOpcode{Opcode: in.Opcode}
		}
	}
	return nil, nil
}

func (m *machine) resolveTag(target *uint256.Int) (int, error) {
	pc, ok := m.tagPC[target.Dec()]
	if !ok {
		return 0, fmt.Errorf("interp: jump to unresolved tag %s", target.Dec())
	}
	return pc, nil
}

func (m *machine) binary(op opcodes.Opcode) error {
	a, err := m.pop()
	if err != nil {
		return err
	}
	b, err := m.pop()
	if err != nil {
		return err
	}
	r := new(uint256.Int)
	switch op {
	case opcodes.ADD:
		r.Add(a, b)
	case opcodes.SUB:
		r.Sub(a, b)
	case opcodes.MUL:
		r.Mul(a, b)
	case opcodes.DIV:
		r.Div(a, b)
	case opcodes.SDIV:
		r.SDiv(a, b)
	case opcodes.MOD:
		r.Mod(a, b)
	case opcodes.SMOD:
		r.SMod(a, b)
	case opcodes.EXP:
		r.Exp(a, b)
	case opcodes.AND:
		r.And(a, b)
	case opcodes.OR:
		r.Or(a, b)
	case opcodes.XOR:
		r.Xor(a, b)
	case opcodes.BYTE:
		if i := a.Uint64(); i < 32 {
			bs := b.Bytes32()
			r.SetUint64(uint64(bs[i]))
		}
	case opcodes.SHL:
		r.Lsh(b, uint(a.Uint64()))
	case opcodes.SHR:
		r.Rsh(b, uint(a.Uint64()))
	case opcodes.SAR:
		r.SRsh(b, uint(a.Uint64()))
	}
	m.push(r)
	return nil
}

func (m *machine) compare(op opcodes.Opcode) error {
	a, err := m.pop()
	if err != nil {
		return err
	}
	b, err := m.pop()
	if err != nil {
		return err
	}
	var result bool
	switch op {
	case opcodes.LT:
		result = a.Lt(b)
	case opcodes.GT:
		result = a.Gt(b)
	case opcodes.SLT:
		result = a.Slt(b)
	case opcodes.SGT:
		result = a.Sgt(b)
	case opcodes.EQ:
		result = a.Eq(b)
	}
	if result {
		m.push(uint256.NewInt(1))
	} else {
		m.push(uint256.NewInt(0))
	}
	return nil
}

func (m *machine) readMemory(off *uint256.Int, size int) []byte {
	if size <= 0 {
		return nil
	}
	start := int(off.Uint64())
	end := start + size
	if end > len(m.memory) {
		grown := make([]byte, end)
		copy(grown, m.memory)
		m.memory = grown
	}
	out := make([]byte, size)
	copy(out, m.memory[start:end])
	return out
}

func (m *machine) writeMemory(off *uint256.Int, data []byte) {
	start := int(off.Uint64())
	end := start + len(data)
	if end > len(m.memory) {
		grown := make([]byte, end)
		copy(grown, m.memory)
		m.memory = grown
	}
	copy(m.memory[start:end], data)
}

func keccak(b []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return h.Sum(nil)
}

// pushValue turns a PUSH-family instruction's textual operand into a
// concrete stack value. Every real PUSH1..PUSH32/PUSH0 and PUSH_TAG
// operand is the decimal string of its value, the same convention
// specializer.executeOne relies on via bigtag.FromDecimal. PUSH_DATA
// and PUSH_LIB carry symbolic references this reference backend cannot
// resolve to bytes and so represents as zero, matching how Opaque
// elements fold into the specializer's symbolic stack.
func pushValue(in evmasm.Instruction) (*uint256.Int, error) {
	switch in.Opcode {
	case opcodes.PushData, opcodes.PushLib:
		return uint256.NewInt(0), nil
	default:
		if in.Operand == "" {
			return uint256.NewInt(0), nil
		}
		t, ok := new(big.Int).SetString(in.Operand, 10)
		if !ok {
			return nil, fmt.Errorf("interp: malformed push operand %q", in.Operand)
		}
		v, overflow := uint256.FromBig(t)
		if overflow {
			return nil, fmt.Errorf("interp: push operand %q overflows 256 bits", in.Operand)
		}
		return v, nil
	}
}
