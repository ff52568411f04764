// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package specializer implements the block specializer, the
// heart of the translation pipeline: a worklist traversal that clones
// each decomposed block once per distinct incoming stack hash, resolving
// jump targets against the symbolically simulated stack as it goes.
package specializer

import (
	"fmt"

	"github.com/ethir-go/ethirc/block"
	"github.com/ethir-go/ethirc/evmasm"
	"github.com/ethir-go/ethirc/evmasm/opcodes"
	"github.com/ethir-go/ethirc/internal/bigtag"
	"github.com/ethir-go/ethirc/stack"
)

// Error is a fault recorded against a specific block instance. Fatal
// errors reject the whole artifact; non-fatal ones are
// diagnostic only, currently limited to unresolved indirect jumps that
// are instead recorded into the block's ExtraHashes.
type Error struct {
	Key      block.Key
	Instance int
	Err      error
	Fatal    bool
}

func (e Error) Error() string {
	return fmt.Sprintf("specializer: block %s#%d: %v", e.Key, e.Instance, e.Err)
}

// ErrStackUnderflow is wrapped into a fatal Error when an instruction's
// declared arity exceeds the available stack depth.
var ErrStackUnderflow = stack.ErrUnderflow

// ErrUnsupportedOpcode is wrapped into a fatal Error for the hard list
// of opcodes the backend cannot lower (opcodes.Unsupported).
type ErrUnsupportedOpcode struct {
	Opcode opcodes.Opcode
}

func (e ErrUnsupportedOpcode) Error() string {
	return fmt.Sprintf("unsupported opcode %s", opcodes.Name(e.Opcode))
}

// ErrDanglingSuccessor is wrapped into a fatal Error when a resolved jump
// target does not exist in the decomposed block map at all.
type ErrDanglingSuccessor struct {
	Target block.Key
}

func (e ErrDanglingSuccessor) Error() string {
	return fmt.Sprintf("jump targets nonexistent block %s", e.Target)
}

// Input is the material the specializer traverses: every decomposed
// block, keyed across both segments (a single map lets Deploy→Runtime
// crossing jumps resolve directly against Runtime blocks without any
// special-cased lookup), the textual successor of each block (for
// fall-through edges), the entry key, and the assembly's
// recursive-function annotations.
type Input struct {
	Blocks   map[block.Key]*block.Block
	Next     map[block.Key]block.Key // absent entry means "no textual successor"
	Entry    block.Key
	Metadata evmasm.ExtraMetadata
}

// Result is the flattened, deterministically ordered output of
// specialization: every block instance that was reached, plus any
// errors recorded against them.
type Result struct {
	Order  []InstanceKey
	Blocks map[InstanceKey]*block.Block
	Errors []Error
}

// InstanceKey identifies one specialized block, a BlockKey plus the
// clone number assigned the first time that (key, stack hash) pair was
// scheduled.
type InstanceKey struct {
	Key      block.Key
	Instance int
}

// OK reports whether no fatal error was recorded against any block.
func (r *Result) OK() bool {
	for _, e := range r.Errors {
		if e.Fatal {
			return false
		}
	}
	return true
}

type visitedElement struct {
	key  block.Key
	hash [32]byte
}

type task struct {
	key  block.Key
	st   *stack.Stack
	from *InstanceKey // predecessor edge to attach once this task's instance is known
}

// Specialize runs the worklist traversal, seeded
// with (in.Entry, empty stack).
func Specialize(in Input) *Result {
	res := &Result{Blocks: make(map[InstanceKey]*block.Block)}

	visited := make(map[visitedElement]int) // -> instance
	recursiveInstance := make(map[block.Key]int)
	instanceCount := make(map[block.Key]int)

	worklist := []task{{key: in.Entry, st: &stack.Stack{}}}

	attach := func(target InstanceKey, from *InstanceKey) {
		if from == nil {
			return
		}
		b := res.Blocks[target]
		b.Predecessors = append(b.Predecessors, block.PredecessorEdge{Key: from.Key, Instance: from.Instance})
	}

	recFn := func(key block.Key) (evmasm.RecursiveFunction, bool) {
		return in.Metadata.RecursiveFunctionFor(key.Segment, key.Tag)
	}

	for len(worklist) > 0 {
		t := worklist[0]
		worklist = worklist[1:]

		if _, recursive := recFn(t.key); recursive {
			if inst, ok := recursiveInstance[t.key]; ok {
				attach(InstanceKey{t.key, inst}, t.from)
				continue
			}
		}

		h := t.st.Hash()
		ve := visitedElement{key: t.key, hash: h}
		if inst, ok := visited[ve]; ok {
			attach(InstanceKey{t.key, inst}, t.from)
			continue
		}

		tmpl, ok := in.Blocks[t.key]
		if !ok {
			if t.from != nil {
				res.Errors = append(res.Errors, Error{
					Key: t.from.Key, Instance: t.from.Instance,
					Err: ErrDanglingSuccessor{Target: t.key}, Fatal: true,
				})
			}
			continue
		}

		instance := instanceCount[t.key]
		instanceCount[t.key]++
		visited[ve] = instance
		if _, recursive := recFn(t.key); recursive {
			recursiveInstance[t.key] = instance
		}

		logger.Printf("specializing %s instance %d from stack hash %x", t.key, instance, h)

		b := tmpl.Clone()
		b.Instance = &instance
		b.InitialStack = t.st.Clone()
		b.Stack = t.st.Clone()

		ik := InstanceKey{t.key, instance}
		res.Blocks[ik] = b
		res.Order = append(res.Order, ik)
		attach(ik, t.from)

		succs, errs := execute(b, &ik, in.Next)
		res.Errors = append(res.Errors, errs...)
		for _, s := range succs {
			s.from = &ik
			worklist = append(worklist, s)
		}
	}

	return res
}

// execute symbolically runs b's elements against b.Stack, mutating it in
// place, and returns the successor tasks implied by the terminator. next gives the textual successor of b.Key, if any,
// for the fall-through case.
func execute(b *block.Block, self *InstanceKey, next map[block.Key]block.Key) ([]task, []Error) {
	var errs []Error
	fatal := func(err error) {
		errs = append(errs, Error{Key: self.Key, Instance: self.Instance, Err: err, Fatal: true})
	}

	fallThrough := func() []task {
		n, ok := next[b.Key]
		if !ok {
			return nil
		}
		return []task{{key: n, st: b.Stack.Clone()}}
	}

	elems := b.Elements
	for i, in := range elems {
		last := i == len(elems)-1
		if last && (in.Opcode == opcodes.JUMP || in.Opcode == opcodes.JUMPI) {
			break // handled below, against the post-loop stack
		}
		if opcodes.Unsupported[in.Opcode] {
			fatal(ErrUnsupportedOpcode{Opcode: in.Opcode})
			continue
		}
		if err := executeOne(b.Stack, in); err != nil {
			fatal(err)
		}
	}

	if len(elems) == 0 {
		return fallThrough(), errs
	}

	switch last := elems[len(elems)-1]; last.Opcode {
	case opcodes.RETURN, opcodes.REVERT, opcodes.STOP, opcodes.INVALID:
		return nil, errs

	case opcodes.JUMP:
		target, extra, err := resolveTarget(b.Stack, b.Key.Segment)
		if err != nil {
			if err == stack.ErrExpectedTag {
				b.ExtraHashes = append(b.ExtraHashes, extra)
				return nil, errs
			}
			fatal(err)
			return nil, errs
		}
		return []task{{key: target, st: b.Stack.Clone()}}, errs

	case opcodes.JUMPI:
		target, extra, err := resolveTarget(b.Stack, b.Key.Segment)
		if err != nil {
			if err == stack.ErrExpectedTag {
				b.ExtraHashes = append(b.ExtraHashes, extra)
				return nil, errs
			}
			fatal(err)
			return nil, errs
		}
		if err := b.Stack.PopN(1); err != nil { // the condition
			fatal(err)
			return nil, errs
		}
		tasks := []task{{key: target, st: b.Stack.Clone()}}
		return append(tasks, fallThrough()...), errs

	default:
		return fallThrough(), errs
	}
}

func executeOne(s *stack.Stack, in evmasm.Instruction) error {
	switch {
	case in.Opcode == opcodes.PushTag:
		t, err := in.Tag()
		if err != nil {
			return err
		}
		s.Push(stack.NewTag(t))
		return nil
	case in.Opcode == opcodes.PushData:
		s.Push(stack.NewData(in.Operand))
		return nil
	case in.Opcode == opcodes.PushLib:
		s.Push(stack.NewPath(in.Operand))
		return nil
	case opcodes.IsPush(in.Opcode):
		v, err := bigtag.FromDecimal(in.Operand)
		if err != nil {
			return err
		}
		s.Push(stack.NewConstant(v))
		return nil
	case in.Opcode == opcodes.POP:
		_, err := s.Pop()
		return err
	case opcodes.IsDup(in.Opcode):
		return s.Dup(opcodes.DupIndex(in.Opcode))
	case opcodes.IsSwap(in.Opcode):
		return s.Swap(opcodes.SwapIndex(in.Opcode))
	default:
		info, ok := opcodes.Lookup(in.Opcode)
		if !ok {
			return nil // unknown byte: treated as a no-op, over-conservative
		}
		if err := s.PopN(info.Pops); err != nil {
			return err
		}
		for i := 0; i < info.Pushes; i++ {
			s.Push(stack.Opaque)
		}
		return nil
	}
}

// resolveTarget pops the jump-target tag off s and computes the
// successor BlockKey, applying the Deploy→Runtime crossing rule of spec
// §3: a tag encountered in the deploy segment that exceeds 2^32-1 names
// a runtime-segment JUMPDEST instead.
func resolveTarget(s *stack.Stack, segment evmasm.Segment) (block.Key, [32]byte, error) {
	top, err := s.PopTag()
	if err != nil {
		var extra [32]byte
		if err == stack.ErrExpectedTag {
			extra = s.Hash()
		}
		return block.Key{}, extra, err
	}

	tag := top.Tag
	target := segment
	if segment == evmasm.Deploy && tag.IsRuntimeSegmentTag() {
		target = evmasm.Runtime
		tag = tag.RuntimeTag()
	}
	return block.Key{Segment: target, Tag: tag}, [32]byte{}, nil
}
