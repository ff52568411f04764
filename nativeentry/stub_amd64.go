// Copyright 2017 The go-interpreter Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build amd64 && !appengine

package nativeentry

import (
	"fmt"

	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
)

// nativeCode is the assembled machine code for one contract's dispatch
// stub, plus the executable-memory block it lives in.
type nativeCode struct {
	mem *execBlock
}

func (c nativeCode) available() bool { return c.mem != nil }

// dispatch runs the assembled stub, the way exec.VM's native backend
// invokes a compiled function body: an initially empty stack slice
// carries the result out, a one-element locals slice
// carries is_deploy_code, mirroring backend_amd64.go's GetLocal/stack-
// push calling convention (R10 = stack slice header, R11 = locals
// slice header).
func (c nativeCode) dispatch(isDeployCode bool) (bool, error) {
	if c.mem == nil {
		return isDeployCode, nil
	}
	var local uint64
	if isDeployCode {
		local = 1
	}
	locals := []uint64{local}
	stack := make([]uint64, 0, 1)

	jitcall(c.mem.ptr(), &stack, &locals)
	if len(stack) != 1 {
		return false, fmt.Errorf("native dispatch stub returned %d stack values, want 1", len(stack))
	}
	return stack[0] != 0, nil
}

// assembleDispatchStub emits the machine code for "push locals[0] onto
// the stack and return", the GetLocal case of backend_amd64.go's
// Build loop narrowed to the single local the entry trampoline needs.
// It is deliberately this small: a general per-opcode EVM JIT belongs
// to a real codegen backend, not the entry-dispatch glue.
func assembleDispatchStub() (nativeCode, error) {
	builder, err := asm.NewBuilder("amd64", 8)
	if err != nil {
		return nativeCode{}, err
	}

	emitLocalsLoad(builder, x86.REG_AX, 0)
	emitStackPush(builder, x86.REG_AX)

	ret := builder.NewProg()
	ret.As = obj.ARET
	builder.AddInstruction(ret)

	code := builder.Assemble()

	block, err := globalAllocator.AllocateExec(code)
	if err != nil {
		return nativeCode{}, err
	}
	return nativeCode{mem: block}, nil
}

// emitLocalsLoad loads locals[index] into reg, by the exact register
// convention documented in backend_amd64.go: R11 holds the locals
// slice header pointer, R12/R13 are scratch.
func emitLocalsLoad(builder *asm.Builder, reg int16, index uint64) {
	prog := builder.NewProg()
	prog.As = x86.AMOVQ
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = x86.REG_R13
	prog.From.Type = obj.TYPE_CONST
	prog.From.Offset = int64(index)
	builder.AddInstruction(prog)

	prog = builder.NewProg()
	prog.As = x86.AMOVQ
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = x86.REG_R12
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = x86.REG_R11
	builder.AddInstruction(prog)

	prog = builder.NewProg()
	prog.As = x86.ALEAQ
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = x86.REG_R12
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = x86.REG_R12
	prog.From.Scale = 8
	prog.From.Index = x86.REG_R13
	builder.AddInstruction(prog)

	prog = builder.NewProg()
	prog.As = x86.AMOVQ
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = x86.REG_R12
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = reg
	builder.AddInstruction(prog)
}

// emitStackPush appends reg to the stack slice, by the same convention:
// R10 holds the stack slice header pointer.
func emitStackPush(builder *asm.Builder, reg int16) {
	prog := builder.NewProg()
	prog.As = x86.AMOVQ
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = x86.REG_R12
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = x86.REG_R10
	builder.AddInstruction(prog)

	prog = builder.NewProg()
	prog.As = x86.AMOVQ
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = x86.REG_R13
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = x86.REG_R10
	prog.From.Offset = 8
	builder.AddInstruction(prog)

	prog = builder.NewProg()
	prog.As = x86.ALEAQ
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = x86.REG_R12
	prog.From.Type = obj.TYPE_MEM
	prog.From.Reg = x86.REG_R12
	prog.From.Scale = 8
	prog.From.Index = x86.REG_R13
	builder.AddInstruction(prog)

	prog = builder.NewProg()
	prog.As = x86.AMOVQ
	prog.To.Type = obj.TYPE_MEM
	prog.To.Reg = x86.REG_R12
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = reg
	builder.AddInstruction(prog)

	prog = builder.NewProg()
	prog.As = x86.AINCQ
	prog.To.Type = obj.TYPE_REG
	prog.To.Reg = x86.REG_R13
	builder.AddInstruction(prog)

	prog = builder.NewProg()
	prog.As = x86.AMOVQ
	prog.From.Type = obj.TYPE_REG
	prog.From.Reg = x86.REG_R13
	prog.To.Type = obj.TYPE_MEM
	prog.To.Reg = x86.REG_R10
	prog.To.Offset = 8
	builder.AddInstruction(prog)
}
