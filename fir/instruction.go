// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fir

import (
	"fmt"
	"io"
)

// Sample constrains the real-stack operand width a bytecode block is
// built over. The transport and registry layers are deliberately not
// parameterized by it: only the bytecode tree itself carries a width.
type Sample interface {
	~float32 | ~float64
}

// BasicInstruction is one node of a FIR bytecode tree. Branch1 and
// Branch2 are non-nil only for the two control opcodes: If uses both
// (the then and else arms), Loop uses only Branch1.
type BasicInstruction[T Sample] struct {
	Opcode    Opcode
	IntValue  int
	RealValue T
	Offset1   int
	Offset2   int
	Branch1   *Block[T]
	Branch2   *Block[T]
}

// Copy returns a deep copy of the instruction, recursively copying its
// branches. Two instructions produced by Copy are independent trees:
// mutating one never affects the other.
func (b *BasicInstruction[T]) Copy() *BasicInstruction[T] {
	if b == nil {
		return nil
	}
	cp := &BasicInstruction[T]{
		Opcode:    b.Opcode,
		IntValue:  b.IntValue,
		RealValue: b.RealValue,
		Offset1:   b.Offset1,
		Offset2:   b.Offset2,
	}
	cp.Branch1 = b.Branch1.Copy()
	cp.Branch2 = b.Branch2.Copy()
	return cp
}

// Size reports the execution weight of the instruction: for a plain
// instruction this is 1; for If and Loop it is the max of the branch
// sizes (or 1 when there are no branches), matching the original
// interpreter's FIRBasicInstruction::size().
func (b *BasicInstruction[T]) Size() int {
	s1, s2 := 0, 0
	if b.Branch1 != nil {
		s1 = b.Branch1.Size()
	}
	if b.Branch2 != nil {
		s2 = b.Branch2.Size()
	}
	if s1 == 0 && s2 == 0 {
		return 1
	}
	if s1 > s2 {
		return s1
	}
	return s2
}

// Write serializes the instruction in a textual diagnostic form and
// recurses into its branches. It returns the first write error it
// encounters instead of panicking.
func (b *BasicInstruction[T]) Write(w io.Writer, indent string) error {
	desc, _ := Describe(b.Opcode)
	if _, err := fmt.Fprintf(w, "%sopcode %s int %d real %v offset1 %d offset2 %d\n",
		indent, desc.Name, b.IntValue, b.RealValue, b.Offset1, b.Offset2); err != nil {
		return err
	}
	if b.Branch1 != nil {
		if _, err := fmt.Fprintf(w, "%sbranch1\n", indent); err != nil {
			return err
		}
		if err := b.Branch1.Write(w, indent+"  "); err != nil {
			return err
		}
	}
	if b.Branch2 != nil {
		if _, err := fmt.Fprintf(w, "%sbranch2\n", indent); err != nil {
			return err
		}
		if err := b.Branch2.Write(w, indent+"  "); err != nil {
			return err
		}
	}
	return nil
}

// Block is an ordered sequence of instructions: the body of a DSP
// compute function, or of one arm of an If/Loop.
type Block[T Sample] struct {
	Instructions []*BasicInstruction[T]
}

// NewBlock returns an empty block ready to be pushed into.
func NewBlock[T Sample]() *Block[T] {
	return &Block[T]{}
}

// Push appends an instruction to the end of the block.
func (blk *Block[T]) Push(instr *BasicInstruction[T]) {
	blk.Instructions = append(blk.Instructions, instr)
}

// Copy returns a deep copy of the block. A nil block copies to nil, so
// Copy can be called unconditionally on an instruction's optional
// branches.
func (blk *Block[T]) Copy() *Block[T] {
	if blk == nil {
		return nil
	}
	cp := &Block[T]{Instructions: make([]*BasicInstruction[T], len(blk.Instructions))}
	for i, instr := range blk.Instructions {
		cp.Instructions[i] = instr.Copy()
	}
	return cp
}

// Size is the sum of the sizes of the block's instructions.
func (blk *Block[T]) Size() int {
	if blk == nil {
		return 0
	}
	total := 0
	for _, instr := range blk.Instructions {
		total += instr.Size()
	}
	return total
}

// Write serializes the whole block, one instruction per (recursive)
// line, prefixed with the instruction count.
func (blk *Block[T]) Write(w io.Writer, indent string) error {
	if blk == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "%sblock_size %d\n", indent, len(blk.Instructions)); err != nil {
		return err
	}
	for _, instr := range blk.Instructions {
		if err := instr.Write(w, indent); err != nil {
			return err
		}
	}
	return nil
}
