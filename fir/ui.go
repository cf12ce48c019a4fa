// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fir

import (
	"fmt"
	"io"
	"strings"
)

// UIKind is the textual item-type tag carried by a JSON UI descriptor.
// The values are the authoritative set named in original_source's
// buildUserInterface: groups, a close marker, and the control widgets.
type UIKind string

const (
	UIHGroup    UIKind = "hgroup"
	UIVGroup    UIKind = "vgroup"
	UITGroup    UIKind = "tgroup"
	UIClose     UIKind = "close"
	UIVSlider   UIKind = "vslider"
	UIHSlider   UIKind = "hslider"
	UICheckbox  UIKind = "checkbox"
	UIHBargraph UIKind = "hbargraph"
	UIVBargraph UIKind = "vbargraph"
	UINEntry    UIKind = "nentry"
	UIButton    UIKind = "button"
)

// UIInstruction describes one node of a DSP's user interface tree: a
// group marker or a control widget bound to a compute-time offset.
type UIInstruction[T Sample] struct {
	Kind     UIKind
	Offset   int
	Label    string
	MetaKey  string
	MetaValue string
	Init     T
	Min      T
	Max      T
	Step     T
}

// Copy returns a shallow copy (UIInstruction has no nested references).
func (u *UIInstruction[T]) Copy() *UIInstruction[T] {
	if u == nil {
		return nil
	}
	cp := *u
	return &cp
}

// quoteField reproduces the original replaceChar1 dump convention:
// spaces become underscores, and the result is then double-quoted.
func quoteField(s string) string {
	return `"` + strings.ReplaceAll(s, " ", "_") + `"`
}

// Write serializes the UI instruction in the same diagnostic shape as
// BasicInstruction.Write, quoting string fields the way the original
// dump format does.
func (u *UIInstruction[T]) Write(w io.Writer, indent string) error {
	_, err := fmt.Fprintf(w, "%s%s offset %d label %s init %v min %v max %v step %v\n",
		indent, u.Kind, u.Offset, quoteField(u.Label), u.Init, u.Min, u.Max, u.Step)
	return err
}

// UIBlock is an ordered sequence of UI instructions, in declaration
// order: groups bracket the controls they contain via UIHGroup/UIVGroup
// /UITGroup ... UIClose pairs.
type UIBlock[T Sample] struct {
	Instructions []*UIInstruction[T]
}

func NewUIBlock[T Sample]() *UIBlock[T] { return &UIBlock[T]{} }

func (blk *UIBlock[T]) Push(instr *UIInstruction[T]) {
	blk.Instructions = append(blk.Instructions, instr)
}

func (blk *UIBlock[T]) Copy() *UIBlock[T] {
	if blk == nil {
		return nil
	}
	cp := &UIBlock[T]{Instructions: make([]*UIInstruction[T], len(blk.Instructions))}
	for i, instr := range blk.Instructions {
		cp.Instructions[i] = instr.Copy()
	}
	return cp
}

func (blk *UIBlock[T]) Write(w io.Writer, indent string) error {
	if blk == nil {
		return nil
	}
	if _, err := fmt.Fprintf(w, "%sui_size %d\n", indent, len(blk.Instructions)); err != nil {
		return err
	}
	for _, instr := range blk.Instructions {
		if err := instr.Write(w, indent); err != nil {
			return err
		}
	}
	return nil
}

// IsGroup reports whether kind opens a group that must be matched by a
// later UIClose.
func (k UIKind) IsGroup() bool {
	return k == UIHGroup || k == UIVGroup || k == UITGroup
}

// IsControl reports whether kind is a leaf control bound to a
// compute-time offset (as opposed to a group marker).
func (k UIKind) IsControl() bool {
	switch k {
	case UIVSlider, UIHSlider, UICheckbox, UIHBargraph, UIVBargraph, UINEntry, UIButton:
		return true
	default:
		return false
	}
}

// IsOutput reports whether kind reads a compute-time value to display
// rather than writing one to steer compute (a "produces" control, used
// by the discard/dry build to count inputs vs. outputs separately).
func (k UIKind) IsOutput() bool {
	return k == UIHBargraph || k == UIVBargraph
}
