// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ui drives a fir.UIBlock against a Builder (component D):
// this is the Go analog of the original remote_dsp_aux::buildUserInterface,
// which walks the descriptor tree once to open/close groups and bind
// each control to its compute-time offset.
package ui

import "github.com/go-faust/firremote/fir"

// Builder receives callbacks as a UIBlock is walked. Group methods
// bracket the controls they contain; control methods bind a widget to
// the compute-time memory offset the instance must read (for an input
// control) or write (for an output control, i.e. a bargraph) every
// cycle.
type Builder[T fir.Sample] interface {
	OpenGroup(kind fir.UIKind, label string)
	CloseGroup()
	AddInputControl(kind fir.UIKind, label string, offset int, init, min, max, step T)
	AddOutputControl(kind fir.UIKind, label string, offset int)
}

// DiscardBuilder implements Builder with no side effects beyond
// counting the controls it was shown. It is used for the dry run that
// counts input/output controls before the real UI is built, matching
// original_source's ControlUI dummy_ui.
type DiscardBuilder[T fir.Sample] struct {
	NumInputs  int
	NumOutputs int
}

func (d *DiscardBuilder[T]) OpenGroup(fir.UIKind, string) {}
func (d *DiscardBuilder[T]) CloseGroup()                  {}

func (d *DiscardBuilder[T]) AddInputControl(fir.UIKind, string, int, T, T, T, T) {
	d.NumInputs++
}

func (d *DiscardBuilder[T]) AddOutputControl(fir.UIKind, string, int) {
	d.NumOutputs++
}

// Drive walks block once, in order, invoking the matching Builder
// method for each instruction.
func Drive[T fir.Sample](block *fir.UIBlock[T], b Builder[T]) {
	if block == nil {
		return
	}
	for _, instr := range block.Instructions {
		switch {
		case instr.Kind.IsGroup():
			b.OpenGroup(instr.Kind, instr.Label)
		case instr.Kind == fir.UIClose:
			b.CloseGroup()
		case instr.Kind.IsOutput():
			b.AddOutputControl(instr.Kind, instr.Label, instr.Offset)
		case instr.Kind.IsControl():
			b.AddInputControl(instr.Kind, instr.Label, instr.Offset, instr.Init, instr.Min, instr.Max, instr.Step)
		}
	}
}
