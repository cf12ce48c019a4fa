// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analyze

import "github.com/go-faust/firremote/fir"

// Result holds the peak int- and real-stack depths a block can reach.
type Result struct {
	IntPeak  int
	RealPeak int
}

// Analyze runs the single-pass stack-depth analysis over block and
// returns the peak (int, real) depths it reaches, or the first
// ErrBytecodeInvalid-wrapping error encountered.
func Analyze[T fir.Sample](block *fir.Block[T]) (Result, error) {
	intPeak, realPeak, err := peakOf(block)
	if err != nil {
		return Result{}, err
	}
	return Result{IntPeak: intPeak, RealPeak: realPeak}, nil
}

// peakOf walks block from a (0, 0) starting depth, applying each
// instruction's stack effect in turn, and returns the peak depths
// reached along the way.
func peakOf[T fir.Sample](block *fir.Block[T]) (intPeak, realPeak int, err error) {
	if block == nil {
		return 0, 0, nil
	}
	intIdx, realIdx := 0, 0
	for _, instr := range block.Instructions {
		if err := apply(instr, &intIdx, &realIdx); err != nil {
			return 0, 0, err
		}
		if intIdx < 0 || realIdx < 0 {
			return 0, 0, &NegativeDepthError{Opcode: instr.Opcode, IntDepth: intIdx, RealDepth: realIdx}
		}
		logger.Printf("op %s: int=%d real=%d", instr.Opcode, intIdx, realIdx)
		if intIdx > intPeak {
			intPeak = intIdx
		}
		if realIdx > realPeak {
			realPeak = realIdx
		}
	}
	logger.Printf("block done: intPeak=%d realPeak=%d", intPeak, realPeak)
	return intPeak, realPeak, nil
}

// apply mutates the running (intIdx, realIdx) depths by the effect of
// one instruction. If and Loop recurse into their branches; every other
// opcode looks up a fixed per-opcode delta.
func apply[T fir.Sample](instr *fir.BasicInstruction[T], intIdx, realIdx *int) error {
	switch instr.Opcode {
	case fir.OpIf:
		*intIdx-- // consume the predicate
		thenInt, thenReal, err := peakOf(instr.Branch1)
		if err != nil {
			return err
		}
		elseInt, elseReal, err := peakOf(instr.Branch2)
		if err != nil {
			return err
		}
		if thenInt != elseInt || thenReal != elseReal {
			return &BranchImbalanceError{ThenInt: thenInt, ThenReal: thenReal, ElseInt: elseInt, ElseReal: elseReal}
		}
		logger.Printf("if: then=(%d,%d) else=(%d,%d)", thenInt, thenReal, elseInt, elseReal)
		*intIdx += max(thenInt, elseInt)
		*realIdx += max(thenReal, elseReal)
		return nil

	case fir.OpLoop:
		// A Loop body must net to zero stack change across one
		// iteration; its peak is measured relative to the depth at
		// loop entry and added to the running depth, matching the
		// original analyzer's treatment of Loop as "reuse the outer
		// indexes directly".
		peakInt, peakReal, err := peakOf(instr.Branch1)
		if err != nil {
			return err
		}
		logger.Printf("loop body peak: int=%d real=%d", peakInt, peakReal)
		*intIdx += peakInt
		*realIdx += peakReal
		return nil
	}

	di, dr, err := stackDelta(instr.Opcode)
	if err != nil {
		return err
	}
	*intIdx += di
	*realIdx += dr
	return nil
}

// stackDelta returns the net (int, real) stack effect of applying a
// single non-control opcode once.
func stackDelta(op fir.Opcode) (int, int, error) {
	switch op {
	case fir.OpIntValue, fir.OpLoadInt:
		return 1, 0, nil
	case fir.OpStoreInt:
		return -1, 0, nil
	case fir.OpLoadIndexedInt:
		return 0, 0, nil
	case fir.OpStoreIndexedInt:
		return -2, 0, nil
	case fir.OpRealValue, fir.OpLoadReal:
		return 0, 1, nil
	case fir.OpStoreReal:
		return 0, -1, nil
	case fir.OpLoadIndexedReal:
		return -1, 1, nil
	case fir.OpStoreIndexedReal:
		return -1, -1, nil
	case fir.OpLoadInput:
		// Addressed by the instruction's own Offset1 field (the input
		// channel index), not by a value popped from the int stack;
		// see DESIGN.md for why this departs from the informal prose
		// description of LoadInput.
		return 0, 1, nil
	case fir.OpStoreOutput:
		return 0, -1, nil
	case fir.OpCastInt:
		return 1, -1, nil
	case fir.OpCastReal:
		return -1, 1, nil
	case fir.OpCastIntHeap:
		return 1, 0, nil
	case fir.OpCastRealHeap:
		return 0, 1, nil
	}

	desc, ok := fir.Describe(op)
	if !ok {
		return 0, 0, &UnknownOpcodeError{Opcode: op}
	}
	return familyDelta(desc)
}

func familyDelta(desc fir.Op) (int, int, error) {
	switch desc.Kind {
	case fir.KindAtan2f, fir.KindFmodf, fir.KindPowf, fir.KindMax, fir.KindMin:
		return 0, mathIntrinsicDelta(desc.Addressing), nil
	}
	if desc.Domain == fir.DomainInt {
		return intBinaryDelta(desc.Addressing), 0, nil
	}
	return realBinaryDelta(desc.Kind, desc.Addressing)
}

// mathIntrinsicDelta returns the real-stack delta of a math intrinsic
// (Atan2f/Fmodf/Powf/Max/Min, in either domain): these always move the
// real stack, never the int stack, per the original analyzer.
func mathIntrinsicDelta(addr fir.Addressing) int {
	switch addr {
	case fir.AddrStack:
		return -1
	case fir.AddrHeap, fir.AddrDirect:
		return 1
	default: // AddrDirectInvert
		return 0
	}
}

func intBinaryDelta(addr fir.Addressing) int {
	if addr == fir.AddrStack {
		return -1
	}
	return 1
}

func isComparison(k fir.Kind) bool {
	switch k {
	case fir.KindGT, fir.KindLT, fir.KindGE, fir.KindLE, fir.KindEQ, fir.KindNE:
		return true
	default:
		return false
	}
}

func realBinaryDelta(kind fir.Kind, addr fir.Addressing) (int, int, error) {
	if isComparison(kind) {
		if addr == fir.AddrStack {
			return 1, -2, nil
		}
		return 1, 0, nil
	}
	if addr == fir.AddrStack {
		return 0, -1, nil
	}
	return 0, 1, nil
}
