// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command fir-dump inspects a FIR bytecode block serialized as JSON:
// it prints the block in the teacher's text-dump form and, on request,
// runs the static stack-depth analyzer over it.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-faust/firremote/analyze"
	"github.com/go-faust/firremote/fir"
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: fir-dump [options] file1.json [file2.json [...]]

ex:
 $> fir-dump -a ./block.json

options:
`,
		)
		flag.PrintDefaults()
		os.Exit(1)
	}
}

var (
	flagVerbose = flag.Bool("v", false, "enable/disable verbose mode")
	flagWrite   = flag.Bool("w", false, "print the block in text-dump form")
	flagAnalyze = flag.Bool("a", false, "run the stack-depth analyzer and print its result")
)

func main() {
	log.SetPrefix("fir-dump: ")
	log.SetFlags(0)

	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
	}
	if !*flagWrite && !*flagAnalyze {
		flag.Usage()
		log.Printf("at least one of -w or -a must be given")
		os.Exit(1)
	}

	analyze.SetDebugMode(*flagVerbose)

	for i, fname := range flag.Args() {
		if i > 0 {
			fmt.Println()
		}
		process(fname)
	}
}

func process(fname string) {
	f, err := os.Open(fname)
	if err != nil {
		log.Fatalf("could not open %q: %v", fname, err)
	}
	defer f.Close()

	var doc jsonBlock
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		log.Fatalf("could not decode %q: %v", fname, err)
	}
	block, err := doc.toBlock()
	if err != nil {
		log.Fatalf("could not build block from %q: %v", fname, err)
	}

	fmt.Printf("%s: block_size=%d\n", fname, block.Size())

	if *flagWrite {
		if err := block.Write(os.Stdout, ""); err != nil {
			log.Fatalf("could not write block: %v", err)
		}
	}
	if *flagAnalyze {
		result, err := analyze.Analyze[float32](block)
		if err != nil {
			log.Fatalf("analysis rejected block: %v", err)
		}
		fmt.Printf("int_peak=%d real_peak=%d\n", result.IntPeak, result.RealPeak)
	}
}

// jsonBlock/jsonInstruction mirror the text-dump fields of
// fir.BasicInstruction closely enough to describe a block by hand
// without needing a binary encoder.
type jsonBlock struct {
	Instructions []jsonInstruction `json:"instructions"`
}

type jsonInstruction struct {
	Opcode    string     `json:"opcode"`
	IntValue  int        `json:"int,omitempty"`
	RealValue float32    `json:"real,omitempty"`
	Offset1   int        `json:"offset1,omitempty"`
	Offset2   int        `json:"offset2,omitempty"`
	Branch1   *jsonBlock `json:"branch1,omitempty"`
	Branch2   *jsonBlock `json:"branch2,omitempty"`
}

func (b jsonBlock) toBlock() (*fir.Block[float32], error) {
	out := fir.NewBlock[float32]()
	for _, ji := range b.Instructions {
		instr, err := ji.toInstruction()
		if err != nil {
			return nil, err
		}
		out.Push(instr)
	}
	return out, nil
}

func (ji jsonInstruction) toInstruction() (*fir.BasicInstruction[float32], error) {
	op, ok := fir.Lookup(ji.Opcode)
	if !ok {
		return nil, fmt.Errorf("unknown opcode %q", ji.Opcode)
	}
	instr := &fir.BasicInstruction[float32]{
		Opcode:    op,
		IntValue:  ji.IntValue,
		RealValue: ji.RealValue,
		Offset1:   ji.Offset1,
		Offset2:   ji.Offset2,
	}
	if ji.Branch1 != nil {
		b1, err := ji.Branch1.toBlock()
		if err != nil {
			return nil, err
		}
		instr.Branch1 = b1
	}
	if ji.Branch2 != nil {
		b2, err := ji.Branch2.toBlock()
		if err != nil {
			return nil, err
		}
		instr.Branch2 = b2
	}
	return instr, nil
}
