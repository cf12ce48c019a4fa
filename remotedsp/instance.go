// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package remotedsp

import (
	"context"
	"net/url"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/go-faust/firremote/transport"
)

// ErrorCallback is invoked whenever a Compute cycle cannot reach the
// server. Its return value decides what happens next: a zero return
// tells the instance to keep running (every subsequent cycle still
// zero-fills its outputs until the server answers again), while a
// non-zero return latches the instance off, matching the original
// remote_dsp_aux contract where the client-supplied error handler
// chooses whether a transport fault is fatal. A nil callback always
// latches off, preserving the conservative default for callers that
// don't care to decide.
type ErrorCallback func(message string) int

// audioStreamer is the subset of *transport.AudioStream that Compute
// needs. It exists so tests can inject a fake slave without opening a
// real websocket connection.
type audioStreamer interface {
	SendSlice(audio [][]float32, control []byte) error
	RecvSlice(audio [][]float32, control []byte) error
	Close() error
}

// Instance is a live audio session bound to a Factory: it owns the
// streaming connection and the pre-sized audio/control buffers its
// Compute callback touches every cycle.
type Instance struct {
	factory    *Factory
	reg        *Registry
	key        string
	bufferSize int
	sampleRate int

	stream   audioStreamer
	running  atomic.Bool
	sendBufs [][]float32
	recvBufs [][]float32
	tailIn   [][]float32
	tailOut  [][]float32

	controlOut []byte
	controlIn  []byte

	errCallback ErrorCallback
}

// NewInstance registers a new instance key against factory (so the
// registry keeps it alive) but does not yet open the audio stream —
// that happens in Start.
func NewInstance(factory *Factory, reg *Registry, sampleRate, bufferSize int, errCallback ErrorCallback) (*Instance, error) {
	key := uuid.NewString()
	if err := reg.AddInstance(factory.Hash, key); err != nil {
		return nil, err
	}
	return &Instance{
		factory:     factory,
		reg:         reg,
		key:         key,
		bufferSize:  bufferSize,
		sampleRate:  sampleRate,
		controlOut:  make([]byte, maxControlBytes),
		controlIn:   make([]byte, maxControlBytes),
		errCallback: errCallback,
	}, nil
}

// maxControlBytes bounds the packed control-channel payload per cycle.
const maxControlBytes = 8192

// Key returns the instance's unique identifier.
func (in *Instance) Key() string { return in.key }

// Start tells the server to begin streaming audio for this instance
// (POST /CreateInstance then /StartAudio) and opens the data-plane
// connection.
func (in *Instance) Start(ctx context.Context) error {
	form := url.Values{
		"shaKey":     {in.factory.Hash},
		"instanceKey": {in.key},
		"sampleRate": {strconv.Itoa(in.sampleRate)},
		"bufferSize": {strconv.Itoa(in.bufferSize)},
	}
	if body, status, err := in.factory.client.Post(ctx, "/CreateInstance", form); err != nil {
		return err
	} else if status != 200 {
		return newCompilationError(body)
	}

	if body, status, err := in.factory.client.Post(ctx, "/StartAudio", url.Values{"instanceKey": {in.key}}); err != nil {
		return err
	} else if status != 200 {
		return newCompilationError(body)
	}

	addr := "ws://" + in.factory.Server + "/audio/" + in.key
	stream, err := transport.OpenAudioMaster(ctx, addr, in.bufferSize, in.sampleRate, false)
	if err != nil {
		return err
	}
	in.stream = stream
	in.allocateScratch()
	in.running.Store(true)
	return nil
}

// allocateScratch sizes every buffer Compute's hot path touches, once,
// so Compute itself never allocates.
func (in *Instance) allocateScratch() {
	in.sendBufs = make([][]float32, in.factory.Descriptor.NumInputs)
	in.recvBufs = make([][]float32, in.factory.Descriptor.NumOutputs)
	in.tailIn = make([][]float32, in.factory.Descriptor.NumInputs)
	for i := range in.tailIn {
		in.tailIn[i] = make([]float32, in.bufferSize)
	}
	in.tailOut = make([][]float32, in.factory.Descriptor.NumOutputs)
	for i := range in.tailOut {
		in.tailOut[i] = make([]float32, in.bufferSize)
	}
}

// bindStreamForTest wires a fake streamer directly, bypassing the
// websocket dial in Start, and pre-sizes Compute's scratch buffers.
// Exercised only from tests in this package.
func (in *Instance) bindStreamForTest(s audioStreamer) {
	in.stream = s
	in.allocateScratch()
	in.running.Store(true)
}

// Stop halts the audio stream and tells the server to stop sending it.
func (in *Instance) Stop(ctx context.Context) error {
	in.running.Store(false)
	if in.stream != nil {
		in.stream.Close()
	}
	_, _, err := in.factory.client.Post(ctx, "/StopAudio", url.Values{"instanceKey": {in.key}})
	return err
}

// Compute runs count frames through the remote DSP: inputs/outputs are
// pre-sized [][]float32 of in.bufferSize-sized chunks. Per the original
// remote_dsp_aux::compute, it processes full fBufferSize-sized cycles
// first, then a single zero-padded tail cycle for the remainder. It
// never allocates, locks, logs or makes an HTTP call — every failure
// just zero-fills the remaining output and reports itself via
// errCallback, which decides whether the instance latches off or keeps
// retrying on the next cycle.
func (in *Instance) Compute(count int, inputs, outputs [][]float32) {
	if !in.running.Load() {
		zeroFill(outputs)
		return
	}

	numCycles := count / in.bufferSize
	lastCycle := count % in.bufferSize

	offset := 0
	for c := 0; c < numCycles; c++ {
		if !in.computeFullCycle(inputs, outputs, offset) {
			return
		}
		offset += in.bufferSize
	}
	if lastCycle > 0 {
		in.computeTailCycle(inputs, outputs, offset, lastCycle)
	}
}

// computeFullCycle runs one exactly-bufferSize-sized cycle starting at
// offset, slicing directly into the caller's buffers without copying.
func (in *Instance) computeFullCycle(inputs, outputs [][]float32, offset int) bool {
	for i, ch := range inputs {
		in.sendBufs[i] = ch[offset : offset+in.bufferSize]
	}
	if err := in.stream.SendSlice(in.sendBufs, in.controlOut); err != nil {
		in.fail(err, outputs, offset)
		return false
	}

	for i, ch := range outputs {
		in.recvBufs[i] = ch[offset : offset+in.bufferSize]
	}
	if err := in.stream.RecvSlice(in.recvBufs, in.controlIn); err != nil {
		in.fail(err, outputs, offset)
		return false
	}
	return true
}

// computeTailCycle runs the final, shorter-than-bufferSize cycle: it
// copies n frames into a pre-sized, zero-padded scratch buffer, runs
// one full cycle, then copies only the first n received frames back
// out, matching remote_dsp_aux::compute's tail-cycle handling.
func (in *Instance) computeTailCycle(inputs, outputs [][]float32, offset, n int) bool {
	for i, ch := range inputs {
		copy(in.tailIn[i], ch[offset:offset+n])
		for j := n; j < in.bufferSize; j++ {
			in.tailIn[i][j] = 0
		}
		in.sendBufs[i] = in.tailIn[i]
	}
	if err := in.stream.SendSlice(in.sendBufs, in.controlOut); err != nil {
		in.fail(err, outputs, offset)
		return false
	}

	for i := range outputs {
		in.recvBufs[i] = in.tailOut[i]
	}
	if err := in.stream.RecvSlice(in.recvBufs, in.controlIn); err != nil {
		in.fail(err, outputs, offset)
		return false
	}
	for i, ch := range outputs {
		copy(ch[offset:offset+n], in.tailOut[i][:n])
	}
	return true
}

func (in *Instance) fail(err error, outputs [][]float32, fromOffset int) {
	for _, ch := range outputs {
		for i := fromOffset; i < len(ch); i++ {
			ch[i] = 0
		}
	}
	if in.errCallback == nil || in.errCallback(err.Error()) != 0 {
		in.running.Store(false)
	}
}

func zeroFill(outputs [][]float32) {
	for _, ch := range outputs {
		for i := range ch {
			ch[i] = 0
		}
	}
}

// Destroy releases the instance's hold on its factory. This must be
// called after Stop; it does not itself stop the stream.
func (in *Instance) Destroy(ctx context.Context) error {
	in.reg.RemoveInstance(in.factory.Hash, in.key)
	_, err := in.reg.Release(in.factory.Hash, func(f *Factory) {
		f.Destroy(ctx)
	})
	return err
}
