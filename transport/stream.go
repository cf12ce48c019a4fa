// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// ErrTransportNotStarted is returned by SendSlice/RecvSlice when called
// on a stream that has not completed OpenAudioMaster, or that has
// already been closed.
var ErrTransportNotStarted = errors.New("transport: audio stream not started")

// ErrTransportWrite and ErrTransportRead are the sentinels a failed
// SendSlice/RecvSlice wraps.
var (
	ErrTransportWrite = errors.New("transport: audio slice write failed")
	ErrTransportRead  = errors.New("transport: audio slice read failed")
)

// maxSliceFloats bounds a single slice's channel width the way the
// original NetJack transport bounds its packet size.
const maxSliceFloats = 8192

// handshake is sent once, right after the websocket upgrade, to agree
// on the cadence the master and slave will run at. latency is the
// network cycle count the slave should buffer before it starts
// returning audio, mirroring the original jack_master_t's latency
// field (always 5 in the original client).
type handshake struct {
	BufferSize   int  `json:"bufferSize"`
	SampleRate   int  `json:"sampleRate"`
	PartialCycle bool `json:"partialCycle"`
	Latency      int  `json:"latency"`
}

const defaultLatency = 5

// AudioStream is the fixed-cadence data-plane connection to a single
// remote instance: each cycle, the caller sends one slice of input
// audio (plus a packed control channel) and receives back one slice of
// output audio (plus its own packed control channel).
type AudioStream struct {
	conn       *websocket.Conn
	bufferSize int
	started    bool
	closed     bool

	// sendBuf is a scratch buffer reused by encodeSlice across calls so
	// the audio thread's SendSlice never allocates. It is grown on the
	// first call that needs more room and kept at that size afterward,
	// since a given instance always sends the same channel count and
	// control-payload length every cycle.
	sendBuf []byte
}

// OpenAudioMaster dials addr (a ws:// or wss:// URL) and performs the
// handshake, returning a stream ready for SendSlice/RecvSlice.
func OpenAudioMaster(ctx context.Context, addr string, bufferSize, sampleRate int, partialCycle bool) (*AudioStream, error) {
	if bufferSize <= 0 || bufferSize > maxSliceFloats {
		return nil, fmt.Errorf("transport: invalid buffer size %d", bufferSize)
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, errors.Wrap(ErrCurl, err.Error())
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(ErrCurl, err.Error())
	}

	hs := handshake{BufferSize: bufferSize, SampleRate: sampleRate, PartialCycle: partialCycle, Latency: defaultLatency}
	if err := conn.WriteJSON(hs); err != nil {
		conn.Close()
		return nil, errors.Wrap(ErrCurl, err.Error())
	}

	return &AudioStream{conn: conn, bufferSize: bufferSize, started: true}, nil
}

// SendSlice writes one cycle's worth of input audio (numChannels slices
// of exactly s.bufferSize floats each) plus a packed control-channel
// payload.
func (s *AudioStream) SendSlice(audio [][]float32, control []byte) error {
	if s == nil || !s.started || s.closed {
		return ErrTransportNotStarted
	}
	buf := s.encodeSlice(audio, control)
	if err := s.conn.WriteMessage(websocket.BinaryMessage, buf); err != nil {
		return errors.Wrap(ErrTransportWrite, err.Error())
	}
	return nil
}

// RecvSlice reads back one cycle's worth of output audio into the
// caller-provided, pre-sized audio buffers, plus the control-channel
// payload into control. audio and control must be sized exactly as
// they were for the matching SendSlice.
func (s *AudioStream) RecvSlice(audio [][]float32, control []byte) error {
	if s == nil || !s.started || s.closed {
		return ErrTransportNotStarted
	}
	kind, buf, err := s.conn.ReadMessage()
	if err != nil {
		return errors.Wrap(ErrTransportRead, err.Error())
	}
	if kind != websocket.BinaryMessage {
		return errors.Wrap(ErrTransportRead, "unexpected non-binary frame")
	}
	if err := decodeSlice(buf, audio, control, s.bufferSize); err != nil {
		return errors.Wrap(ErrTransportRead, err.Error())
	}
	return nil
}

// Close tears down the underlying connection. It is safe to call more
// than once.
func (s *AudioStream) Close() error {
	if s == nil || s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// encodeSlice packs audio and control into s.sendBuf, growing it only if
// the required size has never been reached before. A given Instance
// sends the same channel count and control length every cycle, so after
// the first call this never allocates again: the audio thread's steady
// state is allocation-free even though SendSlice is the entry point.
func (s *AudioStream) encodeSlice(audio [][]float32, control []byte) []byte {
	need := 4 + len(audio)*s.bufferSize*4 + 4 + len(control)
	if cap(s.sendBuf) < need {
		s.sendBuf = make([]byte, need)
	}
	buf := s.sendBuf[:need]

	binary.BigEndian.PutUint32(buf[0:4], uint32(len(audio)))
	off := 4
	for _, ch := range audio {
		for _, v := range ch {
			binary.BigEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
			off += 4
		}
	}
	binary.BigEndian.PutUint32(buf[off:off+4], uint32(len(control)))
	off += 4
	copy(buf[off:], control)
	return buf
}

func decodeSlice(buf []byte, audio [][]float32, control []byte, bufferSize int) error {
	if len(buf) < 4 {
		return fmt.Errorf("frame too short")
	}
	numChannels := int(binary.BigEndian.Uint32(buf[0:4]))
	if numChannels != len(audio) {
		return fmt.Errorf("channel count mismatch: got %d, want %d", numChannels, len(audio))
	}
	off := 4
	for _, ch := range audio {
		if len(ch) != bufferSize {
			return fmt.Errorf("channel buffer size mismatch: got %d, want %d", len(ch), bufferSize)
		}
		for i := range ch {
			if off+4 > len(buf) {
				return fmt.Errorf("frame truncated")
			}
			ch[i] = math.Float32frombits(binary.BigEndian.Uint32(buf[off : off+4]))
			off += 4
		}
	}
	if off+4 > len(buf) {
		return fmt.Errorf("frame truncated before control length")
	}
	controlLen := int(binary.BigEndian.Uint32(buf[off : off+4]))
	off += 4
	if controlLen != len(control) || off+controlLen > len(buf) {
		return fmt.Errorf("control payload size mismatch")
	}
	copy(control, buf[off:off+controlLen])
	return nil
}
