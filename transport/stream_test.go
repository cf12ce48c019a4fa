// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// startEchoSlave accepts one websocket connection, reads the handshake,
// then echoes back every binary frame it receives unchanged — enough
// to exercise AudioStream's encode/decode round trip without a real
// remote DSP server.
func startEchoSlave(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var hs handshake
		require.NoError(t, conn.ReadJSON(&hs))

		for {
			kind, buf, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(kind, buf); err != nil {
				return
			}
		}
	}))
	return srv
}

func TestAudioStreamSendRecvRoundTrip(t *testing.T) {
	srv := startEchoSlave(t)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	stream, err := OpenAudioMaster(context.Background(), wsURL, 4, 44100, false)
	require.NoError(t, err)
	defer stream.Close()

	in := [][]float32{{0.1, 0.2, 0.3, 0.4}, {-0.1, -0.2, -0.3, -0.4}}
	control := []byte{1, 2, 3}
	require.NoError(t, stream.SendSlice(in, control))

	out := [][]float32{make([]float32, 4), make([]float32, 4)}
	outControl := make([]byte, 3)
	require.NoError(t, stream.RecvSlice(out, outControl))

	require.Equal(t, in, out)
	require.Equal(t, control, outControl)
}

func TestAudioStreamNotStarted(t *testing.T) {
	var s *AudioStream
	err := s.SendSlice(nil, nil)
	require.ErrorIs(t, err, ErrTransportNotStarted)
}
