// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package remotedsp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-faust/firremote/transport"
)

const sampleDescriptorJSON = `{"inputs":"1","outputs":"2","meta":{"author":"test"},"ui":[{"type":"hslider","label":"freq","offset":0,"init":440,"min":20,"max":20000,"step":1}]}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*transport.ControlClient, func()) {
	srv := httptest.NewServer(handler)
	return transport.NewControlClient(srv.URL), srv.Close
}

func TestCreateFactoryHappyPath(t *testing.T) {
	var gotPath string
	client, closeSrv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, r.ParseForm())
		require.Equal(t, "myDsp", r.Form.Get("name"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(sampleDescriptorJSON))
	})
	defer closeSrv()

	reg := NewRegistry()
	f, err := CreateFactory(context.Background(), client, reg, "127.0.0.1", 7777, "myDsp", "dsp source", CompileOptions{})
	require.NoError(t, err)
	require.Equal(t, "/GetJson", gotPath)
	require.Equal(t, 1, f.Descriptor.NumInputs)
	require.Equal(t, 2, f.Descriptor.NumOutputs)
	require.Equal(t, "test", f.Descriptor.Meta["author"])

	refs, ok := reg.RefCount(f.Hash)
	require.True(t, ok)
	require.Equal(t, 1, refs)
}

func TestCreateFactoryCompilationError(t *testing.T) {
	client, closeSrv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("12"))
	})
	defer closeSrv()

	reg := NewRegistry()
	_, err := CreateFactory(context.Background(), client, reg, "127.0.0.1", 7777, "badDsp", "broken", CompileOptions{})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrCompilation)
	var compErr *CompilationError
	require.ErrorAs(t, err, &compErr)
	require.Equal(t, 12, compErr.Code)
}

func TestCreateFactoryMachineEscapesPayload(t *testing.T) {
	var gotDspData string
	client, closeSrv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotDspData = r.Form.Get("dsp_data")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(sampleDescriptorJSON))
	})
	defer closeSrv()

	reg := NewRegistry()
	_, err := CreateFactory(context.Background(), client, reg, "127.0.0.1", 7777, "myDsp", "raw bytes", CompileOptions{Machine: true})
	require.NoError(t, err)
	// r.ParseForm already decoded the urlencoded body, so the escaped
	// payload should round-trip back to the original bytes.
	require.Equal(t, "raw bytes", gotDspData)
}

// TestCreateFactoryRecompilesStaleCacheHit covers scenario 4: a cached
// factory whose hash the server no longer lists must be recompiled, not
// returned stale.
func TestCreateFactoryRecompilesStaleCacheHit(t *testing.T) {
	getJSONCalls := 0
	client, closeSrv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/GetAvailableFactories":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("")) // server has forgotten every factory
		case "/GetJson":
			getJSONCalls++
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(sampleDescriptorJSON))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})
	defer closeSrv()

	reg := NewRegistry()
	hash := hashContent("dsp source", "127.0.0.1", 7777)
	reg.Install(hash, &Factory{Hash: hash})

	f, err := CreateFactory(context.Background(), client, reg, "127.0.0.1", 7777, "myDsp", "dsp source", CompileOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, getJSONCalls)
	require.Equal(t, 1, f.Descriptor.NumInputs)
}

func TestCreateFactoryReusesFreshCacheHit(t *testing.T) {
	getJSONCalls := 0
	client, closeSrv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/GetAvailableFactories":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("myDsp " + hashContent("dsp source", "127.0.0.1", 7777)))
		case "/GetJson":
			getJSONCalls++
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(sampleDescriptorJSON))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})
	defer closeSrv()

	reg := NewRegistry()
	hash := hashContent("dsp source", "127.0.0.1", 7777)
	want := &Factory{Hash: hash, Descriptor: Descriptor{NumInputs: 7}}
	reg.Install(hash, want)

	f, err := CreateFactory(context.Background(), client, reg, "127.0.0.1", 7777, "myDsp", "dsp source", CompileOptions{})
	require.NoError(t, err)
	require.Equal(t, 0, getJSONCalls)
	require.Same(t, want, f)
}

func TestGetFactoryFromHashMiss(t *testing.T) {
	client, closeSrv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/GetJsonFromKey", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("not found"))
	})
	defer closeSrv()

	reg := NewRegistry()
	_, err := GetFactoryFromHash(context.Background(), client, reg, "127.0.0.1", 7777, "deadbeef")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAvailableFactoriesParsesPairs(t *testing.T) {
	require.Equal(t, []string{"h1", "h2"}, parseAvailableFactories([]byte("name1 h1 name2 h2")))
	require.Empty(t, parseAvailableFactories([]byte("")))
}

func TestFactoryDestroyPostsDeleteFactory(t *testing.T) {
	var gotHash string
	client, closeSrv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotHash = r.Form.Get("shaKey")
		w.WriteHeader(http.StatusOK)
	})
	defer closeSrv()

	f := &Factory{Hash: "abc123"}
	// client field is unexported but same-package tests can set it directly.
	f.client = client
	require.NoError(t, f.Destroy(context.Background()))
	require.Equal(t, "abc123", gotHash)
}
