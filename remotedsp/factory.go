// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package remotedsp

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-faust/firremote/registry"
	"github.com/go-faust/firremote/transport"
)

// CompileOptions carries the compiler flags a factory is created with,
// mirroring the option0..optionN/opt_level/machine form fields the
// original client's remote_dsp_factory::init sends.
type CompileOptions struct {
	Options  map[string]string
	OptLevel int
	// Machine marks the "-machine" path: Content is a pre-serialized
	// binary payload instead of DSP source text. Both are sent in
	// dsp_data with the same form encoding.
	Machine bool
}

// Factory is a server-compiled DSP artifact, installed once per
// distinct (content, server) pair and shared by every instance created
// from it.
type Factory struct {
	Hash       string
	Server     string
	Descriptor Descriptor

	client *transport.ControlClient
}

// Registry is the concrete registry type factories are kept in.
type Registry = registry.Registry[*Factory]

// NewRegistry returns an empty registry ready to hold factories. The
// process entry point constructs exactly one of these and threads it
// through; it is never reached via a package-level global.
func NewRegistry() *Registry {
	return registry.New[*Factory]()
}

func hashContent(content, serverIP string, serverPort int) string {
	h := sha1.New()
	io.WriteString(h, content)
	io.WriteString(h, serverIP)
	fmt.Fprintf(h, "%d", serverPort)
	return hex.EncodeToString(h.Sum(nil))
}

// CreateFactory implements the 6-step create described in §4.F: hash
// the content, check the registry for a cache hit (re-validating it
// against the server's current factory list before trusting it), and
// on a miss or staleness, submit the DSP to /GetJson and install the
// resulting factory.
func CreateFactory(ctx context.Context, client *transport.ControlClient, reg *Registry, serverIP string, serverPort int, name, content string, opts CompileOptions) (*Factory, error) {
	hash := hashContent(content, serverIP, serverPort)

	if cached, err := reg.Acquire(hash); err == nil {
		avail, aerr := AvailableFactories(ctx, client)
		if aerr == nil && containsHash(avail, hash) {
			return cached, nil
		}
		// the server no longer lists this hash: treat the cache entry
		// as stale and fall through to recompile it.
	}

	form := url.Values{}
	form.Set("name", name)
	form.Set("opt_level", strconv.Itoa(opts.OptLevel))
	i := 0
	for k, v := range opts.Options {
		form.Set(fmt.Sprintf("option%d", i), k+"="+v)
		i++
	}
	form.Set("number_options", strconv.Itoa(i))
	form.Set("shaKey", hash)
	// dsp_data is percent-encoded exactly once, by form.Encode, whether
	// it holds DSP source text or (with opts.Machine) a pre-serialized
	// binary payload; no base64 layer is added (resolved open question 2).
	form.Set("dsp_data", content)

	body, status, err := client.Post(ctx, "/GetJson", form)
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest {
		return nil, newCompilationError(body)
	}

	desc, err := decodeDescriptor(body)
	if err != nil {
		return nil, errorsWrapCompilation(err)
	}

	f := &Factory{Hash: hash, Server: fmt.Sprintf("%s:%d", serverIP, serverPort), Descriptor: desc, client: client}
	reg.Install(hash, f)
	return f, nil
}

// GetFactoryFromHash implements the GetJsonFromKey path: acquire a
// cached factory by hash alone, or fetch its descriptor fresh from the
// server without re-submitting source.
func GetFactoryFromHash(ctx context.Context, client *transport.ControlClient, reg *Registry, serverIP string, serverPort int, hash string) (*Factory, error) {
	if cached, err := reg.Acquire(hash); err == nil {
		return cached, nil
	}

	body, status, err := client.Post(ctx, "/GetJsonFromKey", url.Values{"shaKey": {hash}})
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest {
		return nil, ErrNotFound
	}

	desc, err := decodeDescriptor(body)
	if err != nil {
		return nil, errorsWrapCompilation(err)
	}

	f := &Factory{Hash: hash, Server: fmt.Sprintf("%s:%d", serverIP, serverPort), Descriptor: desc, client: client}
	reg.Install(hash, f)
	return f, nil
}

// AvailableFactories lists the content hashes the server currently has
// compiled, via GET /GetAvailableFactories (a whitespace-separated
// "name hash name hash ..." body in the original).
func AvailableFactories(ctx context.Context, client *transport.ControlClient) ([]string, error) {
	body, status, err := client.Get(ctx, "/GetAvailableFactories")
	if err != nil {
		return nil, err
	}
	if status == http.StatusBadRequest {
		return nil, newCompilationError(body)
	}
	return parseAvailableFactories(body), nil
}

func parseAvailableFactories(body []byte) []string {
	fields := strings.Fields(string(body))
	hashes := make([]string, 0, len(fields)/2)
	for i := 1; i < len(fields); i += 2 {
		hashes = append(hashes, fields[i])
	}
	return hashes
}

func containsHash(list []string, hash string) bool {
	for _, h := range list {
		if h == hash {
			return true
		}
	}
	return false
}

// Destroy tells the server to free this factory. It is the caller's
// responsibility (via Registry.Release) to call this exactly once, at
// the refcount's zero transition.
func (f *Factory) Destroy(ctx context.Context) error {
	_, _, err := f.client.Post(ctx, "/DeleteFactory", url.Values{"shaKey": {f.Hash}})
	return err
}

// Metadata returns the factory's compile-time key/value metadata.
func (f *Factory) Metadata() map[string]string {
	return f.Descriptor.Meta
}

func errorsWrapCompilation(err error) error {
	return &CompilationError{Message: err.Error()}
}
