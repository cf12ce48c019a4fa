// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport implements the two wire adapters a remote DSP
// session needs (component I): ControlClient for the HTTP control
// plane (GetJson, CreateInstance, StartAudio, ...) and AudioStream for
// the fixed-cadence streaming data plane. Both are sample-type
// agnostic: audio always crosses the wire as float32, independent of
// whatever precision a bytecode block was analyzed at.
package transport

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ErrCurl is the sentinel every transport-level (as opposed to
// application-level 400) failure wraps, named for the libcurl calls it
// replaces in the original client.
var ErrCurl = errors.New("transport: control-plane request failed")

// connectAndTotalTimeout bounds both connection establishment and the
// full request/response round trip, matching the original remote
// client's curl options (CURLOPT_CONNECTTIMEOUT and CURLOPT_TIMEOUT,
// both set to 15 seconds).
const connectAndTotalTimeout = 15 * time.Second

// ControlClient issues the control-plane requests of §6 against a
// single server base URL, centralizing the timeout and status-code
// handling that the original client duplicated at every call site.
type ControlClient struct {
	base       string
	httpClient *http.Client
}

// NewControlClient returns a client that talks to base (e.g.
// "http://localhost:7777").
func NewControlClient(base string) *ControlClient {
	return &ControlClient{
		base: strings.TrimRight(base, "/"),
		httpClient: &http.Client{
			Timeout: connectAndTotalTimeout,
		},
	}
}

// Post issues a POST to base+path with an
// application/x-www-form-urlencoded body built from form. It returns
// the response body and status code on a 200 or 400 response; any
// other outcome (any other status, connect failure, timeout, body
// read failure) is reported as an error wrapping ErrCurl. Callers
// distinguish a 200 (success) from a 400 (application-level error,
// body is an error code or message) by status.
func (c *ControlClient) Post(ctx context.Context, path string, form url.Values) (body []byte, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, errors.Wrap(ErrCurl, err.Error())
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// Get issues a GET to base+path, used by the one endpoint (§4.F,
// GetAvailableFactories) that has no form body.
func (c *ControlClient) Get(ctx context.Context, path string) (body []byte, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, 0, errors.Wrap(ErrCurl, err.Error())
	}
	return c.do(req)
}

func (c *ControlClient) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.Wrap(ErrCurl, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, errors.Wrap(ErrCurl, err.Error())
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return nil, resp.StatusCode, errors.Wrapf(ErrCurl, "unexpected status %d", resp.StatusCode)
	}
	return body, resp.StatusCode, nil
}
