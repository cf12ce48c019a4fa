// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package remotedsp implements the client side of a remote DSP
// session: a content-hash-keyed, refcounted factory (component F) that
// a server compiled on the client's behalf, and a live audio instance
// bound to one (component G).
package remotedsp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrCompilation is the sentinel every server-side compile failure
// wraps: a 400 response from /GetJson or /GetAvailableFactories whose
// body is an error code or message.
var ErrCompilation = errors.New("remotedsp: server compilation failed")

// ErrNotFound is returned when a factory hash has no corresponding
// record, either locally or on the queried server.
var ErrNotFound = errors.New("remotedsp: factory not found")

// CompilationError carries the server's 400 response body, which is
// either a small integer error code or a free-form message — the
// original client treats whichever the body parses as.
type CompilationError struct {
	Code    int
	Message string
}

func (e *CompilationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remotedsp: compilation failed: %s", e.Message)
	}
	return fmt.Sprintf("remotedsp: compilation failed: code %d", e.Code)
}

func (e *CompilationError) Unwrap() error { return ErrCompilation }

func newCompilationError(body []byte) error {
	text := strings.TrimSpace(string(body))
	if code, err := strconv.Atoi(text); err == nil {
		return &CompilationError{Code: code}
	}
	return &CompilationError{Message: text}
}
