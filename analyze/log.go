// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package analyze

import (
	"io"
	"log"
	"os"
)

// PrintDebugInfo toggles verbose logging of the analyze package's
// stack-depth walk. It must be set (via SetDebugMode) before Analyze is
// called, since the logger's writer is fixed at toggle time.
var PrintDebugInfo = false

var logger *log.Logger

func init() {
	w := io.Discard
	if PrintDebugInfo {
		w = os.Stderr
	}
	logger = log.New(w, "", log.Lshortfile)
}

// SetDebugMode enables or disables verbose diagnostic logging of the
// peak stack-depth analysis, redirecting the package logger between
// os.Stderr and a discard writer.
func SetDebugMode(v bool) {
	PrintDebugInfo = v
	if v {
		logger.SetOutput(os.Stderr)
	} else {
		logger.SetOutput(io.Discard)
	}
}
