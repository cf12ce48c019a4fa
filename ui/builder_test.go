// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ui

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-faust/firremote/fir"
)

func TestDiscardBuilderCountsControls(t *testing.T) {
	blk := fir.NewUIBlock[float32]()
	blk.Push(&fir.UIInstruction[float32]{Kind: fir.UIVGroup, Label: "controls"})
	blk.Push(&fir.UIInstruction[float32]{Kind: fir.UIHSlider, Label: "freq", Offset: 0})
	blk.Push(&fir.UIInstruction[float32]{Kind: fir.UICheckbox, Label: "bypass", Offset: 4})
	blk.Push(&fir.UIInstruction[float32]{Kind: fir.UIVBargraph, Label: "level", Offset: 8})
	blk.Push(&fir.UIInstruction[float32]{Kind: fir.UIClose})

	d := &DiscardBuilder[float32]{}
	Drive(blk, d)

	require.Equal(t, 2, d.NumInputs)
	require.Equal(t, 1, d.NumOutputs)
}
