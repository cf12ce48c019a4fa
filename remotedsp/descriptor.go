// Copyright 2024 The firremote Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package remotedsp

import (
	"encoding/json"
	"strconv"

	"github.com/go-faust/firremote/fir"
)

// Descriptor is the decoded form of a /GetJson or /GetJsonFromKey
// response body: the compiled DSP's channel arities, metadata and UI
// tree, everything an instance needs before it starts exchanging
// audio.
type Descriptor struct {
	NumInputs  int
	NumOutputs int
	Meta       map[string]string
	UI         *fir.UIBlock[float32]
}

// jsonDescriptor mirrors the wire shape of original_source's decodeJson:
// inputs/outputs travel as strings and are converted to arities on
// decode, exactly as the original's std::atoi(j["inputs"]) does.
type jsonDescriptor struct {
	Inputs  string            `json:"inputs"`
	Outputs string            `json:"outputs"`
	Meta    map[string]string `json:"meta"`
	UI      []jsonUIItem      `json:"ui"`
}

type jsonUIItem struct {
	Type    string       `json:"type"`
	Label   string       `json:"label"`
	Address string       `json:"address"`
	Init    float64      `json:"init"`
	Min     float64      `json:"min"`
	Max     float64      `json:"max"`
	Step    float64      `json:"step"`
	Offset  int          `json:"offset"`
	Items   []jsonUIItem `json:"items"`
}

func decodeDescriptor(body []byte) (Descriptor, error) {
	var jd jsonDescriptor
	if err := json.Unmarshal(body, &jd); err != nil {
		return Descriptor{}, err
	}

	inputs, _ := strconv.Atoi(jd.Inputs)
	outputs, _ := strconv.Atoi(jd.Outputs)

	block := fir.NewUIBlock[float32]()
	for _, item := range jd.UI {
		appendUIItem(block, item)
	}

	return Descriptor{
		NumInputs:  inputs,
		NumOutputs: outputs,
		Meta:       jd.Meta,
		UI:         block,
	}, nil
}

func appendUIItem(block *fir.UIBlock[float32], item jsonUIItem) {
	kind := fir.UIKind(item.Type)
	block.Push(&fir.UIInstruction[float32]{
		Kind:   kind,
		Offset: item.Offset,
		Label:  item.Label,
		Init:   float32(item.Init),
		Min:    float32(item.Min),
		Max:    float32(item.Max),
		Step:   float32(item.Step),
	})
	if kind.IsGroup() {
		for _, child := range item.Items {
			appendUIItem(block, child)
		}
		block.Push(&fir.UIInstruction[float32]{Kind: fir.UIClose})
	}
}
