package bert

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/example/go-kreyol-tts/internal/config"
	"github.com/example/go-kreyol-tts/internal/onnx"
)

// DefaultOutputName is the ONNX output carrying the stacked hidden states.
const DefaultOutputName = "hidden_states"

const (
	inputIDs      = "input_ids"
	attentionMask = "attention_mask"
	tokenTypeIDs  = "token_type_ids"
)

// ONNXConfig configures an ONNX-backed Model.
type ONNXConfig struct {
	Runtime config.RuntimeConfig
	// OutputName is either a single [L,1,T,D] or [1,T,D] output, or the
	// prefix of per-layer outputs named <OutputName>.0, <OutputName>.1, ...
	OutputName string
	Device     string
}

// ONNXModel runs a BERT-style encoder exported to ONNX. It owns its runner.
type ONNXModel struct {
	runner     onnx.GraphRunner
	outputName string
	device     string
}

var _ Model = (*ONNXModel)(nil)

// OpenONNXModel loads the graph at path on the resolved device.
func OpenONNXModel(path string, cfg ONNXConfig) (*ONNXModel, error) {
	if path == "" {
		return nil, errors.New("bert model path must not be empty")
	}

	device, err := ResolveDevice(cfg.Device)
	if err != nil {
		return nil, err
	}

	info, err := onnx.Bootstrap(cfg.Runtime)
	if err != nil {
		return nil, fmt.Errorf("onnx runtime: %w", err)
	}

	runner, err := onnx.NewRunner("bert", path, onnx.RunnerConfig{
		LibraryPath: info.LibraryPath,
		APIVersion:  info.APIVersion,
	})
	if err != nil {
		return nil, err
	}

	m := NewONNXModel(runner, cfg.OutputName)
	m.device = device

	return m, nil
}

// NewONNXModel wraps an already opened graph runner.
func NewONNXModel(runner onnx.GraphRunner, outputName string) *ONNXModel {
	if outputName == "" {
		outputName = DefaultOutputName
	}

	return &ONNXModel{runner: runner, outputName: outputName, device: config.DeviceCPU}
}

// Device returns the device inference runs on.
func (m *ONNXModel) Device() string {
	return m.device
}

// HiddenStates implements Model for a batch of one sequence.
func (m *ONNXModel) HiddenStates(ctx context.Context, ids []int64) (HiddenStates, error) {
	if len(ids) == 0 {
		return HiddenStates{}, errors.New("no input ids")
	}

	n := int64(len(ids))
	shape := []int64{1, n}

	mask := make([]int64, n)
	for i := range mask {
		mask[i] = 1
	}

	idsT, err := onnx.NewTensor(ids, shape)
	if err != nil {
		return HiddenStates{}, err
	}
	maskT, err := onnx.NewTensor(mask, shape)
	if err != nil {
		return HiddenStates{}, err
	}
	typesT, err := onnx.NewTensor(make([]int64, n), shape)
	if err != nil {
		return HiddenStates{}, err
	}

	inputs := map[string]*onnx.Tensor{
		inputIDs:      idsT,
		attentionMask: maskT,
		tokenTypeIDs:  typesT,
	}
	// RoBERTa-family exports declare no token_type_ids.
	if declared := m.inputNames(); declared != nil {
		for name := range inputs {
			if !slices.Contains(declared, name) {
				delete(inputs, name)
			}
		}
	}

	outputs, err := m.runner.Run(ctx, inputs)
	if err != nil {
		return HiddenStates{}, err
	}

	return collectHiddenStates(outputs, m.outputName, len(ids))
}

// inputNames returns the graph's declared inputs, or nil when the runner
// cannot tell.
func (m *ONNXModel) inputNames() []string {
	if n, ok := m.runner.(onnx.InputNamer); ok {
		return n.InputNames()
	}
	return nil
}

// Close releases the underlying runner.
func (m *ONNXModel) Close() {
	if m.runner != nil {
		m.runner.Close()
	}
}

func collectHiddenStates(outputs map[string]*onnx.Tensor, name string, tokens int) (HiddenStates, error) {
	if t, ok := outputs[name]; ok {
		return stackedHiddenStates(t, name, tokens)
	}

	var layers []*onnx.Tensor
	for k := 0; ; k++ {
		t, ok := outputs[name+"."+strconv.Itoa(k)]
		if !ok {
			break
		}
		layers = append(layers, t)
	}

	if len(layers) == 0 {
		names := make([]string, 0, len(outputs))
		for k := range outputs {
			names = append(names, k)
		}
		slices.Sort(names)

		return HiddenStates{}, fmt.Errorf("model has no output %q (outputs: %v)", name, names)
	}

	hs := HiddenStates{Layers: len(layers), Tokens: tokens}
	for k, t := range layers {
		width, data, err := layerData(t, tokens)
		if err != nil {
			return HiddenStates{}, fmt.Errorf("output %s.%d: %w", name, k, err)
		}
		if k == 0 {
			hs.Width = width
			hs.Data = make([]float32, 0, len(layers)*tokens*width)
		} else if width != hs.Width {
			return HiddenStates{}, fmt.Errorf("output %s.%d: width %d, want %d", name, k, width, hs.Width)
		}
		hs.Data = append(hs.Data, data...)
	}

	return hs, nil
}

// stackedHiddenStates accepts [L,1,T,D] or [1,T,D].
func stackedHiddenStates(t *onnx.Tensor, name string, tokens int) (HiddenStates, error) {
	shape := t.Shape()

	var layers int64
	switch {
	case len(shape) == 4 && shape[1] == 1:
		layers = shape[0]
		shape = shape[1:]
	case len(shape) == 3:
		layers = 1
	default:
		return HiddenStates{}, fmt.Errorf("output %q: unsupported shape %v", name, t.Shape())
	}

	if shape[0] != 1 || shape[1] != int64(tokens) {
		return HiddenStates{}, fmt.Errorf("output %q: shape %v does not hold %d tokens", name, t.Shape(), tokens)
	}

	data, err := onnx.ExtractFloat32(t)
	if err != nil {
		return HiddenStates{}, fmt.Errorf("output %q: %w", name, err)
	}

	return HiddenStates{
		Layers: int(layers),
		Tokens: tokens,
		Width:  int(shape[2]),
		Data:   data,
	}, nil
}

// layerData accepts one [1,T,D] layer output.
func layerData(t *onnx.Tensor, tokens int) (int, []float32, error) {
	shape := t.Shape()
	if len(shape) != 3 || shape[0] != 1 || shape[1] != int64(tokens) {
		return 0, nil, fmt.Errorf("unsupported shape %v for %d tokens", shape, tokens)
	}

	data, err := onnx.ExtractFloat32(t)
	if err != nil {
		return 0, nil, err
	}

	return int(shape[2]), data, nil
}
