package onnx

import "context"

// GraphRunner is the minimal runner contract consumers depend on, so tests
// can substitute a fake for a real ORT session.
type GraphRunner interface {
	Run(ctx context.Context, inputs map[string]*Tensor) (map[string]*Tensor, error)
	Name() string
	Close()
}

// InputNamer is implemented by runners that know the graph's declared inputs.
type InputNamer interface {
	InputNames() []string
}
