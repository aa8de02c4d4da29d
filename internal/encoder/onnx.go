package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	ort "github.com/shota3506/onnxruntime-purego/onnxruntime"

	"github.com/aseker00/alephbert/internal/runtime/tensor"
)

// ONNXConfig locates the ONNX Runtime library and an exported encoder graph
// taking input_ids and attention_mask of shape [1, P].
type ONNXConfig struct {
	LibraryPath string
	APIVersion  uint32
	ModelPath   string
	// OutputName selects the [1, P, C] output, last_hidden_state by default.
	OutputName string
	Dim        int
}

// ONNXEncoder runs a contextual encoder graph through ONNX Runtime.
type ONNXEncoder struct {
	mu      sync.Mutex
	closed  bool
	cfg     ONNXConfig
	runtime *ort.Runtime
	env     *ort.Env
	session *ort.Session
}

var libraryCandidates = []string{
	"/usr/lib/libonnxruntime.so",
	"/usr/local/lib/libonnxruntime.so",
	"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
	"/opt/homebrew/lib/libonnxruntime.dylib",
}

// ResolveLibrary picks the ONNX Runtime shared library: the explicit path,
// then ORT_LIBRARY_PATH, then common install locations.
func ResolveLibrary(explicit string) (string, error) {
	path := explicit
	if path == "" {
		path = os.Getenv("ORT_LIBRARY_PATH")
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("encoder: onnx runtime library: %w", err)
		}

		return path, nil
	}

	for _, c := range libraryCandidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}

	return "", errors.New("encoder: unable to locate the ONNX Runtime library; set encoder.ort_library_path or ORT_LIBRARY_PATH")
}

func NewONNXEncoder(cfg ONNXConfig) (*ONNXEncoder, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("encoder: onnx model path is empty")
	}

	if cfg.Dim <= 0 {
		return nil, fmt.Errorf("encoder: onnx encoder dim must be positive, got %d", cfg.Dim)
	}

	if cfg.APIVersion == 0 {
		cfg.APIVersion = 23
	}

	if cfg.OutputName == "" {
		cfg.OutputName = "last_hidden_state"
	}

	lib, err := ResolveLibrary(cfg.LibraryPath)
	if err != nil {
		return nil, err
	}

	runtime, err := ort.NewRuntime(lib, cfg.APIVersion)
	if err != nil {
		return nil, fmt.Errorf("encoder: ort runtime: %w", err)
	}

	env, err := runtime.NewEnv("morphtag-encoder", ort.LoggingLevelWarning)
	if err != nil {
		_ = runtime.Close()
		return nil, fmt.Errorf("encoder: ort env: %w", err)
	}

	session, err := runtime.NewSession(env, cfg.ModelPath, nil)
	if err != nil {
		env.Close()
		_ = runtime.Close()

		return nil, fmt.Errorf("encoder: ort session for %s: %w", cfg.ModelPath, err)
	}

	return &ONNXEncoder{cfg: cfg, runtime: runtime, env: env, session: session}, nil
}

func (e *ONNXEncoder) Dim() int { return e.cfg.Dim }

// Encode runs one sentence. Calls are serialised.
func (e *ONNXEncoder) Encode(ctx context.Context, ids, mask []int64) (*tensor.Tensor, error) {
	if len(ids) == 0 {
		return nil, ErrEmptySentence
	}

	if len(mask) != len(ids) {
		return nil, fmt.Errorf("encoder: %d ids but %d mask values", len(ids), len(mask))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}

	shape := []int64{1, int64(len(ids))}
	inputs := make(map[string]*ort.Value, 2)

	defer closeValues(inputs)

	for name, data := range map[string][]int64{"input_ids": ids, "attention_mask": mask} {
		v, err := ort.NewTensorValue(e.runtime, data, shape)
		if err != nil {
			return nil, fmt.Errorf("encoder: input %q: %w", name, err)
		}

		inputs[name] = v
	}

	outputs, err := e.session.Run(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("encoder: run: %w", err)
	}
	defer closeValues(outputs)

	v, ok := outputs[e.cfg.OutputName]
	if !ok {
		return nil, fmt.Errorf("encoder: graph has no output %q", e.cfg.OutputName)
	}

	data, outShape, err := ort.GetTensorData[float32](v)
	if err != nil {
		return nil, fmt.Errorf("encoder: output %q: %w", e.cfg.OutputName, err)
	}

	if len(outShape) != 3 || outShape[0] != 1 || outShape[1] != int64(len(ids)) || outShape[2] != int64(e.cfg.Dim) {
		return nil, fmt.Errorf("encoder: output %q shape %v, want [1 %d %d]", e.cfg.OutputName, outShape, len(ids), e.cfg.Dim)
	}

	return tensor.New(data, outShape[1:])
}

// Close releases all ORT resources. Safe to call more than once.
func (e *ONNXEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	e.closed = true
	e.session.Close()
	e.env.Close()

	return e.runtime.Close()
}

func closeValues(vals map[string]*ort.Value) {
	for _, v := range vals {
		if v != nil {
			v.Close()
		}
	}
}
