// Package onnx runs .onnx models through ONNX Runtime.
package onnx

import (
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-detect/service/inference"
	"github.com/khaledhikmat/vs-detect/service/lgr"
)

var (
	envMu          sync.Mutex
	envInitialized bool
)

// Init loads the ONNX Runtime shared library once per process.
func Init(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()
	if envInitialized {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return xerrors.Errorf("onnxruntime init: %w", err)
	}
	envInitialized = true
	return nil
}

// Destroy tears the runtime down after every session is closed.
func Destroy() error {
	envMu.Lock()
	defer envMu.Unlock()
	if !envInitialized {
		return nil
	}
	envInitialized = false
	return ort.DestroyEnvironment()
}

// Register binds .onnx to ONNX Runtime, replacing any earlier .onnx loader.
func Register(router *inference.Router, libPath string) *inference.Router {
	return router.Register(func(spec inference.ModelSpec) (inference.Backend, error) {
		if err := Init(libPath); err != nil {
			return nil, err
		}
		return Load(spec)
	}, ".onnx")
}

type sessionBackend struct {
	session     *ort.DynamicAdvancedSession
	outputNames []string
}

func Load(spec inference.ModelSpec) (inference.Backend, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(spec.Path)
	if err != nil {
		return nil, xerrors.Errorf("inspect %s: %w", spec.Path, err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, xerrors.Errorf("%s declares no inputs or outputs", spec.Path)
	}

	outNames := make([]string, 0, len(outputs))
	for _, o := range outputs {
		outNames = append(outNames, o.Name)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, xerrors.Errorf("session options: %w", err)
	}
	defer opts.Destroy()

	if spec.UseGPU {
		enableCUDA(opts)
	}

	session, err := ort.NewDynamicAdvancedSession(spec.Path, []string{inputs[0].Name}, outNames, opts)
	if err != nil {
		return nil, xerrors.Errorf("session %s: %w", spec.Path, err)
	}

	lgr.Logger.Debug("onnx session created",
		slog.String("path", spec.Path),
		slog.String("input", inputs[0].Name),
		slog.Any("outputs", outNames),
	)
	return &sessionBackend{session: session, outputNames: outNames}, nil
}

// enableCUDA falls back to CPU when the CUDA provider is unavailable.
func enableCUDA(opts *ort.SessionOptions) {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		lgr.Logger.Warn("cuda provider unavailable, using cpu", slog.Any("error", err))
		return
	}
	defer cuda.Destroy()

	if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
		lgr.Logger.Warn("cuda provider rejected, using cpu", slog.Any("error", err))
	}
}

func (b *sessionBackend) Run(in inference.Input) ([]inference.Tensor, error) {
	dims := make([]int64, len(in.Tensor.Shape))
	for i, d := range in.Tensor.Shape {
		dims[i] = int64(d)
	}

	input, err := ort.NewTensor(ort.NewShape(dims...), in.Tensor.Data)
	if err != nil {
		return nil, xerrors.Errorf("input tensor: %w", err)
	}
	defer input.Destroy()

	// nil outputs are allocated by the session.
	outs := make([]ort.Value, len(b.outputNames))
	if err := b.session.Run([]ort.Value{input}, outs); err != nil {
		return nil, err
	}
	defer func() {
		for _, o := range outs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	tensors := make([]inference.Tensor, 0, len(outs))
	for i, o := range outs {
		ft, ok := o.(*ort.Tensor[float32])
		if !ok {
			return nil, xerrors.Errorf("output %s is not float32", b.outputNames[i])
		}
		shape := ft.GetShape()
		dims := make([]int, len(shape))
		for j, d := range shape {
			dims[j] = int(d)
		}
		tensors = append(tensors, inference.NewTensor(dims, append([]float32(nil), ft.GetData()...)))
	}
	return tensors, nil
}

func (b *sessionBackend) Close() error {
	return b.session.Destroy()
}
