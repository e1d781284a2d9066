package inference

import (
	"github.com/khaledhikmat/vs-detect/model"
)

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"-"`
}

func NewTensor(shape []int, data []float32) Tensor {
	return Tensor{Shape: shape, Data: data}
}

// Cols is the size of the innermost dimension.
func (t Tensor) Cols() int {
	if len(t.Shape) == 0 {
		return len(t.Data)
	}
	return t.Shape[len(t.Shape)-1]
}

// Rows treats every leading dimension as flattened rows.
func (t Tensor) Rows() int {
	cols := t.Cols()
	if cols <= 0 {
		return 0
	}
	return len(t.Data) / cols
}

func (t Tensor) Row(i int) []float32 {
	cols := t.Cols()
	return t.Data[i*cols : (i+1)*cols]
}

// Input is what a backend consumes. DNN backends read Tensor (NCHW); the
// cascade backend scans Frame directly.
type Input struct {
	Tensor Tensor
	Frame  *model.ImageBuffer
}

// ModelSpec describes the artifact to load and how to run it.
type ModelSpec struct {
	Kind       model.AlgorithmKind
	Path       string
	ConfigPath string
	InputSize  model.Size
	UseGPU     bool
	Cascade    model.CascadeParams
}

// Backend is a loaded, runnable network. Backends are not safe for
// concurrent use.
type Backend interface {
	Run(in Input) ([]Tensor, error)
	Close() error
}

type IService interface {
	Load(spec ModelSpec) (Backend, error)
}

// Loader loads one model format.
type Loader func(spec ModelSpec) (Backend, error)
