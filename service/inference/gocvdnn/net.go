// Package gocvdnn runs models through OpenCV's DNN module and cascade
// classifier.
package gocvdnn

import (
	"image"
	"log/slog"
	"runtime"
	"unsafe"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-detect/service/capture/gocvcap"
	"github.com/khaledhikmat/vs-detect/service/inference"
	"github.com/khaledhikmat/vs-detect/service/lgr"
)

// NetFormats are the weight formats gocv.ReadNet understands.
var NetFormats = []string{".onnx", ".pb", ".weights", ".caffemodel", ".t7", ".net"}

// Register binds the OpenCV loaders to router.
func Register(router *inference.Router) *inference.Router {
	return router.
		Register(LoadNet, NetFormats...).
		Register(LoadCascade, ".xml")
}

type netBackend struct {
	net      gocv.Net
	outNames []string
}

func LoadNet(spec inference.ModelSpec) (inference.Backend, error) {
	net := gocv.ReadNet(spec.Path, spec.ConfigPath)
	if net.Empty() {
		return nil, xerrors.Errorf("opencv could not read %s", spec.Path)
	}

	if spec.UseGPU {
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}

	outNames := outputLayers(net)
	lgr.Logger.Debug("opencv net loaded",
		slog.String("path", spec.Path),
		slog.Any("outputs", outNames),
		slog.Bool("gpu", spec.UseGPU),
	)

	return &netBackend{net: net, outNames: outNames}, nil
}

func outputLayers(net gocv.Net) []string {
	names := net.GetLayerNames()
	var out []string
	for _, id := range net.GetUnconnectedOutLayers() {
		if id-1 >= 0 && id-1 < len(names) {
			out = append(out, names[id-1])
		}
	}
	return out
}

func (b *netBackend) Run(in inference.Input) ([]inference.Tensor, error) {
	data := in.Tensor.Data
	if len(data) == 0 {
		return nil, xerrors.New("empty input tensor")
	}

	raw := unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), len(data)*4)
	blob, err := gocv.NewMatWithSizesFromBytes(in.Tensor.Shape, gocv.MatTypeCV32F, raw)
	if err != nil {
		return nil, xerrors.Errorf("input blob: %w", err)
	}
	defer blob.Close()

	b.net.SetInput(blob, "")
	outs := b.net.ForwardLayers(b.outNames)
	runtime.KeepAlive(data)
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()

	tensors := make([]inference.Tensor, 0, len(outs))
	for _, o := range outs {
		vals, err := o.DataPtrFloat32()
		if err != nil {
			return nil, xerrors.Errorf("read output: %w", err)
		}
		tensors = append(tensors, inference.NewTensor(o.Size(), append([]float32(nil), vals...)))
	}
	return tensors, nil
}

func (b *netBackend) Close() error {
	return b.net.Close()
}

type cascadeBackend struct {
	classifier gocv.CascadeClassifier
	spec       inference.ModelSpec
}

func LoadCascade(spec inference.ModelSpec) (inference.Backend, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(spec.Path) {
		classifier.Close()
		return nil, xerrors.Errorf("cascade classifier could not read %s", spec.Path)
	}
	return &cascadeBackend{classifier: classifier, spec: spec}, nil
}

// Run scans the gray frame and returns one (x, y, w, h) row per hit.
func (b *cascadeBackend) Run(in inference.Input) ([]inference.Tensor, error) {
	if in.Frame == nil {
		return nil, xerrors.New("cascade needs a frame")
	}
	mat, err := gocvcap.ToMat(in.Frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	p := b.spec.Cascade
	hits := b.classifier.DetectMultiScaleWithParams(mat,
		p.ScaleFactor, p.MinNeighbors, 0,
		image.Pt(p.MinSize, p.MinSize), image.Pt(p.MaxSize, p.MaxSize),
	)

	data := make([]float32, 0, len(hits)*4)
	for _, r := range hits {
		data = append(data, float32(r.Min.X), float32(r.Min.Y), float32(r.Dx()), float32(r.Dy()))
	}
	return []inference.Tensor{inference.NewTensor([]int{len(hits), 4}, data)}, nil
}

func (b *cascadeBackend) Close() error {
	return b.classifier.Close()
}
