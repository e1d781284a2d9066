package mode

import (
	"log/slog"

	"github.com/khaledhikmat/vs-detect/service/config"
	"github.com/khaledhikmat/vs-detect/service/inference"
	"github.com/khaledhikmat/vs-detect/service/inference/gocvdnn"
	"github.com/khaledhikmat/vs-detect/service/inference/onnx"
	"github.com/khaledhikmat/vs-detect/service/lgr"
)

// NewLoader builds the model loader for the configured runtime. OpenCV DNN
// handles every format; with the onnxruntime runtime .onnx files go to ONNX
// Runtime instead. The returned func releases runtime resources.
func NewLoader(cfgSvc config.IService) (inference.IService, func()) {
	router := gocvdnn.Register(inference.NewRouter())

	if cfgSvc.GetInferenceRuntime() != config.RuntimeONNXRuntime {
		return router, func() {}
	}

	onnx.Register(router, cfgSvc.GetORTLibraryPath())
	return router, func() {
		if err := onnx.Destroy(); err != nil {
			lgr.Logger.Warn("onnxruntime teardown", slog.Any("error", err))
		}
	}
}
