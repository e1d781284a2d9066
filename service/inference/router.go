package inference

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/xerrors"
)

var (
	ErrUnsupportedFormat = xerrors.New("unsupported model format")
	ErrMissingConfig     = xerrors.New("model format requires a config file")
)

// Formats whose weights are useless without a separate network description.
var needsConfig = map[string]bool{
	".weights":    true,
	".caffemodel": true,
}

type Router struct {
	mu      sync.RWMutex
	loaders map[string]Loader
}

// NewRouter returns a service that dispatches Load on the model file
// extension. Register loaders with Register.
func NewRouter() *Router {
	return &Router{
		loaders: map[string]Loader{},
	}
}

// Register binds a loader to one or more file extensions (".onnx", ".pb", ...).
func (svc *Router) Register(loader Loader, exts ...string) *Router {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	for _, ext := range exts {
		svc.loaders[strings.ToLower(ext)] = loader
	}
	return svc
}

func (svc *Router) Formats() []string {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	exts := make([]string, 0, len(svc.loaders))
	for ext := range svc.loaders {
		exts = append(exts, ext)
	}
	return exts
}

func (svc *Router) Load(spec ModelSpec) (Backend, error) {
	if spec.Path == "" {
		return nil, xerrors.New("empty model path")
	}

	if _, err := os.Stat(spec.Path); err != nil {
		return nil, xerrors.Errorf("model file %s: %w", spec.Path, err)
	}

	ext := strings.ToLower(filepath.Ext(spec.Path))
	if needsConfig[ext] {
		if spec.ConfigPath == "" {
			return nil, xerrors.Errorf("%s: %w", ext, ErrMissingConfig)
		}
		if _, err := os.Stat(spec.ConfigPath); err != nil {
			return nil, xerrors.Errorf("config file %s: %w", spec.ConfigPath, err)
		}
	}

	svc.mu.RLock()
	loader, ok := svc.loaders[ext]
	svc.mu.RUnlock()
	if !ok {
		return nil, xerrors.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}

	return loader(spec)
}
