package inference

import (
	"sync"
	"time"

	"github.com/khaledhikmat/vs-detect/model"
)

// Fake is an in-memory IService that returns canned output tensors per
// algorithm. It never touches the file system.
type Fake struct {
	mu       sync.Mutex
	outputs  map[model.AlgorithmKind][]Tensor
	loadErrs map[model.AlgorithmKind]error
	runErrs  map[model.AlgorithmKind]error
	delay    time.Duration
	loads    map[model.AlgorithmKind]int
	runs     int
	closed   int
	lastIn   Input
}

func NewFake() *Fake {
	return &Fake{
		outputs:  map[model.AlgorithmKind][]Tensor{},
		loadErrs: map[model.AlgorithmKind]error{},
		runErrs:  map[model.AlgorithmKind]error{},
		loads:    map[model.AlgorithmKind]int{},
	}
}

func (f *Fake) SetOutputs(kind model.AlgorithmKind, outs ...Tensor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[kind] = outs
}

func (f *Fake) FailLoad(kind model.AlgorithmKind, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.loadErrs, kind)
		return
	}
	f.loadErrs[kind] = err
}

func (f *Fake) FailRun(kind model.AlgorithmKind, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.runErrs, kind)
		return
	}
	f.runErrs[kind] = err
}

// SetDelay makes every Run sleep for d.
func (f *Fake) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

func (f *Fake) Loads(kind model.AlgorithmKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads[kind]
}

func (f *Fake) Runs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func (f *Fake) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) LastInput() Input {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastIn
}

func (f *Fake) Load(spec ModelSpec) (Backend, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadErrs[spec.Kind]; err != nil {
		return nil, err
	}
	f.loads[spec.Kind]++
	return &fakeBackend{owner: f, kind: spec.Kind}, nil
}

type fakeBackend struct {
	owner *Fake
	kind  model.AlgorithmKind
}

func (b *fakeBackend) Run(in Input) ([]Tensor, error) {
	f := b.owner
	f.mu.Lock()
	f.runs++
	f.lastIn = in
	delay := f.delay
	err := f.runErrs[b.kind]
	outs := f.outputs[b.kind]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}
	return outs, nil
}

func (b *fakeBackend) Close() error {
	b.owner.mu.Lock()
	defer b.owner.mu.Unlock()
	b.owner.closed++
	return nil
}
