// Package sink holds the consumers at the end of the pipeline. A sink receives
// results in capture order (minus dropped frames) and must return quickly: the
// result queue drops on overflow while a sink is busy.
package sink

import (
	"errors"

	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/data"
)

type Sink interface {
	Name() string
	Consume(res model.Result) error
	Close() error
}

type funcSink struct {
	name string
	fn   func(model.Result) error
}

// Func adapts a plain function to a Sink.
func Func(name string, fn func(model.Result) error) Sink {
	return &funcSink{name: name, fn: fn}
}

func (s *funcSink) Name() string                   { return s.name }
func (s *funcSink) Consume(res model.Result) error { return s.fn(res) }
func (s *funcSink) Close() error                   { return nil }

// Multi fans one result out to every sink. A failing sink does not stop the
// others; their errors are joined.
type Multi []Sink

func (m Multi) Name() string {
	return "multi"
}

func (m Multi) Consume(res model.Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Consume(res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type storeSink struct {
	dataSvc data.IService
}

// NewStore persists every detection through the data service. Frames without
// detections are skipped.
func NewStore(dataSvc data.IService) Sink {
	return &storeSink{dataSvc: dataSvc}
}

func (s *storeSink) Name() string {
	return "store"
}

func (s *storeSink) Consume(res model.Result) error {
	if len(res.Detections) == 0 {
		return nil
	}
	return s.dataSvc.SaveDetections(res)
}

func (s *storeSink) Close() error {
	return nil
}
