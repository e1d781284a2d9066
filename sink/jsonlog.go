package sink

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/natefinch/lumberjack"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-detect/model"
)

type jsonLogSink struct {
	mu  sync.Mutex
	out io.WriteCloser
	enc *json.Encoder
}

// NewJSONLog appends one JSON line per result to a size-rotated file.
func NewJSONLog(path string) Sink {
	return NewJSONLogWriter(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 5,
		MaxAge:     7,    // days
		Compress:   true, // compress old logs
	})
}

func NewJSONLogWriter(out io.WriteCloser) Sink {
	return &jsonLogSink{out: out, enc: json.NewEncoder(out)}
}

func (s *jsonLogSink) Name() string {
	return "jsonlog"
}

func (s *jsonLogSink) Consume(res model.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(res); err != nil {
		return xerrors.Errorf("write detection log: %w", err)
	}
	return nil
}

func (s *jsonLogSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out.Close()
}
