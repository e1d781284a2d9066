package sink

import (
	"sync"
	"time"

	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/webhook"
)

type webhookSink struct {
	svc      webhook.IService
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

// NewWebhook posts results that carry detections, at most once per cooldown.
// Results inside the cooldown are skipped, not queued.
func NewWebhook(svc webhook.IService, cooldown time.Duration) Sink {
	return &webhookSink{svc: svc, cooldown: cooldown, now: time.Now}
}

func (s *webhookSink) Name() string {
	return "webhook"
}

func (s *webhookSink) Consume(res model.Result) error {
	if len(res.Detections) == 0 {
		return nil
	}

	s.mu.Lock()
	now := s.now()
	if !s.last.IsZero() && now.Sub(s.last) < s.cooldown {
		s.mu.Unlock()
		return nil
	}
	s.last = now
	s.mu.Unlock()

	return s.svc.Post(res)
}

func (s *webhookSink) Close() error {
	return nil
}
