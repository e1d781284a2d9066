package webhook

import "sync"

// Fake records payloads instead of sending them.
type Fake struct {
	mu       sync.Mutex
	payloads []interface{}
	err      error
}

func NewFake() *Fake {
	return &Fake{}
}

// Fail makes every following Post return err.
func (svc *Fake) Fail(err error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.err = err
}

func (svc *Fake) Post(payload interface{}) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if svc.err != nil {
		return svc.err
	}
	svc.payloads = append(svc.payloads, payload)
	return nil
}

func (svc *Fake) Payloads() []interface{} {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]interface{}(nil), svc.payloads...)
}
