package webhook

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/xerrors"
)

type httpService struct {
	URL    string
	Client *http.Client
}

// NewHTTP posts payloads as JSON to url. Any non-2xx reply is an error.
func NewHTTP(url string, timeout time.Duration) IService {
	return &httpService{
		URL:    url,
		Client: &http.Client{Timeout: timeout},
	}
}

func (svc *httpService) Post(payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return xerrors.Errorf("webhook payload: %w", err)
	}

	resp, err := svc.Client.Post(svc.URL, "application/json", bytes.NewReader(body))
	if err != nil {
		return xerrors.Errorf("webhook post %s: %w", svc.URL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return xerrors.Errorf("webhook post %s: status %d", svc.URL, resp.StatusCode)
	}
	return nil
}
