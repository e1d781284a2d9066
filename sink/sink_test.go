package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/khaledhikmat/vs-detect/model"
	"github.com/khaledhikmat/vs-detect/service/data"
	"github.com/khaledhikmat/vs-detect/service/webhook"
)

type bufferCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufferCloser) Close() error {
	b.closed = true
	return nil
}

func result(seq uint64, confidences ...float32) model.Result {
	res := model.Result{Seq: seq, Algorithm: model.YoloV5, Frame: model.NewImageBuffer(4, 4, model.PixelFormatBGR)}
	for i, c := range confidences {
		d := model.NewDetection(model.Rect{X: i * 10, Y: 0, Width: 8, Height: 8}, c)
		d.Algorithm = model.YoloV5
		res.Detections = append(res.Detections, d)
	}
	return res
}

func TestMultiFansOutAndJoinsErrors(t *testing.T) {
	var seen []string
	boom := errors.New("boom")

	m := Multi{
		Func("a", func(model.Result) error { seen = append(seen, "a"); return boom }),
		Func("b", func(model.Result) error { seen = append(seen, "b"); return nil }),
	}

	err := m.Consume(result(1))
	if !errors.Is(err, boom) {
		t.Errorf("Consume() error = %v, want boom", err)
	}
	if strings.Join(seen, ",") != "a,b" {
		t.Errorf("sinks called = %v", seen)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestJSONLogWritesOneLinePerResult(t *testing.T) {
	buf := &bufferCloser{}
	s := NewJSONLogWriter(buf)

	for seq := uint64(1); seq <= 2; seq++ {
		if err := s.Consume(result(seq, 0.9)); err != nil {
			t.Fatalf("Consume() error = %v", err)
		}
	}
	if err := s.Close(); err != nil || !buf.closed {
		t.Fatalf("Close() error = %v closed=%v", err, buf.closed)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}

	var decoded struct {
		Seq        uint64 `json:"seq"`
		Algorithm  string `json:"algorithm"`
		Detections []struct {
			Confidence float32 `json:"confidence"`
		} `json:"detections"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Seq != 2 || decoded.Algorithm != "yolov5" || len(decoded.Detections) != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
	if strings.Contains(lines[0], "Pix") {
		t.Error("frame pixels leaked into the log")
	}
}

func TestStoreSkipsEmptyResults(t *testing.T) {
	dataSvc := data.NewMemory()
	s := NewStore(dataSvc)

	_ = s.Consume(result(1))
	_ = s.Consume(result(2, 0.8, 0.7))

	got, _ := dataSvc.RetrieveRecentDetections(0)
	if len(got) != 2 || got[0].Seq != 2 {
		t.Errorf("stored = %+v", got)
	}
}

func TestBroadcasterDeliversToClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewBroadcaster(4)
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := hub.Consume(result(7, 0.95)); err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var got model.Result
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatal(err)
	}
	if got.Seq != 7 || len(got.Detections) != 1 || got.Detections[0].Algorithm != model.YoloV5 {
		t.Errorf("got %+v", got)
	}
}

func TestBroadcasterDropsWhenBufferFull(t *testing.T) {
	// Run is not started, so nothing drains the buffer.
	hub := NewBroadcaster(1)

	for seq := uint64(1); seq <= 3; seq++ {
		if err := hub.Consume(result(seq)); err != nil {
			t.Fatalf("Consume() error = %v", err)
		}
	}
	if hub.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", hub.Dropped())
	}
}

func TestWebhookPostsDetectionsWithCooldown(t *testing.T) {
	fake := webhook.NewFake()
	s := NewWebhook(fake, time.Minute).(*webhookSink)

	clock := time.Unix(1000, 0)
	s.now = func() time.Time { return clock }

	_ = s.Consume(result(1))
	_ = s.Consume(result(2, 0.9))
	clock = clock.Add(30 * time.Second)
	_ = s.Consume(result(3, 0.9))
	clock = clock.Add(31 * time.Second)
	_ = s.Consume(result(4, 0.8))

	posts := fake.Payloads()
	if len(posts) != 2 {
		t.Fatalf("posted %d results, want 2", len(posts))
	}
	if posts[0].(model.Result).Seq != 2 || posts[1].(model.Result).Seq != 4 {
		t.Errorf("posted seqs %d, %d", posts[0].(model.Result).Seq, posts[1].(model.Result).Seq)
	}

	fake.Fail(errors.New("down"))
	clock = clock.Add(time.Hour)
	if err := s.Consume(result(5, 0.7)); err == nil {
		t.Error("post failure should surface")
	}
}
