package transcriber

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"voxtype/config"
)

type serverLog struct {
	mu          sync.Mutex
	auth        string
	query       url.Values
	audioBytes  int
	keepAlives  int
	closeStream bool
}

func (l *serverLog) snapshot() serverLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	return serverLog{auth: l.auth, query: l.query, audioBytes: l.audioBytes, keepAlives: l.keepAlives, closeStream: l.closeStream}
}

// newFakeDeepgram serves a live-listen endpoint that writes script on
// connect and answers CloseStream with finals before closing normally.
func newFakeDeepgram(t *testing.T, script, finals []string) (*httptest.Server, *serverLog) {
	t.Helper()
	sl := &serverLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sl.mu.Lock()
		sl.auth = r.Header.Get("Authorization")
		sl.query = r.URL.Query()
		sl.mu.Unlock()
		if r.Header.Get("Authorization") != "Token test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ctx := context.Background()
		for _, m := range script {
			if err := c.Write(ctx, websocket.MessageText, []byte(m)); err != nil {
				return
			}
		}
		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			if typ == websocket.MessageBinary {
				sl.mu.Lock()
				sl.audioBytes += len(data)
				sl.mu.Unlock()
				continue
			}
			switch {
			case strings.Contains(string(data), "KeepAlive"):
				sl.mu.Lock()
				sl.keepAlives++
				sl.mu.Unlock()
			case strings.Contains(string(data), "CloseStream"):
				sl.mu.Lock()
				sl.closeStream = true
				sl.mu.Unlock()
				for _, m := range finals {
					c.Write(ctx, websocket.MessageText, []byte(m))
				}
				c.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, sl
}

func testConfig(serverURL string) config.Deepgram {
	cfg := config.Default().Deepgram
	cfg.URL = serverURL + "/v1/listen"
	cfg.APIKey = "test-key"
	cfg.KeepAlive = 0
	return cfg
}

func results(text string, isFinal, speechFinal bool) string {
	b := func(v bool) string {
		if v {
			return "true"
		}
		return "false"
	}
	return `{"type":"Results","is_final":` + b(isFinal) + `,"speech_final":` + b(speechFinal) +
		`,"channel":{"alternatives":[{"transcript":"` + text + `","confidence":0.9}]}}`
}

func collect(ch <-chan Event, timeout time.Duration) ([]Event, bool) {
	var got []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return got, true
			}
			got = append(got, ev)
		case <-deadline:
			return got, false
		}
	}
}

func TestListenURL(t *testing.T) {
	d := NewDeepgram(testConfig("https://api.example.com"))
	raw, err := d.listenURL()
	if err != nil {
		t.Fatal(err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if u.Scheme != "wss" {
		t.Errorf("scheme = %q, want wss", u.Scheme)
	}
	want := map[string]string{
		"model":            "nova-3",
		"language":         "en-US",
		"encoding":         "linear16",
		"sample_rate":      "16000",
		"channels":         "1",
		"interim_results":  "true",
		"utterance_end_ms": "1000",
		"vad_events":       "true",
		"endpointing":      "300",
		"smart_format":     "true",
		"no_delay":         "true",
	}
	q := u.Query()
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Event
	}{
		{"interim", results("hel", false, false), Transcript{Text: "hel", Confidence: 0.9}},
		{"final", results("hello", true, false), Transcript{Text: "hello", Confidence: 0.9, IsFinal: true}},
		{"speech final", results("hello", true, true), Transcript{Text: "hello", Confidence: 0.9, IsFinal: true, SpeechFinal: true}},
		{"no alternatives", `{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`, Transcript{IsFinal: true}},
		{"utterance end", `{"type":"UtteranceEnd","channel":[0,1],"last_word_end":2.5}`, UtteranceEnd{LastWordEnd: 2.5}},
		{"speech started", `{"type":"SpeechStarted","channel":[0],"timestamp":1.25}`, SpeechStarted{Timestamp: 1.25}},
		{"metadata", `{"type":"Metadata","request_id":"abc","duration":3.5}`, Metadata{RequestID: "abc", Duration: 3.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseMessage([]byte(tt.in)); got != tt.want {
				t.Errorf("parseMessage = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseMessageUnknownAndMalformed(t *testing.T) {
	if ev, ok := parseMessage([]byte(`{"type":"Warning"}`)).(Unhandled); !ok || ev.Type != "Warning" {
		t.Errorf("unknown type: got %#v", ev)
	}
	if _, ok := parseMessage([]byte(`not json`)).(Error); !ok {
		t.Error("malformed JSON should produce an Error event")
	}
	if _, ok := parseMessage([]byte(`{"type":"Error","description":"bad audio"}`)).(Error); !ok {
		t.Error("Error message should produce an Error event")
	}
}

func TestDeepgramStreamLifecycle(t *testing.T) {
	srv, sl := newFakeDeepgram(t,
		[]string{
			`{"type":"SpeechStarted","channel":[0],"timestamp":0.1}`,
			results("hello", true, false),
			results("world", true, true),
			`{"type":"UtteranceEnd","channel":[0,1],"last_word_end":1.1}`,
		},
		[]string{
			results("tail", true, true),
			`{"type":"Metadata","request_id":"req-1","duration":1.2}`,
		},
	)
	cfg := testConfig(srv.URL)
	cfg.KeepAlive = 20 * time.Millisecond

	conn, err := NewDeepgram(cfg).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if !conn.IsConnected() {
		t.Fatal("IsConnected = false after dial")
	}

	var (
		events []Event
		closed bool
		done   = make(chan struct{})
	)
	go func() {
		events, closed = collect(conn.Events(), 5*time.Second)
		close(done)
	}()

	pcm := make([]byte, 3200)
	for i := 0; i < 3; i++ {
		if err := conn.Send(pcm); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	time.Sleep(100 * time.Millisecond)

	if err := conn.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	<-done
	if !closed {
		t.Fatal("events channel was not closed after Finish")
	}
	if conn.IsConnected() {
		t.Error("IsConnected = true after Finish")
	}
	if err := conn.Finish(); err != nil {
		t.Errorf("second Finish: %v", err)
	}
	if err := conn.Send(pcm); err == nil {
		t.Error("Send after Finish should fail")
	}

	if _, ok := events[0].(Open); !ok {
		t.Errorf("first event = %#v, want Open", events[0])
	}
	if _, ok := events[len(events)-1].(Close); !ok {
		t.Errorf("last event = %#v, want Close", events[len(events)-1])
	}
	var texts []string
	var sawUtteranceEnd, sawSpeechStarted, sawMetadata bool
	for _, ev := range events {
		switch ev := ev.(type) {
		case Transcript:
			texts = append(texts, ev.Text)
		case UtteranceEnd:
			sawUtteranceEnd = true
		case SpeechStarted:
			sawSpeechStarted = true
		case Metadata:
			sawMetadata = ev.RequestID == "req-1"
		}
	}
	if strings.Join(texts, ",") != "hello,world,tail" {
		t.Errorf("transcripts = %v", texts)
	}
	if !sawUtteranceEnd || !sawSpeechStarted || !sawMetadata {
		t.Errorf("missing events: utteranceEnd=%v speechStarted=%v metadata=%v", sawUtteranceEnd, sawSpeechStarted, sawMetadata)
	}

	got := sl.snapshot()
	if got.audioBytes != 3*len(pcm) {
		t.Errorf("server received %d audio bytes, want %d", got.audioBytes, 3*len(pcm))
	}
	if !got.closeStream {
		t.Error("server never received CloseStream")
	}
	if got.keepAlives == 0 {
		t.Error("no KeepAlive messages were sent")
	}
	if got.query.Get("model") != "nova-3" {
		t.Errorf("model = %q", got.query.Get("model"))
	}
}

func TestDeepgramDialRejected(t *testing.T) {
	srv, _ := newFakeDeepgram(t, nil, nil)
	cfg := testConfig(srv.URL)
	cfg.APIKey = "wrong"
	if _, err := NewDeepgram(cfg).Dial(context.Background()); err == nil {
		t.Fatal("Dial with a bad key should fail")
	}
}

func TestDeepgramServerDrop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		c.Close(websocket.StatusInternalError, "boom")
	}))
	t.Cleanup(srv.Close)

	conn, err := NewDeepgram(testConfig(srv.URL)).Dial(context.Background())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	events, closed := collect(conn.Events(), 5*time.Second)
	if !closed {
		t.Fatal("events channel not closed after server drop")
	}
	if conn.IsConnected() {
		t.Error("IsConnected = true after server drop")
	}
	if _, ok := events[len(events)-1].(Error); !ok {
		t.Errorf("last event = %#v, want Error", events[len(events)-1])
	}
	conn.Finish()
}
