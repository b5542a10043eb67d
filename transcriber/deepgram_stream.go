package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"voxtype/config"
	"voxtype/log"
)

const (
	dialTimeout   = 10 * time.Second
	writeTimeout  = 5 * time.Second
	finishTimeout = 3 * time.Second
	readLimit     = 1 << 20
)

var ErrNotConnected = errors.New("stream is not connected")

var (
	keepAliveMsg   = []byte(`{"type":"KeepAlive"}`)
	closeStreamMsg = []byte(`{"type":"CloseStream"}`)
)

// Deepgram dials live-listen websocket streams.
type Deepgram struct {
	cfg config.Deepgram
}

func NewDeepgram(cfg config.Deepgram) *Deepgram {
	return &Deepgram{cfg: cfg}
}

func (d *Deepgram) listenURL() (string, error) {
	endpoint, err := url.Parse(d.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("parse deepgram url: %w", err)
	}
	switch endpoint.Scheme {
	case "https":
		endpoint.Scheme = "wss"
	case "http":
		endpoint.Scheme = "ws"
	}

	q := endpoint.Query()
	q.Set("model", d.cfg.Model)
	q.Set("language", d.cfg.Language)
	q.Set("encoding", d.cfg.Encoding)
	q.Set("sample_rate", strconv.Itoa(d.cfg.SampleRate))
	q.Set("channels", strconv.Itoa(d.cfg.Channels))
	q.Set("interim_results", strconv.FormatBool(d.cfg.InterimResults))
	q.Set("vad_events", strconv.FormatBool(d.cfg.VADEvents))
	q.Set("smart_format", strconv.FormatBool(d.cfg.SmartFormat))
	q.Set("no_delay", strconv.FormatBool(d.cfg.NoDelay))
	if d.cfg.UtteranceEnd > 0 {
		q.Set("utterance_end_ms", strconv.FormatInt(d.cfg.UtteranceEnd.Milliseconds(), 10))
	}
	if d.cfg.Endpointing > 0 {
		q.Set("endpointing", strconv.FormatInt(d.cfg.Endpointing.Milliseconds(), 10))
	}
	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

func (d *Deepgram) Dial(ctx context.Context) (Conn, error) {
	endpoint, err := d.listenURL()
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.cfg.APIKey)

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	ws, resp, err := websocket.Dial(dialCtx, endpoint, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deepgram handshake (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("deepgram dial: %w", err)
	}
	ws.SetReadLimit(readLimit)

	// The stream outlives the caller's cancellation so Finish can still
	// collect the final results.
	return newStream(context.WithoutCancel(ctx), ws, d.cfg.KeepAlive), nil
}

type deepgramStream struct {
	ws     *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	events chan Event

	connected  atomic.Bool
	closing    atomic.Bool
	readDone   chan struct{}
	finishOnce sync.Once
	finishErr  error
}

func newStream(parent context.Context, ws *websocket.Conn, keepAlive time.Duration) *deepgramStream {
	ctx, cancel := context.WithCancel(parent)
	s := &deepgramStream{
		ws:       ws,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan Event, 64),
		readDone: make(chan struct{}),
	}
	s.connected.Store(true)
	go s.readLoop()
	if keepAlive > 0 {
		go s.keepAliveLoop(keepAlive)
	}
	return s
}

func (s *deepgramStream) Events() <-chan Event { return s.events }

func (s *deepgramStream) IsConnected() bool { return s.connected.Load() }

func (s *deepgramStream) Send(pcm []byte) error {
	if !s.connected.Load() || s.closing.Load() {
		return ErrNotConnected
	}
	return s.ws.Write(s.ctx, websocket.MessageBinary, pcm)
}

func (s *deepgramStream) Finish() error {
	s.finishOnce.Do(func() {
		s.closing.Store(true)
		if s.connected.Load() {
			wctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
			s.finishErr = s.ws.Write(wctx, websocket.MessageText, closeStreamMsg)
			cancel()
		}

		// Deepgram flushes its last results and then closes the socket.
		select {
		case <-s.readDone:
		case <-time.After(finishTimeout):
			log.Warn("deepgram did not close the stream in time, closing locally")
		}
		s.ws.Close(websocket.StatusNormalClosure, "")
		s.cancel()
		<-s.readDone
		s.connected.Store(false)
	})
	return s.finishErr
}

func (s *deepgramStream) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *deepgramStream) readLoop() {
	defer close(s.readDone)
	defer close(s.events)
	defer s.connected.Store(false)

	s.emit(Open{})
	for {
		_, data, err := s.ws.Read(s.ctx)
		if err != nil {
			s.connected.Store(false)
			s.emit(s.closeEvent(err))
			return
		}
		s.emit(parseMessage(data))
	}
}

func (s *deepgramStream) closeEvent(err error) Event {
	var ce websocket.CloseError
	if errors.As(err, &ce) && ce.Code == websocket.StatusNormalClosure {
		return Close{Reason: ce.Reason}
	}
	if s.closing.Load() {
		return Close{Reason: "closed locally"}
	}
	return Error{Err: fmt.Errorf("deepgram read: %w", err)}
}

func (s *deepgramStream) keepAliveLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.readDone:
			return
		case <-ticker.C:
			if s.closing.Load() {
				return
			}
			wctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
			err := s.ws.Write(wctx, websocket.MessageText, keepAliveMsg)
			cancel()
			if err != nil {
				log.Warnf("deepgram keepalive: %v", err)
				return
			}
		}
	}
}

type resultsMessage struct {
	IsFinal     bool `json:"is_final"`
	SpeechFinal bool `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type utteranceEndMessage struct {
	LastWordEnd float64 `json:"last_word_end"`
}

type speechStartedMessage struct {
	Timestamp float64 `json:"timestamp"`
}

type metadataMessage struct {
	RequestID string  `json:"request_id"`
	Duration  float64 `json:"duration"`
}

type errorMessage struct {
	Description string `json:"description"`
	Message     string `json:"message"`
}

// parseMessage decodes one text frame. Each message type is decoded into
// its own shape because fields such as "channel" differ between types.
func parseMessage(data []byte) Event {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Error{Err: fmt.Errorf("decode message: %w", err)}
	}

	switch head.Type {
	case "Results":
		var m resultsMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return Error{Err: fmt.Errorf("decode results: %w", err)}
		}
		ev := Transcript{IsFinal: m.IsFinal, SpeechFinal: m.SpeechFinal}
		if len(m.Channel.Alternatives) > 0 {
			ev.Text = m.Channel.Alternatives[0].Transcript
			ev.Confidence = m.Channel.Alternatives[0].Confidence
		}
		return ev
	case "UtteranceEnd":
		var m utteranceEndMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return Error{Err: fmt.Errorf("decode utterance end: %w", err)}
		}
		return UtteranceEnd{LastWordEnd: m.LastWordEnd}
	case "SpeechStarted":
		var m speechStartedMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return Error{Err: fmt.Errorf("decode speech started: %w", err)}
		}
		return SpeechStarted{Timestamp: m.Timestamp}
	case "Metadata":
		var m metadataMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return Error{Err: fmt.Errorf("decode metadata: %w", err)}
		}
		return Metadata{RequestID: m.RequestID, Duration: m.Duration}
	case "Error":
		var m errorMessage
		json.Unmarshal(data, &m)
		return Error{Err: fmt.Errorf("deepgram: %s %s", m.Description, m.Message)}
	default:
		return Unhandled{Type: head.Type, Raw: data}
	}
}
