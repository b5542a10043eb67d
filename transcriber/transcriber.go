// Package transcriber streams PCM audio to a live recognition service and
// delivers what it hears as a channel of Event values.
package transcriber

import "context"

// Conn is one live recognition stream.
type Conn interface {
	// Send queues a chunk of raw PCM audio.
	Send(pcm []byte) error
	// Events is closed after the stream has fully shut down.
	Events() <-chan Event
	IsConnected() bool
	// Finish asks the service to flush pending results and closes the stream.
	// Calling it more than once is allowed.
	Finish() error
}

type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}
