package protocol

import (
	"errors"
	"fmt"
	"io"
)

// DefaultBufferSize bounds a single read from the connection.
const DefaultBufferSize = 1024

// Stats counts wire activity for one Run.
type Stats struct {
	BytesRead      uint64
	BytesEchoed    uint64
	MessagesOpened uint64
	MessagesClosed uint64
}

// Engine drives the framed-echo protocol over one duplex stream.
//
// An Engine is single-connection state; it must not be shared across
// concurrent Run calls. Chunking of the inbound stream is arbitrary: the
// scan resumes across read boundaries with State as the only carried
// memory, so a message may span any number of reads.
type Engine struct {
	bufSize int
	state   State
	stats   Stats
}

// NewEngine returns an engine with the default read buffer.
func NewEngine() *Engine {
	e, _ := NewEngineWithBuffer(DefaultBufferSize)
	return e
}

// NewEngineWithBuffer returns an engine reading up to size bytes per call.
func NewEngineWithBuffer(size int) (*Engine, error) {
	if size <= 0 {
		return nil, ErrInvalidBuffer
	}
	return &Engine{bufSize: size}, nil
}

// State reports the current scanning state.
func (e *Engine) State() State {
	return e.state
}

// Stats reports counters for the current or most recent Run.
func (e *Engine) Stats() Stats {
	return e.stats
}

// Run serves one connection: it writes the Ready greeting, then reads
// chunks and echoes transformed in-message bytes until the peer stops
// sending. A zero-byte read with io.EOF is the clean terminal signal and
// yields nil. Transport failures surface as ErrReadFailed/ErrWriteFailed
// with the underlying error wrapped; Run performs no further I/O after
// either. The caller owns closing rw.
func (e *Engine) Run(rw io.ReadWriter) error {
	e.state = StateWaitForMsg
	e.stats = Stats{}

	if _, err := rw.Write([]byte{Ready}); err != nil {
		return fmt.Errorf("%w: greeting: %w", ErrWriteFailed, err)
	}

	buf := make([]byte, e.bufSize)
	for {
		n, err := rw.Read(buf)
		if n > 0 {
			e.stats.BytesRead += uint64(n)
			if werr := e.scan(rw, buf[:n]); werr != nil {
				return werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrReadFailed, err)
		}
	}
}

// scan applies the transition table to one chunk, writing each echoed
// byte individually before the next byte is classified.
func (e *Engine) scan(w io.Writer, chunk []byte) error {
	var out [1]byte
	for _, b := range chunk {
		switch e.state {
		case StateWaitForMsg:
			if b == MsgStart {
				e.state = StateInMsg
				e.stats.MessagesOpened++
			}
			// everything else, MsgEnd included, is consumed silently
		case StateInMsg:
			if b == MsgEnd {
				e.state = StateWaitForMsg
				e.stats.MessagesClosed++
				continue
			}
			// MsgStart inside a message is plain data; compatibility-pinned
			out[0] = Transform(b)
			if _, err := w.Write(out[:]); err != nil {
				return fmt.Errorf("%w: %w", ErrWriteFailed, err)
			}
			e.stats.BytesEchoed++
		}
	}
	return nil
}
