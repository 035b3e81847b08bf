package providers

import (
	"bufio"
	"io"
	"strings"

	"inferxgate.backend/internal/domain/entities"
)

type streamState int

const (
	stateAwaitingStart streamState = iota
	stateStreaming
	stateCompleted
	stateFailed
)

// frameParser turns one SSE event into zero or more normalized chunks.
// done signals the terminal frame.
type frameParser func(event, data string) (chunks []*entities.StreamChunk, done bool, err error)

// Stream delivers normalized chunks from an upstream SSE response.
// Chunks arrive in upstream order; Recv returns io.EOF after the terminal
// frame and closing the stream aborts the upstream read.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	parse   frameParser
	state   streamState
	pending []*entities.StreamChunk

	// Usage carries the final token counts once the stream completes
	Usage        *entities.Usage
	FinishReason string
}

func newStream(body io.ReadCloser, parse frameParser) *Stream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &Stream{
		body:    body,
		scanner: scanner,
		parse:   parse,
		state:   stateAwaitingStart,
	}
}

// Recv returns the next chunk, or io.EOF when the stream has completed
func (s *Stream) Recv() (*entities.StreamChunk, error) {
	for {
		if len(s.pending) > 0 {
			chunk := s.pending[0]
			s.pending = s.pending[1:]
			return chunk, nil
		}

		if s.state == stateCompleted {
			return nil, io.EOF
		}
		if s.state == stateFailed {
			return nil, io.ErrUnexpectedEOF
		}

		event, data, err := s.nextFrame()
		if err != nil {
			s.state = stateFailed
			if err == io.EOF {
				// upstream closed without a terminal frame, the response
				// is truncated and must not look complete
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}

		chunks, done, err := s.parse(event, data)
		if err != nil {
			s.state = stateFailed
			return nil, err
		}

		if s.state == stateAwaitingStart && (len(chunks) > 0 || done) {
			s.state = stateStreaming
		}

		for _, c := range chunks {
			if c.Usage != nil {
				s.Usage = c.Usage
			}
			for _, choice := range c.Choices {
				if choice.FinishReason != nil {
					s.FinishReason = *choice.FinishReason
				}
			}
		}

		s.pending = append(s.pending, chunks...)
		if done {
			s.state = stateCompleted
		}
	}
}

// nextFrame reads one SSE event (event name + data payload)
func (s *Stream) nextFrame() (string, string, error) {
	var event string
	var data strings.Builder

	for s.scanner.Scan() {
		line := s.scanner.Text()
		if line == "" {
			if data.Len() > 0 || event != "" {
				return event, data.String(), nil
			}
			continue
		}
		if strings.HasPrefix(line, "event:") {
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			continue
		}
		if strings.HasPrefix(line, "data:") {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	if err := s.scanner.Err(); err != nil {
		return "", "", err
	}
	if data.Len() > 0 || event != "" {
		return event, data.String(), nil
	}
	return "", "", io.EOF
}

// Close aborts the upstream read
func (s *Stream) Close() error {
	return s.body.Close()
}
