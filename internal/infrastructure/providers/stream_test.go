package providers

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_OrderPreserved(t *testing.T) {
	body := strings.NewReader(
		`data: {"id":"c","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"1"},"finish_reason":null}]}` + "\n\n" +
			`data: {"id":"c","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"2"},"finish_reason":null}]}` + "\n\n" +
			`data: {"id":"c","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"3"},"finish_reason":"stop"}]}` + "\n\n" +
			"data: [DONE]\n\n")

	s := newStream(io.NopCloser(body), parseOpenAIFrame)

	var got []string
	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, chunk.Choices[0].Delta.Content)
	}
	assert.Equal(t, []string{"1", "2", "3"}, got)
	assert.Equal(t, "stop", s.FinishReason)
}

func TestStream_RecvAfterDoneStaysEOF(t *testing.T) {
	s := newStream(io.NopCloser(strings.NewReader("data: [DONE]\n\n")), parseOpenAIFrame)

	_, err := s.Recv()
	assert.Equal(t, io.EOF, err)
	_, err = s.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStream_TruncatedUpstream(t *testing.T) {
	body := strings.NewReader(
		`data: {"id":"c","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"x"},"finish_reason":null}]}` + "\n\n")

	s := newStream(io.NopCloser(body), parseOpenAIFrame)

	chunk, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "x", chunk.Choices[0].Delta.Content)

	// stream closed without [DONE], the truncation must not look complete
	_, err = s.Recv()
	assert.Equal(t, io.ErrUnexpectedEOF, err)

	_, err = s.Recv()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}

func TestStream_MalformedFrameFails(t *testing.T) {
	body := strings.NewReader("data: {not json}\n\n")
	s := newStream(io.NopCloser(body), parseOpenAIFrame)

	_, err := s.Recv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed")

	// subsequent reads keep failing
	_, err = s.Recv()
	assert.Equal(t, io.ErrUnexpectedEOF, err)
}
