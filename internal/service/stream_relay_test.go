package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sseBody(lines ...string) io.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

func collect(t *testing.T, relay *StreamRelay, body io.Reader) ([]string, error) {
	t.Helper()
	var out []string
	err := relay.Relay(context.Background(), body, func(text string) error {
		out = append(out, text)
		return nil
	})
	return out, err
}

func TestRelayParsesAndCoalesces(t *testing.T) {
	relay := &StreamRelay{MinChunk: 10, MaxDelay: time.Hour}
	body := sseBody(
		": OPENROUTER PROCESSING",
		"",
		`data: {"choices":[{"delta":{"content":"Olá, "}}]}`,
		`data: {"choices":[{"delta":{"content":"tudo bem?"}}]}`,
		"event: ping",
		`data: {"choices":[{"delta":{"content":" Sim"}}]}`,
		"data: [DONE]",
		`data: {"choices":[{"delta":{"content":"ignored"}}]}`,
	)

	out, err := collect(t, relay, body)
	require.NoError(t, err)
	require.Equal(t, []string{"Olá, tudo bem?", " Sim"}, out)
}

func TestRelayPreservesOrderWithoutCoalescing(t *testing.T) {
	relay := &StreamRelay{MinChunk: 1, MaxDelay: time.Hour}
	body := sseBody(
		`data: {"choices":[{"text":"a"}]}`,
		`data: {"content":"b"}`,
		`data: {"text":"c"}`,
		`data: {"delta":{"content":"d"}}`,
		`data: plain text`,
	)
	out, err := collect(t, relay, body)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d", "plain text"}, out)
}

func TestRelayUpstreamErrorFlushesFirst(t *testing.T) {
	relay := &StreamRelay{MinChunk: 100, MaxDelay: time.Hour}
	body := sseBody(
		`data: {"choices":[{"delta":{"content":"parcial"}}]}`,
		`data: {"error":{"message":"Rate limit exceeded"}}`,
		`data: {"choices":[{"delta":{"content":"never"}}]}`,
	)
	out, err := collect(t, relay, body)
	require.Equal(t, []string{"parcial"}, out)
	require.True(t, IsUpstreamError(err))
	require.EqualError(t, err, "Rate limit exceeded")
}

func TestRelayFlushesAfterDelay(t *testing.T) {
	relay := &StreamRelay{MinChunk: 1000, MaxDelay: 20 * time.Millisecond}
	pr, pw := io.Pipe()
	got := make(chan string, 4)

	errc := make(chan error, 1)
	go func() {
		errc <- relay.Relay(context.Background(), pr, func(text string) error {
			got <- text
			return nil
		})
	}()

	_, err := io.WriteString(pw, "data: {\"text\":\"oi\"}\n")
	require.NoError(t, err)

	select {
	case text := <-got:
		require.Equal(t, "oi", text)
	case <-time.After(2 * time.Second):
		t.Fatal("pending text was not flushed by the timer")
	}

	require.NoError(t, pw.Close())
	require.NoError(t, <-errc)
}

func TestRelayStopsOnCancel(t *testing.T) {
	relay := NewStreamRelay()
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- relay.Relay(ctx, pr, func(string) error { return nil })
	}()
	cancel()

	select {
	case err := <-errc:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not return after cancel")
	}
}

func TestRelayStopsWhenEmitFails(t *testing.T) {
	relay := &StreamRelay{MinChunk: 1, MaxDelay: time.Hour}
	sinkErr := errors.New("client gone")
	calls := 0
	err := relay.Relay(context.Background(), sseBody(`data: {"text":"a"}`, `data: {"text":"b"}`), func(string) error {
		calls++
		return sinkErr
	})
	require.ErrorIs(t, err, sinkErr)
	require.Equal(t, 1, calls)
}
