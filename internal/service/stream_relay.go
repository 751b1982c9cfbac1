package service

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
	"github.com/user/curtas/internal/utils"
)

const (
	defaultMinChunkRunes = 50
	defaultMaxChunkDelay = 300 * time.Millisecond
	maxSSELineBytes      = 1 << 20
)

// UpstreamError 上游在流中返回的错误
type UpstreamError struct {
	Message string
}

func (e *UpstreamError) Error() string {
	return e.Message
}

// StreamRelay 把上游 SSE 响应转成文本块：攒够 MinChunk 个字符或距上次输出超过 MaxDelay 就输出一次，
// 顺序与上游一致
type StreamRelay struct {
	MinChunk int
	MaxDelay time.Duration
}

// NewStreamRelay 默认 50 字符 / 300ms
func NewStreamRelay() *StreamRelay {
	return &StreamRelay{MinChunk: defaultMinChunkRunes, MaxDelay: defaultMaxChunkDelay}
}

// Relay 读取 body 直到 [DONE]、EOF、上游错误或 ctx 取消。emit 返回错误时立即停止。
// 正常结束返回 nil；上游错误返回 *UpstreamError；已攒的文本在返回前都会输出
func (r *StreamRelay) Relay(ctx context.Context, body io.Reader, emit func(text string) error) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(lines)
		sc := bufio.NewScanner(body)
		sc.Buffer(make([]byte, 0, 64*1024), maxSSELineBytes)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
		readErr <- sc.Err()
	}()

	var buf strings.Builder
	var timer *time.Timer
	var timerC <-chan time.Time
	pending := 0
	last := time.Now()

	disarm := func() {
		if timer != nil {
			timer.Stop()
		}
		timerC = nil
	}
	arm := func() {
		if timerC != nil {
			return
		}
		wait := r.MaxDelay - time.Since(last)
		if wait < 0 {
			wait = 0
		}
		if timer == nil {
			timer = time.NewTimer(wait)
		} else {
			timer.Reset(wait)
		}
		timerC = timer.C
	}
	flush := func() error {
		disarm()
		if pending == 0 {
			return nil
		}
		text := buf.String()
		buf.Reset()
		pending = 0
		last = time.Now()
		return emit(text)
	}
	defer disarm()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timerC:
			timerC = nil
			if err := flush(); err != nil {
				return err
			}

		case line, ok := <-lines:
			if !ok {
				if err := flush(); err != nil {
					return err
				}
				if err := <-readErr; err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					return err
				}
				return nil
			}

			data, isData := parseSSELine(line)
			if !isData {
				continue
			}
			if data == "[DONE]" {
				return flush()
			}

			text, err := parseStreamData(data)
			if err != nil {
				if ferr := flush(); ferr != nil {
					return ferr
				}
				return err
			}
			if text == "" {
				continue
			}

			buf.WriteString(text)
			pending += utf8.RuneCountInString(text)
			if pending >= r.MinChunk || time.Since(last) >= r.MaxDelay {
				if err := flush(); err != nil {
					return err
				}
				continue
			}
			arm()
		}
	}
}

// parseSSELine 返回 data 行的内容；空行、注释和其他字段返回 false
func parseSSELine(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if line == "" || strings.HasPrefix(line, ":") {
		return "", false
	}
	data, ok := strings.CutPrefix(line, "data:")
	if !ok {
		return "", false
	}
	return strings.TrimPrefix(data, " "), true
}

// parseStreamData 解析一条 data，非 JSON 内容原样作为文本
func parseStreamData(data string) (string, error) {
	trimmed := strings.TrimSpace(data)
	if !strings.HasPrefix(trimmed, "{") {
		return data, nil
	}
	var chunk utils.ChatStreamChunk
	if err := json.Unmarshal([]byte(trimmed), &chunk); err != nil {
		return data, nil
	}
	if msg := chunk.ErrorMessage(); msg != "" {
		return "", &UpstreamError{Message: msg}
	}
	return chunk.TextContent(), nil
}

// IsUpstreamError 是否为上游在流中返回的错误
func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}
