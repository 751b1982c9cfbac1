package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/user/curtas/internal/config"
	"github.com/user/curtas/internal/logging"
	"github.com/user/curtas/internal/metrics"
	"github.com/user/curtas/internal/utils"
)

const (
	generateTimeout   = 90 * time.Second
	errorBodyMaxBytes = 4096
)

// GenerationRequest 一次生成请求；ImageURL 非空时为图文分析，可以是 http(s) 地址或 data URL
type GenerationRequest struct {
	Model       string
	Prompt      string
	ImageURL    string
	Temperature *float64
	MaxTokens   *int
}

func (r GenerationRequest) messages() []utils.ChatMessage {
	if r.ImageURL == "" {
		return []utils.ChatMessage{{Role: "user", Content: r.Prompt}}
	}
	return []utils.ChatMessage{{
		Role: "user",
		Content: []utils.ChatContentPart{
			{Type: "text", Text: r.Prompt},
			{Type: "image_url", ImageURL: &utils.ChatImageURL{URL: r.ImageURL}},
		},
	}}
}

// GenerationProvider 上游生成服务
type GenerationProvider interface {
	Name() string
	// StartGeneration 发起流式请求，返回上游 SSE 响应体，ctx 取消即中止
	StartGeneration(ctx context.Context, req GenerationRequest) (io.ReadCloser, error)
	// Generate 非流式请求，返回完整文本
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// ProviderStatusError 上游返回非 2xx
type ProviderStatusError struct {
	StatusCode int
	Message    string
}

func (e *ProviderStatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Message)
}

// ChatCompletionsClient OpenAI 兼容的 chat/completions 客户端，带熔断
type ChatCompletionsClient struct {
	name          string
	endpoint      string
	headers       map[string]string
	modelOverride string
	client        *utils.HTTPClient
	breaker       *gobreaker.CircuitBreaker[*http.Response]
	log           zerolog.Logger
}

// NewChatCompletionsClient modelOverride 非空时忽略请求中的模型
func NewChatCompletionsClient(name, endpoint string, headers map[string]string, modelOverride string) *ChatCompletionsClient {
	c := &ChatCompletionsClient{
		name:          name,
		endpoint:      endpoint,
		headers:       headers,
		modelOverride: modelOverride,
		client:        utils.NewHTTPClient(0),
		log:           logging.With("ai").With().Str("provider", name).Logger(),
	}
	metrics.ProviderCircuitState.WithLabelValues(name).Set(0)

	c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return counts.ConsecutiveFailures >= 5
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("熔断状态变化")
			metrics.ProviderCircuitState.WithLabelValues(name).Set(circuitStateValue(to))
		},
		IsSuccessful: isProviderSuccess,
	})
	return c
}

// NewOpenRouterClient OpenRouter 客户端
func NewOpenRouterClient(cfg config.AIConfig, siteURL, siteName string) *ChatCompletionsClient {
	headers := map[string]string{
		"Authorization": "Bearer " + cfg.OpenRouterAPIKey,
		"HTTP-Referer":  siteURL,
		"X-Title":       siteName,
	}
	return NewChatCompletionsClient("openrouter", cfg.OpenRouterURL, headers, "")
}

// NewOllamaClient 本地 Ollama 的 OpenAI 兼容接口，固定使用配置的模型
func NewOllamaClient(cfg config.AIConfig) *ChatCompletionsClient {
	endpoint := strings.TrimRight(cfg.OllamaHost, "/") + "/v1/chat/completions"
	return NewChatCompletionsClient("ollama", endpoint, nil, cfg.OllamaModel)
}

// NewProvider 按配置选择上游
func NewProvider(cfg *config.Config) GenerationProvider {
	if cfg.AI.Provider == "ollama" {
		return NewOllamaClient(cfg.AI)
	}
	if cfg.AI.OpenRouterAPIKey == "" {
		logging.Warn().Msg("OPENROUTER_API_KEY 未设置，生成请求会被上游拒绝")
	}
	return NewOpenRouterClient(cfg.AI, cfg.SiteUrl, cfg.SiteName)
}

func (c *ChatCompletionsClient) Name() string { return c.name }

func (c *ChatCompletionsClient) model(requested string) string {
	if c.modelOverride != "" {
		return c.modelOverride
	}
	return ResolveModel(requested)
}

// StartGeneration 发起流式请求
func (c *ChatCompletionsClient) StartGeneration(ctx context.Context, req GenerationRequest) (io.ReadCloser, error) {
	resp, err := c.do(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Generate 非流式请求
func (c *ChatCompletionsClient) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	resp, err := c.do(ctx, req, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out utils.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if out.Error != nil && out.Error.Message != "" {
		return "", &UpstreamError{Message: out.Error.Message}
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return out.Choices[0].Message.Content, nil
}

func (c *ChatCompletionsClient) do(ctx context.Context, req GenerationRequest, stream bool) (*http.Response, error) {
	mode := "sync"
	if stream {
		mode = "stream"
	}

	payload := utils.ChatRequest{
		Model:       c.model(req.Model),
		Messages:    req.messages(),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.client.PostJSON(ctx, c.endpoint, c.headers, payload)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			defer resp.Body.Close()
			body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyMaxBytes))
			return nil, &ProviderStatusError{StatusCode: resp.StatusCode, Message: upstreamErrorMessage(body)}
		}
		return resp, nil
	})

	switch {
	case err == nil:
		metrics.ProviderRequests.WithLabelValues(c.name, mode, "success").Inc()
		return resp, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.ProviderRequests.WithLabelValues(c.name, mode, "rejected").Inc()
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	default:
		metrics.ProviderRequests.WithLabelValues(c.name, mode, "failure").Inc()
		if ctx.Err() == nil {
			c.log.Error().Err(err).Str("model", payload.Model).Str("mode", mode).Msg("上游请求失败")
		}
		return nil, err
	}
}

// isProviderSuccess 客户端错误和主动取消不计入熔断
func isProviderSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *ProviderStatusError
	if errors.As(err, &se) {
		return se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests
	}
	return false
}

func circuitStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// upstreamErrorMessage 尽量从错误体中取出 error.message
func upstreamErrorMessage(body []byte) string {
	var parsed struct {
		Error *utils.ChatError `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return http.StatusText(http.StatusBadGateway)
	}
	return msg
}

var (
	base64Payload = regexp.MustCompile(`^[A-Za-z0-9+/]+={0,2}$`)
	dataURLPrefix = regexp.MustCompile(`^data:image/[a-zA-Z0-9.+-]+;base64,`)
)

// ErrInvalidImage 图片参数无效
var ErrInvalidImage = errors.New("invalid image")

// NormalizeImageSource 校验图片来源并统一为可发送给上游的 URL；base64 没有前缀时按 jpeg 补成 data URL
func NormalizeImageSource(imageURL, imageBase64 string) (string, error) {
	if imageURL = strings.TrimSpace(imageURL); imageURL != "" {
		u, err := url.ParseRequestURI(imageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return "", fmt.Errorf("%w: url", ErrInvalidImage)
		}
		return imageURL, nil
	}

	raw := strings.TrimSpace(imageBase64)
	if raw == "" {
		return "", fmt.Errorf("%w: missing", ErrInvalidImage)
	}
	if loc := dataURLPrefix.FindStringIndex(raw); loc != nil {
		if !base64Payload.MatchString(raw[loc[1]:]) {
			return "", fmt.Errorf("%w: base64", ErrInvalidImage)
		}
		return raw, nil
	}
	if !base64Payload.MatchString(raw) {
		return "", fmt.Errorf("%w: base64", ErrInvalidImage)
	}
	return "data:image/jpeg;base64," + raw, nil
}
