package utils

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// HTTPClient 上游 JSON 接口客户端
type HTTPClient struct {
	httpClient *http.Client
	userAgent  string
}

// NewHTTPClient 创建客户端；timeout 为 0 时不限制整体耗时（流式响应需要），只限制建连和首包
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 60 * time.Second,
	}
	return &HTTPClient{
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		userAgent:  "curtas-server/1.0",
	}
}

// PostJSON 发送 JSON POST 请求，调用方负责关闭响应体
func (c *HTTPClient) PostJSON(ctx context.Context, url string, headers map[string]string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.httpClient.Do(req)
}
