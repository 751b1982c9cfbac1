package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/user/curtas/internal/config"
	"github.com/user/curtas/internal/model"
	"github.com/user/curtas/internal/service"
	"github.com/user/curtas/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeProvider struct {
	mu       sync.Mutex
	body     func() io.ReadCloser
	text     string
	err      error
	requests []service.GenerationRequest
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) StartGeneration(_ context.Context, req service.GenerationRequest) (io.ReadCloser, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.body(), nil
}

func (f *fakeProvider) Generate(_ context.Context, req service.GenerationRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.text, f.err
}

func (f *fakeProvider) lastRequest() service.GenerationRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newAITestHandler(p service.GenerationProvider) (*Handler, *gin.Engine) {
	return newAITestHandlerWithCredits(p, service.NewCreditService(newMemCreditStore(), 100, 100))
}

func newAITestHandlerWithCredits(p service.GenerationProvider, credits *service.CreditService) (*Handler, *gin.Engine) {
	h := &Handler{
		Config:      &config.Config{ConnectionMaxAge: time.Minute},
		Connections: service.NewConnectionRegistry(),
		Provider:    p,
		Relay:       &service.StreamRelay{MinChunk: 1, MaxDelay: 10 * time.Millisecond},
		Credits:     credits,
	}
	r := gin.New()
	r.GET("/api/ai/models", h.ListModels)
	r.GET("/api/ai/generate-text", h.GenerateText)
	r.POST("/api/ai/generate-text", h.GenerateText)
	r.GET("/api/ai/analyze-image", h.AnalyzeImage)
	r.GET("/api/ai/stop-generation", h.StopGeneration)
	r.GET("/api/ai/credits", h.CreditsBalance)
	return h, r
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) utils.Response {
	t.Helper()
	var res utils.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func readEvents(t *testing.T, body io.Reader) []model.StreamEvent {
	t.Helper()
	var events []model.StreamEvent
	sc := bufio.NewScanner(body)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		var ev model.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &ev))
		events = append(events, ev)
	}
	return events
}

func TestGenerateTextNonStreaming(t *testing.T) {
	p := &fakeProvider{text: "Era uma vez"}
	_, r := newAITestHandler(p)

	req := httptest.NewRequest(http.MethodPost, "/api/ai/generate-text",
		strings.NewReader(`{"prompt":"  conte uma história ","model":"otimo","temperature":0.5}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	res := decodeResponse(t, w)
	require.True(t, res.Success)
	data := res.Data.(map[string]interface{})
	require.Equal(t, "Era uma vez", data["text"])
	require.Equal(t, service.ModelGPT4oMini, data["model"])
	require.Equal(t, "conte uma história", p.lastRequest().Prompt)
}

func TestGenerateTextValidation(t *testing.T) {
	_, r := newAITestHandler(&fakeProvider{text: "x"})

	cases := map[string]string{
		"missing prompt":     "/api/ai/generate-text",
		"blank prompt":       "/api/ai/generate-text?prompt=%20%20",
		"temperature > 1":    "/api/ai/generate-text?prompt=oi&temperature=1.5",
		"max_tokens too big": "/api/ai/generate-text?prompt=oi&max_tokens=5000",
		"max_tokens zero":    "/api/ai/generate-text?prompt=oi&max_tokens=0",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
			require.Equal(t, http.StatusBadRequest, w.Code)
			require.False(t, decodeResponse(t, w).Success)
		})
	}
}

func TestGenerateTextProviderErrors(t *testing.T) {
	_, r := newAITestHandler(&fakeProvider{err: service.ErrProviderUnavailable})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ai/generate-text?prompt=oi", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	_, r = newAITestHandler(&fakeProvider{err: &service.ProviderStatusError{StatusCode: 402, Message: "sem créditos"}})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ai/generate-text?prompt=oi&streaming=true", nil))
	require.Equal(t, 402, w.Code)
	require.Equal(t, "sem créditos", decodeResponse(t, w).Message)
}

func TestAnalyzeImageRequiresValidImage(t *testing.T) {
	p := &fakeProvider{text: "um gato"}
	_, r := newAITestHandler(p)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ai/analyze-image?imageBase64=%25%25%25", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ai/analyze-image?imageBase64=aGVsbG8=", nil))
	require.Equal(t, http.StatusOK, w.Code)
	req := p.lastRequest()
	require.Equal(t, "data:image/jpeg;base64,aGVsbG8=", req.ImageURL)
	require.NotEmpty(t, req.Prompt)
}

func TestGenerateTextStreaming(t *testing.T) {
	upstream := "data: {\"choices\":[{\"delta\":{\"content\":\"Olá\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\" mundo\"}}]}\n\n" +
		"data: [DONE]\n\n"
	p := &fakeProvider{body: func() io.ReadCloser { return io.NopCloser(strings.NewReader(upstream)) }}
	h, r := newAITestHandler(p)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ai/generate-text?prompt=oi&streaming=true", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := readEvents(t, w.Body)
	require.GreaterOrEqual(t, len(events), 3)
	require.Equal(t, model.StatusConnected, events[0].Status)
	require.NotEmpty(t, events[0].ConnectionID)

	var text strings.Builder
	for _, ev := range events[1 : len(events)-1] {
		require.Empty(t, ev.Error)
		text.WriteString(ev.Text)
	}
	require.Equal(t, "Olá mundo", text.String())
	require.True(t, events[len(events)-1].Done)
	require.Zero(t, h.Connections.Len())
}

func TestGenerateTextStreamingUpstreamError(t *testing.T) {
	upstream := "data: {\"choices\":[{\"delta\":{\"content\":\"parcial\"}}]}\n\n" +
		"data: {\"error\":{\"message\":\"limite excedido\"}}\n\n"
	p := &fakeProvider{body: func() io.ReadCloser { return io.NopCloser(strings.NewReader(upstream)) }}
	h, r := newAITestHandler(p)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ai/generate-text?prompt=oi&streaming=true", nil))

	events := readEvents(t, w.Body)
	last := events[len(events)-1]
	require.Equal(t, "limite excedido", last.Error)
	require.False(t, last.Done)
	require.Equal(t, "parcial", events[1].Text)
	require.Zero(t, h.Connections.Len())
}

func TestStopGeneration(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	p := &fakeProvider{body: func() io.ReadCloser { return pr }}
	h, r := newAITestHandler(p)

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/ai/generate-text?prompt=oi&streaming=true")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	var connected model.StreamEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &connected))
	require.Equal(t, model.StatusConnected, connected.Status)
	require.Equal(t, []string{connected.ConnectionID}, h.Connections.ListConnections(0))

	stop := func() int {
		res, err := http.Get(srv.URL + "/api/ai/stop-generation?connectionId=" + url.QueryEscape(connected.ConnectionID))
		require.NoError(t, err)
		res.Body.Close()
		return res.StatusCode
	}
	require.Equal(t, http.StatusOK, stop())

	events := readEvents(t, reader)
	require.Len(t, events, 1)
	require.Equal(t, model.StoppedByUserMessage, events[0].Error)
	require.True(t, events[0].Done)

	require.Equal(t, http.StatusNotFound, stop())
	require.Eventually(t, func() bool { return h.Connections.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestStopGenerationRequiresID(t *testing.T) {
	_, r := newAITestHandler(&fakeProvider{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ai/stop-generation", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListModels(t *testing.T) {
	_, r := newAITestHandler(&fakeProvider{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ai/models", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), service.ModelGemma3_27B)
}
