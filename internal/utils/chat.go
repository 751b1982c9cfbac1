package utils

// ChatRequest OpenAI 兼容的 chat/completions 请求
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
}

// ChatMessage Content 为 string 或 []ChatContentPart（图文混合）
type ChatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type ChatContentPart struct {
	Type     string        `json:"type"` // text | image_url
	Text     string        `json:"text,omitempty"`
	ImageURL *ChatImageURL `json:"image_url,omitempty"`
}

type ChatImageURL struct {
	URL string `json:"url"`
}

// ChatError 上游返回的错误体
type ChatError struct {
	Message string      `json:"message"`
	Code    interface{} `json:"code,omitempty"`
}

// ChatResponse 非流式响应
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *ChatError `json:"error,omitempty"`
}

// ChatStreamChunk 流式响应中一条 data 行，兼容多种上游格式
type ChatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Text string `json:"text"`
	} `json:"choices"`
	Content string `json:"content"`
	Text    string `json:"text"`
	Delta   *struct {
		Content string `json:"content"`
	} `json:"delta"`
	Error interface{} `json:"error"`
}

// TextContent 依次尝试 choices[0].delta.content、choices[0].text、content、text、delta.content
func (c *ChatStreamChunk) TextContent() string {
	if len(c.Choices) > 0 {
		if s := c.Choices[0].Delta.Content; s != "" {
			return s
		}
		if s := c.Choices[0].Text; s != "" {
			return s
		}
	}
	if c.Content != "" {
		return c.Content
	}
	if c.Text != "" {
		return c.Text
	}
	if c.Delta != nil {
		return c.Delta.Content
	}
	return ""
}

// ErrorMessage 错误字段可能是字符串或 {message}
func (c *ChatStreamChunk) ErrorMessage() string {
	switch e := c.Error.(type) {
	case nil:
		return ""
	case string:
		return e
	case map[string]interface{}:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
		return "erro desconhecido do provedor"
	default:
		return "erro desconhecido do provedor"
	}
}
