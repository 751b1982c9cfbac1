package model

// StreamEvent 推送给客户端的单条 SSE 事件，按字段组合区分类型:
// 连接建立 {status, connectionId}，文本块 {text}，结束 {done}，错误 {error}
type StreamEvent struct {
	Status       string `json:"status,omitempty"`
	ConnectionID string `json:"connectionId,omitempty"`
	Text         string `json:"text,omitempty"`
	Error        string `json:"error,omitempty"`
	Done         bool   `json:"done,omitempty"`
}

const StatusConnected = "conectado"

// StoppedByUserMessage 用户主动中断时发送的错误文案
const StoppedByUserMessage = "Conexão interrompida pelo usuário"

func ConnectedEvent(connectionID string) StreamEvent {
	return StreamEvent{Status: StatusConnected, ConnectionID: connectionID}
}

func TextEvent(text string) StreamEvent {
	return StreamEvent{Text: text}
}

func DoneEvent() StreamEvent {
	return StreamEvent{Done: true}
}

func ErrorEvent(msg string) StreamEvent {
	return StreamEvent{Error: msg}
}

// StoppedEvent 中断时的终止事件，同时携带 error 和 done
func StoppedEvent() StreamEvent {
	return StreamEvent{Error: StoppedByUserMessage, Done: true}
}
