package utils

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

func TestChatStreamChunkTextContent(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"openai delta", `{"choices":[{"delta":{"content":"Olá"}}]}`, "Olá"},
		{"choice text", `{"choices":[{"text":"abc"}]}`, "abc"},
		{"top-level content", `{"content":"x"}`, "x"},
		{"top-level text", `{"text":"y"}`, "y"},
		{"delta object", `{"delta":{"content":"z"}}`, "z"},
		{"empty", `{"choices":[{"delta":{}}]}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var chunk ChatStreamChunk
			require.NoError(t, json.Unmarshal([]byte(tc.raw), &chunk))
			require.Equal(t, tc.want, chunk.TextContent())
		})
	}
}

func TestChatStreamChunkErrorMessage(t *testing.T) {
	var chunk ChatStreamChunk
	require.NoError(t, json.Unmarshal([]byte(`{"error":{"message":"rate limited"}}`), &chunk))
	require.Equal(t, "rate limited", chunk.ErrorMessage())

	chunk = ChatStreamChunk{}
	require.NoError(t, json.Unmarshal([]byte(`{"error":"boom"}`), &chunk))
	require.Equal(t, "boom", chunk.ErrorMessage())

	chunk = ChatStreamChunk{}
	require.NoError(t, json.Unmarshal([]byte(`{"text":"ok"}`), &chunk))
	require.Empty(t, chunk.ErrorMessage())
}
