// Package testutil holds shared test fixtures.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
)

// MockOpenAIServer is an httptest.Server speaking just enough of the
// OpenAI chat API for handler tests: POST /v1/chat/completions returns a
// canned assistant message and GET /v1/models answers health probes.
type MockOpenAIServer struct {
	*httptest.Server
	calls atomic.Int64
}

// Calls reports how many completion requests the server has answered.
func (m *MockOpenAIServer) Calls() int64 { return m.calls.Load() }

// NewMockOpenAIServer starts a mock backend replying with content. A
// non-zero failStatus makes completion requests fail with that HTTP
// status instead. Register t.Cleanup(server.Close).
func NewMockOpenAIServer(content string, failStatus int) *MockOpenAIServer {
	if content == "" {
		content = "mock válasz"
	}
	m := &MockOpenAIServer{}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/models":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"object": "list",
				"data":   []map[string]string{{"id": "gpt-4o-mini", "object": "model"}},
			})
		case "/v1/chat/completions":
			m.calls.Add(1)
			if failStatus != 0 {
				http.Error(w, `{"error":{"message":"backend down"}}`, failStatus)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     "chatcmpl-test",
				"object": "chat.completion",
				"model":  "gpt-4o-mini",
				"choices": []map[string]interface{}{
					{
						"message":       map[string]string{"role": "assistant", "content": content},
						"finish_reason": "stop",
					},
				},
				"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return m
}
