package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PipeOpsHQ/medical-coder-api/types"
)

func TestClientGenerate_NativeChatRoundTrip(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected bearer auth header")
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req["model"] != "llama3.2" {
			t.Errorf("unexpected model: %#v", req["model"])
		}
		if req["stream"] != false {
			t.Errorf("streaming must be disabled: %#v", req["stream"])
		}
		opts, _ := req["options"].(map[string]any)
		if opts["num_predict"] != float64(128) {
			t.Errorf("unexpected options: %#v", req["options"])
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"message": {"role": "assistant", "content": "E11.9"},
			"done": true,
			"prompt_eval_count": 7,
			"eval_count": 3
		}`))
	}))
	defer ts.Close()

	client, err := New(
		WithBaseURL(ts.URL),
		WithModel("llama3.2"),
		WithAPIKey("test-key"),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	resp, err := client.Generate(context.Background(), types.Request{
		SystemPrompt:    "system",
		Messages:        []types.Message{{Role: types.RoleUser, Content: "type 2 diabetes"}},
		MaxOutputTokens: 128,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Message.Content != "E11.9" {
		t.Fatalf("unexpected content: %q", resp.Message.Content)
	}
	if resp.Usage == nil || resp.Usage.TotalTokens != 10 {
		t.Fatalf("unexpected usage: %#v", resp.Usage)
	}
}

func TestClientGenerate_ReportsAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer ts.Close()

	client, _ := New(WithBaseURL(ts.URL))
	if _, err := client.Generate(context.Background(), types.Request{}); err == nil {
		t.Fatalf("expected error")
	}
}
