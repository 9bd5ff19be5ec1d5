package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PipeOpsHQ/medical-coder-api/llm"
	"github.com/PipeOpsHQ/medical-coder-api/types"
)

func TestClient_Generate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"I10"}}],"usage":{"prompt_tokens":7,"completion_tokens":3,"total_tokens":10}}`))
	}))
	defer srv.Close()

	c, err := New("sk-test", WithBaseURL(srv.URL), WithModel("gpt-test"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	resp, err := c.Generate(context.Background(), types.Request{
		SystemPrompt:    "be a coder",
		Messages:        []types.Message{{Role: types.RoleUser, Content: "hypertension"}},
		MaxOutputTokens: 256,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Message.Content != "I10" || resp.Usage == nil || resp.Usage.TotalTokens != 10 {
		t.Fatalf("unexpected response: %#v", resp)
	}
	if got.Model != "gpt-test" || got.MaxTokens != 256 || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("unexpected request payload: %#v", got)
	}
}

func TestClient_GenerateErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Authorization"), "bad") {
			http.Error(w, `{"error":"invalid key"}`, http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	bad, _ := New("bad", WithBaseURL(srv.URL))
	if _, err := bad.Generate(context.Background(), types.Request{}); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected API error, got %v", err)
	}

	empty, _ := New("sk", WithBaseURL(srv.URL))
	if _, err := empty.Generate(context.Background(), types.Request{}); !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestNew_RequiresKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error without api key")
	}
}
