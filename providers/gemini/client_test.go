package gemini

import (
	"errors"
	"math"
	"testing"

	"google.golang.org/genai"

	"github.com/PipeOpsHQ/medical-coder-api/llm"
	"github.com/PipeOpsHQ/medical-coder-api/types"
)

func TestParseGeminiResponse(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{
				{Text: "thinking about codes", Thought: true},
				{Text: " I10 "},
			}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     4,
			CandidatesTokenCount: 2,
			TotalTokenCount:      6,
		},
	}
	got, err := parseGeminiResponse(resp)
	if err != nil {
		t.Fatalf("parseGeminiResponse failed: %v", err)
	}
	if got.Message.Content != "I10" || got.Message.Reasoning != "thinking about codes" {
		t.Fatalf("unexpected message: %#v", got.Message)
	}
	if got.Usage == nil || got.Usage.TotalTokens != 6 {
		t.Fatalf("unexpected usage: %#v", got.Usage)
	}
}

func TestParseGeminiResponse_NoCandidates(t *testing.T) {
	if _, err := parseGeminiResponse(&genai.GenerateContentResponse{}); !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
	if _, err := parseGeminiResponse(nil); !errors.Is(err, llm.ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse for nil response, got %v", err)
	}
}

func TestToGeminiContents(t *testing.T) {
	contents := toGeminiContents([]types.Message{
		{Role: types.RoleUser, Content: "doc"},
		{Role: types.RoleAssistant, Content: "I10"},
		{Role: types.RoleAssistant},
	})
	if len(contents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(contents))
	}
	if contents[1].Role != genai.RoleModel {
		t.Fatalf("assistant turns map to the model role, got %q", contents[1].Role)
	}
}

func TestClampInt32(t *testing.T) {
	if clampInt32(-1) != 0 || clampInt32(10) != 10 || clampInt32(math.MaxInt64) != math.MaxInt32 {
		t.Fatalf("clampInt32 produced unexpected values")
	}
}
