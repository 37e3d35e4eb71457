package llm

import (
	"context"
	"strings"
	"testing"
)

func TestNewAppliesDefaults(t *testing.T) {
	c := New(Config{APIKey: "k", Model: "doubao-pro"})
	if c.model != "doubao-pro" {
		t.Errorf("model = %q, want doubao-pro", c.model)
	}
	if c.temperature != 0.1 {
		t.Errorf("temperature default = %v, want 0.1", c.temperature)
	}

	c = New(Config{APIKey: "k", Model: "m", Temperature: 0.7})
	if c.temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", c.temperature)
	}
}

func TestJudgeEmptyBatch(t *testing.T) {
	// An empty batch must not touch the network at all.
	c := New(Config{BaseURL: "http://127.0.0.1:1", APIKey: "k", Model: "m"})
	results, err := c.Judge(context.Background(), nil)
	if err != nil {
		t.Fatalf("Judge(empty) error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Judge(empty) = %v, want empty map", results)
	}
}

func TestJudgeSystemPrompt(t *testing.T) {
	for _, want := range []string{"isCorrect", "feedback", "中文", "JSON"} {
		if !strings.Contains(judgeSystemPrompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}
