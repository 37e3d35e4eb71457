// Package llm implements the remote judge over any OpenAI-compatible chat
// completion endpoint (Doubao, DeepSeek, ChatGPT, local runtimes).
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Quarong/Huiti-AI-Plus/internal/grading"

	openai "github.com/sashabaranov/go-openai"
)

// Config holds the judge's model and provider settings. It is injected at
// construction; grading code never reads provider settings from ambient
// storage.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
}

// The judge answers in Chinese and treats semantic closeness as correct,
// matching how answers are authored in this domain.
const judgeSystemPrompt = "你是一个判分专家。请用**中文**给出反馈。语义相近即正确。" +
	"输出 JSON 对象，Key 为题目 ID，Value 为 {\"isCorrect\": boolean, \"feedback\": string}。" +
	"必须覆盖输入中的每一个题目 ID，不要输出任何其他内容。"

// Client is a remote judge backed by a chat completion API. It implements
// grading.Judge.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
}

var _ grading.Judge = (*Client)(nil)

// New creates a judge client from an explicit configuration.
func New(cfg Config) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	temp := cfg.Temperature
	if temp == 0 {
		temp = 0.1
	}
	return &Client{
		api:         openai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: temp,
	}
}

// Judge grades a batch of deferred answers in one round-trip. Any transport,
// auth, or quota failure is returned as an error; the fail-closed fallback
// belongs to the caller.
func (c *Client) Judge(ctx context.Context, batch []grading.JudgeRequest) (map[string]grading.JudgeResult, error) {
	if len(batch) == 0 {
		return map[string]grading.JudgeResult{}, nil
	}

	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshal judge batch: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: judgeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: "判分数据：" + string(payload)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("judge API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("judge returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("judge response", "size", len(batch), "raw", raw)

	var results map[string]grading.JudgeResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil {
		return nil, fmt.Errorf("parse judge response: %w (raw: %s)", err, raw)
	}
	return results, nil
}

// Ping verifies the endpoint accepts requests for the configured model.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "ping"},
		},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("judge health check: %w", err)
	}
	return nil
}
