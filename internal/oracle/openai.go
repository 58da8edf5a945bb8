package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/obiyadev/revtree/internal/changeset"
	"github.com/obiyadev/revtree/internal/mcts"
)

const (
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = openai.GPT4oMini

	// maxDiffBytes caps the diff portion of an evaluation prompt.
	maxDiffBytes = 1 << 20

	// logStateLen is how much of a reasoning state to include in log
	// lines.
	logStateLen = 20
)

// Config holds the connection settings for the chat-completion oracle.
type Config struct {
	// APIKey authenticates against the chat API.
	APIKey string

	// BaseURL overrides the API endpoint, for OpenAI-compatible servers.
	BaseURL string

	// Model is the chat model to use. Defaults to DefaultModel.
	Model string

	// Temperature is the sampling temperature for all calls.
	Temperature float32
}

// Client is an Oracle backed by an OpenAI-compatible chat-completion API.
// All calls request a JSON object response and unmarshal it directly into
// the wire structs below.
type Client struct {
	cfg    *Config
	client *openai.Client
}

// NewClient creates a chat-completion oracle from the given config.
func NewClient(cfg *Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	return &Client{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

// complete runs one JSON-mode chat completion and unmarshals the reply into
// out.
func (c *Client) complete(ctx context.Context, system, user string,
	out any) error {

	resp, err := c.client.CreateChatCompletion(
		ctx, openai.ChatCompletionRequest{
			Model:       c.cfg.Model,
			Temperature: c.cfg.Temperature,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject, //nolint:ll
			},
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: system,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: user,
				},
			},
		},
	)
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return fmt.Errorf("chat completion returned no choices")
	}

	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("unparseable model reply: %w", err)
	}

	return nil
}

// EvaluateChange implements Oracle.
func (c *Client) EvaluateChange(ctx context.Context, cs *changeset.ChangeSet,
	requirements string) (*Evaluation, error) {

	diff := cs.Diff
	if len(diff) > maxDiffBytes {
		diff = diff[:maxDiffBytes]
	}

	log.InfoS(ctx, "Evaluating change set",
		"model", c.cfg.Model,
		"requirements", truncate(requirements, logStateLen),
		"num_files", len(cs.Files),
		"diff_bytes", len(diff))

	var eval Evaluation
	err := c.complete(
		ctx, evaluateSystemPrompt,
		fmt.Sprintf(
			evaluateUserPrompt, requirements, cs.StatSummary(),
			strings.Join(cs.Messages, "\n"), diff,
		),
		&eval,
	)
	if err != nil {
		return nil, err
	}

	eval.Score = clamp01(eval.Score)

	return &eval, nil
}

// Expand implements Oracle.
func (c *Client) Expand(ctx context.Context,
	state string) (*mcts.Expansion, error) {

	log.DebugS(ctx, "Expanding reasoning state",
		"model", c.cfg.Model,
		"state", truncate(state, logStateLen))

	// expansionReply matches the JSON shape the expand prompt demands.
	var reply struct {
		Reasoning string   `json:"reasoning"`
		Steps     []string `json:"steps"`
	}
	err := c.complete(
		ctx, expandSystemPrompt,
		fmt.Sprintf(expandUserPrompt, state), &reply,
	)
	if err != nil {
		return nil, err
	}

	return &mcts.Expansion{
		Rationale:  reply.Reasoning,
		Candidates: reply.Steps,
	}, nil
}

// ScorePath implements Oracle.
func (c *Client) ScorePath(ctx context.Context, rootState,
	candidateState string) (*mcts.PathScore, error) {

	log.DebugS(ctx, "Scoring candidate path",
		"model", c.cfg.Model,
		"candidate", truncate(candidateState, logStateLen))

	var reply struct {
		Score       float64 `json:"score"`
		Explanation string  `json:"explanation"`
	}
	err := c.complete(
		ctx, scoreSystemPrompt,
		fmt.Sprintf(scoreUserPrompt, rootState, candidateState),
		&reply,
	)
	if err != nil {
		return nil, err
	}

	return &mcts.PathScore{
		Value:       clamp01(reply.Score),
		Explanation: reply.Explanation,
	}, nil
}

// truncate shortens s to at most n bytes for log lines.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}

// A compile time check to ensure Client implements Oracle.
var _ Oracle = (*Client)(nil)
