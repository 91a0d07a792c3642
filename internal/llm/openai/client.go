package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pocketomega/agentrt/internal/llm"
	openailib "github.com/sashabaranov/go-openai"
)

// Client implements llm.Transport using the OpenAI-compatible protocol.
// Works with any endpoint that supports the OpenAI chat completions API
// (litellm, Ollama, Azure, vLLM, etc.).
type Client struct {
	client *openailib.Client
	config *Config
}

// NewClient creates a new OpenAI-compatible transport.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	clientConfig := openailib.DefaultConfig(config.APIKey)
	clientConfig.BaseURL = config.BaseURL
	clientConfig.HTTPClient = &http.Client{Timeout: time.Duration(config.HTTPTimeout) * time.Second}

	return &Client{
		client: openailib.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// NewClientFromEnv creates a transport using environment variables.
func NewClientFromEnv() (*Client, error) {
	config, err := NewConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	return NewClient(config)
}

// StreamChat implements llm.Transport. Per spec.md §4.3, temperature is
// fixed at 0 and tool-choice is "auto" whenever catalogue is non-empty;
// neither is caller-configurable.
func (c *Client) StreamChat(ctx context.Context, messages []llm.Message, catalogue []llm.ToolDefinition) (llm.ChunkIterator, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	req := openailib.ChatCompletionRequest{
		Model:       c.config.Model,
		Messages:    toOpenAIMessages(messages),
		Stream:      true,
		Temperature: 0,
	}
	if len(catalogue) > 0 {
		req.Tools = toOpenAITools(catalogue)
		req.ToolChoice = "auto"
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("stream_chat: %w", err)
	}
	return &streamIterator{stream: stream}, nil
}

// GetName returns the provider name/model for logging.
func (c *Client) GetName() string {
	return fmt.Sprintf("openai-compatible (%s)", c.config.Model)
}

func toOpenAIMessages(messages []llm.Message) []openailib.ChatCompletionMessage {
	out := make([]openailib.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openailib.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if len(m.ToolCalls) > 0 {
			tcs := make([]openailib.ToolCall, len(m.ToolCalls))
			for j, tc := range m.ToolCalls {
				tcs[j] = openailib.ToolCall{
					ID:   tc.ID,
					Type: openailib.ToolTypeFunction,
					Function: openailib.FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Arguments),
					},
				}
			}
			out[i].ToolCalls = tcs
		}
	}
	return out
}

func toOpenAITools(catalogue []llm.ToolDefinition) []openailib.Tool {
	out := make([]openailib.Tool, len(catalogue))
	for i, t := range catalogue {
		out[i] = openailib.Tool{
			Type: openailib.ToolTypeFunction,
			Function: &openailib.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

// streamIterator adapts *openailib.ChatCompletionStream to llm.ChunkIterator.
// It is a pure adapter: chunks are forwarded in arrival order, unmutated.
type streamIterator struct {
	stream *openailib.ChatCompletionStream
}

func (s *streamIterator) Recv() (llm.Chunk, bool, error) {
	resp, err := s.stream.Recv()
	if errors.Is(err, io.EOF) {
		return llm.Chunk{}, false, nil
	}
	if err != nil {
		return llm.Chunk{}, false, fmt.Errorf("stream recv: %w", err)
	}
	if len(resp.Choices) == 0 {
		return llm.Chunk{}, true, nil
	}

	delta := resp.Choices[0].Delta
	chunk := llm.Chunk{
		ContentDelta:   delta.Content,
		ReasoningDelta: delta.ReasoningContent,
	}
	if len(delta.ToolCalls) > 0 {
		chunk.ToolCallFragments = make([]llm.ToolCallFragment, len(delta.ToolCalls))
		for i, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			chunk.ToolCallFragments[i] = llm.ToolCallFragment{
				Index:     index,
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			}
		}
	}
	return chunk, true, nil
}

func (s *streamIterator) Close() error {
	return s.stream.Close()
}
