// Package stream folds an llm.ChunkIterator into an ordered event sequence
// plus one assembled assistant message, per spec.md §4.4.
package stream

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pocketomega/agentrt/internal/llm"
	"github.com/pocketomega/agentrt/internal/message"
)

// EventType identifies one element of the interpreter's event sequence.
type EventType string

const (
	EventThinkingDelta EventType = "thinking_delta"
	EventContentDelta  EventType = "content_delta"
	// EventFullMessage is emitted exactly once, after the chunk iterator
	// ends. It is internal: spec.md §6 forbids it from crossing the HTTP
	// boundary, so the web layer must filter it out before framing SSE.
	EventFullMessage EventType = "full_message"
)

// stoppedAfterThinking is the synthetic content assigned to an assembled
// message that carried reasoning but no content and no tool calls, so it
// is never mistaken for a wholly-empty response (spec.md §8 property 11).
const stoppedAfterThinking = "(Model stopped after thinking)"

// Event is one element of the lazily-produced sequence Parse emits.
type Event struct {
	Type    EventType
	Text    string           // set for ThinkingDelta / ContentDelta
	Message *message.Message // set for EventFullMessage
}

// toolCallAccum accumulates the fragments of one in-progress tool call.
type toolCallAccum struct {
	index     int
	id        strings.Builder
	name      strings.Builder
	arguments strings.Builder
}

// Parse reads chunks from it until the stream ends or errors, emitting
// Events on the returned channel in arrival order. The channel is closed
// after EventFullMessage is sent (success) or after an error is returned
// via the second channel (failure, no EventFullMessage). Exactly one of the
// two channels ever receives a value in the error case; in the success case
// only the events channel is used and then closed.
func Parse(ctx context.Context, it llm.ChunkIterator) (<-chan Event, <-chan error) {
	events := make(chan Event)
	errCh := make(chan error, 1)

	go func() {
		defer close(events)

		var content, reasoning strings.Builder
		fragments := make(map[int]*toolCallAccum)

		for {
			if err := ctx.Err(); err != nil {
				errCh <- err
				return
			}
			chunk, ok, err := it.Recv()
			if err != nil {
				errCh <- err
				return
			}
			if !ok {
				break
			}

			if chunk.ReasoningDelta != "" {
				reasoning.WriteString(chunk.ReasoningDelta)
				events <- Event{Type: EventThinkingDelta, Text: chunk.ReasoningDelta}
			}
			if chunk.ContentDelta != "" {
				content.WriteString(chunk.ContentDelta)
				events <- Event{Type: EventContentDelta, Text: chunk.ContentDelta}
			}
			for _, frag := range chunk.ToolCallFragments {
				acc, exists := fragments[frag.Index]
				if !exists {
					acc = &toolCallAccum{index: frag.Index}
					fragments[frag.Index] = acc
				}
				acc.id.WriteString(frag.ID)
				acc.name.WriteString(frag.Name)
				acc.arguments.WriteString(frag.Arguments)
			}
		}

		msg, err := assemble(content.String(), reasoning.String(), fragments)
		if err != nil {
			errCh <- err
			return
		}
		events <- Event{Type: EventFullMessage, Message: &msg}
	}()

	return events, errCh
}

// assemble builds the final assistant message from the accumulators.
// Tool calls are ordered by ascending index (not arrival order), per
// spec.md §4.4. A fragment that never received an id is a protocol error:
// the interpreter must not fabricate one (spec.md §4.6).
func assemble(content, reasoning string, fragments map[int]*toolCallAccum) (message.Message, error) {
	if len(fragments) == 0 {
		if reasoning != "" && content == "" {
			content = stoppedAfterThinking
		}
		return message.Assistant(content, reasoning, nil), nil
	}

	indices := make([]int, 0, len(fragments))
	for idx := range fragments {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	calls := make([]message.ToolCall, 0, len(indices))
	for _, idx := range indices {
		acc := fragments[idx]
		id := acc.id.String()
		if id == "" {
			return message.Message{}, fmt.Errorf("stream: tool call at index %d has no id", idx)
		}
		calls = append(calls, message.ToolCall{
			CallID:    id,
			Name:      acc.name.String(),
			Arguments: []byte(acc.arguments.String()),
		})
	}

	return message.Assistant(content, reasoning, calls), nil
}
