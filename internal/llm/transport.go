package llm

import "context"

// ToolCallFragment is one partial update to one in-progress tool call,
// identified by its position in the assistant's tool_calls list. A single
// tool call is typically split across many chunks: the vendor may send the
// id and name once and dribble arguments out a few bytes at a time.
type ToolCallFragment struct {
	Index     int    // position in the assistant's tool_calls list
	ID        string // fragment of the call id, empty if none in this chunk
	Name      string // fragment of the tool name, empty if none in this chunk
	Arguments string // fragment of the JSON arguments, empty if none in this chunk
}

// Chunk is one element of a streamed chat completion. Any combination of
// the three fields may be non-empty/non-nil; a chunk carrying none of them
// (e.g. a pure keep-alive) is valid and simply produces no events.
type Chunk struct {
	ContentDelta      string
	ReasoningDelta    string
	ToolCallFragments []ToolCallFragment
}

// ChunkIterator yields the chunks of one streamed chat completion in
// arrival order. Recv returns (Chunk{}, false, nil) once the stream ends
// normally, mirroring the go-openai stream.Recv() contract this wraps: no
// more chunks, no error. A non-nil error aborts the stream; the caller must
// still call Close.
type ChunkIterator interface {
	Recv() (chunk Chunk, ok bool, err error)
	Close() error
}

// Transport issues streaming chat-completion requests against an
// OpenAI-compatible endpoint. Implementations fix temperature to 0 and,
// when catalogue is non-empty, tool-choice to "auto" — these are not
// caller-configurable per spec.md §4.3.
//
// StreamChat returns a nil iterator and a non-nil error when the call could
// not establish a stream at all (the vendor returned an error, or the
// connection failed); callers treat a nil iterator exactly like a non-nil
// error — both end the turn with an error event. The transport is a pure adapter: it must not
// mutate or reorder chunks.
type Transport interface {
	StreamChat(ctx context.Context, messages []Message, catalogue []ToolDefinition) (ChunkIterator, error)
}
