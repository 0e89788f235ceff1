package llm

import "sort"

// toolCallDelta accumulates streaming deltas for one tool call. Deltas are
// matched by stream index only; the id is recorded when a delta carries one
// but is not used for lookup.
type toolCallDelta struct {
	index        int
	id           string
	functionName string
	argumentsBuf string
}

// ToolCallBuilder accumulates streaming tool-call deltas (C2). After
// Finalize, every ToolCall has a non-empty id (a call_<n> id is generated
// when no delta carried one) and arguments default to "{}" when never
// populated. The function name is the last non-empty name a delta carried;
// it is left empty when no delta carried one.
type ToolCallBuilder struct {
	byIndex map[int]*toolCallDelta
	order   []int
}

func NewToolCallBuilder() *ToolCallBuilder {
	return &ToolCallBuilder{byIndex: make(map[int]*toolCallDelta)}
}

// AddDelta merges a streaming fragment into the builder. id/functionName may
// be empty on continuation frames; argumentsDelta is appended verbatim.
func (b *ToolCallBuilder) AddDelta(index int, id, functionName, argumentsDelta string) {
	d, ok := b.byIndex[index]
	if !ok {
		d = &toolCallDelta{index: index}
		b.byIndex[index] = d
		b.order = append(b.order, index)
	}
	if id != "" {
		d.id = id
	}
	if functionName != "" {
		d.functionName = functionName
	}
	d.argumentsBuf += argumentsDelta
}

// Finalize yields the accumulated tool calls in index order.
func (b *ToolCallBuilder) Finalize() []ToolCall {
	sort.Ints(b.order)
	out := make([]ToolCall, 0, len(b.order))
	for i, idx := range b.order {
		d := b.byIndex[idx]
		id := d.id
		if id == "" {
			id = generateFallbackToolCallID(i)
		}
		args := d.argumentsBuf
		if args == "" {
			args = "{}"
		}
		out = append(out, ToolCall{
			ID:           id,
			FunctionName: d.functionName,
			Arguments:    args,
		})
	}
	return out
}

// Len reports how many distinct tool-call indexes have been seen so far.
func (b *ToolCallBuilder) Len() int { return len(b.byIndex) }

func generateFallbackToolCallID(i int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	// Deterministic, collision-avoiding-enough fallback; real ids always
	// come from the provider in practice.
	n := i + 1
	buf := make([]byte, 0, 8)
	for n > 0 {
		buf = append([]byte{alphabet[n%len(alphabet)]}, buf...)
		n /= len(alphabet)
	}
	return "call_" + string(buf)
}
