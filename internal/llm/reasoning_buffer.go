package llm

import "strings"

// ReasoningBuffer dedupes repeated cumulative reasoning blocks that some
// providers re-transmit in each SSE frame, yielding monotone suffix deltas.
//
// Algorithm (spec §4.2): on Push(chunk), if chunk starts with the
// accumulator, return the new suffix and replace the accumulator with chunk;
// if the accumulator starts with chunk, it's a re-send — discard and return
// ("", false); otherwise append chunk to the accumulator and return it.
type ReasoningBuffer struct {
	acc string
}

// Push feeds a new text chunk and returns the monotone delta since the last
// push, or ok=false if the chunk carried no new information.
func (b *ReasoningBuffer) Push(chunk string) (delta string, ok bool) {
	if chunk == "" {
		return "", false
	}
	switch {
	case strings.HasPrefix(chunk, b.acc):
		delta = chunk[len(b.acc):]
		b.acc = chunk
		if delta == "" {
			return "", false
		}
		return delta, true
	case strings.HasPrefix(b.acc, chunk):
		return "", false
	default:
		b.acc += chunk
		return chunk, true
	}
}

// Finalize returns the trimmed accumulator, or ok=false if empty.
func (b *ReasoningBuffer) Finalize() (text string, ok bool) {
	trimmed := strings.TrimSpace(b.acc)
	if trimmed == "" {
		return "", false
	}
	return trimmed, true
}

// reasoningTagPairs are the recognized opening/closing reasoning-markup tags
// scanned by SplitReasoningFromText, case-insensitive.
var reasoningTagPairs = [][2]string{
	{"<think>", "</think>"},
	{"<thinking>", "</thinking>"},
	{"<reasoning>", "</reasoning>"},
}

// SplitReasoningFromText scans text for reasoning-markup tags and returns
// the extracted reasoning segments plus the cleaned remainder.
func SplitReasoningFromText(text string) (reasoningSegments []string, cleaned string) {
	remaining := text
	var out strings.Builder

	for len(remaining) > 0 {
		lower := strings.ToLower(remaining)
		openIdx, openTag, closeTag := -1, "", ""
		for _, pair := range reasoningTagPairs {
			if idx := strings.Index(lower, pair[0]); idx >= 0 && (openIdx == -1 || idx < openIdx) {
				openIdx, openTag, closeTag = idx, pair[0], pair[1]
			}
		}
		if openIdx == -1 {
			out.WriteString(remaining)
			break
		}

		out.WriteString(remaining[:openIdx])
		afterOpen := remaining[openIdx+len(openTag):]
		lowerAfter := strings.ToLower(afterOpen)
		closeIdx := strings.Index(lowerAfter, closeTag)
		if closeIdx == -1 {
			// Unterminated tag: treat the remainder as reasoning content.
			reasoningSegments = append(reasoningSegments, afterOpen)
			break
		}

		reasoningSegments = append(reasoningSegments, afterOpen[:closeIdx])
		remaining = afterOpen[closeIdx+len(closeTag):]
	}

	return reasoningSegments, out.String()
}
