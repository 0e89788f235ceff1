package llm

import "strings"

// FindSSEBoundary locates the first event delimiter ("\n\n" or "\r\n\r\n")
// in buf and returns (boundaryStart, delimiterLen), or (-1, 0) if none found
// yet — the caller should keep reading.
func FindSSEBoundary(buf string) (int, int) {
	if idx := strings.Index(buf, "\r\n\r\n"); idx >= 0 {
		return idx, 4
	}
	if idx := strings.Index(buf, "\n\n"); idx >= 0 {
		return idx, 2
	}
	return -1, 0
}

// ExtractDataPayload concatenates every "data:"-prefixed line within a raw
// SSE event block with "\n", per spec §4.2 / §6.
func ExtractDataPayload(event string) string {
	lines := strings.Split(event, "\n")
	var data []string
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, "data:") {
			payload := strings.TrimPrefix(line, "data:")
			payload = strings.TrimPrefix(payload, " ")
			data = append(data, payload)
		}
	}
	return strings.Join(data, "\n")
}

// SSEDoneSentinel is the terminal data payload signaling stream end.
const SSEDoneSentinel = "[DONE]"
