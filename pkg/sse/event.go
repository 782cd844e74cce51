// Package sse provides the incremental stream reader used by bpmnchat to
// consume chat-completion responses. Upstream providers deliver
// newline-delimited "data: <json>" lines; network chunk boundaries are
// arbitrary and may split a line, a JSON object, or a multi-byte rune.
//
// The Reader turns that byte stream into a lazy, finite, non-restartable
// sequence of text deltas. It knows nothing about what the deltas contain;
// classification of the assembled text lives in pkg/payload.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"encoding/json"
	"strings"
)

const (
	// DataPrefix marks a line carrying an event payload.
	DataPrefix = "data:"

	// DoneSentinel opens the payload that terminates a stream ("[DONE]").
	DoneSentinel = "[DONE"
)

// FragmentKind tags a decoded line.
type FragmentKind int

const (
	// FragmentIgnored is any line without the data prefix (comments, event
	// names, blank keep-alives) or a data line with an empty payload.
	FragmentIgnored FragmentKind = iota

	// FragmentData is a data line whose payload should hold a JSON object.
	FragmentData

	// FragmentDone is the termination sentinel.
	FragmentDone
)

func (k FragmentKind) String() string {
	switch k {
	case FragmentData:
		return "data"
	case FragmentDone:
		return "done"
	default:
		return "ignored"
	}
}

// Fragment is one decoded line from the stream.
type Fragment struct {
	Kind FragmentKind

	// Payload is the trimmed text after the data prefix.
	Payload string
}

// ParseLine classifies a single line. Surrounding whitespace, including a
// trailing carriage return, is ignored.
func ParseLine(line string) Fragment {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, DataPrefix) {
		return Fragment{Kind: FragmentIgnored}
	}

	payload := strings.TrimSpace(line[len(DataPrefix):])
	switch {
	case payload == "":
		return Fragment{Kind: FragmentIgnored}
	case strings.HasPrefix(payload, DoneSentinel):
		return Fragment{Kind: FragmentDone, Payload: payload}
	default:
		return Fragment{Kind: FragmentData, Payload: payload}
	}
}

// completionChunk is the subset of a chat.completion.chunk object the reader
// cares about. Delta fields are untyped so that a null or non-string value is
// skipped rather than treated as a malformed event.
type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content          any `json:"content"`
			ReasoningContent any `json:"reasoning_content"`
		} `json:"delta"`
	} `json:"choices"`
}

// DecodeDelta extracts the text delta from a data payload. reasoning_content
// wins over content when it is a non-empty string. A well-formed payload
// without a usable delta yields "" and no error.
func DecodeDelta(payload string) (string, error) {
	var chunk completionChunk
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", err
	}

	if len(chunk.Choices) == 0 {
		return "", nil
	}

	delta := chunk.Choices[0].Delta
	if s, ok := delta.ReasoningContent.(string); ok && s != "" {
		return s, nil
	}
	if s, ok := delta.Content.(string); ok && s != "" {
		return s, nil
	}

	return "", nil
}
