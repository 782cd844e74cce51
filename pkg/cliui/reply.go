package cliui

import (
	"strings"

	"github.com/papercomputeco/bpmnchat/pkg/payload"
	"github.com/papercomputeco/bpmnchat/pkg/session"
)

// ReasoningTitle heads the reasoning block of a reasoner reply.
const ReasoningTitle = "🤔 Reasoning..."

// ReplyMarkdown builds the markdown for a finished reply. In reasoner mode
// the reasoning is set apart under a title and the payload is fenced as XML;
// otherwise the reply is shown as markdown in full.
func ReplyMarkdown(c payload.Classified, reasoner bool) string {
	var b strings.Builder

	if !reasoner {
		b.WriteString(c.Reasoning)
		if c.HasPayload() {
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(c.StructuredPayload)
		}
		return b.String()
	}

	if c.Reasoning != "" {
		b.WriteString("**" + ReasoningTitle + "**\n\n")
		for _, line := range strings.Split(c.Reasoning, "\n") {
			b.WriteString("> " + line + "\n")
		}
	}
	if c.HasPayload() {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("```xml\n" + c.StructuredPayload + "\n```\n")
	}
	return b.String()
}

// NoticeMark returns the icon for a notice level.
func NoticeMark(level session.NoticeLevel) string {
	switch level {
	case session.NoticeSuccess:
		return SuccessMark
	case session.NoticeWarning:
		return WarnMark
	case session.NoticeError:
		return FailMark
	default:
		return InfoMark
	}
}

// RenderNotice formats a notice as a single indented line.
func RenderNotice(n session.Notice) string {
	return "  " + NoticeMark(n.Level) + " " + n.Message
}
