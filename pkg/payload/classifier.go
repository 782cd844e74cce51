// Package payload separates free-form reasoning text from an embedded BPMN
// XML document in an assembled model reply.
package payload

import (
	"regexp"
	"slices"
	"strings"
)

// DefaultRootElement is the qualified name of the BPMN document root.
const DefaultRootElement = "bpmn:definitions"

// Classified is the result of splitting a reply at its structured payload.
type Classified struct {
	Reasoning         string `json:"reasoning"`
	StructuredPayload string `json:"structured_payload"`
}

// HasPayload reports whether a structured payload was found.
func (c Classified) HasPayload() bool {
	return c.StructuredPayload != ""
}

// Classifier locates structured payloads in assembled text.
type Classifier interface {
	// Split divides text at the first start sentinel.
	Split(text string) Classified

	// Extract returns the first complete document span, if any.
	Extract(text string) (string, bool)
}

// SentinelClassifier finds payloads by their opening markup. The start
// sentinel is an XML declaration or a root element opener, matched
// case-insensitively. Extraction runs from the first root opener to the first
// following closer and is case-sensitive.
type SentinelClassifier struct {
	roots []string
	start *regexp.Regexp
	spans []*regexp.Regexp
}

// Option configures a SentinelClassifier.
type Option func(*SentinelClassifier)

// WithRootElements adds qualified root element names, such as
// "bpmn2:definitions", alongside the default.
func WithRootElements(names ...string) Option {
	return func(c *SentinelClassifier) {
		for _, name := range names {
			name = strings.TrimSpace(name)
			if name == "" || slices.Contains(c.roots, name) {
				continue
			}
			c.roots = append(c.roots, name)
		}
	}
}

// NewSentinelClassifier builds the default classifier.
func NewSentinelClassifier(opts ...Option) *SentinelClassifier {
	c := &SentinelClassifier{roots: []string{DefaultRootElement}}
	for _, opt := range opts {
		opt(c)
	}

	alts := []string{regexp.QuoteMeta("<?xml")}
	for _, root := range c.roots {
		alts = append(alts, regexp.QuoteMeta("<"+root))
		c.spans = append(c.spans, regexp.MustCompile(
			regexp.QuoteMeta("<"+root)+`[\s\S]*?`+regexp.QuoteMeta("</"+root+">"),
		))
	}
	c.start = regexp.MustCompile(`(?i)` + strings.Join(alts, "|"))

	return c
}

// Roots returns the configured root element names.
func (c *SentinelClassifier) Roots() []string {
	return append([]string(nil), c.roots...)
}

// Split implements Classifier.
func (c *SentinelClassifier) Split(text string) Classified {
	loc := c.start.FindStringIndex(text)
	if loc == nil {
		return Classified{Reasoning: strings.TrimSpace(text)}
	}

	return Classified{
		Reasoning:         strings.TrimSpace(text[:loc[0]]),
		StructuredPayload: strings.TrimSpace(text[loc[0]:]),
	}
}

// Extract implements Classifier. With several root names configured, the
// span that starts earliest wins.
func (c *SentinelClassifier) Extract(text string) (string, bool) {
	best := []int(nil)
	for _, span := range c.spans {
		loc := span.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if best == nil || loc[0] < best[0] {
			best = loc
		}
	}

	if best == nil {
		return "", false
	}
	return text[best[0]:best[1]], true
}
