// Package diagram holds the BPMN documents produced by the assistant: a
// structural validator, a canvas that keeps the last good diagram, and an
// XML formatter for export.
package diagram

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// ModelNamespace is the BPMN 2.0 model namespace.
	ModelNamespace = "http://www.omg.org/spec/BPMN/20100524/MODEL"

	rootElement = "definitions"
)

// ValidationError lists every structural problem found in a document.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid BPMN: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid BPMN: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

type flowRef struct {
	id, source, target string
}

// Validate checks that doc is well-formed XML with a BPMN definitions root,
// at least one process or collaboration, unique element IDs, and sequence
// flows that reference existing elements. It does not lint modelling rules.
func Validate(doc string) error {
	dec := xml.NewDecoder(strings.NewReader(doc))

	var (
		problems  []string
		ids       = map[string]struct{}{}
		flows     []flowRef
		depth     int
		sawRoot   bool
		sawTop    bool
		duplicate = map[string]bool{}
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return &ValidationError{Problems: append(problems, err.Error())}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++

			if depth == 1 {
				sawRoot = true
				if t.Name.Local != rootElement || t.Name.Space != ModelNamespace {
					problems = append(problems, fmt.Sprintf("root element is %s, want definitions in %s", qualified(t.Name), ModelNamespace))
				}
			}

			if depth == 2 && t.Name.Space == ModelNamespace &&
				(t.Name.Local == "process" || t.Name.Local == "collaboration") {
				sawTop = true
			}

			id, hasID := attr(t, "id")
			if hasID {
				switch {
				case id == "":
					problems = append(problems, fmt.Sprintf("%s has an empty id", t.Name.Local))
				case duplicate[id]:
				default:
					if _, seen := ids[id]; seen {
						duplicate[id] = true
						problems = append(problems, fmt.Sprintf("duplicate id %q", id))
					}
					ids[id] = struct{}{}
				}
			}

			if t.Name.Space == ModelNamespace && t.Name.Local == "sequenceFlow" {
				source, _ := attr(t, "sourceRef")
				target, _ := attr(t, "targetRef")
				flows = append(flows, flowRef{id: id, source: source, target: target})
			}

		case xml.EndElement:
			depth--
		}
	}

	if !sawRoot {
		problems = append(problems, "document has no root element")
	} else if !sawTop {
		problems = append(problems, "definitions contain no process or collaboration")
	}

	for _, f := range flows {
		for _, ref := range []struct{ name, value string }{{"sourceRef", f.source}, {"targetRef", f.target}} {
			if ref.value == "" {
				problems = append(problems, fmt.Sprintf("sequenceFlow %q has no %s", f.id, ref.name))
				continue
			}
			if _, ok := ids[ref.value]; !ok {
				problems = append(problems, fmt.Sprintf("sequenceFlow %q %s %q does not exist", f.id, ref.name, ref.value))
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func attr(el xml.StartElement, local string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == local && a.Name.Space == "" {
			return a.Value, true
		}
	}
	return "", false
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}
