package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
)

// diagramKeywords is the closed set of diagram kinds. Matching is by
// substring, not anchored.
var diagramKeywords = []string{
	"flowchart",
	"graph",
	"sequenceDiagram",
	"classDiagram",
	"erDiagram",
	"gantt",
	"pie",
	"journey",
	"gitgraph",
	"stateDiagram",
	"C4Context",
	"mindmap",
}

// Classification is the verdict for one diagram-tagged fence body
type Classification struct {
	Valid  bool
	Reason string
}

// Classifier decides whether a mermaid fence body is real diagram source
type Classifier struct {
	artifacts []*regexp.Regexp
}

// NewClassifier compiles the given artifact patterns. With no patterns
// the default set is used.
func NewClassifier(patterns ...string) (*Classifier, error) {
	if len(patterns) == 0 {
		patterns = entities.DefaultArtifactPatterns
	}

	c := &Classifier{artifacts: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compiling artifact pattern %q: %w", p, err)
		}
		c.artifacts = append(c.artifacts, re)
	}
	return c, nil
}

// DefaultClassifier returns a classifier with the built-in artifact set
func DefaultClassifier() *Classifier {
	c, err := NewClassifier()
	if err != nil {
		panic(err) // defaults are constant
	}
	return c
}

// Classify inspects a trimmed fence body
func (c *Classifier) Classify(body string) Classification {
	if body == "" {
		return Classification{Reason: "empty body"}
	}

	if strings.Contains(body, "```") {
		return Classification{Reason: "nested fence marker"}
	}

	// artifacts win over keywords
	for _, re := range c.artifacts {
		if re.MatchString(body) {
			return Classification{Reason: "markup artifact: " + re.String()}
		}
	}

	for _, kw := range diagramKeywords {
		if strings.Contains(body, kw) {
			return Classification{Valid: true}
		}
	}

	return Classification{Reason: "no diagram keyword"}
}
