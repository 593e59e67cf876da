package parser

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/fredcamaral/mdlive/internal/domain/entities"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
)

// ErrorHTML replaces the document when conversion fails
const ErrorHTML = "<p>Error rendering markdown</p>"

var (
	mermaidFenceRe = regexp.MustCompile("```mermaid\\s*\\n([\\s\\S]*?)\\n```")
	genericFenceRe = regexp.MustCompile("```(\\w+)?\\s*\\n([\\s\\S]*?)\\n```")
)

// fenceFixes patch fences that commonly arrive malformed from generated text
var fenceFixes = strings.NewReplacer(
	"````mermaid", "```mermaid",
	"```mermaid\n\n", "```mermaid\n",
	"\n\n```", "\n```",
)

// Extractor turns markdown into HTML with placeholder slots plus the list
// of fenced blocks that belong in them. It keeps no state between calls.
type Extractor struct {
	converter  ports.MarkdownConverter
	classifier *Classifier
	logger     *slog.Logger
}

// NewExtractor creates an extractor. A nil classifier uses the defaults.
func NewExtractor(converter ports.MarkdownConverter, classifier *Classifier, logger *slog.Logger) *Extractor {
	if converter == nil {
		converter = NewGoldmarkConverter()
	}
	if classifier == nil {
		classifier = DefaultClassifier()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		converter:  converter,
		classifier: classifier,
		logger:     logger.With("component", "extractor"),
	}
}

// Extract runs one extraction pass. It never fails: conversion errors and
// panics yield ErrorHTML with no blocks.
func (e *Extractor) Extract(markdown string) (result entities.ProcessedMarkdown) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("markdown extraction panicked", "panic", fmt.Sprint(r))
			result = entities.ProcessedMarkdown{HTML: ErrorHTML, Blocks: []entities.Block{}}
		}
	}()

	frontmatter, body := extractFrontmatter(markdown)
	text, blocks := e.substitute(body)

	html, err := e.converter.ToHTML([]byte(text))
	if err != nil {
		e.logger.Error("markdown conversion failed", "error", err)
		return entities.ProcessedMarkdown{HTML: ErrorHTML, Blocks: []entities.Block{}}
	}

	return entities.ProcessedMarkdown{
		HTML:   html,
		Blocks: blocks,
		Title:  documentTitle(frontmatter, body),
	}
}

// substitute replaces every fence with a slot placeholder. Diagram fences
// go first so downgraded ones are never picked up again by the generic
// pass; both passes share one id counter.
func (e *Extractor) substitute(markdown string) (string, []entities.Block) {
	text := fenceFixes.Replace(markdown)
	blocks := []entities.Block{}
	counter := 0

	next := func() string {
		counter++
		return entities.BlockID(counter)
	}

	text = mermaidFenceRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := mermaidFenceRe.FindStringSubmatch(match)
		body := strings.TrimSpace(sub[1])
		id := next()

		if verdict := e.classifier.Classify(body); verdict.Valid {
			blocks = append(blocks, entities.Block{
				ID:        id,
				Language:  entities.LanguageMermaid,
				Code:      body,
				IsDiagram: true,
			})
		} else {
			e.logger.Debug("downgrading diagram fence", "block_id", id, "reason", verdict.Reason)
			blocks = append(blocks, entities.Block{
				ID:       id,
				Language: entities.LanguageText,
				Code:     match,
			})
		}
		return placeholder(id)
	})

	text = genericFenceRe.ReplaceAllStringFunc(text, func(match string) string {
		sub := genericFenceRe.FindStringSubmatch(match)
		lang := sub[1]
		// mermaid-prefixed tags stay ordinary fences
		if strings.HasPrefix(lang, entities.LanguageMermaid) {
			return match
		}
		if lang == "" {
			lang = entities.LanguageText
		}

		id := next()
		blocks = append(blocks, entities.Block{
			ID:       id,
			Language: lang,
			Code:     strings.TrimSpace(sub[2]),
		})
		return placeholder(id)
	})

	return text, blocks
}

// placeholder pads the marker with blank lines so it parses as an HTML block
func placeholder(id string) string {
	return "\n\n" + entities.PlaceholderHTML(id) + "\n\n"
}

var _ ports.BlockExtractor = (*Extractor)(nil)
