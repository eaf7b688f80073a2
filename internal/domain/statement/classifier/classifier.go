// Package classifier picks a document type for extracted statement text by scoring
// per-type marker phrases and patterns.
package classifier

import (
	"log/slog"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/FACorreiaa/statement-pipeline/internal/domain/statement"
)

// Classifier scores text against a marker catalog. It is immutable after
// construction and safe for concurrent use.
type Classifier struct {
	matcher  *ahocorasick.Matcher
	phrases  []Marker // same order as the matcher's dictionary
	patterns []Marker
	logger   *slog.Logger
}

// New builds a classifier over DefaultMarkers.
func New(logger *slog.Logger) *Classifier {
	return NewWithMarkers(DefaultMarkers, logger)
}

// NewWithMarkers builds a classifier over a custom catalog. Duplicate phrases for
// the same type are counted once.
func NewWithMarkers(markers []Marker, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Classifier{logger: logger}

	seen := make(map[string]bool)
	dictionary := make([]string, 0, len(markers))
	for _, m := range markers {
		switch {
		case m.Pattern != nil:
			c.patterns = append(c.patterns, m)
		case m.Phrase != "":
			key := string(m.Type) + "\x00" + strings.ToLower(m.Phrase)
			if seen[key] {
				continue
			}
			seen[key] = true
			c.phrases = append(c.phrases, m)
			dictionary = append(dictionary, strings.ToLower(m.Phrase))
		}
	}
	if len(dictionary) > 0 {
		c.matcher = ahocorasick.NewStringMatcher(dictionary)
	}
	return c
}

// Classify returns the hint unchanged when one is given. Otherwise the type with
// the strictly highest number of distinct markers wins, ties go to the earlier
// entry of statement.KnownTypes and no markers at all yields Unknown. The markers
// found are reported alongside the scores.
func (c *Classifier) Classify(text string, hint statement.DocumentType) statement.Classification {
	if hint != "" {
		return statement.Classification{Type: hint, FromHint: true}
	}

	markers := c.Matched(text)
	scores := scoresOf(markers)
	best, bestScore := statement.Unknown, 0
	for _, t := range statement.KnownTypes {
		if scores[t] > bestScore {
			best, bestScore = t, scores[t]
		}
	}

	c.logger.Debug("document classified",
		slog.String("type", string(best)),
		slog.Int("score", bestScore),
	)
	return statement.Classification{Type: best, Scores: scores, Markers: markers}
}

// Score counts distinct matching markers per known type.
func (c *Classifier) Score(text string) map[statement.DocumentType]int {
	return scoresOf(c.Matched(text))
}

// Matched lists the distinct markers found in text by name, grouped by type.
func (c *Classifier) Matched(text string) map[statement.DocumentType][]string {
	out := make(map[statement.DocumentType][]string)
	if strings.TrimSpace(text) == "" {
		return out
	}
	if c.matcher != nil {
		hit := make(map[int]bool)
		for _, idx := range c.matcher.MatchThreadSafe([]byte(strings.ToLower(text))) {
			if idx < 0 || idx >= len(c.phrases) || hit[idx] {
				continue
			}
			hit[idx] = true
			m := c.phrases[idx]
			out[m.Type] = append(out[m.Type], m.Name)
		}
	}
	for _, m := range c.patterns {
		if m.Pattern.MatchString(text) {
			out[m.Type] = append(out[m.Type], m.Name)
		}
	}
	return out
}

func scoresOf(markers map[statement.DocumentType][]string) map[statement.DocumentType]int {
	scores := make(map[statement.DocumentType]int, len(statement.KnownTypes))
	for _, t := range statement.KnownTypes {
		scores[t] = len(markers[t])
	}
	return scores
}
