// Package interview loads the onboarding questionnaire and validates answers to it.
package interview

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed questions.yaml
var defaultQuestions []byte

// MaxAnswerLength bounds a stored answer, in runes.
const MaxAnswerLength = 500

// Question kinds.
const (
	KindText   = "text"
	KindChoice = "choice"
)

var (
	ErrUnknownField = errors.New("unknown interview field")
	ErrInvalidValue = errors.New("invalid interview answer")
)

// Question is one interview prompt.
type Question struct {
	Field   string   `yaml:"field" json:"field"`
	Prompt  string   `yaml:"prompt" json:"prompt"`
	Kind    string   `yaml:"kind" json:"kind"`
	Options []string `yaml:"options,omitempty" json:"options,omitempty"`
}

// Catalog is an ordered, immutable set of questions.
type Catalog struct {
	questions []Question
	byField   map[string]int
}

type document struct {
	Questions []Question `yaml:"questions"`
}

// Parse decodes a YAML questionnaire.
func Parse(b []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("interview: parse: %w", err)
	}
	if len(doc.Questions) == 0 {
		return nil, errors.New("interview: catalog has no questions")
	}
	c := &Catalog{byField: make(map[string]int, len(doc.Questions))}
	for i, q := range doc.Questions {
		if q.Field == "" {
			return nil, fmt.Errorf("interview: question %d has no field", i)
		}
		if _, dup := c.byField[q.Field]; dup {
			return nil, fmt.Errorf("interview: duplicate field %q", q.Field)
		}
		switch q.Kind {
		case "":
			q.Kind = KindText
		case KindText:
		case KindChoice:
			if len(q.Options) == 0 {
				return nil, fmt.Errorf("interview: choice question %q has no options", q.Field)
			}
		default:
			return nil, fmt.Errorf("interview: question %q has unknown kind %q", q.Field, q.Kind)
		}
		c.byField[q.Field] = len(c.questions)
		c.questions = append(c.questions, q)
	}
	return c, nil
}

// Default returns the embedded questionnaire.
func Default() *Catalog {
	c, err := Parse(defaultQuestions)
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads a questionnaire from path, or returns Default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("interview: %w", err)
	}
	return Parse(b)
}

// Questions returns the questions in order.
func (c *Catalog) Questions() []Question {
	return append([]Question(nil), c.questions...)
}

// Fields returns the question fields in order.
func (c *Catalog) Fields() []string {
	out := make([]string, len(c.questions))
	for i, q := range c.questions {
		out[i] = q.Field
	}
	return out
}

// Normalize validates value for field and returns it trimmed.
func (c *Catalog) Normalize(field, value string) (string, error) {
	i, ok := c.byField[field]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	q := c.questions[i]
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%w: %s must not be blank", ErrInvalidValue, field)
	}
	if utf8.RuneCountInString(value) > MaxAnswerLength {
		return "", fmt.Errorf("%w: %s is too long", ErrInvalidValue, field)
	}
	if q.Kind == KindChoice {
		for _, opt := range q.Options {
			if value == opt {
				return value, nil
			}
		}
		return "", fmt.Errorf("%w: %s must be one of %s", ErrInvalidValue, field, strings.Join(q.Options, ", "))
	}
	return value, nil
}
