package domain

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalogYAML []byte

// Catalog maps each interview type to its ordered questions.
type Catalog map[InterviewType][]Question

// DefaultCatalog parses the embedded catalog. It panics on a malformed
// embedded file since that can only be a build defect.
func DefaultCatalog() Catalog {
	c, err := ParseCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded question catalog: %v", err))
	}
	return c
}

// LoadCatalog reads a catalog override from a YAML file.
func LoadCatalog(filename string) (Catalog, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", filename, err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}
	return c, nil
}

func (c Catalog) validate() error {
	for t := range c {
		if _, ok := ParseInterviewType(string(t)); !ok {
			return fmt.Errorf("unknown interview type %q", t)
		}
	}

	for _, t := range InterviewTypes {
		questions := c[t]
		if len(questions) == 0 {
			return fmt.Errorf("interview type %q has no questions", t)
		}
		for i, q := range questions {
			if q.Text == "" {
				return fmt.Errorf("%s question %d must have text", t, i+1)
			}
			if q.Category == "" {
				return fmt.Errorf("%s question %d must have a category", t, i+1)
			}
			if !q.Difficulty.Valid() {
				return fmt.Errorf("%s question %d has invalid difficulty %q", t, i+1, q.Difficulty)
			}
		}
	}
	return nil
}

// QuestionsFor returns the first min(count, len(catalog)) questions for the
// interview type in catalog order. An unrecognised type falls back to the
// general catalog; resolved is the type actually used and fellBack reports
// whether the fallback applied.
func (c Catalog) QuestionsFor(t InterviewType, count int) (questions []Question, resolved InterviewType, fellBack bool) {
	resolved, ok := ParseInterviewType(string(t))
	fellBack = !ok

	src := c[resolved]
	n := count
	if n > len(src) {
		n = len(src)
	}
	if n < 0 {
		n = 0
	}

	questions = make([]Question, n)
	copy(questions, src[:n])
	return questions, resolved, fellBack
}
