package domain

import "strings"

type InterviewType string

const (
	InterviewTechnical  InterviewType = "technical"
	InterviewBehavioral InterviewType = "behavioral"
	InterviewGeneral    InterviewType = "general"
)

// InterviewTypes lists the recognised types in catalog order.
var InterviewTypes = []InterviewType{InterviewTechnical, InterviewBehavioral, InterviewGeneral}

func ParseInterviewType(s string) (InterviewType, bool) {
	t := InterviewType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range InterviewTypes {
		if t == known {
			return t, true
		}
	}
	return InterviewGeneral, false
}

// Title returns the type with its first letter upper-cased, as shown in reports.
func (t InterviewType) Title() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Question is immutable once loaded from the catalog.
type Question struct {
	Text             string     `yaml:"text" json:"question"`
	Category         string     `yaml:"category" json:"category"`
	Difficulty       Difficulty `yaml:"difficulty" json:"difficulty"`
	ExpectedKeywords []string   `yaml:"keywords" json:"expectedKeywords"`
}
