package domain

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogShape(t *testing.T) {
	c := DefaultCatalog()

	for _, it := range InterviewTypes {
		assert.Len(t, c[it], 10, "catalog for %s", it)
	}
}

func TestQuestionsForLength(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		name     string
		count    int
		expected int
	}{
		{name: "fewer than catalog", count: 3, expected: 3},
		{name: "exactly catalog", count: 10, expected: 10},
		{name: "more than catalog truncates", count: 25, expected: 10},
		{name: "single", count: 1, expected: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs, resolved, fellBack := c.QuestionsFor(InterviewTechnical, tt.count)

			assert.Len(t, qs, tt.expected)
			assert.Equal(t, InterviewTechnical, resolved)
			assert.False(t, fellBack)
			for i := range qs {
				assert.Equal(t, c[InterviewTechnical][i].Text, qs[i].Text, "catalog order at %d", i)
			}
		})
	}
}

func TestQuestionsForUnknownTypeFallsBack(t *testing.T) {
	c := DefaultCatalog()

	qs, resolved, fellBack := c.QuestionsFor("astrology", 2)

	assert.True(t, fellBack)
	assert.Equal(t, InterviewGeneral, resolved)
	require.Len(t, qs, 2)
	assert.Equal(t, "Why are you interested in this position?", qs[0].Text)
}

func TestParseInterviewType(t *testing.T) {
	it, ok := ParseInterviewType(" Behavioral ")
	assert.True(t, ok)
	assert.Equal(t, InterviewBehavioral, it)
	assert.Equal(t, "Behavioral", it.Title())

	_, ok = ParseInterviewType("")
	assert.False(t, ok)
}

func TestParseCatalogValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "missing type", yaml: "technical:\n  - {text: a, category: b, difficulty: easy}\n"},
		{name: "unknown type", yaml: "technical: [{text: a, category: b, difficulty: easy}]\nbehavioral: [{text: a, category: b, difficulty: easy}]\ngeneral: [{text: a, category: b, difficulty: easy}]\ntrivia: [{text: a, category: b, difficulty: easy}]\n"},
		{name: "bad difficulty", yaml: "technical: [{text: a, category: b, difficulty: brutal}]\nbehavioral: [{text: a, category: b, difficulty: easy}]\ngeneral: [{text: a, category: b, difficulty: easy}]\n"},
		{name: "missing text", yaml: "technical: [{category: b, difficulty: easy}]\nbehavioral: [{text: a, category: b, difficulty: easy}]\ngeneral: [{text: a, category: b, difficulty: easy}]\n"},
		{name: "not yaml", yaml: "::::"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalogOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `technical:
  - {text: "T1", category: Go, difficulty: hard, keywords: [goroutine]}
behavioral:
  - {text: "B1", category: Teamwork, difficulty: easy}
general:
  - {text: "G1", category: Motivation, difficulty: medium}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)

	qs, _, _ := c.QuestionsFor(InterviewTechnical, 5)
	require.Len(t, qs, 1)
	assert.Equal(t, []string{"goroutine"}, qs[0].ExpectedKeywords)
	assert.Equal(t, DifficultyHard, qs[0].Difficulty)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSessionAppendResponseKeepsScoresInStep(t *testing.T) {
	qs, _, _ := DefaultCatalog().QuestionsFor(InterviewGeneral, 3)
	s := NewSession("", "user-1", InterviewGeneral, qs, 3, 30, time.Now())

	require.NotEmpty(t, s.ID)
	assert.Equal(t, PhaseTiming, s.Phase)
	assert.Equal(t, 30, s.RemainingSec)

	s.AppendResponse(NewScoredResponse(0, qs[0], "ref-1", 55, "ok", false, time.Now()))
	s.AppendResponse(NewSkippedResponse(1, qs[1], time.Now()))
	s.AppendResponse(NewScoredResponse(2, qs[2], "", 90, "great", true, time.Now()))

	assert.Equal(t, []int{55, 90}, s.Scores)
	assert.Equal(t, 2, s.AnsweredCount())
}

func TestSessionCloneIsDeep(t *testing.T) {
	qs, _, _ := DefaultCatalog().QuestionsFor(InterviewTechnical, 1)
	s := NewSession("s-1", "u", InterviewTechnical, qs, 1, 10, time.Now())
	s.AppendResponse(NewScoredResponse(0, qs[0], "", 70, "fine", false, time.Now()))

	c := s.Clone()
	*c.Responses[0].Score = 1
	c.Questions[0].ExpectedKeywords[0] = "changed"
	c.Scores[0] = 2

	assert.Equal(t, 70, *s.Responses[0].Score)
	assert.Equal(t, "scope", s.Questions[0].ExpectedKeywords[0])
	assert.Equal(t, 70, s.Scores[0])
}

func TestPhaseInProgress(t *testing.T) {
	assert.True(t, PhaseTiming.InProgress())
	assert.True(t, PhaseScoring.InProgress())
	assert.True(t, PhaseAwaitingFeedback.InProgress())
	assert.False(t, PhaseIdle.InProgress())
	assert.False(t, PhaseCompleted.InProgress())
}
