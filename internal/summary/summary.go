// Package summary rolls a session's responses up into overall and
// per-category results and renders the downloadable text report.
package summary

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hperssn/mockinterview/internal/domain"
)

type CategorySummary struct {
	Category               string `json:"category"`
	AverageScore           int    `json:"averageScore"`
	RepresentativeFeedback string `json:"feedback"`
}

type Overall struct {
	OverallScore      int               `json:"totalScore"`
	ElapsedSeconds    int               `json:"totalTime"`
	QuestionsAnswered int               `json:"questionsAnswered"`
	TotalQuestions    int               `json:"totalQuestions"`
	Categories        []CategorySummary `json:"categories"`
}

// Summarize derives the overall result of a session. Completed sessions are
// timed up to CompletedAt; otherwise now is used.
func Summarize(s *domain.Session, now time.Time) Overall {
	end := now
	if !s.CompletedAt.IsZero() {
		end = s.CompletedAt
	}
	elapsed := 0
	if !s.StartedAt.IsZero() && end.After(s.StartedAt) {
		elapsed = int(end.Sub(s.StartedAt).Seconds())
	}

	return Overall{
		OverallScore:      mean(s.Scores),
		ElapsedSeconds:    elapsed,
		QuestionsAnswered: s.AnsweredCount(),
		TotalQuestions:    len(s.Questions),
		Categories:        categories(s),
	}
}

// categories groups scored responses by question category in first-seen
// order. The representative feedback is the first one seen, not the best.
func categories(s *domain.Session) []CategorySummary {
	type group struct {
		scores   []int
		feedback string
	}
	var order []string
	groups := make(map[string]*group)

	for _, r := range s.Responses {
		if !r.Scored() {
			continue
		}
		if r.QuestionIndex < 0 || r.QuestionIndex >= len(s.Questions) {
			continue
		}
		cat := s.Questions[r.QuestionIndex].Category

		g, ok := groups[cat]
		if !ok {
			g = &group{feedback: r.Feedback}
			groups[cat] = g
			order = append(order, cat)
		}
		g.scores = append(g.scores, *r.Score)
	}

	out := make([]CategorySummary, 0, len(order))
	for _, cat := range order {
		g := groups[cat]
		out = append(out, CategorySummary{
			Category:               cat,
			AverageScore:           mean(g.scores),
			RepresentativeFeedback: g.feedback,
		})
	}
	return out
}

func mean(xs []int) int {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return int(math.Round(float64(sum) / float64(len(xs))))
}

// Report renders the plain-text interview report.
func Report(s *domain.Session, o Overall, date time.Time) string {
	var b strings.Builder

	b.WriteString("AI Mock Interview Report\n")
	b.WriteString("========================\n\n")
	b.WriteString(fmt.Sprintf("Interview Type: %s\n", s.InterviewType.Title()))
	b.WriteString(fmt.Sprintf("Date: %s\n", date.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Total Score: %d/100\n", o.OverallScore))
	b.WriteString(fmt.Sprintf("Questions Answered: %d\n\n", o.QuestionsAnswered))

	b.WriteString("Question Responses:\n")
	b.WriteString("==================\n\n")

	for i, r := range s.Responses {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, r.QuestionText))
		if r.Skipped || r.Score == nil {
			b.WriteString("   Status: Skipped\n\n")
			continue
		}
		b.WriteString(fmt.Sprintf("   Score: %d/100\n", *r.Score))
		b.WriteString(fmt.Sprintf("   Feedback: %s\n\n", r.Feedback))
	}

	return b.String()
}

// ReportFilename is the suggested download name for a report.
func ReportFilename(date time.Time) string {
	return fmt.Sprintf("interview-report-%s.txt", date.Format("2006-01-02"))
}
