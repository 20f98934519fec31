package services

import (
	"context"
	"strings"
	"testing"

	"evolveedu/internal/config"
	"evolveedu/internal/models"
	"evolveedu/internal/observability"
	contextutils "evolveedu/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServiceConfig() *config.Config {
	return &config.Config{
		Domains: config.DomainsConfig{
			Notes:   config.ModelConfig{Model: config.DefaultNotesModel, MaxNewTokens: config.DefaultNotesMaxNewTokens},
			Quiz:    config.ModelConfig{Model: config.DefaultQuizModel, MaxNewTokens: config.DefaultQuizMaxNewTokens},
			Roadmap: config.ModelConfig{Model: config.DefaultRoadmapModel, MaxNewTokens: config.DefaultRoadmapMaxNewTokens},
			Tutor:   config.ModelConfig{Model: config.DefaultTutorModel, MaxNewTokens: config.DefaultTutorMaxNewTokens},
		},
	}
}

func newTestQuizService(gen *stubGenerator) *QuizService {
	pm, err := NewPromptManager()
	if err != nil {
		panic(err)
	}
	logger := observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
	return NewQuizService(nil, testServiceConfig(), gen, pm, logger)
}

func TestParseGeneratedQuiz(t *testing.T) {
	raw := `Here is the set you asked for.
What process do plants use to convert sunlight into energy?
Some filler commentary line here.
True or false: photosynthesis occurs in the mitochondria?
What is the role of chlorophyll in photosynthesis?`

	quiz := parseGeneratedQuiz(raw, "photosynthesis", 3)

	require.Len(t, quiz.Questions, 3)
	assert.Equal(t, "AI Generated Quiz: photosynthesis", quiz.Title)

	assert.Equal(t, models.MultipleChoice, quiz.Questions[0].Type)
	assert.Len(t, quiz.Questions[0].Options, 4)
	assert.Equal(t, quiz.Questions[0].Options[0], quiz.Questions[0].CorrectAnswers[0])

	assert.Equal(t, models.TrueFalse, quiz.Questions[1].Type)
	assert.Equal(t, []string{"True", "False"}, quiz.Questions[1].Options)
	assert.Equal(t, []string{"True"}, quiz.Questions[1].CorrectAnswers)

	assert.Equal(t, models.ShortAnswer, quiz.Questions[2].Type)
}

func TestParseGeneratedQuiz_TopsUpFromTemplates(t *testing.T) {
	quiz := parseGeneratedQuiz("nothing that looks like a quiz here", "algebra", 5)

	require.Len(t, quiz.Questions, 5)
	// Rotating templates: 3 distinct, then repetition starts.
	assert.Equal(t, quiz.Questions[0].Text, quiz.Questions[3].Text)
	assert.Equal(t, quiz.Questions[1].Text, quiz.Questions[4].Text)
	assert.NotEqual(t, quiz.Questions[0].Text, quiz.Questions[1].Text)
}

func TestDetectQuestionType(t *testing.T) {
	assert.Equal(t, models.TrueFalse, detectQuestionType("True or false: the earth is flat?"))
	assert.Equal(t, models.TrueFalse, detectQuestionType("Is it true that water boils at 100C?"))
	assert.Equal(t, models.ShortAnswer, detectQuestionType("What is the capital of France?"))
	assert.Equal(t, models.ShortAnswer, detectQuestionType("Define the term ecosystem in your own words?"))
	assert.Equal(t, models.MultipleChoice, detectQuestionType("Which planet has the most moons?"))
}

func TestFallbackQuiz_Deterministic(t *testing.T) {
	a := fallbackQuiz("Cell Biology", 4)
	b := fallbackQuiz("Cell Biology", 4)
	assert.Equal(t, a, b)

	require.Len(t, a.Questions, 4)
	assert.Equal(t, "What is the main principle behind Cell Biology?", a.Questions[0].Text)
	assert.Equal(t, "Which statement about Cell Biology is correct?", a.Questions[1].Text)
	assert.Equal(t, models.TrueFalse, a.Questions[2].Type)
	assert.Equal(t, a.Questions[0].Text, a.Questions[3].Text, "fourth question wraps around the templates")
}

func TestValidateGeneratedQuiz(t *testing.T) {
	valid := fallbackQuiz("math", 2)
	assert.NoError(t, validateGeneratedQuiz(&valid))

	invalid := models.GeneratedQuiz{Title: "broken"}
	assert.Error(t, validateGeneratedQuiz(&invalid), "empty question list must fail")

	noAnswers := models.GeneratedQuiz{
		Title: "broken",
		Questions: []models.GeneratedQuestion{
			{Text: "q?", Type: models.MultipleChoice, Points: 1},
		},
	}
	assert.Error(t, validateGeneratedQuiz(&noAnswers), "missing correct answers must fail")
}

func TestGradeShortAnswer_ModelReply(t *testing.T) {
	s := newTestQuizService(&stubGenerator{replies: []string{"That answer is correct."}})
	assert.True(t, s.gradeShortAnswer(context.Background(), "Paris", []string{"paris"}))

	s = newTestQuizService(&stubGenerator{replies: []string{"incorrect, the answer differs"}})
	assert.False(t, s.gradeShortAnswer(context.Background(), "London", []string{"paris"}))
}

func TestGradeShortAnswer_SentinelDegradesToExactMatch(t *testing.T) {
	s := newTestQuizService(&stubGenerator{err: contextutils.ErrInferenceUnavailable})

	assert.True(t, s.gradeShortAnswer(context.Background(), "Paris", []string{"paris"}))
	assert.True(t, s.gradeShortAnswer(context.Background(), "  paris  ", []string{"Paris"}))
	assert.False(t, s.gradeShortAnswer(context.Background(), "Lyon", []string{"paris"}))
}

func TestGradeQuestion_ChoiceTypes(t *testing.T) {
	s := newTestQuizService(&stubGenerator{err: contextutils.ErrInferenceUnavailable})

	mc := models.QuizQuestion{Type: models.MultipleChoice, CorrectAnswers: []string{"A) Primary concept of math"}, Points: 1}
	assert.True(t, s.gradeQuestion(context.Background(), &mc, "A) Primary concept of math"))
	assert.False(t, s.gradeQuestion(context.Background(), &mc, "B) Secondary aspect of math"))
	assert.False(t, s.gradeQuestion(context.Background(), &mc, ""))

	tf := models.QuizQuestion{Type: models.TrueFalse, CorrectAnswers: []string{"True"}, Points: 1}
	assert.True(t, s.gradeQuestion(context.Background(), &tf, "true"))
	assert.False(t, s.gradeQuestion(context.Background(), &tf, "False"))
}

func TestPersonalizedFeedback_KeepsSubstantialReply(t *testing.T) {
	reply := "Great effort on this quiz, you clearly understand the core ideas."
	s := newTestQuizService(&stubGenerator{replies: []string{reply}})
	assert.Equal(t, reply, s.personalizedFeedback(context.Background(), "Quiz", 90, 9, 10))
}

func TestPersonalizedFeedback_ShortReplyFallsBack(t *testing.T) {
	s := newTestQuizService(&stubGenerator{replies: []string{"ok"}})
	got := s.personalizedFeedback(context.Background(), "Biology Quiz", 90, 9, 10)
	assert.True(t, strings.HasPrefix(got, "Excellent work! You scored 90%"), got)
}

func TestFallbackFeedback_Bands(t *testing.T) {
	assert.Contains(t, fallbackFeedback(85, "Q"), "Excellent work!")
	assert.Contains(t, fallbackFeedback(80, "Q"), "Excellent work!")
	assert.Contains(t, fallbackFeedback(70, "Q"), "Good job!")
	assert.Contains(t, fallbackFeedback(60, "Q"), "Good job!")
	assert.Contains(t, fallbackFeedback(40, "Q"), "Don't be discouraged")
}
