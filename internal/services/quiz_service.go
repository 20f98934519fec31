package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"evolveedu/internal/config"
	"evolveedu/internal/inference"
	"evolveedu/internal/models"
	"evolveedu/internal/observability"
	"evolveedu/internal/textparse"
	contextutils "evolveedu/internal/utils"

	"github.com/xeipuuv/gojsonschema"
)

// generatedQuizSchema guards parsed quiz payloads before they are persisted.
// A violating payload is treated the same as an unusable model reply.
const generatedQuizSchema = `{
  "type": "object",
  "required": ["title", "questions"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "questions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["text", "type", "correct_answers", "points"],
        "properties": {
          "text": {"type": "string", "minLength": 1},
          "type": {"enum": ["multiple_choice", "true_false", "short_answer"]},
          "options": {"type": "array", "items": {"type": "string"}},
          "correct_answers": {"type": "array", "minItems": 1, "items": {"type": "string"}},
          "explanation": {"type": "string"},
          "hint": {"type": "string"},
          "points": {"type": "integer", "minimum": 1}
        }
      }
    }
  }
}`

// QuizServiceInterface defines the interface for quiz operations
type QuizServiceInterface interface {
	GenerateQuiz(ctx context.Context, learnerID string, req *models.CreateQuizRequest) (*models.Quiz, error)
	GetQuiz(ctx context.Context, learnerID string, quizID int) (*models.Quiz, error)
	ListQuizzes(ctx context.Context, learnerID string) ([]models.Quiz, error)
	EvaluateAttempt(ctx context.Context, learnerID string, quizID int, req *models.SubmitAttemptRequest) (*models.QuizAttempt, error)
	ListAttempts(ctx context.Context, learnerID string, quizID int) ([]models.QuizAttempt, error)
}

// QuizService generates quizzes and grades attempts against them
type QuizService struct {
	db        *sql.DB
	config    *config.Config
	generator inference.Generator
	prompts   *PromptManager
	logger    *observability.Logger
}

// NewQuizService creates a new QuizService instance
func NewQuizService(db *sql.DB, cfg *config.Config, generator inference.Generator, prompts *PromptManager, logger *observability.Logger) *QuizService {
	return &QuizService{
		db:        db,
		config:    cfg,
		generator: generator,
		prompts:   prompts,
		logger:    logger,
	}
}

// GenerateQuiz produces a quiz about the requested topic. The model reply is
// parsed line by line into questions; too few parsed questions are topped up
// from the deterministic fallback templates, and a schema violation or
// unavailable model falls back entirely.
func (s *QuizService) GenerateQuiz(ctx context.Context, learnerID string, req *models.CreateQuizRequest) (result0 *models.Quiz, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "GenerateQuiz",
		observability.AttributeLearnerID(learnerID),
	)
	defer observability.FinishSpan(span, &err)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = models.DifficultyIntermediate
	}

	prompt, err := s.prompts.Render(QuizGeneratePromptTemplate, PromptData{
		Topic:         req.Topic,
		Difficulty:    difficulty,
		QuestionCount: req.QuestionCount,
		SourceText:    truncate(req.SourceText, config.NotesPromptExcerptChars),
	})
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to render quiz prompt")
	}

	var generated models.GeneratedQuiz
	raw, genErr := s.generator.Generate(ctx, s.config.Domains.Quiz.Model, prompt,
		inference.DefaultParams(s.config.Domains.Quiz.MaxNewTokens))
	if genErr != nil {
		s.logger.Warn(ctx, "Quiz generation unavailable, using fallback", map[string]interface{}{
			"learner_id": learnerID,
			"topic":      req.Topic,
			"error":      genErr.Error(),
		})
		generated = fallbackQuiz(req.Topic, req.QuestionCount)
	} else {
		generated = parseGeneratedQuiz(raw, req.Topic, req.QuestionCount)
		if validateErr := validateGeneratedQuiz(&generated); validateErr != nil {
			s.logger.Warn(ctx, "Parsed quiz failed schema validation, using fallback", map[string]interface{}{
				"topic": req.Topic,
				"error": validateErr.Error(),
			})
			generated = fallbackQuiz(req.Topic, req.QuestionCount)
		}
	}

	quiz := &models.Quiz{
		LearnerID:     learnerID,
		Title:         generated.Title,
		Topic:         req.Topic,
		Difficulty:    difficulty,
		QuestionCount: len(generated.Questions),
		PassingScore:  config.QuizPassingScore,
	}
	if err := s.createQuiz(ctx, quiz, generated.Questions); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Quiz generated", map[string]interface{}{
		"quiz_id":    quiz.ID,
		"learner_id": learnerID,
		"questions":  len(quiz.Questions),
		"fallback":   genErr != nil,
	})

	return quiz, nil
}

// GetQuiz fetches one quiz with its questions
func (s *QuizService) GetQuiz(ctx context.Context, learnerID string, quizID int) (result0 *models.Quiz, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "GetQuiz",
		observability.AttributeQuizID(quizID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT id, learner_id, title, topic, difficulty, question_count, passing_score, created_at
		FROM quizzes
		WHERE id = $1 AND learner_id = $2`

	var quiz models.Quiz
	err = s.db.QueryRowContext(ctx, query, quizID, learnerID).Scan(
		&quiz.ID, &quiz.LearnerID, &quiz.Title, &quiz.Topic, &quiz.Difficulty,
		&quiz.QuestionCount, &quiz.PassingScore, &quiz.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.ErrRecordNotFound
		}
		return nil, contextutils.WrapErrorf(err, "failed to get quiz %d", quizID)
	}

	quiz.Questions, err = s.getQuizQuestions(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

// ListQuizzes returns the learner's quizzes without questions, newest first
func (s *QuizService) ListQuizzes(ctx context.Context, learnerID string) (result0 []models.Quiz, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "ListQuizzes",
		observability.AttributeLearnerID(learnerID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT id, learner_id, title, topic, difficulty, question_count, passing_score, created_at
		FROM quizzes
		WHERE learner_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, learnerID)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to list quizzes")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var quizzes []models.Quiz
	for rows.Next() {
		var quiz models.Quiz
		if err := rows.Scan(&quiz.ID, &quiz.LearnerID, &quiz.Title, &quiz.Topic,
			&quiz.Difficulty, &quiz.QuestionCount, &quiz.PassingScore, &quiz.CreatedAt); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to scan quiz")
		}
		quizzes = append(quizzes, quiz)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to iterate quizzes")
	}
	return quizzes, nil
}

// EvaluateAttempt grades submitted answers against the quiz, generates
// personalized feedback, and persists the attempt.
func (s *QuizService) EvaluateAttempt(ctx context.Context, learnerID string, quizID int, req *models.SubmitAttemptRequest) (result0 *models.QuizAttempt, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "EvaluateAttempt",
		observability.AttributeLearnerID(learnerID),
		observability.AttributeQuizID(quizID),
	)
	defer observability.FinishSpan(span, &err)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	quiz, err := s.GetQuiz(ctx, learnerID, quizID)
	if err != nil {
		return nil, err
	}

	evaluation := s.evaluate(ctx, quiz, req.Answers)

	attempt := &models.QuizAttempt{
		QuizID:          quizID,
		LearnerID:       learnerID,
		Answers:         req.Answers,
		ScorePercent:    evaluation.ScorePercent,
		Passed:          evaluation.Passed,
		Feedback:        evaluation.Feedback,
		Recommendations: evaluation.Recommendations,
		PerQuestion:     evaluation.PerQuestion,
	}
	if err := s.createAttempt(ctx, attempt); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Quiz attempt evaluated", map[string]interface{}{
		"quiz_id":       quizID,
		"learner_id":    learnerID,
		"score_percent": attempt.ScorePercent,
		"passed":        attempt.Passed,
	})

	return attempt, nil
}

// ListAttempts returns the learner's attempts at one quiz, newest first
func (s *QuizService) ListAttempts(ctx context.Context, learnerID string, quizID int) (result0 []models.QuizAttempt, err error) {
	ctx, span := observability.TraceQuizFunction(ctx, "ListAttempts",
		observability.AttributeQuizID(quizID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT id, quiz_id, learner_id, answers, score_percent, passed, feedback,
		       recommendations, per_question, created_at
		FROM quiz_attempts
		WHERE quiz_id = $1 AND learner_id = $2
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, quizID, learnerID)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to list attempts")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var attempts []models.QuizAttempt
	for rows.Next() {
		var attempt models.QuizAttempt
		var answers, recommendations, perQuestion []byte
		if err := rows.Scan(&attempt.ID, &attempt.QuizID, &attempt.LearnerID, &answers,
			&attempt.ScorePercent, &attempt.Passed, &attempt.Feedback,
			&recommendations, &perQuestion, &attempt.CreatedAt); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to scan attempt")
		}
		if err := json.Unmarshal(answers, &attempt.Answers); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to decode attempt answers")
		}
		if err := json.Unmarshal(recommendations, &attempt.Recommendations); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to decode attempt recommendations")
		}
		if err := json.Unmarshal(perQuestion, &attempt.PerQuestion); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to decode attempt results")
		}
		attempts = append(attempts, attempt)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to iterate attempts")
	}
	return attempts, nil
}

// evaluate grades every question and assembles feedback and recommendations.
func (s *QuizService) evaluate(ctx context.Context, quiz *models.Quiz, answers map[string]string) models.QuizEvaluation {
	var earned, total, correctCount int
	results := make([]models.QuestionResult, 0, len(quiz.Questions))

	for _, q := range quiz.Questions {
		answer := answers[strconv.Itoa(q.ID)]
		correct := s.gradeQuestion(ctx, &q, answer)

		points := 0
		if correct {
			points = q.Points
			correctCount++
		}
		earned += points
		total += q.Points

		results = append(results, models.QuestionResult{
			QuestionID:   q.ID,
			Question:     q.Text,
			Correct:      correct,
			PointsEarned: points,
			UserAnswer:   answer,
			Explanation:  q.Explanation,
		})
	}

	var score float64
	if total > 0 {
		score = float64(earned) / float64(total) * 100
	}

	return models.QuizEvaluation{
		ScorePercent:    score,
		Passed:          score >= float64(quiz.PassingScore),
		CorrectCount:    correctCount,
		TotalQuestions:  len(quiz.Questions),
		Feedback:        s.personalizedFeedback(ctx, quiz.Title, score, correctCount, len(quiz.Questions)),
		Recommendations: s.recommendations(ctx, quiz, score),
		PerQuestion:     results,
	}
}

// gradeQuestion checks one answer. Choice questions match exactly (case
// folded); short answers go through a second inference round and degrade to
// exact matching when the model is unavailable.
func (s *QuizService) gradeQuestion(ctx context.Context, q *models.QuizQuestion, answer string) bool {
	if strings.TrimSpace(answer) == "" {
		return false
	}

	switch q.Type {
	case models.ShortAnswer:
		return s.gradeShortAnswer(ctx, answer, q.CorrectAnswers)
	default:
		for _, correct := range q.CorrectAnswers {
			if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(correct)) {
				return true
			}
		}
		return false
	}
}

// gradeShortAnswer asks the model whether the answer is acceptable. The reply
// counts as correct iff it contains "correct" and not "incorrect". On a
// failure sentinel the grade degrades to case-insensitive exact matching.
func (s *QuizService) gradeShortAnswer(ctx context.Context, answer string, accepted []string) bool {
	exactMatch := func() bool {
		for _, correct := range accepted {
			if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(correct)) {
				return true
			}
		}
		return false
	}

	prompt, err := s.prompts.Render(QuizGradePromptTemplate, PromptData{
		UserAnswer:     answer,
		CorrectAnswers: strings.Join(accepted, ", "),
	})
	if err != nil {
		return exactMatch()
	}

	raw, err := s.generator.Generate(ctx, s.config.Domains.Quiz.Model, prompt,
		inference.DefaultParams(s.config.Domains.Quiz.MaxNewTokens))
	if err != nil {
		return exactMatch()
	}

	lower := strings.ToLower(raw)
	if !strings.Contains(lower, "correct") {
		return exactMatch()
	}
	return !strings.Contains(lower, "incorrect")
}

// personalizedFeedback asks the model for encouragement and keeps the reply
// when it is substantial, otherwise falls back to a canned score band.
func (s *QuizService) personalizedFeedback(ctx context.Context, title string, score float64, correctCount, totalCount int) string {
	prompt, err := s.prompts.Render(QuizFeedbackPromptTemplate, PromptData{
		Title:        title,
		ScorePercent: int(score),
		CorrectCount: correctCount,
		TotalCount:   totalCount,
	})
	if err == nil {
		if raw, genErr := s.generator.Generate(ctx, s.config.Domains.Quiz.Model, prompt,
			inference.DefaultParams(s.config.Domains.Quiz.MaxNewTokens)); genErr == nil && len(raw) > 20 {
			return raw
		}
	}
	return fallbackFeedback(score, title)
}

// fallbackFeedback is the canned feedback per score band.
func fallbackFeedback(score float64, title string) string {
	switch {
	case score >= 80:
		return fmt.Sprintf("Excellent work! You scored %.0f%% on %s. Your understanding of the material is strong. Keep up the great studying!", score, title)
	case score >= 60:
		return fmt.Sprintf("Good job! You scored %.0f%% on %s. You have a solid foundation. Review the areas you missed and try again to improve further.", score, title)
	default:
		return fmt.Sprintf("You scored %.0f%% on %s. Don't be discouraged - this is a learning opportunity! Review the material carefully and practice more. Every expert was once a beginner.", score, title)
	}
}

// recommendations aggregates the learner's recent attempt scores per topic:
// weak topics (avg below passing) get practice suggestions, strong topics
// (avg 85 or above) get a push toward harder material.
func (s *QuizService) recommendations(ctx context.Context, quiz *models.Quiz, currentScore float64) []string {
	type topicScores struct {
		sum   float64
		count int
	}
	byTopic := map[string]*topicScores{
		quiz.Topic: {sum: currentScore, count: 1},
	}

	query := `
		SELECT q.topic, a.score_percent
		FROM quiz_attempts a
		JOIN quizzes q ON q.id = a.quiz_id
		WHERE a.learner_id = $1
		ORDER BY a.created_at DESC
		LIMIT 10`

	rows, err := s.db.QueryContext(ctx, query, quiz.LearnerID)
	if err == nil {
		defer func() {
			if closeErr := rows.Close(); closeErr != nil {
				s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
			}
		}()
		for rows.Next() {
			var topic string
			var score float64
			if scanErr := rows.Scan(&topic, &score); scanErr != nil {
				break
			}
			if byTopic[topic] == nil {
				byTopic[topic] = &topicScores{}
			}
			byTopic[topic].sum += score
			byTopic[topic].count++
		}
		_ = rows.Err()
	}

	var recs []string
	for topic, scores := range byTopic {
		avg := scores.sum / float64(scores.count)
		switch {
		case avg < 70:
			recs = append(recs, fmt.Sprintf("Practice this topic to improve your understanding of %s", topic))
		case avg >= 85:
			recs = append(recs, fmt.Sprintf("You show strong command of %s - try a harder difficulty next", topic))
		}
	}
	return recs
}

// parseGeneratedQuiz structures a raw model reply into quiz questions. A line
// starts a new question when it ends with "?" or mentions "question" and is
// longer than 20 characters. Missing questions are topped up from the
// fallback templates.
func parseGeneratedQuiz(raw, topic string, count int) models.GeneratedQuiz {
	var questions []models.GeneratedQuestion

	for _, line := range textparse.Lines(raw) {
		if len(questions) >= count {
			break
		}
		if line == "" || len(line) <= 20 {
			continue
		}
		if !strings.HasSuffix(line, "?") && !textparse.ContainsAny(line, []string{"question"}) {
			continue
		}
		questions = append(questions, buildQuestion(line, topic))
	}

	questions = topUpQuestions(questions, topic, count)
	return models.GeneratedQuiz{
		Title:     fmt.Sprintf("AI Generated Quiz: %s", topic),
		Questions: questions,
	}
}

// buildQuestion assembles one question from its text line.
func buildQuestion(line, topic string) models.GeneratedQuestion {
	q := models.GeneratedQuestion{
		Text:        line,
		Type:        detectQuestionType(line),
		Explanation: fmt.Sprintf("This question tests understanding of %s.", topic),
		Hint:        fmt.Sprintf("Consider the key concepts of %s.", topic),
		Points:      1,
	}

	switch q.Type {
	case models.MultipleChoice:
		q.Options = multipleChoiceOptions(topic)
		q.CorrectAnswers = []string{q.Options[0]}
	case models.TrueFalse:
		q.Options = []string{"True", "False"}
		if textparse.ContainsAny(line, []string{"true"}) {
			q.CorrectAnswers = []string{"True"}
		} else {
			q.CorrectAnswers = []string{"False"}
		}
	case models.ShortAnswer:
		q.CorrectAnswers = []string{topic}
	}
	return q
}

// detectQuestionType picks the question type from phrasing.
func detectQuestionType(line string) models.QuestionType {
	if textparse.ContainsAny(line, []string{"true or false", "is it true", "correct or incorrect"}) {
		return models.TrueFalse
	}
	if textparse.ContainsAny(line, []string{"what is", "define", "name"}) {
		return models.ShortAnswer
	}
	return models.MultipleChoice
}

// multipleChoiceOptions templates four candidates; the first is correct.
func multipleChoiceOptions(topic string) []string {
	return []string{
		fmt.Sprintf("A) Primary concept of %s", topic),
		fmt.Sprintf("B) Secondary aspect of %s", topic),
		"C) Related but different concept",
		"D) Unrelated option",
	}
}

// topUpQuestions fills a short question list from the rotating fallback
// templates until count is reached.
func topUpQuestions(questions []models.GeneratedQuestion, topic string, count int) []models.GeneratedQuestion {
	templates := fallbackQuestionTemplates(topic)
	for i := 0; len(questions) < count; i++ {
		questions = append(questions, templates[i%len(templates)])
	}
	return questions[:count]
}

// fallbackQuiz is the deterministic quiz produced when the model is
// unavailable: the rotating templates repeated up to the requested count.
func fallbackQuiz(topic string, count int) models.GeneratedQuiz {
	return models.GeneratedQuiz{
		Title:     fmt.Sprintf("AI Generated Quiz: %s", topic),
		Questions: topUpQuestions(nil, topic, count),
	}
}

// fallbackQuestionTemplates are the three rotating question templates.
func fallbackQuestionTemplates(topic string) []models.GeneratedQuestion {
	explanation := fmt.Sprintf("This question tests understanding of %s concepts.", topic)
	hint := fmt.Sprintf("Think about the fundamental principles of %s.", topic)

	mc1 := []string{
		fmt.Sprintf("A) Core concept of %s", topic),
		fmt.Sprintf("B) Basic principle of %s", topic),
		fmt.Sprintf("C) Advanced theory of %s", topic),
		"D) Unrelated concept",
	}
	mc2 := []string{
		fmt.Sprintf("A) %s involves specific processes", topic),
		fmt.Sprintf("B) %s is completely theoretical", topic),
		fmt.Sprintf("C) %s has no practical applications", topic),
		fmt.Sprintf("D) %s is outdated", topic),
	}

	return []models.GeneratedQuestion{
		{
			Text:           fmt.Sprintf("What is the main principle behind %s?", topic),
			Type:           models.MultipleChoice,
			Options:        mc1,
			CorrectAnswers: []string{mc1[0]},
			Explanation:    explanation,
			Hint:           hint,
			Points:         1,
		},
		{
			Text:           fmt.Sprintf("Which statement about %s is correct?", topic),
			Type:           models.MultipleChoice,
			Options:        mc2,
			CorrectAnswers: []string{mc2[0]},
			Explanation:    explanation,
			Hint:           hint,
			Points:         1,
		},
		{
			Text:           fmt.Sprintf("%s is essential for understanding the subject.", topic),
			Type:           models.TrueFalse,
			Options:        []string{"True", "False"},
			CorrectAnswers: []string{"True"},
			Explanation:    explanation,
			Hint:           hint,
			Points:         1,
		},
	}
}

// validateGeneratedQuiz checks the parsed payload against the embedded schema.
func validateGeneratedQuiz(quiz *models.GeneratedQuiz) error {
	doc, err := json.Marshal(quiz)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to marshal quiz for validation")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(generatedQuizSchema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return contextutils.WrapErrorf(err, "quiz schema validation failed to run")
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return contextutils.NewAppError(contextutils.ErrorCodeValidationFailed, contextutils.SeverityWarn,
			"Generated quiz failed schema validation", strings.Join(details, "; "))
	}
	return nil
}

// createQuiz inserts a quiz and its questions in one transaction.
func (s *QuizService) createQuiz(ctx context.Context, quiz *models.Quiz, questions []models.GeneratedQuestion) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Warn(ctx, "Failed to roll back quiz transaction", map[string]interface{}{"error": rbErr.Error()})
			}
		}
	}()

	query := `
		INSERT INTO quizzes (learner_id, title, topic, difficulty, question_count, passing_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING id, created_at`

	err = tx.QueryRowContext(ctx, query,
		quiz.LearnerID, quiz.Title, quiz.Topic, quiz.Difficulty, quiz.QuestionCount, quiz.PassingScore,
	).Scan(&quiz.ID, &quiz.CreatedAt)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to create quiz")
	}

	insertQuestion := `
		INSERT INTO quiz_questions (quiz_id, text, type, options, correct_answers, explanation, hint, points, ord)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	for i, q := range questions {
		options, marshalErr := json.Marshal(q.Options)
		if marshalErr != nil {
			return contextutils.WrapErrorf(marshalErr, "failed to marshal options")
		}
		correct, marshalErr := json.Marshal(q.CorrectAnswers)
		if marshalErr != nil {
			return contextutils.WrapErrorf(marshalErr, "failed to marshal correct answers")
		}

		question := models.QuizQuestion{
			QuizID:         quiz.ID,
			Text:           q.Text,
			Type:           q.Type,
			Options:        q.Options,
			CorrectAnswers: q.CorrectAnswers,
			Explanation:    q.Explanation,
			Hint:           q.Hint,
			Points:         q.Points,
			Order:          i + 1,
		}
		err = tx.QueryRowContext(ctx, insertQuestion,
			quiz.ID, q.Text, string(q.Type), options, correct, q.Explanation, q.Hint, q.Points, i+1,
		).Scan(&question.ID)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to create quiz question")
		}
		quiz.Questions = append(quiz.Questions, question)
	}

	if err = tx.Commit(); err != nil {
		return contextutils.WrapErrorf(err, "failed to commit quiz")
	}
	return nil
}

// getQuizQuestions loads a quiz's questions in order.
func (s *QuizService) getQuizQuestions(ctx context.Context, quizID int) (result0 []models.QuizQuestion, err error) {
	query := `
		SELECT id, quiz_id, text, type, options, correct_answers, explanation, hint, points, ord
		FROM quiz_questions
		WHERE quiz_id = $1
		ORDER BY ord`

	rows, err := s.db.QueryContext(ctx, query, quizID)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to load quiz questions")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var questions []models.QuizQuestion
	for rows.Next() {
		var q models.QuizQuestion
		var qType string
		var options, correct []byte
		if err := rows.Scan(&q.ID, &q.QuizID, &q.Text, &qType, &options, &correct,
			&q.Explanation, &q.Hint, &q.Points, &q.Order); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to scan quiz question")
		}
		q.Type = models.QuestionType(qType)
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to decode question options")
		}
		if err := json.Unmarshal(correct, &q.CorrectAnswers); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to decode question answers")
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to iterate quiz questions")
	}
	return questions, nil
}

// createAttempt persists one graded attempt.
func (s *QuizService) createAttempt(ctx context.Context, attempt *models.QuizAttempt) error {
	answers, err := json.Marshal(attempt.Answers)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to marshal answers")
	}
	recommendations, err := json.Marshal(attempt.Recommendations)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to marshal recommendations")
	}
	perQuestion, err := json.Marshal(attempt.PerQuestion)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to marshal per-question results")
	}

	query := `
		INSERT INTO quiz_attempts (quiz_id, learner_id, answers, score_percent, passed,
		                           feedback, recommendations, per_question, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING id, created_at`

	err = s.db.QueryRowContext(ctx, query,
		attempt.QuizID, attempt.LearnerID, answers, attempt.ScorePercent, attempt.Passed,
		attempt.Feedback, recommendations, perQuestion,
	).Scan(&attempt.ID, &attempt.CreatedAt)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to create quiz attempt")
	}
	return nil
}
