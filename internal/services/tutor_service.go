package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"evolveedu/internal/config"
	"evolveedu/internal/inference"
	"evolveedu/internal/models"
	"evolveedu/internal/observability"
	"evolveedu/internal/textparse"
	contextutils "evolveedu/internal/utils"
)

var (
	tutorReplyPrefixes = []string{"Tutor:", "AI:", "Assistant:", "Response:"}

	// academicTerms is the vocabulary used for topic tagging of student
	// messages. Matching is by substring, so "mathematics" also tags "math".
	academicTerms = []string{
		"math", "mathematics", "science", "physics", "chemistry", "biology",
		"history", "literature", "english", "programming", "computer",
		"economics", "psychology", "philosophy", "art", "music", "language",
	}

	studyPlanDayPattern = regexp.MustCompile(`(?i)day\s*(\d+)`)
)

// TutorServiceInterface defines the interface for tutoring operations
type TutorServiceInterface interface {
	StartSession(ctx context.Context, learnerID string, req *models.StartTutorSessionRequest) (*models.TutorSession, error)
	GetSession(ctx context.Context, learnerID string, sessionID int) (*models.TutorSession, error)
	SendMessage(ctx context.Context, learnerID string, sessionID int, req *models.TutorMessageRequest) (*models.TutorReply, error)
	SolveProblem(ctx context.Context, req *models.SolveProblemRequest) (*models.ProblemSolution, error)
	ExplainConcept(ctx context.Context, req *models.ExplainConceptRequest) (*models.ConceptExplanation, error)
	CreateStudyPlan(ctx context.Context, learnerID string, req *models.StudyPlanRequest) (*models.StudyPlan, error)
	LearningInsights(ctx context.Context, learnerID string) ([]models.LearningInsight, error)
}

// TutorService runs conversational tutoring sessions against a dialogue model
type TutorService struct {
	db        *sql.DB
	config    *config.Config
	generator inference.Generator
	prompts   *PromptManager
	logger    *observability.Logger
}

// NewTutorService creates a new TutorService instance
func NewTutorService(db *sql.DB, cfg *config.Config, generator inference.Generator, prompts *PromptManager, logger *observability.Logger) *TutorService {
	return &TutorService{
		db:        db,
		config:    cfg,
		generator: generator,
		prompts:   prompts,
		logger:    logger,
	}
}

// StartSession opens a new tutoring session
func (s *TutorService) StartSession(ctx context.Context, learnerID string, req *models.StartTutorSessionRequest) (result0 *models.TutorSession, err error) {
	ctx, span := observability.TraceTutorFunction(ctx, "StartSession",
		observability.AttributeLearnerID(learnerID),
	)
	defer observability.FinishSpan(span, &err)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	session := &models.TutorSession{
		LearnerID:   learnerID,
		SessionType: req.SessionType,
	}
	if req.Subject != "" {
		session.Subject = sql.NullString{String: req.Subject, Valid: true}
	}
	if req.DifficultyLevel != "" {
		session.DifficultyLevel = sql.NullString{String: req.DifficultyLevel, Valid: true}
	}

	query := `
		INSERT INTO tutor_sessions (learner_id, subject, session_type, difficulty_level,
		                            started_at, last_activity, duration_minutes)
		VALUES ($1, $2, $3, $4, NOW(), NOW(), 0)
		RETURNING id, started_at, last_activity`

	err = s.db.QueryRowContext(ctx, query,
		learnerID, session.Subject, string(session.SessionType), session.DifficultyLevel,
	).Scan(&session.ID, &session.StartedAt, &session.LastActivity)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to create tutor session")
	}

	s.logger.Info(ctx, "Tutor session started", map[string]interface{}{
		"session_id":   session.ID,
		"learner_id":   learnerID,
		"session_type": string(session.SessionType),
	})
	return session, nil
}

// GetSession fetches one session with its full message history
func (s *TutorService) GetSession(ctx context.Context, learnerID string, sessionID int) (result0 *models.TutorSession, err error) {
	ctx, span := observability.TraceTutorFunction(ctx, "GetSession",
		observability.AttributeSessionID(sessionID),
	)
	defer observability.FinishSpan(span, &err)

	session, err := s.getSession(ctx, learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	session.Messages, err = s.getMessages(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// SendMessage runs one tutoring turn: build the conversation prompt, generate
// a reply, analyze the student's message, and persist both messages.
func (s *TutorService) SendMessage(ctx context.Context, learnerID string, sessionID int, req *models.TutorMessageRequest) (result0 *models.TutorReply, err error) {
	ctx, span := observability.TraceTutorFunction(ctx, "SendMessage",
		observability.AttributeSessionID(sessionID),
	)
	defer observability.FinishSpan(span, &err)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	session, err := s.getSession(ctx, learnerID, sessionID)
	if err != nil {
		return nil, err
	}

	recent, err := s.getMessages(ctx, sessionID, config.TutorContextMessages)
	if err != nil {
		return nil, err
	}

	prompt, err := s.prompts.Render(TutorChatPromptTemplate, PromptData{
		Subject:            session.Subject.String,
		Difficulty:         session.DifficultyLevel.String,
		SessionType:        string(session.SessionType),
		Context:            conversationContext(recent),
		Message:            truncate(req.Message, config.TutorPromptExcerptChars),
		ProblemFocus:       session.SessionType == models.SessionProblemSolving,
		ConceptFocus:       session.SessionType == models.SessionConceptExplanation,
		RequestExplanation: req.RequestExplanation,
		RequestExamples:    req.RequestExamples,
	})
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to render tutor prompt")
	}

	params := inference.DefaultParams(s.config.Domains.Tutor.MaxNewTokens)
	params.Extra = map[string]interface{}{"pad_token_id": config.DialoGPTPadTokenID}

	start := time.Now()
	raw, genErr := s.generator.Generate(ctx, s.config.Domains.Tutor.Model, prompt, params)
	responseTime := int(time.Since(start).Milliseconds())

	var content string
	if genErr != nil {
		s.logger.Warn(ctx, "Tutor generation unavailable, using fallback", map[string]interface{}{
			"session_id": sessionID,
			"error":      genErr.Error(),
		})
		content = fallbackTutorReply(session.SessionType)
	} else {
		content = cleanTutorReply(raw)
	}

	intent, confidence, topics := analyzeMessage(req.Message)

	reply := &models.TutorReply{
		Content:        content,
		Intent:         intent,
		Confidence:     confidence,
		Topics:         topics,
		ResponseTimeMs: responseTime,
	}
	if err := s.recordTurn(ctx, sessionID, req.Message, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

// conversationContext renders the most recent messages oldest-first as
// labeled dialogue lines.
func conversationContext(recent []models.TutorMessage) string {
	var b strings.Builder
	for i := len(recent) - 1; i >= 0; i-- {
		role := "Student"
		if recent[i].Role == models.RoleTutor {
			role = "Tutor"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, recent[i].Content)
	}
	return b.String()
}

// cleanTutorReply strips model artifacts and clamps the reply length.
func cleanTutorReply(raw string) string {
	reply := strings.TrimSpace(raw)
	if reply == "" {
		return "I'm here to help you learn! Could you please clarify your question?"
	}

	for _, prefix := range tutorReplyPrefixes {
		if strings.HasPrefix(reply, prefix) {
			reply = strings.TrimSpace(strings.TrimPrefix(reply, prefix))
		}
	}

	if len(reply) > config.TutorReplyMaxChars {
		sentences := strings.Split(reply, ".")
		if len(sentences) > 4 {
			sentences = sentences[:4]
		}
		reply = strings.Join(sentences, ".") + "."
	}

	if len(reply) < config.TutorReplyMinChars {
		reply = "That's a great question! Let me help you understand this concept better. Could you provide a bit more detail about what you'd like to learn?"
	}
	return reply
}

// analyzeMessage derives intent, confidence, and topic tags from one student
// message without another model call.
func analyzeMessage(message string) (intent string, confidence float64, topics []string) {
	intent = "general"
	switch {
	case textparse.ContainsAny(message, []string{"what", "how", "why", "when", "where"}):
		intent = "question"
	case textparse.ContainsAny(message, []string{"explain", "tell me", "help me understand"}):
		intent = "explanation_request"
	case textparse.ContainsAny(message, []string{"problem", "solve", "calculate", "find"}):
		intent = "problem_help"
	case textparse.ContainsAny(message, []string{"clarify", "confused", "don't understand"}):
		intent = "clarification"
	}

	confidence = 0.5
	if len(message) > 50 {
		confidence += 0.2
	}
	if strings.Contains(message, "?") {
		confidence += 0.1
	}
	if textparse.ContainsAny(message, []string{"specific", "exactly", "precisely"}) {
		confidence += 0.2
	}
	if confidence > 1.0 {
		confidence = 1.0
	}

	for _, term := range academicTerms {
		if textparse.ContainsAny(message, []string{term}) {
			topics = append(topics, term)
		}
		if len(topics) >= 3 {
			break
		}
	}
	return intent, confidence, topics
}

// fallbackTutorReply is the canned per-session-type reply used when the
// model is unavailable.
func fallbackTutorReply(sessionType models.SessionType) string {
	switch sessionType {
	case models.SessionChat:
		return "I understand you're asking about that topic. Let me help you work through this step by step. Could you provide a bit more detail about what specifically you'd like to understand?"
	case models.SessionProblemSolving:
		return "I see you have a problem to solve. Let's break this down together. Can you share the specific problem statement or what part you're finding challenging?"
	case models.SessionConceptExplanation:
		return "That's a great concept to explore! Let me help you understand this better. What specific aspect would you like me to explain first?"
	case models.SessionHomeworkHelp:
		return "I'm here to help you with your homework. Let's work through this together. What subject area are we focusing on?"
	case models.SessionExamPrep:
		return "Exam preparation is important! I can help you review key concepts and practice problems. What topics would you like to focus on?"
	default:
		return "I'm here to help you learn! How can I assist you today?"
	}
}

// SolveProblem produces a worked step-by-step solution. Advisory only;
// nothing is persisted.
func (s *TutorService) SolveProblem(ctx context.Context, req *models.SolveProblemRequest) (result0 *models.ProblemSolution, err error) {
	ctx, span := observability.TraceTutorFunction(ctx, "SolveProblem")
	defer observability.FinishSpan(span, &err)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	problemType := req.ProblemType
	if problemType == "" {
		problemType = "general"
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = models.DifficultyIntermediate
	}

	prompt, err := s.prompts.Render(TutorSolvePromptTemplate, PromptData{
		Problem:     truncate(req.Problem, config.TutorPromptExcerptChars),
		ProblemType: problemType,
		Difficulty:  difficulty,
	})
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to render solve prompt")
	}

	raw, genErr := s.generator.Generate(ctx, s.config.Domains.Tutor.Model, prompt,
		inference.DefaultParams(s.config.Domains.Tutor.MaxNewTokens))
	if genErr != nil {
		solution := fallbackSolution(problemType)
		return &solution, nil
	}

	solution := parseProblemSolution(raw, problemType)
	return &solution, nil
}

// parseProblemSolution walks the reply line by line, switching buckets on
// section keywords. Step lines must carry an ordering word so prose inside
// the solution section is not promoted to a step.
func parseProblemSolution(raw, problemType string) models.ProblemSolution {
	var solution models.ProblemSolution
	section := ""

	for _, line := range textparse.Lines(raw) {
		if line == "" {
			continue
		}

		switch {
		case textparse.ContainsAny(line, []string{"analysis", "understand"}):
			section = "analysis"
			if solution.Analysis == "" {
				solution.Analysis = line
			}
		case textparse.ContainsAny(line, []string{"step", "solution"}):
			section = "steps"
		case textparse.ContainsAny(line, []string{"answer", "result"}):
			section = "answer"
			if textparse.ContainsAny(line, []string{"final"}) && solution.FinalAnswer == "" {
				solution.FinalAnswer = line
			}
		case textparse.ContainsAny(line, []string{"concept"}):
			section = "concepts"
		case textparse.ContainsAny(line, []string{"similar", "practice"}):
			section = "similar"
		}

		// Lines ending ":" are pure section headers, not content.
		if strings.HasSuffix(line, ":") {
			continue
		}

		switch section {
		case "steps":
			if len(line) > 10 && textparse.ContainsAny(line, []string{"step", "first", "next", "then", "finally"}) {
				solution.Steps = append(solution.Steps, models.SolutionStep{
					Step:        len(solution.Steps) + 1,
					Description: line,
				})
			}
		case "concepts":
			if len(line) > 5 {
				concept := strings.TrimSpace(strings.Trim(line, "-* \t"))
				if concept != "" && !containsString(solution.KeyConcepts, concept) {
					solution.KeyConcepts = append(solution.KeyConcepts, concept)
				}
			}
		case "similar":
			if len(line) > 15 {
				solution.SimilarProblems = append(solution.SimilarProblems, line)
			}
		}
	}

	fallback := fallbackSolution(problemType)
	if solution.Analysis == "" {
		solution.Analysis = fallback.Analysis
	}
	if len(solution.Steps) == 0 {
		solution.Steps = fallback.Steps
	}
	if solution.FinalAnswer == "" {
		solution.FinalAnswer = fallback.FinalAnswer
	}
	if len(solution.KeyConcepts) == 0 {
		solution.KeyConcepts = fallback.KeyConcepts
	}
	if len(solution.SimilarProblems) == 0 {
		solution.SimilarProblems = fallback.SimilarProblems
	}
	return solution
}

// fallbackSolution is the deterministic solution scaffold used when the
// model is unavailable.
func fallbackSolution(problemType string) models.ProblemSolution {
	return models.ProblemSolution{
		Analysis: fmt.Sprintf("This is a %s problem that requires systematic approach.", problemType),
		Steps: []models.SolutionStep{
			{Step: 1, Description: "Analyze the problem: identify known and unknown variables"},
			{Step: 2, Description: "Apply relevant concepts: use appropriate formulas or methods"},
			{Step: 3, Description: "Calculate result: perform calculations step by step"},
		},
		FinalAnswer: "Please provide more specific problem details for accurate solution",
		KeyConcepts: []string{problemType, "problem-solving"},
		SimilarProblems: []string{
			fmt.Sprintf("Practice %s problem 1", problemType),
			fmt.Sprintf("Practice %s problem 2", problemType),
		},
	}
}

// ExplainConcept produces a structured concept explanation. Advisory only.
func (s *TutorService) ExplainConcept(ctx context.Context, req *models.ExplainConceptRequest) (result0 *models.ConceptExplanation, err error) {
	ctx, span := observability.TraceTutorFunction(ctx, "ExplainConcept",
		observability.AttributeSubject(req.Subject),
	)
	defer observability.FinishSpan(span, &err)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	subject := req.Subject
	if subject == "" {
		subject = "general studies"
	}

	prompt, err := s.prompts.Render(TutorExplainPromptTemplate, PromptData{
		Concept: req.Concept,
		Subject: subject,
		Message: truncate(req.Request, config.TutorPromptExcerptChars),
	})
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to render explain prompt")
	}

	raw, genErr := s.generator.Generate(ctx, s.config.Domains.Tutor.Model, prompt,
		inference.DefaultParams(s.config.Domains.Tutor.MaxNewTokens))
	if genErr != nil {
		explanation := fallbackExplanation(req.Concept, subject)
		return &explanation, nil
	}

	explanation := parseConceptExplanation(raw, req.Concept, subject)
	return &explanation, nil
}

// parseConceptExplanation walks the reply line by line, switching buckets on
// section keywords. Practice questions must end with "?" to be kept.
func parseConceptExplanation(raw, concept, subject string) models.ConceptExplanation {
	var explanation models.ConceptExplanation
	section := ""

	for _, line := range textparse.Lines(raw) {
		if line == "" {
			continue
		}

		switch {
		case textparse.ContainsAny(line, []string{"definition", "explanation"}):
			section = "explanation"
			if explanation.Explanation == "" {
				explanation.Explanation = line
			}
		case textparse.ContainsAny(line, []string{"example"}):
			section = "examples"
		case textparse.ContainsAny(line, []string{"analogy", "like"}):
			section = "analogies"
		case textparse.ContainsAny(line, []string{"prerequisite", "need to know"}):
			section = "prerequisites"
		case textparse.ContainsAny(line, []string{"related", "similar"}):
			section = "related"
		case textparse.ContainsAny(line, []string{"question", "practice"}):
			section = "questions"
		}

		// Lines ending ":" are pure section headers, not content.
		if strings.HasSuffix(line, ":") {
			continue
		}

		switch section {
		case "examples":
			if len(line) > 15 {
				explanation.Examples = append(explanation.Examples, line)
			}
		case "analogies":
			if len(line) > 15 {
				explanation.Analogies = append(explanation.Analogies, line)
			}
		case "prerequisites":
			if len(line) > 5 {
				if prereq := strings.TrimSpace(strings.Trim(line, "-* \t")); prereq != "" {
					explanation.Prerequisites = append(explanation.Prerequisites, prereq)
				}
			}
		case "related":
			if len(line) > 5 {
				if related := strings.TrimSpace(strings.Trim(line, "-* \t")); related != "" {
					explanation.RelatedConcepts = append(explanation.RelatedConcepts, related)
				}
			}
		case "questions":
			if strings.HasSuffix(line, "?") {
				explanation.PracticeQuestions = append(explanation.PracticeQuestions, line)
			}
		}
	}

	fallback := fallbackExplanation(concept, subject)
	if explanation.Explanation == "" {
		explanation.Explanation = fmt.Sprintf("%s is an important concept in %s that involves understanding key principles and applications.", concept, subject)
	}
	if len(explanation.Examples) == 0 {
		explanation.Examples = fallback.Examples
	}
	if len(explanation.Analogies) == 0 {
		explanation.Analogies = []string{fmt.Sprintf("%s is like a building block: it forms the foundation for understanding more complex ideas", concept)}
	}
	if len(explanation.Prerequisites) == 0 {
		explanation.Prerequisites = fallback.Prerequisites
	}
	if len(explanation.RelatedConcepts) == 0 {
		explanation.RelatedConcepts = fallback.RelatedConcepts
	}
	if len(explanation.PracticeQuestions) == 0 {
		explanation.PracticeQuestions = fallback.PracticeQuestions
	}
	return explanation
}

// fallbackExplanation is the deterministic explanation scaffold used when
// the model is unavailable.
func fallbackExplanation(concept, subject string) models.ConceptExplanation {
	return models.ConceptExplanation{
		Explanation: fmt.Sprintf("%s is an important concept in %s that requires understanding of fundamental principles.", concept, subject),
		Examples: []string{
			fmt.Sprintf("A simple example of %s in an everyday situation", concept),
			fmt.Sprintf("A more complex application of %s in a professional context", concept),
		},
		Analogies:       []string{fmt.Sprintf("%s is like a foundation: it supports more complex understanding", concept)},
		Prerequisites:   []string{"basic foundation knowledge"},
		RelatedConcepts: []string{fmt.Sprintf("concepts related to %s", concept)},
		PracticeQuestions: []string{
			fmt.Sprintf("What is the main principle behind %s?", concept),
			fmt.Sprintf("How would you apply %s in real situations?", concept),
		},
	}
}

// CreateStudyPlan builds a day-by-day study schedule. Advisory only; the
// learner ID is carried for tracing.
func (s *TutorService) CreateStudyPlan(ctx context.Context, learnerID string, req *models.StudyPlanRequest) (result0 *models.StudyPlan, err error) {
	ctx, span := observability.TraceTutorFunction(ctx, "CreateStudyPlan",
		observability.AttributeLearnerID(learnerID),
		observability.AttributeSubject(req.Subject),
	)
	defer observability.FinishSpan(span, &err)

	if err := req.Validate(); err != nil {
		return nil, err
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = models.DifficultyIntermediate
	}

	prompt, err := s.prompts.Render(TutorStudyPlanPromptTemplate, PromptData{
		Subject:      req.Subject,
		Topics:       strings.Join(req.Topics, ", "),
		DurationDays: req.DurationDays,
		Difficulty:   difficulty,
	})
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to render study plan prompt")
	}

	raw, genErr := s.generator.Generate(ctx, s.config.Domains.Tutor.Model, prompt,
		inference.DefaultParams(s.config.Domains.Tutor.MaxNewTokens))
	if genErr != nil {
		plan := fallbackStudyPlan(req.Subject, req.Topics, req.DurationDays)
		return &plan, nil
	}

	plan := parseStudyPlan(raw, req.Subject, req.Topics, req.DurationDays)
	return &plan, nil
}

// parseStudyPlan assigns topics to the day headers the model produced and
// fills any missing days round-robin so every day of the plan has work.
func parseStudyPlan(raw, subject string, topics []string, duration int) models.StudyPlan {
	topicsPerDay := len(topics) / duration
	if topicsPerDay < 1 {
		topicsPerDay = 1
	}

	days := map[int][]string{}
	remaining := append([]string(nil), topics...)

	for _, line := range textparse.Lines(raw) {
		match := studyPlanDayPattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		day, err := strconv.Atoi(match[1])
		if err != nil || day < 1 || day > duration {
			continue
		}
		if _, seen := days[day]; seen {
			continue
		}
		var dayTopics []string
		if len(remaining) > 0 {
			n := topicsPerDay
			if n > len(remaining) {
				n = len(remaining)
			}
			dayTopics = remaining[:n]
			remaining = remaining[n:]
		} else {
			dayTopics = []string{topics[0]}
		}
		days[day] = dayTopics
	}

	// Fill days the reply never mentioned.
	for day := 1; day <= duration; day++ {
		if _, seen := days[day]; !seen {
			days[day] = []string{topics[day%len(topics)]}
		}
	}

	return assembleStudyPlan(subject, topics, duration, days)
}

// fallbackStudyPlan is the deterministic plan used when the model is
// unavailable: topics rotate across the full duration.
func fallbackStudyPlan(subject string, topics []string, duration int) models.StudyPlan {
	topicsPerDay := len(topics) / duration
	if topicsPerDay < 1 {
		topicsPerDay = 1
	}

	days := map[int][]string{}
	rotation := append([]string(nil), topics...)
	for day := 1; day <= duration; day++ {
		n := topicsPerDay
		if n > len(rotation) {
			n = len(rotation)
		}
		days[day] = append([]string(nil), rotation[:n]...)
		rotation = append(rotation[n:], rotation[:n]...)
	}

	return assembleStudyPlan(subject, topics, duration, days)
}

func assembleStudyPlan(subject string, topics []string, duration int, days map[int][]string) models.StudyPlan {
	plan := models.StudyPlan{
		Subject: subject,
		Milestones: []models.PlanMilestone{
			{Day: duration / 2, Milestone: "Mid-point review"},
			{Day: duration, Milestone: "Complete study plan"},
		},
		Tips: []string{"Study consistently", "Take regular breaks", "Review frequently", "Practice actively"},
	}

	dayNumbers := make([]int, 0, len(days))
	for day := range days {
		dayNumbers = append(dayNumbers, day)
	}
	sort.Ints(dayNumbers)

	for _, day := range dayNumbers {
		tasks := make([]string, 0, len(days[day]))
		for _, topic := range days[day] {
			tasks = append(tasks, fmt.Sprintf("Study %s", topic))
		}
		plan.Days = append(plan.Days, models.StudyDay{Day: day, Topics: days[day], Tasks: tasks})
		plan.TotalTasks += len(tasks)
	}
	return plan
}

// LearningInsights derives observations from the learner's recent sessions.
// Fewer than 3 sessions is not enough history to say anything.
func (s *TutorService) LearningInsights(ctx context.Context, learnerID string) (result0 []models.LearningInsight, err error) {
	ctx, span := observability.TraceTutorFunction(ctx, "LearningInsights",
		observability.AttributeLearnerID(learnerID),
	)
	defer observability.FinishSpan(span, &err)

	sessions, err := s.recentSessions(ctx, learnerID, 20)
	if err != nil {
		return nil, err
	}
	if len(sessions) < 3 {
		return []models.LearningInsight{}, nil
	}

	var insights []models.LearningInsight

	if gap := averageSessionGapDays(sessions); gap > 7 {
		insights = append(insights, models.LearningInsight{
			Type:        "pattern",
			Title:       "Study Frequency Pattern",
			Description: fmt.Sprintf("You typically have %.1f days between study sessions. More frequent sessions could improve retention.", gap),
			Priority:    "medium",
			Actions:     []string{"Schedule regular study times", "Set daily learning goals"},
		})
	}

	if favorite := favoriteSubject(sessions); favorite != "" {
		insights = append(insights, models.LearningInsight{
			Type:        "strength",
			Title:       "Subject Preference",
			Description: fmt.Sprintf("You show strong engagement with %s. Consider exploring advanced topics in this area.", favorite),
			Priority:    "low",
			Actions:     []string{fmt.Sprintf("Explore advanced %s topics", favorite), "Share knowledge with others"},
		})
	}

	total := 0
	for _, session := range sessions {
		total += session.DurationMinutes
	}
	avgDuration := float64(total) / float64(len(sessions))
	if avgDuration < 15 {
		insights = append(insights, models.LearningInsight{
			Type:        "improvement",
			Title:       "Session Duration",
			Description: fmt.Sprintf("Your average session is %.1f minutes. Longer sessions might improve learning depth.", avgDuration),
			Priority:    "medium",
			Actions:     []string{"Plan longer study sessions", "Set session goals before starting"},
		})
	}

	if insights == nil {
		insights = []models.LearningInsight{}
	}
	return insights, nil
}

// averageSessionGapDays is the mean whole-day gap between consecutive
// sessions, which must be ordered newest first.
func averageSessionGapDays(sessions []models.TutorSession) float64 {
	if len(sessions) < 2 {
		return 0
	}
	total := 0
	for i := 0; i < len(sessions)-1; i++ {
		a := sessions[i].StartedAt.Truncate(24 * time.Hour)
		b := sessions[i+1].StartedAt.Truncate(24 * time.Hour)
		total += int(a.Sub(b).Hours() / 24)
	}
	return float64(total) / float64(len(sessions)-1)
}

// favoriteSubject is the most frequent non-empty subject, ties broken by
// first occurrence so the result is stable.
func favoriteSubject(sessions []models.TutorSession) string {
	counts := map[string]int{}
	var order []string
	for _, session := range sessions {
		if !session.Subject.Valid || session.Subject.String == "" {
			continue
		}
		if _, seen := counts[session.Subject.String]; !seen {
			order = append(order, session.Subject.String)
		}
		counts[session.Subject.String]++
	}
	favorite := ""
	best := 0
	for _, subject := range order {
		if counts[subject] > best {
			favorite = subject
			best = counts[subject]
		}
	}
	return favorite
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

// getSession loads one session row scoped to the learner.
func (s *TutorService) getSession(ctx context.Context, learnerID string, sessionID int) (result0 *models.TutorSession, err error) {
	query := `
		SELECT id, learner_id, subject, session_type, difficulty_level, started_at, last_activity, duration_minutes
		FROM tutor_sessions
		WHERE id = $1 AND learner_id = $2`

	var session models.TutorSession
	var sessionType string
	err = s.db.QueryRowContext(ctx, query, sessionID, learnerID).Scan(
		&session.ID, &session.LearnerID, &session.Subject, &sessionType,
		&session.DifficultyLevel, &session.StartedAt, &session.LastActivity, &session.DurationMinutes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.ErrRecordNotFound
		}
		return nil, contextutils.WrapErrorf(err, "failed to get tutor session %d", sessionID)
	}
	session.SessionType = models.SessionType(sessionType)
	return &session, nil
}

// getMessages loads session messages newest first; limit 0 means all.
func (s *TutorService) getMessages(ctx context.Context, sessionID, limit int) (result0 []models.TutorMessage, err error) {
	query := `
		SELECT id, session_id, role, content, intent, confidence_score, topic_tags, response_time_ms, created_at
		FROM tutor_messages
		WHERE session_id = $1
		ORDER BY created_at DESC`
	args := []interface{}{sessionID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to load tutor messages")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var messages []models.TutorMessage
	for rows.Next() {
		var msg models.TutorMessage
		var role string
		var topicTags []byte
		if err := rows.Scan(&msg.ID, &msg.SessionID, &role, &msg.Content, &msg.Intent,
			&msg.ConfidenceScore, &topicTags, &msg.ResponseTimeMs, &msg.CreatedAt); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to scan tutor message")
		}
		msg.Role = models.MessageRole(role)
		if err := json.Unmarshal(topicTags, &msg.TopicTags); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to decode topic tags")
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to iterate tutor messages")
	}
	return messages, nil
}

// recordTurn persists the student message and the tutor reply together and
// refreshes the session's activity clock.
func (s *TutorService) recordTurn(ctx context.Context, sessionID int, studentMessage string, reply *models.TutorReply) (err error) {
	topicTags, err := json.Marshal(reply.Topics)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to marshal topic tags")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Warn(ctx, "Failed to roll back tutor transaction", map[string]interface{}{"error": rbErr.Error()})
			}
		}
	}()

	insert := `
		INSERT INTO tutor_messages (session_id, role, content, intent, confidence_score, topic_tags, response_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	_, err = tx.ExecContext(ctx, insert, sessionID, string(models.RoleStudent), studentMessage,
		sql.NullString{String: reply.Intent, Valid: true},
		sql.NullFloat64{Float64: reply.Confidence, Valid: true},
		topicTags, sql.NullInt32{})
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to save student message")
	}

	_, err = tx.ExecContext(ctx, insert, sessionID, string(models.RoleTutor), reply.Content,
		sql.NullString{}, sql.NullFloat64{}, []byte("[]"),
		sql.NullInt32{Int32: int32(reply.ResponseTimeMs), Valid: true})
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to save tutor reply")
	}

	touch := `
		UPDATE tutor_sessions
		SET last_activity = NOW(),
		    duration_minutes = GREATEST(0, EXTRACT(EPOCH FROM (NOW() - started_at)) / 60)::int
		WHERE id = $1`
	if _, err = tx.ExecContext(ctx, touch, sessionID); err != nil {
		return contextutils.WrapErrorf(err, "failed to update session activity")
	}

	if err = tx.Commit(); err != nil {
		return contextutils.WrapErrorf(err, "failed to commit tutor turn")
	}
	return nil
}

// recentSessions loads the learner's newest sessions, newest first.
func (s *TutorService) recentSessions(ctx context.Context, learnerID string, limit int) (result0 []models.TutorSession, err error) {
	query := `
		SELECT id, learner_id, subject, session_type, difficulty_level, started_at, last_activity, duration_minutes
		FROM tutor_sessions
		WHERE learner_id = $1
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, learnerID, limit)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to load tutor sessions")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var sessions []models.TutorSession
	for rows.Next() {
		var session models.TutorSession
		var sessionType string
		if err := rows.Scan(&session.ID, &session.LearnerID, &session.Subject, &sessionType,
			&session.DifficultyLevel, &session.StartedAt, &session.LastActivity, &session.DurationMinutes); err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to scan tutor session")
		}
		session.SessionType = models.SessionType(sessionType)
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to iterate tutor sessions")
	}
	return sessions, nil
}
