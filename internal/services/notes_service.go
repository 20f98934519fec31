package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"evolveedu/internal/config"
	"evolveedu/internal/inference"
	"evolveedu/internal/models"
	"evolveedu/internal/observability"
	"evolveedu/internal/textparse"
	contextutils "evolveedu/internal/utils"
)

// academicVocabulary feeds tag extraction for generated notes.
var academicVocabulary = []string{
	"science", "mathematics", "history", "literature", "technology",
	"business", "economics", "psychology", "medicine", "engineering",
	"art", "philosophy", "education", "research", "analysis",
}

// NotesServiceInterface defines the interface for note operations
type NotesServiceInterface interface {
	GenerateStudyNotes(ctx context.Context, learnerID string, req *models.CreateNoteRequest) (*models.Note, error)
	EnhanceNotes(ctx context.Context, learnerID string, noteID int) (*models.Note, error)
	GetNote(ctx context.Context, learnerID string, noteID int) (*models.Note, error)
	ListNotes(ctx context.Context, learnerID string) ([]models.Note, error)
	DeleteNote(ctx context.Context, learnerID string, noteID int) error
}

// NotesService turns source material into structured study notes
type NotesService struct {
	db        *sql.DB
	config    *config.Config
	generator inference.Generator
	prompts   *PromptManager
	logger    *observability.Logger
}

// NewNotesService creates a new NotesService instance
func NewNotesService(db *sql.DB, cfg *config.Config, generator inference.Generator, prompts *PromptManager, logger *observability.Logger) *NotesService {
	return &NotesService{
		db:        db,
		config:    cfg,
		generator: generator,
		prompts:   prompts,
		logger:    logger,
	}
}

// GenerateStudyNotes builds a prompt from the request's source material, runs
// it through the model, parses the reply into a structured note, and persists
// it. When the model is unavailable the deterministic fallback note is
// persisted instead; generation failures never surface to the caller.
func (s *NotesService) GenerateStudyNotes(ctx context.Context, learnerID string, req *models.CreateNoteRequest) (result0 *models.Note, err error) {
	ctx, span := observability.TraceNotesFunction(ctx, "GenerateStudyNotes",
		observability.AttributeLearnerID(learnerID),
	)
	defer observability.FinishSpan(span, &err)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	sourceText, title, err := s.resolveSource(req)
	if err != nil {
		return nil, err
	}

	prompt, err := s.prompts.Render(NotesGeneratePromptTemplate, PromptData{
		Title:      title,
		SourceType: req.SourceType,
		SourceText: truncate(sourceText, config.NotesPromptExcerptChars),
	})
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to render notes prompt")
	}

	var notes models.StudyNotes
	raw, genErr := s.generator.Generate(ctx, s.config.Domains.Notes.Model, prompt,
		inference.DefaultParams(s.config.Domains.Notes.MaxNewTokens))
	if genErr != nil {
		s.logger.Warn(ctx, "Note generation unavailable, using fallback", map[string]interface{}{
			"learner_id": learnerID,
			"title":      title,
			"error":      genErr.Error(),
		})
		notes = fallbackStudyNotes(sourceText, title, req.SourceType)
	} else {
		notes = parseStudyNotes(raw, sourceText, title, req.SourceType)
	}

	note := &models.Note{
		LearnerID:            learnerID,
		Title:                title,
		SourceType:           req.SourceType,
		SourceText:           sourceText,
		Content:              notes.Content,
		Summary:              notes.Summary,
		KeyPoints:            notes.KeyPoints,
		Questions:            notes.Questions,
		Difficulty:           notes.Difficulty,
		Tags:                 notes.Tags,
		EstimatedReadMinutes: notes.EstimatedReadMinutes,
	}
	if err := s.createNote(ctx, note); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Study notes generated", map[string]interface{}{
		"note_id":    note.ID,
		"learner_id": learnerID,
		"fallback":   genErr != nil,
	})

	return note, nil
}

// EnhanceNotes runs a second generation pass over an existing note and stores
// the four enhancement sections on it. Like first-pass generation, model
// unavailability degrades to canned defaults.
func (s *NotesService) EnhanceNotes(ctx context.Context, learnerID string, noteID int) (result0 *models.Note, err error) {
	ctx, span := observability.TraceNotesFunction(ctx, "EnhanceNotes",
		observability.AttributeLearnerID(learnerID),
		observability.AttributeNoteID(noteID),
	)
	defer observability.FinishSpan(span, &err)

	note, err := s.GetNote(ctx, learnerID, noteID)
	if err != nil {
		return nil, err
	}

	prompt, err := s.prompts.Render(NotesEnhancePromptTemplate, PromptData{
		SourceText: truncate(note.Content, config.EnhancePromptExcerptChars),
	})
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to render enhancement prompt")
	}

	var enhancement models.NoteEnhancement
	raw, genErr := s.generator.Generate(ctx, s.config.Domains.Notes.Model, prompt,
		inference.DefaultParams(s.config.Domains.Notes.MaxNewTokens))
	if genErr != nil {
		enhancement = fallbackEnhancement()
	} else {
		enhancement = parseEnhancement(raw)
	}

	data, err := json.Marshal(enhancement)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to marshal enhancement")
	}
	query := "UPDATE notes SET enhancements = $1, updated_at = NOW() WHERE id = $2 AND learner_id = $3"
	if _, err := s.db.ExecContext(ctx, query, data, noteID, learnerID); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to save note enhancement")
	}

	note.Enhancements = &enhancement
	return note, nil
}

// GetNote fetches one note owned by the learner
func (s *NotesService) GetNote(ctx context.Context, learnerID string, noteID int) (result0 *models.Note, err error) {
	ctx, span := observability.TraceNotesFunction(ctx, "GetNote",
		observability.AttributeNoteID(noteID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT id, learner_id, title, source_type, source_text, content, summary,
		       key_points, questions, difficulty, tags, estimated_read_minutes,
		       enhancements, created_at, updated_at
		FROM notes
		WHERE id = $1 AND learner_id = $2`

	note, err := scanNote(s.db.QueryRowContext(ctx, query, noteID, learnerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.ErrRecordNotFound
		}
		return nil, contextutils.WrapErrorf(err, "failed to get note %d", noteID)
	}
	return note, nil
}

// ListNotes returns the learner's notes, newest first
func (s *NotesService) ListNotes(ctx context.Context, learnerID string) (result0 []models.Note, err error) {
	ctx, span := observability.TraceNotesFunction(ctx, "ListNotes",
		observability.AttributeLearnerID(learnerID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		SELECT id, learner_id, title, source_type, source_text, content, summary,
		       key_points, questions, difficulty, tags, estimated_read_minutes,
		       enhancements, created_at, updated_at
		FROM notes
		WHERE learner_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, learnerID)
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to list notes")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var notes []models.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to scan note")
		}
		notes = append(notes, *note)
	}
	if err := rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to iterate notes")
	}
	return notes, nil
}

// DeleteNote removes one note owned by the learner
func (s *NotesService) DeleteNote(ctx context.Context, learnerID string, noteID int) (err error) {
	ctx, span := observability.TraceNotesFunction(ctx, "DeleteNote",
		observability.AttributeNoteID(noteID),
	)
	defer observability.FinishSpan(span, &err)

	result, err := s.db.ExecContext(ctx, "DELETE FROM notes WHERE id = $1 AND learner_id = $2", noteID, learnerID)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to delete note %d", noteID)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to check delete result")
	}
	if affected == 0 {
		return contextutils.ErrRecordNotFound
	}
	return nil
}

// resolveSource turns the request into concrete source text and a title.
func (s *NotesService) resolveSource(req *models.CreateNoteRequest) (sourceText, title string, err error) {
	title = strings.TrimSpace(req.Title)

	switch req.SourceType {
	case models.SourceTypeYouTube:
		videoID := ExtractYouTubeVideoID(req.SourceURL)
		if videoID == "" {
			return "", "", contextutils.WrapError(contextutils.ErrInvalidInput, "invalid YouTube URL")
		}
		// Transcript retrieval is out of scope; the source text is synthesized
		// from the video ID.
		sourceText = fmt.Sprintf("Mock transcript for video %s. This would contain the actual video content in a real implementation.", videoID)
		if title == "" {
			title = fmt.Sprintf("YouTube Video Notes - %s", videoID)
		}
	default:
		sourceText = req.SourceText
		if title == "" {
			title = "Untitled Notes"
		}
	}
	return sourceText, title, nil
}

// ExtractYouTubeVideoID pulls the video ID out of the common YouTube URL
// shapes: youtu.be short links, watch?v=, /embed/, and /v/ paths. Returns ""
// when the URL is not recognized.
func ExtractYouTubeVideoID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}

	host := u.Hostname()
	if host == "youtu.be" {
		return strings.TrimPrefix(u.Path, "/")
	}
	if host != "www.youtube.com" && host != "youtube.com" {
		return ""
	}

	switch {
	case u.Path == "/watch":
		return u.Query().Get("v")
	case strings.HasPrefix(u.Path, "/embed/"):
		return strings.TrimPrefix(u.Path, "/embed/")
	case strings.HasPrefix(u.Path, "/v/"):
		return strings.TrimPrefix(u.Path, "/v/")
	}
	return ""
}

// parseStudyNotes structures a raw model reply into study notes. Every field
// has its own extraction rule with its own default, so a partially usable
// reply still yields a complete note.
func parseStudyNotes(raw, sourceText, title, sourceType string) models.StudyNotes {
	summary := strings.Join(textparse.Section(raw, []string{"summary", "overview"}, 3), " ")
	if summary == "" {
		summary = strings.Join(textparse.FirstSentences(raw, 2), ". ")
	}

	keyPoints := textparse.Bulleted(raw, 10, 8)
	if len(keyPoints) == 0 {
		for _, sentence := range textparse.FirstSentences(raw, 5) {
			if len(sentence) > 20 {
				keyPoints = append(keyPoints, sentence)
			}
		}
	}

	questions := textparse.Questions(raw, 10, 10)
	if len(questions) == 0 {
		questions = []string{
			"What are the main topics covered in this content?",
			"How can this knowledge be practically applied?",
			"What are the key concepts to remember?",
			"What questions remain unanswered?",
		}
	}

	return models.StudyNotes{
		Title:                title,
		Content:              fmt.Sprintf("Detailed Notes for %s:\n\n%s", title, raw),
		Summary:              summary,
		KeyPoints:            keyPoints,
		Questions:            questions,
		Difficulty:           textparse.Tier(raw),
		Tags:                 textparse.KeywordTags(sourceText, []string{sourceType, "study", "notes"}, academicVocabulary, 6),
		EstimatedReadMinutes: estimatedReadMinutes(sourceText),
	}
}

// fallbackStudyNotes is the deterministic note produced when the model is
// unavailable. Byte-stable for fixed inputs.
func fallbackStudyNotes(sourceText, title, sourceType string) models.StudyNotes {
	content := sourceText
	if len(content) > 2000 {
		content = content[:2000] + "..."
	}

	return models.StudyNotes{
		Title: title,
		Summary: fmt.Sprintf("Summary of %s: This content covers important topics that require further study. "+
			"The material appears to contain valuable information for learning and reference.", title),
		Content: fmt.Sprintf("Detailed Notes for %s:\n\n%s", title, content),
		KeyPoints: []string{
			"This content contains important information",
			"Further analysis and study is recommended",
			"Key concepts should be reviewed carefully",
		},
		Questions: []string{
			"What are the main topics covered?",
			"How can this knowledge be applied?",
			"What are the key takeaways?",
			"What additional research might be helpful?",
		},
		Difficulty:           models.DifficultyIntermediate,
		Tags:                 []string{"study", "notes", sourceType},
		EstimatedReadMinutes: estimatedReadMinutes(sourceText),
	}
}

// parseEnhancement extracts the four enhancement sections from a raw reply.
func parseEnhancement(raw string) models.NoteEnhancement {
	fallback := fallbackEnhancement()
	return models.NoteEnhancement{
		Insights:         enhancementSection(raw, "insight", fallback.Insights),
		Applications:     enhancementSection(raw, "application", fallback.Applications),
		MemoryTechniques: enhancementSection(raw, "memory", fallback.MemoryTechniques),
		RelatedTopics:    enhancementSection(raw, "topic", fallback.RelatedTopics),
	}
}

// enhancementSection collects lines mentioning the section keyword or carrying
// a bullet marker, capped at 4, falling back to the canned default.
func enhancementSection(raw, keyword string, fallback []string) []string {
	var items []string
	for _, line := range textparse.Lines(raw) {
		if line == "" {
			continue
		}
		if !textparse.ContainsAny(line, []string{keyword, "•", "-", "*"}) {
			continue
		}
		item := strings.TrimSpace(strings.TrimLeft(line, "•-* \t"))
		if len(item) > 10 {
			items = append(items, item)
		}
		if len(items) >= 4 {
			break
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

func fallbackEnhancement() models.NoteEnhancement {
	return models.NoteEnhancement{
		Insights:         []string{"Consider the broader implications of this topic"},
		Applications:     []string{"This knowledge can be applied in practical scenarios"},
		MemoryTechniques: []string{"Create mental associations", "Use spaced repetition"},
		RelatedTopics:    []string{"Related subject areas worth exploring"},
	}
}

// estimatedReadMinutes assumes 250 characters per minute, minimum 1.
func estimatedReadMinutes(text string) int {
	minutes := len(text) / 250
	if minutes < 1 {
		return 1
	}
	return minutes
}

// createNote inserts a note and fills its ID and timestamps.
func (s *NotesService) createNote(ctx context.Context, note *models.Note) error {
	keyPoints, err := json.Marshal(note.KeyPoints)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to marshal key points")
	}
	questions, err := json.Marshal(note.Questions)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to marshal questions")
	}
	tags, err := json.Marshal(note.Tags)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to marshal tags")
	}

	query := `
		INSERT INTO notes (learner_id, title, source_type, source_text, content, summary,
		                   key_points, questions, difficulty, tags, estimated_read_minutes,
		                   created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	err = s.db.QueryRowContext(ctx, query,
		note.LearnerID, note.Title, note.SourceType, note.SourceText, note.Content,
		note.Summary, keyPoints, questions, note.Difficulty, tags, note.EstimatedReadMinutes,
	).Scan(&note.ID, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to create note")
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNote(row rowScanner) (*models.Note, error) {
	var note models.Note
	var keyPoints, questions, tags []byte
	var enhancements sql.NullString

	err := row.Scan(&note.ID, &note.LearnerID, &note.Title, &note.SourceType,
		&note.SourceText, &note.Content, &note.Summary, &keyPoints, &questions,
		&note.Difficulty, &tags, &note.EstimatedReadMinutes, &enhancements,
		&note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(keyPoints, &note.KeyPoints); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(questions, &note.Questions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tags, &note.Tags); err != nil {
		return nil, err
	}
	if enhancements.Valid && enhancements.String != "" {
		var enh models.NoteEnhancement
		if err := json.Unmarshal([]byte(enhancements.String), &enh); err != nil {
			return nil, err
		}
		note.Enhancements = &enh
	}
	return &note, nil
}
