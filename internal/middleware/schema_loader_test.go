package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSchemas(t *testing.T) {
	sl, err := LoadSchemas()
	require.NoError(t, err)
	require.NotNil(t, sl)

	// Every endpoint binding resolves to a compiled schema.
	for _, ep := range sl.endpoints {
		assert.Contains(t, sl.schemas, ep.Schema, "endpoint %s %s", ep.Method, ep.Path)
	}
}

func TestSchemaForRequest(t *testing.T) {
	sl, err := LoadSchemas()
	require.NoError(t, err)

	tests := []struct {
		path   string
		method string
		want   string
	}{
		{"/v1/notes", "POST", "CreateNoteRequest"},
		{"/v1/quizzes", "POST", "CreateQuizRequest"},
		{"/v1/quizzes/42/attempts", "POST", "SubmitAttemptRequest"},
		{"/v1/roadmaps", "POST", "CreateRoadmapRequest"},
		{"/v1/roadmaps/gap-analysis", "POST", "GapAnalysisRequest"},
		{"/v1/roadmaps/7/milestones/3", "PUT", "UpdateMilestoneRequest"},
		{"/v1/roadmaps/7/resources", "POST", "ResourceRequest"},
		{"/v1/tutor/sessions", "POST", "StartTutorSessionRequest"},
		{"/v1/tutor/sessions/5/messages", "POST", "TutorMessageRequest"},
		{"/v1/tutor/solve", "POST", "SolveProblemRequest"},
		{"/v1/tutor/explain", "POST", "ExplainConceptRequest"},
		{"/v1/tutor/study-plans", "POST", "StudyPlanRequest"},
		// GET requests never have a body schema.
		{"/v1/notes", "GET", ""},
		// Unknown endpoints pass through.
		{"/v1/unknown", "POST", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, sl.SchemaForRequest(tt.path, tt.method), "%s %s", tt.method, tt.path)
	}
}

func TestValidateData(t *testing.T) {
	sl, err := LoadSchemas()
	require.NoError(t, err)

	valid := map[string]interface{}{
		"title":       "Photosynthesis basics",
		"source_type": "text",
		"source_text": "Plants convert light into chemical energy.",
	}
	assert.NoError(t, sl.ValidateData(valid, "CreateNoteRequest"))

	missingTitle := map[string]interface{}{
		"source_type": "text",
	}
	err = sl.ValidateData(missingTitle, "CreateNoteRequest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title")

	badEnum := map[string]interface{}{
		"title":       "Notes",
		"source_type": "carrier-pigeon",
	}
	assert.Error(t, sl.ValidateData(badEnum, "CreateNoteRequest"))
}

func TestValidateData_RangeConstraints(t *testing.T) {
	sl, err := LoadSchemas()
	require.NoError(t, err)

	tooManyMonths := map[string]interface{}{
		"subject":        "Go",
		"months":         48,
		"hours_per_week": 5,
	}
	assert.Error(t, sl.ValidateData(tooManyMonths, "CreateRoadmapRequest"))

	inRange := map[string]interface{}{
		"subject":        "Go",
		"months":         6,
		"hours_per_week": 5,
	}
	assert.NoError(t, sl.ValidateData(inRange, "CreateRoadmapRequest"))
}

func TestValidateData_UnknownSchema(t *testing.T) {
	sl, err := LoadSchemas()
	require.NoError(t, err)

	err = sl.ValidateData(map[string]interface{}{}, "NoSuchSchema")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestPathMatchesPattern(t *testing.T) {
	assert.True(t, pathMatchesPattern("/v1/notes/12", "/v1/notes/{id}"))
	assert.True(t, pathMatchesPattern("/v1/roadmaps/7/milestones/3", "/v1/roadmaps/{id}/milestones/{mid}"))
	assert.False(t, pathMatchesPattern("/v1/notes", "/v1/notes/{id}"))
	assert.False(t, pathMatchesPattern("/v1/quizzes/12", "/v1/notes/{id}"))
}
