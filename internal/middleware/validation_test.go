package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func validationTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestValidationMiddleware(middlewareTestLogger()))
	router.POST("/v1/notes", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"status": "ok"})
	})
	router.POST("/v1/unvalidated", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func TestRequestValidationMiddleware_ValidBody(t *testing.T) {
	router := validationTestRouter()

	body := `{"title": "Cell biology", "source_type": "text", "source_text": "Mitochondria produce ATP."}`
	req, _ := http.NewRequest("POST", "/v1/notes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRequestValidationMiddleware_MissingRequiredField(t *testing.T) {
	router := validationTestRouter()

	body := `{"source_type": "text", "source_text": "no title"}`
	req, _ := http.NewRequest("POST", "/v1/notes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "CreateNoteRequest")
}

func TestRequestValidationMiddleware_MalformedJSON(t *testing.T) {
	router := validationTestRouter()

	req, _ := http.NewRequest("POST", "/v1/notes", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestValidationMiddleware_UnboundEndpointPassesThrough(t *testing.T) {
	router := validationTestRouter()

	req, _ := http.NewRequest("POST", "/v1/unvalidated", strings.NewReader(`{"anything": true}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestValidationMiddleware_BodyStillReadableByHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestValidationMiddleware(middlewareTestLogger()))

	var gotTitle string
	router.POST("/v1/notes", func(c *gin.Context) {
		var payload struct {
			Title string `json:"title"`
		}
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		gotTitle = payload.Title
		c.JSON(http.StatusCreated, gin.H{"status": "ok"})
	})

	body := `{"title": "Linear algebra", "source_type": "text", "source_text": "Vectors and matrices."}`
	req, _ := http.NewRequest("POST", "/v1/notes", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Linear algebra", gotTitle)
}
