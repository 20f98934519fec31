// Package middleware provides identity, validation, and error-recovery
// middleware for the Gin web framework.
package middleware

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	contextutils "evolveedu/internal/utils"
)

const (
	// LearnerIDKey is the key used for the learner ID in both the gin context
	// and the cookie session.
	LearnerIDKey = "learner_id"
	// LearnerIDHeader lets API clients pin their identity explicitly instead
	// of relying on the cookie session.
	LearnerIDHeader = "X-Learner-ID"
)

// LearnerIdentity resolves the calling learner's identity and stores it in the
// request context. The header takes precedence; otherwise the cookie session
// is used, minting a new UUID on first contact so anonymous learners keep
// their notes and roadmaps across requests.
func LearnerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		learnerID := c.GetHeader(LearnerIDHeader)

		if learnerID == "" {
			session := sessions.Default(c)
			if v, ok := session.Get(LearnerIDKey).(string); ok && v != "" {
				learnerID = v
			} else {
				learnerID = uuid.NewString()
				session.Set(LearnerIDKey, learnerID)
				// Session save failures fall through; the learner simply gets
				// a fresh identity on the next request.
				_ = session.Save()
			}
		}

		c.Set(LearnerIDKey, learnerID)
		c.Request = c.Request.WithContext(contextutils.WithLearnerID(c.Request.Context(), learnerID))
		c.Next()
	}
}

// LearnerID returns the learner ID resolved by LearnerIdentity, or "" when the
// middleware did not run.
func LearnerID(c *gin.Context) string {
	return c.GetString(LearnerIDKey)
}
