package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/remworker/component"
	"github.com/kbukum/remworker/errors"
	"github.com/kbukum/remworker/recording"
	"github.com/kbukum/remworker/speaker"
	"github.com/kbukum/remworker/validation"
	"github.com/kbukum/remworker/version"
)

// HealthChecker returns the current health of every registered component.
type HealthChecker func(ctx context.Context) []component.Health

// Enqueuer accepts raw job bodies. Only the in-memory queue offers it.
type Enqueuer interface {
	Send(ctx context.Context, body []byte) (string, error)
}

// RegisterProbes adds /healthz (process alive) and /readyz (every
// component healthy or degraded).
func (s *Server) RegisterProbes(service string, checker HealthChecker) {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive", "service": service, "build": version.Get()})
	})
	s.engine.GET("/readyz", func(c *gin.Context) {
		var results []component.Health
		if checker != nil {
			results = checker(c.Request.Context())
		}
		overall := component.Overall(results)
		code := http.StatusOK
		if overall == component.StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":     overall,
			"service":    service,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
			"components": results,
		})
	})
}

// API exposes read access to results plus speaker naming. Nil fields
// leave their routes unregistered.
type API struct {
	Status   recording.StatusStore
	Profiles speaker.Store
	Jobs     Enqueuer
}

// RegisterAPI mounts the /v1 routes.
func (s *Server) RegisterAPI(api API) {
	v1 := s.engine.Group("/v1")
	if s.auth != nil {
		v1.Use(s.auth.middleware())
	}
	if api.Status != nil {
		v1.GET("/users/:userId/recordings/:recordingId", api.getStatus)
	}
	if api.Profiles != nil {
		v1.GET("/users/:userId/speakers", api.listSpeakers)
		v1.PUT("/users/:userId/speakers/:speakerId/name", api.renameSpeaker)
	}
	if api.Jobs != nil {
		v1.POST("/jobs", bodyLimit(s.config.MaxBodyBytes), api.enqueue)
	}
}

type statusView struct {
	UserID          string    `json:"userId"`
	RecordingID     string    `json:"recordingId"`
	Status          string    `json:"status"`
	TranscriptRef   string    `json:"transcriptRef"`
	Language        string    `json:"language"`
	DurationSeconds float64   `json:"durationSeconds"`
	UpdatedAt       time.Time `json:"updatedAt"`
	Summary         string    `json:"summary,omitempty"`
	Topics          []string  `json:"topics,omitempty"`
	HasEmbedding    bool      `json:"hasEmbedding"`
}

func (api API) getStatus(c *gin.Context) {
	rec, err := api.Status.Get(c.Request.Context(), c.Param("userId"), c.Param("recordingId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, statusView{
		UserID:          rec.UserID,
		RecordingID:     rec.RecordingID,
		Status:          rec.Status,
		TranscriptRef:   rec.TranscriptRef,
		Language:        rec.Language,
		DurationSeconds: rec.DurationSeconds,
		UpdatedAt:       rec.UpdatedAt,
		Summary:         rec.Summary,
		Topics:          rec.Topics,
		HasEmbedding:    len(rec.Embedding) > 0,
	})
}

type speakerView struct {
	SpeakerID   string    `json:"speakerId"`
	Name        string    `json:"name"`
	SampleCount int       `json:"sampleCount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (api API) listSpeakers(c *gin.Context) {
	profiles, err := api.Profiles.ListProfiles(c.Request.Context(), c.Param("userId"))
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]speakerView, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, speakerView{
			SpeakerID:   p.SpeakerID,
			Name:        p.DisplayName(),
			SampleCount: p.SampleCount,
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"speakers": out})
}

type renameRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// renameSpeaker sets a display name. Transcripts written earlier keep the
// name they were written with.
func (api API) renameSpeaker(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, errors.InvalidInput("body", "unreadable"))
		return
	}
	req, err := validation.Decode[renameRequest](body)
	if err != nil {
		writeError(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(c, errors.MissingField("name"))
		return
	}

	ctx := c.Request.Context()
	userID, speakerID := c.Param("userId"), c.Param("speakerId")
	profiles, err := api.Profiles.ListProfiles(ctx, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	found := false
	for _, p := range profiles {
		if p.SpeakerID == speakerID {
			found = true
			break
		}
	}
	if !found {
		writeError(c, errors.NotFound("speaker", speakerID))
		return
	}

	if err := api.Profiles.UpsertProfile(ctx, speaker.ProfileUpdate{UserID: userID, SpeakerID: speakerID, Name: name}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"speakerId": speakerID, "name": name})
}

func (api API) enqueue(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, errors.InvalidInput("body", "unreadable or too large"))
		return
	}
	if _, err := validation.Decode[recording.Job](body); err != nil {
		writeError(c, err)
		return
	}
	id, err := api.Jobs.Send(c.Request.Context(), body)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"messageId": id})
}

func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}

func writeError(c *gin.Context, err error) {
	appErr, ok := errors.AsAppError(err)
	if !ok {
		appErr = errors.Internal(err)
	}
	c.AbortWithStatusJSON(httpStatus(appErr.Code), appErr)
}

func httpStatus(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput, errors.ErrCodeMissingField:
		return http.StatusBadRequest
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden:
		return http.StatusForbidden
	case errors.ErrCodeConflict:
		return http.StatusConflict
	case errors.ErrCodeServiceUnavailable, errors.ErrCodeConnectionFailed:
		return http.StatusServiceUnavailable
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
