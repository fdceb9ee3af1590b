package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/VoiceMesh/internal/app/orch"
	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Session is the part of the orchestrator the API drives.
type Session interface {
	Snapshot(ctx context.Context) (orch.View, error)
	SendChat(ctx context.Context, text string) error
	SetMedia(ctx context.Context, kind domain.MediaKind, enabled bool) error
	Leave(ctx context.Context) error
}

type participantResponse struct {
	ID           domain.ParticipantID `json:"id"`
	DisplayName  string               `json:"displayName,omitempty"`
	PhotoURL     string               `json:"photoURL,omitempty"`
	Self         bool                 `json:"self"`
	AudioEnabled bool                 `json:"audioEnabled"`
	VideoEnabled bool                 `json:"videoEnabled"`
	Connected    bool                 `json:"connected"`
	Role         core.Role            `json:"role,omitempty"`
	State        string               `json:"state,omitempty"`
}

type roomResponse struct {
	Room         domain.RoomID         `json:"room"`
	Self         string                `json:"self,omitempty"`
	Active       bool                  `json:"active"`
	Waiting      bool                  `json:"waiting"`
	Full         bool                  `json:"full"`
	Participants []participantResponse `json:"participants"`
}

type chatRequest struct {
	Text string `json:"text" binding:"required"`
}

type mediaRequest struct {
	Kind    domain.MediaKind `json:"kind" binding:"required"`
	Enabled *bool            `json:"enabled" binding:"required"`
}

func toRoomResponse(v orch.View) roomResponse {
	out := roomResponse{
		Room:         v.Room,
		Self:         v.Self,
		Active:       v.Active,
		Waiting:      v.Waiting,
		Full:         v.Full,
		Participants: make([]participantResponse, 0, len(v.Participants)),
	}
	for _, p := range v.Participants {
		out.Participants = append(out.Participants, participantResponse{
			ID:           p.ID,
			DisplayName:  p.DisplayName,
			PhotoURL:     p.PhotoURL,
			Self:         p.Self,
			AudioEnabled: p.Media.AudioEnabled,
			VideoEnabled: p.Media.VideoEnabled,
			Connected:    p.State == orch.StateConnected.String(),
			Role:         p.Role,
			State:        p.State,
		})
	}
	return out
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotReady), errors.Is(err, core.ErrCapacityExceeded):
		return http.StatusConflict
	case errors.Is(err, core.ErrChannelClosed), errors.Is(err, core.ErrBackpressure):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadRequest
}

func fail(c *gin.Context, err error) {
	log.Warn().Err(err).Str("module", "adapters.http").Str("path", c.FullPath()).Msg("request failed")
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}

func SetupRouter(mode string, sess Session, chat *ChatLog) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	api.GET("/room", func(c *gin.Context) {
		v, err := sess.Snapshot(c.Request.Context())
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, toRoomResponse(v))
	})

	api.GET("/chat", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"messages": chat.Messages()})
	})

	api.POST("/chat", func(c *gin.Context) {
		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, err)
			return
		}
		if err := sess.SendChat(c.Request.Context(), req.Text); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	})

	api.POST("/media", func(c *gin.Context) {
		var req mediaRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, err)
			return
		}
		if !req.Kind.Valid() {
			fail(c, errors.New("kind must be audio or video"))
			return
		}
		if err := sess.SetMedia(c.Request.Context(), req.Kind, *req.Enabled); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	api.POST("/leave", func(c *gin.Context) {
		if err := sess.Leave(c.Request.Context()); err != nil {
			fail(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
