package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mart1ny/rag-assistant/internal/pkg/apperr"
	"github.com/mart1ny/rag-assistant/internal/platform/logger"
	"github.com/mart1ny/rag-assistant/internal/services/pipeline"
)

type ChatHandler struct {
	pipeline *pipeline.Pipeline
	log      *logger.Logger
}

func NewChatHandler(p *pipeline.Pipeline, log *logger.Logger) *ChatHandler {
	return &ChatHandler{pipeline: p, log: log.With("handler", "ChatHandler")}
}

type chatRequest struct {
	Message string `json:"message"`
	Limit   int    `json:"limit"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}

	resp, err := h.pipeline.Answer(c.Request.Context(), req.Message, req.Limit)
	switch {
	case err == nil:
		RespondOK(c, resp)
	case errors.Is(err, apperr.ErrInvalidArgument):
		RespondError(c, http.StatusBadRequest, "invalid_argument", err)
	case errors.Is(err, apperr.ErrNotFound):
		RespondError(c, http.StatusNotFound, "not_found",
			errors.New("Материалы по запросу не найдены."))
	case errors.Is(err, apperr.ErrNoMatch):
		RespondError(c, http.StatusNotFound, "no_match",
			errors.New("Не удалось сопоставить документы в Postgres."))
	default:
		h.log.Error("chat request failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal",
			errors.New("internal error"))
	}
}

func (h *ChatHandler) Examples(c *gin.Context) {
	RespondOK(c, gin.H{"examples": h.pipeline.Examples()})
}
