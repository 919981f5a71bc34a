package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/DataMention-Intelligence/internal/application/extraction"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/mention"
)

// MentionHandler serves snippet extraction and lexicon reloads.
type MentionHandler struct {
	svc extraction.Service
}

func NewMentionHandler(svc extraction.Service) *MentionHandler {
	return &MentionHandler{svc: svc}
}

// ExtractRequest is the body of POST /api/v1/extract.
type ExtractRequest struct {
	Text string `json:"text" binding:"required"`
}

// LexiconRequest is the body of PUT /api/v1/lexicon.
type LexiconRequest struct {
	Abbreviations []string `json:"abbreviations"`
	Phrases       []string `json:"phrases"`
}

// Extract handles POST /api/v1/extract.
func (h *MentionHandler) Extract(c *gin.Context) {
	var req ExtractRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.svc.Extract(c.Request.Context(), req.Text)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ReplaceLexicon handles PUT /api/v1/lexicon.
func (h *MentionHandler) ReplaceLexicon(c *gin.Context) {
	var req LexiconRequest
	if !bindJSON(c, &req) {
		return
	}
	lex := mention.NewLexicon(trimAll(req.Abbreviations), trimAll(req.Phrases))
	if err := h.svc.ReloadLexicon(c.Request.Context(), lex); err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": lex.Len()})
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
