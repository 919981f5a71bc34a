package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/DataMention-Intelligence/internal/application/prediction"
	"github.com/turtacn/DataMention-Intelligence/internal/intelligence/evaluation"
)

// PredictionHandler serves ranking, evaluation and model management.
type PredictionHandler struct {
	svc prediction.Service
}

func NewPredictionHandler(svc prediction.Service) *PredictionHandler {
	return &PredictionHandler{svc: svc}
}

// PredictRequest is the body of POST /api/v1/predict. An empty ID skips
// indexing, graph and event side effects.
type PredictRequest struct {
	ID   string `json:"id"`
	Text string `json:"text" binding:"required"`
	TopK int    `json:"top_k" binding:"gte=0,lte=100"`
}

// PredictSnippetRequest is the body of POST /api/v1/predict/snippet.
type PredictSnippetRequest struct {
	Snippet string `json:"snippet" binding:"required"`
	TopK    int    `json:"top_k" binding:"gte=0,lte=100"`
}

// EvaluateRequest is the body of POST /api/v1/evaluate.
type EvaluateRequest struct {
	YTrue []string `json:"y_true"`
	YPred []string `json:"y_pred"`
}

// EvaluationRunRequest is the body of POST /api/v1/evaluations.
type EvaluationRunRequest struct {
	Documents    []prediction.LabeledDocument `json:"documents" binding:"required"`
	ExportReport bool                         `json:"export_report"`
}

// ReloadModelRequest is the body of POST /api/v1/model/reload. An empty key
// loads the latest model.
type ReloadModelRequest struct {
	Key string `json:"key"`
}

// Predict handles POST /api/v1/predict.
func (h *PredictionHandler) Predict(c *gin.Context) {
	var req PredictRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.svc.PredictDocument(c.Request.Context(), req.ID, req.Text, req.TopK)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// PredictSnippet handles POST /api/v1/predict/snippet.
func (h *PredictionHandler) PredictSnippet(c *gin.Context) {
	var req PredictSnippetRequest
	if !bindJSON(c, &req) {
		return
	}
	scores, err := h.svc.PredictSnippet(c.Request.Context(), req.Snippet, req.TopK)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"datasets": scores})
}

// Evaluate handles POST /api/v1/evaluate, scoring one ranking.
func (h *PredictionHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := evaluation.Evaluate(req.YTrue, req.YPred)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RunEvaluation handles POST /api/v1/evaluations.
func (h *PredictionHandler) RunEvaluation(c *gin.Context) {
	var req EvaluationRunRequest
	if !bindJSON(c, &req) {
		return
	}
	rep, err := h.svc.Evaluate(c.Request.Context(), req.Documents, prediction.EvaluateOptions{ExportReport: req.ExportReport})
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

// Model handles GET /api/v1/model.
func (h *PredictionHandler) Model(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Model())
}

// ReloadModel handles POST /api/v1/model/reload.
func (h *PredictionHandler) ReloadModel(c *gin.Context) {
	var req ReloadModelRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	if err := h.svc.LoadModel(c.Request.Context(), req.Key); err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Model())
}
