package modifications

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/quill/pkg/handlers"
	"github.com/JaimeStill/quill/pkg/pagination"
	"github.com/JaimeStill/quill/pkg/routes"
)

// Handler exposes modification domain operations over HTTP.
type Handler struct {
	system     System
	logger     *slog.Logger
	pagination pagination.Config
}

func NewHandler(system System, logger *slog.Logger, pag pagination.Config) *Handler {
	return &Handler{
		system:     system,
		logger:     logger,
		pagination: pag,
	}
}

// Routes returns the modification endpoints mounted under /text.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/text",
		Routes: []routes.Route{
			{Method: http.MethodPost, Pattern: "/modify", Handler: h.modify},
			{Method: http.MethodPost, Pattern: "/analyze", Handler: h.analyze},
			{Method: http.MethodGet, Pattern: "/operations", Handler: h.operations},
			{Method: http.MethodGet, Pattern: "/history/{userId}", Handler: h.history},
			{Method: http.MethodGet, Pattern: "/statistics/{userId}", Handler: h.statistics},
		},
	}
}

// ModifyRequest is the POST /text/modify body. TargetLanguage is a
// convenience alias for options.target_language.
type ModifyRequest struct {
	Text           string         `json:"text"`
	Operation      string         `json:"operation"`
	UserID         string         `json:"user_id,omitempty"`
	TargetLanguage string         `json:"target_language,omitempty"`
	Options        map[string]any `json:"options,omitempty"`
}

// AnalyzeRequest is the POST /text/analyze body.
type AnalyzeRequest struct {
	Text   string `json:"text"`
	UserID string `json:"user_id,omitempty"`
}

// ErrorResponse is the structured error body for modification endpoints.
type ErrorResponse struct {
	ErrorCode     string `json:"error_code"`
	Message       string `json:"message"`
	IsRetryable   bool   `json:"is_retryable"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func (h *Handler) modify(w http.ResponseWriter, r *http.Request) {
	var body ModifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	req := Request{
		Text:          body.Text,
		Operation:     Operation(body.Operation),
		UserID:        body.UserID,
		Options:       body.Options,
		CorrelationID: uuid.New(),
	}
	if body.TargetLanguage != "" {
		if req.Options == nil {
			req.Options = make(map[string]any, 1)
		}
		req.Options["target_language"] = body.TargetLanguage
	}

	result, err := h.system.Process(r.Context(), req)
	if err != nil {
		h.respondError(w, err, req.CorrelationID.String())
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var body AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	analysis, err := h.system.Analyze(r.Context(), body.Text, body.UserID)
	if err != nil {
		h.respondError(w, err, "")
		return
	}

	handlers.RespondJSON(w, http.StatusOK, analysis)
}

func (h *Handler) operations(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, map[string][]Operation{
		"operations": Operations(),
	})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	operation := r.URL.Query().Get("operation")

	result, err := h.system.History(r.Context(), userID, page, operation)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	stats, err := h.system.Statistics(r.Context(), userID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, stats)
}

func (h *Handler) respondError(w http.ResponseWriter, err error, correlationID string) {
	status := MapHTTPStatus(err)
	h.logger.Error("modification request failed",
		"status", status,
		"correlation_id", correlationID,
		"error", err,
	)

	handlers.RespondJSON(w, status, ErrorResponse{
		ErrorCode:     Code(err),
		Message:       err.Error(),
		IsRetryable:   IsRetryable(err),
		CorrelationID: correlationID,
	})
}
