package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"survey-analytics-service/internal/app"
	"survey-analytics-service/internal/domain"
)

// StaleHeader is set when a response carries the last committed aggregate
// because its refresh failed.
const StaleHeader = "X-Analytics-Stale"

// Handler serves the analytics and export operations as JSON.
type Handler struct {
	analytics *app.AnalyticsService
	exports   *app.ExportService
	log       logrus.FieldLogger
}

func NewHandler(analytics *app.AnalyticsService, exports *app.ExportService, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{analytics: analytics, exports: exports, log: log}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /surveys/{surveyID}/analytics", h.surveyAnalytics)
	mux.HandleFunc("GET /surveys/{surveyID}/questions/analytics", h.surveyQuestionAnalytics)
	mux.HandleFunc("GET /surveys/{surveyID}/trend", h.hourlyTrend)
	mux.HandleFunc("POST /surveys/{surveyID}/recompute", h.triggerSurvey)
	mux.HandleFunc("POST /surveys/{surveyID}/responses", h.responseSubmitted)

	mux.HandleFunc("GET /questions/{questionID}/analytics", h.questionAnalytics)
	mux.HandleFunc("POST /questions/{questionID}/recompute", h.triggerQuestion)

	mux.HandleFunc("GET /users/{userID}/dashboard", h.dashboard)
	mux.HandleFunc("POST /users/{userID}/dashboard/recompute", h.triggerDashboard)
	mux.HandleFunc("GET /users/{userID}/activity", h.recentActivity)

	mux.HandleFunc("POST /users/{userID}/exports", h.createExport)
	mux.HandleFunc("GET /users/{userID}/exports", h.listExports)
	mux.HandleFunc("GET /users/{userID}/exports/{jobID}", h.getExport)
	mux.HandleFunc("GET /users/{userID}/exports/{jobID}/dataset", h.exportDataset)
	mux.HandleFunc("GET /users/{userID}/exports/{jobID}/download", h.downloadExport)
	mux.HandleFunc("POST /exports/{jobID}/complete", h.completeExport)
	mux.HandleFunc("POST /exports/{jobID}/fail", h.failExport)
}

func (h *Handler) surveyAnalytics(w http.ResponseWriter, r *http.Request) {
	agg, err := h.analytics.SurveyAnalytics(r.Context(), r.PathValue("surveyID"))
	h.writeAggregate(w, agg, agg.SurveyID != "", err)
}

func (h *Handler) surveyQuestionAnalytics(w http.ResponseWriter, r *http.Request) {
	aggs, err := h.analytics.SurveyQuestionAnalytics(r.Context(), r.PathValue("surveyID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, aggs)
}

func (h *Handler) questionAnalytics(w http.ResponseWriter, r *http.Request) {
	agg, err := h.analytics.QuestionAnalytics(r.Context(), r.PathValue("questionID"))
	h.writeAggregate(w, agg, agg.QuestionID != "", err)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	view, err := h.analytics.Dashboard(r.Context(), r.PathValue("userID"))
	h.writeAggregate(w, view, view.UserID != "", err)
}

func (h *Handler) recentActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := h.analytics.RecentActivity(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activity)
}

func (h *Handler) hourlyTrend(w http.ResponseWriter, r *http.Request) {
	hours := 0
	if raw := r.URL.Query().Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "hours must be a positive integer", http.StatusBadRequest)
			return
		}
		hours = n
	}
	trend, err := h.analytics.HourlyTrend(r.Context(), r.PathValue("surveyID"), hours)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, trend)
}

type triggerResponse struct {
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Status string `json:"status"`
}

func (h *Handler) triggerSurvey(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("surveyID")
	if _, err := h.analytics.TriggerSurvey(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, triggerResponse{Kind: app.KindSurvey, Target: id, Status: "triggered"})
}

func (h *Handler) triggerQuestion(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("questionID")
	if _, err := h.analytics.TriggerQuestion(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, triggerResponse{Kind: app.KindQuestion, Target: id, Status: "triggered"})
}

func (h *Handler) triggerDashboard(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("userID")
	if _, err := h.analytics.TriggerDashboard(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, triggerResponse{Kind: app.KindDashboard, Target: id, Status: "triggered"})
}

// responseSubmitted receives the survey service's "new response" event.
func (h *Handler) responseSubmitted(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("surveyID")
	if err := h.analytics.ResponseSubmitted(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, triggerResponse{Kind: app.KindSurvey, Target: id, Status: "invalidated"})
}

func (h *Handler) createExport(w http.ResponseWriter, r *http.Request) {
	var req app.ExportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid export request body", http.StatusBadRequest)
		return
	}
	job, err := h.exports.Create(r.Context(), r.PathValue("userID"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *Handler) listExports(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.exports.List(r.Context(), r.PathValue("userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) getExport(w http.ResponseWriter, r *http.Request) {
	job, err := h.exports.Get(r.Context(), r.PathValue("userID"), r.PathValue("jobID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) exportDataset(w http.ResponseWriter, r *http.Request) {
	ds, err := h.exports.Dataset(r.Context(), r.PathValue("userID"), r.PathValue("jobID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (h *Handler) downloadExport(w http.ResponseWriter, r *http.Request) {
	location, err := h.exports.Download(r.Context(), r.PathValue("userID"), r.PathValue("jobID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	http.Redirect(w, r, location, http.StatusFound)
}

type completePayload struct {
	Location string `json:"location"`
}

type failPayload struct {
	Message string `json:"message"`
}

func (h *Handler) completeExport(w http.ResponseWriter, r *http.Request) {
	var body completePayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Location == "" {
		http.Error(w, "location is required", http.StatusBadRequest)
		return
	}
	job, err := h.exports.Complete(r.Context(), r.PathValue("jobID"), body.Location)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) failExport(w http.ResponseWriter, r *http.Request) {
	var body failPayload
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	job, err := h.exports.Fail(r.Context(), r.PathValue("jobID"), body.Message)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// writeAggregate serves a prior aggregate with the stale header when its
// refresh failed, and an error otherwise.
func (h *Handler) writeAggregate(w http.ResponseWriter, v any, hasPrior bool, err error) {
	if err != nil {
		if hasPrior && errors.Is(err, domain.ErrComputationFailed) {
			w.Header().Set(StaleHeader, "true")
			writeJSON(w, http.StatusOK, v)
			return
		}
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrTargetNotFound), errors.Is(err, domain.ErrExportNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidExport):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrExportNotReady):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrComputationFailed):
		status = http.StatusServiceUnavailable
	}
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("status", status).Error("request failed")
	}
	writeJSON(w, status, errorPayload{Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
