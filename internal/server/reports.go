package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/filings-cli/internal/job"
	"github.com/sells-group/filings-cli/internal/model"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type createReportRequest struct {
	Kind   string   `json:"kind"`
	Ticker string   `json:"ticker,omitempty"`
	Certs  []string `json:"certs,omitempty"`
}

type reportStatusResponse struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	State     string    `json:"state"`
	Progress  string    `json:"progress,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	if !s.createRL.allow("generate_" + clientIP(r)) {
		writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
		return
	}

	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := s.jobs.Create(model.JobKind(req.Kind), model.JobParams{
		Ticker: req.Ticker,
		Certs:  req.Certs,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": id})
	case errors.Is(err, job.ErrInvalidParameters):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "Failed to create report job")
	}
}

func (s *Server) handleReportStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.jobs.Status(chi.URLParam(r, "id"))
	if errors.Is(err, job.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Report job not found")
		return
	}
	writeJSON(w, http.StatusOK, reportStatusResponse{
		ID:        st.ID,
		Kind:      string(st.Kind),
		State:     string(st.State),
		Progress:  st.Progress,
		Error:     st.Error,
		CreatedAt: st.CreatedAt,
	})
}

func (s *Server) handleReportDownload(w http.ResponseWriter, r *http.Request) {
	data, filename, err := s.jobs.Artifact(chi.URLParam(r, "id"))
	switch {
	case err == nil:
	case errors.Is(err, job.ErrNotFound):
		writeError(w, http.StatusNotFound, "Report job not found")
		return
	case errors.Is(err, job.ErrNotReady):
		writeError(w, http.StatusConflict, "Report is not ready yet")
		return
	default:
		// Terminal without an artifact: failed or cancelled, with detail.
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleReportCancel(w http.ResponseWriter, r *http.Request) {
	err := s.jobs.Cancel(chi.URLParam(r, "id"))
	if errors.Is(err, job.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Report job not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
