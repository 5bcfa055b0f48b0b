package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/sells-group/profile-cli/internal/analysis"
	"github.com/sells-group/profile-cli/internal/model"
	"github.com/sells-group/profile-cli/internal/report"
	"github.com/sells-group/profile-cli/internal/store"
)

const maxBodyBytes = 64 << 10

// Blank values pass the schema and are rejected by request validation, so
// callers see the same message as the CLI.
var submitSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"properties": {
		"company_name": {"type": "string", "maxLength": 500},
		"company_website": {"type": "string", "maxLength": 2048}
	}
}`)

type submitResponse struct {
	ID        string               `json:"id"`
	SessionID string               `json:"session_id"`
	Status    model.AnalysisStatus `json:"status"`
}

// POST /api/analyses
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return errStatus(http.StatusRequestEntityTooLarge, "request body too large")
	}
	if err := validateBody(body); err != nil {
		return err
	}

	var req model.AnalysisRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return errStatus(http.StatusBadRequest, "invalid request body")
	}

	sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	w.Header().Set(SessionHeader, sessionID)

	a, err := s.analyzer.Submit(r.Context(), sessionID, req)
	if err != nil {
		if a != nil {
			return &analysisFailure{err: err, analysisID: a.ID}
		}
		return err
	}

	writeJSON(w, http.StatusAccepted, submitResponse{ID: a.ID, SessionID: sessionID, Status: a.Status})
	return nil
}

func validateBody(body []byte) error {
	result, err := gojsonschema.Validate(submitSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return errStatus(http.StatusBadRequest, "invalid request body")
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			msgs[i] = desc.String()
		}
		return errStatus(http.StatusBadRequest, "invalid request body: "+strings.Join(msgs, "; "))
	}
	return nil
}

// GET /api/analyses?session_id=&status=&limit=&offset=
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	filter := store.AnalysisFilter{
		SessionID: q.Get("session_id"),
		Status:    model.AnalysisStatus(q.Get("status")),
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		return err
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		return err
	}

	list, err := s.history.ListAnalyses(r.Context(), filter)
	if err != nil {
		return err
	}
	if list == nil {
		list = []model.Analysis{}
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errStatus(http.StatusBadRequest, fmt.Sprintf("invalid number %q", v))
	}
	return n, nil
}

// GET /api/analyses/{id}
func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) error {
	a, err := s.history.GetAnalysis(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, a)
	return nil
}

// DELETE /api/analyses/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), s.opts.CancelTimeout)
	defer cancel()

	if err := s.analyzer.Cancel(ctx, id); err != nil {
		if !errors.Is(err, analysis.ErrNotRunning) {
			return eris.Wrapf(err, "server: cancel analysis %s", id)
		}
		// Not running: 404 for unknown ids, 409 for finished ones.
		if _, getErr := s.history.GetAnalysis(r.Context(), id); getErr != nil {
			return getErr
		}
		return err
	}

	a, err := s.history.GetAnalysis(r.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, a)
	return nil
}

// GET /api/analyses/{id}/report?format=json|markdown|yaml|xlsx
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) error {
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		return errStatus(http.StatusBadRequest, err.Error())
	}

	a, err := s.history.GetAnalysis(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return err
	}
	if a.Status != model.AnalysisStatusReady {
		return errStatus(http.StatusConflict, fmt.Sprintf("analysis is %s, not ready", a.Status))
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, report.Build(a.Profile), format); err != nil {
		if errors.Is(err, report.ErrNoTables) {
			return errStatus(http.StatusUnprocessableEntity, "report has no tabular sections")
		}
		return err
	}

	if format == report.FormatXLSX {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, a.ID))
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		zap.L().Warn("server: write report", zap.String("analysis_id", a.ID), zap.Error(err))
	}
	return nil
}

// GET /api/sessions/{sid}/profile
func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) error {
	p, err := s.profiles.GetProfile(r.Context(), chi.URLParam(r, "sid"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, p)
	return nil
}

// DELETE /api/sessions/{sid}/profile
func (s *Server) handleClearProfile(w http.ResponseWriter, r *http.Request) error {
	if err := s.profiles.ClearProfile(r.Context(), chi.URLParam(r, "sid")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
