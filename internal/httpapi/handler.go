package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"numfix/internal/pipeline"
	"numfix/internal/report"
)

type processRequest struct {
	Text       string `json:"text"`
	FixNumbers bool   `json:"fixNumbers"`
}

// processFunc is swapped in tests to exercise the panic path.
var processFunc = pipeline.ProcessInput

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req processRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	rep, err := processFunc(req.Text, req.FixNumbers)
	if errors.Is(err, pipeline.ErrNoInput) {
		// Plain text, not JSON: clients match this exact body.
		http.Error(w, "No text provided", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.log.Debug("processed",
		zap.Bool("fix", req.FixNumbers),
		zap.Int("total_lines", rep.Stats.TotalLines),
		zap.Int("unique_lines", rep.Stats.UniqueLines),
	)
	writeReport(w, rep)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func writeReport(w http.ResponseWriter, rep report.Report) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = report.Encode(w, rep)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
