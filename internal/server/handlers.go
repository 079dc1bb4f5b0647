package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dotcommander/codevisor/internal/domain"
)

type errorBody struct {
	Error string `json:"error"`
}

type healthBody struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

func (s *Server) handleGenerateFlowchart(w http.ResponseWriter, r *http.Request) {
	const endpoint = "generate_flowchart"
	if !allowMethod(w, r, http.MethodPost) {
		s.count(endpoint, "", http.StatusMethodNotAllowed)
		return
	}

	var req domain.AnalysisRequest
	if status, msg := s.decode(w, r, &req); status != 0 {
		s.fail(w, endpoint, "", status, msg)
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	req.Language = domain.Language(strings.ToLower(string(req.Language)))
	if err := s.validate.Struct(req); err != nil {
		s.fail(w, endpoint, string(req.Language), http.StatusBadRequest, requestMessage(err))
		return
	}

	lang := string(req.Language)
	key := cacheKey(req.Language, req.Code)
	if resp, ok := s.cache.Get(key); ok {
		s.metrics.cacheHits.Inc()
		s.count(endpoint, lang, http.StatusOK)
		writeJSON(w, http.StatusOK, resp)
		return
	}
	s.metrics.cacheMisses.Inc()

	start := time.Now()
	resp, err := s.engine.Analyze(r.Context(), req.Language, req.Code)
	s.metrics.duration.WithLabelValues(endpoint, lang).Observe(time.Since(start).Seconds())
	if err != nil {
		s.analysisFailed(w, endpoint, lang, err)
		return
	}

	if err := s.cache.Put(key, resp); err != nil {
		s.logger.Warn("caching analysis failed", "language", lang, "error", err)
	}
	s.count(endpoint, lang, http.StatusOK)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleParsePython(w http.ResponseWriter, r *http.Request) {
	const endpoint = "parse_python"
	lang := string(domain.LanguagePython)
	if !allowMethod(w, r, http.MethodPost) {
		s.count(endpoint, lang, http.StatusMethodNotAllowed)
		return
	}

	var req domain.ParseRequest
	if status, msg := s.decode(w, r, &req); status != 0 {
		s.fail(w, endpoint, lang, status, msg)
		return
	}
	req.Code = strings.TrimSpace(req.Code)
	if err := s.validate.Struct(req); err != nil {
		s.fail(w, endpoint, lang, http.StatusBadRequest, requestMessage(err))
		return
	}

	start := time.Now()
	resp, err := s.engine.ParsePython(r.Context(), req.Code)
	s.metrics.duration.WithLabelValues(endpoint, lang).Observe(time.Since(start).Seconds())
	if err != nil {
		s.analysisFailed(w, endpoint, lang, err)
		return
	}
	s.count(endpoint, lang, http.StatusOK)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, healthBody{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	})
}

// decode reads a size-limited JSON body into v. A non-zero status means the
// body was rejected with the returned message.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) (int, string) {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxCodeSize)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return http.StatusRequestEntityTooLarge, fmt.Sprintf("Request body exceeds %d bytes", tooBig.Limit)
		}
		return http.StatusBadRequest, "No data received"
	}
	return 0, ""
}

func (s *Server) analysisFailed(w http.ResponseWriter, endpoint, lang string, err error) {
	if domain.IsValidation(err) {
		s.fail(w, endpoint, lang, http.StatusBadRequest, "Unsupported language")
		return
	}
	s.logger.Error("analysis failed", "endpoint", endpoint, "language", lang, "error", err)
	s.fail(w, endpoint, lang, http.StatusInternalServerError, "Analysis failed")
}

func (s *Server) fail(w http.ResponseWriter, endpoint, lang string, status int, message string) {
	s.count(endpoint, lang, status)
	writeJSON(w, status, errorBody{Error: message})
}

func (s *Server) count(endpoint, lang string, status int) {
	s.metrics.requests.WithLabelValues(endpoint, lang, fmt.Sprint(status)).Inc()
}

// requestMessage turns a validator failure into the message the client shows.
func requestMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	switch verrs[0].Field() {
	case "Code":
		return "No code provided"
	case "Language":
		return "Unsupported language"
	}
	return fmt.Sprintf("Invalid %s", strings.ToLower(verrs[0].Field()))
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed"})
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
