package server

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kasiski/internal/freq"
	"kasiski/internal/health"
	"kasiski/internal/kasiski"
	"kasiski/internal/report"
	"kasiski/internal/store"
	"kasiski/internal/vigenere"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 1000
)

// HealthCheck runs the component checks. It answers 503 when a critical
// component is unhealthy.
func (s *Server) HealthCheck(c *gin.Context) {
	rep := s.checker.Report(c.Request.Context())
	status := http.StatusOK
	if rep.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, HealthResponse{
		Status:     string(rep.Status),
		Version:    s.version,
		Table:      s.Analyzer().Table().Name,
		History:    s.store != nil,
		Uptime:     rep.Uptime,
		Components: rep.Components,
		Time:       time.Now().UTC(),
	})
}

// Tables lists the built-in reference tables.
func (s *Server) Tables(c *gin.Context) {
	names := freq.Names()
	out := make([]TableInfo, 0, len(names))
	for _, name := range names {
		t, err := freq.Lookup(name)
		if err != nil {
			s.fail(c, err)
			return
		}
		out = append(out, TableInfo{
			Name:            t.Name,
			SelfCorrelation: t.SelfCorrelation(),
			Frequencies:     t.Letters(),
		})
	}
	c.JSON(http.StatusOK, out)
}

// Analyze recovers the key of the submitted ciphertext.
func (s *Server) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	a := s.Analyzer()
	if req.Language != "" {
		t, err := freq.Lookup(req.Language)
		if err != nil {
			s.fail(c, err)
			return
		}
		a = a.ForTable(t)
	}

	ciphertext := []byte(req.Ciphertext)
	start := time.Now()
	res, err := a.Analyze(c.Request.Context(), bytes.NewReader(ciphertext))
	if err != nil {
		s.metrics.FailuresTotal.Inc()
		s.fail(c, err)
		return
	}
	s.metrics.ObserveAnalysis(time.Since(start), res.Letters, res.KeyLength, res.Degenerate)

	resp := AnalyzeResponse{Result: res}
	if s.store != nil && (req.Save == nil || *req.Save) {
		id, err := s.store.InsertRun(store.NewRun(res, store.SourceHTTP, "", ciphertext))
		if err != nil {
			s.fail(c, err)
			return
		}
		resp.RunID = id
		if n, err := s.store.CountRuns(); err == nil {
			s.metrics.RunsRecorded.Set(int64(n))
		}
	}

	s.logger.WithContext(c.Request.Context()).Info("analysis complete",
		"letters", res.Letters,
		"key_length", res.KeyLength,
		"run_id", resp.RunID,
	)
	c.JSON(http.StatusOK, resp)
}

// Encode enciphers text with the submitted key.
func (s *Server) Encode(c *gin.Context) {
	s.transform(c, vigenere.Encode)
}

// Decode deciphers text with the submitted key.
func (s *Server) Decode(c *gin.Context) {
	s.transform(c, vigenere.Decode)
}

func (s *Server) transform(c *gin.Context, fn func(text, key string) (string, error)) {
	var req CipherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}
	out, err := fn(req.Text, req.Key)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, CipherResponse{Text: out})
}

// History lists recorded runs.
func (s *Server) History(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "history is disabled"})
		return
	}

	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "limit must be between 1 and " + strconv.Itoa(maxHistoryLimit),
			})
			return
		}
		limit = n
	}

	runs, err := s.store.ListRuns(limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	views := make([]report.RunView, len(runs))
	for i, r := range runs {
		views[i] = report.NewRunView(r)
	}
	c.JSON(http.StatusOK, HistoryResponse{Runs: views, Count: len(views)})
}

// GetRun returns one recorded run.
func (s *Server) GetRun(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "history is disabled"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid run id"})
		return
	}
	run, err := s.store.GetRun(id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report.NewRunView(*run))
}

func (s *Server) badRequest(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{
			Error: "request body exceeds " + strconv.FormatInt(tooLarge.Limit, 10) + " bytes",
		})
		return
	}
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, kasiski.ErrTooShort),
		errors.Is(err, kasiski.ErrUnsupportedFactor),
		errors.Is(err, kasiski.ErrEmptyCoset):
		return http.StatusUnprocessableEntity
	case errors.Is(err, kasiski.ErrInput),
		errors.Is(err, freq.ErrUnknownLanguage),
		errors.Is(err, vigenere.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.WithContext(c.Request.Context()).Error("request failed",
			"path", c.FullPath(), "error", err)
		msg = strings.ToLower(http.StatusText(status))
	}
	c.JSON(status, ErrorResponse{Error: msg})
}
