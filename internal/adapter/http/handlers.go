package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/couchcryptid/county-factor-map/internal/domain"
	"github.com/couchcryptid/county-factor-map/internal/viewer"
	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type activeFactor struct {
	Code string `json:"code"`
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.page)
}

func (s *Server) handleFactors(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.svc.Factors())
}

func (s *Server) handleGetActiveFactor(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, activeFactor{Code: s.svc.Factors().Active})
}

func (s *Server) handlePutActiveFactor(w http.ResponseWriter, r *http.Request) {
	var body activeFactor
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.writeJSON(w, http.StatusOK, activeFactor{Code: s.svc.SelectFactor(r.Context(), body.Code)})
}

// handleStyles re-styles every feature. An explicit factor query parameter
// styles for that code without changing the shared selection.
func (s *Server) handleStyles(w http.ResponseWriter, r *http.Request) {
	var (
		styles any
		err    error
	)
	if r.URL.Query().Has("factor") {
		styles, err = s.svc.Styles(r.URL.Query().Get("factor"))
	} else {
		styles, err = s.svc.ActiveStyles()
	}
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, styles)
}

func (s *Server) handleGeometry(w http.ResponseWriter, _ *http.Request) {
	body, err := s.svc.GeoJSON()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (s *Server) handleCounty(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.Detail(r.Context(), domain.JoinKey(chi.URLParam(r, "key")))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleCountyPanel(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.Detail(r.Context(), domain.JoinKey(chi.URLParam(r, "key")))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writePanel(w, detail)
}

func (s *Server) handleFeature(w http.ResponseWriter, r *http.Request) {
	detail, ok := s.featureDetail(w, r)
	if ok {
		s.writeJSON(w, http.StatusOK, detail)
	}
}

func (s *Server) handleFeaturePanel(w http.ResponseWriter, r *http.Request) {
	detail, ok := s.featureDetail(w, r)
	if ok {
		writePanel(w, detail)
	}
}

func (s *Server) featureDetail(w http.ResponseWriter, r *http.Request) (domain.Detail, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "feature index must be an integer")
		return domain.Detail{}, false
	}
	detail, found, err := s.svc.DetailAt(r.Context(), index)
	if err != nil {
		s.writeServiceError(w, err)
		return domain.Detail{}, false
	}
	if !found {
		s.writeError(w, http.StatusNotFound, "no feature at index "+strconv.Itoa(index))
		return domain.Detail{}, false
	}
	return detail, true
}

// handleLocate resolves either a lat/lon pair or a place name query to the
// county containing it. A point outside every county is not an error.
func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Has("q") {
		query := strings.TrimSpace(q.Get("q"))
		if query == "" {
			s.writeError(w, http.StatusBadRequest, "query must not be empty")
			return
		}
		result, err := s.svc.Search(r.Context(), query)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
		return
	}

	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
	if latErr != nil || lonErr != nil {
		s.writeError(w, http.StatusBadRequest, "lat and lon must be numbers, or pass q")
		return
	}
	detail, found, err := s.svc.Locate(r.Context(), lat, lon)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	result := viewer.SearchResult{
		Place: domain.GeocodingResult{Lat: lat, Lon: lon},
		Found: found,
	}
	if found {
		result.Detail = &detail
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	summary, err := s.svc.Summary()
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

// handleExport renders the workbook in full before writing the response.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.CheckReadiness(r.Context()); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := s.svc.Export(&buf); err != nil {
		if errors.Is(err, viewer.ErrNotReady) {
			s.writeServiceError(w, err)
			return
		}
		s.logger.Error("export workbook failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="county-factors.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, viewer.ErrNotReady):
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, viewer.ErrSearchDisabled):
		s.writeError(w, http.StatusNotImplemented, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writePanel(w http.ResponseWriter, detail domain.Detail) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(detail.HTML()))
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// writeJSON encodes v before writing the status line. Encode failures are
// logged and answered with 500.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		s.logger.Error("encode response failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"encode response"}` + "\n"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
