package httpadapter

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/mux"

	"github.com/couchcryptid/incident-map/internal/cluster"
	"github.com/couchcryptid/incident-map/internal/domain"
	"github.com/couchcryptid/incident-map/internal/session"
)

const (
	adminTokenHeader = "X-Admin-Token"
	maxBodyBytes     = 1 << 20
	maxZoom          = 24
)

type dateRangeRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type categoryRequest struct {
	Enabled *bool `json:"enabled"`
}

type shapeRequest struct {
	Type      string       `json:"type"`
	SouthWest *domain.Geo  `json:"south_west"`
	NorthEast *domain.Geo  `json:"north_east"`
	Vertices  []domain.Geo `json:"vertices"`
}

type geocodeRequest struct {
	Address string `json:"address"`
}

type markersResponse struct {
	Zoom     *int              `json:"zoom,omitempty"`
	Visible  int               `json:"visible"`
	Clusters []cluster.Cluster `json:"clusters"`
	Markers  []domain.Marker   `json:"markers"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.respondSnapshot(w, r)
}

func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	admin := s.isAdmin(r)

	raw := r.URL.Query().Get("zoom")
	if raw == "" {
		snap, err := s.session.Snapshot(r.Context())
		if err != nil {
			s.writeSessionError(w, err)
			return
		}
		sharedobs.WriteJSON(w, http.StatusOK, markersResponse{
			Visible:  snap.Visible,
			Clusters: []cluster.Cluster{},
			Markers:  redact(snap.Markers, admin),
		})
		return
	}

	zoom, err := strconv.Atoi(raw)
	if err != nil || zoom < 0 || zoom > maxZoom {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("zoom must be an integer between 0 and %d", maxZoom))
		return
	}
	clusters, singles := s.clusters.Clusters(zoom)
	visible := len(singles)
	for _, c := range clusters {
		visible += c.Count
	}
	if clusters == nil {
		clusters = []cluster.Cluster{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, markersResponse{
		Zoom:     &zoom,
		Visible:  visible,
		Clusters: clusters,
		Markers:  redact(singles, admin),
	})
}

func (s *Server) handleSetDates(w http.ResponseWriter, r *http.Request) {
	var req dateRangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, err := parseOptionalDate(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start: "+err.Error())
		return
	}
	end, err := parseOptionalDate(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end: "+err.Error())
		return
	}
	if err := s.session.SetDateRange(r.Context(), domain.DateRange{Start: start, End: end}); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.respondSnapshot(w, r)
}

func (s *Server) handleResetDates(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ResetDates(r.Context()); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.respondSnapshot(w, r)
}

func (s *Server) handleSetCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	if err := s.session.SetCategory(r.Context(), mux.Vars(r)["key"], *req.Enabled); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.respondSnapshot(w, r)
}

func (s *Server) handleSetShape(w http.ResponseWriter, r *http.Request) {
	var req shapeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var err error
	switch req.Type {
	case "rectangle":
		if req.SouthWest == nil || req.NorthEast == nil {
			writeError(w, http.StatusBadRequest, "rectangle requires south_west and north_east")
			return
		}
		err = s.session.DrawRectangle(r.Context(), domain.Rectangle{SouthWest: *req.SouthWest, NorthEast: *req.NorthEast})
	case "polygon":
		err = s.session.DrawPolygon(r.Context(), req.Vertices)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown shape type %q", req.Type))
		return
	}
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.respondSnapshot(w, r)
}

func (s *Server) handleClearShape(w http.ResponseWriter, r *http.Request) {
	if err := s.session.ClearShape(r.Context()); err != nil {
		s.writeSessionError(w, err)
		return
	}
	s.respondSnapshot(w, r)
}

func (s *Server) handleGeocode(w http.ResponseWriter, r *http.Request) {
	var req geocodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.session.Geocode(r.Context(), req.Address)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	status := http.StatusOK
	switch out.Status {
	case domain.GeocodeZeroResults:
		status = http.StatusNotFound
	case domain.GeocodeFailed:
		status = http.StatusBadGateway
	}
	sharedobs.WriteJSON(w, status, out)
}

func (s *Server) handleLocate(w http.ResponseWriter, r *http.Request) {
	var pos domain.Geo
	if err := decodeJSON(r, &pos); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !pos.Valid() {
		writeError(w, http.StatusBadRequest, "coordinates out of range")
		return
	}
	out, err := s.session.Locate(r.Context(), pos)
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecenter(w http.ResponseWriter, r *http.Request) {
	view, err := s.session.Recenter(r.Context())
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, view)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get(adminTokenHeader) != "" && !s.isAdmin(r) {
		writeError(w, http.StatusForbidden, "invalid admin token")
		return
	}
	file, err := s.session.Export(r.Context(), s.isAdmin(r))
	if err != nil {
		s.writeSessionError(w, err)
		return
	}

	w.Header().Set("Content-Type", file.ContentType+"; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.WriteString(w, file.Body); err != nil {
		s.logger.Warn("write export", "error", err)
	}
}

func (s *Server) respondSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.Snapshot(r.Context())
	if err != nil {
		s.writeSessionError(w, err)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, snap)
}

func (s *Server) isAdmin(r *http.Request) bool {
	if s.adminToken == "" {
		return false
	}
	got := r.Header.Get(adminTokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.adminToken)) == 1
}

func (s *Server) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownCategory):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrSessionClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("session request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// redact strips contact details unless the caller is an admin.
func redact(markers []domain.Marker, admin bool) []domain.Marker {
	out := make([]domain.Marker, len(markers))
	copy(out, markers)
	if !admin {
		for i := range out {
			out[i].Contact = domain.Contact{}
		}
	}
	return out
}

func parseOptionalDate(s string) (t time.Time, err error) {
	if s == "" {
		return t, nil
	}
	return domain.ParseDate(s)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
