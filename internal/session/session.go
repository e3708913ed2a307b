// Package session owns the state of one map view: the loaded markers, the
// filter inputs, the visible subset and the map center. All mutations are
// applied one at a time by the Run loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/incident-map/internal/domain"
	"github.com/couchcryptid/incident-map/internal/observability"
)

// ErrSessionClosed is returned by operations submitted after Run has exited.
var ErrSessionClosed = errors.New("session closed")

// ErrNotReady is returned by CheckReadiness until markers have been loaded.
var ErrNotReady = errors.New("markers not loaded")

// ErrGeocodingDisabled is reported in a failed outcome when the session has
// no geocoder.
var ErrGeocodingDisabled = errors.New("geocoding disabled")

// Renderer draws the visible subset. It is rebuilt after every recompute.
type Renderer interface {
	Rebuild(visible []domain.Marker)
}

// Filter trigger labels.
const (
	triggerLoad     = "load"
	triggerDates    = "dates"
	triggerReset    = "reset"
	triggerCategory = "category"
	triggerShape    = "shape"
)

// Options configures a Session.
type Options struct {
	Schema        domain.Schema
	InitialCenter domain.Geo
	Renderer      Renderer
	// Geocoder may be nil, in which case address search fails and a located
	// center is left unlabelled.
	Geocoder domain.Geocoder
	// Logger defaults to slog.Default when nil.
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

type event struct {
	apply func()
	done  chan struct{}
}

// Session is a single map view. Create it with New and start Run before
// calling any other method.
type Session struct {
	id       string
	schema   domain.Schema
	geocoder domain.Geocoder
	renderer Renderer
	logger   *slog.Logger
	metrics  *observability.Metrics

	events chan event
	done   chan struct{}

	// Owned by the Run loop.
	store   *domain.MarkerStore
	filter  domain.FilterState
	view    View
	initial domain.Geo
	seq     uint64
	ready   bool
}

// New creates a session with no markers. All categories start enabled.
func New(opts Options) *Session {
	renderer := opts.Renderer
	if renderer == nil {
		renderer = nopRenderer{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		schema:   opts.Schema,
		geocoder: opts.Geocoder,
		renderer: renderer,
		logger:   logger.With("session_id", id),
		metrics:  opts.Metrics,
		events:   make(chan event),
		done:     make(chan struct{}),
		store:    domain.NewMarkerStore(),
		filter:   domain.FilterState{Categories: opts.Schema.AllCategories()},
		view:     View{Center: opts.InitialCenter},
		initial:  opts.InitialCenter,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Schema returns the deployment schema the session was created with.
func (s *Session) Schema() domain.Schema {
	return s.schema
}

// Run applies submitted events until ctx is cancelled. Operations submitted
// afterwards fail with ErrSessionClosed.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	s.logger.Info("session started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session stopped")
			return nil
		case ev := <-s.events:
			ev.apply()
			close(ev.done)
		}
	}
}

// do runs fn on the loop and waits for it. Once the loop has accepted an
// event it always completes it, so only submission can be abandoned.
func (s *Session) do(ctx context.Context, fn func()) error {
	ev := event{apply: fn, done: make(chan struct{})}
	select {
	case s.events <- ev:
	case <-s.done:
		return ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-ev.done
	return nil
}

// Initialize loads the session's markers. Every marker becomes visible, the
// date range becomes [earliest report, now) and the fit-to-reports bounds are
// derived from the marker positions.
func (s *Session) Initialize(ctx context.Context, markers []domain.Marker) error {
	return s.do(ctx, func() {
		s.store.Initialize(markers)
		all := s.store.All()

		s.filter.MinDate = domain.MinDate(all)
		s.filter.ResetDates()
		if bounds, ok := domain.BoundsOf(all); ok {
			s.view.Bounds = &bounds
		} else {
			s.view.Bounds = nil
		}
		s.ready = true

		s.metrics.TotalMarkers.Set(float64(len(all)))
		s.logger.Info("markers initialized",
			"markers", len(all),
			"min_date", s.filter.MinDate,
		)
		s.recompute(triggerLoad)
	})
}

// SetDateRange replaces the date filter. A range whose start is after its end
// yields an empty visible set.
func (s *Session) SetDateRange(ctx context.Context, r domain.DateRange) error {
	return s.do(ctx, func() {
		s.filter.Dates = r
		s.recompute(triggerDates)
	})
}

// ResetDates restores the date range to [earliest report, now).
func (s *Session) ResetDates(ctx context.Context) error {
	return s.do(ctx, func() {
		s.filter.ResetDates()
		s.recompute(triggerReset)
	})
}

// SetCategory toggles one category checkbox.
func (s *Session) SetCategory(ctx context.Context, key string, enabled bool) error {
	if !s.schema.HasCategory(key) {
		return fmt.Errorf("set category %q: %w", key, domain.ErrUnknownCategory)
	}
	return s.do(ctx, func() {
		s.filter.Categories = s.filter.Categories.Clone()
		s.filter.Categories[key] = enabled
		s.recompute(triggerCategory)
	})
}

// DrawRectangle replaces any drawn shape with r.
func (s *Session) DrawRectangle(ctx context.Context, r domain.Rectangle) error {
	return s.setShape(ctx, r)
}

// DrawPolygon replaces any drawn shape with the polygon through vertices.
func (s *Session) DrawPolygon(ctx context.Context, vertices []domain.Geo) error {
	return s.setShape(ctx, domain.NewPolygon(append([]domain.Geo(nil), vertices...)))
}

// ClearShape removes the drawn shape.
func (s *Session) ClearShape(ctx context.Context) error {
	return s.setShape(ctx, nil)
}

func (s *Session) setShape(ctx context.Context, shape domain.Selector) error {
	return s.do(ctx, func() {
		s.filter.Spatial = shape
		s.recompute(triggerShape)
	})
}

// recompute derives the visible subset from the current filter state and
// rebuilds the renderer. Runs on the loop.
func (s *Session) recompute(trigger string) {
	start := time.Now()

	visible := domain.Recompute(s.store.All(), s.filter)
	if err := s.store.SetVisible(visible); err != nil {
		s.logger.Error("set visible markers", "error", err, "trigger", trigger)
		return
	}
	s.renderer.Rebuild(s.store.Visible())

	s.metrics.FilterRecomputes.WithLabelValues(trigger).Inc()
	s.metrics.FilterDuration.Observe(time.Since(start).Seconds())
	s.metrics.VisibleMarkers.Set(float64(len(visible)))
	s.logger.Debug("filters applied",
		"trigger", trigger,
		"visible", len(visible),
		"total", s.store.Len(),
	)
}

// Snapshot returns a copy of the session state.
func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func() {
		snap = Snapshot{
			ID:      s.id,
			Schema:  s.schema,
			Filter:  newFilterView(s.filter),
			View:    s.view.clone(),
			Total:   s.store.Len(),
			Visible: len(s.store.Visible()),
			Markers: append([]domain.Marker(nil), s.store.Visible()...),
		}
	})
	return snap, err
}

// Export formats the visible markers as CSV. Contact columns are included
// only for admins.
func (s *Session) Export(ctx context.Context, includeAdmin bool) (domain.ExportFile, error) {
	var file domain.ExportFile
	err := s.do(ctx, func() {
		file = domain.Export(s.schema, s.store.Visible(), includeAdmin)
	})
	if err != nil {
		return domain.ExportFile{}, err
	}

	audience := "public"
	if includeAdmin {
		audience = "admin"
	}
	s.metrics.Exports.WithLabelValues(audience).Inc()
	s.metrics.ExportRows.Observe(float64(file.Rows))
	s.logger.Info("reports exported", "audience", audience, "rows", file.Rows, "filename", file.Filename)
	return file, nil
}

// Recenter moves the map back to the fit-to-reports bounds, or to the initial
// center when no markers are loaded.
func (s *Session) Recenter(ctx context.Context) (View, error) {
	var v View
	err := s.do(ctx, func() {
		s.seq++
		if s.view.Bounds != nil {
			s.view.Center = s.view.Bounds.Center()
		} else {
			s.view.Center = s.initial
		}
		s.view.Label = ""
		v = s.view.clone()
	})
	return v, err
}

// CheckReadiness reports whether markers have been loaded.
func (s *Session) CheckReadiness(ctx context.Context) error {
	var ready bool
	if err := s.do(ctx, func() { ready = s.ready }); err != nil {
		return err
	}
	if !ready {
		return ErrNotReady
	}
	return nil
}

type nopRenderer struct{}

func (nopRenderer) Rebuild([]domain.Marker) {}
