// Package pipeline runs report submissions and lifecycle changes through
// photo storage, image analysis, geocoding, persistence, and event outputs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/crimson-sun/kartavya/internal/geo"
	"github.com/crimson-sun/kartavya/internal/model"
	"github.com/crimson-sun/kartavya/internal/output"
	"github.com/crimson-sun/kartavya/internal/photo"
)

// Summary given to reports submitted without a photo.
const noPhotoSummary = "No image analysis available"

// ErrInvalidSubmission is returned when a submission is missing required fields.
var ErrInvalidSubmission = errors.New("pipeline: invalid submission")

// Analyzer turns a photo into a severity analysis. It never fails.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte) model.Analysis
}

// Geocoder resolves coordinates to an address.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (geo.Address, error)
}

// Store persists reports.
type Store interface {
	AddReport(ctx context.Context, r model.Report) (model.Report, error)
	UpdateStatus(ctx context.Context, id string, status model.Status) (model.Report, model.Status, error)
	Upvote(ctx context.Context, id string) (model.Report, error)
}

// Upload is a photo attached to a submission.
type Upload struct {
	ContentType string
	Data        []byte
}

// Submission is a citizen's new report before analysis.
type Submission struct {
	UserID      string
	UserName    string
	Title       string
	Description string
	Category    string
	Photo       *Upload
	Location    *model.Location
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPhotoStore keeps submitted photos. Without one photos are analyzed
// but not kept.
func WithPhotoStore(s photo.Store) Option {
	return func(p *Pipeline) { p.photos = s }
}

// WithGeocoder fills in addresses for submitted coordinates.
func WithGeocoder(g Geocoder) Option {
	return func(p *Pipeline) { p.geocoder = g }
}

// WithMaxPhotoSize sets the largest accepted photo in bytes.
func WithMaxPhotoSize(n int64) Option {
	return func(p *Pipeline) { p.maxPhotoSize = n }
}

// WithClock overrides the time source for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline connects the analyzer, stores, and output for report handling.
type Pipeline struct {
	store        Store
	analyzer     Analyzer
	output       output.Output
	photos       photo.Store
	geocoder     Geocoder
	maxPhotoSize int64
	now          func() time.Time
}

// New creates a Pipeline from the given components.
func New(store Store, analyzer Analyzer, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:        store,
		analyzer:     analyzer,
		output:       out,
		maxPhotoSize: photo.DefaultMaxSize,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analyze validates a photo and returns its analysis without storing anything.
func (p *Pipeline) Analyze(ctx context.Context, up Upload) (model.Analysis, error) {
	if err := p.checkPhoto(&up); err != nil {
		return model.Analysis{}, err
	}
	return p.analyzer.Analyze(ctx, up.Data), nil
}

// checkPhoto validates up and replaces its declared content type with the
// one detected from its bytes.
func (p *Pipeline) checkPhoto(up *Upload) error {
	ct, err := photo.Validate(up.ContentType, up.Data, p.maxPhotoSize)
	if err != nil {
		return err
	}
	up.ContentType = ct
	return nil
}

// Submit validates, analyzes, stores, and announces a new report.
func (p *Pipeline) Submit(ctx context.Context, sub Submission) (model.Report, error) {
	sub.Title = strings.TrimSpace(sub.Title)
	sub.UserID = strings.TrimSpace(sub.UserID)
	if sub.Title == "" {
		return model.Report{}, fmt.Errorf("%w: title is required", ErrInvalidSubmission)
	}
	if sub.UserID == "" {
		return model.Report{}, fmt.Errorf("%w: user id is required", ErrInvalidSubmission)
	}
	if sub.Location != nil {
		if err := geo.ValidateCoordinates(sub.Location.Latitude, sub.Location.Longitude); err != nil {
			return model.Report{}, err
		}
	}

	r := model.Report{
		UserID:      sub.UserID,
		UserName:    strings.TrimSpace(sub.UserName),
		Title:       sub.Title,
		Description: strings.TrimSpace(sub.Description),
		Category:    strings.TrimSpace(sub.Category),
		Severity:    model.SeverityMedium,
		Summary:     noPhotoSummary,
	}
	if r.UserName == "" {
		r.UserName = r.UserID
	}

	if sub.Photo != nil {
		up := *sub.Photo
		if err := p.checkPhoto(&up); err != nil {
			return model.Report{}, err
		}
		analysis := p.analyzer.Analyze(ctx, up.Data)
		r.Severity = analysis.Severity
		r.Confidence = analysis.ConfidenceScore
		r.Summary = analysis.Summary
		r.AnalysisError = analysis.Error

		if p.photos != nil {
			url, err := p.photos.Put(ctx, photo.NewName(up.ContentType), up.ContentType, up.Data)
			if err != nil {
				return model.Report{}, fmt.Errorf("pipeline store photo: %w", err)
			}
			r.PhotoURL = url
		}
	}

	if sub.Location != nil {
		loc := *sub.Location
		p.geocode(ctx, &loc)
		r.Location = &loc
	}

	stored, err := p.store.AddReport(ctx, r)
	if err != nil {
		if r.PhotoURL != "" {
			slog.Warn("photo stored for a report that was not saved", "photo_url", r.PhotoURL, "error", err)
		}
		return model.Report{}, fmt.Errorf("pipeline add report: %w", err)
	}

	slog.Info("report submitted",
		"report_id", stored.ID,
		"user_id", stored.UserID,
		"severity", stored.Severity,
		"confidence", stored.Confidence)
	p.emit(ctx, model.Event{
		Kind:     model.EventReportSubmitted,
		ReportID: stored.ID,
		UserID:   stored.UserID,
		Title:    stored.Title,
		Severity: stored.Severity,
		Status:   stored.Status,
	})
	return stored, nil
}

// geocode fills in the address when it is missing. Failures are logged
// and the coordinates are kept.
func (p *Pipeline) geocode(ctx context.Context, loc *model.Location) {
	if p.geocoder == nil || loc.Address != "" {
		return
	}
	addr, err := p.geocoder.Reverse(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		slog.Warn("reverse geocoding failed", "error", err,
			"lat", loc.Latitude, "lon", loc.Longitude)
		return
	}
	loc.Address = addr.Formatted
	loc.Details = addr.Details
}

// SetStatus moves a report through its lifecycle. An event is emitted
// only when the status actually changes.
func (p *Pipeline) SetStatus(ctx context.Context, id string, status model.Status) (model.Report, error) {
	r, prev, err := p.store.UpdateStatus(ctx, id, status)
	if err != nil {
		return model.Report{}, err
	}
	if prev != r.Status {
		slog.Info("report status changed", "report_id", id, "from", prev, "to", r.Status)
		p.emit(ctx, model.Event{
			Kind:     model.EventReportStatusChanged,
			ReportID: r.ID,
			UserID:   r.UserID,
			Title:    r.Title,
			Severity: r.Severity,
			Status:   r.Status,
		})
	}
	return r, nil
}

// Upvote adds a vote to a report and notifies its owner.
func (p *Pipeline) Upvote(ctx context.Context, id string) (model.Report, error) {
	r, err := p.store.Upvote(ctx, id)
	if err != nil {
		return model.Report{}, err
	}
	p.emit(ctx, model.Event{
		Kind:     model.EventReportUpvoted,
		ReportID: r.ID,
		UserID:   r.UserID,
		Title:    r.Title,
		Severity: r.Severity,
		Status:   r.Status,
	})
	return r, nil
}

// emit writes to the output. Output failures never fail the request.
func (p *Pipeline) emit(ctx context.Context, e model.Event) {
	if p.output == nil {
		return
	}
	e.Timestamp = p.now().UTC()
	if err := p.output.Write(ctx, e); err != nil {
		slog.Warn("event output failed", "kind", e.Kind, "report_id", e.ReportID, "error", err)
	}
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	if p.output == nil {
		return nil
	}
	return p.output.Close()
}
