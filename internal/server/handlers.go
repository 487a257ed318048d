package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/crimson-sun/kartavya/internal/feed"
	"github.com/crimson-sun/kartavya/internal/geo"
	"github.com/crimson-sun/kartavya/internal/model"
	"github.com/crimson-sun/kartavya/internal/output/inbox"
	"github.com/crimson-sun/kartavya/internal/photo"
	"github.com/crimson-sun/kartavya/internal/pipeline"
	"github.com/crimson-sun/kartavya/internal/store"
)

// multipartOverhead is the room left for form fields beyond the photo itself.
const multipartOverhead = 1 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		s.respondErr(w, r, err)
		return
	}
	up, err := s.readPhoto(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	if up == nil {
		s.fail(w, r, http.StatusBadRequest, "photo is required")
		return
	}

	analysis, err := s.pipeline.Analyze(r.Context(), *up)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	render.JSON(w, r, analysis)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		s.respondErr(w, r, err)
		return
	}
	up, err := s.readPhoto(r)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	loc, err := parseLocation(r)
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err.Error())
		return
	}

	report, err := s.pipeline.Submit(r.Context(), pipeline.Submission{
		UserID:      r.FormValue("user_id"),
		UserName:    r.FormValue("user_name"),
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Photo:       up,
		Location:    loc,
	})
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, newReportView(report, nil))
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sortBy := q.Get("sort")
	if !feed.ValidSort(sortBy) {
		s.fail(w, r, http.StatusBadRequest, fmt.Sprintf("sort must be %q or %q", feed.SortRecent, feed.SortPopular))
		return
	}

	var filter store.Filter
	if v := q.Get("status"); v != "" {
		st, ok := model.ParseStatus(v)
		if !ok {
			s.respondErr(w, r, fmt.Errorf("%w: %q", store.ErrInvalidStatus, v))
			return
		}
		filter.Status = st
	}

	near, err := parseNear(q.Get("near"))
	if err != nil {
		s.fail(w, r, http.StatusBadRequest, err.Error())
		return
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.fail(w, r, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	reports, err := s.reports.ListReports(r.Context(), filter)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	reports = feed.Apply(reports, feed.Options{Category: q.Get("category"), Sort: sortBy})
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	render.JSON(w, r, newReportViews(reports, near))
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.reports.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	render.JSON(w, r, newReportView(report, nil))
}

func (s *Server) handleUpvote(w http.ResponseWriter, r *http.Request) {
	report, err := s.pipeline.Upvote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	render.JSON(w, r, newReportView(report, nil))
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	report, err := s.pipeline.SetStatus(r.Context(), chi.URLParam(r, "id"), model.Status(req.Status))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	render.JSON(w, r, newReportView(report, nil))
}

func (s *Server) handleUserReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.reports.ListReportsByUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	render.JSON(w, r, newReportViews(reports, nil))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.reports.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	render.JSON(w, r, u)
}

type userRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// handleSaveUser creates a user or changes its name and role. Empty fields
// keep their current values; points and report counts are never touched.
func (s *Server) handleSaveUser(w http.ResponseWriter, r *http.Request) {
	var req userRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.fail(w, r, http.StatusBadRequest, "invalid json")
		return
	}
	role := model.Role(req.Role)
	switch role {
	case "", model.RoleUser, model.RoleAdmin:
	default:
		s.fail(w, r, http.StatusBadRequest, fmt.Sprintf("role must be %q or %q", model.RoleUser, model.RoleAdmin))
		return
	}

	id := chi.URLParam(r, "id")
	u := model.User{ID: id, Name: strings.TrimSpace(req.Name), Role: role}
	existing, err := s.reports.GetUser(r.Context(), id)
	switch {
	case err == nil:
		if u.Name == "" {
			u.Name = existing.Name
		}
		if u.Role == "" {
			u.Role = existing.Role
		}
	case !errors.Is(err, store.ErrNotFound):
		s.respondErr(w, r, err)
		return
	}
	if err := s.reports.SaveUser(r.Context(), u); err != nil {
		s.respondErr(w, r, err)
		return
	}
	saved, err := s.reports.GetUser(r.Context(), id)
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	render.JSON(w, r, saved)
}

type notificationsResponse struct {
	Unread        int                  `json:"unread"`
	Notifications []inbox.Notification `json:"notifications"`
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	resp := notificationsResponse{Notifications: []inbox.Notification{}}
	if s.notifications != nil {
		id := chi.URLParam(r, "id")
		resp.Notifications = s.notifications.List(id)
		resp.Unread = s.notifications.Unread(id)
	}
	render.JSON(w, r, resp)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	if s.notifications != nil {
		s.notifications.MarkAllRead(chi.URLParam(r, "id"))
	}
	render.NoContent(w, r)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if s.notifications == nil || !s.notifications.MarkRead(chi.URLParam(r, "id"), chi.URLParam(r, "nid")) {
		s.fail(w, r, http.StatusNotFound, "notification not found")
		return
	}
	render.NoContent(w, r)
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reports.AdminStats(r.Context())
	if err != nil {
		s.respondErr(w, r, err)
		return
	}
	render.JSON(w, r, stats)
}

// parseMultipart limits the body and parses the form.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return fmt.Errorf("%w: request body exceeds %d bytes", photo.ErrTooLarge, tooBig.Limit)
		}
		return errBadRequest("expected multipart form data")
	}
	return nil
}

// readPhoto returns the "photo" form file, or nil when none was sent.
func (s *Server) readPhoto(r *http.Request) (*pipeline.Upload, error) {
	f, hdr, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errBadRequest("invalid photo upload")
	}
	defer f.Close()

	data, err := readLimited(f, s.maxUpload)
	if err != nil {
		return nil, err
	}
	// The declared type is checked against the bytes by photo.Validate.
	return &pipeline.Upload{ContentType: hdr.Header.Get("Content-Type"), Data: data}, nil
}

func readLimited(f multipart.File, max int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(f, max+1))
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if int64(len(data)) > max {
		return nil, fmt.Errorf("%w: photo exceeds %d bytes", photo.ErrTooLarge, max)
	}
	return data, nil
}

// parseLocation reads latitude/longitude/accuracy. Both coordinates must be
// present together; range checks happen in the pipeline.
func parseLocation(r *http.Request) (*model.Location, error) {
	latStr := strings.TrimSpace(r.FormValue("latitude"))
	lonStr := strings.TrimSpace(r.FormValue("longitude"))
	if latStr == "" && lonStr == "" {
		return nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, errors.New("latitude and longitude must be sent together")
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, errors.New("latitude must be a number")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, errors.New("longitude must be a number")
	}
	loc := &model.Location{Latitude: lat, Longitude: lon}
	if v := strings.TrimSpace(r.FormValue("accuracy")); v != "" {
		acc, err := strconv.ParseFloat(v, 64)
		if err != nil || acc < 0 {
			return nil, errors.New("accuracy must be a non-negative number")
		}
		loc.Accuracy = acc
	}
	return loc, nil
}

type badRequestError string

func (e badRequestError) Error() string { return string(e) }

func errBadRequest(msg string) error { return badRequestError(msg) }

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var bad badRequestError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, photo.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, pipeline.ErrInvalidSubmission),
		errors.Is(err, store.ErrInvalidStatus),
		errors.Is(err, photo.ErrNotImage),
		errors.Is(err, photo.ErrEmpty),
		errors.Is(err, geo.ErrInvalidCoordinates),
		errors.As(err, &bad):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondErr writes err as a JSON error response. Internal errors are logged and
// their details hidden from the client.
func (s *Server) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal server error"
	}
	s.fail(w, r, code, msg)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, code int, msg string) {
	render.Status(r, code)
	render.JSON(w, r, map[string]string{"error": msg})
}
