package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/validator"
)

const maxBodyBytes = 64 << 10

type AttendanceHandler interface {
	ClockIn(w http.ResponseWriter, r *http.Request)
	ClockOut(w http.ResponseWriter, r *http.Request)
	Status(w http.ResponseWriter, r *http.Request)
	Records(w http.ResponseWriter, r *http.Request)
	Summary(w http.ResponseWriter, r *http.Request)
	Buckets(w http.ResponseWriter, r *http.Request)
	StreamToken(w http.ResponseWriter, r *http.Request)
	Stream(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	attendanceService attendance.AttendanceService
	aggregator        report.Aggregator
	jwtService        jwt.Service
	hub               *sse.Hub
	keepalive         time.Duration
}

func NewAttendanceHandler(
	attendanceService attendance.AttendanceService,
	aggregator report.Aggregator,
	jwtService jwt.Service,
	hub *sse.Hub,
) AttendanceHandler {
	return &attendanceHandlerImpl{
		attendanceService: attendanceService,
		aggregator:        aggregator,
		jwtService:        jwtService,
		hub:               hub,
		keepalive:         30 * time.Second,
	}
}

type clockRequest struct {
	EmployeeID string `json:"employee_id"`
	Location   string `json:"location"`
	Notes      string `json:"notes"`
}

type streamTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// ClockIn handles POST /attendance/clock-in
func (h *attendanceHandlerImpl) ClockIn(w http.ResponseWriter, r *http.Request) {
	var body clockRequest
	if !decodeOptionalJSON(w, r, &body) {
		return
	}

	employeeID, ok := resolveEmployee(w, r, body.EmployeeID)
	if !ok {
		return
	}

	rec, err := h.attendanceService.ClockIn(r.Context(), attendance.ClockInRequest{
		EmployeeID: employeeID,
		Location:   body.Location,
		Notes:      body.Notes,
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Clock in successful", attendance.ToResponse(rec))
}

// ClockOut handles POST /attendance/clock-out
func (h *attendanceHandlerImpl) ClockOut(w http.ResponseWriter, r *http.Request) {
	var body clockRequest
	if !decodeOptionalJSON(w, r, &body) {
		return
	}

	employeeID, ok := resolveEmployee(w, r, body.EmployeeID)
	if !ok {
		return
	}

	rec, err := h.attendanceService.ClockOut(r.Context(), attendance.ClockOutRequest{
		EmployeeID: employeeID,
		Location:   body.Location,
		Notes:      body.Notes,
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Clock out successful", attendance.ToResponse(rec))
}

// Status handles GET /attendance/status
func (h *attendanceHandlerImpl) Status(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := resolveEmployee(w, r, r.URL.Query().Get("employee_id"))
	if !ok {
		return
	}

	open, err := h.attendanceService.CurrentStatus(r.Context(), employeeID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, attendance.ToStatusResponse(employeeID, open))
}

// Records handles GET /attendance/records
func (h *attendanceHandlerImpl) Records(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	employeeID, ok := resolveEmployee(w, r, query.Get("employee_id"))
	if !ok {
		return
	}

	filter := attendance.RecordsFilter{EmployeeID: employeeID}
	if v := query.Get("start_date"); v != "" {
		filter.StartDate = &v
	}
	if v := query.Get("end_date"); v != "" {
		filter.EndDate = &v
	}

	var errs validator.ValidationErrors
	filter.Limit = intQueryParam(query.Get("limit"), "limit", &errs)
	filter.Offset = intQueryParam(query.Get("offset"), "offset", &errs)
	if len(errs) > 0 {
		response.HandleError(w, attendance.InvalidInput(errs))
		return
	}
	// Applies the default limit so the meta echoes what was served.
	if err := filter.Validate(); err != nil {
		response.HandleError(w, err)
		return
	}

	records, err := h.attendanceService.GetRecords(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	data := make([]attendance.RecordResponse, 0, len(records))
	for _, rec := range records {
		data = append(data, attendance.ToResponse(rec))
	}
	response.SuccessWithMeta(w, data, &response.Meta{
		Limit:  filter.Limit,
		Offset: filter.Offset,
		Count:  len(data),
	})
}

// Summary handles GET /attendance/summary
func (h *attendanceHandlerImpl) Summary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	employeeID, ok := resolveEmployee(w, r, query.Get("employee_id"))
	if !ok {
		return
	}

	start, end, err := parseRange(query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	stats, err := h.aggregator.Summarize(r.Context(), employeeID, start, end)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, stats.Rounded())
}

// Buckets handles GET /attendance/buckets
func (h *attendanceHandlerImpl) Buckets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	employeeID, ok := resolveEmployee(w, r, query.Get("employee_id"))
	if !ok {
		return
	}

	start, end, err := parseRange(query.Get("start_date"), query.Get("end_date"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	granularity := report.Granularity(query.Get("granularity"))
	if granularity == "" {
		granularity = report.GranularityDay
	}

	series, err := h.aggregator.SummarizeBuckets(r.Context(), employeeID, start, end, granularity)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	for i := range series {
		series[i] = series[i].Rounded()
	}
	response.Success(w, series)
}

// StreamToken generates a short-lived token for the status stream
func (h *attendanceHandlerImpl) StreamToken(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	token, expiresIn, err := h.jwtService.GenerateStreamToken(id.EmployeeID)
	if err != nil {
		slog.Error("failed to generate stream token", "employee_id", id.EmployeeID, "error", err)
		response.InternalServerError(w, "Failed to generate stream token")
		return
	}

	response.Success(w, streamTokenResponse{
		Token:     token,
		ExpiresIn: expiresIn,
	})
}

// Stream pushes the employee's status over SSE after every clock-in or
// clock-out.
func (h *attendanceHandlerImpl) Stream(w http.ResponseWriter, r *http.Request) {
	// Get token from query parameter (SSE doesn't support custom headers)
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		response.Unauthorized(w, "Missing token")
		return
	}

	employeeID, err := h.jwtService.ValidateStreamToken(tokenStr)
	if err != nil {
		response.Unauthorized(w, "Invalid token")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalServerError(w, "Streaming not supported")
		return
	}

	// Subscribe before reading the initial status so no change is missed.
	events, cleanup := h.hub.Subscribe(employeeID)
	defer cleanup()

	open, err := h.attendanceService.CurrentStatus(r.Context(), employeeID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	writeEvent(w, sse.EventStatus, attendance.ToStatusResponse(employeeID, open))
	flusher.Flush()

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			writeEvent(w, event.Event, event.Data)
			flusher.Flush()

		case <-keepalive.C:
			fmt.Fprintf(w, "event: ping\ndata: {\"timestamp\":%d}\n\n", time.Now().Unix())
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeEvent(w io.Writer, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to encode stream event", "event", event, "error", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

// resolveEmployee returns the employee a request acts on. Callers act on
// themselves; only admins may name another employee.
func resolveEmployee(w http.ResponseWriter, r *http.Request, requested string) (string, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return "", false
	}

	if requested == "" || requested == id.EmployeeID {
		return id.EmployeeID, true
	}
	if !id.IsAdmin() {
		response.Forbidden(w, "You may only access your own attendance")
		return "", false
	}
	return requested, true
}

// decodeOptionalJSON decodes a JSON body into dst. An empty body is allowed.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	slog.Debug("invalid request body", "error", err)
	response.BadRequest(w, "Invalid request body", nil)
	return false
}

func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	var errs validator.ValidationErrors

	start, ok := validator.IsValidDate(startStr)
	if !ok {
		errs = append(errs, validator.ValidationError{
			Field:   "start_date",
			Message: "start_date is required in YYYY-MM-DD format",
		})
	}
	end, ok := validator.IsValidDate(endStr)
	if !ok {
		errs = append(errs, validator.ValidationError{
			Field:   "end_date",
			Message: "end_date is required in YYYY-MM-DD format",
		})
	}

	if len(errs) > 0 {
		return time.Time{}, time.Time{}, attendance.InvalidInput(errs)
	}
	return start, end, nil
}

func intQueryParam(raw, field string, errs *validator.ValidationErrors) int {
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, validator.ValidationError{
			Field:   field,
			Message: field + " must be a number",
		})
		return 0
	}
	return v
}
