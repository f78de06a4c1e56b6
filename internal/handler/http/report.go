package http

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/attendance-engine/internal/handler/http/response"
)

type ReportHandler interface {
	// Build handles POST /reports
	Build(w http.ResponseWriter, r *http.Request)
}

type reportHandlerImpl struct {
	reportService report.ReportService
}

func NewReportHandler(reportService report.ReportService) ReportHandler {
	return &reportHandlerImpl{
		reportService: reportService,
	}
}

// Build handles POST /reports. Employees without the admin role always get a
// report scoped to themselves.
func (h *reportHandlerImpl) Build(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req report.ReportRequest
	if !decodeOptionalJSON(w, r, &req) {
		return
	}

	if !id.IsAdmin() {
		if req.EmployeeID != nil && *req.EmployeeID != id.EmployeeID {
			response.Forbidden(w, "You may only report on your own attendance")
			return
		}
		own := id.EmployeeID
		req.EmployeeID = &own
	}

	result, err := h.reportService.BuildReport(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
