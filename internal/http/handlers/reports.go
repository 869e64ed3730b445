// Report HTTP handlers.
//
//   - POST   /reports                     (submit)
//   - GET    /reports                     (list, paginated, ETag support)
//   - GET    /reports/search              (keyword search)
//   - GET    /reports/{token}             (resolve + fetch)
//   - POST   /reports/{token}/status      (workflow stage)
//   - POST   /reports/{token}/moderation  (moderation decision)
//   - DELETE /reports/{token}
//   - GET    /analytics                   (dashboard counters)
//
// {token} is either a display code ("EO4475") or a numeric id; a display
// code match always wins over an id.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/civic-report-backend/internal/domain"
	"github.com/tbourn/civic-report-backend/internal/http/middleware"
	"github.com/tbourn/civic-report-backend/internal/repo"
	"github.com/tbourn/civic-report-backend/internal/services"
	"github.com/tbourn/civic-report-backend/internal/utils"
)

// CreateReportRequest is the JSON payload for submitting a report.
type CreateReportRequest struct {
	// UserID is used only when the X-User-ID header is absent.
	UserID       string   `json:"user_id,omitempty" example:"citizen-42"`
	DepartmentID uint     `json:"department_id" binding:"required" example:"1"`
	BarangayID   *uint    `json:"barangay_id,omitempty" example:"8"`
	Title        string   `json:"title" binding:"required" example:"Overflowing bins"`
	Body         string   `json:"body" binding:"required" example:"Bins on Elm Street have not been emptied for a week"`
	Latitude     *float64 `json:"latitude,omitempty" example:"37.9715"`
	Longitude    *float64 `json:"longitude,omitempty" example:"23.7257"`
	Priority     string   `json:"priority,omitempty" example:"medium"`
}

// SetStatusRequest names the target workflow stage in plain words.
type SetStatusRequest struct {
	Status string `json:"status" binding:"required" example:"in progress"`
}

// SetModerationRequest is a moderation decision.
type SetModerationRequest struct {
	Status string  `json:"status" binding:"required" example:"rejected"`
	Reason *string `json:"reason,omitempty" example:"duplicate of EO4475"`
}

// ListReportsResponse wraps a page of reports.
type ListReportsResponse struct {
	Reports    []domain.Report `json:"reports"`
	Pagination Pagination      `json:"pagination"`
}

// SearchReportsResponse carries ranked search hits.
// DeleteReportResponse confirms a deletion.
type DeleteReportResponse struct {
	ReportIdentity string `json:"report_identity"`
	Deleted        bool   `json:"deleted"`
}

type SearchReportsResponse struct {
	Query   string               `json:"query"`
	Results []services.SearchHit `json:"results"`
}

// CreateReport godoc
// @ID          createReport
// @Summary     Submit a report
// @Description Creates a report and assigns it a display code from its department.
// @Tags        Reports
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "Reporting citizen"  example(citizen-42)
// @Param       body       body    handlers.CreateReportRequest  true  "Report"
// @Success     201  {object}  domain.Report
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse  "Department not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Display code collision"
// @Failure     503  {object}  handlers.ErrorResponse  "Store unavailable"
// @Router      /reports [post]
func (h *Handlers) CreateReport(c *gin.Context) {
	var req CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	r, err := h.reports.Create(c.Request.Context(), services.CreateReportInput{
		UserID:       actorUserID(c, req.UserID),
		DepartmentID: req.DepartmentID,
		BarangayID:   req.BarangayID,
		Title:        req.Title,
		Body:         req.Body,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Priority:     req.Priority,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	c.Header("Location", c.FullPath()+"/"+r.Code)
	ok(c, http.StatusCreated, r)
}

// reportFilter reads the department_id, moderation and status filters.
func reportFilter(c *gin.Context) (repo.ReportFilter, string, bool) {
	var f repo.ReportFilter
	dept, valid := optionalUint(c, "department_id")
	if !valid {
		return f, "department_id must be a positive integer", false
	}
	f.DepartmentID = dept
	brgy, valid := optionalUint(c, "barangay_id")
	if !valid {
		return f, "barangay_id must be a positive integer", false
	}
	f.BarangayID = brgy
	if m := strings.TrimSpace(c.Query("moderation")); m != "" {
		ms, ok := domain.ParseModeration(m)
		if !ok {
			return f, "moderation must be pending, approved or rejected", false
		}
		f.Moderation = &ms
	}
	if s := strings.TrimSpace(c.Query("status")); s != "" {
		ws, ok := domain.NormalizeWorkflow(s)
		if !ok {
			return f, "unrecognized status", false
		}
		f.Workflow = &ws
	}
	return f, "", true
}

// filterKey is a compact, stable rendering of f for ETags.
func filterKey(f repo.ReportFilter) string {
	var b strings.Builder
	if f.DepartmentID != nil {
		b.WriteString("d")
		b.WriteString(strconv.FormatUint(uint64(*f.DepartmentID), 10))
	}
	if f.BarangayID != nil {
		b.WriteString("b")
		b.WriteString(strconv.FormatUint(uint64(*f.BarangayID), 10))
	}
	if f.Moderation != nil {
		b.WriteString("m")
		b.WriteString(string(*f.Moderation))
	}
	if f.Workflow != nil {
		b.WriteString("w")
		b.WriteString(string(*f.Workflow))
	}
	if b.Len() == 0 {
		return "all"
	}
	return b.String()
}

// ListReports godoc
// @ID          listReports
// @Summary     List reports (paginated)
// @Description Newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Reports
// @Produce     json
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
// @Param       department_id  query   int     false "Department filter"  minimum(1)
// @Param       barangay_id    query   int     false "Barangay filter"    minimum(1)
// @Param       moderation     query   string  false "pending|approved|rejected"
// @Param       status         query   string  false "Workflow stage (synonyms accepted)"
// @Param       page           query   int     false "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListReportsResponse
// @Header      200  {string} ETag "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /reports [get]
func (h *Handlers) ListReports(c *gin.Context) {
	ctx := c.Request.Context()
	f, msg, valid := reportFilter(c)
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, msg)
		return
	}
	page, pageSize := clampPagination(c, 20)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.reports.Stats(ctx, f); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		if notModified(c, "reports:%s:%d:%d:%d:%d", filterKey(f), page, pageSize, count, ts) {
			return
		}
	}

	items, total, err := h.reports.List(ctx, f, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListReportsResponse{Reports: items, Pagination: newPagination(page, pageSize, total)})
}

// SearchReports godoc
// @ID          searchReports
// @Summary     Keyword search over reports
// @Tags        Reports
// @Produce     json
// @Param       q              query  string  true   "Search text"
// @Param       department_id  query  int     false  "Restrict to a department"
// @Param       limit          query  int     false  "Max results"  minimum(1) maximum(50) default(10)
// @Success     200  {object} handlers.SearchReportsResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Router      /reports/search [get]
func (h *Handlers) SearchReports(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "q is required")
		return
	}
	dept, valid := optionalUint(c, "department_id")
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "department_id must be a positive integer")
		return
	}
	var group uint
	if dept != nil {
		group = *dept
	}
	limit := utils.Clamp(utils.AtoiDefault(c.Query("limit"), 10), 1, 50)

	hits, err := h.reports.Search(c.Request.Context(), q, group, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SearchReportsResponse{Query: q, Results: hits})
}

// GetReport godoc
// @ID          getReport
// @Summary     Fetch a report by display code or id
// @Tags        Reports
// @Produce     json
// @Param       token  path  string  true  "Display code or numeric id"  example(EO4475)
// @Success     200  {object} domain.Report
// @Failure     404  {object} handlers.ErrorResponse "Report not found"
// @Router      /reports/{token} [get]
func (h *Handlers) GetReport(c *gin.Context) {
	r, err := h.reports.Get(c.Request.Context(), c.Param("token"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// SetReportStatus godoc
// @ID          setReportStatus
// @Summary     Move a report's workflow stage
// @Description Accepts synonyms ("ongoing", "in progress", "completed"). Moves are forward-only except a reset to pending.
// @Tags        Reports
// @Accept      json
// @Produce     json
// @Param       token  path  string  true  "Display code or numeric id"
// @Param       body   body  handlers.SetStatusRequest  true  "Target stage"
// @Success     200  {object} domain.Report
// @Failure     400  {object} handlers.ErrorResponse "Unrecognized status"
// @Failure     404  {object} handlers.ErrorResponse "Report not found"
// @Failure     409  {object} handlers.ErrorResponse "Backward transition"
// @Router      /reports/{token}/status [post]
func (h *Handlers) SetReportStatus(c *gin.Context) {
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status is required")
		return
	}
	r, err := h.reports.SetWorkflow(c.Request.Context(), c.Param("token"), req.Status)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// SetReportModeration godoc
// @ID          setReportModeration
// @Summary     Approve or reject a report
// @Description One-shot: once approved or rejected, further decisions are rejected with 409.
// @Tags        Reports
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  false "Reviewer"
// @Param       token      path    string  true  "Display code or numeric id"
// @Param       body       body    handlers.SetModerationRequest  true  "Decision"
// @Success     200  {object} domain.Report
// @Failure     400  {object} handlers.ErrorResponse "Invalid moderation value"
// @Failure     404  {object} handlers.ErrorResponse "Report not found"
// @Failure     409  {object} handlers.ErrorResponse "Already moderated"
// @Router      /reports/{token}/moderation [post]
func (h *Handlers) SetReportModeration(c *gin.Context) {
	var req SetModerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status is required")
		return
	}
	reviewer := middleware.ActorFrom(c).UserID
	r, err := h.reports.SetModeration(c.Request.Context(), c.Param("token"), req.Status, reviewer, req.Reason)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// DeleteReport godoc
// @ID          deleteReport
// @Summary     Delete a report
// @Tags        Reports
// @Param       token  path  string  true  "Display code or numeric id"
// @Produce     json
// @Success     200  {object} handlers.DeleteReportResponse
// @Failure     404  {object} handlers.ErrorResponse "Report not found"
// @Router      /reports/{token} [delete]
func (h *Handlers) DeleteReport(c *gin.Context) {
	token := c.Param("token")
	if err := h.reports.Delete(c.Request.Context(), token); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, DeleteReportResponse{ReportIdentity: token, Deleted: true})
}

// GetAnalytics godoc
// @ID          getAnalytics
// @Summary     Dashboard counters
// @Description Staff bound to a department default to it; department_id overrides.
// @Tags        Analytics
// @Produce     json
// @Param       department_id  query  int  false  "Department scope"
// @Success     200  {object} domain.Analytics
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Router      /analytics [get]
func (h *Handlers) GetAnalytics(c *gin.Context) {
	dept, valid := optionalUint(c, "department_id")
	if !valid {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "department_id must be a positive integer")
		return
	}
	if dept == nil {
		if a := middleware.ActorFrom(c); a.Role.IsStaff() {
			dept = a.DepartmentID
		}
	}
	out, err := h.reports.Analytics(c.Request.Context(), dept)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, out)
}
