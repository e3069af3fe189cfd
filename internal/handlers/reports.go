package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/apperror"
	"qrattendance/internal/ids"
	"qrattendance/internal/middleware"
	"qrattendance/internal/service"
)

type dateRangeRequest struct {
	StartDate *string `json:"start_date" form:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate   *string `json:"end_date" form:"end_date" binding:"required,datetime=2006-01-02"`
}

func (r dateRangeRequest) dateRange() (service.DateRange, error) {
	fields := map[string][]string{}
	out := service.DateRange{
		StartDate: parseDate(fields, "start_date", r.StartDate),
		EndDate:   parseDate(fields, "end_date", r.EndDate),
	}
	return out, fieldsError(fields)
}

func (h HandlerSet) AttendanceSummary(c *gin.Context) {
	var req dateRangeRequest
	if !bindQuery(c, &req) {
		return
	}
	r, err := req.dateRange()
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	rows, err := h.Reports.Summary(c.Request.Context(), middleware.Authorization(c), r)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (h HandlerSet) RequestExport(c *gin.Context) {
	var req dateRangeRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := req.dateRange()
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	export, err := h.Reports.RequestExport(c.Request.Context(), middleware.Authorization(c), r)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"message": middleware.Message(c, "report.export_queued"),
		"data":    export,
	})
}

func (h HandlerSet) ShowExport(c *gin.Context) {
	id := c.Param("id")
	if !ids.Valid(id) {
		middleware.AbortWithError(c, apperror.NotFound("report.not_found"))
		return
	}

	export, err := h.Reports.Export(c.Request.Context(), middleware.Authorization(c), id)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": export})
}
