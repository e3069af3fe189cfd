package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/apperror"
	"qrattendance/internal/attendance"
	"qrattendance/internal/middleware"
	"qrattendance/internal/models"
)

type checkInRequest struct {
	LocationID *int64   `json:"location_id" binding:"required,gt=0"`
	Latitude   *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude  *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
	Notes      *string  `json:"notes" binding:"omitempty,max=1000"`
}

type checkOutRequest struct {
	Latitude  *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
	Notes     *string  `json:"notes" binding:"omitempty,max=1000"`
}

type historyQuery struct {
	LocationID *int64  `form:"location_id" binding:"omitempty,gt=0"`
	StartDate  *string `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate    *string `form:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

func currentEmployee(c *gin.Context) (models.Employee, bool) {
	employee, ok := middleware.CurrentEmployee(c)
	if !ok {
		middleware.AbortWithError(c, apperror.ErrUnauthenticated)
	}
	return employee, ok
}

func (h HandlerSet) AttendanceHistory(c *gin.Context) {
	employee, ok := currentEmployee(c)
	if !ok {
		return
	}
	var q historyQuery
	if !bindQuery(c, &q) {
		return
	}
	fields := map[string][]string{}
	filter := attendance.HistoryFilter{
		LocationID: q.LocationID,
		StartDate:  parseDate(fields, "start_date", q.StartDate),
		EndDate:    parseDate(fields, "end_date", q.EndDate),
	}
	if err := fieldsError(fields); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	list, err := h.CheckIns.History(c.Request.Context(), employee, filter)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h HandlerSet) CurrentAttendance(c *gin.Context) {
	employee, ok := currentEmployee(c)
	if !ok {
		return
	}

	open, err := h.CheckIns.Current(c.Request.Context(), employee)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if open == nil {
		c.JSON(http.StatusOK, gin.H{"attendance": nil})
		return
	}
	c.JSON(http.StatusOK, open)
}

func (h HandlerSet) CheckIn(c *gin.Context) {
	employee, ok := currentEmployee(c)
	if !ok {
		return
	}
	var req checkInRequest
	if !bindJSON(c, &req) {
		return
	}

	record, err := h.CheckIns.CheckIn(c.Request.Context(), employee, attendance.CheckInInput{
		LocationID: *req.LocationID,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Notes:      req.Notes,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h HandlerSet) CheckOut(c *gin.Context) {
	employee, ok := currentEmployee(c)
	if !ok {
		return
	}
	var req checkOutRequest
	if !bindJSON(c, &req) {
		return
	}

	record, err := h.CheckIns.CheckOut(c.Request.Context(), employee, attendance.CheckOutInput{
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Notes:     req.Notes,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h HandlerSet) AvailableLocations(c *gin.Context) {
	employee, ok := currentEmployee(c)
	if !ok {
		return
	}

	list, err := h.Employees.AvailableLocations(c.Request.Context(), employee)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}
