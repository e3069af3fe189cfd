package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/middleware"
	"qrattendance/internal/service"
)

type attendanceRequest struct {
	EmployeeID        *int64   `json:"employee_id" binding:"omitempty,gt=0"`
	LocationID        *int64   `json:"location_id" binding:"omitempty,gt=0"`
	CheckIn           *string  `json:"check_in"`
	CheckOut          *string  `json:"check_out"`
	CheckInLatitude   *float64 `json:"check_in_latitude" binding:"omitempty,gte=-90,lte=90"`
	CheckInLongitude  *float64 `json:"check_in_longitude" binding:"omitempty,gte=-180,lte=180"`
	CheckOutLatitude  *float64 `json:"check_out_latitude" binding:"omitempty,gte=-90,lte=90"`
	CheckOutLongitude *float64 `json:"check_out_longitude" binding:"omitempty,gte=-180,lte=180"`
	Notes             *string  `json:"notes" binding:"omitempty,max=1000"`
}

func (r attendanceRequest) input() (service.AttendanceInput, error) {
	fields := map[string][]string{}
	checkIn := parseTimestamp(fields, "check_in", r.CheckIn)
	checkOut := parseTimestamp(fields, "check_out", r.CheckOut)
	if err := fieldsError(fields); err != nil {
		return service.AttendanceInput{}, err
	}
	return service.AttendanceInput{
		EmployeeID:        r.EmployeeID,
		LocationID:        r.LocationID,
		CheckIn:           checkIn,
		CheckOut:          checkOut,
		CheckInLatitude:   r.CheckInLatitude,
		CheckInLongitude:  r.CheckInLongitude,
		CheckOutLatitude:  r.CheckOutLatitude,
		CheckOutLongitude: r.CheckOutLongitude,
		Notes:             r.Notes,
	}, nil
}

type attendanceQuery struct {
	EmployeeID *int64  `form:"employee_id" binding:"omitempty,gt=0"`
	LocationID *int64  `form:"location_id" binding:"omitempty,gt=0"`
	StartDate  *string `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate    *string `form:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

func (h HandlerSet) ListAttendances(c *gin.Context) {
	var q attendanceQuery
	if !bindQuery(c, &q) {
		return
	}
	fields := map[string][]string{}
	in := service.AttendanceListInput{
		EmployeeID: q.EmployeeID,
		LocationID: q.LocationID,
		StartDate:  parseDate(fields, "start_date", q.StartDate),
		EndDate:    parseDate(fields, "end_date", q.EndDate),
	}
	if err := fieldsError(fields); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	list, err := h.Attendances.List(c.Request.Context(), middleware.Authorization(c), in)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h HandlerSet) CreateAttendance(c *gin.Context) {
	var req attendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	record, err := h.Attendances.Create(c.Request.Context(), middleware.Authorization(c), in)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (h HandlerSet) ShowAttendance(c *gin.Context) {
	id, ok := pathID(c, "id", "attendance.not_found")
	if !ok {
		return
	}

	record, err := h.Attendances.Get(c.Request.Context(), middleware.Authorization(c), id)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h HandlerSet) UpdateAttendance(c *gin.Context) {
	id, ok := pathID(c, "id", "attendance.not_found")
	if !ok {
		return
	}
	var req attendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	record, err := h.Attendances.Update(c.Request.Context(), middleware.Authorization(c), id, in)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h HandlerSet) DeleteAttendance(c *gin.Context) {
	id, ok := pathID(c, "id", "attendance.not_found")
	if !ok {
		return
	}

	if err := h.Attendances.Delete(c.Request.Context(), middleware.Authorization(c), id); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": middleware.Message(c, "attendance.deleted")})
}
