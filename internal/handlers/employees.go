package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/middleware"
	"qrattendance/internal/models"
	"qrattendance/internal/rbac"
	"qrattendance/internal/service"
)

type employeeRequest struct {
	FirstName    *string `json:"first_name" binding:"omitempty,max=255"`
	LastName     *string `json:"last_name" binding:"omitempty,max=255"`
	Email        *string `json:"email" binding:"omitempty,email,max=255"`
	EmployeeCode *string `json:"employee_code" binding:"omitempty,max=255"`
	Phone        *string `json:"phone" binding:"omitempty,max=20"`
	Password     *string `json:"password" binding:"omitempty,min=8"`
	HireDate     *string `json:"hire_date"`
	Position     *string `json:"position" binding:"omitempty,max=255"`
	Notes        *string `json:"notes" binding:"omitempty,max=1000"`
	IsActive     *bool   `json:"is_active"`
}

func (r employeeRequest) input() (service.EmployeeInput, error) {
	fields := map[string][]string{}
	hireDate := parseDate(fields, "hire_date", r.HireDate)
	if err := fieldsError(fields); err != nil {
		return service.EmployeeInput{}, err
	}
	return service.EmployeeInput{
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		EmployeeCode: r.EmployeeCode,
		Phone:        r.Phone,
		Password:     r.Password,
		HireDate:     hireDate,
		Position:     r.Position,
		Notes:        r.Notes,
		IsActive:     r.IsActive,
	}, nil
}

type employeeListQuery struct {
	Search      string `form:"search" binding:"omitempty,max=255"`
	IsActive    *bool  `form:"is_active"`
	WithTrashed bool   `form:"with_trashed"`
}

type locationIDsRequest struct {
	LocationIDs []int64 `json:"location_ids" binding:"required,min=1,dive,gt=0"`
}

func (h HandlerSet) ListEmployees(c *gin.Context) {
	var q employeeListQuery
	if !bindQuery(c, &q) {
		return
	}

	list, err := h.Employees.List(c.Request.Context(), middleware.Authorization(c), service.EmployeeListInput{
		Search:      q.Search,
		IsActive:    q.IsActive,
		WithTrashed: q.WithTrashed,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": list, "links": []any{}, "meta": []any{}})
}

func (h HandlerSet) CreateEmployee(c *gin.Context) {
	var req employeeRequest
	if !bindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	employee, err := h.Employees.Create(c.Request.Context(), middleware.Authorization(c), in)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, employee)
}

func (h HandlerSet) ShowEmployee(c *gin.Context) {
	id, ok := pathID(c, "id", "employee.not_found")
	if !ok {
		return
	}

	employee, err := h.Employees.Get(c.Request.Context(), middleware.Authorization(c), id)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": employee})
}

func (h HandlerSet) UpdateEmployee(c *gin.Context) {
	id, ok := pathID(c, "id", "employee.not_found")
	if !ok {
		return
	}
	var req employeeRequest
	if !bindJSON(c, &req) {
		return
	}
	in, err := req.input()
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	employee, err := h.Employees.Update(c.Request.Context(), middleware.Authorization(c), id, in)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, employee)
}

func (h HandlerSet) DeleteEmployee(c *gin.Context) {
	id, ok := pathID(c, "id", "employee.not_found")
	if !ok {
		return
	}

	if err := h.Employees.Delete(c.Request.Context(), middleware.Authorization(c), id); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": middleware.Message(c, "employee.deleted")})
}

func (h HandlerSet) ResetEmployeePassword(c *gin.Context) {
	id, ok := pathID(c, "id", "employee.not_found")
	if !ok {
		return
	}

	employee, err := h.Employees.ResetPassword(c.Request.Context(), middleware.Authorization(c), id)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": middleware.Message(c, "employee.password_reset"),
		"data":    employee,
	})
}

func (h HandlerSet) AssignEmployeeLocations(c *gin.Context) {
	h.changeLocations(c, h.Employees.AssignLocations)
}

func (h HandlerSet) DetachEmployeeLocations(c *gin.Context) {
	h.changeLocations(c, h.Employees.DetachLocations)
}

func (h HandlerSet) changeLocations(c *gin.Context, apply func(ctx context.Context, authz rbac.AuthorizationContext, id int64, locationIDs []int64) (models.Employee, error)) {
	id, ok := pathID(c, "id", "employee.not_found")
	if !ok {
		return
	}
	var req locationIDsRequest
	if !bindJSON(c, &req) {
		return
	}

	employee, err := apply(c.Request.Context(), middleware.Authorization(c), id, req.LocationIDs)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": middleware.Message(c, "employee.locations_updated"),
		"data":    employee,
	})
}
