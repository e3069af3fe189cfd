package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/middleware"
	"qrattendance/internal/service"
)

type locationRequest struct {
	Name        *string  `json:"name" binding:"omitempty,max=255"`
	Address     *string  `json:"address" binding:"omitempty,max=500"`
	City        *string  `json:"city" binding:"omitempty,max=255"`
	Latitude    *float64 `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
	Description *string  `json:"description" binding:"omitempty,max=1000"`
	IsActive    *bool    `json:"is_active"`
}

func (r locationRequest) input() service.LocationInput {
	return service.LocationInput{
		Name:        r.Name,
		Address:     r.Address,
		City:        r.City,
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
		Description: r.Description,
		IsActive:    r.IsActive,
	}
}

type trashedQuery struct {
	WithTrashed bool `form:"with_trashed"`
}

func (h HandlerSet) ListLocations(c *gin.Context) {
	var q trashedQuery
	if !bindQuery(c, &q) {
		return
	}

	list, err := h.Locations.List(c.Request.Context(), middleware.Authorization(c), q.WithTrashed)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h HandlerSet) CreateLocation(c *gin.Context) {
	var req locationRequest
	if !bindJSON(c, &req) {
		return
	}

	location, err := h.Locations.Create(c.Request.Context(), middleware.Authorization(c), req.input())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, location)
}

func (h HandlerSet) ShowLocation(c *gin.Context) {
	id, ok := pathID(c, "id", "location.not_found")
	if !ok {
		return
	}

	location, err := h.Locations.Get(c.Request.Context(), middleware.Authorization(c), id)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, location)
}

func (h HandlerSet) UpdateLocation(c *gin.Context) {
	id, ok := pathID(c, "id", "location.not_found")
	if !ok {
		return
	}
	var req locationRequest
	if !bindJSON(c, &req) {
		return
	}

	location, err := h.Locations.Update(c.Request.Context(), middleware.Authorization(c), id, req.input())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, location)
}

func (h HandlerSet) DeleteLocation(c *gin.Context) {
	id, ok := pathID(c, "id", "location.not_found")
	if !ok {
		return
	}

	if err := h.Locations.Delete(c.Request.Context(), middleware.Authorization(c), id); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": middleware.Message(c, "location.deleted")})
}
