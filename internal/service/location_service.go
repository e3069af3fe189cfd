package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"qrattendance/internal/apperror"
	"qrattendance/internal/models"
	"qrattendance/internal/rbac"
	"qrattendance/internal/repository"
	"qrattendance/internal/scope"
)

type LocationStore interface {
	Create(ctx context.Context, l models.Location) (models.Location, error)
	Update(ctx context.Context, l models.Location) (models.Location, error)
	GetByID(ctx context.Context, id int64, withTrashed bool) (models.Location, error)
	List(ctx context.Context, filter repository.LocationFilter) ([]models.Location, error)
	SoftDelete(ctx context.Context, id int64) error
}

type LocationAttendances interface {
	ListByLocation(ctx context.Context, locationID int64) ([]models.Attendance, error)
}

type LocationService struct {
	locations   LocationStore
	attendances LocationAttendances
	log         zerolog.Logger
}

func NewLocationService(locations LocationStore, attendances LocationAttendances, log zerolog.Logger) *LocationService {
	return &LocationService{locations: locations, attendances: attendances, log: log}
}

// LocationInput carries the writable fields. On update nil fields keep their
// stored value.
type LocationInput struct {
	Name        *string
	Address     *string
	City        *string
	Latitude    *float64
	Longitude   *float64
	Description *string
	IsActive    *bool
}

func (s *LocationService) List(ctx context.Context, authz rbac.AuthorizationContext, withTrashed bool) ([]models.Location, error) {
	pred, trashed := visibility(authz, scope.Locations, withTrashed)
	list, err := s.locations.List(ctx, repository.LocationFilter{Scope: pred, WithTrashed: trashed})
	if err != nil {
		return nil, internalError(err)
	}
	return list, nil
}

// Get returns the location with its attendances.
func (s *LocationService) Get(ctx context.Context, authz rbac.AuthorizationContext, id int64) (models.Location, error) {
	location, err := s.authorized(ctx, authz, id, rbac.ViewLocations)
	if err != nil {
		return models.Location{}, err
	}
	attendances, err := s.attendances.ListByLocation(ctx, location.ID)
	if err != nil {
		return models.Location{}, internalError(err)
	}
	location.Attendances = attendances
	return location, nil
}

func (s *LocationService) Create(ctx context.Context, authz rbac.AuthorizationContext, in LocationInput) (models.Location, error) {
	location := models.Location{UserID: authz.UserID, IsActive: true}
	if in.Name == nil {
		return models.Location{}, apperror.Validation("name", "validation.required")
	}
	if err := applyLocationInput(&location, in); err != nil {
		return models.Location{}, err
	}

	created, err := s.locations.Create(ctx, location)
	if err != nil {
		return models.Location{}, internalError(err)
	}
	s.log.Info().Int64("location_id", created.ID).Int64("user_id", authz.UserID).Msg("location created")
	return created, nil
}

func (s *LocationService) Update(ctx context.Context, authz rbac.AuthorizationContext, id int64, in LocationInput) (models.Location, error) {
	location, err := s.authorized(ctx, authz, id, rbac.EditLocations)
	if err != nil {
		return models.Location{}, err
	}
	if err := applyLocationInput(&location, in); err != nil {
		return models.Location{}, err
	}

	updated, err := s.locations.Update(ctx, location)
	if errors.Is(err, repository.ErrLocationNotFound) {
		return models.Location{}, apperror.NotFound("location.not_found")
	}
	if err != nil {
		return models.Location{}, internalError(err)
	}
	return updated, nil
}

func (s *LocationService) Delete(ctx context.Context, authz rbac.AuthorizationContext, id int64) error {
	if _, err := s.authorized(ctx, authz, id, rbac.DeleteLocations); err != nil {
		return err
	}
	if err := s.locations.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrLocationNotFound) {
			return apperror.NotFound("location.not_found")
		}
		return internalError(err)
	}
	return nil
}

func (s *LocationService) authorized(ctx context.Context, authz rbac.AuthorizationContext, id int64, permission string) (models.Location, error) {
	location, err := s.locations.GetByID(ctx, id, false)
	if errors.Is(err, repository.ErrLocationNotFound) {
		return models.Location{}, apperror.NotFound("location.not_found")
	}
	if err != nil {
		return models.Location{}, internalError(err)
	}
	if !scope.Allows(authz, scope.Locations, permission, location.UserID) {
		return models.Location{}, apperror.ErrForbidden
	}
	return location, nil
}

func applyLocationInput(l *models.Location, in LocationInput) error {
	fields := fieldErrors{}
	if in.Name != nil {
		if *in.Name == "" {
			fields.add("name", "validation.required")
		}
		l.Name = *in.Name
	}
	if in.Latitude != nil && !models.ValidLatitude(*in.Latitude) {
		fields.add("latitude", "validation.between")
	}
	if in.Longitude != nil && !models.ValidLongitude(*in.Longitude) {
		fields.add("longitude", "validation.between")
	}
	if err := fields.err(); err != nil {
		return err
	}

	if in.Address != nil {
		l.Address = in.Address
	}
	if in.City != nil {
		l.City = in.City
	}
	if in.Latitude != nil {
		l.Latitude = models.RoundCoordinatePtr(in.Latitude)
	}
	if in.Longitude != nil {
		l.Longitude = models.RoundCoordinatePtr(in.Longitude)
	}
	if in.Description != nil {
		l.Description = in.Description
	}
	if in.IsActive != nil {
		l.IsActive = *in.IsActive
	}
	return nil
}
