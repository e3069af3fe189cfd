package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"qrattendance/internal/attendance"
	"qrattendance/internal/config"
	"qrattendance/internal/i18n"
	"qrattendance/internal/middleware"
	"qrattendance/internal/models"
	"qrattendance/internal/queue"
	"qrattendance/internal/ratelimit"
	"qrattendance/internal/rbac"
	"qrattendance/internal/repository"
	"qrattendance/internal/service"
	"qrattendance/internal/storage"
)

type AuthAPI interface {
	middleware.Authenticator
	Register(ctx context.Context, in service.RegisterInput) (service.AuthResult, error)
	Login(ctx context.Context, kind models.PrincipalKind, identifier string, password *string) (service.AuthResult, error)
	Logout(ctx context.Context, principal models.Principal) error
	Refresh(ctx context.Context, kind models.PrincipalKind, in service.RefreshInput) (service.AuthResult, error)
	UpdatePassword(ctx context.Context, principal models.Principal, in service.UpdatePasswordInput) error
	CreatePersonalToken(ctx context.Context, principal models.Principal, name string) (service.IssuedToken, error)
}

type LocationAPI interface {
	List(ctx context.Context, authz rbac.AuthorizationContext, withTrashed bool) ([]models.Location, error)
	Get(ctx context.Context, authz rbac.AuthorizationContext, id int64) (models.Location, error)
	Create(ctx context.Context, authz rbac.AuthorizationContext, in service.LocationInput) (models.Location, error)
	Update(ctx context.Context, authz rbac.AuthorizationContext, id int64, in service.LocationInput) (models.Location, error)
	Delete(ctx context.Context, authz rbac.AuthorizationContext, id int64) error
}

type EmployeeAPI interface {
	List(ctx context.Context, authz rbac.AuthorizationContext, in service.EmployeeListInput) ([]models.Employee, error)
	Get(ctx context.Context, authz rbac.AuthorizationContext, id int64) (models.Employee, error)
	Create(ctx context.Context, authz rbac.AuthorizationContext, in service.EmployeeInput) (models.Employee, error)
	Update(ctx context.Context, authz rbac.AuthorizationContext, id int64, in service.EmployeeInput) (models.Employee, error)
	Delete(ctx context.Context, authz rbac.AuthorizationContext, id int64) error
	ResetPassword(ctx context.Context, authz rbac.AuthorizationContext, id int64) (models.Employee, error)
	AssignLocations(ctx context.Context, authz rbac.AuthorizationContext, id int64, locationIDs []int64) (models.Employee, error)
	DetachLocations(ctx context.Context, authz rbac.AuthorizationContext, id int64, locationIDs []int64) (models.Employee, error)
	AvailableLocations(ctx context.Context, employee models.Employee) ([]models.Location, error)
}

type AttendanceAPI interface {
	List(ctx context.Context, authz rbac.AuthorizationContext, in service.AttendanceListInput) ([]models.Attendance, error)
	Get(ctx context.Context, authz rbac.AuthorizationContext, id int64) (models.Attendance, error)
	Create(ctx context.Context, authz rbac.AuthorizationContext, in service.AttendanceInput) (models.Attendance, error)
	Update(ctx context.Context, authz rbac.AuthorizationContext, id int64, in service.AttendanceInput) (models.Attendance, error)
	Delete(ctx context.Context, authz rbac.AuthorizationContext, id int64) error
}

type CheckInAPI interface {
	CheckIn(ctx context.Context, employee models.Employee, in attendance.CheckInInput) (models.Attendance, error)
	CheckOut(ctx context.Context, employee models.Employee, in attendance.CheckOutInput) (models.Attendance, error)
	Current(ctx context.Context, employee models.Employee) (*models.Attendance, error)
	History(ctx context.Context, employee models.Employee, f attendance.HistoryFilter) ([]models.Attendance, error)
}

type RoleAPI interface {
	Roles(ctx context.Context) ([]models.Role, error)
	Permissions(ctx context.Context) ([]models.Permission, error)
	AssignRole(ctx context.Context, userID int64, role string) (service.UserMembership, error)
	RemoveRole(ctx context.Context, userID int64, role string) (service.UserMembership, error)
	SyncRoles(ctx context.Context, userID int64, roles []string) (service.UserMembership, error)
	GrantPermission(ctx context.Context, userID int64, permission string) (service.UserMembership, error)
	RevokePermission(ctx context.Context, userID int64, permission string) (service.UserMembership, error)
}

type ReportAPI interface {
	Summary(ctx context.Context, authz rbac.AuthorizationContext, r service.DateRange) ([]models.AttendanceSummary, error)
	RequestExport(ctx context.Context, authz rbac.AuthorizationContext, r service.DateRange) (models.ReportExport, error)
	Export(ctx context.Context, authz rbac.AuthorizationContext, id string) (models.ReportExport, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Services is everything the routes call into.
type Services struct {
	Auth        AuthAPI
	Authz       middleware.Authorizer
	Locations   LocationAPI
	Employees   EmployeeAPI
	Attendances AttendanceAPI
	CheckIns    CheckInAPI
	Roles       RoleAPI
	Reports     ReportAPI
	Limiter     ratelimit.Limiter
	Translator  *i18n.Translator
	Checks      map[string]HealthCheck
}

type HandlerSet struct {
	log zerolog.Logger
	cfg *config.AppConfig
	Services
}

// NewHandlerSet wires the repositories and services over the shared
// connections. The rate limit store is chosen by cfg.RateLimits.Store.
func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, store *storage.ObjectStore, cfg *config.AppConfig) (HandlerSet, error) {
	userRepo := repository.NewUserRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	locationRepo := repository.NewLocationRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	reportRepo := repository.NewReportRepository(db)

	engine := rbac.NewEngine(repository.NewRoleRepository(db), rbac.NewRedisCache(cache, cfg.Security.RBACCacheTTL), log)

	limiter, err := ratelimit.New(cfg.RateLimits, cache)
	if err != nil {
		return HandlerSet{}, err
	}

	set := newHandlerSet(log, cfg, Services{
		Auth:        service.NewAuthService(userRepo, employeeRepo, tokenRepo, engine, cfg.Security, log),
		Authz:       engine,
		Locations:   service.NewLocationService(locationRepo, attendanceRepo, log),
		Employees:   service.NewEmployeeService(employeeRepo, locationRepo, attendanceRepo, log),
		Attendances: service.NewAttendanceService(attendanceRepo, employeeRepo, locationRepo, log),
		CheckIns:    attendance.NewMachine(attendanceRepo, locationRepo, log),
		Roles:       service.NewRoleService(userRepo, engine, log),
		Reports:     service.NewReportService(attendanceRepo, reportRepo, queue.NewProducer(cache, cfg.Worker.Stream), store, log),
		Limiter:     limiter,
		Translator:  i18n.NewTranslator(cfg.Locale.Default, cfg.Locale.Supported),
		Checks: map[string]HealthCheck{
			"database": db.Ping,
			"cache":    func(ctx context.Context) error { return cache.Ping(ctx).Err() },
		},
	})
	return set, nil
}

func newHandlerSet(log zerolog.Logger, cfg *config.AppConfig, services Services) HandlerSet {
	return HandlerSet{log: log, cfg: cfg, Services: services}
}

func (h HandlerSet) limit(name string, rule config.RateLimit, key middleware.KeyFunc) gin.HandlerFunc {
	return middleware.RateLimit(h.Limiter, name, rule, key)
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	limits := h.cfg.RateLimits
	router.Use(middleware.Locale(h.Translator))

	public := router.Group("", h.limit("general", limits.General, middleware.ByIP))
	public.GET("/health", h.Health)
	public.GET("/info", h.Info)

	h.registerUsers(router.Group("/users"), limits)
	h.registerEmployees(router.Group("/employees"), limits)
}

func (h HandlerSet) registerUsers(users *gin.RouterGroup, limits config.RateLimitConfig) {
	userAuth := middleware.Auth(h.Auth, models.PrincipalUser)
	throttle := h.limit("users-api", limits.UsersAPI, middleware.ByPrincipal)
	can := middleware.RequirePermission

	auth := users.Group("/auth")
	auth.POST("/register", h.limit("general", limits.General, middleware.ByIP), h.RegisterUser)
	auth.POST("/login", h.limit("login", limits.Login, middleware.ByIP), h.LoginUser)
	auth.POST("/refresh", middleware.OptionalAuth(h.Auth, models.PrincipalUser), throttle, h.RefreshUser)
	session := auth.Group("", userAuth, throttle)
	session.GET("/me", h.MeUser)
	session.POST("/logout", h.Logout)
	session.POST("/update-password", h.UpdatePassword)
	session.POST("/personal-tokens", h.CreatePersonalToken)

	api := users.Group("", userAuth, throttle, middleware.Authorize(h.Authz))

	locations := api.Group("/locations")
	locations.GET("", can(rbac.ViewLocations), h.ListLocations)
	locations.POST("", can(rbac.CreateLocations), h.CreateLocation)
	locations.GET("/:id", can(rbac.ViewLocations), h.ShowLocation)
	locations.PUT("/:id", can(rbac.EditLocations), h.UpdateLocation)
	locations.DELETE("/:id", can(rbac.DeleteLocations), h.DeleteLocation)

	employees := api.Group("/employees")
	employees.GET("", can(rbac.ViewEmployees), h.ListEmployees)
	employees.POST("", can(rbac.CreateEmployees), h.CreateEmployee)
	employees.GET("/:id", can(rbac.ViewEmployees), h.ShowEmployee)
	employees.PUT("/:id", can(rbac.EditEmployees), h.UpdateEmployee)
	employees.DELETE("/:id", can(rbac.DeleteEmployees), h.DeleteEmployee)
	employees.POST("/:id/reset-password", can(rbac.EditEmployees), h.ResetEmployeePassword)
	employees.POST("/:id/locations", can(rbac.EditEmployees), h.AssignEmployeeLocations)
	employees.DELETE("/:id/locations", can(rbac.EditEmployees), h.DetachEmployeeLocations)

	attendances := api.Group("/attendances")
	attendances.GET("", can(rbac.ViewAttendances), h.ListAttendances)
	attendances.POST("", can(rbac.CreateAttendances), h.CreateAttendance)
	attendances.GET("/:id", can(rbac.ViewAttendances), h.ShowAttendance)
	attendances.PUT("/:id", can(rbac.EditAttendances), h.UpdateAttendance)
	attendances.DELETE("/:id", can(rbac.DeleteAttendances), h.DeleteAttendance)

	reports := api.Group("/reports")
	reports.GET("/attendance-summary", can(rbac.ViewReports), h.AttendanceSummary)
	reports.POST("/exports", can(rbac.ExportReports), h.RequestExport)
	reports.GET("/exports/:id", can(rbac.ExportReports), h.ShowExport)

	admin := api.Group("", middleware.RequireRole(models.RoleAdministrator))
	admin.GET("/roles", h.ListRoles)
	admin.GET("/permissions", h.ListPermissions)
	manage := admin.Group("/manage/:user")
	manage.POST("/assign-role", h.AssignRole)
	manage.POST("/remove-role", h.RemoveRole)
	manage.POST("/sync-roles", h.SyncRoles)
	manage.POST("/give-permission", h.GivePermission)
	manage.POST("/revoke-permission", h.RevokePermission)
}

func (h HandlerSet) registerEmployees(employees *gin.RouterGroup, limits config.RateLimitConfig) {
	employeeAuth := middleware.Auth(h.Auth, models.PrincipalEmployee)
	throttle := h.limit("employees-api", limits.EmployeesAPI, middleware.ByPrincipal)
	mutation := h.limit("attendance", limits.Attendance, middleware.ByPrincipal)

	auth := employees.Group("/auth")
	auth.POST("/login", h.limit("login", limits.Login, middleware.ByIP), h.LoginEmployee)
	auth.POST("/refresh", middleware.OptionalAuth(h.Auth, models.PrincipalEmployee), throttle, h.RefreshEmployee)
	session := auth.Group("", employeeAuth, throttle)
	session.GET("/me", h.MeEmployee)
	session.POST("/logout", h.Logout)
	session.POST("/update-password", h.UpdatePassword)

	portal := employees.Group("", employeeAuth, throttle)
	portal.GET("/attendances", h.AttendanceHistory)
	portal.GET("/attendances/current", h.CurrentAttendance)
	portal.POST("/attendances/check-in", mutation, h.CheckIn)
	portal.POST("/attendances/check-out", mutation, h.CheckOut)
	portal.GET("/locations", h.AvailableLocations)
}

var startedAt = time.Now()
