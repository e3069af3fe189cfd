package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"qrattendance/internal/apperror"
	"qrattendance/internal/config"
	"qrattendance/internal/ids"
	"qrattendance/internal/models"
	"qrattendance/internal/rbac"
	"qrattendance/internal/repository"
	"qrattendance/internal/security"
)

const (
	MinPasswordLength = 8
	TokenType         = "Bearer"

	userTokenName     = "auth_token"
	employeeTokenName = "employee_token"
)

type UserStore interface {
	Create(ctx context.Context, user models.User) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, id int64) (models.User, error)
	SetPassword(ctx context.Context, id int64, hash []byte, force bool) error
}

type EmployeeCredentialStore interface {
	FindForLogin(ctx context.Context, identifier string) (models.Employee, error)
	GetByID(ctx context.Context, id int64, withTrashed bool) (models.Employee, error)
	SetPassword(ctx context.Context, id int64, hash []byte, force bool) error
}

type TokenStore interface {
	Create(ctx context.Context, token models.AccessToken) error
	GetByID(ctx context.Context, id string) (models.AccessToken, error)
	FindByRefreshHash(ctx context.Context, kind models.PrincipalKind, hash []byte) (models.AccessToken, error)
	Revoke(ctx context.Context, id string) error
	Touch(ctx context.Context, id string) error
}

type RoleAssigner interface {
	AssignRole(ctx context.Context, userID int64, role, guard string) error
}

// AuthService issues and revokes credentials for both principal kinds. Users
// and employees never share a token: every token row and every JWT names the
// credential space it belongs to.
type AuthService struct {
	users     UserStore
	employees EmployeeCredentialStore
	tokens    TokenStore
	roles     RoleAssigner
	cfg       config.SecurityConfig
	log       zerolog.Logger
	now       func() time.Time
}

func NewAuthService(
	users UserStore,
	employees EmployeeCredentialStore,
	tokens TokenStore,
	roles RoleAssigner,
	cfg config.SecurityConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		employees: employees,
		tokens:    tokens,
		roles:     roles,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

type IssuedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type AuthResult struct {
	Principal           models.Principal
	Token               IssuedToken
	ForcePasswordChange bool
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates a user holding the default role and signs them in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	if len(input.Password) < MinPasswordLength {
		return AuthResult{}, apperror.Validation("password", "validation.min")
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, apperror.Wrap(apperror.CodeInternal, "server_error", err)
	}

	user, err := s.users.Create(ctx, models.User{
		Name:         strings.TrimSpace(input.Name),
		Email:        input.Email,
		PasswordHash: hash,
	})
	if err != nil {
		var dup *repository.DuplicateError
		if errors.As(err, &dup) {
			return AuthResult{}, apperror.Validation("email", "validation.unique")
		}
		return AuthResult{}, apperror.Wrap(apperror.CodeInternal, "server_error", err)
	}

	if err := s.roles.AssignRole(ctx, user.ID, rbac.DefaultRole, models.GuardAPI); err != nil {
		return AuthResult{}, apperror.Wrap(apperror.CodeInternal, "server_error", fmt.Errorf("assign default role: %w", err))
	}

	principal := models.UserPrincipal(user, "")
	token, err := s.issue(ctx, principal, userTokenName, s.cfg.AccessTTL, true)
	if err != nil {
		return AuthResult{}, err
	}

	s.log.Info().Int64("user_id", user.ID).Msg("user registered")
	return AuthResult{Principal: principal, Token: token}, nil
}

// Login authenticates within one credential space. A principal flagged for
// a forced password change is let in without checking the password so it can
// set one. Every failure reads the same to the caller.
func (s *AuthService) Login(ctx context.Context, kind models.PrincipalKind, identifier string, password *string) (AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return AuthResult{}, apperror.ErrInvalidCredentials
	}

	var (
		principal models.Principal
		name      string
	)
	switch kind {
	case models.PrincipalUser:
		user, err := s.users.FindByEmail(ctx, identifier)
		if err != nil {
			return AuthResult{}, s.loginLookupError(err)
		}
		principal, name = models.UserPrincipal(user, ""), userTokenName
	case models.PrincipalEmployee:
		employee, err := s.employees.FindForLogin(ctx, identifier)
		if err != nil {
			return AuthResult{}, s.loginLookupError(err)
		}
		principal, name = models.EmployeePrincipal(employee, ""), employeeTokenName
	default:
		return AuthResult{}, apperror.ErrInvalidCredentials
	}

	force := principal.ForcePasswordChange()
	if !force {
		if password == nil || *password == "" {
			return AuthResult{}, apperror.ErrInvalidCredentials
		}
		ok, err := security.VerifyPassword(*password, principal.PasswordHash())
		if err != nil {
			s.log.Warn().Err(err).Str("kind", string(kind)).Int64("principal_id", principal.ID()).Msg("password hash unreadable")
		}
		if err != nil || !ok {
			return AuthResult{}, apperror.ErrInvalidCredentials
		}
	}

	token, err := s.issue(ctx, principal, name, s.cfg.AccessTTL, true)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Principal: principal, Token: token, ForcePasswordChange: force}, nil
}

func (s *AuthService) loginLookupError(err error) error {
	if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, repository.ErrEmployeeNotFound) {
		return apperror.ErrInvalidCredentials
	}
	return apperror.Wrap(apperror.CodeInternal, "server_error", err)
}

// Authenticate resolves a bearer token into a principal of the expected kind.
func (s *AuthService) Authenticate(ctx context.Context, kind models.PrincipalKind, bearer string) (models.Principal, error) {
	claims, err := security.ParseAccessToken(bearer, s.cfg.JWTAccessSecret, s.now())
	if err != nil || claims.Kind != kind {
		return models.Principal{}, apperror.ErrUnauthenticated
	}
	principalID, err := claims.PrincipalID()
	if err != nil {
		return models.Principal{}, apperror.ErrUnauthenticated
	}

	token, err := s.tokens.GetByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return models.Principal{}, apperror.ErrUnauthenticated
		}
		return models.Principal{}, apperror.Wrap(apperror.CodeInternal, "server_error", err)
	}
	if token.PrincipalKind != kind || token.PrincipalID != principalID || !token.Usable(s.now()) {
		return models.Principal{}, apperror.ErrUnauthenticated
	}

	principal, err := s.loadPrincipal(ctx, kind, principalID, token.ID)
	if err != nil {
		return models.Principal{}, err
	}

	if err := s.tokens.Touch(ctx, token.ID); err != nil {
		s.log.Warn().Err(err).Str("token_id", token.ID).Msg("touch token failed")
	}
	return principal, nil
}

func (s *AuthService) loadPrincipal(ctx context.Context, kind models.PrincipalKind, id int64, tokenID string) (models.Principal, error) {
	switch kind {
	case models.PrincipalUser:
		user, err := s.users.GetByID(ctx, id)
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.Principal{}, apperror.ErrUnauthenticated
		}
		if err != nil {
			return models.Principal{}, apperror.Wrap(apperror.CodeInternal, "server_error", err)
		}
		return models.UserPrincipal(user, tokenID), nil
	case models.PrincipalEmployee:
		employee, err := s.employees.GetByID(ctx, id, false)
		if errors.Is(err, repository.ErrEmployeeNotFound) {
			return models.Principal{}, apperror.ErrUnauthenticated
		}
		if err != nil {
			return models.Principal{}, apperror.Wrap(apperror.CodeInternal, "server_error", err)
		}
		if !employee.CanLogin() {
			return models.Principal{}, apperror.ErrUnauthenticated
		}
		return models.EmployeePrincipal(employee, tokenID), nil
	}
	return models.Principal{}, apperror.ErrUnauthenticated
}

// Logout revokes only the token the request was made with.
func (s *AuthService) Logout(ctx context.Context, principal models.Principal) error {
	if principal.TokenID == "" {
		return apperror.ErrUnauthenticated
	}
	if err := s.tokens.Revoke(ctx, principal.TokenID); err != nil && !errors.Is(err, repository.ErrTokenNotFound) {
		return apperror.Wrap(apperror.CodeInternal, "server_error", err)
	}
	return nil
}

type RefreshInput struct {
	// Principal is set when the request carried a valid access token.
	Principal    *models.Principal
	RefreshToken string
}

// Refresh revokes the presented token and issues a new pair. The token is
// identified by the access token when one is present, otherwise by the
// refresh token alone; a supplied refresh token must belong to that row.
func (s *AuthService) Refresh(ctx context.Context, kind models.PrincipalKind, input RefreshInput) (AuthResult, error) {
	var (
		token models.AccessToken
		err   error
	)
	switch {
	case input.Principal != nil && input.Principal.TokenID != "":
		if input.Principal.Kind != kind {
			return AuthResult{}, apperror.ErrUnauthenticated
		}
		token, err = s.tokens.GetByID(ctx, input.Principal.TokenID)
	case input.RefreshToken != "":
		token, err = s.tokens.FindByRefreshHash(ctx, kind, security.HashRefreshToken(input.RefreshToken))
	default:
		return AuthResult{}, apperror.ErrUnauthenticated
	}
	if err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return AuthResult{}, apperror.ErrUnauthenticated
		}
		return AuthResult{}, apperror.Wrap(apperror.CodeInternal, "server_error", err)
	}

	now := s.now()
	if token.PrincipalKind != kind || token.Revoked {
		return AuthResult{}, apperror.ErrUnauthenticated
	}
	if input.RefreshToken != "" && !security.RefreshTokenMatches(input.RefreshToken, token.RefreshTokenHash) {
		return AuthResult{}, apperror.ErrUnauthenticated
	}
	if input.Principal == nil && !token.Refreshable(now) {
		return AuthResult{}, apperror.ErrUnauthenticated
	}

	principal, err := s.loadPrincipal(ctx, kind, token.PrincipalID, "")
	if err != nil {
		return AuthResult{}, err
	}

	// losing this race means another refresh already consumed the token
	if err := s.tokens.Revoke(ctx, token.ID); err != nil {
		if errors.Is(err, repository.ErrTokenNotFound) {
			return AuthResult{}, apperror.ErrUnauthenticated
		}
		return AuthResult{}, apperror.Wrap(apperror.CodeInternal, "server_error", err)
	}

	issued, err := s.issue(ctx, principal, token.Name, s.cfg.AccessTTL, true)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Principal: principal, Token: issued, ForcePasswordChange: principal.ForcePasswordChange()}, nil
}

type UpdatePasswordInput struct {
	CurrentPassword *string
	NewPassword     string
}

// UpdatePassword sets a new password and clears the forced-change flag. The
// current password is only demanded when no forced change is pending.
func (s *AuthService) UpdatePassword(ctx context.Context, principal models.Principal, input UpdatePasswordInput) error {
	if len(input.NewPassword) < MinPasswordLength {
		return apperror.Validation("new_password", "validation.min")
	}

	if !principal.ForcePasswordChange() {
		if input.CurrentPassword == nil || *input.CurrentPassword == "" {
			return apperror.Validation("current_password", "validation.required")
		}
		ok, err := security.VerifyPassword(*input.CurrentPassword, principal.PasswordHash())
		if err != nil || !ok {
			return apperror.Validation("current_password", "validation.current_password")
		}
	}

	hash, err := security.HashPassword(input.NewPassword)
	if err != nil {
		return apperror.Wrap(apperror.CodeInternal, "server_error", err)
	}

	switch principal.Kind {
	case models.PrincipalUser:
		err = s.users.SetPassword(ctx, principal.ID(), hash, false)
	case models.PrincipalEmployee:
		err = s.employees.SetPassword(ctx, principal.ID(), hash, false)
	default:
		return apperror.ErrUnauthenticated
	}
	if err != nil {
		return apperror.Wrap(apperror.CodeInternal, "server_error", err)
	}

	s.log.Info().Str("kind", string(principal.Kind)).Int64("principal_id", principal.ID()).Msg("password updated")
	return nil
}

// CreatePersonalToken issues a long-lived access token without a refresh
// token.
func (s *AuthService) CreatePersonalToken(ctx context.Context, principal models.Principal, name string) (IssuedToken, error) {
	if principal.Kind != models.PrincipalUser {
		return IssuedToken{}, apperror.ErrForbidden
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return IssuedToken{}, apperror.Validation("name", "validation.required")
	}
	if len(name) > 255 {
		return IssuedToken{}, apperror.Validation("name", "validation.max")
	}
	return s.issue(ctx, principal, name, s.cfg.PersonalTTL, false)
}

func (s *AuthService) issue(ctx context.Context, principal models.Principal, name string, ttl time.Duration, withRefresh bool) (IssuedToken, error) {
	now := s.now()
	row := models.AccessToken{
		ID:            ids.New(),
		PrincipalKind: principal.Kind,
		PrincipalID:   principal.ID(),
		Name:          name,
		ExpiresAt:     now.Add(ttl),
	}

	var refreshToken string
	if withRefresh {
		token, hash, err := security.GenerateRefreshToken(security.RefreshTokenBytes)
		if err != nil {
			return IssuedToken{}, apperror.Wrap(apperror.CodeInternal, "server_error", err)
		}
		refreshExpiry := now.Add(s.cfg.RefreshTTL)
		refreshToken = token
		row.RefreshTokenHash = hash
		row.RefreshExpiresAt = &refreshExpiry
	}

	accessToken, err := security.GenerateAccessToken(s.cfg.JWTAccessSecret, principal.Kind, principal.ID(), row.ID, now, ttl)
	if err != nil {
		return IssuedToken{}, apperror.Wrap(apperror.CodeInternal, "server_error", err)
	}

	if err := s.tokens.Create(ctx, row); err != nil {
		return IssuedToken{}, apperror.Wrap(apperror.CodeInternal, "server_error", err)
	}

	return IssuedToken{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    TokenType,
		ExpiresIn:    int64(ttl / time.Second),
		ExpiresAt:    row.ExpiresAt,
	}, nil
}
