package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"qrattendance/internal/apperror"
	"qrattendance/internal/middleware"
	"qrattendance/internal/models"
	"qrattendance/internal/service"
)

type registerRequest struct {
	Name                 string `json:"name" binding:"required,max=255"`
	Email                string `json:"email" binding:"required,email,max=255"`
	Password             string `json:"password" binding:"required,min=8"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
}

type loginRequest struct {
	Username string  `json:"username" binding:"required,max=255"`
	Password *string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type updatePasswordRequest struct {
	CurrentPassword         *string `json:"current_password"`
	NewPassword             string  `json:"new_password" binding:"required,min=8"`
	NewPasswordConfirmation string  `json:"new_password_confirmation" binding:"required,eqfield=NewPassword"`
}

type personalTokenRequest struct {
	Name string `json:"name" binding:"required,max=255"`
}

func tokenBody(c *gin.Context, messageKey string, result service.AuthResult) gin.H {
	body := gin.H{
		"message":               middleware.Message(c, messageKey),
		"access_token":          result.Token.AccessToken,
		"refresh_token":         result.Token.RefreshToken,
		"token_type":            result.Token.TokenType,
		"expires_in":            result.Token.ExpiresIn,
		"force_password_change": result.ForcePasswordChange,
	}
	switch result.Principal.Kind {
	case models.PrincipalUser:
		body["user"] = result.Principal.User
	case models.PrincipalEmployee:
		body["employee"] = result.Principal.Employee
	}
	return body
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.Auth.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tokenBody(c, "login.success", result))
}

func (h HandlerSet) LoginUser(c *gin.Context) {
	h.login(c, models.PrincipalUser)
}

func (h HandlerSet) LoginEmployee(c *gin.Context) {
	h.login(c, models.PrincipalEmployee)
}

func (h HandlerSet) login(c *gin.Context, kind models.PrincipalKind) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.Auth.Login(c.Request.Context(), kind, req.Username, req.Password)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenBody(c, "login.success", result))
}

func (h HandlerSet) RefreshUser(c *gin.Context) {
	h.refresh(c, models.PrincipalUser)
}

func (h HandlerSet) RefreshEmployee(c *gin.Context) {
	h.refresh(c, models.PrincipalEmployee)
}

func (h HandlerSet) refresh(c *gin.Context, kind models.PrincipalKind) {
	// the body is optional when a valid access token is presented
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.AbortWithError(c, bindingError(err))
		return
	}

	in := service.RefreshInput{RefreshToken: req.RefreshToken}
	if p, ok := middleware.CurrentPrincipal(c); ok {
		in.Principal = &p
	}

	result, err := h.Auth.Refresh(c.Request.Context(), kind, in)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	body := tokenBody(c, "token.refreshed", result)
	delete(body, "user")
	delete(body, "employee")
	delete(body, "force_password_change")
	c.JSON(http.StatusOK, body)
}

func (h HandlerSet) MeUser(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		middleware.AbortWithError(c, apperror.ErrUnauthenticated)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h HandlerSet) MeEmployee(c *gin.Context) {
	employee, ok := middleware.CurrentEmployee(c)
	if !ok {
		middleware.AbortWithError(c, apperror.ErrUnauthenticated)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": employee})
}

func (h HandlerSet) Logout(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		middleware.AbortWithError(c, apperror.ErrUnauthenticated)
		return
	}

	if err := h.Auth.Logout(c.Request.Context(), principal); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": middleware.Message(c, "logout.success")})
}

func (h HandlerSet) UpdatePassword(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		middleware.AbortWithError(c, apperror.ErrUnauthenticated)
		return
	}

	var req updatePasswordRequest
	if !bindJSON(c, &req) {
		return
	}

	err := h.Auth.UpdatePassword(c.Request.Context(), principal, service.UpdatePasswordInput{
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": middleware.Message(c, "password.updated")})
}

func (h HandlerSet) CreatePersonalToken(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		middleware.AbortWithError(c, apperror.ErrUnauthenticated)
		return
	}

	var req personalTokenRequest
	if !bindJSON(c, &req) {
		return
	}

	token, err := h.Auth.CreatePersonalToken(c.Request.Context(), principal, req.Name)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":      middleware.Message(c, "token.created"),
		"access_token": token.AccessToken,
		"token_type":   token.TokenType,
		"expires_in":   token.ExpiresIn,
		"expires_at":   token.ExpiresAt,
	})
}
