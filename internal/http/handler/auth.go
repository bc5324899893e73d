package handler

import (
	"net/http"

	"drive-service/internal/audit"

	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	accounts    AccountOperations
	auditLogger AuditLogger
}

func NewAuthHandler(accounts AccountOperations, auditLogger AuditLogger) *AuthHandler {
	if auditLogger == nil {
		auditLogger = noopAudit{}
	}
	return &AuthHandler{accounts: accounts, auditLogger: auditLogger}
}

// Register creates the account and its root folder and returns a session.
func (h *AuthHandler) Register(c echo.Context) error {
	var req CredentialsRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}

	session, err := h.accounts.Register(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		h.auditLogger.LogError(c, audit.ResourceTypeUser, nil, audit.ActionRegister, err)
		return err
	}

	h.auditLogger.LogFromContext(c, audit.ResourceTypeUser, &session.User.ID, audit.ActionRegister, nil)

	return c.JSON(http.StatusCreated, toSessionResponse(session))
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req CredentialsRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}

	session, err := h.accounts.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		h.auditLogger.LogError(c, audit.ResourceTypeUser, nil, audit.ActionLogin, err)
		return err
	}

	h.auditLogger.LogFromContext(c, audit.ResourceTypeUser, &session.User.ID, audit.ActionLogin, nil)

	return c.JSON(http.StatusOK, toSessionResponse(session))
}

func (h *AuthHandler) UsernameAvailable(c echo.Context) error {
	username := c.QueryParam(queryUsername)

	available, err := h.accounts.UsernameAvailable(c.Request().Context(), username)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, AvailabilityResponse{Username: username, Available: available})
}
