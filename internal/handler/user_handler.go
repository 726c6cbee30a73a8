package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/directchat/internal/service"
)

type UserHandler struct {
	svc service.UserService
}

func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

type PublicUserResponse struct {
	UID         string  `json:"uid"`
	DisplayName string  `json:"displayName"`
	PhotoURL    *string `json:"photoURL"`
}

func (h *UserHandler) Me(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	user, err := h.svc.Get(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, err, "failed to load user")
	}
	return c.JSON(http.StatusOK, user)
}

func (h *UserHandler) Online(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"online": h.svc.Online(c.Request().Context()),
	})
}

func (h *UserHandler) GetPublic(c echo.Context) error {
	uid := c.Param("uid")
	if uid == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid uid"))
	}
	user, err := h.svc.Get(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, err, "failed to load user")
	}
	return c.JSON(http.StatusOK, PublicUserResponse{
		UID:         user.ID,
		DisplayName: user.FullName,
		PhotoURL:    user.ProfilePic,
	})
}
