package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/directchat/internal/service"
)

type MessageHandler struct {
	svc service.MessageService
}

func NewMessageHandler(svc service.MessageService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

type SendMessageRequest struct {
	Text    string `json:"text" validate:"max=4000"`
	Image   string `json:"image"`
	Video   string `json:"video"`
	ReplyTo string `json:"replyTo" validate:"omitempty,uuid"`
}

func (h *MessageHandler) Sidebar(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	entries, err := h.svc.ListSidebar(c.Request().Context(), uid)
	if err != nil {
		return writeServiceError(c, err, "failed to load conversations")
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *MessageHandler) Conversation(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	other := strings.TrimSpace(c.Param("id"))
	if other == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid user id"))
	}
	msgs, err := h.svc.Conversation(c.Request().Context(), uid, other)
	if err != nil {
		return writeServiceError(c, err, "failed to load messages")
	}
	return c.JSON(http.StatusOK, msgs)
}

func (h *MessageHandler) Send(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	receiver := strings.TrimSpace(c.Param("id"))
	if receiver == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid user id"))
	}
	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid json"))
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("validation_failed", err.Error()))
	}
	msg, err := h.svc.Send(c.Request().Context(), service.SendInput{
		SenderID:   uid,
		ReceiverID: receiver,
		Text:       req.Text,
		Image:      req.Image,
		Video:      req.Video,
		ReplyTo:    req.ReplyTo,
	})
	if err != nil {
		return writeServiceError(c, err, "failed to send message")
	}
	return c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) MarkSeen(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	other := strings.TrimSpace(c.Param("id"))
	if other == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid user id"))
	}
	count, err := h.svc.MarkSeen(c.Request().Context(), uid, other)
	if err != nil {
		return writeServiceError(c, err, "failed to mark messages as seen")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Messages marked as seen",
		"count":   count,
	})
}

func (h *MessageHandler) Delete(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	if uid == "" {
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid message id"))
	}
	if err := h.svc.Delete(c.Request().Context(), uid, id); err != nil {
		return writeServiceError(c, err, "failed to delete message")
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Message deleted successfully"})
}
