package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/nexa-labs/wavechat-backend/internal/models"
	"github.com/nexa-labs/wavechat-backend/internal/push"
	"github.com/nexa-labs/wavechat-backend/internal/repositories"
)

// MessageHandler handles direct message HTTP requests
type MessageHandler struct {
	messageRepository      repositories.MessageRepository
	userRepository         repositories.UserRepository
	notificationRepository repositories.NotificationRepository
	engine                 *push.Engine
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, notifRepo repositories.NotificationRepository, engine *push.Engine) *MessageHandler {
	return &MessageHandler{
		messageRepository:      messageRepo,
		userRepository:         userRepo,
		notificationRepository: notifRepo,
		engine:                 engine,
	}
}

// RegisterMessageRoutes registers message routes
func (h *MessageHandler) RegisterMessageRoutes(g *echo.Group) {
	g.POST("/messages", h.SendMessage)
	g.GET("/messages/:userId", h.GetConversation)
}

// SendMessage persists a direct message, writes a feed notification for the
// recipient, and enqueues a push. The push outcome is not awaited; a
// delivery failure is invisible to the sender.
func (h *MessageHandler) SendMessage(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	var req models.CreateMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if req.RecipientID == currentUserID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot message yourself")
	}

	sender, err := h.userRepository.GetUserByID(currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if _, err := h.userRepository.GetUserByID(req.RecipientID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Recipient not found")
	}

	message := &models.Message{
		SenderID:    currentUserID,
		RecipientID: req.RecipientID,
		Content:     req.Content,
	}
	if err := h.messageRepository.CreateMessage(c.Request().Context(), message); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	feedNotification := &models.Notification{
		Type:        "message",
		ActorID:     currentUserID,
		RecipientID: req.RecipientID,
		TargetID:    message.ID.Hex(),
		TargetType:  "message",
		Message:     fmt.Sprintf("%s sent you a message", sender.Name),
	}
	if err := h.notificationRepository.CreateNotification(feedNotification); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	pushNotification := &models.PendingNotification{
		UserID: req.RecipientID,
		Title:  sender.Name,
		Body:   req.Content,
		Tag:    fmt.Sprintf("message-%d", currentUserID),
		URL:    fmt.Sprintf("/messages/%d", currentUserID),
		Data: map[string]any{
			"type":      "message",
			"messageId": message.ID.Hex(),
			"senderId":  currentUserID,
		},
	}
	if _, err := h.engine.Enqueue(c.Request().Context(), pushNotification); err != nil {
		// The message is already committed; a failed enqueue must not fail
		// the send. The worker drain pass cannot recover an uncreated
		// record, so surface it in the response meta instead.
		return c.JSON(http.StatusCreated, echo.Map{
			"success": true,
			"data":    echo.Map{"message": message},
			"meta":    echo.Map{"pushQueued": false},
		})
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": echo.Map{"message": message}})
}

// GetConversation returns the paginated message history with another user
func (h *MessageHandler) GetConversation(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	otherID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user ID")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	messages, err := h.messageRepository.GetConversation(c.Request().Context(), currentUserID, uint(otherID), int64((page-1)*limit), int64(limit))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data":    echo.Map{"messages": messages},
		"meta":    echo.Map{"currentPage": page, "itemsPerPage": limit},
	})
}
