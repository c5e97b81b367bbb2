package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/nexa-labs/wavechat-backend/internal/models"
	"github.com/nexa-labs/wavechat-backend/internal/push"
	"github.com/nexa-labs/wavechat-backend/internal/repositories"
)

// ReactionHandler handles message reaction HTTP requests
type ReactionHandler struct {
	reactionRepository     repositories.ReactionRepository
	messageRepository      repositories.MessageRepository
	userRepository         repositories.UserRepository
	notificationRepository repositories.NotificationRepository
	engine                 *push.Engine
}

// NewReactionHandler creates a new ReactionHandler
func NewReactionHandler(reactionRepo repositories.ReactionRepository, messageRepo repositories.MessageRepository, userRepo repositories.UserRepository, notifRepo repositories.NotificationRepository, engine *push.Engine) *ReactionHandler {
	return &ReactionHandler{
		reactionRepository:     reactionRepo,
		messageRepository:      messageRepo,
		userRepository:         userRepo,
		notificationRepository: notifRepo,
		engine:                 engine,
	}
}

// RegisterReactionRoutes registers reaction routes
func (h *ReactionHandler) RegisterReactionRoutes(g *echo.Group) {
	g.POST("/messages/:id/reactions", h.AddReaction)
	g.DELETE("/messages/:id/reactions", h.RemoveReaction)
}

// AddReaction records an emoji reaction on a message and notifies its
// author via the feed and a push enqueue.
func (h *ReactionHandler) AddReaction(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	messageID := c.Param("id")

	var req models.CreateReactionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	message, err := h.messageRepository.GetMessageByID(c.Request().Context(), messageID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Message not found")
	}
	if message.SenderID != currentUserID && message.RecipientID != currentUserID {
		return echo.NewHTTPError(http.StatusForbidden, "Not a participant in this conversation")
	}

	reacted, err := h.reactionRepository.HasUserReacted(messageID, currentUserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if reacted {
		return echo.NewHTTPError(http.StatusConflict, "Already reacted to this message")
	}

	reaction := &models.Reaction{
		MessageID: messageID,
		UserID:    currentUserID,
		Emoji:     req.Emoji,
	}
	if err := h.reactionRepository.CreateReaction(reaction); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.messageRepository.IncrementReactionsCount(c.Request().Context(), messageID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// Self-reactions on own messages skip the notification fan-out
	if message.SenderID != currentUserID {
		actor, err := h.userRepository.GetUserByID(currentUserID)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		feedNotification := &models.Notification{
			Type:        "reaction",
			ActorID:     currentUserID,
			RecipientID: message.SenderID,
			TargetID:    messageID,
			TargetType:  "message",
			Message:     fmt.Sprintf("%s reacted %s to your message", actor.Name, req.Emoji),
		}
		if err := h.notificationRepository.CreateNotification(feedNotification); err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}

		pushNotification := &models.PendingNotification{
			UserID: message.SenderID,
			Title:  actor.Name,
			Body:   fmt.Sprintf("Reacted %s to your message", req.Emoji),
			Tag:    fmt.Sprintf("reaction-%s", messageID),
			Data: map[string]any{
				"type":      "reaction",
				"messageId": messageID,
				"emoji":     req.Emoji,
			},
		}
		// Best effort, the reaction itself is already committed
		h.engine.Enqueue(c.Request().Context(), pushNotification)
	}

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": echo.Map{"reaction": reaction}})
}

// RemoveReaction removes the caller's reaction from a message
func (h *ReactionHandler) RemoveReaction(c echo.Context) error {
	currentUserID := getUserIDFromContext(c)
	if currentUserID == 0 {
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}

	messageID := c.Param("id")

	if err := h.reactionRepository.DeleteReaction(messageID, currentUserID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Reaction not found")
	}
	if err := h.messageRepository.DecrementReactionsCount(c.Request().Context(), messageID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"removed": true}})
}
