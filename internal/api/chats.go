package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"support-chat/backend/internal/chat"
	"support-chat/backend/internal/models"
	"support-chat/backend/internal/store"
	"support-chat/backend/pkg/logger"
)

// ChatController exposes chat history and moderation over HTTP. The same
// moderation operations are reachable over the websocket call surface; both
// paths converge on the relay so connected parties always hear about changes
// and the relay's moderation hooks fire either way.
type ChatController struct {
	relay *chat.Relay
	store store.Store
	log   *logger.Logger
}

// NewChatController creates a new chat controller.
func NewChatController(relay *chat.Relay, st store.Store, log *logger.Logger) *ChatController {
	return &ChatController{
		relay: relay,
		store: st,
		log:   log,
	}
}

// RegisterRoutes registers the chat routes.
func (cc *ChatController) RegisterRoutes(router *gin.Engine) {
	chatGroup := router.Group("/api/chats")
	{
		chatGroup.GET("/:chatId/messages", cc.GetMessages)
		chatGroup.POST("/:chatId/messages/:messageId/delete", cc.DeleteMessage)
		chatGroup.POST("/:chatId/clear", cc.ClearChat)
	}
}

// GetMessages returns the full ordered history of a chat, deleted rows
// included with their flag set.
func (cc *ChatController) GetMessages(ctx *gin.Context) {
	chatID := ctx.Param("chatId")
	if chatID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Chat ID is required"})
		return
	}

	msgs, err := cc.store.GetChat(ctx.Request.Context(), chatID)
	if err != nil {
		cc.log.LogError(err, "failed to load chat history", "chatId", chatID)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Error retrieving messages"})
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"chatId":   chatID,
		"messages": msgs,
	})
}

// DeleteMessage soft-deletes one message and notifies connected parties.
func (cc *ChatController) DeleteMessage(ctx *gin.Context) {
	chatID := ctx.Param("chatId")
	messageID := ctx.Param("messageId")
	if chatID == "" || messageID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Chat ID and message ID are required"})
		return
	}

	deleted := cc.relay.DeleteMessage(ctx.Request.Context(), messageID, chatID)
	if !deleted {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"messageId": messageID,
		"deleted":   true,
	})
}

// ClearChat soft-deletes every remaining message in a chat.
func (cc *ChatController) ClearChat(ctx *gin.Context) {
	chatID := ctx.Param("chatId")
	if chatID == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Chat ID is required"})
		return
	}

	cleared := cc.relay.ClearChat(ctx.Request.Context(), chatID)
	ctx.JSON(http.StatusOK, gin.H{
		"chatId":  chatID,
		"cleared": cleared,
	})
}
