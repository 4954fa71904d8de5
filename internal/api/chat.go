package api

import (
	"net/http" // HTTP status codes

	"passport_studio/internal/domain"     // Importing domain models
	"passport_studio/internal/imagegen"   // Assistant turns
	"passport_studio/internal/middleware" // Session user
	"passport_studio/internal/service"    // Chat and assistant services

	"github.com/gin-gonic/gin" // Gin web framework
)

// MessageRequest is a new support message
type MessageRequest struct {
	Text       string             `json:"text"`       // May be empty when an attachment is sent
	Attachment *domain.Attachment `json:"attachment"` // Optional image or voice note
}

// AssistantRequest is a question to the support assistant
type AssistantRequest struct {
	Question string          `json:"question" binding:"required"` // Latest user message
	History  []imagegen.Turn `json:"history"`                     // Earlier turns, oldest first
}

// GetChatHandler opens the caller's own conversation, acknowledging operator replies
func GetChatHandler(chat *service.Chat) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := middleware.CurrentUser(c)
		msgs, err := chat.Open(c.Request.Context(), user.ID, false)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	}
}

// PostChatHandler appends a customer message to the caller's conversation
func PostChatHandler(chat *service.Chat) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user := middleware.CurrentUser(c)
		msg, err := chat.Post(c.Request.Context(), service.PostInput{
			ConversationKey: user.ID, // Customers only ever write to their own thread
			SenderName:      user.Name,
			Text:            req.Text,
			Attachment:      req.Attachment,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

// ListChatsHandler returns the operator inbox; customer messages become delivered
func ListChatsHandler(chat *service.Chat) gin.HandlerFunc {
	return func(c *gin.Context) {
		convs, err := chat.ListConversations(c.Request.Context(), true)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"conversations": service.Summarize(convs)})
	}
}

// OpenChatHandler returns one conversation and marks the customer's messages seen
func OpenChatHandler(chat *service.Chat) gin.HandlerFunc {
	return func(c *gin.Context) {
		msgs, err := chat.Open(c.Request.Context(), c.Param("key"), true)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	}
}

// ReplyChatHandler posts an operator reply into a customer's conversation
func ReplyChatHandler(chat *service.Chat) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		admin := middleware.CurrentUser(c)
		msg, err := chat.Post(c.Request.Context(), service.PostInput{
			ConversationKey: c.Param("key"),
			SenderName:      admin.Name,
			Text:            req.Text,
			IsFromAdmin:     true,
			Attachment:      req.Attachment,
		})
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

// AssistantHandler answers a support question with the text model
func AssistantHandler(assistant *service.Assistant) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AssistantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		answer, err := assistant.Ask(c.Request.Context(), req.History, req.Question)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"answer": answer})
	}
}
