package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/workhive/chat-server/internal/middleware"
	"github.com/workhive/chat-server/internal/service"
	"github.com/workhive/chat-server/pkg/errcode"
	"github.com/workhive/chat-server/pkg/response"
)

// MessageHandler handles message-related requests
type MessageHandler struct {
	chatService *service.ChatService
	convService *service.ConversationService
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(chatService *service.ChatService, convService *service.ConversationService) *MessageHandler {
	return &MessageHandler{
		chatService: chatService,
		convService: convService,
	}
}

// SendMessage handles send message request (HTTP fallback for the socket
// event, same pipeline)
func (h *MessageHandler) SendMessage(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req service.SendMessageRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	msg, err := h.chatService.SendMessage(ctx, userId, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, msg.ToMessageInfo())
}

// GetHistory handles message history request
func (h *MessageHandler) GetHistory(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	conversationId := c.Query("conversation_id")
	if conversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	beforeId := c.Query("before_id")
	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, _ = strconv.Atoi(limitStr)
	}

	messages, err := h.convService.GetHistory(ctx, userId, conversationId, beforeId, limit)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, messages)
}
