package server

import (
	"net/http"

	"stackit/internal/auth"
	"stackit/internal/models"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListNotifications(c *gin.Context) {
	list, err := h.svc.Notifications.List(c.Request.Context(), auth.GetUserID(c), c.Query("unread") == "true", queryInt(c, "limit"))
	if err != nil {
		writeError(c, "list notifications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

func (h *Handler) MarkNotificationRead(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	n, err := h.svc.Notifications.MarkRead(c.Request.Context(), auth.GetUserID(c), id)
	if err != nil {
		writeError(c, "mark notification read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": n})
}

func (h *Handler) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.svc.Notifications.MarkAllRead(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		writeError(c, "mark all notifications read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *Handler) OpenDirectRoom(c *gin.Context) {
	var req struct {
		UserID uint `json:"userId" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	room, err := h.svc.Chat.OpenDirect(c.Request.Context(), auth.GetUserID(c), req.UserID)
	if err != nil {
		writeError(c, "open direct room", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room})
}

func (h *Handler) CreateGroupRoom(c *gin.Context) {
	var req struct {
		Name      string `json:"name" binding:"required"`
		MemberIDs []uint `json:"memberIds"`
	}
	if !bind(c, &req) {
		return
	}
	room, err := h.svc.Chat.CreateGroup(c.Request.Context(), auth.GetUserID(c), req.Name, req.MemberIDs)
	if err != nil {
		writeError(c, "create group room", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": room})
}

func (h *Handler) ListRooms(c *gin.Context) {
	rooms, err := h.svc.Chat.Rooms(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		writeError(c, "list rooms", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *Handler) ListMessages(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	msgs, err := h.svc.Chat.Messages(c.Request.Context(), auth.GetUserID(c), id, queryInt(c, "limit"), uint(max(queryInt(c, "before_id"), 0)))
	if err != nil {
		writeError(c, "list messages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage 与实时通道的 send-message 走同一条持久化加广播路径。
func (h *Handler) SendMessage(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req contentRequest
	if !bind(c, &req) {
		return
	}
	msg, err := h.svc.Chat.Send(c.Request.Context(), auth.GetUserID(c), id, req.Content)
	if err != nil {
		writeError(c, "send message", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

func (h *Handler) Leaderboard(c *gin.Context) {
	board, err := h.svc.Feed.Leaderboard(c.Request.Context())
	if err != nil {
		writeError(c, "leaderboard", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": board})
}

func (h *Handler) Activity(c *gin.Context) {
	act, err := h.svc.Feed.Activity(c.Request.Context())
	if err != nil {
		writeError(c, "activity", err)
		return
	}
	c.JSON(http.StatusOK, act)
}

func (h *Handler) Search(c *gin.Context) {
	hits, err := h.svc.Feed.Search(c.Request.Context(), c.Query("q"))
	if err != nil {
		writeError(c, "search", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": hits})
}

func (h *Handler) PendingQuestions(c *gin.Context) {
	list, err := h.svc.Admin.Pending(c.Request.Context())
	if err != nil {
		writeError(c, "pending questions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": list})
}

func (h *Handler) ApproveQuestion(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	q, err := h.svc.Admin.Approve(c.Request.Context(), actor(c), id)
	if err != nil {
		writeError(c, "approve question", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"question": q})
}

// AdminDelete 的 :kind 只接受 question、answer、comment、tag。
func (h *Handler) AdminDelete(c *gin.Context) {
	kind, err := models.ParseTargetKind(c.Param("kind"))
	if err != nil {
		badRequest(c, "unknown content type")
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Admin.Delete(c.Request.Context(), kind, id); err != nil {
		writeError(c, "admin delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListFlags(c *gin.Context) {
	flags, err := h.svc.Flags.List(c.Request.Context(), queryInt(c, "limit"))
	if err != nil {
		writeError(c, "list flags", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"flags": flags})
}
