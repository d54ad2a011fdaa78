package server

import (
	"net/http"

	"stackit/internal/auth"
	"stackit/internal/models"
	"stackit/internal/service"

	"github.com/gin-gonic/gin"
)

type questionRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Tags        []string `json:"tags"`
}

func (r questionRequest) input() service.QuestionInput {
	return service.QuestionInput{Title: r.Title, Description: r.Description, Tags: r.Tags}
}

func (h *Handler) CreateQuestion(c *gin.Context) {
	var req questionRequest
	if !bind(c, &req) {
		return
	}
	q, err := h.svc.Questions.Create(c.Request.Context(), actor(c), req.input())
	if err != nil {
		writeError(c, "create question", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"question": q})
}

func (h *Handler) ListQuestions(c *gin.Context) {
	list, err := h.svc.Questions.List(c.Request.Context(), service.ListQuery{
		Tag:    c.Query("tag"),
		Limit:  queryInt(c, "limit"),
		Offset: queryInt(c, "offset"),
	})
	if err != nil {
		writeError(c, "list questions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": list})
}

func (h *Handler) GetQuestion(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	q, err := h.svc.Questions.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		writeError(c, "get question", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"question": q})
}

func (h *Handler) UpdateQuestion(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req questionRequest
	if !bind(c, &req) {
		return
	}
	q, err := h.svc.Questions.Update(c.Request.Context(), actor(c), id, req.input())
	if err != nil {
		writeError(c, "update question", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"question": q})
}

func (h *Handler) DeleteQuestion(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Questions.Delete(c.Request.Context(), actor(c), id); err != nil {
		writeError(c, "delete question", err)
		return
	}
	c.Status(http.StatusNoContent)
}

type contentRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *Handler) CreateAnswer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req contentRequest
	if !bind(c, &req) {
		return
	}
	a, err := h.svc.Answers.Create(c.Request.Context(), actor(c), id, req.Content)
	if err != nil {
		writeError(c, "create answer", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"answer": a})
}

func (h *Handler) UpdateAnswer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req contentRequest
	if !bind(c, &req) {
		return
	}
	a, err := h.svc.Answers.Update(c.Request.Context(), actor(c), id, req.Content)
	if err != nil {
		writeError(c, "update answer", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": a})
}

func (h *Handler) DeleteAnswer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Answers.Delete(c.Request.Context(), actor(c), id); err != nil {
		writeError(c, "delete answer", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) AcceptAnswer(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	a, err := h.svc.Answers.Accept(c.Request.Context(), actor(c), id)
	if err != nil {
		writeError(c, "accept answer", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"answer": a})
}

func (h *Handler) Vote(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req struct {
		Type models.VoteType `json:"type" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	sum, err := h.svc.Votes.Cast(c.Request.Context(), auth.GetUserID(c), id, req.Type)
	if err != nil {
		writeError(c, "vote", err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) VoteSummary(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	sum, err := h.svc.Votes.Summary(c.Request.Context(), auth.GetUserID(c), id)
	if err != nil {
		writeError(c, "vote summary", err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) CreateComment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req contentRequest
	if !bind(c, &req) {
		return
	}
	cm, err := h.svc.Comments.Create(c.Request.Context(), actor(c), id, req.Content)
	if err != nil {
		writeError(c, "create comment", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": cm})
}

func (h *Handler) ListComments(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	list, err := h.svc.Comments.ListByAnswer(c.Request.Context(), id)
	if err != nil {
		writeError(c, "list comments", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": list})
}

func (h *Handler) DeleteComment(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Comments.Delete(c.Request.Context(), actor(c), id); err != nil {
		writeError(c, "delete comment", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListTags(c *gin.Context) {
	tags, err := h.svc.Tags.List(c.Request.Context())
	if err != nil {
		writeError(c, "list tags", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (h *Handler) CreateTag(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if !bind(c, &req) {
		return
	}
	tag, err := h.svc.Tags.Create(c.Request.Context(), req.Name)
	if err != nil {
		writeError(c, "create tag", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"tag": tag})
}

func (h *Handler) FollowTag(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	following, err := h.svc.Tags.ToggleFollow(c.Request.Context(), auth.GetUserID(c), id)
	if err != nil {
		writeError(c, "follow tag", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tagId": id, "following": following})
}

func (h *Handler) FollowedTags(c *gin.Context) {
	tags, err := h.svc.Tags.Followed(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		writeError(c, "followed tags", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tags": tags})
}

func (h *Handler) CreateFlag(c *gin.Context) {
	var req struct {
		TargetType string `json:"targetType" binding:"required"`
		TargetID   uint   `json:"targetId" binding:"required"`
		Reason     string `json:"reason" binding:"required,max=1000"`
	}
	if !bind(c, &req) {
		return
	}
	f, err := h.svc.Flags.Create(c.Request.Context(), actor(c), service.FlagInput{
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Reason:     req.Reason,
	})
	if err != nil {
		writeError(c, "create flag", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"flag": f})
}
