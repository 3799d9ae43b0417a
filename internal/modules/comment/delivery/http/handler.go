package handler

import (
	"net/http"

	commentDto "anoa.com/anomologita/internal/modules/comment/dto"
	comment "anoa.com/anomologita/internal/modules/comment/service"
	"anoa.com/anomologita/pkg/apperror"
	"anoa.com/anomologita/pkg/dto"
	"anoa.com/anomologita/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type CommentHandler struct {
	service comment.CommentService
}

func NewCommentHandler(service comment.CommentService) *CommentHandler {
	return &CommentHandler{service: service}
}

func (h *CommentHandler) CreateComment(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req commentDto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	resp, err := h.service.CreateComment(c.Request.Context(), userID, req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *CommentHandler) GetCommentsByPostID(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("postId"))
	if err != nil {
		response.ResponseError(c, apperror.InvalidInput("invalid post id"))
		return
	}

	var page dto.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.ValidationError(c, err)
		return
	}

	comments, err := h.service.GetCommentsByPostID(c.Request.Context(), postID, page)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, comments)
}

func (h *CommentHandler) GetCommentByID(c *gin.Context) {
	commentID, err := uuid.Parse(c.Param("commentId"))
	if err != nil {
		response.ResponseError(c, apperror.InvalidInput("invalid comment id"))
		return
	}

	resp, err := h.service.GetCommentByID(c.Request.Context(), commentID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *CommentHandler) DeleteComment(c *gin.Context) {
	commentID, err := uuid.Parse(c.Param("commentId"))
	if err != nil {
		response.ResponseError(c, apperror.InvalidInput("invalid comment id"))
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.DeleteComment(c.Request.Context(), userID, commentID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
