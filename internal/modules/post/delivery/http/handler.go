package handler

import (
	"mime/multipart"
	"net/http"
	"strings"

	postDto "anoa.com/anomologita/internal/modules/post/dto"
	post "anoa.com/anomologita/internal/modules/post/service"
	"anoa.com/anomologita/pkg/apperror"
	"anoa.com/anomologita/pkg/dto"
	"anoa.com/anomologita/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxImageSize = 10 << 20

type PostHandler struct {
	service post.PostService
}

func NewPostHandler(service post.PostService) *PostHandler {
	return &PostHandler{service: service}
}

func (h *PostHandler) CreatePost(c *gin.Context) {
	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	var req postDto.CreatePostRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	input := postDto.CreatePostInput{Content: req.Content}
	if req.ImageFile != nil {
		if err := validateImage(req.ImageFile); err != nil {
			response.ResponseError(c, err)
			return
		}
		f, err := req.ImageFile.Open()
		if err != nil {
			response.ResponseError(c, apperror.InvalidInput("could not read image file"))
			return
		}
		defer f.Close()
		input.Image = &postDto.ImageFile{Reader: f, FileName: req.ImageFile.Filename}
	}

	resp, err := h.service.CreatePost(c.Request.Context(), userID, input)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func validateImage(fh *multipart.FileHeader) error {
	if fh.Size > maxImageSize {
		return apperror.InvalidInput("image must not exceed 10MB")
	}
	if ct := fh.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return apperror.InvalidInput("imageFile must be an image")
	}
	return nil
}

func (h *PostHandler) GetAllPosts(c *gin.Context) {
	var page dto.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.ValidationError(c, err)
		return
	}

	posts, err := h.service.GetAllPosts(c.Request.Context(), page)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, posts)
}

func (h *PostHandler) GetPostByID(c *gin.Context) {
	postID, ok := parseID(c, "id", "invalid post id")
	if !ok {
		return
	}

	p, err := h.service.GetPostByID(c.Request.Context(), postID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func (h *PostHandler) GetPostsByUserID(c *gin.Context) {
	userID, ok := parseID(c, "userId", "invalid user id")
	if !ok {
		return
	}

	var page dto.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.ValidationError(c, err)
		return
	}

	posts, err := h.service.GetPostsByUserID(c.Request.Context(), userID, page)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, posts)
}

func (h *PostHandler) GetPostsByUniversityID(c *gin.Context) {
	universityID, ok := parseID(c, "universityId", "invalid university id")
	if !ok {
		return
	}

	var page dto.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.ValidationError(c, err)
		return
	}

	posts, err := h.service.GetPostsByUniversityID(c.Request.Context(), universityID, page)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, posts)
}

func (h *PostHandler) SearchPosts(c *gin.Context) {
	var req postDto.SearchPostsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	posts, err := h.service.SearchPosts(c.Request.Context(), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, posts)
}

func (h *PostHandler) DeletePost(c *gin.Context) {
	postID, ok := parseID(c, "id", "invalid post id")
	if !ok {
		return
	}

	userID, err := response.GetUserID(c)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	if err := h.service.DeletePost(c.Request.Context(), userID, postID); err != nil {
		response.ResponseError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func parseID(c *gin.Context, param, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.ResponseError(c, apperror.InvalidInput(message))
		return uuid.Nil, false
	}
	return id, true
}
