package handler

import (
	"net/http"

	"anoa.com/anomologita/internal/modules/university/dto"
	university "anoa.com/anomologita/internal/modules/university/service"
	commonDto "anoa.com/anomologita/pkg/dto"
	"anoa.com/anomologita/pkg/response"
	"github.com/gin-gonic/gin"
)

type UniversityHandler struct {
	service university.UniversityService
}

func NewUniversityHandler(service university.UniversityService) *UniversityHandler {
	return &UniversityHandler{service: service}
}

func (h *UniversityHandler) GetAll(c *gin.Context) {
	var page commonDto.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		response.ValidationError(c, err)
		return
	}

	universities, err := h.service.GetAll(c.Request.Context(), page)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, universities)
}

func (h *UniversityHandler) CreateUniversity(c *gin.Context) {
	var req dto.CreateUniversityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	created, err := h.service.CreateUniversity(c.Request.Context(), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}
