package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"gorm.io/gorm"

	"github.com/gdg-garage/fitclass-api/internal/auth"
	"github.com/gdg-garage/fitclass-api/internal/models"
)

// CategoryHandler manages the exercise categories events are filed under.
type CategoryHandler struct {
	db          *gorm.DB
	authHandler *auth.AuthHandler
}

func NewCategoryHandler(db *gorm.DB, authHandler *auth.AuthHandler) *CategoryHandler {
	return &CategoryHandler{db: db, authHandler: authHandler}
}

type CreateCategoryInput struct {
	auth.AuthInput
	Body struct {
		Name        string `json:"name" minLength:"1" maxLength:"120" doc:"Unique category name"`
		Description string `json:"description,omitempty"`
		IsActive    *bool  `json:"isActive,omitempty" doc:"Defaults to true"`
	}
}

type CategoryOutput struct {
	Body CategoryResponse
}

func (h *CategoryHandler) HandleCreate(ctx context.Context, input *CreateCategoryInput) (*CategoryOutput, error) {
	if _, err := h.authHandler.AuthorizeAdmin(ctx, input.AuthInput); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Body.Name)
	if name == "" {
		return nil, huma.Error422UnprocessableEntity("Category name must not be blank")
	}
	cat := models.ExerciseCategory{
		Name:        name,
		Description: input.Body.Description,
		IsActive:    input.Body.IsActive == nil || *input.Body.IsActive,
	}
	if err := h.db.WithContext(ctx).Create(&cat).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, huma.Error409Conflict("Category name already exists")
		}
		return nil, huma.Error500InternalServerError("Failed to create category")
	}

	return &CategoryOutput{Body: toCategory(cat)}, nil
}

type ListCategoriesInput struct {
	ActiveOnly bool `query:"activeOnly" doc:"Only return active categories"`
}

type ListCategoriesOutput struct {
	Body []CategoryResponse
}

func (h *CategoryHandler) HandleList(ctx context.Context, input *ListCategoriesInput) (*ListCategoriesOutput, error) {
	q := h.db.WithContext(ctx)
	if input.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	var cats []models.ExerciseCategory
	if err := q.Order("name asc").Find(&cats).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to list categories")
	}

	res := &ListCategoriesOutput{Body: make([]CategoryResponse, 0, len(cats))}
	for _, c := range cats {
		res.Body = append(res.Body, toCategory(c))
	}
	return res, nil
}

type CategoryIDInput struct {
	ID uint `path:"id"`
}

func (h *CategoryHandler) HandleGet(ctx context.Context, input *CategoryIDInput) (*CategoryOutput, error) {
	cat, err := h.find(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &CategoryOutput{Body: toCategory(*cat)}, nil
}

type UpdateCategoryInput struct {
	auth.AuthInput
	ID   uint `path:"id"`
	Body struct {
		Name        *string `json:"name,omitempty" minLength:"1" maxLength:"120"`
		Description *string `json:"description,omitempty"`
		IsActive    *bool   `json:"isActive,omitempty"`
	}
}

func (h *CategoryHandler) HandleUpdate(ctx context.Context, input *UpdateCategoryInput) (*CategoryOutput, error) {
	if _, err := h.authHandler.AuthorizeAdmin(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	cat, err := h.find(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Body.Name != nil {
		name := strings.TrimSpace(*input.Body.Name)
		if name == "" {
			return nil, huma.Error422UnprocessableEntity("Category name must not be blank")
		}
		cat.Name = name
	}
	if input.Body.Description != nil {
		cat.Description = *input.Body.Description
	}
	if input.Body.IsActive != nil {
		cat.IsActive = *input.Body.IsActive
	}

	if err := h.db.WithContext(ctx).Save(cat).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, huma.Error409Conflict("Category name already exists")
		}
		return nil, huma.Error500InternalServerError("Failed to update category")
	}
	return &CategoryOutput{Body: toCategory(*cat)}, nil
}

type DeleteCategoryInput struct {
	auth.AuthInput
	ID uint `path:"id"`
}

// HandleDelete refuses to remove a category that still has events filed under it.
func (h *CategoryHandler) HandleDelete(ctx context.Context, input *DeleteCategoryInput) (*struct{}, error) {
	if _, err := h.authHandler.AuthorizeAdmin(ctx, input.AuthInput); err != nil {
		return nil, err
	}
	if _, err := h.find(ctx, input.ID); err != nil {
		return nil, err
	}

	var inUse int64
	if err := h.db.WithContext(ctx).Unscoped().Model(&models.Event{}).
		Where("category_id = ?", input.ID).Count(&inUse).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to delete category")
	}
	if inUse > 0 {
		return nil, huma.Error409Conflict("Category is used by existing events")
	}

	if err := h.db.WithContext(ctx).Delete(&models.ExerciseCategory{}, input.ID).Error; err != nil {
		return nil, huma.Error500InternalServerError("Failed to delete category")
	}
	return nil, nil
}

func (h *CategoryHandler) find(ctx context.Context, id uint) (*models.ExerciseCategory, error) {
	var cat models.ExerciseCategory
	if err := h.db.WithContext(ctx).First(&cat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound("Category not found")
		}
		return nil, huma.Error500InternalServerError("Failed to load category")
	}
	return &cat, nil
}
