package controllers

import (
	"net/http"
	"strconv"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/gin-gonic/gin"
)

type itemReq struct {
	Code     string `json:"code" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Category string `json:"category" binding:"required"`
	Location string `json:"location"`
	Status   string `json:"status"`
}

func (r itemReq) input() services.ItemInput {
	return services.ItemInput{
		Code:     r.Code,
		Name:     r.Name,
		Category: r.Category,
		Location: r.Location,
		Status:   r.Status,
	}
}

// GET /api/items?search=&category=&status=&sortBy=&sortOrder=&page=&pageSize=
func (s *Srv) ListItems(c *gin.Context) {
	// unparsable numbers fall through as 0 and normalize to the defaults
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("pageSize"))
	res, err := s.Svc.Items.Query(c.Request.Context(), services.ItemFilter{
		Search:    c.Query("search"),
		Category:  c.Query("category"),
		Status:    c.Query("status"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Page:      page,
		PageSize:  size,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/items/categories
func (s *Srv) ItemCategories(c *gin.Context) {
	cats, err := s.Svc.Items.Categories(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"categories": cats})
}

// GET /api/items/:id
func (s *Srv) GetItem(c *gin.Context) {
	it, err := s.Svc.Items.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"item": it})
}

// GET /api/items/:id/availability
func (s *Srv) ItemAvailability(c *gin.Context) {
	ok, err := s.Svc.Items.IsAvailableForLoan(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"available": ok})
}

// POST /api/items
func (s *Srv) CreateItem(c *gin.Context) {
	var in itemReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "code, name and category are required")
		return
	}
	it, err := s.Svc.Items.Create(c.Request.Context(), app.ActorOf(c), in.input())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"item": it})
}

// PUT /api/items/:id
func (s *Srv) UpdateItem(c *gin.Context) {
	var in itemReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "code, name and category are required")
		return
	}
	it, err := s.Svc.Items.Update(c.Request.Context(), app.ActorOf(c), c.Param("id"), in.input())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"item": it})
}

// DELETE /api/items/:id
func (s *Srv) DeleteItem(c *gin.Context) {
	if err := s.Svc.Items.Delete(c.Request.Context(), app.ActorOf(c), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
