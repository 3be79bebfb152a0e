package controllers

import (
	"net/http"

	"Gin_postgres_redis_loan_tracker/app"
	"Gin_postgres_redis_loan_tracker/logging"
	"Gin_postgres_redis_loan_tracker/services"

	"github.com/gin-gonic/gin"
)

type UserController struct {
	users *services.UserService
	log   logging.Logger
}

func GetUserController(users *services.UserService, log logging.Logger) *UserController {
	return &UserController{users: users, log: log}
}

// GET /api/users?roleId=
func (uc *UserController) ListUsers(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		res any
		err error
	)
	if roleID := c.Query("roleId"); roleID != "" {
		res, err = uc.users.ListByRole(ctx, roleID)
	} else {
		res, err = uc.users.List(ctx)
	}
	if err != nil {
		respondError(c, uc.log, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"users": res})
}

// GET /api/users/:id
func (uc *UserController) GetUser(c *gin.Context) {
	u, err := uc.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, uc.log, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

type createUserReq struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	RoleID   string `json:"roleId" binding:"required"`
	IsActive *bool  `json:"isActive"`
}

// POST /api/users
func (uc *UserController) CreateUser(c *gin.Context) {
	var in createUserReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "name, email, password and roleId are required")
		return
	}
	u, err := uc.users.Create(c.Request.Context(), app.ActorOf(c), services.CreateUserInput{
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
		RoleID:   in.RoleID,
		IsActive: in.IsActive,
	})
	if err != nil {
		respondError(c, uc.log, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"user": u})
}

type updateUserReq struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	RoleID   string `json:"roleId"`
	IsActive bool   `json:"isActive"`
	Password string `json:"password"`
}

// PUT /api/users/:id
func (uc *UserController) UpdateUser(c *gin.Context) {
	var in updateUserReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "name and email are required")
		return
	}
	u, err := uc.users.Update(c.Request.Context(), app.ActorOf(c), c.Param("id"), services.UpdateUserInput{
		Name:     in.Name,
		Email:    in.Email,
		RoleID:   in.RoleID,
		IsActive: in.IsActive,
		Password: in.Password,
	})
	if err != nil {
		respondError(c, uc.log, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

// DELETE /api/users/:id
func (uc *UserController) DeleteUser(c *gin.Context) {
	if err := uc.users.Delete(c.Request.Context(), app.ActorOf(c), c.Param("id")); err != nil {
		respondError(c, uc.log, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// PUT /api/users/:id/role
func (uc *UserController) ChangeRole(c *gin.Context) {
	var in struct {
		RoleID string `json:"roleId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "roleId is required")
		return
	}
	u, err := uc.users.ChangeRole(c.Request.Context(), app.ActorOf(c), c.Param("id"), in.RoleID)
	if err != nil {
		respondError(c, uc.log, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

// PUT /api/users/:id/active
func (uc *UserController) SetActive(c *gin.Context) {
	var in struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "active is required")
		return
	}
	u, err := uc.users.SetActive(c.Request.Context(), app.ActorOf(c), c.Param("id"), *in.Active)
	if err != nil {
		respondError(c, uc.log, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

// ===== roles =====

// GET /api/roles
func (uc *UserController) ListRoles(c *gin.Context) {
	roles, err := uc.users.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, uc.log, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"roles": roles})
}

// POST /api/roles
func (uc *UserController) CreateRole(c *gin.Context) {
	var in struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "name is required")
		return
	}
	r, err := uc.users.CreateRole(c.Request.Context(), app.ActorOf(c), in.Name, in.Description)
	if err != nil {
		respondError(c, uc.log, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"role": r})
}

// DELETE /api/roles/:id
func (uc *UserController) DeleteRole(c *gin.Context) {
	if err := uc.users.DeleteRole(c.Request.Context(), app.ActorOf(c), c.Param("id")); err != nil {
		respondError(c, uc.log, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
