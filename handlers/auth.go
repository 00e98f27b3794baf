package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"botfactory/apperr"
	"botfactory/database/queries"
	"botfactory/logging"
	"botfactory/middleware"
	"botfactory/models"
)

// AuthHandler — регистрация, вход, обновление токенов, профиль.
type AuthHandler struct {
	users *queries.Users
	auth  *middleware.Auth
}

func NewAuthHandler(users *queries.Users, auth *middleware.Auth) *AuthHandler {
	return &AuthHandler{users: users, auth: auth}
}

// Register создаёт нового пользователя.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Username string `json:"username" binding:"required,min=3,max=64"`
		Password string `json:"password" binding:"required,min=8"`
		FullName string `json:"fullName"`
		Phone    string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation(err.Error()))
		return
	}

	req.Username = strings.ToLower(req.Username)

	emailTaken, usernameTaken, err := h.users.ExistsByEmailOrUsername(c.Request.Context(), req.Email, req.Username)
	if err != nil {
		fail(c, err)
		return
	}
	if emailTaken {
		fail(c, apperr.AlreadyExists("Bu email"))
		return
	}
	if usernameTaken {
		fail(c, apperr.AlreadyExists("Bu username"))
		return
	}

	hash, err := queries.HashPassword(req.Password)
	if err != nil {
		fail(c, err)
		return
	}

	user := &models.User{
		Email:          req.Email,
		Username:       req.Username,
		HashedPassword: hash,
		FullName:       req.FullName,
		Phone:          req.Phone,
	}
	if err := h.users.Create(c.Request.Context(), user); err != nil {
		fail(c, err)
		return
	}

	logging.API.Info("новый пользователь",
		zap.String("username", user.Username), zap.String("email", user.Email))
	c.JSON(http.StatusCreated, user)
}

// Login проверяет пароль и выдаёт пару токенов.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation(err.Error()))
		return
	}

	user, err := h.users.ByEmail(c.Request.Context(), req.Email)
	if err != nil {
		fail(c, err)
		return
	}
	if user == nil || queries.VerifyPassword(req.Password, user.HashedPassword) != nil {
		fail(c, apperr.Authentication(""))
		return
	}
	if !user.IsActive {
		fail(c, apperr.Authorization("Foydalanuvchi bloklangan"))
		return
	}

	if err := h.users.TouchLogin(c.Request.Context(), user.ID); err != nil {
		logging.API.Warn("не удалось обновить last_login", zap.Error(err))
	}

	pair, err := h.auth.GenerateTokenPair(user.ID)
	if err != nil {
		fail(c, err)
		return
	}

	logging.API.Info("вход выполнен", zap.String("username", user.Username))
	c.JSON(http.StatusOK, pair)
}

// Refresh выдаёт новую пару по refresh-токену.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation(err.Error()))
		return
	}

	claims, err := h.auth.VerifyToken(req.RefreshToken, middleware.TokenRefresh)
	if err != nil {
		fail(c, apperr.Authentication("Noto'g'ri yoki muddati o'tgan refresh token"))
		return
	}

	user, err := h.users.ByID(c.Request.Context(), claims.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	if user == nil || !user.IsActive {
		fail(c, apperr.Authentication("Foydalanuvchi topilmadi yoki bloklangan"))
		return
	}

	pair, err := h.auth.GenerateTokenPair(user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Me возвращает профиль текущего пользователя.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.users.ByID(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	if user == nil {
		fail(c, apperr.NotFound("Foydalanuvchi"))
		return
	}
	c.JSON(http.StatusOK, user)
}

// ChangePassword меняет пароль после проверки текущего.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"currentPassword" binding:"required"`
		NewPassword     string `json:"newPassword" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation(err.Error()))
		return
	}

	user, err := h.users.ByID(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	if user == nil {
		fail(c, apperr.NotFound("Foydalanuvchi"))
		return
	}
	if queries.VerifyPassword(req.CurrentPassword, user.HashedPassword) != nil {
		fail(c, apperr.Validation("Joriy parol noto'g'ri"))
		return
	}

	hash, err := queries.HashPassword(req.NewPassword)
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.users.UpdatePassword(c.Request.Context(), user.ID, hash); err != nil {
		fail(c, err)
		return
	}

	logging.API.Info("пароль изменён", zap.String("username", user.Username))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Parol muvaffaqiyatli o'zgartirildi"})
}
