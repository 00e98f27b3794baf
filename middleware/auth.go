package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"botfactory/apperr"
)

// Типы токенов: access для API, refresh только для обновления пары.
const (
	TokenAccess  = "access"
	TokenRefresh = "refresh"
)

// JWTClaims — полезная нагрузка токена.
type JWTClaims struct {
	UserID    int64  `json:"userId"`
	TokenType string `json:"tokenType"`
	jwt.RegisteredClaims
}

// TokenPair — пара access/refresh, выдаваемая при входе и обновлении.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"` // секунды жизни access-токена
}

// Auth подписывает и проверяет JWT.
type Auth struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuth(secret string, accessTTL, refreshTTL time.Duration) *Auth {
	return &Auth{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

// GenerateTokenPair выдаёт новую пару токенов для пользователя.
func (a *Auth) GenerateTokenPair(userID int64) (*TokenPair, error) {
	access, err := a.sign(userID, TokenAccess, a.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := a.sign(userID, TokenRefresh, a.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(a.accessTTL.Seconds()),
	}, nil
}

func (a *Auth) sign(userID int64, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		UserID:    userID,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "botfactory",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("Auth.sign: %w", err)
	}
	return signed, nil
}

// VerifyToken проверяет подпись, срок и тип токена.
func (a *Auth) VerifyToken(tokenString, expectedType string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("неожиданный метод подписи: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("недействительный токен")
	}
	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, errors.New("неверный формат токена")
	}
	if claims.TokenType != expectedType {
		return nil, fmt.Errorf("ожидался %s-токен", expectedType)
	}
	return claims, nil
}

// RequireAuth проверяет access-токен и кладёт userID в контекст запроса.
func (a *Auth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			unauthorized(c, "Avtorizatsiya talab qilinadi")
			return
		}

		tokenString := strings.Replace(authHeader, "Bearer ", "", 1)
		claims, err := a.VerifyToken(tokenString, TokenAccess)
		if err != nil {
			unauthorized(c, "Noto'g'ri yoki muddati o'tgan token")
			return
		}

		c.Set("userID", claims.UserID)
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	e := apperr.Authentication(message)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"code": e.Code, "message": e.Message},
	})
}

// UserID достаёт ID пользователя, положенный RequireAuth.
func UserID(c *gin.Context) int64 {
	v, _ := c.Get("userID")
	id, _ := v.(int64)
	return id
}
