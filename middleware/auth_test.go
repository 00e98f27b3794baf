package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(accessTTL, refreshTTL time.Duration) *Auth {
	return NewAuth("test-secret", accessTTL, refreshTTL)
}

func TestGenerateTokenPair(t *testing.T) {
	a := newTestAuth(30*time.Minute, 7*24*time.Hour)

	pair, err := a.GenerateTokenPair(42)
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.Equal(t, int64(1800), pair.ExpiresIn)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	claims, err := a.VerifyToken(pair.AccessToken, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, TokenAccess, claims.TokenType)
	assert.Equal(t, "botfactory", claims.Issuer)

	refreshClaims, err := a.VerifyToken(pair.RefreshToken, TokenRefresh)
	require.NoError(t, err)
	assert.Equal(t, int64(42), refreshClaims.UserID)
}

func TestVerifyTokenRejectsWrongType(t *testing.T) {
	a := newTestAuth(30*time.Minute, 7*24*time.Hour)
	pair, err := a.GenerateTokenPair(42)
	require.NoError(t, err)

	// Refresh-токен не проходит как access и наоборот.
	_, err = a.VerifyToken(pair.RefreshToken, TokenAccess)
	assert.Error(t, err)
	_, err = a.VerifyToken(pair.AccessToken, TokenRefresh)
	assert.Error(t, err)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	a := newTestAuth(-time.Minute, 7*24*time.Hour)
	pair, err := a.GenerateTokenPair(42)
	require.NoError(t, err)

	_, err = a.VerifyToken(pair.AccessToken, TokenAccess)
	assert.Error(t, err)
}

func TestVerifyTokenRejectsForeignSignature(t *testing.T) {
	a := newTestAuth(30*time.Minute, time.Hour)
	other := NewAuth("another-secret", 30*time.Minute, time.Hour)

	pair, err := other.GenerateTokenPair(42)
	require.NoError(t, err)

	_, err = a.VerifyToken(pair.AccessToken, TokenAccess)
	assert.Error(t, err)
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	a := newTestAuth(30*time.Minute, time.Hour)
	_, err := a.VerifyToken("это.не.jwt", TokenAccess)
	assert.Error(t, err)
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := newTestAuth(30*time.Minute, time.Hour)

	r := gin.New()
	r.GET("/me", a.RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"userId": UserID(c)})
	})

	// Без заголовка.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// С битым токеном.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer мусор")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "AUTHENTICATION_ERROR")

	// С валидным access-токеном.
	pair, err := a.GenerateTokenPair(42)
	require.NoError(t, err)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userId":42`)
}
