package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agenthands/kindred/internal/core/model"
	"github.com/agenthands/kindred/internal/driver"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService(t *testing.T) {
	ts := NewTokenService([]byte("secret"), "kindred", time.Hour)

	token, err := ts.Issue("u1")
	require.NoError(t, err)

	claims, err := ts.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "u1", claims.Subject)

	_, err = NewTokenService([]byte("other"), "kindred", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewTokenService([]byte("secret"), "someone-else", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ts.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenServiceExpiry(t *testing.T) {
	ts := NewTokenService([]byte("secret"), "kindred", time.Minute)
	issued := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ts.now = func() time.Time { return issued }

	token, err := ts.Issue("u1")
	require.NoError(t, err)

	ts.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = ts.Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenServiceRejectsNoneAlg(t *testing.T) {
	ts := NewTokenService([]byte("secret"), "", time.Hour)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u1"})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ts.Validate(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ts := NewTokenService([]byte("secret"), "kindred", time.Hour)
	token, err := ts.Issue("u1")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", RequireAuth(ts), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentUserID(c))
	})

	tests := []struct {
		name   string
		target string
		header string
		status int
		body   string
	}{
		{"bearer header", "/me", "Bearer " + token, http.StatusOK, "u1"},
		{"lowercase scheme", "/me", "bearer " + token, http.StatusOK, "u1"},
		{"query token", "/me?token=" + token, "", http.StatusOK, "u1"},
		{"missing", "/me", "", http.StatusUnauthorized, `"code":"UNAUTHORIZED"`},
		{"wrong scheme", "/me", "Basic " + token, http.StatusUnauthorized, "Missing bearer token"},
		{"garbage", "/me", "Bearer nope", http.StatusUnauthorized, "Invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestGraphFamilyAdmin(t *testing.T) {
	ctx := context.Background()
	store := driver.NewMemoryStore()
	require.NoError(t, store.ExecuteWrite(ctx, func(tx driver.Tx) error {
		for _, id := range []string{"admin", "member", "outsider"} {
			if err := tx.CreatePerson(ctx, model.Person{ID: id, Name: id}); err != nil {
				return err
			}
		}
		if err := tx.CreateFamily(ctx, model.Family{ID: "f1", Name: "Smiths"}); err != nil {
			return err
		}
		if err := tx.AttachToFamily(ctx, "f1", "admin", model.RoleAdmin); err != nil {
			return err
		}
		return tx.AttachToFamily(ctx, "f1", "member", model.RoleMember)
	}))

	admin := NewGraphFamilyAdmin(store)

	ok, err := admin.IsAdmin(ctx, "f1", "admin")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = admin.IsAdmin(ctx, "f1", "member")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = admin.IsMember(ctx, "f1", "member")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = admin.IsAdmin(ctx, "f1", "outsider")
	require.NoError(t, err)
	assert.False(t, ok)

	join := MemberJoinPolicy(admin)
	ok, err = join(ctx, "outsider", "f1")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = join(ctx, "member", "f1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = admin.IsMember(ctx, "", "member")
	require.NoError(t, err)
	assert.False(t, ok)
}
