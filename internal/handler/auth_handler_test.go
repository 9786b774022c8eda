package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/serene-scheduler/internal/models"
	appErrors "github.com/noah-isme/serene-scheduler/pkg/errors"
)

type authenticatorStub struct {
	req    models.LoginRequest
	userID string
}

func (a *authenticatorStub) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	a.req = req
	if req.Password != "admin123" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "token", User: models.UserInfo{Username: req.Username}}, nil
}

func (a *authenticatorStub) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	a.userID = userID
	return &models.UserInfo{ID: userID, Username: "admin"}, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	auth := &authenticatorStub{}
	h := NewAuthHandler(auth)
	router := newTestRouter(nil)
	router.POST("/auth/login", h.Login)

	w := performJSON(t, router, http.MethodPost, "/auth/login", models.LoginRequest{Username: "admin", Password: "admin123"})
	require.Equal(t, http.StatusOK, w.Code)
	var res models.LoginResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &res))
	assert.Equal(t, "token", res.AccessToken)

	w = performJSON(t, router, http.MethodPost, "/auth/login", models.LoginRequest{Username: "admin", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = performJSON(t, router, http.MethodPost, "/auth/login", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	auth := &authenticatorStub{}
	h := NewAuthHandler(auth)

	router := newTestRouter(adminClaims)
	router.GET("/auth/me", h.Me)
	w := performJSON(t, router, http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-admin", auth.userID)

	router = newTestRouter(nil)
	router.GET("/auth/me", h.Me)
	w = performJSON(t, router, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
