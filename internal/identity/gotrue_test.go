package identity

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoTrue_InviteUserByEmail(t *testing.T) {
	var gotPath, gotQuery, gotKey, gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotQuery = r.URL.Path, r.URL.Query().Get("redirect_to")
		gotKey, gotAuth = r.Header.Get("apikey"), r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		_, _ = w.Write([]byte(`{"id":"7f1c2a9e-3b1d-4c5e-9a77-0d6f2b8e4c11","email":"jane@client.test"}`))
	}))
	defer srv.Close()

	c := NewGoTrue(srv.URL+"/", "anon", "service")
	acc, err := c.InviteUserByEmail(context.Background(), "jane@client.test", InviteOptions{
		RedirectTo: "http://localhost:3000/auth/set-password",
		Data:       map[string]any{"name": "Jane", "role": "client"},
	})
	require.NoError(t, err)
	assert.Equal(t, "7f1c2a9e-3b1d-4c5e-9a77-0d6f2b8e4c11", acc.ID)
	assert.Equal(t, "/auth/v1/invite", gotPath)
	assert.Equal(t, "http://localhost:3000/auth/set-password", gotQuery)
	assert.Equal(t, "service", gotKey)
	assert.Equal(t, "Bearer service", gotAuth)
	assert.Equal(t, "jane@client.test", gotBody["email"])
	assert.Equal(t, map[string]any{"name": "Jane", "role": "client"}, gotBody["data"])
}

func TestGoTrue_InviteExistingEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":422,"error_code":"email_exists","msg":"A user with this email address has already been registered"}`))
	}))
	defer srv.Close()

	_, err := NewGoTrue(srv.URL, "anon", "service").InviteUserByEmail(context.Background(), "x@y.io", InviteOptions{})
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestGoTrue_DeleteUser(t *testing.T) {
	const missingID = "9d1e8c7b-6a5f-4e3d-8c2b-1a0f9e8d7c6b"
	var method, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		if r.URL.Path == "/auth/v1/admin/users/"+missingID {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":404,"msg":"User not found"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewGoTrue(srv.URL, "anon", "service")
	require.NoError(t, c.DeleteUser(context.Background(), "0b7d3f52-8e6a-4f1b-bc2d-91e4a7c35f60"))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/auth/v1/admin/users/0b7d3f52-8e6a-4f1b-bc2d-91e4a7c35f60", path)

	assert.ErrorIs(t, c.DeleteUser(context.Background(), missingID), ErrAccountNotFound)
}

func TestGoTrue_SignInWithPassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "anon", r.Header.Get("apikey"))
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "correct horse" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","user":{"id":"c3a8e1f4-5d2b-4a9c-8e7f-16b0d9a2e345","email":"a@b.co"}}`))
	}))
	defer srv.Close()

	c := NewGoTrue(srv.URL, "anon", "service")
	s, err := c.SignInWithPassword(context.Background(), "a@b.co", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "tok", s.AccessToken)
	assert.Equal(t, "c3a8e1f4-5d2b-4a9c-8e7f-16b0d9a2e345", s.Account.ID)

	_, err = c.SignInWithPassword(context.Background(), "a@b.co", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGoTrue_UpdatePassword(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		if r.Header.Get("Authorization") != "Bearer invite-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":401,"msg":"invalid JWT"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"5e9f0a1b-2c3d-4e5f-a6b7-c8d9e0f1a2b3","email":"c@d.io"}`))
	}))
	defer srv.Close()

	c := NewGoTrue(srv.URL, "anon", "service")
	acc, err := c.UpdatePassword(context.Background(), "invite-token", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "5e9f0a1b-2c3d-4e5f-a6b7-c8d9e0f1a2b3", acc.ID)

	_, err = c.UpdatePassword(context.Background(), "stale", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestGoTrue_DeleteUserRejectsMalformedID(t *testing.T) {
	c := NewGoTrue("http://127.0.0.1:1", "anon", "service")
	assert.ErrorIs(t, c.DeleteUser(context.Background(), "not-a-uuid"), ErrAccountNotFound)
}

func TestGoTrue_CallHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGoTrue(srv.URL, "anon", "service").SignInWithPassword(ctx, "a@b.co", "pw")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestAPIErrorFromClientMessage(t *testing.T) {
	e := apiError(errors.New(`response status code 422: {"error_code":"email_exists","msg":"taken"}`))
	require.NotNil(t, e)
	assert.Equal(t, 422, e.Status)
	assert.Equal(t, "email_exists", e.Code)
	assert.True(t, isEmailExists(e))

	assert.Nil(t, apiError(errors.New("dial tcp: connection refused")))
}

func TestDecodeAPIError(t *testing.T) {
	e := decodeAPIError(500, []byte("upstream exploded"))
	assert.Equal(t, "upstream exploded", e.Message)
	assert.Contains(t, e.Error(), "500")

	e = decodeAPIError(503, nil)
	assert.Equal(t, "Service Unavailable", e.Message)

	e = decodeAPIError(400, []byte(`{"error":"bad_request","message":"nope"}`))
	assert.Equal(t, "bad_request", e.Code)
	assert.Equal(t, "nope", e.Message)
}
