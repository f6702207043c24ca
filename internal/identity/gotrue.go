package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	authgo "github.com/supabase-community/auth-go"
	"github.com/supabase-community/auth-go/types"
)

// GoTrue is the hosted auth service, reached through its Go client.
type GoTrue struct {
	public    authgo.Client
	admin     authgo.Client
	transport http.RoundTripper
	timeout   time.Duration
}

func NewGoTrue(storeURL, publicKey, secretKey string) *GoTrue {
	base := strings.TrimRight(storeURL, "/") + "/auth/v1"
	return &GoTrue{
		public:    authgo.New("", publicKey).WithCustomAuthURL(base),
		admin:     authgo.New("", secretKey).WithCustomAuthURL(base).WithToken(secretKey),
		transport: http.DefaultTransport,
		timeout:   15 * time.Second,
	}
}

// APIError is a non-2xx answer from the auth service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth service: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("auth service: %d: %s", e.Status, e.Message)
}

// callScope binds one call's context to the requests the client builds,
// and adds query parameters its request types have no field for.
type callScope struct {
	ctx   context.Context
	query url.Values
	next  http.RoundTripper
}

func (s callScope) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(s.ctx)
	if len(s.query) > 0 {
		q := r.URL.Query()
		for k, vs := range s.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		r.URL.RawQuery = q.Encode()
	}
	return s.next.RoundTrip(r)
}

func (c *GoTrue) scoped(ctx context.Context, client authgo.Client, query url.Values) authgo.Client {
	return client.WithClient(http.Client{
		Timeout:   c.timeout,
		Transport: callScope{ctx: ctx, query: query, next: c.transport},
	})
}

func account(u types.User) Account {
	return Account{ID: u.ID.String(), Email: u.Email}
}

func (c *GoTrue) InviteUserByEmail(ctx context.Context, email string, opts InviteOptions) (Account, error) {
	var query url.Values
	if opts.RedirectTo != "" {
		query = url.Values{"redirect_to": {opts.RedirectTo}}
	}
	resp, err := c.scoped(ctx, c.admin, query).Invite(types.InviteRequest{Email: email, Data: opts.Data})
	if err != nil {
		apiErr := apiError(err)
		if isEmailExists(apiErr) {
			return Account{}, fmt.Errorf("%w: %s", ErrAccountExists, email)
		}
		return Account{}, wrapErr(apiErr, err)
	}
	return account(resp.User), nil
}

func (c *GoTrue) DeleteUser(ctx context.Context, accountID string) error {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	err = c.scoped(ctx, c.admin, nil).AdminDeleteUser(types.AdminDeleteUserRequest{UserID: id})
	if err == nil {
		return nil
	}
	apiErr := apiError(err)
	if apiErr != nil && apiErr.Status == http.StatusNotFound {
		return ErrAccountNotFound
	}
	return wrapErr(apiErr, err)
}

func (c *GoTrue) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	resp, err := c.scoped(ctx, c.public, nil).SignInWithEmailPassword(email, password)
	if err != nil {
		apiErr := apiError(err)
		if apiErr != nil && (apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnauthorized) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, wrapErr(apiErr, err)
	}
	return Session{AccessToken: resp.AccessToken, Account: account(resp.User)}, nil
}

func (c *GoTrue) UpdatePassword(ctx context.Context, accessToken, password string) (Account, error) {
	resp, err := c.scoped(ctx, c.public.WithToken(accessToken), nil).
		UpdateUser(types.UpdateUserRequest{Password: &password})
	if err != nil {
		apiErr := apiError(err)
		if apiErr != nil && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			return Account{}, ErrInvalidToken
		}
		return Account{}, wrapErr(apiErr, err)
	}
	return account(resp.User), nil
}

const statusMarker = "response status code "

// apiError recovers status and body from the client's
// "response status code N: body" errors. Transport failures give nil.
func apiError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	msg := err.Error()
	i := strings.Index(msg, statusMarker)
	if i < 0 {
		return nil
	}
	code, body, _ := strings.Cut(msg[i+len(statusMarker):], ":")
	status, convErr := strconv.Atoi(strings.TrimSpace(code))
	if convErr != nil {
		return nil
	}
	return decodeAPIError(status, []byte(strings.TrimSpace(body)))
}

func wrapErr(apiErr *APIError, err error) error {
	if apiErr != nil {
		return apiErr
	}
	return fmt.Errorf("auth service: %w", err)
}

// decodeAPIError understands the handful of error shapes the service uses.
func decodeAPIError(status int, raw []byte) *APIError {
	var e struct {
		Code        any    `json:"code"`
		ErrorCode   string `json:"error_code"`
		Error       string `json:"error"`
		Msg         string `json:"msg"`
		Message     string `json:"message"`
		Description string `json:"error_description"`
	}
	_ = json.Unmarshal(raw, &e)
	apiErr := &APIError{Status: status}
	switch {
	case e.ErrorCode != "":
		apiErr.Code = e.ErrorCode
	case e.Error != "":
		apiErr.Code = e.Error
	}
	for _, m := range []string{e.Msg, e.Message, e.Description} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

func isEmailExists(apiErr *APIError) bool {
	if apiErr == nil {
		return false
	}
	if apiErr.Code == "email_exists" || apiErr.Code == "user_already_exists" {
		return true
	}
	return apiErr.Status == http.StatusUnprocessableEntity &&
		strings.Contains(strings.ToLower(apiErr.Message), "already been registered")
}
