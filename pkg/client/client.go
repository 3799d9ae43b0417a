package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrSessionExpired = errors.New("session expired, please log in again")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("api error: %d %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	store      TokenStore
	now        func() time.Time
	refreshes  singleflight.Group
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New returns a client for the API at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, store TokenStore, opts ...Option) *Client {
	if store == nil {
		store = NewMemoryStore()
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		store:      store,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Session() (*Session, error) {
	return c.store.Load()
}

func (c *Client) Register(ctx context.Context, in RegisterInput) (*AuthResponse, error) {
	var res AuthResponse
	if err := c.send(ctx, http.MethodPost, "/api/auth/register", "", in, &res); err != nil {
		return nil, err
	}
	if err := c.store.Save(sessionFrom(&res)); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	body := map[string]string{"username": username, "password": password}
	var res AuthResponse
	if err := c.send(ctx, http.MethodPost, "/api/auth/login", "", body, &res); err != nil {
		return nil, err
	}
	if err := c.store.Save(sessionFrom(&res)); err != nil {
		return nil, err
	}
	return &res, nil
}

// Refresh exchanges the stored refresh token for a new pair right away.
func (c *Client) Refresh(ctx context.Context) (*Session, error) {
	s, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNotLoggedIn
	}
	return c.refresh(ctx, s.AccessToken, true)
}

// ValidAccessToken returns an unexpired access token, refreshing first when
// needed. Concurrent callers share a single refresh request.
func (c *Client) ValidAccessToken(ctx context.Context) (string, error) {
	s, err := c.store.Load()
	if err != nil {
		return "", err
	}
	if s == nil {
		return "", ErrNotLoggedIn
	}

	now := c.now()
	if now.Before(s.AccessTokenExpiry) {
		return s.AccessToken, nil
	}
	if !now.Before(s.RefreshTokenExpiry) {
		_ = c.store.Clear()
		return "", ErrSessionExpired
	}

	s, err = c.refresh(ctx, s.AccessToken, false)
	if err != nil {
		return "", err
	}
	return s.AccessToken, nil
}

// refresh rotates the token pair unless another caller already replaced
// stale while we were waiting. force skips that shortcut.
func (c *Client) refresh(ctx context.Context, stale string, force bool) (*Session, error) {
	v, err, _ := c.refreshes.Do("refresh", func() (any, error) {
		s, err := c.store.Load()
		if err != nil {
			return nil, err
		}
		if s == nil {
			return nil, ErrNotLoggedIn
		}
		if !force && s.AccessToken != stale && c.now().Before(s.AccessTokenExpiry) {
			return s, nil
		}
		if !c.now().Before(s.RefreshTokenExpiry) {
			_ = c.store.Clear()
			return nil, ErrSessionExpired
		}

		var pair tokenPair
		err = c.send(ctx, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": s.RefreshToken}, &pair)
		if err != nil {
			// only a rejected refresh token ends the session; throttling
			// and server faults leave it in place for a later retry
			if IsStatus(err, http.StatusUnauthorized) || IsStatus(err, http.StatusBadRequest) {
				_ = c.store.Clear()
				return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
			}
			return nil, err
		}

		s.AccessToken = pair.AccessToken
		s.AccessTokenExpiry = pair.AccessTokenExpiry
		s.RefreshToken = pair.RefreshToken
		s.RefreshTokenExpiry = pair.RefreshTokenExpiry
		if err := c.store.Save(s); err != nil {
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	s := *v.(*Session)
	return &s, nil
}

// Logout revokes the refresh token on the server and forgets the session
// locally, even when the server call fails. An expired access token is
// refreshed first so the server side revocation still happens.
func (c *Client) Logout(ctx context.Context) error {
	defer c.store.Clear()

	access, err := c.ValidAccessToken(ctx)
	if errors.Is(err, ErrNotLoggedIn) || errors.Is(err, ErrSessionExpired) {
		return nil
	}
	if err != nil {
		return err
	}
	return c.send(ctx, http.MethodPost, "/api/auth/logout", access, nil, nil)
}

func (c *Client) Me(ctx context.Context) (*UserDetails, error) {
	var res UserDetails
	if err := c.authed(ctx, http.MethodGet, "/api/auth/me", jsonBody(nil), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UpdateUniversity(ctx context.Context, universityID uuid.UUID) error {
	body := map[string]string{"universityId": universityID.String()}
	if err := c.authed(ctx, http.MethodPut, "/api/auth/update-university", jsonBody(body), nil); err != nil {
		return err
	}

	s, err := c.store.Load()
	if err != nil || s == nil {
		return err
	}
	s.UniversityID = &universityID
	return c.store.Save(s)
}

// CreatePost uploads a post. image may be nil.
func (c *Client) CreatePost(ctx context.Context, content string, image io.Reader, fileName string) (*Post, error) {
	var imageData []byte
	if image != nil {
		var err error
		if imageData, err = io.ReadAll(image); err != nil {
			return nil, err
		}
	}

	build := func() (io.Reader, string, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		if err := mw.WriteField("content", content); err != nil {
			return nil, "", err
		}
		if imageData != nil {
			part, err := mw.CreateFormFile("imageFile", fileName)
			if err != nil {
				return nil, "", err
			}
			if _, err := part.Write(imageData); err != nil {
				return nil, "", err
			}
		}
		if err := mw.Close(); err != nil {
			return nil, "", err
		}
		return &buf, mw.FormDataContentType(), nil
	}

	var res Post
	if err := c.authed(ctx, http.MethodPost, "/api/posts", build, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ListPosts(ctx context.Context, page Page) ([]Post, error) {
	var res []Post
	if err := c.authed(ctx, http.MethodGet, "/api/posts"+page.query(), jsonBody(nil), &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) ListPostsByUniversity(ctx context.Context, universityID uuid.UUID, page Page) ([]Post, error) {
	var res []Post
	path := "/api/posts/university/" + universityID.String() + page.query()
	if err := c.authed(ctx, http.MethodGet, path, jsonBody(nil), &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) GetPost(ctx context.Context, id uuid.UUID) (*Post, error) {
	var res Post
	if err := c.authed(ctx, http.MethodGet, "/api/posts/"+id.String(), jsonBody(nil), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) DeletePost(ctx context.Context, id uuid.UUID) error {
	return c.authed(ctx, http.MethodDelete, "/api/posts/"+id.String(), jsonBody(nil), nil)
}

func (c *Client) CreateComment(ctx context.Context, postID uuid.UUID, content string) (*Comment, error) {
	body := map[string]string{"content": content, "postId": postID.String()}
	var res Comment
	if err := c.authed(ctx, http.MethodPost, "/api/comments", jsonBody(body), &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ListComments(ctx context.Context, postID uuid.UUID, page Page) ([]Comment, error) {
	var res []Comment
	path := "/api/comments/post/" + postID.String() + page.query()
	if err := c.authed(ctx, http.MethodGet, path, jsonBody(nil), &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) DeleteComment(ctx context.Context, id uuid.UUID) error {
	return c.authed(ctx, http.MethodDelete, "/api/comments/"+id.String(), jsonBody(nil), nil)
}

func (c *Client) ListUniversities(ctx context.Context, page Page) ([]University, error) {
	var res []University
	if err := c.send(ctx, http.MethodGet, "/api/universities"+page.query(), "", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

type bodyFunc func() (io.Reader, string, error)

func jsonBody(v any) bodyFunc {
	return func() (io.Reader, string, error) {
		if v == nil {
			return nil, "", nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

// authed sends with a valid access token and, on a 401, refreshes and
// retries exactly once.
func (c *Client) authed(ctx context.Context, method, path string, body bodyFunc, out any) error {
	token, err := c.ValidAccessToken(ctx)
	if err != nil {
		return err
	}

	err = c.sendRaw(ctx, method, path, token, body, out)
	if !IsStatus(err, http.StatusUnauthorized) {
		return err
	}

	s, err := c.refresh(ctx, token, false)
	if err != nil {
		return err
	}
	return c.sendRaw(ctx, method, path, s.AccessToken, body, out)
}

func (c *Client) send(ctx context.Context, method, path, token string, in, out any) error {
	return c.sendRaw(ctx, method, path, token, jsonBody(in), out)
}

func (c *Client) sendRaw(ctx context.Context, method, path, token string, body bodyFunc, out any) error {
	reader, contentType, err := body()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Message string `json:"message"`
		}
		if data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); len(data) > 0 {
			if json.Unmarshal(data, &payload) == nil {
				apiErr.Message = payload.Message
			}
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (p Page) query() string {
	v := url.Values{}
	if p.PageNumber > 0 {
		v.Set("pageNumber", strconv.Itoa(p.PageNumber))
	}
	if p.PageSize > 0 {
		v.Set("pageSize", strconv.Itoa(p.PageSize))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

func sessionFrom(res *AuthResponse) *Session {
	return &Session{
		AccessToken:        res.AccessToken,
		AccessTokenExpiry:  res.AccessTokenExpiry,
		RefreshToken:       res.RefreshToken,
		RefreshTokenExpiry: res.RefreshTokenExpiry,
		UserID:             res.UserID,
		Username:           res.Username,
		UniversityID:       res.UniversityID,
	}
}
