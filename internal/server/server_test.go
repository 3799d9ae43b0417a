package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anoa.com/anomologita/internal/bootstrap"
	"anoa.com/anomologita/internal/config"
	"anoa.com/anomologita/pkg/database"
	"github.com/gin-gonic/gin"
)

type apiClient struct {
	t       *testing.T
	handler http.Handler
}

func newTestServer(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenInMemory(t.Name())
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	if err := bootstrap.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := bootstrap.SeedUniversities(db); err != nil {
		t.Fatalf("SeedUniversities() error = %v", err)
	}

	cfg := &config.Config{
		AppEnv:          "test",
		AllowedOrigins:  "http://localhost:3000",
		JWTSecret:       "test-secret",
		JWTIssuer:       "anomologita",
		JWTAudience:     "anomologita-mobile",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		PostImageFolder: "post-images",
	}
	srv := NewServer(cfg, db, nil)
	t.Cleanup(srv.Close)

	return &apiClient{t: t, handler: srv.Handler()}
}

func (a *apiClient) do(req *http.Request, accessToken string, out any) int {
	a.t.Helper()
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", req.Method, req.URL.Path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func (a *apiClient) json(method, path, accessToken string, body, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return a.do(req, accessToken, out)
}

func (a *apiClient) createPost(accessToken, content string, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("content", content); err != nil {
		a.t.Fatalf("write field: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/posts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return a.do(req, accessToken, out)
}

type session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	Username     string `json:"username"`
}

func (a *apiClient) register(username string) session {
	a.t.Helper()
	var s session
	code := a.json(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username":        username,
		"email":           username + "@uni.gr",
		"password":        "Passw0rd!",
		"confirmPassword": "Passw0rd!",
	}, &s)
	if code != http.StatusCreated {
		a.t.Fatalf("register %s status = %d", username, code)
	}
	return s
}

func TestHealthz(t *testing.T) {
	api := newTestServer(t)
	var body map[string]string
	if code := api.json(http.MethodGet, "/healthz", "", nil, &body); code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz = %d %v", code, body)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestServer(t)
	for _, path := range []string{"/api/posts", "/api/auth/me", "/api/comments/post/00000000-0000-0000-0000-000000000000"} {
		if code := api.json(http.MethodGet, path, "", nil, nil); code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, code)
		}
	}
	if code := api.json(http.MethodGet, "/api/universities", "", nil, nil); code != http.StatusOK {
		t.Errorf("GET /api/universities status = %d, want 200", code)
	}
}

func TestPostLifecycle(t *testing.T) {
	api := newTestServer(t)

	alice := api.register("alice_a")

	var loginResp session
	if code := api.json(http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "ALICE_A",
		"password": "Passw0rd!",
	}, &loginResp); code != http.StatusOK {
		t.Fatalf("login status = %d", code)
	}
	if loginResp.UserID != alice.UserID {
		t.Fatalf("login userId = %s, want %s", loginResp.UserID, alice.UserID)
	}
	aliceToken := loginResp.AccessToken

	var failed map[string]any
	if code := api.createPost(aliceToken, "Hello campus!", &failed); code != http.StatusInternalServerError {
		t.Fatalf("create post without university status = %d, want 500", code)
	}

	var universities []struct {
		ID        string `json:"id"`
		ShortName string `json:"shortName"`
	}
	if code := api.json(http.MethodGet, "/api/universities?pageSize=1", "", nil, &universities); code != http.StatusOK || len(universities) != 1 {
		t.Fatalf("list universities = %d, %d items", code, len(universities))
	}
	uni := universities[0]

	if code := api.json(http.MethodPut, "/api/auth/update-university", aliceToken, map[string]string{"universityId": uni.ID}, nil); code != http.StatusNoContent {
		t.Fatalf("update university status = %d, want 204", code)
	}

	var created struct {
		ID                  string `json:"id"`
		Username            string `json:"username"`
		UniversityID        string `json:"universityId"`
		UniversityShortName string `json:"universityShortName"`
	}
	if code := api.createPost(aliceToken, "Hello campus!", &created); code != http.StatusCreated {
		t.Fatalf("create post status = %d, want 201", code)
	}
	if created.Username != "alice_a" || created.UniversityID != uni.ID || created.UniversityShortName != uni.ShortName {
		t.Fatalf("created post = %+v", created)
	}

	bob := api.register("bob_bob")
	var comment struct {
		ID       string `json:"id"`
		Username string `json:"username"`
	}
	if code := api.json(http.MethodPost, "/api/comments", bob.AccessToken, map[string]string{
		"content": "Nice!",
		"postId":  created.ID,
	}, &comment); code != http.StatusCreated {
		t.Fatalf("create comment status = %d, want 201", code)
	}

	var comments []struct {
		Username string `json:"username"`
		Content  string `json:"content"`
	}
	if code := api.json(http.MethodGet, "/api/comments/post/"+created.ID, bob.AccessToken, nil, &comments); code != http.StatusOK {
		t.Fatalf("list comments status = %d", code)
	}
	if len(comments) != 1 || comments[0].Username != "bob_bob" || comments[0].Content != "Nice!" {
		t.Fatalf("comments = %+v", comments)
	}

	if code := api.json(http.MethodDelete, "/api/posts/"+created.ID, bob.AccessToken, nil, nil); code != http.StatusForbidden {
		t.Fatalf("delete as non-owner status = %d, want 403", code)
	}
	if code := api.json(http.MethodGet, "/api/posts/"+created.ID, bob.AccessToken, nil, nil); code != http.StatusOK {
		t.Fatalf("post missing after forbidden delete: %d", code)
	}

	if code := api.json(http.MethodDelete, "/api/posts/"+created.ID, aliceToken, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete as owner status = %d, want 204", code)
	}
	if code := api.json(http.MethodGet, "/api/posts/"+created.ID, aliceToken, nil, nil); code != http.StatusNotFound {
		t.Errorf("get deleted post status = %d, want 404", code)
	}
	if code := api.json(http.MethodGet, "/api/comments/"+comment.ID, aliceToken, nil, nil); code != http.StatusNotFound {
		t.Errorf("get comment of deleted post status = %d, want 404", code)
	}
}

func TestRefreshRotation(t *testing.T) {
	api := newTestServer(t)
	s := api.register("carol_c")

	var rotated session
	if code := api.json(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": s.RefreshToken}, &rotated); code != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200", code)
	}
	if rotated.RefreshToken == "" || rotated.RefreshToken == s.RefreshToken {
		t.Fatalf("refresh token not rotated")
	}

	if code := api.json(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": s.RefreshToken}, nil); code != http.StatusUnauthorized {
		t.Errorf("reuse of rotated token status = %d, want 401", code)
	}

	if code := api.json(http.MethodPost, "/api/auth/logout", rotated.AccessToken, nil, nil); code != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", code)
	}
	if code := api.json(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": rotated.RefreshToken}, nil); code != http.StatusUnauthorized {
		t.Errorf("refresh after logout status = %d, want 401", code)
	}
}
