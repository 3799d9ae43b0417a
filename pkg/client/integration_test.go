package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"anoa.com/anomologita/internal/bootstrap"
	"anoa.com/anomologita/internal/config"
	"anoa.com/anomologita/internal/server"
	"anoa.com/anomologita/pkg/database"
	"github.com/gin-gonic/gin"
)

func newLiveServer(t *testing.T) *httptest.Server {
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

	srv := server.NewServer(&config.Config{
		AppEnv:          "test",
		JWTSecret:       "test-secret",
		JWTIssuer:       "anomologita",
		JWTAudience:     "anomologita-mobile",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	}, db, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts
}

func TestClientAgainstServer(t *testing.T) {
	ts := newLiveServer(t)
	ctx := context.Background()

	alice := New(ts.URL, NewMemoryStore())
	registered, err := alice.Register(ctx, RegisterInput{
		Username:        "alice_a",
		Email:           "alice@uni.gr",
		Password:        "Passw0rd!",
		ConfirmPassword: "Passw0rd!",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	sess, err := alice.Session()
	if err != nil || sess == nil {
		t.Fatalf("Session() = %+v, %v", sess, err)
	}
	if sess.UserID != registered.UserID || sess.Username != "alice_a" || sess.UniversityID != nil {
		t.Errorf("Session() after Register = %+v", sess)
	}

	if _, err := alice.CreatePost(ctx, "Hello campus!", nil, ""); !IsStatus(err, http.StatusInternalServerError) {
		t.Fatalf("CreatePost() without university error = %v, want 500", err)
	}

	unis, err := alice.ListUniversities(ctx, Page{PageSize: 3})
	if err != nil || len(unis) != 3 {
		t.Fatalf("ListUniversities() = %d items, %v", len(unis), err)
	}
	if err := alice.UpdateUniversity(ctx, unis[0].ID); err != nil {
		t.Fatalf("UpdateUniversity() error = %v", err)
	}

	post, err := alice.CreatePost(ctx, "Hello campus!", nil, "")
	if err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if post.Username != "alice_a" || post.UniversityID != unis[0].ID {
		t.Fatalf("CreatePost() = %+v", post)
	}

	if sess, err := alice.Session(); err != nil || sess == nil || sess.UniversityID == nil || *sess.UniversityID != unis[0].ID {
		t.Errorf("Session() after UpdateUniversity = %+v, %v", sess, err)
	}

	own, err := alice.ListPostsByUniversity(ctx, unis[0].ID, Page{})
	if err != nil || len(own) != 1 || own[0].ID != post.ID {
		t.Errorf("ListPostsByUniversity(own) = %+v, %v", own, err)
	}
	other, err := alice.ListPostsByUniversity(ctx, unis[1].ID, Page{})
	if err != nil || len(other) != 0 {
		t.Errorf("ListPostsByUniversity(other) = %+v, %v", other, err)
	}

	// Force a rotation and make sure the session keeps working.
	if _, err := alice.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	bob := New(ts.URL, NewMemoryStore())
	if _, err := bob.Register(ctx, RegisterInput{
		Username:        "bob_bob",
		Email:           "bob@uni.gr",
		Password:        "Passw0rd!",
		ConfirmPassword: "Passw0rd!",
	}); err != nil {
		t.Fatalf("Register(bob) error = %v", err)
	}
	if _, err := bob.CreateComment(ctx, post.ID, "Nice!"); err != nil {
		t.Fatalf("CreateComment() error = %v", err)
	}

	comments, err := alice.ListComments(ctx, post.ID, Page{})
	if err != nil || len(comments) != 1 || comments[0].Username != "bob_bob" {
		t.Fatalf("ListComments() = %+v, %v", comments, err)
	}

	if err := bob.DeletePost(ctx, post.ID); !IsStatus(err, http.StatusForbidden) {
		t.Fatalf("DeletePost(bob) error = %v, want 403", err)
	}
	if err := alice.DeletePost(ctx, post.ID); err != nil {
		t.Fatalf("DeletePost(alice) error = %v", err)
	}
	if _, err := alice.GetPost(ctx, post.ID); !IsStatus(err, http.StatusNotFound) {
		t.Errorf("GetPost() after delete error = %v, want 404", err)
	}

	me, err := alice.Me(ctx)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if me.Username != "alice_a" || me.UniversityID == nil || *me.UniversityID != unis[0].ID {
		t.Errorf("Me() = %+v", me)
	}

	if err := alice.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := alice.ListPosts(ctx, Page{}); err != ErrNotLoggedIn {
		t.Errorf("ListPosts() after logout error = %v, want ErrNotLoggedIn", err)
	}
	if sess, err := alice.Session(); err != nil || sess != nil {
		t.Errorf("Session() after Logout = %+v, %v", sess, err)
	}
}
