package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"anoa.com/anomologita/internal/bootstrap"
	"anoa.com/anomologita/internal/entity"
	postRepo "anoa.com/anomologita/internal/modules/post/repository"
	uniRepo "anoa.com/anomologita/internal/modules/university/repository"
	"anoa.com/anomologita/internal/modules/user/dto"
	"anoa.com/anomologita/internal/modules/user/repository"
	"anoa.com/anomologita/pkg/database"
	"anoa.com/anomologita/pkg/token"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fixture struct {
	db      *gorm.DB
	service AuthService
	tokens  *token.Issuer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenInMemory(t.Name())
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	if err := bootstrap.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	tokens := token.NewIssuer("test-secret", "anomologita", "anomologita-mobile", 15*time.Minute, 7*24*time.Hour)
	svc := NewAuthService(
		repository.NewUserRepository(db),
		postRepo.NewPostRepository(db),
		uniRepo.NewUniversityRepository(db),
		tokens,
	)
	return &fixture{db: db, service: svc, tokens: tokens}
}

func registerReq(username, email string) dto.RegisterRequest {
	return dto.RegisterRequest{
		Username:        username,
		Email:           email,
		Password:        "Password123!",
		ConfirmPassword: "Password123!",
	}
}

func (f *fixture) countUsers(t *testing.T) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&entity.User{}).Count(&n).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	return n
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	resp, err := f.service.Register(ctx, registerReq("student_a", "a@uni.gr"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !resp.Success || resp.UserID == uuid.Nil {
		t.Errorf("Register() = %+v", resp)
	}
	if !resp.IsStudent || resp.IsAdmin {
		t.Errorf("flags = student:%v admin:%v, want student only", resp.IsStudent, resp.IsAdmin)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Error("Register() did not issue a token pair")
	}
	if resp.UniversityID != nil {
		t.Errorf("UniversityID = %v, want nil", resp.UniversityID)
	}

	claims, err := f.tokens.ParseAccessToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken() error = %v", err)
	}
	if claims.UserID != resp.UserID.String() || !claims.IsStudent() {
		t.Errorf("claims = %+v", claims)
	}
}

func TestRegister_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.Register(ctx, registerReq("Student_A", "first@uni.gr")); err != nil {
		t.Fatalf("Register() setup error = %v", err)
	}

	mismatch := registerReq("another1", "x@uni.gr")
	mismatch.ConfirmPassword = "different"

	tests := []struct {
		name    string
		req     dto.RegisterRequest
		wantErr error
	}{
		{"short username", registerReq("abc", "short@uni.gr"), ErrUsernameTooShort},
		{"padded short username", registerReq("  abcde  ", "pad@uni.gr"), ErrUsernameTooShort},
		{"same username", registerReq("Student_A", "second@uni.gr"), ErrUsernameTaken},
		{"same username other case", registerReq("sTUDENT_a", "third@uni.gr"), ErrUsernameTaken},
		{"same email other case", registerReq("student_b", "FIRST@uni.gr"), ErrEmailTaken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Register(ctx, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("password mismatch", func(t *testing.T) {
		if _, err := f.service.Register(ctx, mismatch); err == nil {
			t.Error("Register() expected error for mismatched passwords")
		}
	})

	if n := f.countUsers(t); n != 1 {
		t.Errorf("users = %d, want 1", n)
	}
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.service.Register(ctx, registerReq("student_a", "a@uni.gr"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	t.Run("wrong password leaves row unchanged", func(t *testing.T) {
		_, err := f.service.Login(ctx, dto.LoginRequest{Username: "student_a", Password: "nope"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login() error = %v, want ErrInvalidCredentials", err)
		}

		var u entity.User
		f.db.First(&u, "id = ?", reg.UserID)
		if u.RefreshToken == nil || *u.RefreshToken != reg.RefreshToken {
			t.Error("refresh token changed after failed login")
		}
		if u.LastLogin != nil {
			t.Error("lastLogin set after failed login")
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := f.service.Login(ctx, dto.LoginRequest{Username: "ghost_user", Password: "Password123!"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login() error = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("case-insensitive username", func(t *testing.T) {
		resp, err := f.service.Login(ctx, dto.LoginRequest{Username: "STUDENT_A", Password: "Password123!"})
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if resp.UserID != reg.UserID || resp.Username != "student_a" {
			t.Errorf("Login() = %+v", resp)
		}
		if resp.RefreshToken == reg.RefreshToken {
			t.Error("Login() did not rotate the refresh token")
		}

		var u entity.User
		f.db.First(&u, "id = ?", reg.UserID)
		if u.LastLogin == nil {
			t.Error("lastLogin not recorded")
		}
		if u.RefreshToken == nil || *u.RefreshToken != resp.RefreshToken {
			t.Error("stored refresh token does not match the issued one")
		}
	})
}

func TestRefreshToken_Rotation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.service.Register(ctx, registerReq("student_a", "a@uni.gr"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	first, err := f.service.RefreshToken(ctx, dto.RefreshTokenRequest{RefreshToken: reg.RefreshToken})
	if err != nil {
		t.Fatalf("RefreshToken() error = %v", err)
	}
	if first.RefreshToken == reg.RefreshToken {
		t.Error("RefreshToken() returned the same refresh token")
	}

	if _, err := f.service.RefreshToken(ctx, dto.RefreshTokenRequest{RefreshToken: reg.RefreshToken}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("reusing a rotated token: error = %v, want ErrInvalidRefreshToken", err)
	}

	second, err := f.service.RefreshToken(ctx, dto.RefreshTokenRequest{RefreshToken: first.RefreshToken})
	if err != nil {
		t.Fatalf("RefreshToken() with latest token error = %v", err)
	}
	if _, err := f.tokens.ParseAccessToken(second.AccessToken); err != nil {
		t.Errorf("new access token invalid: %v", err)
	}
}

func TestRefreshToken_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.service.Register(ctx, registerReq("student_a", "a@uni.gr"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	past := time.Now().Add(-time.Minute)
	expired, err := f.service.Register(ctx, registerReq("student_b", "b@uni.gr"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := f.db.Model(&entity.User{}).Where("id = ?", expired.UserID).
		Update("refresh_token_expiry", past).Error; err != nil {
		t.Fatalf("expire token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"unknown", "bm90LWEtcmVhbC10b2tlbg=="},
		{"expired", expired.RefreshToken},
		{"prefix of a valid token", reg.RefreshToken[:20]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.RefreshToken(ctx, dto.RefreshTokenRequest{RefreshToken: tt.token})
			if !errors.Is(err, ErrInvalidRefreshToken) {
				t.Errorf("RefreshToken() error = %v, want ErrInvalidRefreshToken", err)
			}
		})
	}
}

func TestRefreshToken_ConcurrentUseSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.service.Register(ctx, registerReq("student_a", "a@uni.gr"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	const callers = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.service.RefreshToken(ctx, dto.RefreshTokenRequest{RefreshToken: reg.RefreshToken}); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successful refreshes = %d, want 1", successes)
	}
}

func TestUpdateUserUniversity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	uni := &entity.University{Name: "University of Crete", ShortName: "UOC"}
	if err := f.db.Create(uni).Error; err != nil {
		t.Fatalf("create university: %v", err)
	}
	reg, err := f.service.Register(ctx, registerReq("student_a", "a@uni.gr"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name         string
		userID       uuid.UUID
		universityID uuid.UUID
		wantErr      error
	}{
		{"unknown user", uuid.New(), uni.ID, ErrUserNotFound},
		{"unknown university", reg.UserID, uuid.New(), ErrUniversityNotFound},
		{"ok", reg.UserID, uni.ID, nil},
		{"same university again", reg.UserID, uni.ID, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.service.UpdateUserUniversity(ctx, tt.userID, tt.universityID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("UpdateUserUniversity() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	details, err := f.service.GetUserDetails(ctx, reg.UserID)
	if err != nil {
		t.Fatalf("GetUserDetails() error = %v", err)
	}
	if details.UniversityID == nil || *details.UniversityID != uni.ID {
		t.Errorf("UniversityID = %v, want %s", details.UniversityID, uni.ID)
	}
	if details.UniversityShortName == nil || *details.UniversityShortName != "UOC" {
		t.Errorf("UniversityShortName = %v, want UOC", details.UniversityShortName)
	}
}

func TestGetUserDetails_PostsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	uni := &entity.University{Name: "University of Patras", ShortName: "UPATRAS"}
	if err := f.db.Create(uni).Error; err != nil {
		t.Fatalf("create university: %v", err)
	}
	reg, err := f.service.Register(ctx, registerReq("student_a", "a@uni.gr"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, content := range []string{"first", "second", "third"} {
		p := &entity.Post{
			Content:      content,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
			UserID:       reg.UserID,
			Username:     reg.Username,
			UniversityID: uni.ID,
		}
		if err := f.db.Create(p).Error; err != nil {
			t.Fatalf("create post: %v", err)
		}
	}

	details, err := f.service.GetUserDetails(ctx, reg.UserID)
	if err != nil {
		t.Fatalf("GetUserDetails() error = %v", err)
	}
	if len(details.Posts) != 3 {
		t.Fatalf("posts = %d, want 3", len(details.Posts))
	}
	if details.Posts[0].Content != "third" || details.Posts[2].Content != "first" {
		t.Errorf("posts not newest-first: %q .. %q", details.Posts[0].Content, details.Posts[2].Content)
	}
	for _, p := range details.Posts {
		if p.UniversityShortName != "UPATRAS" {
			t.Errorf("post %s short name = %q, want UPATRAS", p.ID, p.UniversityShortName)
		}
	}
	if details.UniversityName != nil {
		t.Errorf("UniversityName = %v, want nil for a user without university", *details.UniversityName)
	}

	if _, err := f.service.GetUserDetails(ctx, uuid.New()); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetUserDetails(unknown) error = %v, want ErrUserNotFound", err)
	}
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg, err := f.service.Register(ctx, registerReq("student_a", "a@uni.gr"))
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := f.service.Logout(ctx, reg.UserID); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := f.service.RefreshToken(ctx, dto.RefreshTokenRequest{RefreshToken: reg.RefreshToken}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Errorf("RefreshToken() after logout error = %v, want ErrInvalidRefreshToken", err)
	}
}

// staleExistsRepo misses usernames on the first lookup, the way a
// concurrent registration slips past the pre-check.
type staleExistsRepo struct {
	repository.UserRepository
	lookups int
}

func (r *staleExistsRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	r.lookups++
	if r.lookups == 1 {
		return false, nil
	}
	return r.UserRepository.ExistsByUsername(ctx, username)
}

func TestRegister_CaseVariantRejectedByUniqueIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.Register(ctx, registerReq("Alice_A", "alice@uni.gr")); err != nil {
		t.Fatalf("Register() setup error = %v", err)
	}

	users := &staleExistsRepo{UserRepository: repository.NewUserRepository(f.db)}
	svc := NewAuthService(users, postRepo.NewPostRepository(f.db), uniRepo.NewUniversityRepository(f.db), f.tokens)

	_, err := svc.Register(ctx, registerReq("alice_a", "other@uni.gr"))
	if !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("Register() error = %v, want %v", err, ErrUsernameTaken)
	}
	if n := f.countUsers(t); n != 1 {
		t.Errorf("users = %d, want 1", n)
	}

	direct := &entity.User{Username: " ALICE_A ", Email: "third@uni.gr", PasswordHash: "x", IsStudent: true}
	if err := f.db.Create(direct).Error; err == nil {
		t.Error("Create() accepted a username differing only in case")
	}
}
