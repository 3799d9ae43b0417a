package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"anoa.com/anomologita/internal/entity"
	postDto "anoa.com/anomologita/internal/modules/post/dto"
	postRepo "anoa.com/anomologita/internal/modules/post/repository"
	uniRepo "anoa.com/anomologita/internal/modules/university/repository"
	"anoa.com/anomologita/internal/modules/user/dto"
	"anoa.com/anomologita/internal/modules/user/repository"
	"anoa.com/anomologita/pkg/apperror"
	"anoa.com/anomologita/pkg/token"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const minUsernameLength = 6

var (
	ErrInvalidCredentials  = apperror.Unauthorized("Invalid username or password")
	ErrInvalidRefreshToken = apperror.Unauthorized("Invalid or expired refresh token.")
	ErrUsernameTooShort    = apperror.InvalidInput("Username must be at least 6 characters long.")
	ErrUsernameTaken       = apperror.InvalidInput("Username already taken.")
	ErrEmailTaken          = apperror.InvalidInput("Email already taken.")
	ErrUserNotFound        = apperror.NotFound("User not found")
	ErrUniversityNotFound  = apperror.NotFound("University not found")
)

type AuthService interface {
	Register(ctx context.Context, req dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	RefreshToken(ctx context.Context, req dto.RefreshTokenRequest) (*dto.TokenPair, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	GetUserDetails(ctx context.Context, userID uuid.UUID) (*dto.UserDetailsResponse, error)
	UpdateUserUniversity(ctx context.Context, userID, universityID uuid.UUID) error
}

type authService struct {
	repo           repository.UserRepository
	postRepo       postRepo.PostRepository
	universityRepo uniRepo.UniversityRepository
	tokens         *token.Issuer
	now            func() time.Time
}

func NewAuthService(
	repo repository.UserRepository,
	postRepository postRepo.PostRepository,
	universityRepository uniRepo.UniversityRepository,
	tokens *token.Issuer,
) AuthService {
	return &authService{
		repo:           repo,
		postRepo:       postRepository,
		universityRepo: universityRepository,
		tokens:         tokens,
		now:            time.Now,
	}
}

func (s *authService) Register(ctx context.Context, req dto.RegisterRequest) (*dto.RegisterResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if utf8.RuneCountInString(username) < minUsernameLength {
		return nil, ErrUsernameTooShort
	}
	if req.Password != req.ConfirmPassword {
		return nil, apperror.InvalidInput("The password and confirmation password do not match.")
	}

	if taken, err := s.repo.ExistsByUsername(ctx, username); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrUsernameTaken
	}
	if taken, err := s.repo.ExistsByEmail(ctx, email); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	refresh, err := token.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	refreshExpiry := s.tokens.RefreshTokenExpiry()

	user := &entity.User{
		Username:           username,
		Email:              email,
		PasswordHash:       string(hash),
		IsStudent:          true,
		IsAdmin:            false,
		RefreshToken:       &refresh,
		RefreshTokenExpiry: &refreshExpiry,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		// lost a race against a concurrent registration
		if taken, _ := s.repo.ExistsByUsername(ctx, username); taken {
			return nil, ErrUsernameTaken
		}
		if taken, _ := s.repo.ExistsByEmail(ctx, email); taken {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	login, err := s.loginResponse(user, refresh, refreshExpiry)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", user.ID.String()).Msg("user registered")
	return &dto.RegisterResponse{
		Success:       true,
		Message:       "Registration successful.",
		LoginResponse: *login,
	}, nil
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	refresh, err := token.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	refreshExpiry := s.tokens.RefreshTokenExpiry()

	if err := s.repo.RecordLogin(ctx, user.ID, s.now().UTC(), refresh, refreshExpiry); err != nil {
		return nil, err
	}

	return s.loginResponse(user, refresh, refreshExpiry)
}

// RefreshToken exchanges a refresh token for a new pair. The stored token is
// swapped atomically, so of two concurrent calls with the same token only
// one succeeds.
func (s *authService) RefreshToken(ctx context.Context, req dto.RefreshTokenRequest) (*dto.TokenPair, error) {
	if req.RefreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.repo.FindByRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}
	if user.RefreshTokenExpiry == nil || !user.RefreshTokenExpiry.After(s.now()) {
		return nil, ErrInvalidRefreshToken
	}

	refresh, err := token.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}
	refreshExpiry := s.tokens.RefreshTokenExpiry()

	swapped, err := s.repo.RotateRefreshToken(ctx, user.ID, req.RefreshToken, refresh, refreshExpiry)
	if err != nil {
		return nil, err
	}
	if !swapped {
		log.Warn().Str("user_id", user.ID.String()).Msg("refresh token reused concurrently")
		return nil, ErrInvalidRefreshToken
	}

	access, accessExpiry, err := s.tokens.GenerateAccessToken(subjectOf(user))
	if err != nil {
		return nil, err
	}

	return &dto.TokenPair{
		AccessToken:        access,
		AccessTokenExpiry:  accessExpiry,
		RefreshToken:       refresh,
		RefreshTokenExpiry: refreshExpiry,
	}, nil
}

func (s *authService) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.repo.ClearRefreshToken(ctx, userID)
}

func (s *authService) GetUserDetails(ctx context.Context, userID uuid.UUID) (*dto.UserDetailsResponse, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	posts, err := s.postRepo.FindAllByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	shortNames, err := s.universityRepo.ShortNames(ctx, postDto.UniversityIDs(posts))
	if err != nil {
		return nil, err
	}

	resp := &dto.UserDetailsResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		UniversityID: user.UniversityID,
		CreatedAt:    user.CreatedAt,
		Posts:        postDto.NewPostResponses(posts, shortNames),
	}
	if user.University != nil {
		resp.UniversityName = &user.University.Name
		resp.UniversityShortName = &user.University.ShortName
	}
	return resp, nil
}

func (s *authService) UpdateUserUniversity(ctx context.Context, userID, universityID uuid.UUID) error {
	if _, err := s.repo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	exists, err := s.universityRepo.Exists(ctx, universityID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUniversityNotFound
	}

	return s.repo.UpdateUniversity(ctx, userID, universityID)
}

func (s *authService) loginResponse(user *entity.User, refresh string, refreshExpiry time.Time) (*dto.LoginResponse, error) {
	access, accessExpiry, err := s.tokens.GenerateAccessToken(subjectOf(user))
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		TokenPair: dto.TokenPair{
			AccessToken:        access,
			AccessTokenExpiry:  accessExpiry,
			RefreshToken:       refresh,
			RefreshTokenExpiry: refreshExpiry,
		},
		UserID:       user.ID,
		Username:     user.Username,
		IsAdmin:      user.IsAdmin,
		IsStudent:    user.IsStudent,
		UniversityID: user.UniversityID,
	}, nil
}

func subjectOf(user *entity.User) token.Subject {
	return token.Subject{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		IsAdmin:   user.IsAdmin,
		IsStudent: user.IsStudent,
	}
}
