// Package auth registers users, checks their passwords and issues the
// bearer tokens that identify them to the interview API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/hperssn/mockinterview/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user with this email or username already exists")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrValidation         = errors.New("validation failed")
)

const (
	BcryptCost = 10
	DefaultTTL = 24 * time.Hour

	minUsernameLen = 3
	maxUsernameLen = 30
	minPasswordLen = 6
)

// UserStore is the subset of the repository the service needs.
type UserStore interface {
	CreateUser(ctx context.Context, u *storage.User) error
	GetUserByEmail(ctx context.Context, email string) (*storage.User, error)
	GetUserByID(ctx context.Context, id string) (*storage.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

type RegisterInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type Service struct {
	users  UserStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(users UserStore, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*storage.User, string, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	if err := validateRegistration(in); err != nil {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), BcryptCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	u := &storage.User{
		ID:           uuid.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		CreatedAt:    now,
		LastLogin:    now,
	}

	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, "", ErrUserExists
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.issue(u)
	if err != nil {
		return nil, "", err
	}

	log.Info().Str("userId", u.ID).Str("username", u.Username).Msg("User registered")
	return u, token, nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*storage.User, string, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, "", ErrInvalidCredentials
	}

	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		log.Warn().Err(err).Str("userId", u.ID).Msg("Failed to update last login")
	} else {
		u.LastLogin = now
	}

	token, err := s.issue(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Verify checks the token signature and expiry and returns its claims.
func (s *Service) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// User loads the account behind verified claims.
func (s *Service) User(ctx context.Context, claims *Claims) (*storage.User, error) {
	u, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func (s *Service) issue(u *storage.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:   u.ID,
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func validateRegistration(in RegisterInput) error {
	n := utf8.RuneCountInString(in.Username)
	switch {
	case n < minUsernameLen || n > maxUsernameLen:
		return fmt.Errorf("%w: username must be %d-%d characters", ErrValidation, minUsernameLen, maxUsernameLen)
	case in.Email == "":
		return fmt.Errorf("%w: email is required", ErrValidation)
	case len(in.Password) < minPasswordLen:
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	case in.FirstName == "" || in.LastName == "":
		return fmt.Errorf("%w: first and last name are required", ErrValidation)
	}

	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return nil
}
