package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examhall/internal/config"
	"github.com/stemsi/examhall/internal/exam"
	"github.com/stemsi/examhall/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrSessionAlreadyActive = errors.New("another session is already active")
	ErrNoActiveSession      = errors.New("no active session")
	ErrSessionInvalidated   = errors.New("session invalidated")
)

// TokenType distinguishes student vs admin tokens.
type TokenType string

const (
	TokenTypeStudent TokenType = "student"
	TokenTypeAdmin   TokenType = "admin"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType   TokenType `json:"token_type"`
	UserID      int       `json:"user_id"`
	Name        string    `json:"name,omitempty"`
	ClassLabel  string    `json:"class_label,omitempty"` // student only
	Permissions []string  `json:"permissions,omitempty"` // admin only
}

// Identity is the exam identity carried by a student token.
func (c *Claims) Identity() exam.Identity {
	if c == nil || c.TokenType != TokenTypeStudent {
		return exam.Identity{}
	}
	return exam.Identity{StudentID: c.UserID, Name: c.Name, ClassLabel: c.ClassLabel}
}

// StudentAccounts looks up students for login.
type StudentAccounts interface {
	GetByRollNumber(ctx context.Context, rollNumber string) (*model.Student, error)
}

// AdminAccounts looks up admins for login.
type AdminAccounts interface {
	GetByEmail(ctx context.Context, email string) (*model.Admin, error)
}

// AuthService handles credentials, JWTs and the single-device student session.
type AuthService struct {
	cfg      *config.Config
	rdb      *redis.Client
	students StudentAccounts
	admins   AdminAccounts
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client, students StudentAccounts, admins AdminAccounts) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb, students: students, admins: admins, now: time.Now}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// StudentLogin checks credentials and opens the student's only session.
// A second login while a session is active is rejected.
func (s *AuthService) StudentLogin(ctx context.Context, rollNumber, password string) (string, *model.Student, error) {
	student, err := s.students.GetByRollNumber(ctx, rollNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("lookup student: %w", err)
	}
	if err := s.CheckPassword(student.PasswordHash, password); err != nil {
		return "", nil, err
	}

	token, err := s.GenerateStudentToken(ctx, student)
	if err != nil {
		return "", nil, err
	}
	return token, student, nil
}

// AdminLogin checks credentials and issues a token with the admin's permissions.
func (s *AuthService) AdminLogin(ctx context.Context, email, password string) (string, *model.Admin, error) {
	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("lookup admin: %w", err)
	}
	if err := s.CheckPassword(admin.PasswordHash, password); err != nil {
		return "", nil, err
	}

	token, err := s.GenerateAdminToken(admin)
	if err != nil {
		return "", nil, err
	}
	return token, admin, nil
}

// GenerateStudentToken signs a student JWT and registers its JTI in Redis.
func (s *AuthService) GenerateStudentToken(ctx context.Context, student *model.Student) (string, error) {
	sessionKey := config.CacheKey.StudentSessionKey(student.ID)

	existing, err := s.rdb.Get(ctx, sessionKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("check session: %w", err)
	}
	if existing != "" {
		return "", ErrSessionAlreadyActive
	}

	jti := uuid.NewString()
	signed, err := s.sign(Claims{
		RegisteredClaims: s.registered(jti, student.ID),
		TokenType:        TokenTypeStudent,
		UserID:           student.ID,
		Name:             student.Name,
		ClassLabel:       student.ClassLabel,
	})
	if err != nil {
		return "", err
	}

	// SetNX closes the race between two concurrent logins.
	ok, err := s.rdb.SetNX(ctx, sessionKey, jti, s.cfg.JWTExpiry).Result()
	if err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	if !ok {
		return "", ErrSessionAlreadyActive
	}
	return signed, nil
}

// GenerateAdminToken signs an admin JWT with permissions embedded.
func (s *AuthService) GenerateAdminToken(admin *model.Admin) (string, error) {
	return s.sign(Claims{
		RegisteredClaims: s.registered(uuid.NewString(), admin.ID),
		TokenType:        TokenTypeAdmin,
		UserID:           admin.ID,
		Name:             admin.Name,
		Permissions:      admin.Permissions,
	})
}

func (s *AuthService) registered(jti string, userID int) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		ID:        jti,
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
	}
}

func (s *AuthService) sign(claims Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// ValidateStudentSession checks that the token's JTI is the student's active session.
func (s *AuthService) ValidateStudentSession(ctx context.Context, studentID int, jti string) error {
	stored, err := s.rdb.Get(ctx, config.CacheKey.StudentSessionKey(studentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNoActiveSession
		}
		return fmt.Errorf("check session: %w", err)
	}
	if stored != jti {
		return ErrSessionInvalidated
	}
	return nil
}

// ResetStudentSession removes a student's session, allowing a new login.
func (s *AuthService) ResetStudentSession(ctx context.Context, studentID int) error {
	return s.rdb.Del(ctx, config.CacheKey.StudentSessionKey(studentID)).Err()
}
