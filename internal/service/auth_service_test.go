package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stemsi/examhall/internal/config"
	"github.com/stemsi/examhall/internal/model"
	"golang.org/x/crypto/bcrypt"
)

func newAuth(t *testing.T) (*AuthService, *fakeAccounts) {
	t.Helper()
	rdb, _ := newRedis(t)
	cfg := &config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour, BcryptCost: bcrypt.MinCost}

	hash, err := bcrypt.GenerateFromPassword([]byte("secret12"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	accounts := &fakeAccounts{
		students: map[string]*model.Student{
			"R-101": {ID: 7, RollNumber: "R-101", Name: "Asha", ClassLabel: "12-A", PasswordHash: string(hash)},
		},
		admins: map[string]*model.Admin{
			"admin@school.test": {ID: 1, Email: "admin@school.test", Name: "Ops", PasswordHash: string(hash),
				Permissions: []string{"exams:read", "results:read"}},
		},
	}
	return NewAuthService(cfg, rdb, accounts, accounts), accounts
}

func TestStudentLoginCarriesIdentity(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	token, student, err := auth.StudentLogin(ctx, "R-101", "secret12")
	if err != nil {
		t.Fatal(err)
	}
	if student.ID != 7 {
		t.Fatalf("student = %+v", student)
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatal(err)
	}
	id := claims.Identity()
	if id.StudentID != 7 || id.Name != "Asha" || id.ClassLabel != "12-A" {
		t.Fatalf("identity = %+v", id)
	}
	if err := auth.ValidateStudentSession(ctx, 7, claims.ID); err != nil {
		t.Fatalf("session: %v", err)
	}
}

func TestStudentLoginSingleDevice(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	if _, _, err := auth.StudentLogin(ctx, "R-101", "secret12"); err != nil {
		t.Fatal(err)
	}
	if _, _, err := auth.StudentLogin(ctx, "R-101", "secret12"); !errors.Is(err, ErrSessionAlreadyActive) {
		t.Fatalf("second login err = %v, want ErrSessionAlreadyActive", err)
	}

	if err := auth.ResetStudentSession(ctx, 7); err != nil {
		t.Fatal(err)
	}
	if _, _, err := auth.StudentLogin(ctx, "R-101", "secret12"); err != nil {
		t.Fatalf("login after reset: %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
	}{
		{"unknown roll number", func() error { _, _, err := auth.StudentLogin(ctx, "R-999", "secret12"); return err }},
		{"wrong student password", func() error { _, _, err := auth.StudentLogin(ctx, "R-101", "nope"); return err }},
		{"unknown admin", func() error { _, _, err := auth.AdminLogin(ctx, "x@school.test", "secret12"); return err }},
		{"wrong admin password", func() error { _, _, err := auth.AdminLogin(ctx, "admin@school.test", "nope"); return err }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.run(); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestAdminTokenHasNoExamIdentity(t *testing.T) {
	auth, _ := newAuth(t)

	token, _, err := auth.AdminLogin(context.Background(), "admin@school.test", "secret12")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if claims.TokenType != TokenTypeAdmin || len(claims.Permissions) != 2 {
		t.Fatalf("claims = %+v", claims)
	}
	if claims.Identity().Present() {
		t.Fatal("admin token must not act as a student identity")
	}
}

func TestValidateStudentSessionMismatch(t *testing.T) {
	auth, _ := newAuth(t)
	ctx := context.Background()

	if err := auth.ValidateStudentSession(ctx, 7, "jti"); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("err = %v, want ErrNoActiveSession", err)
	}
	if _, _, err := auth.StudentLogin(ctx, "R-101", "secret12"); err != nil {
		t.Fatal(err)
	}
	if err := auth.ValidateStudentSession(ctx, 7, "stale"); !errors.Is(err, ErrSessionInvalidated) {
		t.Fatalf("err = %v, want ErrSessionInvalidated", err)
	}
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	auth, _ := newAuth(t)
	other, _ := newAuth(t)
	other.cfg = &config.Config{JWTSecret: "other", JWTExpiry: time.Hour}

	token, err := other.GenerateAdminToken(&model.Admin{ID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := auth.ValidateToken(token); err == nil {
		t.Fatal("token signed with another secret was accepted")
	}
}
