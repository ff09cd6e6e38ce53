package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/stemsi/examhall/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// AdminCreator persists admin accounts.
type AdminCreator interface {
	Create(ctx context.Context, a *model.Admin) error
}

// AdminService provisions admin accounts.
type AdminService struct {
	admins AdminCreator
	cost   int
}

// NewAdminService creates a new AdminService.
func NewAdminService(admins AdminCreator, bcryptCost int) *AdminService {
	return &AdminService{admins: admins, cost: bcryptCost}
}

// Create stores an admin. Unknown permission codes are rejected; an empty
// list grants every permission.
func (s *AdminService) Create(ctx context.Context, email, name, password string, permissions []string) (*model.Admin, error) {
	known := model.PermissionStrings()
	if len(permissions) == 0 {
		permissions = known
	}
	for _, p := range permissions {
		if !slices.Contains(known, p) {
			return nil, fmt.Errorf("unknown permission %q", p)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	admin := &model.Admin{
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		Permissions:  permissions,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, err
	}
	return admin, nil
}
