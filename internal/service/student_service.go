package service

import (
	"context"
	"strings"

	"github.com/stemsi/examhall/internal/model"
	"golang.org/x/crypto/bcrypt"
)

// StudentCreator persists new student accounts.
type StudentCreator interface {
	Create(ctx context.Context, s *model.Student) error
}

// StudentService provisions student accounts.
type StudentService struct {
	students StudentCreator
	cost     int
}

// NewStudentService creates a new StudentService.
func NewStudentService(students StudentCreator, bcryptCost int) *StudentService {
	return &StudentService{students: students, cost: bcryptCost}
}

// Create hashes password and stores the student. Class labels are trimmed
// since audience matching ignores surrounding space anyway.
func (s *StudentService) Create(ctx context.Context, rollNumber, name, classLabel, password string) (*model.Student, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, err
	}
	student := &model.Student{
		RollNumber:   strings.TrimSpace(rollNumber),
		Name:         strings.TrimSpace(name),
		ClassLabel:   strings.TrimSpace(classLabel),
		PasswordHash: string(hash),
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, err
	}
	return student, nil
}
