package model

import "time"

// Student represents an enrolled student.
type Student struct {
	ID           int       `json:"id"`
	RollNumber   string    `json:"roll_number"`
	Name         string    `json:"name"`
	ClassLabel   string    `json:"class_label"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// StudentLoginRequest is the payload for student authentication.
type StudentLoginRequest struct {
	RollNumber string `json:"roll_number" binding:"required,min=3,max=30"`
	Password   string `json:"password" binding:"required,min=4,max=128"`
}

// CreateStudentRequest is the payload for enrolling a student.
type CreateStudentRequest struct {
	RollNumber string `json:"roll_number" binding:"required,min=3,max=30"`
	Name       string `json:"name" binding:"required,max=255"`
	ClassLabel string `json:"class_label" binding:"required,max=50"`
	Password   string `json:"password" binding:"required,min=6,max=128"`
}
