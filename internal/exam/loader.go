package exam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhall/internal/model"
)

// Identity is the authenticated student taking an exam.
type Identity struct {
	StudentID  int
	Name       string
	ClassLabel string
}

// Present reports whether the identity was actually established.
func (i Identity) Present() bool {
	return i.StudentID > 0
}

// ExamStore reads exam documents and records the lazy publication transition.
// GetExamByID returns ErrExamNotFound when the id does not resolve.
type ExamStore interface {
	GetExamByID(ctx context.Context, id uuid.UUID) (*model.ExamDocument, error)
	UpdateExamStatus(ctx context.Context, id uuid.UUID, status model.ExamStatus) error
}

// Loader fetches and validates an exam for a student.
type Loader struct {
	store ExamStore
	now   func() time.Time
	log   zerolog.Logger
}

// NewLoader creates a Loader backed by store.
func NewLoader(store ExamStore, log zerolog.Logger) *Loader {
	return &Loader{
		store: store,
		now:   time.Now,
		log:   log.With().Str("component", "exam_loader").Logger(),
	}
}

// WithClock replaces the time source used for scheduled publication.
func (l *Loader) WithClock(now func() time.Time) *Loader {
	l.now = now
	return l
}

// Load returns the deliverable definition of examID for identity.
//
// Order of checks: identity, existence, question normalization, audience,
// lazy publication, publication state. When ctx is already done by the time
// the fetch completes the result is dropped with ErrSessionDiscarded.
func (l *Loader) Load(ctx context.Context, examID uuid.UUID, identity Identity) (*model.ExamDefinition, error) {
	if !identity.Present() {
		return nil, ErrIdentityRequired
	}

	doc, err := l.store.GetExamByID(ctx, examID)
	if err != nil {
		if errors.Is(err, ErrExamNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("fetch exam: %w", err)
	}

	def, err := DefinitionFromDocument(doc)
	if err != nil {
		return nil, err
	}

	if !Admits(def, identity.ClassLabel) {
		return nil, ErrNotInAudience
	}

	if _, err := l.Materialize(ctx, def); err != nil {
		// The schedule has passed, so the exam is published whether or not
		// the write landed. The next load retries the write.
		l.log.Warn().Err(err).Str("exam_id", def.ID.String()).Msg("Scheduled publish write failed")
		def.Status = model.ExamStatusPublished
	}

	if def.Status != model.ExamStatusPublished {
		return nil, ErrExamNotPublished
	}

	if ctx.Err() != nil {
		return nil, ErrSessionDiscarded
	}

	return def, nil
}

// Materialize performs the read-triggered AUTO_PUBLISH -> PUBLISHED
// transition once the scheduled time has been reached. It reports whether
// the transition happened. An AUTO_PUBLISH exam without a schedule never
// publishes itself.
func (l *Loader) Materialize(ctx context.Context, def *model.ExamDefinition) (bool, error) {
	if !PublicationDue(def, l.now()) {
		return false, nil
	}

	if err := l.store.UpdateExamStatus(ctx, def.ID, model.ExamStatusPublished); err != nil {
		return false, fmt.Errorf("materialize publication: %w", err)
	}

	def.Status = model.ExamStatusPublished
	l.log.Info().Str("exam_id", def.ID.String()).Msg("Exam auto-published")
	return true, nil
}

// PublicationDue reports whether def is AUTO_PUBLISH and its schedule has passed at now.
func PublicationDue(def *model.ExamDefinition, now time.Time) bool {
	if def.Status != model.ExamStatusAutoPublish || def.ScheduledAt == nil {
		return false
	}
	return !now.Before(*def.ScheduledAt)
}

// Admits reports whether a student in classLabel may take def. An empty
// audience admits everyone.
func Admits(def *model.ExamDefinition, classLabel string) bool {
	if len(def.AllowedClasses) == 0 {
		return true
	}
	label := strings.TrimSpace(classLabel)
	for _, allowed := range def.AllowedClasses {
		if strings.EqualFold(strings.TrimSpace(allowed), label) {
			return true
		}
	}
	return false
}
