package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/examhall/internal/exam"
	"github.com/stemsi/examhall/internal/model"
)

// ErrCorrectAnswerNotOption rejects a question whose key matches no option.
var ErrCorrectAnswerNotOption = errors.New("correct_answer must equal one of the options")

// QuestionAppender stores one more raw question on an exam.
type QuestionAppender interface {
	AppendQuestion(ctx context.Context, id uuid.UUID, question json.RawMessage) (int, error)
}

// ImageSaver turns a pasted data URI into a hosted image URL.
type ImageSaver interface {
	SaveDataURI(ctx context.Context, dataURI string) (string, error)
}

// QuestionService appends authored questions to exams.
type QuestionService struct {
	store  QuestionAppender
	images ImageSaver
	log    zerolog.Logger
}

// NewQuestionService creates a new QuestionService.
func NewQuestionService(store QuestionAppender, images ImageSaver, log zerolog.Logger) *QuestionService {
	return &QuestionService{
		store:  store,
		images: images,
		log:    log.With().Str("component", "question_service").Logger(),
	}
}

// Add stores the question in canonical form and returns the exam's new question count.
// A pasted image is uploaded first and replaces ImageRef.
func (s *QuestionService) Add(ctx context.Context, examID uuid.UUID, req *model.AddQuestionRequest) (int, error) {
	q := model.Question{
		Prompt:        strings.TrimSpace(req.Prompt),
		ImageRef:      strings.TrimSpace(req.ImageRef),
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Subject:       strings.TrimSpace(req.Subject),
		Topic:         strings.TrimSpace(req.Topic),
	}
	if !slices.Contains(q.Options, q.CorrectAnswer) {
		return 0, ErrCorrectAnswerNotOption
	}

	if req.ImageData != "" {
		url, err := s.images.SaveDataURI(ctx, req.ImageData)
		if err != nil {
			return 0, err
		}
		q.ImageRef = url
	}

	raw, err := json.Marshal(q)
	if err != nil {
		return 0, fmt.Errorf("marshal question: %w", err)
	}
	// Refuse anything students would fail to load.
	if _, err := exam.NormalizeQuestion(raw); err != nil {
		return 0, err
	}

	count, err := s.store.AppendQuestion(ctx, examID, raw)
	if err != nil {
		return 0, err
	}

	s.log.Info().Str("exam_id", examID.String()).Int("questions", count).Msg("Question added")
	return count, nil
}
