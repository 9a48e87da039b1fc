package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/interview"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/telemetry"
)

// AnswerInput is one interview answer.
type AnswerInput struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// InterviewInput saves several answers and optionally completes the step.
type InterviewInput struct {
	Answers  []AnswerInput `json:"answers"`
	Complete bool          `json:"is_complete"`
}

// SaveAnswer stores a single answer. Each answer is persisted on its own so a
// partially filled interview resumes where it stopped.
func (s *Service) SaveAnswer(ctx context.Context, id string, in AnswerInput) (*StepView, error) {
	field, value, err := s.normalizeAnswer(in)
	if err != nil {
		return nil, err
	}
	now := s.now()
	r, err := s.saveAnswer(ctx, id, field, value, now)
	if err != nil {
		return nil, err
	}
	return s.view(r, domain.StepInterview, now), nil
}

// SubmitInterview validates every answer, persists them one at a time and, when
// Complete is set, advances INTERVIEW to PLAN once all questions are answered.
func (s *Service) SubmitInterview(ctx context.Context, id string, in InterviewInput) (*StepView, error) {
	normalized := make([]AnswerInput, len(in.Answers))
	verr := &domain.ValidationError{}
	for i, a := range in.Answers {
		f, v, err := s.normalizeAnswer(a)
		if err != nil {
			var fe *domain.ValidationError
			if errors.As(err, &fe) {
				for k, msg := range fe.Fields {
					verr.Add(k, msg)
				}
				continue
			}
			return nil, err
		}
		normalized[i] = AnswerInput{Field: f, Value: v}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	now := s.now()
	var (
		r   *domain.Registration
		err error
	)
	for _, a := range normalized {
		if r, err = s.saveAnswer(ctx, id, a.Field, a.Value, now); err != nil {
			return nil, err
		}
	}
	if in.Complete {
		return s.CompleteInterview(ctx, id)
	}
	if r == nil {
		if r, err = s.load(ctx, id, now); err != nil {
			return nil, err
		}
		if err := r.Require(domain.StepInterview); err != nil {
			return nil, err
		}
	}
	return s.view(r, domain.StepInterview, now), nil
}

// CompleteInterview advances INTERVIEW to PLAN. Unanswered questions fail with a
// ValidationError naming each missing field.
func (s *Service) CompleteInterview(ctx context.Context, id string) (*StepView, error) {
	now := s.now()
	fields := s.questions.Fields()
	r, err := s.update(ctx, id, now, func(r *domain.Registration) error {
		if err := r.Require(domain.StepInterview); err != nil {
			return err
		}
		missing := r.MissingAnswers(fields)
		if len(missing) > 0 {
			verr := &domain.ValidationError{}
			for _, f := range missing {
				verr.Add(f, "is required")
			}
			return verr
		}
		r.Advance(domain.StepInterview)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.emit(telemetry.EventStepSubmitted, r, now, "step", domain.StepInterview.String())
	return s.view(r, r.CurrentStep, now), nil
}

func (s *Service) saveAnswer(ctx context.Context, id, field, value string, now time.Time) (*domain.Registration, error) {
	order := s.questions.Fields()
	return s.update(ctx, id, now, func(r *domain.Registration) error {
		if err := r.Require(domain.StepInterview); err != nil {
			return err
		}
		r.SetAnswer(field, value, now, order)
		return nil
	})
}

func (s *Service) normalizeAnswer(in AnswerInput) (field, value string, err error) {
	field = strings.TrimSpace(in.Field)
	if field == "" {
		return "", "", domain.NewValidationError("field", "is required")
	}
	value, err = s.questions.Normalize(field, in.Value)
	switch {
	case errors.Is(err, interview.ErrUnknownField):
		return "", "", domain.NewValidationError(field, "unknown question")
	case errors.Is(err, interview.ErrInvalidValue):
		return "", "", domain.NewValidationError(field, strings.TrimPrefix(err.Error(), interview.ErrInvalidValue.Error()+": "))
	case err != nil:
		return "", "", err
	}
	return field, value, nil
}
