package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/registration/domain"
	"github.com/MatanSaban/GhostPostWebsite-sub000/internal/telemetry"
)

// AccountInput is the ACCOUNT_SETUP submission.
type AccountInput struct {
	Name string `json:"name" validate:"required,max=100"`
	Slug string `json:"slug" validate:"required,slug"`
}

// SlugInput is a slug availability query.
type SlugInput struct {
	Slug string `json:"slug" validate:"required,slug"`
}

// CheckSlug reports whether slug is free for registration id. It is advisory:
// SubmitAccount performs the authoritative reservation.
func (s *Service) CheckSlug(ctx context.Context, id string, in SlugInput) (bool, error) {
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	if err := validateStruct(in); err != nil {
		return false, err
	}
	now := s.now()
	r, err := s.load(ctx, id, now)
	if err != nil {
		return false, err
	}
	if err := r.Require(domain.StepAccountSetup); err != nil {
		return false, err
	}
	if r.Account != nil && r.Account.Slug == in.Slug {
		return true, nil
	}
	taken, err := s.slugInUse(ctx, in.Slug)
	if err != nil {
		return false, err
	}
	if taken {
		return false, nil
	}
	holder, err := s.slugs.Holder(ctx, in.Slug)
	if err != nil {
		return false, err
	}
	return holder == "" || holder == id, nil
}

// SubmitAccount stores the organization draft and reserves its slug for the
// registration's lifetime. When two registrations race for the same slug exactly
// one reservation succeeds; the other fails with ErrSlugTaken. Once interview
// answers exist the account step is locked.
func (s *Service) SubmitAccount(ctx context.Context, id string, in AccountInput) (*StepView, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Slug = strings.ToLower(strings.TrimSpace(in.Slug))
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	now := s.now()
	cur, err := s.load(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if err := accountEditable(cur); err != nil {
		return nil, err
	}
	held := cur.Account != nil && cur.Account.Slug == in.Slug
	if !held {
		taken, err := s.slugInUse(ctx, in.Slug)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domain.ErrSlugTaken
		}
	}
	ok, err := s.slugs.Reserve(ctx, in.Slug, id, cur.ExpiresAt.Sub(now))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrSlugTaken
	}

	// previous is the slug stored when the update last ran; it decides which
	// reservation to free, since cur may be stale.
	var previous string
	if cur.Account != nil {
		previous = cur.Account.Slug
	}
	r, err := s.update(ctx, id, now, func(r *domain.Registration) error {
		previous = ""
		if r.Account != nil {
			previous = r.Account.Slug
		}
		if err := accountEditable(r); err != nil {
			return err
		}
		r.Account = &domain.AccountDraft{Name: in.Name, Slug: in.Slug}
		r.Advance(domain.StepAccountSetup)
		return nil
	})
	if err != nil {
		if previous != in.Slug {
			if rerr := s.slugs.Release(ctx, in.Slug, id); rerr != nil {
				log.Warn().Err(rerr).Str("slug", in.Slug).Msg("releasing slug after failed account update")
			}
		}
		return nil, err
	}
	if previous != "" && previous != in.Slug {
		if err := s.slugs.Release(ctx, previous, id); err != nil {
			log.Warn().Err(err).Str("slug", previous).Msg("releasing replaced slug failed; reservation will expire")
		}
	}
	s.emit(telemetry.EventStepSubmitted, r, now, "step", domain.StepAccountSetup.String())
	return s.view(r, r.CurrentStep, now), nil
}

func accountEditable(r *domain.Registration) error {
	if err := r.Require(domain.StepAccountSetup); err != nil {
		return err
	}
	if r.InterviewStarted() {
		return fmt.Errorf("%w: the account cannot change once the interview has started", domain.ErrStepLocked)
	}
	return nil
}

func (s *Service) slugInUse(ctx context.Context, slug string) (bool, error) {
	if s.slugLookup == nil {
		return false, nil
	}
	taken, err := s.slugLookup.ActiveSlugExists(ctx, slug)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}
	return taken, nil
}
