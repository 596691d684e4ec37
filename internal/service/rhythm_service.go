package service

import (
	"context"
	"fmt"
	"strings"

	"kairos/internal/models/rhythm"
	"kairos/internal/models/student"
)

type RhythmInput struct {
	Name  string
	Icon  rhythm.Icon
	Color student.Color
}

func (in RhythmInput) normalize() (RhythmInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, NewValidationError("name", "must not be empty")
	}
	if in.Icon == "" {
		in.Icon = rhythm.IconSun
	}
	if !in.Icon.Valid() {
		return in, NewValidationError("icon", fmt.Sprintf("unknown icon %q", in.Icon))
	}
	if in.Color == "" {
		in.Color = student.ColorGreen
	}
	if !in.Color.Valid() {
		return in, NewValidationError("color", fmt.Sprintf("unknown color %q", in.Color))
	}
	return in, nil
}

func (s *PlannerService) ListRhythms(ctx context.Context, accountID string) ([]rhythm.Rhythm, error) {
	rhythms, err := s.store.ListRhythms(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("получение ритмов: %w", err)
	}
	return rhythms, nil
}

func (s *PlannerService) CreateRhythm(ctx context.Context, accountID string, in RhythmInput) (*rhythm.Rhythm, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	r := &rhythm.Rhythm{Name: in.Name, Icon: in.Icon, Color: in.Color}
	if err := s.store.CreateRhythm(ctx, accountID, r); err != nil {
		return nil, fmt.Errorf("создание ритма: %w", err)
	}
	return r, nil
}

func (s *PlannerService) UpdateRhythm(ctx context.Context, accountID, id string, in RhythmInput) (*rhythm.Rhythm, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}
	r, err := s.store.GetRhythm(ctx, accountID, id)
	if err != nil {
		return nil, notFound(err, "rhythm", id)
	}
	r.Name, r.Icon, r.Color = in.Name, in.Icon, in.Color
	if err := s.store.UpdateRhythm(ctx, accountID, r); err != nil {
		return nil, notFound(err, "rhythm", id)
	}
	return r, nil
}

func (s *PlannerService) DeleteRhythm(ctx context.Context, accountID, id string) error {
	if _, err := s.store.GetRhythm(ctx, accountID, id); err != nil {
		return notFound(err, "rhythm", id)
	}
	if err := s.store.DeleteRhythm(ctx, accountID, id); err != nil {
		return fmt.Errorf("удаление ритма: %w", err)
	}
	return nil
}
