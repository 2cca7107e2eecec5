package app

import (
	"context"
	"fmt"
	"time"

	"group_question_service/internal/domain/cycle"
)

// Custom application-level errors for admin service
var ErrAdminNotAuthorized = fmt.Errorf("performing user is not authorized as an admin")

// AdminService exposes manual cycle overrides to the admin chat.
type AdminService struct {
	cycles          *CycleService
	cycleRepo       cycle.Repository
	adminTelegramID int64
}

func NewAdminService(cycles *CycleService, cycleRepo cycle.Repository, adminID int64) *AdminService {
	return &AdminService{
		cycles:          cycles,
		cycleRepo:       cycleRepo,
		adminTelegramID: adminID,
	}
}

func (s *AdminService) authorize(performingAdminID int64) error {
	if s.adminTelegramID == 0 || performingAdminID != s.adminTelegramID {
		return ErrAdminNotAuthorized
	}
	return nil
}

// GetCycle returns the cycle for display.
func (s *AdminService) GetCycle(ctx context.Context, performingAdminID, cycleID int64) (*cycle.Cycle, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	return s.cycleRepo.GetByID(ctx, cycleID)
}

// ActivateCycle opens a cycle ahead of its start date.
func (s *AdminService) ActivateCycle(ctx context.Context, performingAdminID, cycleID int64) (*cycle.Cycle, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	return s.cycles.Activate(ctx, cycleID)
}

// CloseCycle closes a cycle early.
func (s *AdminService) CloseCycle(ctx context.Context, performingAdminID, cycleID int64) (*cycle.Cycle, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	return s.cycles.Close(ctx, cycleID)
}

// PauseCycle holds a cycle's automatic transitions until the given date.
func (s *AdminService) PauseCycle(ctx context.Context, performingAdminID, cycleID int64, until time.Time) (*cycle.Cycle, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	return s.cycles.PauseUntil(ctx, cycleID, until)
}

// ResumeCycle lifts a pause immediately.
func (s *AdminService) ResumeCycle(ctx context.Context, performingAdminID, cycleID int64) (*cycle.Cycle, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	return s.cycles.ResumeNow(ctx, cycleID)
}

// ScheduleCycle sends a question to a group outside the weekly rhythm.
func (s *AdminService) ScheduleCycle(ctx context.Context, performingAdminID, groupID, questionID int64) (*cycle.Cycle, error) {
	if err := s.authorize(performingAdminID); err != nil {
		return nil, err
	}
	return s.cycles.Schedule(ctx, groupID, questionID, s.cycles.now(), true)
}
