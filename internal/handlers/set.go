package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/92Bilal26/ai-junior-bilal/internal/domain"
)

// Set holds one handler per action. A nil handler means the action is not
// configured in this process.
type Set struct {
	Attendance *AttendanceHandler
	Email      *EmailHandler
}

// Dispatch runs the handler for a. Unsupported actions return
// *domain.InvalidTaskTypeError.
func (s Set) Dispatch(ctx context.Context, a domain.Action) error {
	switch act := a.(type) {
	case domain.MarkAttendance:
		if s.Attendance == nil {
			return errors.New("attendance service not configured")
		}
		return s.Attendance.Handle(ctx, act)
	case domain.SendEmail:
		if s.Email == nil {
			return errors.New("email handler not configured")
		}
		return s.Email.Handle(ctx, act)
	case domain.Unsupported:
		return &domain.InvalidTaskTypeError{TaskType: act.Type, Action: act.Action}
	}
	return fmt.Errorf("unhandled action %T", a)
}

// ActionName is a stable label for a, used in metrics and logs.
func ActionName(a domain.Action) string {
	switch a.(type) {
	case domain.MarkAttendance:
		return "mark_attendance"
	case domain.SendEmail:
		return "send_email"
	case domain.Unsupported:
		return "unsupported"
	}
	return "unknown"
}
