package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound                = errors.New("appointment not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrRemoteUnavailable       = errors.New("remote service unavailable, retry later")
	ErrRoomBusy                = errors.New("room is currently being booked, please retry")
)

// ConflictError is returned when a booking or reschedule would overlap an
// existing BOOKED appointment in the same (clinic, location).
type ConflictError struct {
	Clinic   string
	Location string
	IDs      []uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("appointment conflict at %s/%s with %d existing booking(s)", e.Clinic, e.Location, len(e.IDs))
}

// Store is the durable local cache consumed by the service. A missing record
// surfaces as ErrNotFound; any persistence failure surfaces as a storage error
// and is fatal for the operation that hit it.
type Store interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// AppointmentsForDay returns appointments whose start falls on the given
	// UTC day, ordered by start time. Empty clinic or location means no filter.
	AppointmentsForDay(ctx context.Context, day time.Time, clinic, location string) ([]Appointment, error)

	// BookedAppointments returns all BOOKED records for one room, for
	// conflict scanning.
	BookedAppointments(ctx context.Context, clinic, location string) ([]Appointment, error)

	UpsertAppointment(ctx context.Context, appt Appointment) error

	// ReplaceDay atomically replaces the cached records matching the day and
	// filters with the given set. Used for the read-path cache refresh.
	ReplaceDay(ctx context.Context, day time.Time, clinic, location string, appts []Appointment) error

	UpdateAppointmentTime(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) error

	// UpdateAppointmentStatus transitions id from one status to another and
	// returns ErrNotFound when no row is in the expected state.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to Status) error
}

// Remote is the networked authoritative service. Every call resolves to one
// of three outcomes: nil (success), an application error (the service gave a
// definitive rejection) or a transport error (no definitive answer). The two
// error shapes are told apart through the Retryable method, see IsRetryable.
type Remote interface {
	FetchDay(ctx context.Context, day time.Time, clinic, location string) ([]Appointment, error)
	Book(ctx context.Context, appt Appointment) (Appointment, error)
	Reschedule(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) error
	Cancel(ctx context.Context, id uuid.UUID) error
}

type retryable interface {
	Retryable() bool
}

// IsRetryable reports whether err represents a transport-level failure that a
// later attempt may succeed against. Application-level rejections are decided
// outcomes and are never retryable.
func IsRetryable(err error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return errors.Is(err, ErrRemoteUnavailable)
}
