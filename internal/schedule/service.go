package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebridge/clinic-sync/internal/lock"
)

// persistGrace bounds the local write that follows a committed remote call.
// The remote call is the commit point: once it succeeds the local persist must
// finish even if the caller's context has been cancelled, otherwise the cache
// would disagree with the service.
const persistGrace = 5 * time.Second

// Service implements offline-first booking, rescheduling, cancellation and
// day queries over the local store and the remote service. It holds no state
// of its own; the check-then-act sequence for one (clinic, location) room is
// serialized through the injected locker.
type Service struct {
	store  Store
	remote Remote
	locker lock.Locker
	log    *zap.Logger
}

func NewService(store Store, remote Remote, locker lock.Locker, log *zap.Logger) *Service {
	return &Service{
		store:  store,
		remote: remote,
		locker: locker,
		log:    log,
	}
}

func roomKey(clinic, location string) string {
	return "room:" + clinic + ":" + location
}

// DayAppointments returns the appointments for one UTC day, preferring the
// remote service and degrading to the local cache when the remote is
// unreachable or rejects the request. A day with no network and no cache is
// an empty result, not an error.
func (s *Service) DayAppointments(ctx context.Context, day time.Time, clinic, location string) ([]Appointment, error) {
	appts, err := s.remote.FetchDay(ctx, day, clinic, location)
	if err == nil {
		// Refresh the cache with what the service returned. A failed refresh
		// must not fail a read the network already answered.
		if perr := s.store.ReplaceDay(ctx, day, clinic, location, appts); perr != nil {
			s.log.Warn("day cache refresh failed",
				zap.String("clinic", clinic),
				zap.String("location", location),
				zap.Error(perr))
		}
		return appts, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	s.log.Info("remote day fetch failed, falling back to local cache",
		zap.String("clinic", clinic),
		zap.String("location", location),
		zap.Error(err))

	cached, serr := s.store.AppointmentsForDay(ctx, day, clinic, location)
	if serr != nil {
		return nil, fmt.Errorf("day fallback: %w", serr)
	}
	return cached, nil
}

// Book validates the candidate, checks it against the local BOOKED set for
// the target room and, only when no conflict exists, books it remotely and
// persists the acknowledged record. Booking is never created optimistically
// offline: without a remote acknowledgment a later reconnect could surface a
// silent double-booking.
func (s *Service) Book(ctx context.Context, appt Appointment) (Appointment, error) {
	if err := appt.Validate(); err != nil {
		return Appointment{}, err
	}
	appt.Status = StatusBooked

	var booked Appointment
	err := s.locker.WithLock(ctx, roomKey(appt.Clinic, appt.Location), func(ctx context.Context) error {
		existing, err := s.store.BookedAppointments(ctx, appt.Clinic, appt.Location)
		if err != nil {
			return fmt.Errorf("scan booked appointments: %w", err)
		}
		if ids := FindConflicts(appt.Interval(), existing, uuid.Nil); len(ids) > 0 {
			return &ConflictError{Clinic: appt.Clinic, Location: appt.Location, IDs: ids}
		}

		created, err := s.remote.Book(ctx, appt)
		if err != nil {
			return remoteErr("book appointment", err)
		}

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistGrace)
		defer cancel()
		if err := s.store.UpsertAppointment(pctx, created); err != nil {
			return fmt.Errorf("persist booked appointment: %w", err)
		}

		booked = created
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return Appointment{}, ErrRoomBusy
		}
		return Appointment{}, err
	}

	s.log.Info("appointment booked",
		zap.String("id", booked.ID.String()),
		zap.String("clinic", booked.Clinic),
		zap.String("location", booked.Location))
	return booked, nil
}

// Reschedule moves an existing appointment to a new interval, re-validated
// against the room's BOOKED set with the record itself excluded.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) (Appointment, error) {
	interval, err := NewInterval(newStart, newEnd)
	if err != nil {
		return Appointment{}, err
	}

	existing, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	if existing.Status.Terminal() {
		return Appointment{}, fmt.Errorf("reschedule %s appointment: %w", existing.Status, ErrInvalidStatusTransition)
	}

	var updated Appointment
	err = s.locker.WithLock(ctx, roomKey(existing.Clinic, existing.Location), func(ctx context.Context) error {
		booked, err := s.store.BookedAppointments(ctx, existing.Clinic, existing.Location)
		if err != nil {
			return fmt.Errorf("scan booked appointments: %w", err)
		}
		if ids := FindConflicts(interval, booked, id); len(ids) > 0 {
			return &ConflictError{Clinic: existing.Clinic, Location: existing.Location, IDs: ids}
		}

		if err := s.remote.Reschedule(ctx, id, interval.Start, interval.End); err != nil {
			return remoteErr("reschedule appointment", err)
		}

		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistGrace)
		defer cancel()
		if err := s.store.UpdateAppointmentTime(pctx, id, interval.Start, interval.End); err != nil {
			return fmt.Errorf("persist rescheduled time: %w", err)
		}

		updated = *existing
		updated.Start = interval.Start
		updated.End = interval.End
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return Appointment{}, ErrRoomBusy
		}
		return Appointment{}, err
	}

	return updated, nil
}

// Cancel marks an appointment CANCELLED, remote first. Any remote error
// propagates with no local mutation so a failed cancel never looks succeeded.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	existing, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status.Terminal() {
		return fmt.Errorf("cancel %s appointment: %w", existing.Status, ErrInvalidStatusTransition)
	}

	if err := s.remote.Cancel(ctx, id); err != nil {
		return remoteErr("cancel appointment", err)
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistGrace)
	defer cancel()
	if err := s.store.UpdateAppointmentStatus(pctx, id, StatusBooked, StatusCancelled); err != nil {
		return fmt.Errorf("persist cancellation: %w", err)
	}

	s.log.Info("appointment cancelled", zap.String("id", id.String()))
	return nil
}

func remoteErr(op string, err error) error {
	if IsRetryable(err) {
		return fmt.Errorf("%s: %w: %v", op, ErrRemoteUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
