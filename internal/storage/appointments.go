package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/clinic-sync/internal/schedule"
)

const appointmentColumns = `id, patient_id, patient_name, clinic, location, start_ms, end_ms, status, notes`

func scanAppointment(row rowScanner) (*schedule.Appointment, error) {
	var (
		a              schedule.Appointment
		id, patientID  string
		startMS, endMS int64
		status         string
	)

	err := row.Scan(&id, &patientID, &a.PatientName, &a.Clinic, &a.Location, &startMS, &endMS, &status, &a.Notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, schedule.ErrNotFound
		}
		return nil, err
	}

	aid, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	pid, err := uuid.Parse(patientID)
	if err != nil {
		return nil, err
	}
	st, err := schedule.ParseStatus(status)
	if err != nil {
		return nil, err
	}

	a.ID = aid
	a.PatientID = pid
	a.Start = fromMillis(startMS)
	a.End = fromMillis(endMS)
	a.Status = st
	return &a, nil
}

func collectAppointments(rows *sql.Rows) ([]schedule.Appointment, error) {
	defer rows.Close()

	var result []schedule.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// dayBounds returns the half-open UTC millisecond range covering day.
func dayBounds(day time.Time) (int64, int64) {
	start := time.Date(day.UTC().Year(), day.UTC().Month(), day.UTC().Day(), 0, 0, 0, 0, time.UTC)
	return start.UnixMilli(), start.Add(24 * time.Hour).UnixMilli()
}

func (s *Store) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = ?
	`, id.String())

	a, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, schedule.ErrNotFound) {
			return nil, err
		}
		return nil, storageErr("get appointment", err)
	}
	return a, nil
}

func (s *Store) AppointmentsForDay(ctx context.Context, day time.Time, clinic, location string) ([]schedule.Appointment, error) {
	fromMS, toMS := dayBounds(day)

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE start_ms >= ? AND start_ms < ?
		  AND (? = '' OR clinic = ?)
		  AND (? = '' OR location = ?)
		ORDER BY start_ms
	`, fromMS, toMS, clinic, clinic, location, location)
	if err != nil {
		return nil, storageErr("query day appointments", err)
	}

	result, err := collectAppointments(rows)
	if err != nil {
		return nil, storageErr("scan day appointments", err)
	}
	return result, nil
}

func (s *Store) BookedAppointments(ctx context.Context, clinic, location string) ([]schedule.Appointment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE clinic = ? AND location = ? AND status = ?
		ORDER BY start_ms
	`, clinic, location, string(schedule.StatusBooked))
	if err != nil {
		return nil, storageErr("query booked appointments", err)
	}

	result, err := collectAppointments(rows)
	if err != nil {
		return nil, storageErr("scan booked appointments", err)
	}
	return result, nil
}

func (s *Store) UpsertAppointment(ctx context.Context, appt schedule.Appointment) error {
	if appt.ID == uuid.Nil {
		return storageErr("upsert appointment", errors.New("appointment id is required"))
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO appointments (id, patient_id, patient_name, clinic, location, start_ms, end_ms, status, notes, updated_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			patient_id   = excluded.patient_id,
			patient_name = excluded.patient_name,
			clinic       = excluded.clinic,
			location     = excluded.location,
			start_ms     = excluded.start_ms,
			end_ms       = excluded.end_ms,
			status       = excluded.status,
			notes        = excluded.notes,
			updated_ms   = excluded.updated_ms
	`, appt.ID.String(), appt.PatientID.String(), appt.PatientName, appt.Clinic, appt.Location,
		toMillis(appt.Start), toMillis(appt.End), string(appt.Status), appt.Notes, toMillis(time.Now()))
	if err != nil {
		return storageErr("upsert appointment", err)
	}
	return nil
}

// ReplaceDay swaps the cached records matching day and filters for the given
// set in one transaction, so a reader never sees a half-refreshed day.
func (s *Store) ReplaceDay(ctx context.Context, day time.Time, clinic, location string, appts []schedule.Appointment) error {
	fromMS, toMS := dayBounds(day)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("replace day", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM appointments
		WHERE start_ms >= ? AND start_ms < ?
		  AND (? = '' OR clinic = ?)
		  AND (? = '' OR location = ?)
	`, fromMS, toMS, clinic, clinic, location, location)
	if err != nil {
		return storageErr("replace day: clear", err)
	}

	now := toMillis(time.Now())
	for _, appt := range appts {
		if appt.ID == uuid.Nil {
			continue // never cache a record the server has not identified
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO appointments (id, patient_id, patient_name, clinic, location, start_ms, end_ms, status, notes, updated_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				patient_id   = excluded.patient_id,
				patient_name = excluded.patient_name,
				clinic       = excluded.clinic,
				location     = excluded.location,
				start_ms     = excluded.start_ms,
				end_ms       = excluded.end_ms,
				status       = excluded.status,
				notes        = excluded.notes,
				updated_ms   = excluded.updated_ms
		`, appt.ID.String(), appt.PatientID.String(), appt.PatientName, appt.Clinic, appt.Location,
			toMillis(appt.Start), toMillis(appt.End), string(appt.Status), appt.Notes, now)
		if err != nil {
			return storageErr("replace day: insert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("replace day: commit", err)
	}
	return nil
}

func (s *Store) UpdateAppointmentTime(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE appointments
		SET start_ms = ?, end_ms = ?, updated_ms = ?
		WHERE id = ?
	`, toMillis(newStart), toMillis(newEnd), toMillis(time.Now()), id.String())
	if err != nil {
		return storageErr("update appointment time", err)
	}
	return requireRow(res, "update appointment time")
}

func (s *Store) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to schedule.Status) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE appointments
		SET status = ?, updated_ms = ?
		WHERE id = ? AND status = ?
	`, string(to), toMillis(time.Now()), id.String(), string(from))
	if err != nil {
		return storageErr("update appointment status", err)
	}
	return requireRow(res, "update appointment status")
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr(op, err)
	}
	if n == 0 {
		return schedule.ErrNotFound
	}
	return nil
}
