// Package clinicd is a development stand-in for the authoritative clinic
// service the agent syncs against. It implements the same wire contract,
// including the idempotent bulk reading upload, on top of Postgres.
package clinicd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/clinic-sync/internal/schedule"
	"github.com/carebridge/clinic-sync/internal/vitals"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the dev schema. The stand-in owns its tables; production
// deployments of the real service do not run this.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS appointments (
			id            UUID PRIMARY KEY,
			patient_id    UUID NOT NULL,
			patient_name  TEXT NOT NULL,
			clinic        TEXT NOT NULL,
			location      TEXT NOT NULL,
			start_time    TIMESTAMPTZ NOT NULL,
			end_time      TIMESTAMPTZ NOT NULL,
			status        TEXT NOT NULL,
			notes         TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_appointments_room ON appointments (clinic, location, status);
		CREATE INDEX IF NOT EXISTS idx_appointments_day  ON appointments (start_time);

		CREATE TABLE IF NOT EXISTS vital_signs (
			id                   UUID PRIMARY KEY,
			patient_id           UUID NOT NULL,
			recorded_at          TIMESTAMPTZ NOT NULL,
			heart_rate_bpm       INT NOT NULL,
			body_temperature_c   DOUBLE PRECISION NOT NULL,
			blood_glucose_mmol_l DOUBLE PRECISION NOT NULL,
			received_at          TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate clinicd schema: %w", err)
	}
	return nil
}

func scanAppointment(row pgx.Row) (*schedule.Appointment, error) {
	var (
		a      schedule.Appointment
		status string
	)

	err := row.Scan(&a.ID, &a.PatientID, &a.PatientName, &a.Clinic, &a.Location, &a.Start, &a.End, &status, &a.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, schedule.ErrNotFound
		}
		return nil, err
	}

	st, err := schedule.ParseStatus(status)
	if err != nil {
		return nil, err
	}
	a.Status = st
	a.Start = a.Start.UTC()
	a.End = a.End.UTC()
	return &a, nil
}

const appointmentColumns = `id, patient_id, patient_name, clinic, location, start_time, end_time, status, notes`

func (r *Repository) AppointmentsForDay(ctx context.Context, day time.Time, clinic, location string) ([]schedule.Appointment, error) {
	dayStart := time.Date(day.UTC().Year(), day.UTC().Month(), day.UTC().Day(), 0, 0, 0, 0, time.UTC)

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE start_time >= $1 AND start_time < $2
		  AND ($3 = '' OR clinic = $3)
		  AND ($4 = '' OR location = $4)
		ORDER BY start_time
	`, dayStart, dayStart.Add(24*time.Hour), clinic, location)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []schedule.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

func (r *Repository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

// ConflictingAppointments runs the server-side overlap check for one room,
// excluding excludeID so a reschedule never conflicts with itself.
func (r *Repository) ConflictingAppointments(ctx context.Context, clinic, location string, start, end time.Time, excludeID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id
		FROM appointments
		WHERE clinic = $1 AND location = $2
		  AND status = 'BOOKED'
		  AND start_time < $4 AND end_time > $3
		  AND id <> $5
	`, clinic, location, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) InsertAppointment(ctx context.Context, a schedule.Appointment) (*schedule.Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, patient_name, clinic, location, start_time, end_time, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+appointmentColumns+`
	`, id, a.PatientID, a.PatientName, a.Clinic, a.Location, a.Start, a.End, string(schedule.StatusBooked), a.Notes)

	return scanAppointment(row)
}

func (r *Repository) UpdateAppointmentTime(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) (*schedule.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET start_time = $2,
		    end_time   = $3,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, newStart, newEnd)

	return scanAppointment(row)
}

func (r *Repository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to schedule.Status) (*schedule.Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, string(to), string(from))

	return scanAppointment(row)
}

// BulkInsertReadings stores a batch of readings, skipping ids it has already
// accepted. Agents deliver at-least-once, so replays of a previous batch are
// expected and must not duplicate rows.
func (r *Repository) BulkInsertReadings(ctx context.Context, readings []vitals.Reading) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, rd := range readings {
		tag, err := tx.Exec(ctx, `
			INSERT INTO vital_signs (id, patient_id, recorded_at, heart_rate_bpm, body_temperature_c, blood_glucose_mmol_l)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, rd.ID, rd.PatientID, rd.RecordedAt, rd.HeartRateBPM, rd.BodyTemperatureC, rd.BloodGlucoseMmolL)
		if err != nil {
			return 0, err
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}
