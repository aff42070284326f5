package storage

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/carebridge/clinic-sync/internal/vitals"
)

const readingColumns = `id, patient_id, recorded_ms, heart_rate_bpm, body_temperature_c, blood_glucose_mmol_l, synced`

func scanReading(row rowScanner) (*vitals.Reading, error) {
	var (
		r             vitals.Reading
		id, patientID string
		recordedMS    int64
		synced        int
	)

	err := row.Scan(&id, &patientID, &recordedMS, &r.HeartRateBPM, &r.BodyTemperatureC, &r.BloodGlucoseMmolL, &synced)
	if err != nil {
		return nil, err
	}

	rid, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	pid, err := uuid.Parse(patientID)
	if err != nil {
		return nil, err
	}

	r.ID = rid
	r.PatientID = pid
	r.RecordedAt = fromMillis(recordedMS)
	r.Synced = synced != 0
	return &r, nil
}

func collectReadings(rows *sql.Rows) ([]vitals.Reading, error) {
	defer rows.Close()

	var result []vitals.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) InsertReading(ctx context.Context, r vitals.Reading) error {
	synced := 0
	if r.Synced {
		synced = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vital_signs (id, patient_id, recorded_ms, heart_rate_bpm, body_temperature_c, blood_glucose_mmol_l, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.ID.String(), r.PatientID.String(), toMillis(r.RecordedAt), r.HeartRateBPM, r.BodyTemperatureC, r.BloodGlucoseMmolL, synced)
	if err != nil {
		return storageErr("insert reading", err)
	}
	return nil
}

func (s *Store) UnsyncedReadings(ctx context.Context) ([]vitals.Reading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+readingColumns+`
		FROM vital_signs
		WHERE synced = 0
		ORDER BY recorded_ms
	`)
	if err != nil {
		return nil, storageErr("query unsynced readings", err)
	}

	result, err := collectReadings(rows)
	if err != nil {
		return nil, storageErr("scan unsynced readings", err)
	}
	return result, nil
}

// MarkReadingsSynced flips the given readings to synced in one transaction.
// The flag is monotonic: there is no path that sets it back to zero.
func (s *Store) MarkReadingsSynced(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("mark readings synced", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE vital_signs SET synced = 1 WHERE id = ?`)
	if err != nil {
		return storageErr("mark readings synced", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, id.String()); err != nil {
			return storageErr("mark readings synced", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("mark readings synced: commit", err)
	}
	return nil
}

func (s *Store) ReadingsForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]vitals.Reading, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+readingColumns+`
		FROM vital_signs
		WHERE patient_id = ?
		ORDER BY recorded_ms DESC
		LIMIT ? OFFSET ?
	`, patientID.String(), limit, offset)
	if err != nil {
		return nil, storageErr("query patient readings", err)
	}

	result, err := collectReadings(rows)
	if err != nil {
		return nil, storageErr("scan patient readings", err)
	}
	return result, nil
}
