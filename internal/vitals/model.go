package vitals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reading is one set of vital signs captured on the device. The id is
// assigned at capture time and doubles as the idempotency key for bulk
// upload: the remote service must treat a re-sent id as already accepted.
//
// Synced is monotonic: it starts false and is flipped to true only after the
// remote service confirmed an upload that included this reading. It is never
// reset.
type Reading struct {
	ID                uuid.UUID
	PatientID         uuid.UUID
	RecordedAt        time.Time
	HeartRateBPM      int
	BodyTemperatureC  float64
	BloodGlucoseMmolL float64
	Synced            bool
}

// NewReading builds an unsynced reading captured now-or-earlier. The range
// checks are deliberately loose; they catch unit mix-ups, not clinical
// abnormality.
func NewReading(patientID uuid.UUID, recordedAt time.Time, heartRateBPM int, bodyTemperatureC, bloodGlucoseMmolL float64) (Reading, error) {
	if patientID == uuid.Nil {
		return Reading{}, errors.New("patient id is required")
	}
	if heartRateBPM <= 0 || heartRateBPM > 400 {
		return Reading{}, fmt.Errorf("implausible heart rate %d bpm", heartRateBPM)
	}
	if bodyTemperatureC < 20 || bodyTemperatureC > 45 {
		return Reading{}, fmt.Errorf("implausible body temperature %.1f C", bodyTemperatureC)
	}
	if bloodGlucoseMmolL < 0 || bloodGlucoseMmolL > 60 {
		return Reading{}, fmt.Errorf("implausible blood glucose %.1f mmol/L", bloodGlucoseMmolL)
	}
	return Reading{
		ID:                uuid.New(),
		PatientID:         patientID,
		RecordedAt:        recordedAt.UTC(),
		HeartRateBPM:      heartRateBPM,
		BodyTemperatureC:  bodyTemperatureC,
		BloodGlucoseMmolL: bloodGlucoseMmolL,
		Synced:            false,
	}, nil
}

// Store is the durable local collection of readings.
type Store interface {
	InsertReading(ctx context.Context, r Reading) error

	// UnsyncedReadings returns every reading not yet confirmed uploaded,
	// oldest first.
	UnsyncedReadings(ctx context.Context) ([]Reading, error)

	// MarkReadingsSynced flips the given readings to synced in a single
	// transaction.
	MarkReadingsSynced(ctx context.Context, ids []uuid.UUID) error

	ReadingsForPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Reading, error)
}

// Uploader pushes a batch of readings to the remote service.
type Uploader interface {
	UploadReadings(ctx context.Context, readings []Reading) error
}
