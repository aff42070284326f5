package remote

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/clinic-sync/internal/schedule"
	"github.com/carebridge/clinic-sync/internal/vitals"
)

// Wire shapes shared with the clinic service. Timestamps travel as RFC 3339
// strings in UTC.

type AppointmentDTO struct {
	ID          string `json:"id,omitempty"`
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
	Clinic      string `json:"clinic"`
	Location    string `json:"location"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Status      string `json:"status"`
	Notes       string `json:"notes,omitempty"`
}

type RescheduleDTO struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type ReadingDTO struct {
	ID                string  `json:"id"`
	PatientID         string  `json:"patient_id"`
	RecordedAt        string  `json:"recorded_at"`
	HeartRateBPM      int     `json:"heart_rate_bpm"`
	BodyTemperatureC  float64 `json:"body_temperature_c"`
	BloodGlucoseMmolL float64 `json:"blood_glucose_mmol_l"`
}

// ErrorEnvelope is the error body both HTTP surfaces speak.
type ErrorEnvelope struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func AppointmentToDTO(a schedule.Appointment) AppointmentDTO {
	dto := AppointmentDTO{
		PatientID:   a.PatientID.String(),
		PatientName: a.PatientName,
		Clinic:      a.Clinic,
		Location:    a.Location,
		StartTime:   a.Start.UTC().Format(time.RFC3339Nano),
		EndTime:     a.End.UTC().Format(time.RFC3339Nano),
		Status:      string(a.Status),
		Notes:       a.Notes,
	}
	if a.ID != uuid.Nil {
		dto.ID = a.ID.String()
	}
	return dto
}

func (d AppointmentDTO) ToDomain() (schedule.Appointment, error) {
	var appt schedule.Appointment

	if d.ID != "" {
		id, err := uuid.Parse(d.ID)
		if err != nil {
			return schedule.Appointment{}, fmt.Errorf("parse appointment id: %w", err)
		}
		appt.ID = id
	}

	patientID, err := uuid.Parse(d.PatientID)
	if err != nil {
		return schedule.Appointment{}, fmt.Errorf("parse patient id: %w", err)
	}

	start, err := time.Parse(time.RFC3339Nano, d.StartTime)
	if err != nil {
		return schedule.Appointment{}, fmt.Errorf("parse start time: %w", err)
	}
	end, err := time.Parse(time.RFC3339Nano, d.EndTime)
	if err != nil {
		return schedule.Appointment{}, fmt.Errorf("parse end time: %w", err)
	}

	status, err := schedule.ParseStatus(d.Status)
	if err != nil {
		return schedule.Appointment{}, err
	}

	appt.PatientID = patientID
	appt.PatientName = d.PatientName
	appt.Clinic = d.Clinic
	appt.Location = d.Location
	appt.Start = start.UTC()
	appt.End = end.UTC()
	appt.Status = status
	appt.Notes = d.Notes
	return appt, nil
}

func ReadingToDTO(r vitals.Reading) ReadingDTO {
	return ReadingDTO{
		ID:                r.ID.String(),
		PatientID:         r.PatientID.String(),
		RecordedAt:        r.RecordedAt.UTC().Format(time.RFC3339Nano),
		HeartRateBPM:      r.HeartRateBPM,
		BodyTemperatureC:  r.BodyTemperatureC,
		BloodGlucoseMmolL: r.BloodGlucoseMmolL,
	}
}

func (d ReadingDTO) ToDomain() (vitals.Reading, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return vitals.Reading{}, fmt.Errorf("parse reading id: %w", err)
	}
	patientID, err := uuid.Parse(d.PatientID)
	if err != nil {
		return vitals.Reading{}, fmt.Errorf("parse patient id: %w", err)
	}
	recordedAt, err := time.Parse(time.RFC3339Nano, d.RecordedAt)
	if err != nil {
		return vitals.Reading{}, fmt.Errorf("parse recorded_at: %w", err)
	}
	return vitals.Reading{
		ID:                id,
		PatientID:         patientID,
		RecordedAt:        recordedAt.UTC(),
		HeartRateBPM:      d.HeartRateBPM,
		BodyTemperatureC:  d.BodyTemperatureC,
		BloodGlucoseMmolL: d.BloodGlucoseMmolL,
	}, nil
}
