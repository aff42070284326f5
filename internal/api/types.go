package api

import (
	"time"

	"github.com/google/uuid"
)

type BookAppointmentRequest struct {
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
	Clinic      string `json:"clinic"`
	Location    string `json:"location"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Notes       string `json:"notes,omitempty"`
}

type RescheduleRequest struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type AppointmentResponse struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Clinic      string    `json:"clinic"`
	Location    string    `json:"location"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
}

type RecordVitalRequest struct {
	PatientID         string  `json:"patient_id"`
	RecordedAt        string  `json:"recorded_at,omitempty"` // defaults to now
	HeartRateBPM      int     `json:"heart_rate_bpm"`
	BodyTemperatureC  float64 `json:"body_temperature_c"`
	BloodGlucoseMmolL float64 `json:"blood_glucose_mmol_l"`
}

type VitalResponse struct {
	ID                uuid.UUID `json:"id"`
	PatientID         uuid.UUID `json:"patient_id"`
	RecordedAt        time.Time `json:"recorded_at"`
	HeartRateBPM      int       `json:"heart_rate_bpm"`
	BodyTemperatureC  float64   `json:"body_temperature_c"`
	BloodGlucoseMmolL float64   `json:"blood_glucose_mmol_l"`
	Synced            bool      `json:"synced"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
