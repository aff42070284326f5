package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusBooked    Status = "BOOKED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// Terminal reports whether no further local transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

var ErrInvalidInterval = errors.New("end time must be after start time")

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start, end time.Time) (Interval, error) {
	if !end.After(start) {
		return Interval{}, ErrInvalidInterval
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether the two half-open intervals intersect.
// Back-to-back intervals, where one ends exactly when the other starts,
// do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Appointment is a resource-bound booking for a (clinic, location) room.
// ID is uuid.Nil until the remote service has accepted the booking.
type Appointment struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	PatientName string
	Clinic      string
	Location    string
	Start       time.Time
	End         time.Time
	Status      Status
	Notes       string
}

// NewAppointment builds a not-yet-persisted BOOKED appointment.
func NewAppointment(patientID uuid.UUID, patientName, clinic, location string, start, end time.Time, notes string) (Appointment, error) {
	a := Appointment{
		PatientID:   patientID,
		PatientName: strings.TrimSpace(patientName),
		Clinic:      strings.TrimSpace(clinic),
		Location:    strings.TrimSpace(location),
		Start:       start.UTC(),
		End:         end.UTC(),
		Status:      StatusBooked,
		Notes:       notes,
	}
	if err := a.Validate(); err != nil {
		return Appointment{}, err
	}
	return a, nil
}

func (a Appointment) Validate() error {
	if a.PatientID == uuid.Nil {
		return errors.New("patient id is required")
	}
	if a.PatientName == "" {
		return errors.New("patient name is required")
	}
	if a.Clinic == "" {
		return errors.New("clinic is required")
	}
	if a.Location == "" {
		return errors.New("location is required")
	}
	if !a.End.After(a.Start) {
		return ErrInvalidInterval
	}
	return nil
}

func (a Appointment) Interval() Interval {
	return Interval{Start: a.Start, End: a.End}
}

// ParseStatus maps a wire status string onto a known Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusBooked, StatusCancelled, StatusCompleted:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}
