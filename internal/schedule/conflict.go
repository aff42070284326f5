package schedule

import "github.com/google/uuid"

// FindConflicts returns the ids of BOOKED appointments whose interval overlaps
// the candidate. excludeID is skipped so a reschedule never conflicts with the
// record being moved; pass uuid.Nil when booking a new appointment.
//
// The scan is pure: callers supply the existing appointments for the target
// (clinic, location) and nothing is read or written here.
func FindConflicts(candidate Interval, existing []Appointment, excludeID uuid.UUID) []uuid.UUID {
	var conflicts []uuid.UUID
	for _, appt := range existing {
		if appt.Status != StatusBooked {
			continue
		}
		if excludeID != uuid.Nil && appt.ID == excludeID {
			continue
		}
		if candidate.Overlaps(appt.Interval()) {
			conflicts = append(conflicts, appt.ID)
		}
	}
	return conflicts
}
