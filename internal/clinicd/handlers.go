package clinicd

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carebridge/clinic-sync/internal/remote"
	"github.com/carebridge/clinic-sync/internal/schedule"
	"github.com/carebridge/clinic-sync/internal/vitals"
)

func listDayHandler(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		day, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		appts, err := repo.AppointmentsForDay(r.Context(), day,
			r.URL.Query().Get("clinic"), r.URL.Query().Get("location"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		dtos := make([]remote.AppointmentDTO, 0, len(appts))
		for _, a := range appts {
			dtos = append(dtos, remote.AppointmentToDTO(a))
		}
		writeJSON(w, http.StatusOK, dtos)
	}
}

func bookHandler(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var dto remote.AppointmentDTO
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := dto.ToDomain()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment", err.Error())
			return
		}
		if err := appt.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment", err.Error())
			return
		}

		conflicts, err := repo.ConflictingAppointments(r.Context(), appt.Clinic, appt.Location, appt.Start, appt.End, uuid.Nil)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		if len(conflicts) > 0 {
			writeError(w, http.StatusConflict, "appointment_conflict", "the requested interval overlaps an existing booking")
			return
		}

		created, err := repo.InsertAppointment(r.Context(), appt)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, remote.AppointmentToDTO(*created))
	}
}

func rescheduleHandler(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var dto remote.RescheduleDTO
		if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		start, err := time.Parse(time.RFC3339Nano, dto.StartTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", "start_time must be RFC 3339")
			return
		}
		end, err := time.Parse(time.RFC3339Nano, dto.EndTime)
		if err != nil || !end.After(start) {
			writeError(w, http.StatusBadRequest, "invalid_time", "end_time must be RFC 3339 and after start_time")
			return
		}

		existing, err := repo.GetAppointmentByID(r.Context(), id)
		if err != nil {
			handleRepoError(w, err)
			return
		}
		if existing.Status.Terminal() {
			writeError(w, http.StatusConflict, "invalid_status_transition", "appointment is no longer active")
			return
		}

		conflicts, err := repo.ConflictingAppointments(r.Context(), existing.Clinic, existing.Location, start, end, id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		if len(conflicts) > 0 {
			writeError(w, http.StatusConflict, "appointment_conflict", "the requested interval overlaps an existing booking")
			return
		}

		updated, err := repo.UpdateAppointmentTime(r.Context(), id, start, end)
		if err != nil {
			handleRepoError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, remote.AppointmentToDTO(*updated))
	}
}

func cancelHandler(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		_, err := repo.UpdateAppointmentStatus(r.Context(), id, schedule.StatusBooked, schedule.StatusCancelled)
		if err != nil {
			handleRepoError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func bulkVitalsHandler(repo *Repository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var dtos []remote.ReadingDTO
		if err := json.NewDecoder(r.Body).Decode(&dtos); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		readings := make([]vitals.Reading, 0, len(dtos))
		for _, dto := range dtos {
			rd, err := dto.ToDomain()
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_reading", err.Error())
				return
			}
			readings = append(readings, rd)
		}

		inserted, err := repo.BulkInsertReadings(r.Context(), readings)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"accepted": inserted})
	}
}

func handleRepoError(w http.ResponseWriter, err error) {
	if errors.Is(err, schedule.ErrNotFound) {
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, remote.ErrorEnvelope{Error: code, Details: details})
}
