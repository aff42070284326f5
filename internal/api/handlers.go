package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carebridge/clinic-sync/internal/remote"
	"github.com/carebridge/clinic-sync/internal/schedule"
	"github.com/carebridge/clinic-sync/internal/vitals"
)

func listDayHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dateStr := r.URL.Query().Get("date")
		day, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		appts, err := svc.DayAppointments(r.Context(), day,
			r.URL.Query().Get("clinic"), r.URL.Query().Get("location"))
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for _, a := range appts {
			resp = append(resp, toAppointmentResponse(a))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func bookHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		start, end, err := parseTimes(req.StartTime, req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
			return
		}

		appt, err := schedule.NewAppointment(patientID, req.PatientName, req.Clinic, req.Location, start, end, req.Notes)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment", err.Error())
			return
		}

		booked, err := svc.Book(r.Context(), appt)
		if err != nil {
			handleScheduleError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointmentResponse(booked))
	}
}

func rescheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		start, end, err := parseTimes(req.StartTime, req.EndTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
			return
		}

		updated, err := svc.Reschedule(r.Context(), id, start, end)
		if err != nil {
			handleScheduleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
	}
}

func cancelHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		if err := svc.Cancel(r.Context(), id); err != nil {
			handleScheduleError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func recordVitalHandler(store vitals.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RecordVitalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		recordedAt := time.Now()
		if req.RecordedAt != "" {
			recordedAt, err = time.Parse(time.RFC3339Nano, req.RecordedAt)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_time", "recorded_at must be RFC 3339")
				return
			}
		}

		reading, err := vitals.NewReading(patientID, recordedAt, req.HeartRateBPM, req.BodyTemperatureC, req.BloodGlucoseMmolL)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_reading", err.Error())
			return
		}

		if err := store.InsertReading(r.Context(), reading); err != nil {
			writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, toVitalResponse(reading))
	}
}

func patientVitalsHandler(store vitals.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		readings, err := store.ReadingsForPatient(r.Context(), id, limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "storage_error", err.Error())
			return
		}

		resp := make([]VitalResponse, 0, len(readings))
		for _, rd := range readings {
			resp = append(resp, toVitalResponse(rd))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleScheduleError(w http.ResponseWriter, err error) {
	var conflict *schedule.ConflictError
	var appErr *remote.ApplicationError

	switch {
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "appointment_conflict", conflict.Error())
	case errors.Is(err, schedule.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, schedule.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, schedule.ErrRoomBusy):
		writeError(w, http.StatusConflict, "room_being_booked", "room is currently being booked, please retry shortly")
	case errors.Is(err, schedule.ErrRemoteUnavailable):
		writeError(w, http.StatusServiceUnavailable, "remote_unavailable", err.Error())
	case errors.As(err, &appErr):
		writeError(w, appErr.Status, "remote_rejected", appErr.Error())
	case errors.Is(err, schedule.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseTimes(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse(time.RFC3339Nano, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("start_time must be RFC 3339")
	}
	end, err := time.Parse(time.RFC3339Nano, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("end_time must be RFC 3339")
	}
	return start, end, nil
}

func toAppointmentResponse(a schedule.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		PatientID:   a.PatientID,
		PatientName: a.PatientName,
		Clinic:      a.Clinic,
		Location:    a.Location,
		StartTime:   a.Start,
		EndTime:     a.End,
		Status:      string(a.Status),
		Notes:       a.Notes,
	}
}

func toVitalResponse(r vitals.Reading) VitalResponse {
	return VitalResponse{
		ID:                r.ID,
		PatientID:         r.PatientID,
		RecordedAt:        r.RecordedAt,
		HeartRateBPM:      r.HeartRateBPM,
		BodyTemperatureC:  r.BodyTemperatureC,
		BloodGlucoseMmolL: r.BloodGlucoseMmolL,
		Synced:            r.Synced,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
