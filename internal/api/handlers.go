package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	redisclient "github.com/clinova/clinic-scheduling/internal/redis"
	"github.com/clinova/clinic-scheduling/internal/scheduling"
)

// Public chatbot endpoints. These are deliberately unauthenticated: the
// chatbot drives the whole flow for anonymous patients.

func listSpecialtiesHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		specs, err := svc.ListActiveSpecialties(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]SpecialtyResponse, 0, len(specs))
		for _, s := range specs {
			item := SpecialtyResponse{ID: s.ID, Name: s.Name}
			if s.Description != nil {
				item.Description = *s.Description
			}
			resp = append(resp, item)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func listDoctorsBySpecialtyHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		specialtyID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_specialty_id", "id must be a valid UUID")
			return
		}

		doctors, err := svc.ListDoctorsBySpecialty(r.Context(), specialtyID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]DoctorResponse, 0, len(doctors))
		for _, d := range doctors {
			resp = append(resp, DoctorResponse{
				ID:          d.ID,
				SpecialtyID: d.SpecialtyID,
				Name:        d.Name,
				Surname:     d.Surname,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func availableSlotsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "id must be a valid UUID")
			return
		}

		dateStr := r.URL.Query().Get("date")
		if dateStr == "" {
			writeError(w, http.StatusBadRequest, "missing_field", "the 'date' parameter is required (format: YYYY-MM-DD)")
			return
		}

		date, err := scheduling.ParseDate(dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			if errors.Is(err, scheduling.ErrDoctorNotFound) {
				writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		message := fmt.Sprintf("%d slots available", len(slots))
		if len(slots) == 0 {
			message = "the doctor does not attend this day"
		}

		writeJSON(w, http.StatusOK, toSlotsResponse(slots, message))
	}
}

func bookAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		booking, code, details := parseBooking(req)
		if code != "" {
			writeError(w, http.StatusBadRequest, code, details)
			return
		}

		created, err := svc.BookAppointment(r.Context(), booking)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(created))
	}
}

// parseBooking turns the wire request into a typed booking. It returns an
// error code and details instead of an error so the handler keeps the
// field-by-field messages the chatbot surfaces to patients.
func parseBooking(req BookAppointmentRequest) (scheduling.BookingRequest, string, string) {
	for _, f := range []struct{ name, value string }{
		{"doctor_id", req.DoctorID},
		{"date", req.Date},
		{"start_time", req.StartTime},
		{"name", req.Name},
		{"surname", req.Surname},
		{"email", req.Email},
		{"phone", req.Phone},
		{"reason", req.Reason},
	} {
		if f.value == "" {
			return scheduling.BookingRequest{}, "missing_field", fmt.Sprintf("field %q is required", f.name)
		}
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		return scheduling.BookingRequest{}, "invalid_doctor_id", "doctor_id must be a valid UUID"
	}

	date, err := scheduling.ParseDate(req.Date)
	if err != nil {
		return scheduling.BookingRequest{}, "invalid_date", "date must be YYYY-MM-DD"
	}

	start, err := scheduling.ParseClock(req.StartTime)
	if err != nil {
		return scheduling.BookingRequest{}, "invalid_start_time", "start_time must be HH:MM"
	}

	booking := scheduling.BookingRequest{
		DoctorID: doctorID,
		Date:     date,
		Start:    start,
		Name:     req.Name,
		Surname:  req.Surname,
		Email:    req.Email,
		Phone:    req.Phone,
		Gender:   req.Gender,
		Reason:   req.Reason,
		Notes:    req.Notes,
	}

	if req.BirthDate != "" {
		birth, err := time.Parse("2006-01-02", req.BirthDate)
		if err != nil {
			return scheduling.BookingRequest{}, "invalid_birth_date", "birth_date must be YYYY-MM-DD"
		}
		booking.BirthDate = &birth
	}
	if req.ChatSessionID != "" {
		sessionID := req.ChatSessionID
		booking.ChatSessionID = &sessionID
	}

	return booking, "", ""
}

func handleBookingError(w http.ResponseWriter, err error) {
	var vErr *scheduling.ValidationError

	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "missing_field", vErr.Error())
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_conflict", "the selected time is no longer available")
	case errors.Is(err, scheduling.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
