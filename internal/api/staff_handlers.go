package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinova/clinic-scheduling/internal/authz"
	"github.com/clinova/clinic-scheduling/internal/scheduling"
)

// Staff endpoints sit behind authz.Middleware.RequireAuth; each handler
// additionally checks the capability it needs.

func requirePermission(w http.ResponseWriter, r *http.Request, allowed func(p authz.Permissions) bool) bool {
	access, ok := authz.AccessFrom(r.Context())
	if !ok || !allowed(access.Permissions) {
		writeError(w, http.StatusForbidden, "permission_denied", "missing the required permission")
		return false
	}
	return true
}

func listAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePermission(w, r, func(p authz.Permissions) bool { return p.CanView }) {
			return
		}

		var filter scheduling.AppointmentFilter
		q := r.URL.Query()

		if v := q.Get("doctor"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor must be a valid UUID")
				return
			}
			filter.DoctorID = &id
		}
		if v := q.Get("patient"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient must be a valid UUID")
				return
			}
			filter.PatientID = &id
		}
		if v := q.Get("date"); v != "" {
			date, err := scheduling.ParseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			filter.Date = &date
		}
		if v := q.Get("state"); v != "" {
			state := scheduling.AppointmentState(v)
			if !scheduling.ValidState(state) {
				writeError(w, http.StatusBadRequest, "invalid_state", "state is not a valid appointment state")
				return
			}
			filter.State = &state
		}

		limit := parseIntParam(q.Get("limit"), 20)
		offset := parseIntParam(q.Get("offset"), 0)

		appointments, err := svc.ListAppointments(r.Context(), filter, limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]AppointmentResponse, 0, len(appointments))
		for i := range appointments {
			resp = append(resp, toAppointmentResponse(&appointments[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePermission(w, r, func(p authz.Permissions) bool { return p.CanView }) {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			if errors.Is(err, scheduling.ErrAppointmentNotFound) {
				writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(detail))
	}
}

func changeStateHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePermission(w, r, func(p authz.Permissions) bool { return p.CanEdit }) {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req ChangeStateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.State == "" {
			writeError(w, http.StatusBadRequest, "missing_field", `field "state" is required`)
			return
		}

		detail, err := svc.ChangeState(r.Context(), id, scheduling.AppointmentState(req.State))
		if err != nil {
			handleStateError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(detail))
	}
}

func handleStateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrInvalidState):
		writeError(w, http.StatusBadRequest, "invalid_state", err.Error())
	case errors.Is(err, scheduling.ErrTerminalState):
		writeError(w, http.StatusConflict, "terminal_state", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseIntParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
