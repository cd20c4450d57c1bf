package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinova/clinic-scheduling/internal/config"
	"github.com/clinova/clinic-scheduling/internal/observability/metrics"
	redisclient "github.com/clinova/clinic-scheduling/internal/redis"
)

const (
	EventAppointmentBooked       = "APPOINTMENT_BOOKED"
	EventAppointmentStateChanged = "APPOINTMENT_STATE_CHANGED"
	EventAppointmentNoShow       = "APPOINTMENT_NO_SHOW"
)

var (
	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")
	ErrInvalidState    = errors.New("state is not a valid appointment state")
	ErrTerminalState   = errors.New("appointment is in a terminal state")
)

// ValidationError reports a missing required booking field by name.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q is required", e.Field)
}

// BookingRequest is a fully parsed booking. Presence of the patient fields
// is validated here; format of date/time strings is validated at the API
// boundary where they are parsed.
type BookingRequest struct {
	DoctorID      uuid.UUID
	Date          time.Time
	Start         MinuteOfDay
	Name          string
	Surname       string
	Email         string
	Phone         string
	BirthDate     *time.Time
	Gender        string
	Reason        string
	Notes         string
	ChatSessionID *string
}

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	metrics *metrics.SchedulingMetrics

	slotDuration     time.Duration
	defaultBirthDate time.Time
	defaultGender    string
}

func NewService(repo Repository, locker redisclient.Locker, m *metrics.SchedulingMetrics, cfg config.Config) *Service {
	birth, err := time.Parse("2006-01-02", cfg.DefaultBirthDate)
	if err != nil {
		birth = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	return &Service{
		repo:             repo,
		locker:           locker,
		metrics:          m,
		slotDuration:     cfg.SlotDuration,
		defaultBirthDate: birth,
		defaultGender:    cfg.DefaultGender,
	}
}

// AvailableSlots returns the free slots for a doctor on a clinic-local date.
// A doctor with no active window that weekday simply yields an empty list;
// an unknown or inactive doctor is ErrDoctorNotFound.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]Slot, error) {
	start := time.Now()

	if _, err := s.repo.GetActiveDoctor(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	windows, err := s.repo.ListActiveWindows(ctx, doctorID, Weekday(date))
	if err != nil {
		return nil, fmt.Errorf("list schedule windows: %w", err)
	}
	if len(windows) == 0 {
		return []Slot{}, nil
	}

	starts, err := s.repo.ListOccupiedStarts(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list occupied starts: %w", err)
	}

	occupied := make(map[MinuteOfDay]struct{}, len(starts))
	for _, t := range starts {
		occupied[t] = struct{}{}
	}

	slots := buildSlots(windows, occupied, MinuteOfDay(s.slotDuration/time.Minute))

	s.metrics.ObserveSlotQueryLatency(time.Since(start).Seconds())
	return slots, nil
}

// BookAppointment validates the request, then commits the conflict check,
// patient upsert and appointment insert as one transaction under a per-slot
// lock, so two concurrent requests for the same slot cannot both succeed.
func (s *Service) BookAppointment(ctx context.Context, req BookingRequest) (*AppointmentDetail, error) {
	if err := validateBooking(req); err != nil {
		return nil, err
	}

	doctor, err := s.repo.GetActiveDoctor(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	rec := BookingRecord{
		Date:          req.Date,
		Start:         req.Start,
		End:           req.Start.Add(s.slotDuration),
		Reason:        req.Reason,
		Notes:         req.Notes,
		ChatSessionID: req.ChatSessionID,
		Patient: PatientUpsert{
			Name:      req.Name,
			Surname:   req.Surname,
			Email:     strings.ToLower(strings.TrimSpace(req.Email)),
			Phone:     req.Phone,
			BirthDate: s.defaultBirthDate,
			Gender:    s.defaultGender,
		},
	}
	if req.BirthDate != nil {
		rec.Patient.BirthDate = *req.BirthDate
	}
	if req.Gender != "" {
		rec.Patient.Gender = req.Gender
	}

	var created *AppointmentDetail

	err = s.locker.WithSlotLock(ctx, doctor.ID, FormatDate(req.Date), req.Start.Clock(), func(lockCtx context.Context) error {
		detail, err := s.repo.CreateBooking(lockCtx, doctor, rec)
		if err != nil {
			return err
		}
		created = detail

		s.logEvent(lockCtx, detail.ID, EventAppointmentBooked, map[string]any{
			"doctor_id":  doctor.ID.String(),
			"patient_id": detail.PatientID.String(),
			"date":       FormatDate(req.Date),
			"start":      req.Start.Clock(),
		})

		return nil
	})

	if err != nil {
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			s.metrics.ObserveBooking("conflict")
			return nil, ErrSlotBeingBooked
		case errors.Is(err, ErrSlotTaken):
			s.metrics.ObserveBooking("conflict")
			return nil, err
		default:
			s.metrics.ObserveBooking("error")
			return nil, err
		}
	}

	s.metrics.ObserveBooking("booked")
	return created, nil
}

// ChangeState moves an appointment to a new state. The target must be one
// of the fixed enumeration and the current state must not be terminal; any
// transition between non-terminal states is allowed.
func (s *Service) ChangeState(ctx context.Context, id uuid.UUID, newState AppointmentState) (*AppointmentDetail, error) {
	if !ValidState(newState) {
		return nil, ErrInvalidState
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.State.Terminal() {
		return nil, ErrTerminalState
	}

	updated, err := s.repo.UpdateAppointmentState(ctx, appt.ID, appt.State, newState)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with a concurrent state change; the caller can
			// re-read and retry.
			return nil, ErrTerminalState
		}
		return nil, fmt.Errorf("update appointment state: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentStateChanged, map[string]any{
		"from": string(appt.State),
		"to":   string(newState),
	})
	s.metrics.ObserveStateChange(string(newState))

	return s.repo.GetAppointmentDetail(ctx, updated.ID)
}

// GetAppointment retrieves a fully hydrated appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	detail, err := s.repo.GetAppointmentDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}

// ListAppointments retrieves appointments matching the staff filters
func (s *Service) ListAppointments(ctx context.Context, f AppointmentFilter, limit, offset int) ([]AppointmentDetail, error) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListAppointments(ctx, f, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

// ListActiveSpecialties returns the specialties offered to the chatbot flow
func (s *Service) ListActiveSpecialties(ctx context.Context) ([]Specialty, error) {
	specs, err := s.repo.ListActiveSpecialties(ctx)
	if err != nil {
		return nil, fmt.Errorf("list specialties: %w", err)
	}
	return specs, nil
}

// ListDoctorsBySpecialty returns the active doctors for a specialty
func (s *Service) ListDoctorsBySpecialty(ctx context.Context, specialtyID uuid.UUID) ([]Doctor, error) {
	doctors, err := s.repo.ListActiveDoctorsBySpecialty(ctx, specialtyID)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	return doctors, nil
}

// MarkElapsedNoShows is intended to be called by the worker periodically.
// It moves scheduled appointments whose slot has fully passed to no_show.
func (s *Service) MarkElapsedNoShows(ctx context.Context, now time.Time) error {
	elapsed, err := s.repo.FindElapsedScheduled(ctx, now)
	if err != nil {
		return fmt.Errorf("find elapsed scheduled appointments: %w", err)
	}

	for _, appt := range elapsed {
		_, err := s.repo.UpdateAppointmentState(ctx, appt.ID, StateScheduled, StateNoShow)
		if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
			log.Printf("failed to mark appointment %s as no_show: %v", appt.ID, err)
			continue
		}
		s.logEvent(ctx, appt.ID, EventAppointmentNoShow, map[string]any{
			"reason": "worker",
		})
	}

	return nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}

func validateBooking(req BookingRequest) error {
	switch {
	case req.DoctorID == uuid.Nil:
		return &ValidationError{Field: "doctor_id"}
	case req.Date.IsZero():
		return &ValidationError{Field: "date"}
	case req.Name == "":
		return &ValidationError{Field: "name"}
	case req.Surname == "":
		return &ValidationError{Field: "surname"}
	case req.Email == "":
		return &ValidationError{Field: "email"}
	case req.Phone == "":
		return &ValidationError{Field: "phone"}
	case req.Reason == "":
		return &ValidationError{Field: "reason"}
	}
	return nil
}
