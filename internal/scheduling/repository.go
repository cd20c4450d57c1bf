package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrSpecialtyNotFound   = errors.New("specialty not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotTaken           = errors.New("slot already has an occupying appointment")
)

// PatientUpsert carries the patient fields supplied with a booking. The
// patient is keyed by email within the doctor's clinic: created if absent,
// otherwise only name, surname and phone are overwritten.
type PatientUpsert struct {
	Name      string
	Surname   string
	Email     string
	Phone     string
	BirthDate time.Time
	Gender    string
}

// BookingRecord is the unit committed by CreateBooking in one transaction.
type BookingRecord struct {
	Date          time.Time
	Start         MinuteOfDay
	End           MinuteOfDay
	Reason        string
	Notes         string
	ChatSessionID *string
	Patient       PatientUpsert
}

type AppointmentFilter struct {
	DoctorID  *uuid.UUID
	PatientID *uuid.UUID
	Date      *time.Time
	State     *AppointmentState
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// Directory reads. Inactive records are treated as absent.
	GetActiveDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	ListActiveSpecialties(ctx context.Context) ([]Specialty, error)
	ListActiveDoctorsBySpecialty(ctx context.Context, specialtyID uuid.UUID) ([]Doctor, error)

	// Slot generation inputs
	ListActiveWindows(ctx context.Context, doctorID uuid.UUID, weekday int) ([]ScheduleWindow, error)
	ListOccupiedStarts(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]MinuteOfDay, error)

	// CreateBooking runs conflict check, patient upsert and appointment
	// insert in a single transaction. Returns ErrSlotTaken when an
	// occupying appointment already holds (doctor, date, start).
	CreateBooking(ctx context.Context, doctor *Doctor, rec BookingRecord) (*AppointmentDetail, error)

	// Lifecycle
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	UpdateAppointmentState(ctx context.Context, id uuid.UUID, from, to AppointmentState) (*Appointment, error)
	ListAppointments(ctx context.Context, f AppointmentFilter, limit, offset int) ([]AppointmentDetail, error)

	// No-show worker
	FindElapsedScheduled(ctx context.Context, now time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
