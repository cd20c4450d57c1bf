package scheduling

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentState string

const (
	StateScheduled   AppointmentState = "scheduled"
	StateConfirmed   AppointmentState = "confirmed"
	StateRescheduled AppointmentState = "rescheduled"
	StateCancelled   AppointmentState = "cancelled"
	StateCompleted   AppointmentState = "completed"
	StateNoShow      AppointmentState = "no_show"
)

// AllStates is the fixed state enumeration accepted by ChangeState.
var AllStates = []AppointmentState{
	StateScheduled,
	StateConfirmed,
	StateRescheduled,
	StateCancelled,
	StateCompleted,
	StateNoShow,
}

// OccupyingStates are the states that block a slot from being offered or
// booked again.
var OccupyingStates = []AppointmentState{
	StateScheduled,
	StateConfirmed,
	StateRescheduled,
}

func ValidState(s AppointmentState) bool {
	for _, st := range AllStates {
		if st == s {
			return true
		}
	}
	return false
}

// Terminal reports whether s accepts no further transitions.
func (s AppointmentState) Terminal() bool {
	return s == StateCancelled || s == StateCompleted || s == StateNoShow
}

type Specialty struct {
	ID          uuid.UUID
	ClinicID    uuid.UUID
	Name        string
	Description *string
	Active      bool
}

type Doctor struct {
	ID          uuid.UUID
	ClinicID    uuid.UUID
	SpecialtyID uuid.UUID
	Name        string
	Surname     string
	Email       string
	Phone       *string
	Active      bool
}

type Patient struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	Name      string
	Surname   string
	Email     string
	Phone     string
	BirthDate time.Time
	Gender    string
	BloodType *string
	Allergies *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduleWindow is one recurring weekly availability window of a doctor.
// Windows are deactivated rather than deleted so past appointments keep
// their context.
type ScheduleWindow struct {
	ID       uuid.UUID
	DoctorID uuid.UUID
	Weekday  int // Monday=0 .. Sunday=6
	Start    MinuteOfDay
	End      MinuteOfDay
	Active   bool
}

type Appointment struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	PatientID     uuid.UUID
	Date          time.Time
	Start         MinuteOfDay
	End           MinuteOfDay
	Reason        string
	Notes         string
	State         AppointmentState
	ChatSessionID *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Slot is a free bookable interval within a doctor's schedule window.
type Slot struct {
	Start MinuteOfDay
	End   MinuteOfDay
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// AppointmentDetail is an appointment hydrated with display data.
type AppointmentDetail struct {
	Appointment
	Doctor  *Doctor
	Patient *Patient
}
