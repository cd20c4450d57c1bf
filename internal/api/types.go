package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinova/clinic-scheduling/internal/scheduling"
)

type BookAppointmentRequest struct {
	DoctorID      string `json:"doctor_id"`
	Date          string `json:"date"`       // YYYY-MM-DD
	StartTime     string `json:"start_time"` // HH:MM
	Name          string `json:"name"`
	Surname       string `json:"surname"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	BirthDate     string `json:"birth_date,omitempty"`
	Gender        string `json:"gender,omitempty"`
	Reason        string `json:"reason"`
	Notes         string `json:"notes,omitempty"`
	ChatSessionID string `json:"chat_session_id,omitempty"`
}

type ChangeStateRequest struct {
	State string `json:"state"`
}

type SlotResponse struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type SlotsResponse struct {
	Available []SlotResponse `json:"available"`
	Message   string         `json:"message"`
}

type SpecialtyResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
}

type DoctorResponse struct {
	ID          uuid.UUID `json:"id"`
	SpecialtyID uuid.UUID `json:"specialty_id"`
	Name        string    `json:"name"`
	Surname     string    `json:"surname"`
}

type AppointmentResponse struct {
	ID            uuid.UUID `json:"id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	DoctorName    string    `json:"doctor_name,omitempty"`
	PatientID     uuid.UUID `json:"patient_id"`
	PatientName   string    `json:"patient_name,omitempty"`
	Date          string    `json:"date"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	Reason        string    `json:"reason"`
	Notes         string    `json:"notes,omitempty"`
	State         string    `json:"state"`
	ChatSessionID *string   `json:"chat_session_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(d *scheduling.AppointmentDetail) AppointmentResponse {
	resp := AppointmentResponse{
		ID:            d.ID,
		DoctorID:      d.DoctorID,
		PatientID:     d.PatientID,
		Date:          scheduling.FormatDate(d.Date),
		StartTime:     d.Start.Clock(),
		EndTime:       d.End.Clock(),
		Reason:        d.Reason,
		Notes:         d.Notes,
		State:         string(d.State),
		ChatSessionID: d.ChatSessionID,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	if d.Doctor != nil {
		resp.DoctorName = d.Doctor.Name + " " + d.Doctor.Surname
	}
	if d.Patient != nil {
		resp.PatientName = d.Patient.Name + " " + d.Patient.Surname
	}
	return resp
}

func toSlotsResponse(slots []scheduling.Slot, message string) SlotsResponse {
	resp := SlotsResponse{
		Available: make([]SlotResponse, 0, len(slots)),
		Message:   message,
	}
	for _, s := range slots {
		resp.Available = append(resp.Available, SlotResponse{
			StartTime: s.Start.Clock(),
			EndTime:   s.End.Clock(),
		})
	}
	return resp
}
