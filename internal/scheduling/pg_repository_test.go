package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, newPgRepositoryWithDB(mock)
}

func doctorRow(d *Doctor) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "clinic_id", "specialty_id", "name", "surname", "email", "phone", "active"}).
		AddRow(d.ID, d.ClinicID, d.SpecialtyID, d.Name, d.Surname, d.Email, d.Phone, d.Active)
}

func patientRow(p *Patient) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "clinic_id", "name", "surname", "email", "phone", "birth_date", "gender", "blood_type", "allergies", "created_at", "updated_at"}).
		AddRow(p.ID, p.ClinicID, p.Name, p.Surname, p.Email, p.Phone, p.BirthDate, p.Gender, p.BloodType, p.Allergies, p.CreatedAt, p.UpdatedAt)
}

func appointmentRow(a *Appointment) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "doctor_id", "patient_id", "date", "start_min", "end_min", "reason", "notes", "state", "chat_session_id", "created_at", "updated_at"}).
		AddRow(a.ID, a.DoctorID, a.PatientID, a.Date, int(a.Start), int(a.End), a.Reason, a.Notes, a.State, a.ChatSessionID, a.CreatedAt, a.UpdatedAt)
}

func testDoctor() *Doctor {
	return &Doctor{
		ID:          uuid.New(),
		ClinicID:    uuid.New(),
		SpecialtyID: uuid.New(),
		Name:        "Laura",
		Surname:     "Ortega",
		Email:       "laura.ortega@clinic.test",
		Active:      true,
	}
}

func testBookingRecord() BookingRecord {
	return BookingRecord{
		Date:   monday,
		Start:  540,
		End:    570,
		Reason: "checkup",
		Patient: PatientUpsert{
			Name:      "Ana",
			Surname:   "Gomez",
			Email:     "ana@x.com",
			Phone:     "555-0101",
			BirthDate: time.Date(1990, 4, 2, 0, 0, 0, 0, time.UTC),
			Gender:    "F",
		},
	}
}

func TestPgGetActiveDoctor(t *testing.T) {
	mock, repo := newMockRepo(t)
	doc := testDoctor()

	mock.ExpectQuery("SELECT id, clinic_id, specialty_id, name, surname, email, phone, active").
		WithArgs(doc.ID).
		WillReturnRows(doctorRow(doc))

	got, err := repo.GetActiveDoctor(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, "Ortega", got.Surname)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgGetActiveDoctorNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT id, clinic_id, specialty_id, name, surname, email, phone, active").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetActiveDoctor(context.Background(), id)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListOccupiedStarts(t *testing.T) {
	mock, repo := newMockRepo(t)
	doctorID := uuid.New()

	mock.ExpectQuery("SELECT start_min").
		WithArgs(doctorID, monday, occupyingStateStrings()).
		WillReturnRows(pgxmock.NewRows([]string{"start_min"}).AddRow(540).AddRow(570))

	got, err := repo.ListOccupiedStarts(context.Background(), doctorID, monday)
	require.NoError(t, err)
	assert.Equal(t, []MinuteOfDay{540, 570}, got)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateBooking(t *testing.T) {
	mock, repo := newMockRepo(t)
	doc := testDoctor()
	rec := testBookingRecord()

	patient := &Patient{
		ID:        uuid.New(),
		ClinicID:  doc.ClinicID,
		Name:      rec.Patient.Name,
		Surname:   rec.Patient.Surname,
		Email:     rec.Patient.Email,
		Phone:     rec.Patient.Phone,
		BirthDate: rec.Patient.BirthDate,
		Gender:    rec.Patient.Gender,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	appt := &Appointment{
		ID:        uuid.New(),
		DoctorID:  doc.ID,
		PatientID: patient.ID,
		Date:      rec.Date,
		Start:     rec.Start,
		End:       rec.End,
		Reason:    rec.Reason,
		State:     StateScheduled,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(doc.ID, rec.Date, int(rec.Start), occupyingStateStrings()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO patients").
		WithArgs(pgxmock.AnyArg(), doc.ClinicID, rec.Patient.Name, rec.Patient.Surname,
			rec.Patient.Email, rec.Patient.Phone, rec.Patient.BirthDate, rec.Patient.Gender).
		WillReturnRows(patientRow(patient))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), doc.ID, patient.ID, rec.Date, int(rec.Start), int(rec.End),
			rec.Reason, rec.Notes, rec.ChatSessionID).
		WillReturnRows(appointmentRow(appt))
	mock.ExpectCommit()

	got, err := repo.CreateBooking(context.Background(), doc, rec)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)
	assert.Equal(t, StateScheduled, got.State)
	assert.Equal(t, patient.ID, got.Patient.ID)
	assert.Equal(t, doc.ID, got.Doctor.ID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateBookingSlotTaken(t *testing.T) {
	mock, repo := newMockRepo(t)
	doc := testDoctor()
	rec := testBookingRecord()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(doc.ID, rec.Date, int(rec.Start), occupyingStateStrings()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.CreateBooking(context.Background(), doc, rec)
	assert.ErrorIs(t, err, ErrSlotTaken)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateBookingUniqueViolation(t *testing.T) {
	mock, repo := newMockRepo(t)
	doc := testDoctor()
	rec := testBookingRecord()

	patient := &Patient{ID: uuid.New(), ClinicID: doc.ClinicID, Name: "Ana", Surname: "Gomez",
		Email: "ana@x.com", Phone: "555-0101", BirthDate: rec.Patient.BirthDate, Gender: "F",
		CreatedAt: time.Now(), UpdatedAt: time.Now()}

	// the conflict check passes but a concurrent insert lands first; the
	// partial unique index rejects ours
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(doc.ID, rec.Date, int(rec.Start), occupyingStateStrings()).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO patients").
		WithArgs(pgxmock.AnyArg(), doc.ClinicID, rec.Patient.Name, rec.Patient.Surname,
			rec.Patient.Email, rec.Patient.Phone, rec.Patient.BirthDate, rec.Patient.Gender).
		WillReturnRows(patientRow(patient))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), doc.ID, patient.ID, rec.Date, int(rec.Start), int(rec.End),
			rec.Reason, rec.Notes, rec.ChatSessionID).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_appointments_occupied_slot"})
	mock.ExpectRollback()

	_, err := repo.CreateBooking(context.Background(), doc, rec)
	assert.ErrorIs(t, err, ErrSlotTaken)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateAppointmentState(t *testing.T) {
	mock, repo := newMockRepo(t)

	appt := &Appointment{
		ID:        uuid.New(),
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		Date:      monday,
		Start:     540,
		End:       570,
		Reason:    "checkup",
		State:     StateConfirmed,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	mock.ExpectQuery("UPDATE appointments").
		WithArgs(appt.ID, StateConfirmed, StateScheduled).
		WillReturnRows(appointmentRow(appt))

	got, err := repo.UpdateAppointmentState(context.Background(), appt.ID, StateScheduled, StateConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, got.State)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateAppointmentStateMiss(t *testing.T) {
	mock, repo := newMockRepo(t)
	id := uuid.New()

	// no row matches id+state, the compare-and-set lost
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, StateConfirmed, StateScheduled).
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.UpdateAppointmentState(context.Background(), id, StateScheduled, StateConfirmed)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgInsertEvent(t *testing.T) {
	mock, repo := newMockRepo(t)
	apptID := uuid.New()
	now := time.Now()

	ev := EventLog{
		EventType:     EventAppointmentBooked,
		AppointmentID: &apptID,
		Payload:       []byte(`{"date":"2025-09-01"}`),
		CreatedAt:     now,
	}

	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(ev.EventType, ev.AppointmentID, ev.Payload, &now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.InsertEvent(context.Background(), ev))
	require.NoError(t, mock.ExpectationsWereMet())
}
