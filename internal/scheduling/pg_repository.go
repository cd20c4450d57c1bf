package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgxpool.Pool the repository needs; tests substitute a
// pgxmock pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db DB
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{db: pool}
}

func newPgRepositoryWithDB(db DB) *PgRepository {
	return &PgRepository{db: db}
}

func occupyingStateStrings() []string {
	states := make([]string, len(OccupyingStates))
	for i, s := range OccupyingStates {
		states[i] = string(s)
	}
	return states
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var phone *string

	err := row.Scan(
		&d.ID,
		&d.ClinicID,
		&d.SpecialtyID,
		&d.Name,
		&d.Surname,
		&d.Email,
		&phone,
		&d.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Phone = phone
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var bloodType, allergies *string

	err := row.Scan(
		&p.ID,
		&p.ClinicID,
		&p.Name,
		&p.Surname,
		&p.Email,
		&p.Phone,
		&p.BirthDate,
		&p.Gender,
		&bloodType,
		&allergies,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.BloodType = bloodType
	p.Allergies = allergies
	return &p, nil
}

func scanWindow(row pgx.Row) (*ScheduleWindow, error) {
	var w ScheduleWindow
	var startMin, endMin int

	err := row.Scan(
		&w.ID,
		&w.DoctorID,
		&w.Weekday,
		&startMin,
		&endMin,
		&w.Active,
	)
	if err != nil {
		return nil, err
	}

	w.Start = MinuteOfDay(startMin)
	w.End = MinuteOfDay(endMin)
	return &w, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var startMin, endMin int
	var sessionID *string

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.Date,
		&startMin,
		&endMin,
		&a.Reason,
		&a.Notes,
		&a.State,
		&sessionID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Start = MinuteOfDay(startMin)
	a.End = MinuteOfDay(endMin)
	a.ChatSessionID = sessionID
	return &a, nil
}

const appointmentColumns = `id, doctor_id, patient_id, date, start_min, end_min, reason, notes, state, chat_session_id, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetActiveDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, clinic_id, specialty_id, name, surname, email, phone, active
		FROM doctors
		WHERE id = $1 AND active
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) ListActiveSpecialties(ctx context.Context) ([]Specialty, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, clinic_id, name, description, active
		FROM specialties
		WHERE active
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Specialty
	for rows.Next() {
		var s Specialty
		var description *string
		if err := rows.Scan(&s.ID, &s.ClinicID, &s.Name, &description, &s.Active); err != nil {
			return nil, err
		}
		s.Description = description
		result = append(result, s)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListActiveDoctorsBySpecialty(ctx context.Context, specialtyID uuid.UUID) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, clinic_id, specialty_id, name, surname, email, phone, active
		FROM doctors
		WHERE specialty_id = $1 AND active
		ORDER BY surname, name
	`, specialtyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListActiveWindows(ctx context.Context, doctorID uuid.UUID, weekday int) ([]ScheduleWindow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, doctor_id, weekday, start_min, end_min, active
		FROM schedule_windows
		WHERE doctor_id = $1 AND weekday = $2 AND active
		ORDER BY start_min
	`, doctorID, weekday)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScheduleWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *w)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListOccupiedStarts(ctx context.Context, doctorID uuid.UUID, date time.Time) ([]MinuteOfDay, error) {
	rows, err := r.db.Query(ctx, `
		SELECT start_min
		FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND state = ANY($3)
	`, doctorID, date, occupyingStateStrings())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []MinuteOfDay
	for rows.Next() {
		var m int
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		result = append(result, MinuteOfDay(m))
	}

	return result, rows.Err()
}

// CreateBooking commits the conflict check, patient upsert and appointment
// insert together, so a timed-out request leaves no patient-only or
// appointment-only write behind. The partial unique index on occupying
// appointments is the last line of defence: a concurrent insert that slips
// past the check surfaces as a unique violation and is reported as
// ErrSlotTaken.
func (r *PgRepository) CreateBooking(ctx context.Context, doctor *Doctor, rec BookingRecord) (*AppointmentDetail, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var taken bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND date = $2 AND start_min = $3 AND state = ANY($4)
		)
	`, doctor.ID, rec.Date, int(rec.Start), occupyingStateStrings()).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("check slot occupancy: %w", err)
	}
	if taken {
		return nil, ErrSlotTaken
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO patients (id, clinic_id, name, surname, email, phone, birth_date, gender, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		ON CONFLICT (clinic_id, email) DO UPDATE
		SET name = EXCLUDED.name,
		    surname = EXCLUDED.surname,
		    phone = EXCLUDED.phone,
		    updated_at = now()
		RETURNING id, clinic_id, name, surname, email, phone, birth_date, gender, blood_type, allergies, created_at, updated_at
	`, uuid.New(), doctor.ClinicID, rec.Patient.Name, rec.Patient.Surname, rec.Patient.Email,
		rec.Patient.Phone, rec.Patient.BirthDate, rec.Patient.Gender)

	patient, err := scanPatient(row)
	if err != nil {
		return nil, fmt.Errorf("upsert patient: %w", err)
	}

	row = tx.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, date, start_min, end_min, reason, notes, state, chat_session_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'scheduled', $9, now(), now())
		RETURNING `+appointmentColumns+`
	`, uuid.New(), doctor.ID, patient.ID, rec.Date, int(rec.Start), int(rec.End),
		rec.Reason, rec.Notes, rec.ChatSessionID)

	appt, err := scanAppointment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}

	return &AppointmentDetail{
		Appointment: *appt,
		Doctor:      doctor,
		Patient:     patient,
	}, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetAppointmentDetail(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	appt, err := r.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	doctor, err := r.getDoctorByID(ctx, appt.DoctorID)
	if err != nil {
		return nil, err
	}

	patient, err := r.getPatientByID(ctx, appt.PatientID)
	if err != nil {
		return nil, err
	}

	return &AppointmentDetail{
		Appointment: *appt,
		Doctor:      doctor,
		Patient:     patient,
	}, nil
}

func (r *PgRepository) getDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, clinic_id, specialty_id, name, surname, email, phone, active
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) getPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, clinic_id, name, surname, email, phone, birth_date, gender, blood_type, allergies, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) UpdateAppointmentState(ctx context.Context, id uuid.UUID, from, to AppointmentState) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET state = $2,
		    updated_at = now()
		WHERE id = $1
		  AND state = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f AppointmentFilter, limit, offset int) ([]AppointmentDetail, error) {
	query := `
		SELECT a.id, a.doctor_id, a.patient_id, a.date, a.start_min, a.end_min, a.reason, a.notes, a.state, a.chat_session_id, a.created_at, a.updated_at,
		       d.id, d.clinic_id, d.specialty_id, d.name, d.surname, d.email, d.phone, d.active,
		       p.id, p.clinic_id, p.name, p.surname, p.email, p.phone, p.birth_date, p.gender, p.blood_type, p.allergies, p.created_at, p.updated_at
		FROM appointments a
		JOIN doctors d ON d.id = a.doctor_id
		JOIN patients p ON p.id = a.patient_id
		WHERE 1=1`

	args := []any{}
	if f.DoctorID != nil {
		args = append(args, *f.DoctorID)
		query += fmt.Sprintf(" AND a.doctor_id = $%d", len(args))
	}
	if f.PatientID != nil {
		args = append(args, *f.PatientID)
		query += fmt.Sprintf(" AND a.patient_id = $%d", len(args))
	}
	if f.Date != nil {
		args = append(args, *f.Date)
		query += fmt.Sprintf(" AND a.date = $%d", len(args))
	}
	if f.State != nil {
		args = append(args, string(*f.State))
		query += fmt.Sprintf(" AND a.state = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY a.date DESC, a.start_min ASC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		var a Appointment
		var d Doctor
		var p Patient
		var startMin, endMin int
		var sessionID, docPhone, bloodType, allergies *string

		err := rows.Scan(
			&a.ID, &a.DoctorID, &a.PatientID, &a.Date, &startMin, &endMin, &a.Reason, &a.Notes, &a.State, &sessionID, &a.CreatedAt, &a.UpdatedAt,
			&d.ID, &d.ClinicID, &d.SpecialtyID, &d.Name, &d.Surname, &d.Email, &docPhone, &d.Active,
			&p.ID, &p.ClinicID, &p.Name, &p.Surname, &p.Email, &p.Phone, &p.BirthDate, &p.Gender, &bloodType, &allergies, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}

		a.Start = MinuteOfDay(startMin)
		a.End = MinuteOfDay(endMin)
		a.ChatSessionID = sessionID
		d.Phone = docPhone
		p.BloodType = bloodType
		p.Allergies = allergies

		doc := d
		pat := p
		result = append(result, AppointmentDetail{Appointment: a, Doctor: &doc, Patient: &pat})
	}

	return result, rows.Err()
}

func (r *PgRepository) FindElapsedScheduled(ctx context.Context, now time.Time) ([]Appointment, error) {
	// end_min is minutes past midnight on the appointment's civil date
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE state = 'scheduled'
		  AND date + make_interval(mins => end_min) < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	return result, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
