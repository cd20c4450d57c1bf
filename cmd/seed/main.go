package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinova/clinic-scheduling/internal/db"
)

var specialtyNames = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	clinicID, err := seedClinic(context.Background(), pool)
	if err != nil {
		log.Fatalf("seed clinic: %v", err)
	}

	specialtyIDs, err := seedSpecialties(context.Background(), pool, clinicID)
	if err != nil {
		log.Fatalf("seed specialties: %v", err)
	}

	if err := seedDoctors(context.Background(), pool, clinicID, specialtyIDs, 50); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}

	if err := seedPatients(context.Background(), pool, clinicID, 2000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedClinic(ctx context.Context, pool *pgxpool.Pool) (uuid.UUID, error) {
	id := uuid.New()

	_, err := pool.Exec(ctx, `
		INSERT INTO clinics (id, name, address, phone, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
	`, id, gofakeit.Company()+" Clinic", gofakeit.Address().Address, gofakeit.Phone(), gofakeit.Email())
	if err != nil {
		return uuid.Nil, err
	}

	log.Println("clinic seeded")
	return id, nil
}

func seedSpecialties(ctx context.Context, pool *pgxpool.Pool, clinicID uuid.UUID) ([]uuid.UUID, error) {
	log.Printf("seeding %d specialties", len(specialtyNames))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(specialtyNames))
	for _, name := range specialtyNames {
		id := uuid.New()

		_, err := tx.Exec(ctx, `
			INSERT INTO specialties (id, clinic_id, name, description)
			VALUES ($1, $2, $3, $4)
		`, id, clinicID, name, gofakeit.Sentence(8))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("specialties seeded")
	return ids, nil
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, clinicID uuid.UUID, specialtyIDs []uuid.UUID, count int) error {
	log.Printf("seeding %d doctors", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		specialtyID := specialtyIDs[gofakeit.Number(0, len(specialtyIDs)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, clinic_id, specialty_id, name, surname, email, phone)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, id, clinicID, specialtyID, gofakeit.FirstName(), gofakeit.LastName(), gofakeit.Email(), gofakeit.Phone())
		if err != nil {
			return err
		}

		// Weekday morning and afternoon windows, minutes since midnight
		for weekday := 0; weekday < 5; weekday++ {
			for _, window := range [][2]int{{9 * 60, 13 * 60}, {15 * 60, 18 * 60}} {
				_, err := tx.Exec(ctx, `
					INSERT INTO schedule_windows (id, doctor_id, weekday, start_min, end_min)
					VALUES ($1, $2, $3, $4, $5)
				`, uuid.New(), id, weekday, window[0], window[1])
				if err != nil {
					return err
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("doctors seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, clinicID uuid.UUID, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			birth := gofakeit.DateRange(
				time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2010, 12, 31, 0, 0, 0, 0, time.UTC),
			)

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, clinic_id, name, surname, email, phone, birth_date, gender, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			`, uuid.New(), clinicID, gofakeit.FirstName(), gofakeit.LastName(), gofakeit.Email(), gofakeit.Phone(), birth, gofakeit.RandomString([]string{"M", "F", "O"}))
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}
