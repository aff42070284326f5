// Seeds the clinic-server Postgres with a realistic day of bookings so the
// agent has something to sync against during development.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebridge/clinic-sync/internal/clinicd"
	"github.com/carebridge/clinic-sync/internal/db"
)

var clinics = []string{
	"ClinicA",
	"ClinicB",
	"ClinicC",
}

var rooms = []string{
	"Room1",
	"Room2",
	"Room3",
	"TreatmentBay",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := clinicd.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedAppointments(ctx, pool); err != nil {
		log.Fatalf("seed appointments: %v", err)
	}

	log.Println("seed complete")
}

// seedAppointments fills today with back-to-back 30 minute slots per room.
// Back-to-back intervals never conflict, so the seeded data always satisfies
// the non-overlap invariant.
func seedAppointments(ctx context.Context, pool *pgxpool.Pool) error {
	now := time.Now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 8, 0, 0, 0, time.UTC)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	total := 0
	for _, clinic := range clinics {
		for _, room := range rooms {
			slots := gofakeit.Number(4, 10)
			for i := 0; i < slots; i++ {
				start := dayStart.Add(time.Duration(i) * 30 * time.Minute)
				end := start.Add(30 * time.Minute)

				_, err := tx.Exec(ctx, `
					INSERT INTO appointments (id, patient_id, patient_name, clinic, location, start_time, end_time, status, notes)
					VALUES ($1, $2, $3, $4, $5, $6, $7, 'BOOKED', $8)
				`, uuid.New(), uuid.New(), gofakeit.Name(), clinic, room, start, end, gofakeit.Sentence(6))
				if err != nil {
					return err
				}
				total++
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("seeded %d appointments across %d clinics", total, len(clinics))
	return nil
}
