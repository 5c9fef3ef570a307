package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/noah-isme/hospital-billing/internal/app"
	"github.com/noah-isme/hospital-billing/internal/config"
	"github.com/noah-isme/hospital-billing/internal/money"
	"github.com/noah-isme/hospital-billing/internal/obs"
	"github.com/noah-isme/hospital-billing/internal/stay"
)

type admission struct {
	subject  string
	fromBed  string
	toBed    string
	tariff   money.Money
	taxPct   money.Percent
	admitted time.Duration
	stayed   time.Duration
}

// Demo admissions, relative to the seeding time.
var admissions = []admission{
	{"ADM001", "W1-04", "ICU-02", 3500, 0, 100 * time.Hour, 100 * time.Hour},
	{"ADM002", "W2-11", "W2-12", 2800, 5, 60 * time.Hour, 30 * time.Hour},
	{"ADM002", "W2-12", "W3-01", 3100, 5, 30 * time.Hour, 30 * time.Hour},
	{"ADM003", "MAT-03", "MAT-07", 4200, 0, 10 * time.Hour, 10 * time.Hour},
	{"ADM004", "ICU-05", "W1-09", 9000, 10, 76 * time.Hour, 76 * time.Hour},
}

func main() {
	dryRun := flag.Bool("dry-run", false, "print the charges without persisting them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger("console", "info").Fatal().Err(err).Msg("load config")
	}
	logger := obs.NewLogger("console", cfg.Obs.LogLevel).With().Str("tool", "seeder").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var store stay.Store = stay.NewMemoryStore()
	if !*dryRun {
		deps, err := app.Build(ctx, cfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect backends")
		}
		defer deps.Close()
		store = deps.Stays
	}
	svc := stay.NewService(store, logger)

	now := time.Now().UTC().Truncate(time.Minute)
	failed := 0
	for _, a := range admissions {
		admittedAt := now.Add(-a.admitted)
		c, err := svc.RecordTransfer(ctx, stay.ChargeInput{
			SubjectID:     a.subject,
			FromBed:       a.fromBed,
			ToBed:         a.toBed,
			FromTariff:    a.tariff,
			AdmissionDate: admittedAt,
			TransferDate:  admittedAt.Add(a.stayed),
			TaxPct:        a.taxPct,
		})
		if err != nil {
			failed++
			logger.Error().Err(err).Str("subject", a.subject).Msg("seed stay charge")
			continue
		}
		logger.Info().
			Str("subject", c.SubjectID()).
			Str("charge", c.ID()).
			Int("days", c.DaysStayed()).
			Int64("total", int64(c.TotalAmount())).
			Bool("dry_run", *dryRun).
			Msg("seeded")
	}
	if failed > 0 {
		os.Exit(1)
	}
}
