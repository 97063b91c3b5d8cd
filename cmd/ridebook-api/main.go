// README: Entry point; loads config, wires storage and services, serves HTTP until signalled.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"ridebook/internal/config"
	httptransport "ridebook/internal/http"
	"ridebook/internal/infra"
	"ridebook/internal/maps"
	"ridebook/internal/modules/availability"
	"ridebook/internal/modules/billing"
	"ridebook/internal/modules/booking"
	"ridebook/internal/modules/pricing"
	"ridebook/internal/modules/ride"
	"ridebook/internal/types"
)

type stores struct {
	uow      infra.UnitOfWork
	rides    ride.Repository
	bookings booking.Repository
	billing  billing.Repository
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := infra.NewLogger(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("RIDEBOOK_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.WithError(err).Fatal("firebase init")
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("open storage")
	}
	defer st.close()

	pricingSvc, err := newPricing(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("init pricing")
	}

	rideSvc := ride.NewService(st.rides)
	seats := availability.NewService(st.rides, log)
	billingSvc := billing.NewService(st.billing, log)
	bookingSvc := booking.NewService(booking.Deps{
		UnitOfWork: st.uow,
		Store:      st.bookings,
		Seats:      seats,
		Fees:       pricingSvc,
		Ledger:     billingSvc,
		Log:        log,
	})

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Rides:    rideSvc,
		Bookings: bookingSvc,
		Pricing:  pricingSvc,
		Billing:  billingSvc,
		Verifier: verifier,
		Currency: cfg.Pricing.Currency,
		Log:      log,
	})

	if err := httptransport.NewServer(cfg.HTTP.Addr, router, log).Run(ctx); err != nil {
		log.WithError(err).Fatal("http server")
	}
}

func openStores(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (stores, error) {
	if cfg.Storage == config.StorageMemory {
		log.Warn("using in-memory storage; data is lost on restart")
		return stores{
			uow:      infra.NoopUnitOfWork{},
			rides:    ride.NewMemoryStore(),
			bookings: booking.NewMemoryStore(),
			billing:  billing.NewMemoryStore(),
			close:    func() {},
		}, nil
	}
	db, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return stores{}, err
	}
	return stores{
		uow:      infra.NewUnitOfWork(db, cfg.DB.TxRetries, log),
		rides:    ride.NewStore(db),
		bookings: booking.NewStore(db),
		billing:  billing.NewStore(db),
		close:    db.Close,
	}, nil
}

func newPricing(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*pricing.Service, error) {
	fee, err := types.PercentFromFloat(cfg.Pricing.FeePercent)
	if err != nil {
		return nil, err
	}
	rate, err := types.ParseMoney(cfg.Pricing.PricePerKm, cfg.Pricing.Currency)
	if err != nil {
		return nil, err
	}
	defaults := pricing.Defaults{FeePercent: fee, PricePerKm: rate, Currency: cfg.Pricing.Currency}

	var settings pricing.ConfigStore = pricing.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		client, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return nil, err
		}
		settings = pricing.NewRedisStore(client)
	}

	var distance pricing.DistanceProvider
	if cfg.Maps.APIKey != "" {
		d, err := maps.NewDistanceService(cfg.Maps.APIKey)
		if err != nil {
			return nil, err
		}
		distance = d
	} else {
		log.Info("no maps api key; estimates use great-circle distance")
	}
	return pricing.NewService(settings, defaults, distance, log), nil
}
