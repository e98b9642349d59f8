package cli

import (
	"context"
	"database/sql"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/turnos-booking/internal/config"
	"github.com/iliyamo/turnos-booking/internal/database"
	"github.com/iliyamo/turnos-booking/internal/notify"
	"github.com/iliyamo/turnos-booking/internal/payment"
	"github.com/iliyamo/turnos-booking/internal/queue"
	"github.com/iliyamo/turnos-booking/internal/repository"
	"github.com/iliyamo/turnos-booking/internal/service"
)

// app holds the wired dependencies shared by the commands.
type app struct {
	cfg          config.Config
	db           *sql.DB
	rdb          *redis.Client
	booking      *service.BookingService
	availability *service.AvailabilityService
	// delivery sends confirmation emails; in queue mode it is what the
	// consumer hands events to.
	delivery service.Notifier
}

// newApp opens the store and builds the services.  withRedis controls
// whether the Redis client is created; commands that do not serve HTTP
// skip it.
func newApp(ctx context.Context, cfg config.Config, withRedis bool) (*app, error) {
	a := &app{cfg: cfg}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	tpl, err := cfg.Template()
	if err != nil {
		return nil, err
	}

	var store service.ReservationStore
	switch cfg.DBDriver {
	case "memory":
		log.Printf("app: using the in-memory store; reservations are lost on restart")
		store = repository.NewMemoryReservationRepo()
	default:
		db, err := database.Open(dbSettings(cfg))
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		a.db = db
		store = repository.NewReservationRepo(db)
	}

	var gateway service.PaymentGateway
	if cfg.PaymentEnabled() {
		g, err := payment.NewOmiseGateway(payment.OmiseConfig{
			PublicKey:  cfg.OmisePublicKey,
			SecretKey:  cfg.OmiseSecretKey,
			SourceType: cfg.PaymentSourceType,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		gateway = g
	} else {
		log.Printf("app: no payment gateway configured; reservations are confirmed without a deposit step")
	}

	if cfg.MailEnabled() && cfg.NotifyMode != config.NotifyLog {
		a.delivery = notify.NewMailer(notify.MailConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.EmailUser,
			Password: cfg.EmailPass,
			Contact:  cfg.ContactEmail,
		})
	} else {
		a.delivery = notify.LogNotifier{}
	}
	notifier := a.delivery
	if cfg.NotifyMode == config.NotifyQueue {
		notifier = queue.NewPublisher(cfg.RabbitMQURL)
	}

	a.booking = service.NewBookingService(store, tpl, gateway, notifier, service.BookingConfig{
		Location:   loc,
		Currency:   cfg.PaymentCurrency,
		BackendURL: cfg.BackendURL,
	})
	a.availability = service.NewAvailabilityService(store, tpl, loc)

	if withRedis {
		rc, err := config.LoadRedisConfig()
		if err != nil {
			a.Close()
			return nil, err
		}
		a.rdb = config.NewRedisClient(rc)
	}
	return a, nil
}

// Close releases the database pool and the Redis client.
func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

func dbSettings(cfg config.Config) database.Settings {
	return database.Settings{
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
	}
}
