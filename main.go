package main

// GET  /products        - list the catalogue, newest first
// GET  /products/{id}   - single product
// POST /products        - create a product (admin only)
// POST /checkout        - open a hosted payment session for one product
// POST /webhooks/stripe - payment provider callback, marks the product sold
// POST /sms-webhook     - logs inbound SMS deliveries

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"storefront/auth"
	"storefront/config"
	"storefront/handler"
	"storefront/model"
	"storefront/payment"
	"storefront/service"
	"storefront/store"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	app := &cli.App{
		Name:  "storefront",
		Usage: "single-item product shop backed by Stripe Checkout",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply postgres migrations and exit",
				Action: migrate,
			},
			{
				Name:   "seed",
				Usage:  "insert the sample catalogue",
				Action: seed,
			},
			{
				Name:  "grant-admin",
				Usage: "set the admin custom claim on a Firebase user",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true, Usage: "account email"},
				},
				Action: grantAdmin,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("storefront failed")
	}
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	lvl, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "LOG_LEVEL")
	}
	log.SetLevel(lvl)
	return cfg, nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		return store.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return store.NewMemoryStore(), nil
	default:
		if cfg.MigrateOnStart {
			if err := store.Migrate(cfg.DatabaseURL); err != nil {
				return nil, err
			}
			log.Info("database migrations applied")
		}
		return store.NewPostgresStore(cfg.DatabaseURL)
	}
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Store ---
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	// --- Admin gate ---
	var authorizers []auth.Authorizer
	fb, err := auth.NewFirebaseAuth(ctx, cfg.FirebaseProjectID)
	if err != nil {
		log.WithError(err).Warn("firebase unavailable, admin access by shared secret only")
	} else {
		authorizers = append(authorizers, auth.ClaimAuthorizer(fb, cfg.AdminClaim))
	}
	authorizers = append(authorizers, auth.SecretAuthorizer(cfg.AdminAPISecret))
	if cfg.AdminAPISecret == "" && fb == nil {
		log.Warn("no admin credentials configured, product creation is disabled")
	}

	// --- Payments ---
	if cfg.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY is empty, checkout will fail")
	}
	if cfg.StripeWebhookSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET is empty, every webhook delivery will be rejected")
	}
	pay := payment.NewStripe(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	// --- Service ---
	svc := service.NewService(st, pay, cfg.DefaultCurrency)

	// --- Handlers ---
	h := handler.NewHandler(svc, auth.NewGate(authorizers...), cfg.WebhookTimeout)

	// --- Server ---
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: handler.NewRouter(h, cfg.CORSOrigins)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(log.Fields{
			"addr":        cfg.HTTPAddr,
			"store":       cfg.StoreDriver,
			"webhook_url": cfg.WebhookURL(),
		}).Info("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func migrate(*cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.StoreDriver != config.DriverPostgres {
		return errors.Errorf("migrations only apply to the %s driver", config.DriverPostgres)
	}
	if err := store.Migrate(cfg.DatabaseURL); err != nil {
		return err
	}
	log.Info("database migrations applied")
	return nil
}

// sampleProducts is the demo catalogue. Prices are in paise.
func sampleProducts() []model.NewProduct {
	return []model.NewProduct{
		{
			Name:        "Kanchipuram Silk Saree",
			Price:       1499900,
			Description: "Handwoven pure mulberry silk with a contrast zari border.",
			ImageURL:    "https://images.example.com/sarees/kanchipuram.jpg",
		},
		{
			Name:        "Banarasi Silk Saree",
			Price:       1299900,
			Description: "Brocade weave with gold zari floral motifs.",
			ImageURL:    "https://images.example.com/sarees/banarasi.jpg",
		},
		{
			Name:        "Tussar Silk Saree",
			Price:       899900,
			Description: "Textured wild silk in a natural golden tone.",
			ImageURL:    "https://images.example.com/sarees/tussar.jpg",
		},
	}
}

func seedProducts(ctx context.Context, st store.Store) ([]model.Product, error) {
	out := make([]model.Product, 0, len(sampleProducts()))
	for _, np := range sampleProducts() {
		p, err := st.CreateProduct(ctx, np)
		if err != nil {
			return out, errors.Wrapf(err, "seed %q", np.Name)
		}
		log.WithFields(log.Fields{"id": p.ID, "name": p.Name}).Info("seeded product")
		out = append(out, p)
	}
	return out, nil
}

func seed(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(c.Context, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	_, err = seedProducts(c.Context, st)
	return err
}

func grantAdmin(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fb, err := auth.NewFirebaseAuth(c.Context, cfg.FirebaseProjectID)
	if err != nil {
		return err
	}
	email := c.String("email")
	if err := auth.GrantClaim(c.Context, fb, email, cfg.AdminClaim); err != nil {
		return err
	}
	log.WithFields(log.Fields{"email": email, "claim": cfg.AdminClaim}).Info("admin claim granted")
	return nil
}
