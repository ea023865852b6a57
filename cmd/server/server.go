package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/ardanlabs/conf/v3"
	"github.com/irsalhamdi/course-market/api"
	"github.com/irsalhamdi/course-market/api/background"
	"github.com/irsalhamdi/course-market/api/web"
	"github.com/irsalhamdi/course-market/config"
	"github.com/irsalhamdi/course-market/core/auth"
	"github.com/irsalhamdi/course-market/core/order"
	"github.com/irsalhamdi/course-market/database"
	"github.com/irsalhamdi/course-market/events"
	"github.com/irsalhamdi/course-market/metrics"
	"github.com/irsalhamdi/course-market/payment"
	"github.com/irsalhamdi/course-market/rate"
	"github.com/plutov/paypal/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	stripecl "github.com/stripe/stripe-go/v74/client"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	const prefix = "GOVOD"
	var cfg config.Config
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.Auth.SessionLifetime

	var limiter rate.Limiter
	limiter, err = rate.NewWindow(cfg.RateLimit.CheckoutMax, cfg.RateLimit.CheckoutWindow)
	if err != nil {
		return fmt.Errorf("checkout rate limit: %w", err)
	}

	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}

		sessionManager.Store = auth.NewRedisStore(rdb)
		limiter, err = rate.NewRedisWindow(rdb, "ratelimit:checkout:", cfg.RateLimit.CheckoutMax, cfg.RateLimit.CheckoutWindow)
		if err != nil {
			return fmt.Errorf("checkout rate limit: %w", err)
		}
	}

	authBucket, err := rate.NewBucket(cfg.RateLimit.AuthBurst, cfg.RateLimit.AuthInterval, cfg.RateLimit.AuthIdle)
	if err != nil {
		return fmt.Errorf("auth rate limit: %w", err)
	}

	clientIP, err := web.NewClientIP(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	bg := background.New(logger)

	var pub events.Publisher = events.Log{Log: logger}
	if cfg.Events.URL != "" {
		amqpPub, err := events.NewAMQP(cfg.Events.URL, cfg.Events.Exchange)
		if err != nil {
			return fmt.Errorf("failed to connect to the event broker: %w", err)
		}
		defer amqpPub.Close()
		pub = amqpPub
	}
	dispatcher := events.NewDispatcher(pub, bg, logger)

	var (
		gateways []payment.Gateway
		snap     *payment.Snap
		strp     *payment.Stripe
		pp       *payment.Paypal
	)

	if cfg.Midtrans.ServerKey != "" {
		snap, err = payment.NewSnap(payment.SnapConfig{
			ServerKey:  cfg.Midtrans.ServerKey,
			ClientKey:  cfg.Midtrans.ClientKey,
			Production: cfg.Midtrans.Production,
			BaseURL:    cfg.Midtrans.URL,
			Timeout:    cfg.Payment.Timeout,
		})
		if err != nil {
			return fmt.Errorf("failed to build the midtrans client: %w", err)
		}
		gateways = append(gateways, snap)
	}

	if cfg.Stripe.APISecret != "" {
		sc := &stripecl.API{}
		sc.Init(cfg.Stripe.APISecret, nil)

		strp = payment.NewStripe(sc, payment.StripeConfig{
			PublishableKey: cfg.Stripe.PublishableKey,
			WebhookSecret:  cfg.Stripe.WebhookSecret,
			Currency:       cfg.Stripe.Currency,
			SuccessURL:     cfg.Stripe.SuccessURL,
			CancelURL:      cfg.Stripe.CancelURL,
		})
		gateways = append(gateways, strp)
	}

	if cfg.Paypal.ClientID != "" {
		client, err := paypal.NewClient(cfg.Paypal.ClientID, cfg.Paypal.Secret, cfg.Paypal.URL)
		if err != nil {
			return fmt.Errorf("failed to build the paypal client: %w", err)
		}
		client.Client = &http.Client{Timeout: cfg.Payment.Timeout}

		if _, err = client.GetAccessToken(context.TODO()); err != nil {
			return fmt.Errorf("failed to get the first paypal access token: %w", err)
		}

		pp = payment.NewPaypal(client, cfg.Paypal.ClientID, cfg.Paypal.Currency, cfg.Payment.FinishURL)
		gateways = append(gateways, pp)
	}

	registry, err := payment.NewRegistry(cfg.Payment.Provider, gateways...)
	if err != nil {
		return fmt.Errorf("failed to build payment gateways: %w", err)
	}
	logger.Infof("payment providers: %v (default %s)", registry.Names(), cfg.Payment.Provider)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Oauth.DiscoveryTimeout)
	defer cancel()
	google := cfg.Oauth.Google
	oauthProvs, err := auth.MakeProviders(ctx, []auth.ProviderConfig{
		{Name: "google", Client: google.Client, Secret: google.Secret, URL: google.URL, RedirectURL: google.RedirectURL},
	})
	if err != nil {
		return fmt.Errorf("failed to discover oauth providers: %w", err)
	}

	if cfg.Auth.AdminEmail != "" {
		if err := auth.EnsureAdmin(ctx, db, cfg.Auth.AdminEmail, cfg.Auth.AdminPassword); err != nil {
			return fmt.Errorf("failed to create the admin account: %w", err)
		}
	}

	metrics.Register()

	mux := api.APIMux(api.APIConfig{
		CorsOrigin:      cfg.Cors.Origin,
		Log:             logger,
		DB:              db,
		Session:         sessionManager,
		Gateways:        registry,
		Snap:            snap,
		Stripe:          strp,
		Paypal:          pp,
		CheckoutLimiter: limiter,
		AuthBucket:      authBucket,
		ClientIP:        clientIP,
		Checkout: order.CheckoutConfig{
			TTL:       cfg.Payment.OrderTTL,
			FinishURL: cfg.Payment.FinishURL,
		},
		Events:           dispatcher,
		Providers:        oauthProvs,
		LoginRedirectURL: cfg.Oauth.LoginRedirectURL,
	})

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()

	sweeper := order.Sweeper{
		DB:       db,
		Log:      logger,
		Events:   dispatcher,
		Interval: cfg.Payment.SweepInterval,
	}
	go sweeper.Run(sweepCtx)

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)
		stopSweep()

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		if err := bg.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not complete all background tasks: %w", err)
		}
	}
	return nil
}
