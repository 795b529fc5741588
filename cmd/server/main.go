package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/velmark/shopapi/internal/config"
	"github.com/velmark/shopapi/internal/es"
	"github.com/velmark/shopapi/internal/handlers/admin"
	"github.com/velmark/shopapi/internal/handlers/auth"
	"github.com/velmark/shopapi/internal/handlers/cart"
	"github.com/velmark/shopapi/internal/handlers/checkout"
	"github.com/velmark/shopapi/internal/handlers/item"
	"github.com/velmark/shopapi/internal/handlers/search"
	"github.com/velmark/shopapi/internal/logging"
	"github.com/velmark/shopapi/internal/mail"
	mwauth "github.com/velmark/shopapi/internal/middleware/auth"
	loggingmw "github.com/velmark/shopapi/internal/middleware/logging"
	"github.com/velmark/shopapi/internal/mykafka"
	"github.com/velmark/shopapi/internal/payment"
	httpserver "github.com/velmark/shopapi/internal/transport/http"
)

func main() {
	configuration, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.New(configuration.LOG_LEVEL)
	slog.SetDefault(logger)

	db, err := config.InitDB(configuration)
	if err != nil {
		log.Fatalf("database init failed: %v", err)
	}

	sessionSecret := []byte(configuration.SESSION_SECRET)

	prod, err := mykafka.NewProducer([]string{configuration.KAFKA_ADDRESS})
	if err != nil {
		log.Fatal(err)
	}

	esClient, err := es.NewClient(configuration)
	if err != nil {
		log.Fatal(err)
	}
	itemIndex := &es.ItemIndex{Client: esClient, Name: "items"}

	gateway := payment.NewStripeGateway(configuration.STRIPE_SECRET)
	mailer := mail.NewSendGridMailer(configuration.SENDGRID_API_KEY, configuration.MAIL_FROM)

	e := echo.New()
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover(), middleware.RequestID())
	e.Use(loggingmw.RequestLogger(logger))

	deps := httpserver.Deps{
		AuthHandler: &auth.AuthHandler{
			DB:            db,
			SessionSecret: sessionSecret,
			Producer:      prod,
			Mailer:        mailer,
			FrontendURL:   configuration.FRONTEND_URL,
		},
		ItemHandler:     &item.ItemHandler{DB: db, Producer: prod, Index: itemIndex},
		CartHandler:     &cart.CartHandler{DB: db, Producer: prod},
		CheckoutHandler: &checkout.CheckoutHandler{DB: db, Gateway: gateway, Producer: prod},
		AdminHandler:    &admin.AdminHandler{DB: db, Producer: prod},
		SearchHandler:   &search.SearchHandler{ES: esClient, Index: "items"},
		Session:         &mwauth.SessionMiddleware{DB: db, Secret: sessionSecret},
	}

	httpserver.Register(e, &deps)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit

	log.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			log.Printf("db close error: %v", err)
		}
	} else {
		log.Printf("db() error: %v", err)
	}

	if err := prod.Close(); err != nil {
		log.Printf("kafka close error: %v", err)
	}

	log.Println("shutdown complete")
}
