package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Devjdias/ecommerceJD/internal/auth"
	"github.com/Devjdias/ecommerceJD/internal/checkout"
	"github.com/Devjdias/ecommerceJD/internal/config"
	"github.com/Devjdias/ecommerceJD/internal/content"
	"github.com/Devjdias/ecommerceJD/internal/events"
	"github.com/Devjdias/ecommerceJD/internal/fulfillment"
	"github.com/Devjdias/ecommerceJD/internal/httpapi"
	"github.com/Devjdias/ecommerceJD/internal/mailer"
	"github.com/Devjdias/ecommerceJD/internal/store"
)

const shutdownGrace = 10 * time.Second

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	cfg := config.Load()
	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("db", cfg.DBPath).
		Str("ebooks", cfg.EbooksDir).
		Msg("starting clicleitura server")

	st, err := store.Open(cfg.DBPath)
	must(err)
	defer st.Close()

	if cfg.SeedOnStart {
		must(st.Seed(context.Background()))
		log.Info().Msg("seeded catalog")
	}

	var pub events.Publisher = events.Nop{}
	if cfg.RabbitURL != "" {
		rb, err := events.NewRabbit(cfg.RabbitURL, cfg.RabbitExchange)
		must(err)
		pub = rb
		log.Info().Str("exchange", cfg.RabbitExchange).Msg("event publisher connected")
	}
	defer pub.Close()

	smtp, err := mailer.NewSMTP(mailer.Config{
		Host:     cfg.MailHost,
		Port:     cfg.MailPort,
		Username: cfg.MailUsername,
		Password: cfg.MailPassword,
		From:     cfg.MailFrom,
	})
	must(err)

	fetcher := content.NewFetcher(cfg.EbooksDir)
	co := checkout.New(st, pub)
	ff := fulfillment.New(st, fetcher, smtp, pub)
	tokens := auth.NewManager(cfg.JWTSecret)

	api := httpapi.New(st, co, ff, tokens)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.Handler(),
		// fulfillment blocks while a remote download retries, so no write
		// timeout on purpose
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		log.Warn().Msg("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("serve failed")
	}
}

func must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
