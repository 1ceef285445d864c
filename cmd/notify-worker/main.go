// notify-worker consumes ledger change events off the queue and emails the
// rendered reports.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"ledgercheck/internal/amqp"
	"ledgercheck/internal/cli"
	"ledgercheck/internal/log"
	"ledgercheck/internal/notify"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentNotify)
	logger.Info("Starting notify-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the notify worker")
		os.Exit(1)
	}
	if !cfg.EmailEnabled() {
		logger.Error("SMTP_HOST is required for the notify worker")
		os.Exit(1)
	}

	repo := cli.InitStorage(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	renderer, err := notify.NewRenderer()
	if err != nil {
		logger.Error("Failed to load email templates", log.FieldError, err.Error())
		os.Exit(1)
	}
	mailer := notify.NewMailer(notify.MailerConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.EmailFrom,
		To:       cfg.EmailTo,
	}, logger)
	sink := notify.NewEmailSink(renderer, mailer, repo, cfg.SheetURL(), "")

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err = amqpClient.ConsumeChanges(ctx, func(msg *amqp.ChangeEventMessage) error {
		return sink.DeliverSerializedChanges(ctx, msg.Changes, msg.SheetURL, msg.PDFURL)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Notify worker shutdown complete", log.FieldOperation, log.OpShutdown)
}
