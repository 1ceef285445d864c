// ledgercheck-worker runs the ledger check on a fixed interval: fetch a
// fresh ledger when the pipeline is configured, compare, and deliver
// changes.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"ledgercheck/internal/amqp"
	"ledgercheck/internal/cli"
	"ledgercheck/internal/fetcher"
	"ledgercheck/internal/log"
	"ledgercheck/internal/notify"
	"ledgercheck/internal/services"
	gsheet "ledgercheck/internal/sheets/google"
	"ledgercheck/internal/worker"
)

// checkRun is one full worker iteration: fetch (when configured), then
// check the resulting sheet.
type checkRun struct {
	svc       *services.CheckService
	pipeline  *fetcher.Pipeline
	publisher *amqp.ChangePublisher
	emailSink *notify.EmailSink
	sheetName string
	pdfName   string
}

func (r *checkRun) Check(ctx context.Context) error {
	sheetName := r.sheetName
	if r.pipeline != nil {
		result, err := r.pipeline.Fetch(ctx)
		if err != nil {
			return err
		}
		sheetName = result.SheetName
		if r.publisher != nil {
			r.publisher.PDFURL = result.PDFURL
		}
		if r.emailSink != nil {
			r.emailSink.Attachments = []notify.Attachment{{Filename: r.pdfName, Data: result.PDF}}
		}
	}
	return r.svc.CheckSheet(ctx, sheetName)
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting ledgercheck-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	repo := cli.InitStorage(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sheetsClient, err := gsheet.NewFromEnv(ctx)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err.Error())
		os.Exit(1)
	}

	renderer, err := notify.NewRenderer()
	if err != nil {
		logger.Error("Failed to load email templates", log.FieldError, err.Error())
		os.Exit(1)
	}

	var emailSink *notify.EmailSink
	if cfg.EmailEnabled() {
		mailer := notify.NewMailer(notify.MailerConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
			To:       cfg.EmailTo,
		}, logger)
		emailSink = notify.NewEmailSink(renderer, mailer, repo, cfg.SheetURL(), "")
	}

	var sink services.ChangeSink
	var publisher *amqp.ChangePublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
			os.Exit(1)
		}
		defer amqpClient.Close()
		publisher = amqp.NewChangePublisher(amqpClient, cfg.SheetURL())
		sink = publisher
	} else if emailSink != nil {
		sink = emailSink
	} else {
		logger.Error("No delivery configured: set AMQP_URL or SMTP_HOST")
		os.Exit(1)
	}

	var failureSink services.FailureSink
	if emailSink != nil {
		failureSink = emailSink
	}

	svc := services.NewCheckService(
		sheetsClient, sheetsClient, sheetsClient, sheetsClient,
		services.NewTotalsExtractor(services.DefaultExtractorConfig(), logger),
		services.NewLedgerDiffer(logger),
		repo, sink, failureSink,
		services.CheckConfig{
			NewSheetName:         cfg.LedgerSheetName,
			BaselineNamedRange:   cfg.BaselineNamedRange,
			BaselineSheetName:    cfg.BaselineSheetName,
			DeleteUnchangedSheet: cfg.FetchEnabled(),
		},
		logger,
	)

	run := &checkRun{
		svc:       svc,
		publisher: publisher,
		emailSink: emailSink,
		sheetName: cfg.LedgerSheetName,
		pdfName:   cfg.DrivePDFName,
	}
	if cfg.FetchEnabled() {
		drive, err := fetcher.NewDriveFromEnv(ctx, logger)
		if err != nil {
			logger.Error("Failed to initialize Drive client", log.FieldError, err.Error())
			os.Exit(1)
		}
		run.pipeline = fetcher.NewPipeline(
			fetcher.NewExpense365Client(cfg.Expense365Email, cfg.Expense365Password, logger),
			fetcher.NewConverter(cfg.ConverterBaseURL, logger),
			drive, sheetsClient,
			fetcher.PipelineConfig{
				Report: fetcher.ReportRequest{
					ReportID:    cfg.Expense365ReportID,
					UserGroupID: cfg.Expense365GroupID,
					SubGroupID:  cfg.Expense365SubGroup,
				},
				PDFFileID: cfg.DrivePDFFileID,
				PDFName:   cfg.DrivePDFName,
			},
			logger,
		)
	} else if cfg.LedgerSheetName == "" {
		logger.Error("LEDGER_SHEET_NAME is required when the fetch pipeline is disabled")
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.NewCheckWorker(run, cfg.CheckInterval, logger).Run(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Worker shutdown complete", log.FieldOperation, log.OpShutdown)
}
