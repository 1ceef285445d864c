// ledgercheck runs one ledger check: optionally fetch a fresh ledger from
// eXpense365, compare it against the baseline sheet and deliver any changes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ledgercheck/internal/amqp"
	"ledgercheck/internal/cli"
	"ledgercheck/internal/fetcher"
	"ledgercheck/internal/log"
	"ledgercheck/internal/notify"
	"ledgercheck/internal/services"
	gsheet "ledgercheck/internal/sheets/google"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	logger.Info("Starting ledgercheck", log.FieldOperation, log.OpStartup)

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

	sheetName := cfg.LedgerSheetName
	if cfg.FetchEnabled() {
		drive, err := fetcher.NewDriveFromEnv(ctx, logger)
		if err != nil {
			logger.Error("Failed to initialize Drive client", log.FieldError, err.Error())
			os.Exit(1)
		}
		pipeline := fetcher.NewPipeline(
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

		result, err := pipeline.Fetch(ctx)
		if err != nil {
			logger.Error("Ledger fetch failed", log.FieldError, err.Error())
			os.Exit(1)
		}
		sheetName = result.SheetName
		if publisher != nil {
			publisher.PDFURL = result.PDFURL
		}
		if emailSink != nil {
			emailSink.Attachments = []notify.Attachment{{Filename: cfg.DrivePDFName, Data: result.PDF}}
		}
	}

	if sheetName == "" {
		logger.Error("LEDGER_SHEET_NAME is required when the fetch pipeline is disabled")
		os.Exit(1)
	}

	if err := svc.CheckSheet(ctx, sheetName); err != nil {
		logger.Error("Check failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	logger.Info("Check complete", log.FieldSheet, sheetName)
}
