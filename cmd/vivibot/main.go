// Command vivibot runs the wellbeing assistant: the webhook API server, the
// conversation dispatcher, and the reminder sweep.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/uvbienestar/vivibot/internal/api"
	"github.com/uvbienestar/vivibot/internal/calendar"
	"github.com/uvbienestar/vivibot/internal/flow"
	"github.com/uvbienestar/vivibot/internal/genai"
	"github.com/uvbienestar/vivibot/internal/messaging"
	"github.com/uvbienestar/vivibot/internal/models"
	"github.com/uvbienestar/vivibot/internal/reminder"
	"github.com/uvbienestar/vivibot/internal/sched"
	"github.com/uvbienestar/vivibot/internal/scheduler"
	"github.com/uvbienestar/vivibot/internal/sheets"
	"github.com/uvbienestar/vivibot/internal/store"
	"github.com/uvbienestar/vivibot/internal/twiliowhatsapp"
	"github.com/uvbienestar/vivibot/internal/util"
	"github.com/uvbienestar/vivibot/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for ViviBot state data
	DefaultStateDir = "/var/lib/vivibot"
	// DefaultDBFileName is the default SQLite database filename for the
	// appointment archive
	DefaultDBFileName = "vivibot.db"
	// DefaultWhatsAppDBFileName is the default whatsmeow session database
	DefaultWhatsAppDBFileName = "whatsmeow.db"
	// DefaultTimezone is the clinic timezone for scheduling and reminders
	DefaultTimezone = "America/Bogota"
)

func main() {
	initializeLogger()
	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	if err := run(flags); err != nil {
		slog.Error("ViviBot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("ViviBot exited successfully")
}

// Config holds environment configuration
type Config struct {
	StateDir      string
	DatabaseURL   string
	WhatsAppDSN   string
	Backend       string
	OpenAIKey     string
	APIAddr       string
	VerifyToken   string
	Credentials   string
	CalendarID    string
	SpreadsheetID string
	SheetName     string
	Timezone      string
	Responder     string
}

// Flags holds command line flag values
type Flags struct {
	qrOutput      *string
	numeric       *bool
	stateDir      *string
	dbDSN         *string
	waDSN         *string
	backend       *string
	openaiKey     *string
	apiAddr       *string
	verifyToken   *string
	credentials   *string
	calendarID    *string
	spreadsheetID *string
	sheetName     *string
	timezone      *string
	responder     *string
}

// initializeLogger sets up structured logging from LOG_LEVEL and LOG_FORMAT.
func initializeLogger() {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StateDir:      os.Getenv("VIVIBOT_STATE_DIR"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		WhatsAppDSN:   os.Getenv("WHATSAPP_DB_DSN"),
		Backend:       os.Getenv("MESSAGING_BACKEND"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		APIAddr:       os.Getenv("API_ADDR"),
		VerifyToken:   os.Getenv("WEBHOOK_VERIFY_TOKEN"),
		Credentials:   os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		CalendarID:    os.Getenv("GOOGLE_CALENDAR_ID"),
		SpreadsheetID: os.Getenv("SHEETS_SPREADSHEET_ID"),
		SheetName:     os.Getenv("SHEETS_SHEET_NAME"),
		Timezone:      os.Getenv("TIMEZONE"),
		Responder:     os.Getenv("RESPONDER_PHONE"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No VIVIBOT_STATE_DIR set, using default", "state_dir", config.StateDir)
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No DATABASE_URL provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}
	if config.WhatsAppDSN == "" {
		config.WhatsAppDSN = filepath.Join(config.StateDir, DefaultWhatsAppDBFileName)
	}
	if config.Backend == "" {
		config.Backend = "whatsmeow"
	}
	if config.Timezone == "" {
		config.Timezone = DefaultTimezone
	}

	slog.Debug("environment variables loaded",
		"VIVIBOT_STATE_DIR", config.StateDir,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"MESSAGING_BACKEND", config.Backend,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"WEBHOOK_VERIFY_TOKEN_SET", config.VerifyToken != "",
		"GOOGLE_CALENDAR_ID_SET", config.CalendarID != "",
		"SHEETS_SPREADSHEET_ID_SET", config.SpreadsheetID != "",
		"TIMEZONE", config.Timezone)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		qrOutput:      flag.String("qr-output", "", "path to write login QR code"),
		numeric:       flag.Bool("numeric-code", false, "use numeric login code instead of QR code"),
		stateDir:      flag.String("state-dir", config.StateDir, "state directory for ViviBot data (overrides $VIVIBOT_STATE_DIR)"),
		dbDSN:         flag.String("db-dsn", config.DatabaseURL, "appointment archive DSN, SQLite path or postgres:// URL (overrides $DATABASE_URL)"),
		waDSN:         flag.String("wa-db-dsn", config.WhatsAppDSN, "whatsmeow session database DSN (overrides $WHATSAPP_DB_DSN)"),
		backend:       flag.String("backend", config.Backend, "messaging backend: whatsmeow or twilio (overrides $MESSAGING_BACKEND)"),
		openaiKey:     flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		apiAddr:       flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		verifyToken:   flag.String("verify-token", config.VerifyToken, "webhook verification token (overrides $WEBHOOK_VERIFY_TOKEN)"),
		credentials:   flag.String("google-credentials", config.Credentials, "Google service-account credentials file (overrides $GOOGLE_CREDENTIALS_FILE)"),
		calendarID:    flag.String("calendar-id", config.CalendarID, "Google Calendar ID (overrides $GOOGLE_CALENDAR_ID)"),
		spreadsheetID: flag.String("spreadsheet-id", config.SpreadsheetID, "appointment spreadsheet ID (overrides $SHEETS_SPREADSHEET_ID)"),
		sheetName:     flag.String("sheet-name", config.SheetName, "appointment sheet tab name (overrides $SHEETS_SHEET_NAME)"),
		timezone:      flag.String("timezone", config.Timezone, "clinic timezone (overrides $TIMEZONE)"),
		responder:     flag.String("responder-phone", config.Responder, "WhatsApp number notified on emergency escalations (overrides $RESPONDER_PHONE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"backend", *flags.backend,
		"apiAddr", *flags.apiAddr,
		"timezone", *flags.timezone)

	return flags
}

// ensureDirectoriesExist creates directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	for _, dsn := range []string{*flags.dbDSN, *flags.waDSN} {
		if store.DetectDSNType(dsn) == "postgres" {
			continue
		}
		dir := filepath.Dir(dsn)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating state directory %s: %w", dir, err)
		}
	}
	return nil
}

func run(flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(*flags.timezone)
	if err != nil {
		return fmt.Errorf("loading timezone %q: %w", *flags.timezone, err)
	}

	archive, err := openArchive(*flags.dbDSN)
	if err != nil {
		return fmt.Errorf("opening appointment archive: %w", err)
	}
	defer archive.Close()

	cal, err := calendar.New(ctx,
		calendar.WithCalendarID(*flags.calendarID),
		calendar.WithCredentialsFile(*flags.credentials),
		calendar.WithTimezone(*flags.timezone),
	)
	if err != nil {
		return fmt.Errorf("initializing calendar client: %w", err)
	}

	var records sheets.RecordStore
	if *flags.spreadsheetID != "" {
		opts := []sheets.Option{
			sheets.WithSpreadsheetID(*flags.spreadsheetID),
			sheets.WithCredentialsFile(*flags.credentials),
		}
		if *flags.sheetName != "" {
			opts = append(opts, sheets.WithSheetName(*flags.sheetName))
		}
		gs, err := sheets.New(ctx, opts...)
		if err != nil {
			slog.Warn("Sheets sync disabled", "error", err)
		} else {
			records = gs
		}
	} else {
		slog.Warn("No spreadsheet configured, appointment rows stay local only")
	}

	var ai genai.Completer
	if *flags.openaiKey != "" {
		client, err := genai.NewClient(genai.WithAPIKey(*flags.openaiKey))
		if err != nil {
			slog.Warn("AI assist disabled", "error", err)
		} else {
			ai = client
		}
	} else {
		slog.Warn("No OpenAI API key, AI assist disabled")
	}

	messenger, waClient, err := buildMessenger(flags)
	if err != nil {
		return fmt.Errorf("initializing messaging backend: %w", err)
	}

	dispatcher := flow.NewDispatcher(flow.Deps{
		Messenger:      messenger,
		Scheduler:      sched.NewService(cal, cal, loc, nil),
		Calendar:       cal,
		Records:        records,
		Archive:        archive,
		AI:             ai,
		ResponderPhone: *flags.responder,
	})

	if waClient != nil {
		waClient.OnInboundMessage(func(evt models.InboundEvent) {
			dctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			dispatcher.Dispatch(dctx, evt)
		})
	}

	cronSched := scheduler.NewScheduler(loc)
	defer cronSched.Stop()
	if util.ParseBoolEnv("DISABLE_REMINDERS", false) {
		slog.Warn("Reminder sweep disabled by DISABLE_REMINDERS")
	} else if err := reminder.NewService(archive, messenger, loc, nil).Start(cronSched); err != nil {
		return fmt.Errorf("starting reminder sweep: %w", err)
	}

	server, err := api.NewServer(dispatcher,
		api.WithAddr(*flags.apiAddr),
		api.WithVerifyToken(*flags.verifyToken),
	)
	if err != nil {
		return fmt.Errorf("initializing API server: %w", err)
	}

	slog.Info("ViviBot running", "backend", *flags.backend, "timezone", *flags.timezone)
	return server.Run(ctx)
}

// openArchive picks the store backend from the DSN shape.
func openArchive(dsn string) (store.Store, error) {
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, using PostgreSQL archive")
		return store.NewPostgresStore(store.WithDSN(dsn))
	}
	slog.Debug("Detected SQLite DSN, using SQLite archive", "db_path", dsn)
	return store.NewSQLiteStore(store.WithDSN(dsn))
}

// buildMessenger wires the configured transport. The whatsmeow client is also
// returned so its inbound events can feed the dispatcher.
func buildMessenger(flags Flags) (messaging.Messenger, *whatsapp.Client, error) {
	switch strings.ToLower(*flags.backend) {
	case "twilio":
		client, err := twiliowhatsapp.NewClient()
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewTwilioService(client), nil, nil
	case "", "whatsmeow":
		opts := []whatsapp.Option{whatsapp.WithDBDSN(*flags.waDSN)}
		if *flags.qrOutput != "" {
			opts = append(opts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			opts = append(opts, whatsapp.WithNumericCode())
		}
		client, err := whatsapp.NewClient(opts...)
		if err != nil {
			return nil, nil, err
		}
		return messaging.NewWhatsAppService(client), client, nil
	default:
		return nil, nil, fmt.Errorf("unknown messaging backend %q", *flags.backend)
	}
}
