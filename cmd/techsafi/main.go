package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mastermind-creat/tech.safi-sub001/internal/api"
	"github.com/mastermind-creat/tech.safi-sub001/internal/chatbot"
	"github.com/mastermind-creat/tech.safi-sub001/internal/config"
	"github.com/mastermind-creat/tech.safi-sub001/internal/genai"
	"github.com/mastermind-creat/tech.safi-sub001/internal/lockfile"
	"github.com/mastermind-creat/tech.safi-sub001/internal/session"
	"github.com/mastermind-creat/tech.safi-sub001/internal/store"
	"github.com/mastermind-creat/tech.safi-sub001/internal/twiliowhatsapp"
)

// Default configuration constants
const (
	// DefaultDBFileName is the SQLite database created in the state directory
	DefaultDBFileName = "techsafi.db"
	// sweepInterval is how often idle conversations are checked for expiry
	sweepInterval = time.Minute
)

// Flags holds command line flag values
type Flags struct {
	stateDir  *string
	dbDSN     *string
	apiAddr   *string
	openaiKey *string
	model     *string
	debug     *bool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	flags, err := parseCommandLineFlags(cfg, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	initializeLogger(os.Stdout, cfg.LogFormat, *flags.debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, flags); err != nil {
		slog.Error("techsafi failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("techsafi exited successfully")
}

// initializeLogger installs the process-wide slog logger.
func initializeLogger(w io.Writer, format string, debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// parseCommandLineFlags parses args with environment values as defaults.
func parseCommandLineFlags(cfg config.Config, args []string) (Flags, error) {
	fs := flag.NewFlagSet("techsafi", flag.ContinueOnError)
	flags := Flags{
		stateDir:  fs.String("state-dir", cfg.StateDir, "state directory for the lock file, SQLite database and debug logs (overrides $TECHSAFI_STATE_DIR)"),
		dbDSN:     fs.String("db-dsn", cfg.DatabaseURL, "transcript database: Postgres DSN, SQLite path, or \"memory\" (overrides $DATABASE_URL)"),
		apiAddr:   fs.String("api-addr", cfg.Addr, "API server address (overrides $API_ADDR)"),
		openaiKey: fs.String("openai-api-key", cfg.OpenAIKey, "OpenAI API key (overrides $OPENAI_API_KEY)"),
		model:     fs.String("openai-model", cfg.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		debug:     fs.Bool("debug", cfg.Debug, "debug logging and AI request logs (overrides $TECHSAFI_DEBUG)"),
	}
	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	return flags, nil
}

// resolveDSN defaults to a SQLite file in the state directory.
func resolveDSN(flags Flags) string {
	if *flags.dbDSN != "" {
		return *flags.dbDSN
	}
	return filepath.Join(*flags.stateDir, DefaultDBFileName)
}

// usesStateDir reports whether dsn is a file that lives on local disk.
func usesStateDir(dsn string) bool {
	return dsn != store.MemoryDSN && store.DetectDSNType(dsn) == "sqlite"
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(cfg config.Config, flags Flags) []genai.Option {
	opts := []genai.Option{
		genai.WithTemperature(cfg.OpenAITemperature),
		genai.WithMaxTokens(cfg.OpenAIMaxTokens),
		genai.WithMaxRetries(cfg.OpenAIMaxRetries),
		genai.WithDebugMode(*flags.debug),
		genai.WithStateDir(*flags.stateDir),
	}
	if *flags.model != "" {
		opts = append(opts, genai.WithModel(*flags.model))
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, genai.WithBaseURL(cfg.OpenAIBaseURL))
	}
	return opts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(cfg config.Config, flags Flags) ([]api.Option, error) {
	opts := []api.Option{
		api.WithAddr(*flags.apiAddr),
		api.WithCORSOrigins(cfg.CORSAllowedOrigins),
	}
	if cfg.TwilioSignatureEnabled() {
		opts = append(opts, api.WithTwilioSignature(cfg.TwilioAuthToken, cfg.TwilioWebhookURL))
	}
	if !cfg.TwilioEnabled() {
		slog.Info("WhatsApp REST delivery disabled, webhook replies use inline TwiML")
		return opts, nil
	}
	client, err := twiliowhatsapp.NewClient(
		twiliowhatsapp.WithAccountSID(cfg.TwilioAccountSID),
		twiliowhatsapp.WithAuthToken(cfg.TwilioAuthToken),
		twiliowhatsapp.WithFromNumber(cfg.TwilioFromNumber),
	)
	if err != nil {
		return nil, fmt.Errorf("twilio client: %w", err)
	}
	return append(opts, api.WithWhatsAppSender(client)), nil
}

// systemPrompt loads the persona file if configured, else the built-in prompt.
func systemPrompt(cfg config.Config) (string, error) {
	if cfg.SystemPromptFile == "" {
		return genai.DefaultSystemPrompt(cfg.Brand()), nil
	}
	return genai.LoadSystemPrompt(cfg.SystemPromptFile)
}

// run wires every module and serves until ctx is cancelled.
func run(ctx context.Context, cfg config.Config, flags Flags) error {
	dsn := resolveDSN(flags)
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_type", store.DetectDSNType(dsn), "api_addr", *flags.apiAddr)

	if usesStateDir(dsn) {
		lock, err := lockfile.Acquire(*flags.stateDir, *flags.apiAddr)
		if err != nil {
			return err
		}
		defer lock.Release()
	}

	st, err := store.New(dsn)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	rules, err := chatbot.NewDefaultRuleTable(cfg.Brand())
	if err != nil {
		return fmt.Errorf("build rule table: %w", err)
	}
	resolver := chatbot.NewResolver(rules,
		chatbot.WithTimeout(cfg.AITimeout),
		chatbot.WithFallbackDelay(cfg.FallbackDelay),
	)

	prompt, err := systemPrompt(cfg)
	if err != nil {
		return fmt.Errorf("load system prompt: %w", err)
	}
	factory := genai.NewSessionFactory(prompt, cfg.HistoryLimit, buildGenAIOptions(cfg, flags)...)
	if genai.IsPlaceholderCredential(*flags.openaiKey) {
		slog.Warn("No OpenAI API key configured, conversations will use rule-based replies")
	}

	manager := session.NewManager(resolver, factory,
		session.WithStore(st),
		session.WithTTL(cfg.SessionTTL),
		session.WithCredential(*flags.openaiKey),
	)
	manager.StartSweeper(ctx, sweepInterval)

	apiOpts, err := buildAPIOptions(cfg, flags)
	if err != nil {
		return err
	}

	slog.Info("Bootstrapping techsafi", "brand", cfg.Brand().Name, "rules", len(rules.Names()))
	return api.NewServer(manager, apiOpts...).Run(ctx)
}
