package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/pluck"
	"github.com/fwojciec/pluck/firecrawl"
	"github.com/fwojciec/pluck/redis"
	"github.com/fwojciec/pluck/sqlite"
	plzerolog "github.com/fwojciec/pluck/zerolog"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := NewMain()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// Getenv looks up environment variables. Defaults to os.Getenv.
	Getenv func(string) string

	// Config is the resolved configuration, available after Run parses flags.
	Config Config

	// Storage opened by Run for the configured store.
	DB    *sqlite.DB
	Redis *goredis.Client

	// Services for end-to-end testing. When set, Run uses them instead of
	// opening the configured store or connecting to Firecrawl.
	Extractor   pluck.Extractor
	Credentials pluck.CredentialStore
}

// NewMain returns a new instance of Main with defaults.
func NewMain() *Main {
	return &Main{
		Getenv: os.Getenv,
	}
}

// Close gracefully stops the program.
func (m *Main) Close() error {
	if m.Redis != nil {
		if err := m.Redis.Close(); err != nil {
			return err
		}
	}
	if m.DB != nil {
		return m.DB.Close()
	}
	return nil
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("pluck"),
		kong.Description("Extract structured data from web pages with Firecrawl."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Vars{"default_prompt": pluck.DefaultPrompt},
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'pluck --help' to see available commands")
	}

	cmd := args[0]
	if cmd == "help" || cmd == "--help" || cmd == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	if err := m.configure(cli); err != nil {
		if pluck.ErrorCode(err) == pluck.ECREDENTIAL {
			fmt.Fprintln(stderr, "Hint: Unset PLUCK_REQUIRE_ENV_KEY to use the stored API key instead")
		}
		return err
	}
	deps.Config = m.Config
	deps.Logger = newLogger(stderr, m.Config.Verbose)

	if err := m.openStore(ctx, stderr); err != nil {
		return err
	}
	defer m.Close()
	deps.Credentials = plzerolog.NewLoggingCredentialStore(m.Credentials, deps.Logger)

	extractor := m.Extractor
	if extractor == nil {
		extractor = firecrawl.NewExtractor(
			firecrawl.WithBaseURL(m.Config.Firecrawl.URL),
			firecrawl.WithPollInterval(m.Config.Firecrawl.PollInterval),
		)
	}
	deps.Extractor = plzerolog.NewLoggingExtractor(extractor, deps.Logger)

	return kongCtx.Run(deps)
}

// configure resolves the configuration from defaults, the config file, the
// environment and flags, in increasing order of precedence.
func (m *Main) configure(cli *CLI) error {
	cfg := DefaultConfig()

	if path := configPath(cli.Config, m.Getenv); path != "" {
		fc, err := LoadConfigFile(path)
		if err != nil {
			return pluck.Errorf(pluck.EINVALID, "failed to load config: %s", err)
		}
		ApplyFileConfig(&cfg, fc)
	}

	if err := ApplyEnv(&cfg, m.Getenv); err != nil {
		return err
	}

	setString(&cfg.DB, cli.DB)
	setString(&cfg.Store, cli.Store)
	setString(&cfg.Profile, cli.Profile)
	if cli.Verbose {
		cfg.Verbose = true
	}
	setString(&cfg.Server.Addr, cli.Serve.Addr)
	setString(&cfg.Server.MetricsAddr, cli.Serve.MetricsAddr)

	if err := cfg.Validate(); err != nil {
		return err
	}
	m.Config = cfg
	return nil
}

// openStore opens the configured credential store unless one was injected.
func (m *Main) openStore(ctx context.Context, stderr io.Writer) error {
	if m.Credentials != nil {
		return nil
	}

	switch m.Config.Store {
	case StoreRedis:
		client, err := redis.Dial(ctx, m.Config.Redis)
		if err != nil {
			fmt.Fprintln(stderr, "Hint: Set PLUCK_REDIS_ADDR to the address of a running Redis server")
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		m.Redis = client
		m.Credentials = redis.NewCredentialStore(client)
	default:
		if dir := filepath.Dir(m.Config.DB); dir != "." {
			_ = os.MkdirAll(dir, 0700)
		}
		m.DB = sqlite.NewDB(m.Config.DB)
		if err := m.DB.Open(); err != nil {
			fmt.Fprintln(stderr, "Hint: Set PLUCK_DB to use a different database path")
			return fmt.Errorf("failed to open database at %q: %w", m.Config.DB, err)
		}
		m.Credentials = sqlite.NewCredentialStore(m.DB)
	}
	return nil
}

func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}
