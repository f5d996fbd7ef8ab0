// This file maps CLI context to the launcher's config struct.

package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/urfave/cli.v1"
)

// Config aggregates every subsystem's configuration the launcher needs.
type Config struct {
	Node    NodeConfig
	Chain   ChainConfig
	API     APIConfig
	Metrics MetricsConfig
	Store   StoreConfig
}

type NodeConfig struct {
	DataDir string
	Logging LoggingConfig
}

type LoggingConfig struct {
	Verbosity int
	Format    string
	Color     bool
	SentryDSN string
}

// ChainConfig locates the ledger node and the registry contract.
type ChainConfig struct {
	NodeURL  string
	Contract string
}

type APIConfig struct {
	Enabled bool
	Addr    string
	Port    int
}

type MetricsConfig struct {
	Enabled bool
	Addr    string
	Port    int
}

type StoreConfig struct {
	CacheMB int
	// JournalKeep is how many recent blocks of reorg undo data to retain;
	// 0 keeps everything.
	JournalKeep uint64
}

func defaultConfig() Config {
	return Config{
		Node: NodeConfig{
			DataDir: filepath.Join(GuessHomeDir(), ".hindex"),
			Logging: LoggingConfig{
				Verbosity: 3,
				Format:    "text",
			},
		},
		Chain: ChainConfig{
			NodeURL: "http://127.0.0.1:8545",
		},
		API: APIConfig{
			Addr: "127.0.0.1",
			Port: 18080,
		},
		Metrics: MetricsConfig{
			Addr: "127.0.0.1",
			Port: 6060,
		},
		Store: StoreConfig{
			CacheMB: 256,
		},
	}
}

// MakeAllConfigs merges defaults with CLI flag overrides.
func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	cfg := defaultConfig()
	applyCLIOverrides(ctx, &cfg)
	if err := ensureDir(cfg.Node.DataDir); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) {
	if ctx.IsSet("datadir") {
		cfg.Node.DataDir = resolvePath(ctx.String("datadir"))
	}
	if ctx.IsSet("node.url") {
		cfg.Chain.NodeURL = ctx.String("node.url")
	}
	if ctx.IsSet("contract") {
		cfg.Chain.Contract = ctx.String("contract")
	}

	if ctx.IsSet("log.format") {
		cfg.Node.Logging.Format = ctx.String("log.format")
	}
	if ctx.IsSet("log.verbosity") {
		cfg.Node.Logging.Verbosity = ctx.Int("log.verbosity")
	}
	if ctx.IsSet("log.color") {
		cfg.Node.Logging.Color = ctx.Bool("log.color")
	}
	if ctx.IsSet("sentry.dsn") {
		cfg.Node.Logging.SentryDSN = ctx.String("sentry.dsn")
	}

	if ctx.Bool("http") {
		cfg.API.Enabled = true
	}
	if ctx.IsSet("http.addr") {
		cfg.API.Addr = ctx.String("http.addr")
	}
	if ctx.IsSet("http.port") {
		cfg.API.Port = ctx.Int("http.port")
	}

	if ctx.Bool("metrics") {
		cfg.Metrics.Enabled = true
	}
	if ctx.IsSet("metrics.addr") {
		cfg.Metrics.Addr = ctx.String("metrics.addr")
	}
	if ctx.IsSet("metrics.port") {
		cfg.Metrics.Port = ctx.Int("metrics.port")
	}

	if ctx.IsSet("cache") {
		cfg.Store.CacheMB = ctx.Int("cache")
	}
	if ctx.IsSet("journal.keep") {
		cfg.Store.JournalKeep = ctx.Uint64("journal.keep")
	}
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create datadir %s: %w", dir, err)
	}
	return nil
}

func resolvePath(p string) string {
	if strings.HasPrefix(p, "~") {
		return filepath.Join(GuessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, p)
	}
	return p
}

func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
