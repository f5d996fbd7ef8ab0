package launcher

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/kvdb/leveldb"
	"github.com/ethereum/go-ethereum/common"
	"github.com/evalphobia/logrus_sentry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-humanity-index/api"
	"github.com/rony4d/go-humanity-index/flags"
	"github.com/rony4d/go-humanity-index/indexer"
	"github.com/rony4d/go-humanity-index/ledger"
	"github.com/rony4d/go-humanity-index/query"
	"github.com/rony4d/go-humanity-index/store"
)

var app = flags.NewApp()

func init() {
	app.Flags = flags.CommonFlags()
	app.Action = run
}

// Launch parses the CLI and runs the indexer node until interrupted.
func Launch(args []string) error {
	return app.Run(args)
}

func run(ctx *cli.Context) error {
	cfg, err := MakeAllConfigs(ctx)
	if err != nil {
		return err
	}
	log, err := makeLogger(cfg.Node.Logging)
	if err != nil {
		return err
	}
	if !common.IsHexAddress(cfg.Chain.Contract) {
		return fmt.Errorf("missing or invalid --contract address %q", cfg.Chain.Contract)
	}
	contract := common.HexToAddress(cfg.Chain.Contract)

	dbs := leveldb.NewProducer(filepath.Join(cfg.Node.DataDir, "registry"), func(string) (int, int) {
		return cfg.Store.CacheMB * 1024 * 1024, 512
	})
	db, err := dbs.OpenDB("main")
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	s := store.New(db, log)
	reader, err := ledger.DialEthReader(cfg.Chain.NodeURL, contract)
	if err != nil {
		return fmt.Errorf("dial ledger node %s: %w", cfg.Chain.NodeURL, err)
	}
	engine := indexer.New(s, reader, log)

	pos, err := s.Checkpoint()
	if err != nil {
		return fmt.Errorf("read checkpoint: %w", err)
	}
	log.WithFields(logrus.Fields{
		"contract": contract.Hex(),
		"block":    uint64(pos.Block),
		"records":  pos.Records,
	}).Info("indexer ready, waiting for records")

	stop := make(chan struct{})
	if cfg.Store.JournalKeep > 0 {
		go pruneLoop(s, engine, cfg.Store.JournalKeep, log, stop)
	}

	var servers []*http.Server
	if cfg.API.Enabled {
		srv := startHTTP(
			net.JoinHostPort(cfg.API.Addr, strconv.Itoa(cfg.API.Port)),
			api.New(query.New(s), s, engine.Halted, log),
			"api", log)
		servers = append(servers, srv)
	}
	if cfg.Metrics.Enabled {
		srv := startHTTP(
			net.JoinHostPort(cfg.Metrics.Addr, strconv.Itoa(cfg.Metrics.Port)),
			promhttp.Handler(),
			"metrics", log)
		servers = append(servers, srv)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigc
	log.WithField("signal", sig.String()).Info("shutting down")

	close(stop)
	for _, srv := range servers {
		srv.Close()
	}
	return nil
}

func startHTTP(addr string, h http.Handler, name string, log *logrus.Logger) *http.Server {
	srv := &http.Server{Addr: addr, Handler: h}
	go func() {
		log.WithFields(logrus.Fields{"server": name, "addr": addr}).Info("HTTP server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).WithField("server", name).Error("HTTP server failed")
		}
	}()
	return srv
}

// pruneLoop periodically discards undo journal entries older than keep
// blocks behind the checkpoint.
func pruneLoop(s *store.Store, engine *indexer.Engine, keep uint64, log *logrus.Logger, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		if engine.Halted() {
			continue
		}
		pos, err := s.Checkpoint()
		if err != nil {
			log.WithError(err).Warn("journal prune skipped")
			continue
		}
		if uint64(pos.Block) <= keep {
			continue
		}
		if err := s.Prune(pos.Block - idx.Block(keep)); err != nil {
			log.WithError(err).Warn("journal prune failed")
		}
	}
}

func makeLogger(cfg LoggingConfig) (*logrus.Logger, error) {
	log := logrus.New()
	switch cfg.Format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{ForceColors: cfg.Color, FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	if cfg.Verbosity < 0 || cfg.Verbosity > 5 {
		return nil, fmt.Errorf("log verbosity %d out of range [0..5]", cfg.Verbosity)
	}
	// 0=fatal .. 5=trace maps onto logrus levels 1..6.
	log.SetLevel(logrus.Level(cfg.Verbosity + 1))

	if cfg.SentryDSN != "" {
		hook, err := logrus_sentry.NewSentryHook(cfg.SentryDSN, []logrus.Level{
			logrus.PanicLevel,
			logrus.FatalLevel,
			logrus.ErrorLevel,
		})
		if err != nil {
			return nil, fmt.Errorf("sentry hook: %w", err)
		}
		hook.Timeout = 3 * time.Second
		log.AddHook(hook)
	}
	return log, nil
}
