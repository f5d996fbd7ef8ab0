package flags

import (
	"gopkg.in/urfave/cli.v1"
)

// CommonFlags returns the base set of CLI flags shared across commands.

func CommonFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "datadir",
			Usage: "Data directory for the humanity index database",
			Value: "~/.hindex",
		},
		cli.StringFlag{
			Name:  "node.url",
			Usage: "JSON-RPC endpoint of the ledger node used for read-back calls",
			Value: "http://127.0.0.1:8545",
		},
		cli.StringFlag{
			Name:  "contract",
			Usage: "Address of the humanity registry contract",
		},
		cli.StringFlag{
			Name:  "log.format",
			Usage: "Log output format (text|json)",
			Value: "text",
		},
		cli.IntFlag{
			Name:  "log.verbosity",
			Usage: "Logging verbosity (0=fatal,1=error,2=warn,3=info,4=debug,5=trace)",
			Value: 3,
		},
		cli.BoolFlag{
			Name:  "log.color",
			Usage: "Enable colored log output",
		},
		cli.StringFlag{
			Name:  "sentry.dsn",
			Usage: "Sentry DSN for error forwarding (disabled when empty)",
		},
		cli.BoolFlag{
			Name:  "http",
			Usage: "Enable the HTTP read API",
		},
		cli.StringFlag{
			Name:  "http.addr",
			Usage: "Read API listening interface",
			Value: "127.0.0.1",
		},
		cli.IntFlag{
			Name:  "http.port",
			Usage: "Read API listening port",
			Value: 18080,
		},
		cli.BoolFlag{
			Name:  "metrics",
			Usage: "Enable collection of Prometheus-compatible metrics",
		},
		cli.StringFlag{
			Name:  "metrics.addr",
			Usage: "Metrics server listening interface",
			Value: "127.0.0.1",
		},
		cli.IntFlag{
			Name:  "metrics.port",
			Usage: "Metrics server listening port",
			Value: 6060,
		},
		cli.IntFlag{
			Name:  "cache",
			Usage: "Megabytes of memory allocated to database caching",
			Value: 256,
		},
		cli.Uint64Flag{
			Name:  "journal.keep",
			Usage: "Number of recent blocks to keep reorg undo data for (0 = all)",
		},
	}
}
