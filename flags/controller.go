package flags

import (
	"time"

	"gopkg.in/urfave/cli.v1"
)

// ControllerFlags returns the chain_controller's own startup knobs: where
// genesis and the block/state stores live, and the replay/import overrides
// a devnet operator needs that a production validator never touches.
func ControllerFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "config",
			Usage: "Path to a config file overriding the built-in defaults",
		},
		cli.StringFlag{
			Name:  "genesis",
			Usage: "Path to the genesis JSON file (initial producer schedule, rules config, chain timestamp)",
		},
		cli.BoolFlag{
			Name:  "fakenet",
			Usage: "Start from a deterministic single-region fake genesis instead of loading --genesis",
		},
		cli.IntFlag{
			Name:  "fakenet.producers",
			Usage: "Number of deterministic producer slots for --fakenet",
			Value: 1,
		},
		cli.StringFlag{
			Name:  "store.backend",
			Usage: "State store backend (mem|bolt)",
			Value: "bolt",
		},
		cli.StringFlag{
			Name:  "blocklog.dir",
			Usage: "Directory for the irreversible block log (defaults to <datadir>/blocklog)",
		},
		cli.DurationFlag{
			Name:  "blocks.interval",
			Usage: "Override the genesis block production interval (devnets only)",
			Value: 500 * time.Millisecond,
		},
		cli.BoolFlag{
			Name:  "skip.signatures",
			Usage: "Skip transaction and block signature checks (replay/import/devnet only)",
		},
		cli.BoolFlag{
			Name:  "skip.tapos",
			Usage: "Skip TaPoS reference-block validation (replay/import only)",
		},
		cli.BoolFlag{
			Name:  "replay",
			Usage: "Replay the block log from genesis instead of resuming from the last committed state",
		},
		cli.StringFlag{
			Name:  "sentry.dsn",
			Usage: "Sentry DSN for error-level log forwarding (disabled if empty)",
		},
	}
}
