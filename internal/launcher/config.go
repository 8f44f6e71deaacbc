package launcher

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/urfave/cli.v1"

	"github.com/asset-chain/chain-controller/authority"
	"github.com/asset-chain/chain-controller/chaintypes"
	"github.com/asset-chain/chain-controller/inter/validatorpk"
	"github.com/asset-chain/chain-controller/rules"
)

// Config is the chain-controller command's startup configuration, derived
// from CLI flags. Unlike the full node it was adapted from, it carries no
// P2P, RPC, or transaction-pool settings: those are the out-of-scope
// external collaborators the controller only ever sees through §6-style
// interfaces (blocks and transactions in, traces and signals out).
type Config struct {
	DataDir string

	GenesisPath      string
	FakeNet          bool
	FakeNetProducers int

	StoreBackend  string
	BlockLogDir   string
	BlockInterval time.Duration

	SkipSignatures bool
	SkipTapos      bool
	Replay         bool

	LogFormat    string
	LogVerbosity int
	LogColor     bool
	SentryDSN    string

	MetricsEnabled   bool
	MetricsAddr      string
	MetricsPort      int
	MetricsNamespace string
}

// Defaults holds the values Config starts from before a config file or CLI
// flags override them, mirroring the node launcher's separate
// Defaults/DefaultConfig tree.
type Defaults struct {
	DataDir          string
	StoreBackend     string
	LogFormat        string
	LogVerbosity     int
	LogColor         bool
	MetricsAddr      string
	MetricsPort      int
	MetricsNamespace string
}

// DefaultConfig returns the baseline Defaults every Config is built from.
func DefaultConfig() Defaults {
	return Defaults{
		DataDir:          "~/.chaind",
		StoreBackend:     "bolt",
		LogFormat:        "text",
		LogVerbosity:     3,
		LogColor:         true,
		MetricsAddr:      "127.0.0.1",
		MetricsPort:      6060,
		MetricsNamespace: "chain_controller",
	}
}

// MakeAllConfigs merges Defaults, an optional --config file, and CLI flags
// into a Config, in that precedence order — the same layering
// launcher.MakeAllConfigs uses, minus the file decoding step, which is a
// stub here just as it is there (see loadConfigFile).
func MakeAllConfigs(ctx *cli.Context) (Config, error) {
	d := DefaultConfig()
	cfg := Config{
		DataDir:          d.DataDir,
		StoreBackend:     d.StoreBackend,
		LogFormat:        d.LogFormat,
		LogVerbosity:     d.LogVerbosity,
		LogColor:         d.LogColor,
		MetricsAddr:      d.MetricsAddr,
		MetricsPort:      d.MetricsPort,
		MetricsNamespace: d.MetricsNamespace,
	}

	if file := ctx.GlobalString("config"); file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return Config{}, fmt.Errorf("launcher: load config file %s: %w", file, err)
		}
	}

	applyCLIOverrides(ctx, &cfg)

	cfg.DataDir = resolvePath(cfg.DataDir)
	if err := ensureDir(cfg.DataDir); err != nil {
		return Config{}, err
	}
	if cfg.BlockLogDir == "" {
		cfg.BlockLogDir = filepath.Join(cfg.DataDir, "blocklog")
	} else {
		cfg.BlockLogDir = resolvePath(cfg.BlockLogDir)
	}
	cfg.GenesisPath = resolvePathIfSet(cfg.GenesisPath)
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	// TODO: decode TOML/JSON into cfg once a config-file format is chosen;
	// CLI flags are sufficient for every current deployment.
	return nil
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) {
	if ctx.GlobalIsSet("datadir") {
		cfg.DataDir = ctx.GlobalString("datadir")
	}
	if ctx.GlobalIsSet("genesis") {
		cfg.GenesisPath = ctx.GlobalString("genesis")
	}
	cfg.FakeNet = ctx.GlobalBool("fakenet")
	if ctx.GlobalIsSet("fakenet.producers") {
		cfg.FakeNetProducers = ctx.GlobalInt("fakenet.producers")
	} else if cfg.FakeNetProducers == 0 {
		cfg.FakeNetProducers = 1
	}
	if ctx.GlobalIsSet("store.backend") {
		cfg.StoreBackend = ctx.GlobalString("store.backend")
	}
	if ctx.GlobalIsSet("blocklog.dir") {
		cfg.BlockLogDir = ctx.GlobalString("blocklog.dir")
	}
	if ctx.GlobalIsSet("blocks.interval") {
		cfg.BlockInterval = ctx.GlobalDuration("blocks.interval")
	}

	cfg.SkipSignatures = ctx.GlobalBool("skip.signatures")
	cfg.SkipTapos = ctx.GlobalBool("skip.tapos")
	cfg.Replay = ctx.GlobalBool("replay")

	if ctx.GlobalIsSet("log.format") {
		cfg.LogFormat = ctx.GlobalString("log.format")
	}
	if ctx.GlobalIsSet("log.verbosity") {
		cfg.LogVerbosity = ctx.GlobalInt("log.verbosity")
	}
	if ctx.GlobalIsSet("log.color") {
		cfg.LogColor = ctx.GlobalBool("log.color")
	}
	if ctx.GlobalIsSet("sentry.dsn") {
		cfg.SentryDSN = ctx.GlobalString("sentry.dsn")
	}

	cfg.MetricsEnabled = ctx.GlobalBool("metrics")
	if ctx.GlobalIsSet("metrics.addr") {
		cfg.MetricsAddr = ctx.GlobalString("metrics.addr")
	}
	if ctx.GlobalIsSet("metrics.port") {
		cfg.MetricsPort = ctx.GlobalInt("metrics.port")
	}
	if ctx.GlobalIsSet("metrics.namespace") {
		cfg.MetricsNamespace = ctx.GlobalString("metrics.namespace")
	}
}

// genesisFile is the on-disk JSON shape of --genesis: the consensus Config,
// the initial producer schedule, the chain's start time, and the account
// permissions a StaticResolver needs to check transaction authorizations.
// Account keys are hex-encoded validatorpk.PubKey strings (a type byte
// followed by the raw key); producer signing keys are []byte, so
// encoding/json reads them as base64.
type genesisFile struct {
	Config    rules.Config             `json:"config"`
	Producers []chaintypes.ProducerKey `json:"producers"`
	Timestamp time.Time                `json:"timestamp"`
	Accounts  map[string][]string      `json:"accounts"` // "account@permission" -> hex pubkeys
}

// LoadGenesis reads and decodes a --genesis file into a rules.Genesis plus
// the authority.StaticResolver built from its accounts section.
func LoadGenesis(path string) (rules.Genesis, authority.StaticResolver, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return rules.Genesis{}, nil, fmt.Errorf("launcher: read genesis: %w", err)
	}
	var gf genesisFile
	if err := json.Unmarshal(raw, &gf); err != nil {
		return rules.Genesis{}, nil, fmt.Errorf("launcher: decode genesis: %w", err)
	}

	resolver := make(authority.StaticResolver, len(gf.Accounts))
	for permission, hexKeys := range gf.Accounts {
		pubs := make([]validatorpk.PubKey, 0, len(hexKeys))
		for _, hexKey := range hexKeys {
			pk, err := validatorpk.FromString(hexKey)
			if err != nil {
				return rules.Genesis{}, nil, fmt.Errorf("launcher: genesis account %q: %w", permission, err)
			}
			pubs = append(pubs, pk)
		}
		resolver[permission] = pubs
	}

	genesis := rules.Genesis{
		Config:           gf.Config,
		InitialProducers: chaintypes.ProducerSchedule{Version: 1, Producers: gf.Producers},
		Timestamp:        gf.Timestamp,
	}
	return genesis, resolver, nil
}

func resolvePathIfSet(p string) string {
	if p == "" {
		return ""
	}
	return resolvePath(p)
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("launcher: create datadir %s: %w", dir, err)
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
	return filepath.Join(GuessWorkDir(), p)
}

// GuessWorkDir returns the process's current working directory, or "." if
// it cannot be determined.
func GuessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

// GuessHomeDir returns the invoking user's home directory, or "." if it
// cannot be determined.
func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
