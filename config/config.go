// Package config defines the signerd process configuration, parsed from
// command-line flags with go-flags. No config file is read.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/chaincfg"
	flags "github.com/jessevdk/go-flags"
)

const (
	defaultDataDirname  = "data"
	defaultLogLevel     = "info"
	defaultListenAddr   = "localhost:10019"
	defaultNetwork      = "mainnet"
)

// Config is the full set of signerd startup parameters.
type Config struct {
	Network string `long:"network" description:"Bitcoin network to operate on" choice:"mainnet" choice:"testnet" choice:"regtest" choice:"signet"`

	DataDir string `long:"datadir" description:"Directory to store the node seed and channel database"`

	LogLevel string `long:"loglevel" description:"Logging level for all subsystems"`

	ListenAddr string `long:"listen" description:"host:port for a local control interface (parsed; signerd opens no listener)"`

	AllowlistFile string `long:"allowlistfile" description:"Path to a file of newline-separated justice-sweep destination addresses (parsed; signerd does not read the file)"`

	ChainParams *chaincfg.Params
}

// DefaultConfig returns a Config populated with defaults, before flag
// parsing is applied on top of it.
func DefaultConfig() *Config {
	return &Config{
		Network:    defaultNetwork,
		DataDir:    defaultDataDirname,
		LogLevel:   defaultLogLevel,
		ListenAddr: defaultListenAddr,
	}
}

// LoadConfig parses command-line arguments into a Config seeded with
// defaults, then validates and fills in derived fields (chain params,
// absolute data directory).
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}

	return validateConfig(cfg)
}

func validateConfig(cfg *Config) (*Config, error) {
	switch cfg.Network {
	case "mainnet":
		cfg.ChainParams = &chaincfg.MainNetParams
	case "testnet":
		cfg.ChainParams = &chaincfg.TestNet3Params
	case "regtest":
		cfg.ChainParams = &chaincfg.RegressionNetParams
	case "signet":
		cfg.ChainParams = &chaincfg.SigNetParams
	default:
		return nil, fmt.Errorf("config: unknown network %q", cfg.Network)
	}

	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolving data directory: %w", err)
	}
	cfg.DataDir = dataDir

	return cfg, nil
}
