// Command signerd loads configuration, opens durable storage, and
// constructs a validating signer node. It does not expose any network
// service: the gRPC/wire transport that would drive a remote node is out of
// scope for this repository.
package main

import (
	"fmt"
	"os"

	"github.com/lightningnetwork/validating-signer/config"
	vslog "github.com/lightningnetwork/validating-signer/log"
	"github.com/lightningnetwork/validating-signer/persist"
	"github.com/lightningnetwork/validating-signer/policy"
	"github.com/lightningnetwork/validating-signer/signer"
	"github.com/lightningnetwork/validating-signer/txbuilder"
)

var signerdLog = vslog.NewSubLoggerRegistered("SGNR")

func init() {
	signer.UseLogger(signerdLog)
	policy.UseLogger(vslog.NewSubLoggerRegistered("PLCY"))
	txbuilder.UseLogger(vslog.NewSubLoggerRegistered("TXBL"))
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "signerd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	vslog.SetLevels(cfg.LogLevel)

	store, err := persist.OpenBboltPersister(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening persister: %w", err)
	}
	defer store.Close()

	node, err := signer.NewNode(cfg.ChainParams, store)
	if err != nil {
		return fmt.Errorf("constructing node: %w", err)
	}

	signerdLog.Infof("signer node ready, id=%x", node.ID())

	return nil
}
