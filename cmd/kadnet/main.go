// Command kadnet runs a single Kademlia node: bind an RPC listener,
// optionally join an existing network through a bootstrap peer, optionally
// expose a read-only HTTP status endpoint, and optionally drop into an
// interactive REPL.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/amoilanen/kadnet/kademlia"
)

// Exit codes per SPEC_FULL.md §4.10.
const (
	exitOK            = 0
	exitBindFailure   = 1
	exitConfigInvalid = 2
)

// configError marks a failure in parsing or validating startup
// configuration, as distinct from a runtime failure such as a bind
// error. main uses this distinction to choose the process exit code.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func main() {
	err := newRootCmd().Execute()
	var cfgErr *configError
	switch {
	case err == nil:
		os.Exit(exitOK)
	case errors.As(err, &cfgErr):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitConfigInvalid)
	default:
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitBindFailure)
	}
}

type flags struct {
	listen        string
	bootstrap     string
	id            string
	k             int
	alpha         int
	ttl           time.Duration
	rpcTimeout    time.Duration
	lookupTimeout time.Duration
	statusAddr    string
	logLevel      string
	repl          bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "kadnet",
		Short: "Run a Kademlia DHT node",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.listen, "listen", "127.0.0.1:9000", "address to bind the RPC listener on")
	fl.StringVar(&f.bootstrap, "bootstrap", "", "address of an existing node to join through")
	fl.StringVar(&f.id, "id", "", "64-hex node id (random if unset)")
	fl.IntVar(&f.k, "k", kademlia.DefaultConfig().K, "bucket size / replication factor")
	fl.IntVar(&f.alpha, "alpha", kademlia.DefaultConfig().Alpha, "lookup parallelism")
	fl.DurationVar(&f.ttl, "ttl", kademlia.DefaultConfig().DefaultTTL, "default value TTL")
	fl.DurationVar(&f.rpcTimeout, "rpc-timeout", kademlia.DefaultConfig().RPCTimeout, "single RPC timeout")
	fl.DurationVar(&f.lookupTimeout, "lookup-timeout", kademlia.DefaultConfig().LookupTimeout, "iterative lookup timeout")
	fl.StringVar(&f.statusAddr, "status-addr", "", "address to bind the HTTP status endpoint on (disabled if unset)")
	fl.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fl.BoolVar(&f.repl, "repl", false, "run an interactive command REPL on stdin/stdout")

	return cmd
}

func run(f *flags) error {
	level, err := logrus.ParseLevel(f.logLevel)
	if err != nil {
		return &configError{fmt.Errorf("invalid --log-level: %w", err)}
	}
	logger := logrus.New()
	logger.SetLevel(level)
	log := logrus.NewEntry(logger)

	id, err := nodeID(f.id)
	if err != nil {
		return &configError{err}
	}

	self := kademlia.NewContact(id, f.listen)
	cfg := kademlia.DefaultConfig()
	cfg.K = f.k
	cfg.Alpha = f.alpha
	cfg.DefaultTTL = f.ttl
	cfg.RPCTimeout = f.rpcTimeout
	cfg.LookupTimeout = f.lookupTimeout

	node := kademlia.NewNode(self, cfg, log)
	// A listener bind failure is a runtime condition, not a configuration
	// error: the flags themselves were well-formed, the address just
	// couldn't be bound (already in use, no permission, etc.).
	if err := node.Listen(f.listen); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer node.Close()

	log.WithField("addr", f.listen).Info("node listening")

	if f.bootstrap != "" {
		if err := node.Bootstrap(f.bootstrap); err != nil {
			log.WithError(err).Warn("bootstrap failed")
		}
	}

	var status *kademlia.StatusServer
	if f.statusAddr != "" {
		status = kademlia.NewStatusServer(node)
		go func() {
			if err := status.Serve(f.statusAddr); err != nil {
				log.WithError(err).Warn("status server stopped")
			}
		}()
		defer status.Close()
		log.WithField("addr", f.statusAddr).Info("status endpoint listening")
	}

	if f.repl {
		cli := kademlia.NewCLI(node, os.Stdin, os.Stdout, func() {})
		return cli.Run()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Info("received shutdown signal, closing down")
	return nil
}

func nodeID(hexID string) (kademlia.ID, error) {
	if hexID == "" {
		return kademlia.RandomID(), nil
	}
	id, err := kademlia.IDFromHex(hexID)
	if err != nil {
		return kademlia.ID{}, fmt.Errorf("invalid --id: %w", err)
	}
	return id, nil
}
