package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/refmesh/internal/engine"
	"github.com/roach88/refmesh/internal/mailbox"
	"github.com/roach88/refmesh/internal/store"
)

// StoreOptions holds the database flag shared by commands that use it.
type StoreOptions struct {
	*RootOptions
	Database string
}

func (o *StoreOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
}

// openStore opens the database, reporting failures as command errors.
func (o *StoreOptions) openStore() (*store.Store, error) {
	slog.Debug("opening database", "path", o.Database)
	st, err := store.Open(o.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// SessionOptions holds flags for commands that run a replication session.
type SessionOptions struct {
	StoreOptions
	Origin         string // local origin alias
	API            string // local network endpoint
	IdentityPrefix string

	// IDs overrides the conflict ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs engine.IDGenerator
}

func (o *SessionOptions) addFlags(cmd *cobra.Command) {
	o.StoreOptions.addFlags(cmd)
	cmd.Flags().StringVar(&o.Origin, "origin", "", "local origin alias")
	cmd.Flags().StringVar(&o.API, "api", "", "local instance endpoint, used to detect links back to us")
	cmd.Flags().StringVar(&o.IdentityPrefix, "identity-prefix", mailbox.DefaultIdentityPrefix, "identity tag prefix")
}

// openSession opens the store and loads a session from the origin links
// it holds. The caller closes the store.
func (o *SessionOptions) openSession(ctx context.Context) (*store.Store, *engine.Session, error) {
	st, err := o.openStore()
	if err != nil {
		return nil, nil, err
	}

	ids := o.IDs
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}
	session := engine.NewSession(st, st, o.Origin, o.API,
		engine.WithIDGenerator(ids),
		engine.WithIdentityPrefix(o.IdentityPrefix),
	)
	if _, err := session.Reload(ctx); err != nil {
		closeStore(st)
		return nil, nil, WrapExitError(ExitCommandError, "failed to load origin links", err)
	}
	return st, session, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM, or when
// the command's own context ends.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(commandContext(cmd))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
