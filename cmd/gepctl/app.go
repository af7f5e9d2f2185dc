package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/named-data/ndn-cpp-sub006/internal/config"
	"github.com/named-data/ndn-cpp-sub006/internal/encryption"
	"github.com/named-data/ndn-cpp-sub006/internal/keychain"
	"github.com/named-data/ndn-cpp-sub006/internal/logging"
	"github.com/named-data/ndn-cpp-sub006/internal/metrics"
	"github.com/named-data/ndn-cpp-sub006/internal/ndn"
	"github.com/named-data/ndn-cpp-sub006/internal/persistence"
	"github.com/named-data/ndn-cpp-sub006/internal/persistence/redis"
	"github.com/named-data/ndn-cpp-sub006/internal/persistence/sqlite"
)

// app holds what every subcommand needs once the configuration is loaded.
type app struct {
	configPath string
	keyPath    string
	identity   string

	out    io.Writer
	errOut io.Writer

	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	recorder metrics.Recorder
	closers  []func() error
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Logger.Level, cfg.Logger.Format, a.errOut)
	if err != nil {
		return err
	}
	a.logger = logger.With("command", cmd.CommandPath())
	cmd.SetContext(logging.ContextWithLogger(cmd.Context(), a.logger))

	a.recorder = metrics.Noop()
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		a.recorder = metrics.New(a.registry)
	}
	return nil
}

func (a *app) teardown(_ *cobra.Command, _ []string) error {
	a.reportMetrics()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// reportMetrics logs every collected sample when metrics are enabled.
func (a *app) reportMetrics() {
	if a.registry == nil {
		return
	}
	families, err := a.registry.Gather()
	if err != nil {
		a.logger.Warn("failed to gather metrics", "error", err)
		return
	}
	for _, family := range families {
		for _, m := range family.GetMetric() {
			labels := make([]any, 0, 2*len(m.GetLabel()))
			for _, pair := range m.GetLabel() {
				labels = append(labels, pair.GetName(), pair.GetValue())
			}
			value := m.GetCounter().GetValue()
			if h := m.GetHistogram(); h != nil {
				value = float64(h.GetSampleCount())
			}
			a.logger.Info("metric", "name", family.GetName(), "value", value, slog.Group("labels", labels...))
		}
	}
}

func (a *app) openSQLite(ctx context.Context) (*sqlite.Store, error) {
	sqlCfg := sqlite.DefaultConfig(a.cfg.Storage.DSN)
	if a.cfg.Storage.BusyTimeout > 0 {
		sqlCfg.BusyTimeout = a.cfg.Storage.BusyTimeout
	}
	store, err := sqlite.Open(sqlCfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// groupDb opens the group manager store. Redis only holds content keys.
func (a *app) groupDb(ctx context.Context) (persistence.GroupManagerDb, error) {
	switch a.cfg.Storage.Driver {
	case config.DriverSQLite:
		return a.openSQLite(ctx)
	case config.DriverMemory:
		return persistence.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("storage driver %q cannot hold group manager state", a.cfg.Storage.Driver)
}

func (a *app) producerDb(ctx context.Context) (persistence.ProducerDb, error) {
	switch a.cfg.Storage.Driver {
	case config.DriverSQLite:
		return a.openSQLite(ctx)
	case config.DriverMemory:
		return persistence.NewMemoryStore(), nil
	case config.DriverRedis:
		store, err := redis.Dial(ctx, a.cfg.Storage.RedisAddr,
			redis.WithKeyPrefix(a.cfg.Storage.RedisKeyPrefix), redis.WithLogger(a.logger))
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", a.cfg.Storage.Driver)
}

// signer loads the signing key at keyPath, creating it on first use, and
// returns a key chain holding it with its certificate name.
func (a *app) signer(defaultIdentity string) (*keychain.KeyChain, ndn.Name, error) {
	identityURI := a.identity
	if identityURI == "" {
		identityURI = defaultIdentity
	}
	identity, err := ndn.ParseName(identityURI)
	if err != nil {
		return nil, nil, fmt.Errorf("identity: %w", err)
	}

	der, err := os.ReadFile(a.keyPath)
	if errors.Is(err, fs.ErrNotExist) {
		if der, err = encryption.GenerateRsaKey(a.cfg.Group.KeySize); err != nil {
			return nil, nil, err
		}
		if err = os.WriteFile(a.keyPath, der, 0o600); err != nil {
			return nil, nil, fmt.Errorf("write signing key: %w", err)
		}
		a.logger.Info("signing key created", "path", a.keyPath)
	} else if err != nil {
		return nil, nil, fmt.Errorf("read signing key: %w", err)
	}

	public, err := encryption.DeriveRsaPublicKey(der)
	if err != nil {
		return nil, nil, fmt.Errorf("signing key %s: %w", a.keyPath, err)
	}
	digest := sha256.Sum256(public)
	keyName := identity.AppendString("KEY", hex.EncodeToString(digest[:8]))

	kc := keychain.New(keychain.WithKeySize(a.cfg.Group.KeySize))
	cert, err := kc.ImportKey(keyName, der)
	if err != nil {
		return nil, nil, err
	}
	return kc, cert.Name, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writePackets stores each packet as <dir>/<index>.data and returns the
// file names.
func writePackets(dir string, packets []*ndn.Data) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	files := make([]string, 0, len(packets))
	for i, data := range packets {
		wire, err := data.Encode()
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", data.Name, err)
		}
		path := filepath.Join(dir, fmt.Sprintf("%03d.data", i))
		if err := os.WriteFile(path, wire, 0o644); err != nil {
			return nil, err
		}
		files = append(files, path)
	}
	return files, nil
}

// readPackets decodes every *.data file in dir.
func readPackets(dir string) ([]*ndn.Data, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.data"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	packets := make([]*ndn.Data, 0, len(paths))
	for _, path := range paths {
		data, err := readPacket(path)
		if err != nil {
			return nil, err
		}
		packets = append(packets, data)
	}
	return packets, nil
}

func readPacket(path string) (*ndn.Data, error) {
	wire, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data, err := ndn.DecodeData(wire)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return data, nil
}

func names(packets []*ndn.Data) []string {
	out := make([]string, 0, len(packets))
	for _, data := range packets {
		out = append(out, data.Name.String())
	}
	return out
}
