package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/treestore/pkg/config"
	"github.com/Sumatoshi-tech/treestore/pkg/forest"
	"github.com/Sumatoshi-tech/treestore/pkg/forest/serialize"
	"github.com/Sumatoshi-tech/treestore/pkg/observability"
	"github.com/Sumatoshi-tech/treestore/pkg/version"
)

// stdinPath reads a forest from standard input.
const stdinPath = "-"

// app is the configuration and telemetry shared by one command run.
type app struct {
	cfg       *config.Config
	providers observability.Providers
	metrics   *observability.StoreMetrics
	maxImport int64
}

// setup loads configuration, applies flag overrides and starts telemetry for
// mode. Callers must call close.
func setup(flags *globalFlags, mode observability.AppMode) (*app, error) {
	if flags.noColor {
		color.NoColor = true //nolint:reassign // intentional override of library global
	}

	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}

	level, err := cfg.Logging.SlogLevel()
	if err != nil {
		return nil, err
	}

	maxImport, err := cfg.Import.MaxBytes()
	if err != nil {
		return nil, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Environment = cfg.Observability.Environment
	obsCfg.Mode = mode
	obsCfg.OTLPEndpoint = cfg.Observability.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Observability.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Observability.OTLPInsecure
	obsCfg.SampleRatio = cfg.Observability.SampleRatio
	obsCfg.Prometheus = cfg.Observability.Prometheus && mode == observability.ModeServe
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Logging.JSON()

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	metrics, err := observability.NewStoreMetrics(providers.Meter)
	if err != nil {
		return nil, errors.Join(err, providers.Shutdown(context.Background()))
	}

	return &app{cfg: cfg, providers: providers, metrics: metrics, maxImport: maxImport}, nil
}

func (a *app) close() {
	err := a.providers.Shutdown(context.Background())
	if err != nil {
		a.providers.Logger.Warn("telemetry shutdown failed", "error", err)
	}
}

// storeOptions maps configuration onto forest options.
func (a *app) storeOptions() forest.Options {
	return forest.Options{
		DisplayField: a.cfg.Tree.DisplayField,
		PageSize:     a.cfg.Tree.PageSize,
		MultiSelect:  a.cfg.Tree.MultiSelect,
		Cascade:      a.cfg.Tree.Cascade,
		Logger:       a.providers.Logger,
		Metrics:      a.metrics,
	}
}

// openForest builds a store from path. An empty path gives an empty forest.
func (a *app) openForest(path, formatName string) (*forest.Store, error) {
	store, err := forest.New(nil, a.storeOptions())
	if err != nil {
		return nil, err
	}

	if path == "" {
		return store, nil
	}

	data, err := readForestFile(path, formatName, a.maxImport)
	if err != nil {
		return nil, err
	}

	err = store.Import(data)
	if err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}

	return store, nil
}

// readForestFile reads, decompresses and decodes a forest document. The
// format comes from formatName or, when empty, from the file extension.
func readForestFile(path, formatName string, limit int64) (any, error) {
	raw, err := readLimited(path, limit)
	if err != nil {
		return nil, err
	}

	if serialize.IsCompressed(raw) {
		raw, err = serialize.Decompress(raw, limit)
		if err != nil {
			return nil, fmt.Errorf("decompress %s: %w", path, err)
		}
	}

	if formatName == "" {
		formatName = string(serialize.FormatFromPath(path))
	}

	format, err := serialize.ParseFormat(formatName)
	if err != nil {
		return nil, err
	}

	data, err := serialize.Decode(bytes.NewReader(raw), format)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	return data, nil
}

func readLimited(path string, limit int64) ([]byte, error) {
	if path == stdinPath {
		return serialize.ReadLimited(os.Stdin, limit)
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	defer file.Close()

	raw, err := serialize.ReadLimited(file, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return raw, nil
}

// writeOutput writes data to path, or to w when path is empty.
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := w.Write(data)
		if err != nil {
			return fmt.Errorf("write output: %w", err)
		}

		return nil
	}

	err := os.WriteFile(filepath.Clean(path), data, 0o600)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}
