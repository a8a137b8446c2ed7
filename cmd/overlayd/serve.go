package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"overlayd/internal/common/fsutil"
	"overlayd/internal/httpapi"
	"overlayd/internal/overlay"
	"overlayd/internal/window"
)

const shutdownTimeout = 5 * time.Second

type serveFlags struct {
	addr            string
	modelsDir       string
	modelID         string
	modelURL        string
	runtime         string
	llamaBin        string
	serverURL       string
	monitor         bool
	autoLoad        bool
	disableFeatures string
	corsOrigins     string
}

func newServeCmd(opts *options) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline and its HTTP API",
		Example: "  overlayd serve --monitor\n" +
			"  overlayd serve --runtime server --server-url http://127.0.0.1:8080 --auto-load",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.apply(cmd, opts)
			return runServe(cmd.Context(), opts)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.addr, "addr", "", "HTTP listen address (defaults OVERLAYD_ADDR or 127.0.0.1:7777)")
	fl.StringVar(&f.modelsDir, "models-dir", "", "Directory holding *.gguf model files")
	fl.StringVar(&f.modelID, "model-id", "", "Model file name inside the models dir")
	fl.StringVar(&f.modelURL, "model-url", "", "URL the model is downloaded from")
	fl.StringVar(&f.runtime, "runtime", "", "Inference runtime: spawn|server|llama")
	fl.StringVar(&f.llamaBin, "llama-bin", "", "llama-server binary for the spawn runtime")
	fl.StringVar(&f.serverURL, "server-url", "", "OpenAI-compatible server for the server runtime")
	fl.BoolVar(&f.monitor, "monitor", false, "Start selection monitoring immediately")
	fl.BoolVar(&f.autoLoad, "auto-load", false, "Load the model at startup when installed")
	fl.StringVar(&f.disableFeatures, "disable-features", "", "Comma separated features to turn off")
	fl.StringVar(&f.corsOrigins, "cors-origins", "", "Comma separated origins allowed by CORS (empty disables CORS)")
	return cmd
}

// apply copies explicitly set flags over the file and environment values.
func (f *serveFlags) apply(cmd *cobra.Command, opts *options) {
	c := &opts.cfg
	set := cmd.Flags().Changed
	if set("addr") {
		c.Addr = f.addr
	}
	if set("models-dir") {
		c.ModelsDir = f.modelsDir
	}
	if set("model-id") {
		c.ModelID = f.modelID
	}
	if set("model-url") {
		c.ModelURL = f.modelURL
	}
	if set("runtime") {
		c.Runtime = f.runtime
	}
	if set("llama-bin") {
		c.LlamaBin = f.llamaBin
	}
	if set("server-url") {
		c.ServerURL = f.serverURL
	}
	if set("monitor") {
		c.MonitorOnStart = f.monitor
	}
	if set("auto-load") {
		c.AutoLoad = f.autoLoad
	}
	if set("disable-features") {
		c.DisabledFeatures = splitCSV(f.disableFeatures)
	}
	if set("cors-origins") {
		c.CORSOrigins = splitCSV(f.corsOrigins)
	}
}

func runServe(ctx context.Context, opts *options) error {
	cfg := opts.cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := newLogger(cfg.LogLevel, os.Stderr)

	dir, err := fsutil.EnsureDir(cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("models dir: %w", err)
	}
	cfg.ModelsDir = dir

	desk, desktopName := window.Detect()
	if desktopName == "null" {
		log.Warn().Str("event", "no_desktop").Msg("no supported desktop found; monitoring will not observe selections")
	}
	oc, err := overlayConfig(cfg, desk, desktopName, prometheus.DefaultRegisterer, log)
	if err != nil {
		return err
	}
	ov := overlay.New(oc)
	defer func() {
		if err := ov.Close(); err != nil {
			log.Warn().Err(err).Msg("close pipeline")
		}
	}()

	if cfg.AutoLoad && ov.ModelStatus().Installed {
		if _, err := ov.RequestModelLoad(); err != nil {
			log.Warn().Err(err).Msg("auto load")
		}
	}
	if cfg.MonitorOnStart {
		ov.EnableMonitoring()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	httpapi.SetLogger(log)
	httpapi.SetDefaultLogLevel(cfg.LogLevel)
	httpapi.SetCORSOptions(len(cfg.CORSOrigins) > 0, cfg.CORSOrigins, nil, nil)
	httpapi.SetBaseContext(gctx)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(ov),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info().
			Str("addr", cfg.Addr).
			Str("models_dir", cfg.ModelsDir).
			Str("model", cfg.ModelID).
			Str("runtime", cfg.Runtime).
			Str("desktop", desktopName).
			Str("tier", string(ov.ModelStatus().Tier)).
			Msg("overlayd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("overlayd stopped")
	return err
}
