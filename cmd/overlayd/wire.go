package main

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"overlayd/internal/analyzer"
	"overlayd/internal/config"
	"overlayd/internal/httpapi"
	"overlayd/internal/manager"
	"overlayd/internal/overlay"
	"overlayd/internal/window"
)

var _ httpapi.Service = (*overlay.Overlay)(nil)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// managerConfig maps the resolved config onto the model manager.
func managerConfig(cfg config.Config, log zerolog.Logger) manager.ManagerConfig {
	mc := manager.ManagerConfig{
		ModelsDir:         cfg.ModelsDir,
		ModelID:           cfg.ModelID,
		ModelURL:          cfg.ModelURL,
		ModelSHA256:       cfg.ModelSHA256,
		ModelSizeBytes:    cfg.ModelSizeBytes,
		LoadAfterDownload: cfg.LoadAfterDownload,
		DrainTimeout:      ms(cfg.DrainTimeoutMS),
		Runtime:           cfg.Runtime,
		LlamaBin:          cfg.LlamaBin,
		LlamaPortStart:    cfg.LlamaPortStart,
		LlamaPortEnd:      cfg.LlamaPortEnd,
		LlamaThreads:      cfg.LlamaThreads,
		LlamaNGL:          cfg.LlamaNGL,
		LlamaExtraArgs:    cfg.LlamaExtraArgs,
		ServerURL:         cfg.ServerURL,
		ServerAPIKey:      cfg.ServerAPIKey,
		Params: manager.InferParams{
			MaxTokens:   cfg.MaxTokens,
			Temperature: float32(cfg.Temperature),
		},
		Logger: log,
	}
	if pm, err := manager.NewProcMemory(""); err == nil {
		mc.Memory = pm
	} else {
		log.Warn().Str("event", "procfs_unavailable").Err(err).Msg("host memory unknown; using the smallest tier")
	}
	return mc
}

// overlayConfig assembles the pipeline from the resolved config.
func overlayConfig(cfg config.Config, desk window.Desktop, desktopName string, reg prometheus.Registerer, log zerolog.Logger) (overlay.Config, error) {
	disabled, err := parseFeatures(cfg.DisabledFeatures)
	if err != nil {
		return overlay.Config{}, err
	}
	oc := overlay.Config{
		Desktop:          desk,
		DesktopName:      desktopName,
		ProbeTimeout:     ms(cfg.ProbeTimeoutMS),
		DisabledFeatures: disabled,
		Manager:          managerConfig(cfg, log),
		Registerer:       reg,
		Logger:           log,
	}
	if cfg.DebounceMS != nil {
		oc.Debounce = ms(*cfg.DebounceMS)
	}
	return oc, nil
}

func parseFeatures(names []string) ([]analyzer.Feature, error) {
	var out []analyzer.Feature
next:
	for _, n := range names {
		for _, f := range analyzer.AllFeatures {
			if string(f) == n {
				out = append(out, f)
				continue next
			}
		}
		return nil, fmt.Errorf("unknown feature %q", n)
	}
	return out, nil
}
