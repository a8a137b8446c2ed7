package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"overlayd/internal/analyzer"
	"overlayd/internal/completion"
	"overlayd/internal/selection"
	"overlayd/internal/window"
)

// probeReport is one line of `overlayd probe` output.
type probeReport struct {
	Desktop   string   `json:"desktop"`
	App       string   `json:"app,omitempty"`
	Title     string   `json:"title,omitempty"`
	Extension string   `json:"extension,omitempty"`
	Selection string   `json:"selection,omitempty"`
	Strategy  string   `json:"strategy,omitempty"`
	Fallback  bool     `json:"fallback,omitempty"`
	Type      string   `json:"type"`
	Language  string   `json:"language,omitempty"`
	Features  []string `json:"features"`
	Label     string   `json:"label,omitempty"`
}

func newProbeCmd(opts *options) *cobra.Command {
	var (
		count    int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Print the foreground window, its selection and how it would be classified",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg.WithDefaults()
			log := newLogger(cfg.LogLevel, os.Stderr)
			desk, name := window.Detect()
			p := window.NewProbe(desk, ms(cfg.ProbeTimeoutMS), log)
			x := selection.NewExtractor(selection.DefaultStrategies(desk), 0, log)
			disabled, err := parseFeatures(cfg.DisabledFeatures)
			if err != nil {
				return err
			}
			an := analyzer.New(analyzer.Options{Disabled: disabled})

			enc := json.NewEncoder(cmd.OutOrStdout())
			for i := 0; i < count; i++ {
				if i > 0 {
					select {
					case <-cmd.Context().Done():
						return nil
					case <-time.After(interval):
					}
				}
				wc := p.Probe(cmd.Context())
				ex, _ := x.Extract(cmd.Context(), wc)
				if err := enc.Encode(report(name, wc, ex, an)); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 1, "Number of probes")
	cmd.Flags().DurationVar(&interval, "interval", 500*time.Millisecond, "Delay between probes")
	return cmd
}

func report(desktop string, wc window.Context, ex selection.Extraction, an *analyzer.Analyzer) probeReport {
	c := an.Analyze(ex.Text, wc)
	return probeReport{
		Desktop:   desktop,
		App:       wc.AppName,
		Title:     wc.Title,
		Extension: wc.FileExtension,
		Selection: ex.Text,
		Strategy:  ex.Strategy,
		Fallback:  ex.Fallback,
		Type:      c.Type.String(),
		Language:  c.Language,
		Features:  c.Features.List(),
		Label:     completion.Label(c),
	}
}
