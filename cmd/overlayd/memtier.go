package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"overlayd/internal/manager"
)

type memtierReport struct {
	Tier           string `json:"tier"`
	AvailableBytes int64  `json:"available_bytes"`
	CeilingBytes   int64  `json:"ceiling_bytes"`
	ContextSize    int    `json:"context_size"`
	LlamaBuilt     bool   `json:"llama_built"`
	Error          string `json:"error,omitempty"`
}

func newMemtierCmd(_ *options) *cobra.Command {
	var procRoot string
	cmd := &cobra.Command{
		Use:   "memtier",
		Short: "Print the memory tier the model would be loaded under",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				h   manager.HostMemory
				rep memtierReport
			)
			if pm, err := manager.NewProcMemory(procRoot); err != nil {
				rep.Error = err.Error()
			} else {
				h = pm
			}
			b := manager.DetectBudget(h)
			rep.Tier = string(b.Tier)
			rep.AvailableBytes = b.AvailableBytes
			rep.CeilingBytes = b.CeilingBytes
			rep.ContextSize = b.ContextSize
			rep.LlamaBuilt = manager.LlamaBuilt()
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
	cmd.Flags().StringVar(&procRoot, "proc", "", "proc filesystem mount point (default /proc)")
	return cmd
}
