package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var statsAuditLimit int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print trust statistics by verification status",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initServices(cmd.Context(), "store")
		if err != nil {
			return err
		}
		defer env.Close()

		stats, err := env.Admin.TrustStats(cmd.Context())
		if err != nil {
			return err
		}

		out := map[string]any{"stats": stats}
		if statsAuditLimit > 0 {
			entries, err := env.Admin.RecentAudit(cmd.Context(), statsAuditLimit)
			if err != nil {
				return err
			}
			out["recent_audit"] = entries
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsAuditLimit, "audit", 0, "include the N most recent audit entries")
	rootCmd.AddCommand(statsCmd)
}
