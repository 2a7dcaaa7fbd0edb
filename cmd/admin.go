package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harvestmap/trust-cli/internal/model"
)

var (
	adminID     string
	adminIDs    string
	adminReason string
	adminKind   string
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Bulk moderation operations",
}

// splitIDs parses a comma-separated id list, dropping empty segments.
func splitIDs(raw string) []string {
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func runBulk(cmd *cobra.Command, action model.BulkAction) error {
	env, err := initServices(cmd.Context(), "enhance")
	if err != nil {
		return err
	}
	defer env.Close()

	outcome, err := env.Admin.Bulk(cmd.Context(), adminID, splitIDs(adminIDs), action, model.BulkParams{
		Reason: adminReason,
		Kind:   adminKind,
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(outcome)
}

func newBulkCmd(use, short string, action model.BulkAction) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBulk(cmd, action)
		},
	}
}

func init() {
	adminCmd.PersistentFlags().StringVar(&adminID, "admin", "", "acting admin user id")
	adminCmd.PersistentFlags().StringVar(&adminIDs, "ids", "", "comma-separated resource ids")
	adminCmd.PersistentFlags().StringVar(&adminReason, "reason", "", "audit reason")

	verifyCmd := newBulkCmd("verify", "Mark resources official with admin stamps", model.BulkVerify)
	rejectCmd := newBulkCmd("reject", "Reject resources", model.BulkReject)
	flagCmd := newBulkCmd("flag", "Flag resources for review", model.BulkFlag)
	flagCmd.Flags().StringVar(&adminKind, "kind", "", "flag kind: flagged or duplicate")
	enhanceBulkCmd := newBulkCmd("enhance", "Enhance resources with the full proposed field set", model.BulkEnhance)

	adminCmd.AddCommand(verifyCmd, rejectCmd, flagCmd, enhanceBulkCmd)
	rootCmd.AddCommand(adminCmd)
}
