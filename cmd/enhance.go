package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var enhanceBatchSize int

var enhanceCmd = &cobra.Command{
	Use:   "enhance",
	Short: "Run one AI enhancement batch over unverified resources",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initServices(cmd.Context(), "enhance")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Enhance.RunBatch(cmd.Context(), enhanceBatchSize)
		if err != nil {
			return err
		}

		zap.L().Info("batch finished",
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
			zap.Int("promoted", result.Promoted))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	enhanceCmd.Flags().IntVar(&enhanceBatchSize, "batch", 0, "batch size (default from config)")
	rootCmd.AddCommand(enhanceCmd)
}
