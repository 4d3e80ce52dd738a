package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parcelworks/siteatlas/internal/identifier"
)

var (
	reportType string
	reportOut  string
)

var reportCmd = &cobra.Command{
	Use:   "report <value>",
	Short: "Run every analysis for one identifier and print the composite report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if _, err := identifier.ParseDataType(reportType); err != nil {
			return err
		}

		svc, err := initService()
		if err != nil {
			return err
		}

		report, err := svc.Report(ctx, reportType, args[0])
		if err != nil {
			return err
		}

		out := os.Stdout
		if reportOut != "" {
			f, err := os.Create(reportOut)
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportType, "type", "LOT", "identifier data type")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "write the report to a file instead of stdout")
	rootCmd.AddCommand(reportCmd)
}
