package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/parcelworks/siteatlas/internal/fetcher"
	"github.com/parcelworks/siteatlas/internal/identifier"
)

var resolveType string

var resolveCmd = &cobra.Command{
	Use:   "resolve <value>",
	Short: "Resolve a cadastral identifier to a WGS84 coordinate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dt, err := identifier.ParseDataType(resolveType)
		if err != nil {
			return err
		}

		client := fetcher.New(fetcher.Options{
			UserAgent: cfg.Upstream.UserAgent,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSecs) * time.Second,
		})
		resolver := identifier.NewResolver(cfg.Upstream.GeodataBaseURL, client)

		loc, err := resolver.Resolve(cmd.Context(), dt, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"data_type": string(dt),
			"value":     args[0],
			"lon":       loc.Coordinate.Lon,
			"lat":       loc.Coordinate.Lat,
			"score":     loc.Score,
		})
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveType, "type", "LOT", "identifier data type (LOT, STT, GLA, LPP, UN, BUILDINGCSUID, LOTCSUID, PRN)")
	rootCmd.AddCommand(resolveCmd)
}
