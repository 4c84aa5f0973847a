package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/skytrace/logger"
	"github.com/teranos/skytrace/query"
	"github.com/teranos/skytrace/telemetry"
)

// QueryCmd runs one time range query and prints the records
var QueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run a one-shot time range query",
	Long: `Fetch the records whose timestamp falls in [start, end) and print them.
Timestamps are RFC3339 and keep millisecond precision.

Examples:
  skytrace query --start 2022-11-03T12:57:18.123Z --end 2022-11-03T12:57:20.123Z
  skytrace query --start 2022-11-03T12:00:00Z --end 2022-11-03T13:00:00Z --format yaml`,
	RunE: runQuery,
}

var (
	queryStart  string
	queryEnd    string
	queryFormat string
)

func init() {
	QueryCmd.Flags().StringVar(&queryStart, "start", "", "Inclusive range start (RFC3339)")
	QueryCmd.Flags().StringVar(&queryEnd, "end", "", "Exclusive range end (RFC3339)")
	QueryCmd.Flags().StringVarP(&queryFormat, "format", "f", FormatJSON, "Output format: json or yaml")
	_ = QueryCmd.MarkFlagRequired("start")
	_ = QueryCmd.MarkFlagRequired("end")
}

// queryResult is what the query command prints
type queryResult struct {
	Start   string             `json:"start" yaml:"start"`
	End     string             `json:"end" yaml:"end"`
	Count   int                `json:"count" yaml:"count"`
	Records []telemetry.Record `json:"records" yaml:"records"`
}

func runQuery(cmd *cobra.Command, args []string) error {
	// Reject bad input before dialing the store
	if _, err := telemetry.ParseTimeRange(queryStart, queryEnd); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.ComponentLogger("query")

	client, err := openStore(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	actor := query.New(client, cfg.Query, log)
	actor.Start()
	defer actor.Stop()

	ctx := cmd.Context()
	if timeout := cfg.Query.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	records, err := actor.Query(ctx, queryStart, queryEnd)
	if err != nil {
		return err
	}
	if logger.ShouldOutput(Verbosity(cmd, cfg), logger.OutputTiming) {
		log.Debugw("Query finished",
			logger.FieldCount, len(records),
			logger.FieldDurationMS, time.Since(started).Milliseconds(),
		)
	}

	return render(cmd.OutOrStdout(), queryFormat, queryResult{
		Start:   queryStart,
		End:     queryEnd,
		Count:   len(records),
		Records: records,
	})
}
