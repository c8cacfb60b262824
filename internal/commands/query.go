package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/plume/internal/export"
	"github.com/five82/plume/internal/query"
	"github.com/five82/plume/internal/rows"
)

type queryOptions struct {
	filter string
	since  time.Duration
	start  string
	end    string
	limit  int
	output string
}

func newQueryCmd(root *rootOptions) *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "query <dataset>",
		Short: "Run one query and print the normalized rows",
		Long: `Run one query against a dataset and print the rows.

A filter containing =, <, > or a standalone AND/OR is sent as a SQL
predicate verbatim; anything else is a case-insensitive search of the
message body. Without a time flag the last 30 minutes are queried.

Output defaults to a table on a terminal and JSON otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := resolveFormat(opts.output, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			rng, err := resolveRange(opts.since, opts.start, opts.end, time.Now())
			if err != nil {
				return err
			}

			env, err := root.bootstrap(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			limit := env.Config.QueryLimit
			if cmd.Flags().Changed("limit") {
				limit = opts.limit
			}
			spec, err := query.Compile(query.Request{
				Dataset: args[0],
				Filter:  opts.filter,
				Range:   rng,
				Limit:   limit,
			})
			if err != nil {
				return err
			}
			env.Logger.Debug().Str("sql", spec.Query).Msg("running query")

			started := time.Now()
			records, err := env.Client.RunQuery(cmd.Context(), spec)
			if err != nil {
				return err
			}
			table := rows.Normalize(records)
			env.Logger.Debug().
				Int("rows", table.Len()).
				Dur("took", time.Since(started)).
				Msg("query finished")

			out := cmd.OutOrStdout()
			switch format {
			case formatCSV:
				return rows.WriteCSV(out, table)
			case formatJSON:
				return rows.WriteJSON(out, table)
			default:
				if table.Len() == 0 {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "no rows")
					return nil
				}
				return renderTable(out, table)
			}
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.filter, "filter", "f", "", "Text search or SQL predicate")
	f.DurationVar(&opts.since, "since", 0, "Query the window ending now (e.g. 5m, 2h)")
	f.StringVar(&opts.start, "start", "", "Range start (RFC 3339)")
	f.StringVar(&opts.end, "end", "", "Range end (RFC 3339, default now)")
	f.IntVarP(&opts.limit, "limit", "n", 0, "Maximum rows (0 = unlimited; default from config)")
	f.StringVarP(&opts.output, "output", "o", "", "Output format (table, json, csv)")
	return cmd
}

var errRangeFlags = errors.New("--since cannot be combined with --start or --end")

// resolveRange turns the time flags into a range ending no later than now.
func resolveRange(since time.Duration, start, end string, now time.Time) (query.TimeRange, error) {
	if since < 0 {
		return query.TimeRange{}, fmt.Errorf("--since must be positive, got %s", since)
	}
	if since > 0 {
		if start != "" || end != "" {
			return query.TimeRange{}, errRangeFlags
		}
		return query.Last(now, since), nil
	}

	var rng query.TimeRange
	if start != "" {
		t, err := query.ParseTime(start)
		if err != nil {
			return query.TimeRange{}, fmt.Errorf("--start: %w", err)
		}
		rng.Start = t
	}
	if end != "" {
		t, err := query.ParseTime(end)
		if err != nil {
			return query.TimeRange{}, fmt.Errorf("--end: %w", err)
		}
		rng.End = t
	}
	rng = rng.OrDefault(now)
	return rng, rng.Validate()
}

func newExportCmd(root *rootOptions) *cobra.Command {
	var (
		filter, out, start, end string
		since                   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "export <dataset>",
		Short: "Download a dataset as CSV through the backend",
		Long: `Download a dataset as CSV through the backend's export endpoint.

Without --since, --start or --end every row matching the filter is exported.
The file is written atomically. A .gz or .zst suffix compresses it.
The default file name is <dataset>-logs.csv in the current directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rng query.TimeRange
			if since != 0 || start != "" || end != "" {
				r, err := resolveRange(since, start, end, time.Now())
				if err != nil {
					return err
				}
				rng = r
			}

			env, err := root.bootstrap(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			path := out
			if path == "" {
				path = export.DefaultFileName(args[0])
			}

			body, err := env.Client.ExportCSV(cmd.Context(), args[0], filter, rng)
			if err != nil {
				return err
			}
			defer func() { _ = body.Close() }()

			n, err := export.WriteStream(cmd.Context(), path, body)
			if err != nil {
				return err
			}
			env.Logger.Info().Str("dataset", args[0]).Str("path", path).Int64("bytes", n).Msg("export written")
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes, %s)\n", path, n, export.CompressionFor(path))
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Text search or SQL predicate")
	cmd.Flags().StringVar(&out, "out", "", "Output file (default <dataset>-logs.csv)")
	cmd.Flags().DurationVar(&since, "since", 0, "Export the last duration (e.g. 15m)")
	cmd.Flags().StringVar(&start, "start", "", "Range start (RFC 3339)")
	cmd.Flags().StringVar(&end, "end", "", "Range end (RFC 3339, default now)")
	return cmd
}
