package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/blob"
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/service"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RequestOptions

	BlobRoot   string
	S3         blob.S3Config
	RedisURL   string
	RedisTopic string
	Metrics    bool

	// RequestIDs overrides the request id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RequestIDs engine.RequestIDGenerator
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return newDeleteCommand(&DeleteOptions{RequestOptions: &RequestOptions{RootOptions: rootOpts}})
}

func newDeleteCommand(opts *DeleteOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [<type> <id>]",
		Short: "Delete an object and everything it owns",
		Long: `Delete a root object and every row its spec reaches, in one
transaction.

Constraint failures below a SOFT entry are rolled back to that entry and
reported as warnings; any other failure rolls the whole request back.
After commit, events are logged (and published to Redis with
--redis-addr) and binary files of deleted rows are removed from
--blob-root or --s3-bucket.

Example:
  cascade delete --db ./omero.db --user 1 --group 1 Image 42
  cascade delete --db ./omero.db --request req.yaml --format json
  cascade delete --pg-dsn postgres://localhost/omero --admin --option /Image/ImageAnnotationLink/Annotation=HARD Plate 7`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(opts, args, cmd)
		},
	}

	addRequestFlags(cmd, opts.RequestOptions)
	f := cmd.Flags()
	f.StringVar(&opts.BlobRoot, "blob-root", "", "directory holding binary files of deleted rows")
	f.StringVar(&opts.S3.Bucket, "s3-bucket", "", "S3 bucket holding binary files of deleted rows")
	f.StringVar(&opts.S3.Prefix, "s3-prefix", "", "key prefix inside the S3 bucket")
	f.StringVar(&opts.S3.Region, "s3-region", "", "S3 region")
	f.StringVar(&opts.S3.Endpoint, "s3-endpoint", "", "S3-compatible endpoint URL")
	f.BoolVar(&opts.S3.PathStyle, "s3-path-style", false, "use path-style S3 addressing")
	f.StringVar(&opts.RedisURL, "redis-addr", "", "Redis URL to publish delete events to")
	f.StringVar(&opts.RedisTopic, "redis-channel", service.DefaultRedisChannel, "Redis channel for delete events")
	f.BoolVar(&opts.Metrics, "metrics", false, "print engine metrics after the request")

	return cmd
}

func runDelete(opts *DeleteOptions, args []string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(formatter.GetErrWriter(), opts.Verbose)

	if opts.BlobRoot != "" && opts.S3.Bucket != "" {
		return NewExitError(ExitCommandError, "use either --blob-root or --s3-bucket")
	}

	principal, req, err := opts.buildRequest(args)
	if err != nil {
		_ = formatter.Error(ErrCodeRequest, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid request", err)
	}

	reg, err := LoadRegistry(opts.Specs)
	if err != nil {
		return outputCompileError(formatter, err)
	}

	db, closeDB, err := opts.openDatabase(ctx)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer closeDB()

	metricsReg := prometheus.NewRegistry()
	engineOpts := []engine.EngineOption{
		engine.WithLogger(logger),
		engine.WithMetrics(engine.NewMetrics(metricsReg)),
	}
	if opts.RequestIDs != nil {
		engineOpts = append(engineOpts, engine.WithRequestIDs(opts.RequestIDs))
	}
	eng := engine.New(reg, engineOpts...)

	sink := service.MultiSink{service.LogSink{Logger: logger}}
	if opts.RedisURL != "" {
		client, err := service.DialRedis(ctx, opts.RedisURL)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to connect to redis", err)
		}
		defer client.Close()
		sink = append(sink, service.NewRedisSink(client, opts.RedisTopic))
	}

	svcOpts := []service.Option{service.WithEventSink(sink), service.WithLogger(logger)}
	switch {
	case opts.BlobRoot != "":
		svcOpts = append(svcOpts, service.WithCleaner(blob.NewLocalCleaner(opts.BlobRoot, reg.Model())))
	case opts.S3.Bucket != "":
		client, err := blob.NewS3Client(ctx, opts.S3)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to configure S3", err)
		}
		svcOpts = append(svcOpts, service.WithCleaner(blob.NewS3Cleaner(client, opts.S3.Bucket, opts.S3.Prefix, reg.Model())))
	}
	svc := service.New(db, eng, svcOpts...)

	formatter.VerboseLog("Deleting %s %d as user %d", req.Type, req.ID, principal.UserID)
	report, err := svc.Delete(ctx, principal, req)
	if opts.Metrics {
		logMetrics(logger, metricsReg)
	}
	if err != nil {
		return requestError(formatter, err)
	}
	return outputReport(formatter, report)
}

// outputReport prints a committed request.
func outputReport(formatter *OutputFormatter, report *ir.Report) error {
	if formatter.Format == "json" {
		return formatter.SuccessFor(report.RequestID, report)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Deleted %s %d (request %s)\n", report.Type, report.ID, report.RequestID)
	fmt.Fprintf(w, "  steps: %d, found: %d, deleted: %d, warnings: %d\n",
		report.Summary.Steps, report.Summary.Found, report.Summary.Deleted, report.Summary.Warnings)
	for _, table := range sortedTables(report.Deleted) {
		fmt.Fprintf(w, "  %s: %s\n", table, joinIDs(report.Deleted[table]))
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "  ! %s\n", warning)
	}
	return nil
}

// logMetrics writes every collected sample at info level.
func logMetrics(logger *slog.Logger, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		logger.Warn("gathering metrics", "error", err)
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			value := m.GetCounter().GetValue()
			if h := m.GetHistogram(); h != nil {
				value = h.GetSampleSum()
			}
			logger.Info("metric", "name", mf.GetName(), "labels", strings.Join(labels, ","), "value", value)
		}
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ", ")
}
