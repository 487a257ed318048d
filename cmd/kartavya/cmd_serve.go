package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/kartavya/internal/config"
	"github.com/crimson-sun/kartavya/internal/engine"
	"github.com/crimson-sun/kartavya/internal/engine/severity"
	"github.com/crimson-sun/kartavya/internal/engine/vision"
	"github.com/crimson-sun/kartavya/internal/geo"
	"github.com/crimson-sun/kartavya/internal/output"
	"github.com/crimson-sun/kartavya/internal/output/async"
	"github.com/crimson-sun/kartavya/internal/output/file"
	"github.com/crimson-sun/kartavya/internal/output/inbox"
	"github.com/crimson-sun/kartavya/internal/output/multi"
	"github.com/crimson-sun/kartavya/internal/output/stdout"
	"github.com/crimson-sun/kartavya/internal/output/webhook"
	"github.com/crimson-sun/kartavya/internal/photo"
	photofs "github.com/crimson-sun/kartavya/internal/photo/fs"
	photos3 "github.com/crimson-sun/kartavya/internal/photo/s3"
	"github.com/crimson-sun/kartavya/internal/pipeline"
	"github.com/crimson-sun/kartavya/internal/server"
	"github.com/crimson-sun/kartavya/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the report API server",
	Long: `Serve the report API. Configuration comes from KARTAVYA_CONFIG (YAML)
and KARTAVYA_* environment variables; flags override both.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides KARTAVYA_ADDR)")
	serveCmd.Flags().String("db-driver", "", "store driver: sqlite or postgres (overrides KARTAVYA_DB_DRIVER)")
	serveCmd.Flags().String("db-dsn", "", "store DSN (overrides KARTAVYA_DB_DSN)")
	serveCmd.Flags().String("model", "", "ONNX model path, empty string disables analysis (overrides KARTAVYA_MODEL_PATH)")
	serveCmd.Flags().StringSlice("output", nil, "event sinks: stdout, file, webhook (overrides KARTAVYA_OUTPUT)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyServeFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config:\n%w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(loadModel(cfg.Vision), severity.New())
	defer eng.Close()

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer st.Close()

	photos, photoDir, err := openPhotoStore(ctx, cfg.Photos)
	if err != nil {
		return err
	}

	notes := inbox.New()
	out, err := buildOutput(cfg.Output, notes)
	if err != nil {
		return err
	}

	popts := []pipeline.Option{
		pipeline.WithPhotoStore(photos),
		pipeline.WithMaxPhotoSize(cfg.Server.MaxUploadBytes),
	}
	if cfg.Geocoder.Enabled {
		popts = append(popts, pipeline.WithGeocoder(geo.New(cfg.Geocoder.Endpoint, cfg.Geocoder.UserAgent, cfg.Geocoder.Timeout)))
	}
	p := pipeline.New(st, eng, out, popts...)
	defer p.Close()

	sopts := []server.Option{
		server.WithNotifications(notes),
		server.WithMaxUpload(cfg.Server.MaxUploadBytes),
	}
	if photoDir != "" {
		sopts = append(sopts, server.WithPhotoDir(photoDir))
	}
	srv := server.New(p, st, sopts...)

	slog.Info("kartavya starting",
		"version", config.Version,
		"addr", cfg.Server.Addr,
		"store", cfg.Store.Driver,
		"photos", cfg.Photos.Backend,
		"geocoder", cfg.Geocoder.Enabled,
		"sinks", cfg.Output.Sinks)

	return srv.ListenAndServe(ctx, cfg.Server.Addr, server.Timeouts{
		Read:     cfg.Server.ReadTimeout,
		Write:    cfg.Server.WriteTimeout,
		Shutdown: cfg.Server.ShutdownTimeout,
	})
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Server.Addr, _ = flags.GetString("addr")
	}
	if flags.Changed("db-driver") {
		cfg.Store.Driver, _ = flags.GetString("db-driver")
	}
	if flags.Changed("db-dsn") {
		cfg.Store.DSN, _ = flags.GetString("db-dsn")
	}
	if flags.Changed("model") {
		cfg.Vision.ModelPath, _ = flags.GetString("model")
	}
	if flags.Changed("output") {
		cfg.Output.Sinks, _ = flags.GetStringSlice("output")
	}
}

// loadModel opens the configured ONNX model. A missing or broken model
// does not stop the server: every analysis falls back to medium severity.
func loadModel(cfg config.VisionConfig) vision.Model {
	if cfg.ModelPath == "" {
		slog.Warn("no vision model configured, photos will get the default severity")
		return vision.Unavailable{}
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		slog.Warn("vision model file not found, photos will get the default severity", "path", cfg.ModelPath)
		return vision.Unavailable{Err: err}
	}
	m, err := vision.NewONNX(cfg.ModelPath, cfg.LabelsPath, vision.Options{
		InputSize:    cfg.InputSize,
		TopK:         cfg.TopK,
		ApplySoftmax: cfg.ApplySoftmax,
	})
	if err != nil {
		slog.Error("failed to load vision model", "path", cfg.ModelPath, "error", err)
		return vision.Unavailable{Err: err}
	}
	slog.Info("vision model loaded", "path", cfg.ModelPath, "labels", len(m.Labels()))
	return m
}

// openPhotoStore returns the photo store and, for the fs backend, the
// directory the server should serve photos from.
func openPhotoStore(ctx context.Context, cfg config.PhotoConfig) (photo.Store, string, error) {
	switch cfg.Backend {
	case "s3":
		s, err := photos3.New(ctx, cfg.Bucket, cfg.Prefix, cfg.Region)
		if err != nil {
			return nil, "", err
		}
		return s, "", nil
	default:
		s, err := photofs.New(cfg.Dir)
		if err != nil {
			return nil, "", err
		}
		return s, s.Dir(), nil
	}
}

// buildOutput fans events out to the in-app inbox and the configured
// sinks. External sinks run behind an async buffer so slow webhooks never
// hold up a request.
func buildOutput(cfg config.OutputConfig, notes *inbox.Inbox) (output.Output, error) {
	var sinks []multi.Sink
	for _, name := range cfg.Sinks {
		switch name {
		case "stdout":
			sinks = append(sinks, multi.Named(name, stdout.New(cfg.Pretty)))
		case "file":
			var fopts []file.Option
			if cfg.FileMaxBytes > 0 {
				fopts = append(fopts, file.WithMaxSize(cfg.FileMaxBytes))
			}
			f, err := file.New(cfg.FilePath, fopts...)
			if err != nil {
				closeAll(sinks)
				return nil, err
			}
			sinks = append(sinks, multi.Named(name, f))
		case "webhook":
			sinks = append(sinks, multi.Named(name, webhook.New(cfg.WebhookURL,
				webhook.WithHeaders(cfg.WebhookHeaders),
				webhook.WithBatchSize(cfg.WebhookBatchSize),
				webhook.WithFlushInterval(cfg.WebhookFlushInterval),
				webhook.WithDedupWindow(cfg.WebhookDedupWindow),
				webhook.WithOnError(logSinkError("webhook")),
			)))
		default:
			closeAll(sinks)
			return nil, fmt.Errorf("unknown output sink %q", name)
		}
	}
	if len(sinks) == 0 {
		return notes, nil
	}

	var aopts []async.Option
	if cfg.AsyncBufferSize > 0 {
		aopts = append(aopts, async.WithBufferSize(cfg.AsyncBufferSize))
	}
	aopts = append(aopts, async.WithOnError(logSinkError("async")))
	external := multi.NewNamed(sinks...)
	slog.Info("event sinks configured", "sinks", external.Names())
	return multi.NewNamed(
		multi.Named("inbox", notes),
		multi.Named("async", async.New(external, aopts...)),
	), nil
}

func closeAll(sinks []multi.Sink) {
	for _, s := range sinks {
		s.Out.Close()
	}
}

func logSinkError(sink string) func(error) {
	return func(err error) {
		slog.Warn("event sink error", "sink", sink, "error", err)
	}
}
