package cli

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	hermes "github.com/sbowman/hermes-reconnect"
	"github.com/sbowman/hermes-reconnect/internal/config"
	"github.com/sbowman/hermes-reconnect/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "hermes",
	Short: "Run SQL over a connection that recovers when the server goes away",
	Long: `hermes runs SQL against PostgreSQL through a connection that, when the server
connection is lost, reconnects and repeats the statement once.  Commits are never repeated.

Configuration comes from --config, HERMES_* environment variables and a .env file, e.g.

  HERMES_DATABASE_URI=postgres://localhost/app?sslmode=disable
  HERMES_DATABASE_CONNECT_TIMEOUT=5s
  HERMES_LOG_LEVEL=debug`,
	SilenceUsage: true,
}

// Execute runs the root command.  Commands stop when ctx is cancelled.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a configuration file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("uri", "", "Database connection string; overrides the configuration")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log at debug level")
}

// session is everything a command needs to talk to the database.
type session struct {
	cfg     *config.Config
	logger  zerolog.Logger
	conn    *hermes.Conn
	metrics *hermes.Metrics
}

// loadConfig reads the configuration and applies the command line overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Read(configPath, config.EnvPrefix)
	if err != nil {
		return nil, err
	}

	if uri, _ := cmd.Flags().GetString("uri"); uri != "" {
		cfg.Database.URI = uri
	}

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// open connects to the database described by the configuration.
func open(ctx context.Context, cmd *cobra.Command, reg prometheus.Registerer) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger := logging.New(cfg.Log)

	connConfig, err := pgx.ParseConfig(cfg.Database.URI)
	if err != nil {
		return nil, fmt.Errorf("invalid database uri: %w", err)
	}
	connConfig.ConnectTimeout = cfg.Database.ConnectTimeout

	classifier := hermes.PgxClassifier
	if len(cfg.Database.Markers) > 0 {
		classifier = hermes.AnyOf(classifier, hermes.MessageClassifier(cfg.Database.Markers...))
	}

	metrics := hermes.NewMetrics(reg)

	conn, err := hermes.ConnectConfig(ctx, connConfig,
		hermes.WithClassifier(classifier),
		hermes.WithLogger(logger.With().Str("component", "hermes").Logger()),
		hermes.WithMetrics(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	logger.Debug().Str("host", connConfig.Host).Str("database", connConfig.Database).Msg("connected")

	return &session{cfg: cfg, logger: logger, conn: conn, metrics: metrics}, nil
}

func (s *session) close(ctx context.Context) {
	if err := s.conn.Close(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("problem closing the database connection")
	}
}

// queryArgs converts the command line arguments into query parameters.
func queryArgs(args []string) []any {
	params := make([]any, len(args))
	for i, arg := range args {
		params[i] = arg
	}

	return params
}
