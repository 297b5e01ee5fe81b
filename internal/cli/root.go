// Package cli implements the alertflow command line: local invocations, the
// HTTP server, stored alert queries and SQS replays.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/drblury/alertflow/internal/runtime/bootstrap"
	"github.com/drblury/alertflow/internal/runtime/config"
	"github.com/drblury/alertflow/internal/runtime/jsoncodec"
	"github.com/drblury/alertflow/internal/runtime/logging"
)

// Version is stamped at build time.
var Version = "dev"

// env carries the viper instance shared by the command tree. Flags are bound
// to config keys so an explicit flag beats the environment variable.
type env struct {
	viper *viper.Viper
}

func NewRootCommand() *cobra.Command {
	e := &env{viper: viper.New()}

	root := &cobra.Command{
		Use:   "alertflow",
		Short: "Monitoring alert ingestion pipeline",
		Long: `alertflow parses monitoring alerts delivered by a queue, stores every
record and publishes a notification for each one.

Configuration is read from the environment (STORAGE_BACKEND, DYNAMODB_TABLE,
NOTIFICATION_BACKEND, SNS_TOPIC_ARN, LOCALSTACK_HOSTNAME, ...). Flags override
the matching variables.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("storage", "", "storage backend: dynamodb, memory, postgres, sqlite, redis")
	flags.String("notification", "", "notification backend: sns, channel, kafka, rabbitmq, nats, http, aws")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: json, text")
	flags.String("id-scheme", "", "alert id scheme: ulid, uuid")
	e.bind(flags, map[string]string{
		"storage":      "storage_backend",
		"notification": "notification_backend",
		"log-level":    "log_level",
		"log-format":   "log_format",
		"id-scheme":    "id_scheme",
	})

	root.AddCommand(
		newInvokeCommand(e),
		newSampleCommand(e),
		newServeCommand(e),
		newAlertsCommand(e),
		newReplayCommand(e),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCommand().Execute()
}

func (e *env) bind(flags *pflag.FlagSet, keys map[string]string) {
	for flag, key := range keys {
		if err := e.viper.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(fmt.Sprintf("alertflow: bind flag %s: %v", flag, err))
		}
	}
}

func (e *env) config() (*config.Config, error) {
	return config.LoadFrom(e.viper)
}

// open assembles the pipeline, logging to the command's stderr.
func (e *env) open(cmd *cobra.Command) (*bootstrap.App, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return bootstrap.New(cmd.Context(), cfg, bootstrap.Options{Logger: logger})
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := jsoncodec.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
