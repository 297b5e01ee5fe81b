package cli

import (
	"github.com/spf13/cobra"

	"github.com/drblury/alertflow/internal/runtime/sqsreplay"
)

func newReplayCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Process one batch received from an SQS queue",
		Long: `Receive up to --max messages from the queue, process them as a single
invocation and delete them when it succeeds. On failure the messages stay on
the queue and become visible again after their visibility timeout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			queueURL, _ := cmd.Flags().GetString("queue-url")
			maxMessages, _ := cmd.Flags().GetInt("max")
			wait, _ := cmd.Flags().GetInt("wait")
			visibility, _ := cmd.Flags().GetInt("visibility-timeout")

			app, err := e.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			replayer, err := sqsreplay.NewFromConfig(cmd.Context(), app.Config, app.Processor, app.Logger)
			if err != nil {
				return err
			}
			res, err := replayer.Replay(cmd.Context(), sqsreplay.Options{
				QueueURL:          queueURL,
				MaxMessages:       maxMessages,
				WaitSeconds:       wait,
				VisibilityTimeout: visibility,
			})
			if err != nil {
				return err
			}
			if err := printJSON(cmd, res); err != nil {
				return err
			}
			if res.Received == 0 {
				return nil
			}
			return statusError(res.Response)
		},
	}
	cmd.Flags().String("queue-url", "", "SQS queue URL")
	cmd.Flags().Int("max", sqsreplay.MaxBatchSize, "maximum messages to receive (1-10)")
	cmd.Flags().Int("wait", 0, "long polling wait in seconds (0-20)")
	cmd.Flags().Int("visibility-timeout", 0, "visibility timeout in seconds for received messages")
	_ = cmd.MarkFlagRequired("queue-url")
	return cmd
}
