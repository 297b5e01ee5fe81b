package cli

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/drblury/alertflow/internal/runtime/alert"
	"github.com/drblury/alertflow/internal/runtime/jsoncodec"
	"github.com/drblury/alertflow/internal/runtime/pipeline"
)

// SampleEvent is the CPU_HIGH event run by the sample command.
func SampleEvent() alert.Batch {
	return alert.Batch{Records: []alert.RawRecord{{
		MessageID:     "19dd0b57-b21e-4ac1-bd88-01bbb068cb78",
		ReceiptHandle: "MessageReceiptHandle",
		Body:          `{"tipo":"CPU_HIGH","servico":"api-gateway","valor":92.5,"limite":80.0,"mensagem":"CPU usage above threshold"}`,
		Attributes: map[string]string{
			"ApproximateReceiveCount":          "1",
			"SentTimestamp":                    "1523232000000",
			"SenderId":                         "123456789012",
			"ApproximateFirstReceiveTimestamp": "1523232000001",
		},
		MessageAttributes: map[string]alert.MessageAttribute{},
		MD5OfBody:         "7b270e59b47ff90a553787216d55d91d",
		EventSource:       "aws:sqs",
		EventSourceARN:    "arn:aws:sqs:us-east-1:123456789012:MonitoringQueue",
		AWSRegion:         "us-east-1",
	}}}
}

func newInvokeCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Run one event through the pipeline",
		Long:  "Read an SQS-style event ({\"Records\": [...]}) from --file or stdin and process it as one invocation.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")

			var in io.Reader = cmd.InOrStdin()
			if file != "" && file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			var batch alert.Batch
			if err := jsoncodec.Decode(in, &batch); err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			return e.invoke(cmd, batch)
		},
	}
	cmd.Flags().StringP("file", "f", "", "event JSON file (default: stdin)")
	return cmd
}

func newSampleCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "sample",
		Short: "Run the built-in CPU_HIGH sample event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.invoke(cmd, SampleEvent())
		},
	}
}

func (e *env) invoke(cmd *cobra.Command, batch alert.Batch) error {
	app, err := e.open(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	resp := app.Processor.Invoke(cmd.Context(), batch)
	if err := printJSON(cmd, resp); err != nil {
		return err
	}
	return statusError(resp)
}

func statusError(resp pipeline.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	return fmt.Errorf("invocation failed with status %d", resp.StatusCode)
}
