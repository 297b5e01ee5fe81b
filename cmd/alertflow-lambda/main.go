// Command alertflow-lambda is the AWS Lambda entry point for SQS triggers.
package main

import (
	"context"
	"fmt"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	"github.com/drblury/alertflow/internal/runtime/bootstrap"
	"github.com/drblury/alertflow/internal/runtime/config"
	"github.com/drblury/alertflow/internal/runtime/lambda"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	// Collaborators are built once per execution environment and reused by
	// every invocation it serves.
	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	defer app.Close()

	awslambda.Start(lambda.NewHandler(app.Processor, app.Logger))
}
