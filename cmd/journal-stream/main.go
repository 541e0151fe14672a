// Command journal-stream is the Lambda function attached to the journal
// entries table stream.
package main

import (
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/quill/stream"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	h := stream.NewHandler(logger)
	lambda.Start(h.HandleJournalEvents)
}
