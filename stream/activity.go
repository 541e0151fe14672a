// Package stream provides DynamoDB Streams handlers for the journal entries table.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/quill/journal"
)

var errMissingImage = errors.New("stream: record has no image")

// Activity is one entry lifecycle event decoded from a stream record.
type Activity struct {
	Event     string
	ID        uint64
	Owner     journal.Owner
	Title     string
	Version   uint64
	CreatedAt int64
	UpdatedAt int64
}

// Handler turns entries-table stream records into activity log events.
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger: logger,
	}
}

// HandleJournalEvents logs one activity event per record.
// This function is designed to be used as an AWS Lambda handler. It never
// fails the batch: the entries are already committed and a retry would only
// duplicate events.
func (h *Handler) HandleJournalEvents(ctx context.Context, event events.DynamoDBEvent) error {
	for i := range event.Records {
		record := &event.Records[i]
		a, err := decodeRecord(record)
		if err != nil {
			h.logger.Warn("skipping stream record",
				"eventID", record.EventID,
				"eventName", record.EventName,
				"error", err,
			)
			continue
		}
		if a == nil {
			continue
		}
		h.logger.InfoContext(ctx, a.Event,
			"id", a.ID,
			"owner", a.Owner.String(),
			"title", a.Title,
			"version", a.Version,
			"createdAt", a.CreatedAt,
			"updatedAt", a.UpdatedAt,
		)
	}
	return nil
}

// decodeRecord returns nil for event types that carry no activity.
func decodeRecord(record *events.DynamoDBEventRecord) (*Activity, error) {
	var (
		event string
		image map[string]events.DynamoDBAttributeValue
	)
	switch record.EventName {
	case "INSERT":
		event, image = "journal entry created", record.Change.NewImage
	case "MODIFY":
		event, image = "journal entry updated", record.Change.NewImage
	case "REMOVE":
		// The deleting transaction's title is not stored; the old image has
		// the last committed one.
		event, image = "journal entry deleted", record.Change.OldImage
	default:
		return nil, nil
	}
	if len(image) == 0 {
		return nil, errMissingImage
	}

	owner, err := journal.OwnerFromBytes(getBinaryAttr(image, "owner"))
	if err != nil {
		return nil, err
	}
	return &Activity{
		Event:     event,
		ID:        getUintAttr(image, "id"),
		Owner:     owner,
		Title:     getStringAttr(image, "title"),
		Version:   getUintAttr(image, "version"),
		CreatedAt: getNumberAttr(image, "created_at"),
		UpdatedAt: getNumberAttr(image, "updated_at"),
	}, nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getNumberAttr extracts a number attribute from a DynamoDB stream image.
func getNumberAttr(image map[string]events.DynamoDBAttributeValue, key string) int64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseInt(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}

func getUintAttr(image map[string]events.DynamoDBAttributeValue, key string) uint64 {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeNumber {
		n, _ := strconv.ParseUint(v.Number(), 10, 64)
		return n
	}
	return 0
}

func getBinaryAttr(image map[string]events.DynamoDBAttributeValue, key string) []byte {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeBinary {
		return v.Binary()
	}
	return nil
}
