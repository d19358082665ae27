package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/pdfbinder/internal/models"
	"github.com/Lllllllleong/pdfbinder/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	mergeInstance *services.MergeFunction
	once          sync.Once
	initErr       error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("MergeFolder", mergeFolder)
}

// main is required by the Go Functions Framework.
func main() {}

// mergeFolder is the Cloud Function entry point for object.finalized events.
func mergeFolder(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		mergeInstance, initErr = services.NewMergeFunction(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Process logs its own failures; returning the error marks the invocation failed.
	return mergeInstance.Process(ctx, gcsEvent)
}
