package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"cloud.google.com/go/workflows/executions/apiv1/executionspb"
	"github.com/Lllllllleong/pdfbinder/internal/binder"
	"github.com/Lllllllleong/pdfbinder/internal/config"
	"github.com/Lllllllleong/pdfbinder/internal/console"
	"github.com/Lllllllleong/pdfbinder/internal/gcp"
	"github.com/Lllllllleong/pdfbinder/internal/models"
	"github.com/Lllllllleong/pdfbinder/internal/pdfengine"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMergeMarker = "_READY"
	outputName         = "out.pdf"
	downloadLimit      = 10
)

type MergeConfig struct {
	ProjectID        string
	OutputBucket     string
	CollectionName   string
	Marker           string
	WorkflowID       string
	WorkflowLocation string
}

// MergeFunction merges a Cloud Storage folder once its ready marker is written.
type MergeFunction struct {
	storageClient    *storage.Client
	firestoreClient  *firestore.Client
	executionsClient *executions.Client
	config           MergeConfig
}

// LoadMergeConfig reads the job settings from the environment.
func LoadMergeConfig() (MergeConfig, error) {
	c := MergeConfig{
		ProjectID:        config.GetEnv("PROJECT_ID", ""),
		OutputBucket:     config.GetEnv("OUTPUT_BUCKET", ""),
		CollectionName:   config.GetEnv("FIRESTORE_COLLECTION", "merge-jobs"),
		Marker:           config.GetEnv("MERGE_MARKER", DefaultMergeMarker),
		WorkflowLocation: config.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		WorkflowID:       config.GetEnv("WORKFLOW_ID", ""),
	}
	if c.ProjectID == "" {
		return c, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if c.OutputBucket == "" {
		return c, fmt.Errorf("OUTPUT_BUCKET environment variable must be set")
	}
	if c.Marker == "" {
		return c, fmt.Errorf("MERGE_MARKER must not be empty")
	}
	return c, nil
}

func NewMergeFunction(ctx context.Context) (*MergeFunction, error) {
	cfg, err := LoadMergeConfig()
	if err != nil {
		return nil, err
	}

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	f := &MergeFunction{
		firestoreClient: firestoreClient,
		storageClient:   storageClient,
		config:          cfg,
	}
	if cfg.WorkflowID != "" {
		if f.executionsClient, err = executions.NewClient(ctx); err != nil {
			return nil, fmt.Errorf("failed to create Workflows Executions client: %w", err)
		}
	}
	slog.Info("Merge function initialized.", "outputBucket", cfg.OutputBucket, "marker", cfg.Marker, "workflowId", cfg.WorkflowID)
	return f, nil
}

// IsMarker reports whether object is a ready marker, compared by base name.
func IsMarker(object, marker string) bool {
	return path.Base(object) == marker
}

// outputObject is where the merged file for a folder is written.
func outputObject(prefix string) string {
	return prefix + outputName
}

// Process handles one object.finalized event. Events for anything but the ready
// marker, and repeated deliveries of the same marker write, are ignored.
func (f *MergeFunction) Process(ctx context.Context, e models.GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !IsMarker(e.Name, f.config.Marker) {
		logCtx.Debug("Object is not a ready marker. Skipping.")
		return nil
	}
	logCtx.Info("Ready marker received.")

	markerKey := e.MarkerKey()
	existing, err := gcp.FindByField(ctx, f.firestoreClient, f.config.CollectionName, "markerKey", markerKey)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if existing != nil {
		logCtx.Info("Duplicate event detected. Skipping.", "existingJobId", existing.ID)
		return nil
	}

	prefix := gcp.FolderOf(e.Name)
	docRef, err := f.createJob(ctx, markerKey, e.Bucket, prefix)
	if err != nil {
		logCtx.Error("Failed to create job document", "error", err)
		return err
	}
	logCtx = logCtx.With("jobId", docRef.ID)
	logCtx.Info("Created merge job in Firestore.")

	tempDir, err := os.MkdirTemp("", "pdf-binder-*")
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to create temp dir", err)
	}
	defer os.RemoveAll(tempDir)

	inputDir := filepath.Join(tempDir, config.DefaultInputDir)
	if err := f.downloadInputs(ctx, logCtx, docRef, e.Bucket, prefix, inputDir); err != nil {
		return err
	}

	outputPath := filepath.Join(tempDir, outputName)
	res, err := f.merge(ctx, logCtx, docRef, inputDir, outputPath)
	if err != nil {
		return err
	}

	outputURI, err := f.uploadOutput(ctx, logCtx, docRef, outputPath, prefix)
	if err != nil {
		return err
	}

	done := gcp.StatusUpdates(models.StatusDone, "",
		firestore.Update{Path: "documentCount", Value: res.Documents},
		firestore.Update{Path: "pageCount", Value: res.Pages},
		firestore.Update{Path: "skippedFiles", Value: res.Skipped},
		firestore.Update{Path: "outputGcsUri", Value: outputURI},
		firestore.Update{Path: "completedAt", Value: time.Now()},
	)
	if _, err := docRef.Update(ctx, done); err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to update status to DONE", err)
	}

	if err := f.triggerWorkflow(ctx, logCtx, docRef, outputURI, res.Pages); err != nil {
		return err
	}
	logCtx.Info("Merge job complete.", "outputGcsUri", outputURI, "pageCount", res.Pages)
	return nil
}

func (f *MergeFunction) createJob(ctx context.Context, markerKey, bucket, prefix string) (*firestore.DocumentRef, error) {
	job := models.MergeJob{
		MarkerKey: markerKey,
		Bucket:    bucket,
		Prefix:    prefix,
		Status:    models.StatusDownloading,
		CreatedAt: time.Now(),
	}
	docRef, _, err := f.firestoreClient.Collection(f.config.CollectionName).Add(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("failed to create job document: %w", err)
	}
	return docRef, nil
}

// downloadInputs copies every object in the folder except the marker into
// inputDir under its base name, so the local listing order matches the folder's.
func (f *MergeFunction) downloadInputs(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, bucketName, prefix, inputDir string) error {
	if err := os.MkdirAll(inputDir, 0o755); err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to create input dir", err)
	}
	bucket := f.storageClient.Bucket(bucketName)
	names, err := gcp.ListFolder(ctx, bucket, prefix)
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to list input folder", err)
	}

	logCtx.Info("Starting concurrent download of inputs.", "objectCount", len(names))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(downloadLimit)
	for _, name := range names {
		if IsMarker(name, f.config.Marker) {
			continue
		}
		dest := filepath.Join(inputDir, path.Base(name))
		eg.Go(func() error {
			if err := gcp.DownloadObject(gctx, bucket, name, dest); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return f.handleError(ctx, logCtx, docRef, "one or more inputs failed to download", err)
	}
	logCtx.Info("All inputs downloaded.")
	return nil
}

func (f *MergeFunction) merge(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, inputDir, outputPath string) (*binder.Result, error) {
	if err := f.updateStatus(ctx, docRef, models.StatusMerging, ""); err != nil {
		return nil, f.handleError(ctx, logCtx, docRef, "failed to update status to MERGING", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		return nil, f.handleError(ctx, logCtx, docRef, "failed to load merge settings", err)
	}
	cfg.InputDir = inputDir
	cfg.OutputFile = outputPath
	cfg.PauseOnExit = false

	res, err := binder.New(pdfengine.New(), cfg, console.Nop{}).Run(ctx)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, docRef, "failed to merge inputs", err)
	}
	return res, nil
}

func (f *MergeFunction) uploadOutput(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, outputPath, prefix string) (string, error) {
	if err := f.updateStatus(ctx, docRef, models.StatusUploading, ""); err != nil {
		return "", f.handleError(ctx, logCtx, docRef, "failed to update status to UPLOADING", err)
	}
	object := outputObject(prefix)
	if err := gcp.UploadFile(ctx, f.storageClient.Bucket(f.config.OutputBucket), outputPath, object); err != nil {
		return "", f.handleError(ctx, logCtx, docRef, "failed to upload merged output", err)
	}
	return gcp.URI(f.config.OutputBucket, object), nil
}

func (f *MergeFunction) triggerWorkflow(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, outputURI string, pageCount int) error {
	if f.executionsClient == nil {
		return nil
	}
	logCtx.Info("Triggering workflow.", "workflowId", f.config.WorkflowID)
	payloadBytes, err := json.Marshal(models.MergeWorkflowRequest{
		JobID:        docRef.ID,
		OutputGCSUri: outputURI,
		PageCount:    pageCount,
	})
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to marshal workflow payload", err)
	}
	req := &executionspb.CreateExecutionRequest{
		Parent: fmt.Sprintf("projects/%s/locations/%s/workflows/%s", f.config.ProjectID, f.config.WorkflowLocation, f.config.WorkflowID),
		Execution: &executionspb.Execution{
			Argument: string(payloadBytes),
		},
	}
	if _, err := f.executionsClient.CreateExecution(ctx, req); err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to trigger workflow execution", err)
	}
	return nil
}

func (f *MergeFunction) handleError(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := f.updateStatus(ctx, docRef, models.StatusFailed, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}

func (f *MergeFunction) updateStatus(ctx context.Context, docRef *firestore.DocumentRef, status, errDetails string) error {
	_, err := docRef.Update(ctx, gcp.StatusUpdates(status, errDetails))
	return err
}
