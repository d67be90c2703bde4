package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/agritrace/collection-model/internal/models"
	"github.com/agritrace/collection-model/internal/worker"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <source-id> <file>",
	Short: "Submit a payload for ingestion",
	Long: `Upload a local payload file to the source's inbox container and
submit an ingestion job for it.

Examples:
  collectionctl enqueue farm-registry ./payload.json
  collectionctl enqueue field-survey ./batch.zip`,
	Args: cobra.ExactArgs(2),
	RunE: runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sourceID, file := args[0], args[1]

	configs, err := newConfigs()
	if err != nil {
		return err
	}
	srcCfg, err := configs.GetConfig(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("resolve source: %w", err)
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}

	blobs, err := newBlobStore()
	if err != nil {
		return fmt.Errorf("connect to blob storage: %w", err)
	}

	jobID := uuid.New().String()[:8] // Short ID for convenience
	blobPath := jobID + "/" + filepath.Base(file)
	contentType := payloadContentType(file)

	if _, err := blobs.Upload(ctx, srcCfg.Inbox(), blobPath, data, contentType); err != nil {
		return fmt.Errorf("upload payload: %w", err)
	}

	queue, err := newQueue(ctx)
	if err != nil {
		return err
	}
	manager := worker.NewManager(repoClient, queue, cfg.RetryBackoff, nil)

	job := models.IngestionJob{
		JobID:       jobID,
		SourceID:    sourceID,
		BlobPath:    blobPath,
		ContentType: contentType,
		ReceivedAt:  time.Now().UTC(),
	}
	if err := manager.Submit(ctx, job); err != nil {
		return fmt.Errorf("submit job: %w", err)
	}

	fmt.Printf("Job %s submitted\n", defaultTheme.successStyle().Render(jobID))
	fmt.Printf("  Source: %s (%s)\n", sourceID, srcCfg.ProcessorType)
	fmt.Printf("  Payload: %s (%d bytes)\n", blobPath, len(data))
	fmt.Println(defaultTheme.hintStyle().Render("  Track it with: collectionctl jobs " + jobID))
	return nil
}

func payloadContentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".zip":
		return "application/zip"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
