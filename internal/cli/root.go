// Package cli provides the command-line interface for the collection engine.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/agritrace/collection-model/internal/blob"
	"github.com/agritrace/collection-model/internal/config"
	"github.com/agritrace/collection-model/internal/jobqueue"
	"github.com/agritrace/collection-model/internal/repository"
	"github.com/agritrace/collection-model/internal/sourceconfig"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and repository client
	cfg        config.Config
	repoClient *repository.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "collectionctl",
	Short: "Operate the content collection engine",
	Long: `collectionctl submits payloads for ingestion and inspects jobs,
documents, and source configurations of a running collection engine.

Source behavior is entirely configuration-driven: a source id maps to a
YAML file naming the processor, storage containers, and transformation
rules. No per-source code exists.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip repository connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()

		ctx := context.Background()
		repoCfg := repository.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		var err error
		repoClient, err = repository.NewClient(ctx, repoCfg, nil)
		if err != nil {
			return fmt.Errorf("connect to repository: %w", err)
		}

		if err := repoClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if repoClient != nil {
			if err := repoClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close repository: %v\n", err)
			}
		}
	},
}

// newConfigs opens the source configuration directory.
func newConfigs() (*sourceconfig.DirProvider, error) {
	provider, err := sourceconfig.NewDirProvider(cfg.SourceConfigDir)
	if err != nil {
		return nil, fmt.Errorf("open source configs: %w", err)
	}
	return provider, nil
}

// newBlobStore connects to blob storage.
func newBlobStore() (blob.Store, error) {
	return blob.NewMinIOStore(blob.MinIOConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		UseSSL:    cfg.MinIOUseSSL,
	}, nil)
}

// newQueue builds the configured job queue backend.
func newQueue(ctx context.Context) (jobqueue.Queue, error) {
	switch cfg.QueueBackend {
	case "sqs":
		return jobqueue.NewSQSQueue(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return jobqueue.NewRedisQueue(client, cfg.QueueName, "collectionctl", nil), nil
	default:
		return nil, fmt.Errorf("unsupported queue backend: %s", cfg.QueueBackend)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
