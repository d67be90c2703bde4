package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var documentRaw bool

var documentCmd = &cobra.Command{
	Use:   "document <document-id>",
	Short: "Inspect an indexed document",
	Long: `Show an indexed document by its composite id
({source_id}/{linkage_value}/{local_doc_id}).

Examples:
  collectionctl document farm-registry/FARM-001/doc
  collectionctl document field-survey/FARM-002/photo-1 --raw`,
	Args: cobra.ExactArgs(1),
	RunE: runDocument,
}

func init() {
	documentCmd.Flags().BoolVar(&documentRaw, "raw", false, "print the full record as JSON")
	rootCmd.AddCommand(documentCmd)
}

func runDocument(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	docID := args[0]

	sourceID, _, found := strings.Cut(docID, "/")
	if !found {
		return fmt.Errorf("invalid document id: %s", docID)
	}

	configs, err := newConfigs()
	if err != nil {
		return err
	}
	srcCfg, err := configs.GetConfig(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("resolve source: %w", err)
	}

	doc, err := repoClient.GetByID(ctx, srcCfg.Storage.IndexCollection, docID)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}

	if documentRaw {
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Document: %s\n", doc.DocumentID)
	fmt.Printf("  Raw: %s/%s (%d bytes, sha256 %s)\n",
		doc.RawDocument.Container, doc.RawDocument.Path, doc.RawDocument.SizeBytes, doc.RawDocument.ContentHash[:12])
	fmt.Printf("  Job: %s (source %s)\n", doc.Ingestion.JobID, doc.Ingestion.SourceID)
	fmt.Printf("  Processed: %s\n", doc.Ingestion.ProcessedAt.Format(time.RFC3339))

	fmt.Printf("  Extraction: %s", doc.Extraction.Status)
	if doc.Extraction.AgentID != "" {
		fmt.Printf(" (agent %s)", doc.Extraction.AgentID)
	}
	fmt.Println()
	if doc.Extraction.ErrorMessage != "" {
		fmt.Printf("  Extraction error (%s): %s\n", doc.Extraction.ErrorType, doc.Extraction.ErrorMessage)
	}

	if len(doc.LinkageFields) > 0 {
		fmt.Println("\nLinkage:")
		printFields(doc.LinkageFields)
	}
	if len(doc.ExtractedFields) > 0 {
		fmt.Println("\nExtracted fields:")
		printFields(doc.ExtractedFields)
	}
	return nil
}

func printFields(fields map[string]any) {
	for k, v := range fields {
		fmt.Printf("  %s: %v\n", k, v)
	}
}
