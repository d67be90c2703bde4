package sourceconfig

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const farmRegistryYAML = `
source_id: farm-registry
processor_type: json_extraction
storage:
  raw_container: raw-farm-registry
  index_collection: document_index
transformation:
  link_field: farm_id
  field_mappings:
    farm.id: farm_id
  extract_fields:
    - farm.name
    - farm.region
`

const fieldSurveyYAML = `
source_id: field-survey
processor_type: zip_extraction
storage:
  inbox_container: inbox
  raw_container: raw-field-survey
  file_container: files-field-survey
  index_collection: document_index
transformation:
  link_field: farm_id
  ai_agent_id: survey-extractor
  extraction_enabled: true
limits:
  max_zip_bytes: 1048576
  max_documents: 100
events:
  on_success:
    topic: survey.ingested
    payload_fields:
      - farm_id
`

func writeConfigs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestGetConfig(t *testing.T) {
	dir := writeConfigs(t, map[string]string{
		"farm-registry.yaml": farmRegistryYAML,
		"field-survey.yaml":  fieldSurveyYAML,
	})
	p, err := NewDirProvider(dir)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("loads and validates", func(t *testing.T) {
		cfg, err := p.GetConfig(ctx, "farm-registry")
		require.NoError(t, err)
		assert.Equal(t, "json_extraction", cfg.ProcessorType)
		assert.Equal(t, "farm_id", cfg.Transformation.LinkField)
		assert.Equal(t, "farm_id", cfg.Transformation.FieldMappings["farm.id"])
		assert.False(t, cfg.AgentExtraction())
	})

	t.Run("unknown source", func(t *testing.T) {
		_, err := p.GetConfig(ctx, "nope")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSourceNotFound))
	})

	t.Run("cached after first load", func(t *testing.T) {
		_, err := p.GetConfig(ctx, "field-survey")
		require.NoError(t, err)
		// Removing the file must not affect cached lookups.
		require.NoError(t, os.Remove(filepath.Join(dir, "field-survey.yaml")))
		cfg, err := p.GetConfig(ctx, "field-survey")
		require.NoError(t, err)
		assert.True(t, cfg.AgentExtraction())
	})
}

func TestGetConfigRejectsMismatchedID(t *testing.T) {
	dir := writeConfigs(t, map[string]string{
		"other-name.yaml": farmRegistryYAML, // declares source_id: farm-registry
	})
	p, err := NewDirProvider(dir)
	require.NoError(t, err)

	_, err = p.GetConfig(context.Background(), "other-name")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source_id mismatch")
}

func TestGetConfigRejectsInvalid(t *testing.T) {
	dir := writeConfigs(t, map[string]string{
		"broken.yaml": "source_id: broken\nprocessor_type: json_extraction\n",
	})
	p, err := NewDirProvider(dir)
	require.NoError(t, err)

	_, err = p.GetConfig(context.Background(), "broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "raw_container")
}

func TestListSourcesAndAgentIDs(t *testing.T) {
	dir := writeConfigs(t, map[string]string{
		"farm-registry.yaml": farmRegistryYAML,
		"field-survey.yaml":  fieldSurveyYAML,
		"notes.txt":          "ignored",
	})
	p, err := NewDirProvider(dir)
	require.NoError(t, err)

	ids, err := p.ListSources()
	require.NoError(t, err)
	assert.Equal(t, []string{"farm-registry", "field-survey"}, ids)

	agents, err := p.AgentIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"survey-extractor"}, agents)
}

func TestConfigDefaults(t *testing.T) {
	cfg := SourceConfig{
		Storage: StorageConfig{RawContainer: "raw"},
	}
	assert.Equal(t, "raw", cfg.Inbox(), "inbox falls back to raw container")
	assert.Equal(t, int64(DefaultMaxZipBytes), cfg.MaxZipBytes())
	assert.Equal(t, DefaultMaxDocuments, cfg.MaxDocuments())

	cfg.Storage.InboxContainer = "inbox"
	cfg.Limits = LimitsConfig{MaxZipBytes: 10, MaxDocuments: 2}
	assert.Equal(t, "inbox", cfg.Inbox())
	assert.Equal(t, int64(10), cfg.MaxZipBytes())
	assert.Equal(t, 2, cfg.MaxDocuments())
}

func TestValidateAgentRequirement(t *testing.T) {
	cfg := SourceConfig{
		SourceID:      "s",
		ProcessorType: "json_extraction",
		Storage:       StorageConfig{RawContainer: "raw", IndexCollection: "document_index"},
		Transformation: TransformationConfig{
			LinkField:         "farm_id",
			ExtractionEnabled: true,
		},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ai_agent_id")
}
