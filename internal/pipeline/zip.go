package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/agritrace/collection-model/internal/models"
	"github.com/agritrace/collection-model/internal/sourceconfig"
)

// manifestName is the required descriptor at the archive root.
const manifestName = "manifest.json"

// storableRoles are the manifest file roles whose bytes get uploaded.
var storableRoles = map[string]bool{
	"image":      true,
	"primary":    true,
	"thumbnail":  true,
	"attachment": true,
}

// defaultPathPattern places files when the source config has no pattern.
const defaultPathPattern = "{source_id}/{document_id}/{role}{ext}"

// ZipProcessor handles manifest-described multi-document archives. Always
// local and synchronous: the manifest already carries structured attributes,
// so no agent is involved. All documents of a batch are persisted atomically
// or not at all; the raw archive is stored before any per-document work so
// it survives a failed batch for manual retry.
type ZipProcessor struct {
	deps Dependencies
}

var _ ContentProcessor = (*ZipProcessor)(nil)

// NewZipProcessor creates the processor.
func NewZipProcessor(deps Dependencies) *ZipProcessor {
	return &ZipProcessor{deps: deps}
}

// Process runs the atomic batch algorithm.
func (p *ZipProcessor) Process(ctx context.Context, job models.IngestionJob, cfg sourceconfig.SourceConfig) (Result, error) {
	raw, err := p.deps.Blobs.Download(ctx, cfg.Inbox(), job.BlobPath)
	if err != nil {
		return Result{}, Errorf(models.ErrorTypeStorage, "download archive: %w", err)
	}
	if int64(len(raw)) > cfg.MaxZipBytes() {
		return Result{}, Errorf(models.ErrorTypeValidation,
			"archive size %d exceeds limit %d", len(raw), cfg.MaxZipBytes())
	}

	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return Result{}, Errorf(models.ErrorTypeValidation, "malformed archive: %w", err)
	}

	manifest, err := readManifest(reader)
	if err != nil {
		return Result{}, Errorf(models.ErrorTypeValidation, "%w: %w", ErrManifestInvalid, err)
	}
	if manifest.SourceID != job.SourceID {
		return Result{}, Errorf(models.ErrorTypeValidation,
			"%w: manifest source_id %q does not match job source %q", ErrManifestInvalid, manifest.SourceID, job.SourceID)
	}
	if len(manifest.Documents) > cfg.MaxDocuments() {
		return Result{}, Errorf(models.ErrorTypeValidation,
			"document count %d exceeds limit %d", len(manifest.Documents), cfg.MaxDocuments())
	}

	linkValue, err := LinkageValue(manifest.Linkage, cfg.Transformation.LinkField)
	if err != nil {
		return Result{}, err
	}

	// Raw archive first: the original artifact must survive any later failure.
	hash := sha256.Sum256(raw)
	contentHash := hex.EncodeToString(hash[:])
	rawRef, err := p.deps.Blobs.Upload(ctx, cfg.Storage.RawContainer, job.BlobPath, raw, "application/zip")
	if err != nil {
		return Result{}, Errorf(models.ErrorTypeStorage, "store raw archive: %w", err)
	}

	entries := make(map[string]*zip.File, len(reader.File))
	for _, f := range reader.File {
		entries[f.Name] = f
	}

	linkage := remapLinkage(manifest.Linkage, cfg.Transformation.FieldMappings)
	now := time.Now().UTC()
	docs := make([]models.DocumentIndex, 0, len(manifest.Documents))
	for _, md := range manifest.Documents {
		doc, err := p.buildDocument(ctx, job, cfg, manifest, md, entries, linkage, linkValue, rawRef.Path, contentHash, int64(len(raw)), now)
		if err != nil {
			return Result{}, err
		}
		docs = append(docs, doc)
	}

	if err := p.deps.Repo.SaveBatchAtomic(ctx, cfg.Storage.IndexCollection, docs); err != nil {
		return Result{}, Errorf(models.ErrorTypeStorage, "save batch: %w", err)
	}
	if err := PublishSuccess(ctx, p.deps, cfg, docs); err != nil {
		return Result{}, err
	}

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.DocumentID
	}
	p.deps.logger().Info("batch processed",
		"source_id", cfg.SourceID, "job_id", job.JobID, "documents", len(docs))
	return Result{
		Success:     true,
		DocumentIDs: ids,
		Summary:     map[string]any{"document_count": len(docs)},
	}, nil
}

// buildDocument extracts and uploads one manifest document's storable files
// and assembles its DocumentIndex row.
func (p *ZipProcessor) buildDocument(
	ctx context.Context,
	job models.IngestionJob,
	cfg sourceconfig.SourceConfig,
	manifest *models.ZipManifest,
	md models.ManifestDocument,
	entries map[string]*zip.File,
	linkage map[string]any,
	linkValue, rawPath, contentHash string,
	rawSize int64,
	now time.Time,
) (models.DocumentIndex, error) {
	fileRefs := make(map[string]any)
	for _, mf := range md.Files {
		if !storableRoles[mf.Role] {
			continue
		}
		entry, ok := entries[mf.Path]
		if !ok {
			return models.DocumentIndex{}, Errorf(models.ErrorTypeValidation, "%w",
				&BatchError{DocumentID: md.DocumentID, File: mf.Path, Err: fmt.Errorf("file not present in archive")})
		}
		data, err := readEntry(entry)
		if err != nil {
			return models.DocumentIndex{}, Errorf(models.ErrorTypeValidation, "%w",
				&BatchError{DocumentID: md.DocumentID, File: mf.Path, Err: err})
		}

		blobPath := renderPathPattern(cfg.Storage.FilePathPattern, map[string]string{
			"source_id":   cfg.SourceID,
			"document_id": md.DocumentID,
			"role":        mf.Role,
			"ext":         path.Ext(mf.Path),
		}, manifest.Linkage)
		ref, err := p.deps.Blobs.Upload(ctx, cfg.Storage.FileContainer, blobPath, data, mf.MimeType)
		if err != nil {
			return models.DocumentIndex{}, Errorf(models.ErrorTypeStorage, "%w",
				&BatchError{DocumentID: md.DocumentID, File: mf.Path, Err: err})
		}
		fileRefs[mf.Role] = map[string]any{
			"container":  ref.Container,
			"path":       ref.Path,
			"mime_type":  mf.MimeType,
			"size_bytes": ref.SizeBytes,
		}
	}

	// Batch payload first, per-document attributes second: attributes win
	// on key collision.
	extracted := make(map[string]any, len(manifest.Payload)+len(md.Attributes)+1)
	for k, v := range manifest.Payload {
		extracted[k] = v
	}
	for k, v := range md.Attributes {
		extracted[k] = v
	}
	extracted["file_refs"] = fileRefs

	return models.DocumentIndex{
		DocumentID: DocumentID(cfg.SourceID, linkValue, md.DocumentID),
		RawDocument: models.RawDocumentRef{
			Container:   cfg.Storage.RawContainer,
			Path:        rawPath,
			ContentHash: contentHash,
			SizeBytes:   rawSize,
		},
		Extraction: models.ExtractionMeta{
			Status:           models.ExtractionComplete,
			Confidence:       1.0,
			ValidationPassed: true,
			RequestedAt:      now,
			CompletedAt:      &now,
		},
		Ingestion: models.IngestionMeta{
			JobID:       job.JobID,
			SourceID:    cfg.SourceID,
			ReceivedAt:  job.ReceivedAt,
			ProcessedAt: now,
		},
		ExtractedFields: extracted,
		LinkageFields:   linkage,
	}, nil
}

func readManifest(reader *zip.Reader) (*models.ZipManifest, error) {
	entry, err := reader.Open(manifestName)
	if err != nil {
		return nil, fmt.Errorf("%s missing", manifestName)
	}
	defer entry.Close()

	data, err := io.ReadAll(entry)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", manifestName, err)
	}
	var manifest models.ZipManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse %s: %w", manifestName, err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, err
	}
	return &manifest, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry: %w", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry: %w", err)
	}
	return data, nil
}

// renderPathPattern interpolates {key} placeholders. Reserved keys
// (source_id, document_id, role, ext) take precedence over manifest linkage
// fields of the same name.
func renderPathPattern(pattern string, vars map[string]string, linkage map[string]any) string {
	if pattern == "" {
		pattern = defaultPathPattern
	}
	pairs := make([]string, 0, (len(vars)+len(linkage))*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	for k, v := range linkage {
		if _, reserved := vars[k]; reserved {
			continue
		}
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(pattern)
}
