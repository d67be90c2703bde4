package repository

// SchemaSQL contains the database schema initialization SQL.
//
// Document collections are created per source config (index_collection), so
// only the conventional default collection is defined here; SurrealDB creates
// additional schemaless tables on first write.
const SchemaSQL = `
    -- ==========================================================================
    -- INGESTION JOB TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS ingestion_job SCHEMALESS;
    DEFINE FIELD IF NOT EXISTS job_id ON ingestion_job TYPE string;
    DEFINE FIELD IF NOT EXISTS source_id ON ingestion_job TYPE string;
    DEFINE FIELD IF NOT EXISTS status ON ingestion_job TYPE string;
    DEFINE FIELD IF NOT EXISTS retry_count ON ingestion_job TYPE int DEFAULT 0;

    DEFINE INDEX IF NOT EXISTS job_status ON ingestion_job FIELDS status;
    DEFINE INDEX IF NOT EXISTS job_source ON ingestion_job FIELDS source_id;

    -- ==========================================================================
    -- DEFAULT DOCUMENT INDEX TABLE
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS document_index SCHEMALESS;
    DEFINE FIELD IF NOT EXISTS document_id ON document_index TYPE string;

    DEFINE INDEX IF NOT EXISTS doc_extraction_status ON document_index FIELDS extraction.status;
    DEFINE INDEX IF NOT EXISTS doc_source ON document_index FIELDS ingestion.source_id;
    DEFINE INDEX IF NOT EXISTS doc_job ON document_index FIELDS ingestion.job_id;
`
