package store

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/hsearch/hsearch/internal/hserr"
)

// MetadataStore persists Project/File/Chunk records and small bits of
// runtime state (dimension/model bookkeeping, resumable-index
// checkpoints) in the same SQLite database the Text and Symbol Indexes
// use: project stats, changed-file queries for incremental reindex,
// and a key-value state table, trimmed to what the Indexer, Expander,
// and Orchestrator actually consume.
type MetadataStore struct {
	db *DB
}

// NewMetadataStore wraps an already-open DB.
func NewMetadataStore(db *DB) *MetadataStore {
	return &MetadataStore{db: db}
}

func (m *MetadataStore) SaveProject(ctx context.Context, p *Project) error {
	_, err := m.db.conn.ExecContext(ctx, `
		INSERT INTO projects (id, name, root_path, project_type, chunk_count, file_count, indexed_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, root_path=excluded.root_path, project_type=excluded.project_type,
			chunk_count=excluded.chunk_count, file_count=excluded.file_count,
			indexed_at=excluded.indexed_at, version=excluded.version`,
		p.ID, p.Name, p.RootPath, p.ProjectType, p.ChunkCount, p.FileCount, p.IndexedAt.Unix(), p.Version)
	if err != nil {
		return hserr.Wrap(hserr.Io, "metadata: save project", err)
	}
	return nil
}

func (m *MetadataStore) GetProject(ctx context.Context, id string) (*Project, error) {
	row := m.db.conn.QueryRowContext(ctx, `
		SELECT id, name, root_path, project_type, chunk_count, file_count, indexed_at, version
		FROM projects WHERE id = ?`, id)
	var p Project
	var indexedAt int64
	if err := row.Scan(&p.ID, &p.Name, &p.RootPath, &p.ProjectType, &p.ChunkCount, &p.FileCount, &indexedAt, &p.Version); err != nil {
		if err == sql.ErrNoRows {
			return nil, hserr.New(hserr.Resource, "metadata: project not found").WithPath(id)
		}
		return nil, hserr.Wrap(hserr.Io, "metadata: get project", err)
	}
	p.IndexedAt = time.Unix(indexedAt, 0).UTC()
	return &p, nil
}

func (m *MetadataStore) UpdateProjectStats(ctx context.Context, id string, fileCount, chunkCount int) error {
	_, err := m.db.conn.ExecContext(ctx, `
		UPDATE projects SET file_count = ?, chunk_count = ?, indexed_at = ? WHERE id = ?`,
		fileCount, chunkCount, time.Now().Unix(), id)
	if err != nil {
		return hserr.Wrap(hserr.Io, "metadata: update project stats", err)
	}
	return nil
}

func (m *MetadataStore) SaveFiles(ctx context.Context, files []*File) error {
	if len(files) == 0 {
		return nil
	}
	tx, err := m.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return hserr.Wrap(hserr.Io, "metadata: begin transaction", err)
	}
	defer tx.Rollback()

	for _, f := range files {
		if _, err := tx.Exec(`
			INSERT INTO files (id, project_id, path, size, mod_time, content_hash, language, content_type, indexed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				size=excluded.size, mod_time=excluded.mod_time, content_hash=excluded.content_hash,
				language=excluded.language, content_type=excluded.content_type, indexed_at=excluded.indexed_at`,
			f.ID, f.ProjectID, f.Path, f.Size, f.ModTime.Unix(), f.ContentHash, f.Language, f.ContentType, f.IndexedAt.Unix()); err != nil {
			return hserr.Wrap(hserr.Io, "metadata: save file", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return hserr.Wrap(hserr.Io, "metadata: commit files", err)
	}
	return nil
}

func (m *MetadataStore) GetFileByPath(ctx context.Context, projectID, path string) (*File, error) {
	row := m.db.conn.QueryRowContext(ctx, `
		SELECT id, project_id, path, size, mod_time, content_hash, language, content_type, indexed_at
		FROM files WHERE project_id = ? AND path = ?`, projectID, path)
	return scanFile(row)
}

// GetFileByID looks up a file by its id, used by callers (the
// Orchestrator's context expansion) that only have a chunk's FileID on
// hand, not its project/path pair.
func (m *MetadataStore) GetFileByID(ctx context.Context, id string) (*File, error) {
	row := m.db.conn.QueryRowContext(ctx, `
		SELECT id, project_id, path, size, mod_time, content_hash, language, content_type, indexed_at
		FROM files WHERE id = ?`, id)
	return scanFile(row)
}

func scanFile(row *sql.Row) (*File, error) {
	var f File
	var modTime, indexedAt int64
	if err := row.Scan(&f.ID, &f.ProjectID, &f.Path, &f.Size, &modTime, &f.ContentHash, &f.Language, &f.ContentType, &indexedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, hserr.Wrap(hserr.Io, "metadata: scan file", err)
	}
	f.ModTime = time.Unix(modTime, 0).UTC()
	f.IndexedAt = time.Unix(indexedAt, 0).UTC()
	return &f, nil
}

// GetFilePathsByProject lists every tracked path, used by the Indexer
// Driver to detect files removed from disk since the last index run.
func (m *MetadataStore) GetFilePathsByProject(ctx context.Context, projectID string) ([]string, error) {
	rows, err := m.db.conn.QueryContext(ctx, `SELECT path FROM files WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, hserr.Wrap(hserr.Io, "metadata: list file paths", err)
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, hserr.Wrap(hserr.Io, "metadata: scan file path", err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// GetFilesForReconciliation returns every tracked file keyed by path,
// so the indexer driver can diff disk state against stored content
// hashes in one pass (skip/replace/delete).
func (m *MetadataStore) GetFilesForReconciliation(ctx context.Context, projectID string) (map[string]*File, error) {
	rows, err := m.db.conn.QueryContext(ctx, `
		SELECT id, project_id, path, size, mod_time, content_hash, language, content_type, indexed_at
		FROM files WHERE project_id = ?`, projectID)
	if err != nil {
		return nil, hserr.Wrap(hserr.Io, "metadata: reconciliation query", err)
	}
	defer rows.Close()

	out := make(map[string]*File)
	for rows.Next() {
		var f File
		var modTime, indexedAt int64
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.Path, &f.Size, &modTime, &f.ContentHash, &f.Language, &f.ContentType, &indexedAt); err != nil {
			return nil, hserr.Wrap(hserr.Io, "metadata: scan reconciliation row", err)
		}
		f.ModTime = time.Unix(modTime, 0).UTC()
		f.IndexedAt = time.Unix(indexedAt, 0).UTC()
		out[f.Path] = &f
	}
	return out, nil
}

func (m *MetadataStore) DeleteFile(ctx context.Context, fileID string) error {
	_, err := m.db.conn.ExecContext(ctx, `DELETE FROM files WHERE id = ?`, fileID)
	if err != nil {
		return hserr.Wrap(hserr.Io, "metadata: delete file", err)
	}
	if _, err = m.db.conn.ExecContext(ctx, `DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
		return hserr.Wrap(hserr.Io, "metadata: cascade delete chunks", err)
	}
	return nil
}

func (m *MetadataStore) DeleteFilesByProject(ctx context.Context, projectID string) error {
	if _, err := m.db.conn.ExecContext(ctx, `DELETE FROM files WHERE project_id = ?`, projectID); err != nil {
		return hserr.Wrap(hserr.Io, "metadata: delete files by project", err)
	}
	return nil
}

func (m *MetadataStore) SaveChunks(ctx context.Context, chunks []*Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := m.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return hserr.Wrap(hserr.Io, "metadata: begin transaction", err)
	}
	defer tx.Rollback()

	for _, c := range chunks {
		if _, err := tx.Exec(`
			INSERT INTO chunks (id, file_id, file_path, content, raw_content, context, content_type, language,
				start_line, end_line, length, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				content=excluded.content, raw_content=excluded.raw_content, context=excluded.context,
				content_type=excluded.content_type, language=excluded.language,
				start_line=excluded.start_line, end_line=excluded.end_line, length=excluded.length,
				updated_at=excluded.updated_at`,
			c.ID, c.FileID, c.FilePath, c.Content, c.RawContent, c.Context, string(c.ContentType), c.Language,
			c.StartLine, c.EndLine, len(c.Content), c.CreatedAt.Unix(), c.UpdatedAt.Unix()); err != nil {
			return hserr.Wrap(hserr.Io, "metadata: save chunk", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return hserr.Wrap(hserr.Io, "metadata: commit chunks", err)
	}
	return nil
}

func (m *MetadataStore) GetChunk(ctx context.Context, id string) (*Chunk, error) {
	row := m.db.conn.QueryRowContext(ctx, `
		SELECT id, file_id, file_path, content, raw_content, context, content_type, language, start_line, end_line, created_at, updated_at
		FROM chunks WHERE id = ?`, id)
	return scanChunk(row)
}

func scanChunk(row *sql.Row) (*Chunk, error) {
	var c Chunk
	var contentType string
	var createdAt, updatedAt int64
	if err := row.Scan(&c.ID, &c.FileID, &c.FilePath, &c.Content, &c.RawContent, &c.Context, &contentType, &c.Language,
		&c.StartLine, &c.EndLine, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, hserr.New(hserr.Resource, "metadata: chunk not found")
		}
		return nil, hserr.Wrap(hserr.Io, "metadata: scan chunk", err)
	}
	c.ContentType = ContentType(contentType)
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &c, nil
}

// GetChunksByFile returns every chunk for fileID ordered by StartLine,
// the shape the context expander needs for above/below lookups.
func (m *MetadataStore) GetChunksByFile(ctx context.Context, fileID string) ([]*Chunk, error) {
	rows, err := m.db.conn.QueryContext(ctx, `
		SELECT id, file_id, file_path, content, raw_content, context, content_type, language, start_line, end_line, created_at, updated_at
		FROM chunks WHERE file_id = ? ORDER BY start_line`, fileID)
	if err != nil {
		return nil, hserr.Wrap(hserr.Io, "metadata: chunks by file", err)
	}
	defer rows.Close()

	var out []*Chunk
	for rows.Next() {
		var c Chunk
		var contentType string
		var createdAt, updatedAt int64
		if err := rows.Scan(&c.ID, &c.FileID, &c.FilePath, &c.Content, &c.RawContent, &c.Context, &contentType, &c.Language,
			&c.StartLine, &c.EndLine, &createdAt, &updatedAt); err != nil {
			return nil, hserr.Wrap(hserr.Io, "metadata: scan chunk row", err)
		}
		c.ContentType = ContentType(contentType)
		c.CreatedAt = time.Unix(createdAt, 0).UTC()
		c.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, &c)
	}
	return out, nil
}

func (m *MetadataStore) DeleteChunksByFile(ctx context.Context, fileID string) error {
	if _, err := m.db.conn.ExecContext(ctx, `DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
		return hserr.Wrap(hserr.Io, "metadata: delete chunks by file", err)
	}
	return nil
}

func (m *MetadataStore) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := m.db.conn.QueryRowContext(ctx, `SELECT value FROM kv_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", hserr.Wrap(hserr.Io, "metadata: get state", err)
	}
	return value, nil
}

func (m *MetadataStore) SetState(ctx context.Context, key, value string) error {
	_, err := m.db.conn.ExecContext(ctx, `
		INSERT INTO kv_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return hserr.Wrap(hserr.Io, "metadata: set state", err)
	}
	return nil
}

func (m *MetadataStore) SaveIndexCheckpoint(ctx context.Context, stage string, total, embeddedCount int, embedderModel string) error {
	now := time.Now()
	kv := map[string]string{
		StateKeyCheckpointStage:         stage,
		StateKeyCheckpointTotal:         strconv.Itoa(total),
		StateKeyCheckpointEmbedded:      strconv.Itoa(embeddedCount),
		StateKeyCheckpointTimestamp:     strconv.FormatInt(now.Unix(), 10),
		StateKeyCheckpointEmbedderModel: embedderModel,
	}
	for k, v := range kv {
		if err := m.SetState(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (m *MetadataStore) LoadIndexCheckpoint(ctx context.Context) (*IndexCheckpoint, error) {
	stage, err := m.GetState(ctx, StateKeyCheckpointStage)
	if err != nil {
		return nil, err
	}
	if stage == "" {
		return nil, nil
	}
	total, _ := m.GetState(ctx, StateKeyCheckpointTotal)
	embedded, _ := m.GetState(ctx, StateKeyCheckpointEmbedded)
	ts, _ := m.GetState(ctx, StateKeyCheckpointTimestamp)
	model, _ := m.GetState(ctx, StateKeyCheckpointEmbedderModel)
	totalN, _ := strconv.Atoi(total)
	embeddedN, _ := strconv.Atoi(embedded)
	tsN, _ := strconv.ParseInt(ts, 10, 64)
	return &IndexCheckpoint{
		Stage:         stage,
		Total:         totalN,
		EmbeddedCount: embeddedN,
		Timestamp:     time.Unix(tsN, 0).UTC(),
		EmbedderModel: model,
	}, nil
}

func (m *MetadataStore) ClearIndexCheckpoint(ctx context.Context) error {
	_, err := m.db.conn.ExecContext(ctx, `DELETE FROM kv_state WHERE key IN (?, ?, ?, ?, ?)`,
		StateKeyCheckpointStage, StateKeyCheckpointTotal, StateKeyCheckpointEmbedded,
		StateKeyCheckpointTimestamp, StateKeyCheckpointEmbedderModel)
	if err != nil {
		return hserr.Wrap(hserr.Io, "metadata: clear checkpoint", err)
	}
	return nil
}

