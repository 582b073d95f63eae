package store

import (
	"context"
	"sort"
	"strings"

	"github.com/hsearch/hsearch/internal/hserr"
)

// SymbolEntry is one indexed symbol (a function, class, type, etc.
// discovered by internal/symbol during chunking).
type SymbolEntry struct {
	ChunkID    string
	Path       string
	Name       string
	Kind       SymbolType
	StartLine  int
	EndLine    int
	Signature  string
	DocComment string
}

// symbolKindPriority orders query results: function and method symbols
// surface before types, which surface before everything else, per
// exact and prefix name lookups.
var symbolKindPriority = map[SymbolType]int{
	SymbolTypeFunction:  0,
	SymbolTypeMethod:    1,
	SymbolTypeType:      2,
	SymbolTypeClass:     2,
	SymbolTypeInterface: 2,
	SymbolTypeConstant:  3,
	SymbolTypeVariable:  4,
}

func kindPriority(k SymbolType) int {
	if p, ok := symbolKindPriority[k]; ok {
		return p
	}
	return 5
}

// SymbolIndex is a name-keyed lookup
// (lowercased) returning exact matches before substring matches,
// ordered by (kind priority, name length ascending, path ascending).
type SymbolIndex struct {
	db *DB
}

// NewSymbolIndex wraps an already-open DB.
func NewSymbolIndex(db *DB) *SymbolIndex {
	return &SymbolIndex{db: db}
}

// AddChunkSymbols replaces the symbols recorded for chunkID.
func (s *SymbolIndex) AddChunkSymbols(ctx context.Context, chunkID, path string, symbols []SymbolEntry) error {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return hserr.Wrap(hserr.Io, "symbolindex: begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM symbols WHERE chunk_id = ?`, chunkID); err != nil {
		return hserr.Wrap(hserr.Io, "symbolindex: clear existing symbols", err)
	}
	for _, sym := range symbols {
		if _, err := tx.Exec(`
			INSERT INTO symbols (chunk_id, file_path, name, name_lower, kind, start_line, end_line, signature, doc_comment)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			chunkID, path, sym.Name, strings.ToLower(sym.Name), string(sym.Kind),
			sym.StartLine, sym.EndLine, sym.Signature, sym.DocComment); err != nil {
			return hserr.Wrap(hserr.Io, "symbolindex: insert symbol", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return hserr.Wrap(hserr.Io, "symbolindex: commit", err)
	}
	return nil
}

// Count returns the total number of indexed symbol rows, for the
// status operation's symbol_rows figure.
func (s *SymbolIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM symbols`).Scan(&n); err != nil {
		return 0, hserr.Wrap(hserr.Io, "symbolindex: count", err)
	}
	return n, nil
}

// DeleteByPath removes every symbol recorded under path.
func (s *SymbolIndex) DeleteByPath(ctx context.Context, path string) error {
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM symbols WHERE file_path = ?`, path)
	if err != nil {
		return hserr.Wrap(hserr.Io, "symbolindex: delete by path", err)
	}
	return nil
}

// Query returns symbols matching q (case-insensitive): exact
// name matches first, then substring matches, each group ordered by
// (kind priority, name length ascending, path ascending).
func (s *SymbolIndex) Query(ctx context.Context, q string, limit int) ([]SymbolEntry, error) {
	needle := strings.ToLower(strings.TrimSpace(q))
	if needle == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT chunk_id, file_path, name, kind, start_line, end_line, signature, doc_comment
		FROM symbols WHERE name_lower LIKE '%' || ? || '%' ESCAPE '\'`, escapeLike(needle))
	if err != nil {
		return nil, hserr.Wrap(hserr.Io, "symbolindex: query", err)
	}
	defer rows.Close()

	var exact, substr []SymbolEntry
	for rows.Next() {
		var e SymbolEntry
		var kind string
		if err := rows.Scan(&e.ChunkID, &e.Path, &e.Name, &kind, &e.StartLine, &e.EndLine, &e.Signature, &e.DocComment); err != nil {
			return nil, hserr.Wrap(hserr.Io, "symbolindex: scan row", err)
		}
		e.Kind = SymbolType(kind)
		if strings.ToLower(e.Name) == needle {
			exact = append(exact, e)
		} else {
			substr = append(substr, e)
		}
	}

	sortSymbols(exact)
	sortSymbols(substr)

	out := append(exact, substr...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortSymbols(entries []SymbolEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		pi, pj := kindPriority(entries[i].Kind), kindPriority(entries[j].Kind)
		if pi != pj {
			return pi < pj
		}
		if len(entries[i].Name) != len(entries[j].Name) {
			return len(entries[i].Name) < len(entries[j].Name)
		}
		return entries[i].Path < entries[j].Path
	})
}

// escapeLike escapes SQLite LIKE metacharacters so a literal query
// containing '%' or '_' is matched literally rather than as a wildcard.
func escapeLike(s string) string {
	r := strings.NewReplacer("\\", "\\\\", "%", "\\%", "_", "\\_")
	return r.Replace(s)
}
