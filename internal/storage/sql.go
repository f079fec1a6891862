package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/kura/internal/fileid"
	"github.com/hyperjump/kura/internal/models"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	// schema is executed statement by statement on Initialize.
	schema []string
	// numbered placeholders ($1, $2) instead of ?.
	numbered bool
	// vectorArg converts an embedding to a driver value.
	vectorArg func([]float32) any
}

// sqlStore implements every Storage operation that is plain SQL. Backends
// embed it and add SearchSimilar.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

// q rewrites ? placeholders for the dialect.
func (s *sqlStore) q(query string) string {
	if !s.d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) Initialize(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return storageErr("create schema", err)
		}
	}
	stored, err := s.setMetaIfAbsent(ctx, metaKeyVersion, models.SchemaVersion)
	if err != nil {
		return err
	}
	return checkVersion(stored)
}

func (s *sqlStore) VerifyOrSetModel(ctx context.Context, model string) error {
	stored, err := s.setMetaIfAbsent(ctx, metaKeyModel, model)
	if err != nil {
		return err
	}
	return checkModel(stored, model)
}

// setMetaIfAbsent writes key=value unless key is already set and returns the stored value.
func (s *sqlStore) setMetaIfAbsent(ctx context.Context, key, value string) (string, error) {
	if _, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT (key) DO NOTHING`),
		key, value); err != nil {
		return "", storageErr("write meta", err)
	}
	stored, err := s.meta(ctx, key)
	if err != nil {
		return "", err
	}
	return stored, nil
}

func (s *sqlStore) meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT value FROM meta WHERE key = ?`), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", storageErr("read meta", err)
	}
	return value, nil
}

func (s *sqlStore) GetMetaInfo(ctx context.Context) (*models.MetaInfo, error) {
	version, err := s.meta(ctx, metaKeyVersion)
	if err != nil {
		return nil, err
	}
	if version == "" {
		return nil, fmt.Errorf("meta record: %w", ErrNotFound)
	}
	model, err := s.meta(ctx, metaKeyModel)
	if err != nil {
		return nil, err
	}
	return &models.MetaInfo{Version: version, EmbeddingModel: model}, nil
}

func (s *sqlStore) DocumentExists(ctx context.Context, path string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT EXISTS (SELECT 1 FROM documents WHERE file_path = ?)`), path).Scan(&exists)
	if err != nil {
		return false, storageErr("document exists", err)
	}
	return exists, nil
}

func (s *sqlStore) StoreDocument(ctx context.Context, path string, data []byte) (string, error) {
	id := fileid.NewID()
	if data == nil {
		data = []byte{}
	}
	res, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO documents (id, filename, file_path, file_type, file_size, file_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (file_path) DO NOTHING`),
		id, filepath.Base(path), path, fileType(path), int64(len(data)), data, time.Now().UTC())
	if err != nil {
		return "", storageErr("store document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", storageErr("store document", err)
	}
	if n == 0 {
		return "", fmt.Errorf("%s: %w", path, ErrDocumentExists)
	}
	return id, nil
}

const documentColumns = `id, filename, file_path, file_type, file_size, created_at`

func scanDocument(row interface{ Scan(...any) error }, withData bool) (*models.Document, error) {
	var doc models.Document
	dest := []any{&doc.ID, &doc.Filename, &doc.FilePath, &doc.Format, &doc.Size, &doc.CreatedAt}
	if withData {
		dest = append(dest, &doc.Data)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *sqlStore) getDocumentBy(ctx context.Context, column, value string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx,
		s.q(`SELECT `+documentColumns+`, file_data FROM documents WHERE `+column+` = ?`), value)
	doc, err := scanDocument(row, true)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", value, ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("get document", err)
	}
	return doc, nil
}

func (s *sqlStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	return s.getDocumentBy(ctx, "id", id)
}

func (s *sqlStore) FindDocumentByPath(ctx context.Context, path string) (*models.Document, error) {
	return s.getDocumentBy(ctx, "file_path", path)
}

func (s *sqlStore) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		return nil, nil
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+documentColumns+` FROM documents ORDER BY created_at, id LIMIT ? OFFSET ?`),
		limit, offset)
	if err != nil {
		return nil, storageErr("list documents", err)
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows, false)
		if err != nil {
			return nil, storageErr("list documents", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list documents", err)
	}
	return docs, nil
}

func (s *sqlStore) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("delete document", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM fragments WHERE document_id = ?`), id); err != nil {
		return storageErr("delete fragments", err)
	}
	res, err := tx.ExecContext(ctx, s.q(`DELETE FROM documents WHERE id = ?`), id)
	if err != nil {
		return storageErr("delete document", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err := tx.Commit(); err != nil {
		return storageErr("delete document", err)
	}
	return nil
}

func (s *sqlStore) StoreTextFragment(ctx context.Context, documentID string, order int, content string) (string, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		s.q(`SELECT EXISTS (SELECT 1 FROM documents WHERE id = ?)`), documentID).Scan(&exists); err != nil {
		return "", storageErr("store fragment", err)
	}
	if !exists {
		return "", fmt.Errorf("document %s: %w", documentID, ErrNotFound)
	}

	id := fileid.NewID()
	if _, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO fragments (id, document_id, fragment_order, content, created_at)
		VALUES (?, ?, ?, ?, ?)`),
		id, documentID, order, content, time.Now().UTC()); err != nil {
		return "", storageErr("store fragment", err)
	}
	return id, nil
}

func (s *sqlStore) GetFragmentsByDocumentID(ctx context.Context, documentID string) ([]*models.Fragment, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, document_id, fragment_order, content, embedding IS NOT NULL, created_at
		FROM fragments WHERE document_id = ? ORDER BY fragment_order`), documentID)
	if err != nil {
		return nil, storageErr("get fragments", err)
	}
	defer rows.Close()

	var frags []*models.Fragment
	for rows.Next() {
		var f models.Fragment
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.Order, &f.Content, &f.HasEmbedding, &f.CreatedAt); err != nil {
			return nil, storageErr("get fragments", err)
		}
		frags = append(frags, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("get fragments", err)
	}
	return frags, nil
}

func (s *sqlStore) UpdateFragmentEmbedding(ctx context.Context, fragmentID string, embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("fragment %s: %w", fragmentID, ErrEmptyEmbedding)
	}
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE fragments SET embedding = ? WHERE id = ?`), s.d.vectorArg(embedding), fragmentID)
	if err != nil {
		return storageErr("update embedding", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageErr("update embedding", err)
	}
	if n == 0 {
		return fmt.Errorf("fragment %s: %w", fragmentID, ErrNotFound)
	}
	return nil
}

func (s *sqlStore) GetFragmentsWithoutEmbeddings(ctx context.Context, limit int) ([]models.PendingFragment, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT id, content FROM fragments
		WHERE embedding IS NULL
		ORDER BY document_id, fragment_order
		LIMIT ?`), limit)
	if err != nil {
		return nil, storageErr("pending fragments", err)
	}
	defer rows.Close()

	var out []models.PendingFragment
	for rows.Next() {
		var p models.PendingFragment
		if err := rows.Scan(&p.ID, &p.Content); err != nil {
			return nil, storageErr("pending fragments", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("pending fragments", err)
	}
	return out, nil
}

func (s *sqlStore) count(ctx context.Context, query string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, storageErr("count", err)
	}
	return n, nil
}

func (s *sqlStore) CountDocuments(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM documents`)
}

func (s *sqlStore) CountFragments(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM fragments`)
}

func (s *sqlStore) CountFragmentsWithoutEmbeddings(ctx context.Context) (int64, error) {
	return s.count(ctx, `SELECT COUNT(*) FROM fragments WHERE embedding IS NULL`)
}

// hydrate loads content for ranked fragment ids, keeping their order.
func (s *sqlStore) hydrate(ctx context.Context, ranked []rankedID) ([]*models.SimilarFragment, error) {
	if len(ranked) == 0 {
		return nil, nil
	}
	args := make([]any, len(ranked))
	marks := make([]string, len(ranked))
	for i, r := range ranked {
		args[i] = r.id
		marks[i] = "?"
	}
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT id, document_id, content FROM fragments WHERE id IN (`+strings.Join(marks, ", ")+`)`), args...)
	if err != nil {
		return nil, storageErr("load fragments", err)
	}
	defer rows.Close()

	byID := make(map[string]*models.SimilarFragment, len(ranked))
	for rows.Next() {
		var f models.SimilarFragment
		if err := rows.Scan(&f.FragmentID, &f.DocumentID, &f.Content); err != nil {
			return nil, storageErr("load fragments", err)
		}
		byID[f.FragmentID] = &f
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("load fragments", err)
	}

	out := make([]*models.SimilarFragment, 0, len(ranked))
	for _, r := range ranked {
		if f, ok := byID[r.id]; ok {
			f.Score = r.score
			out = append(out, f)
		}
	}
	return out, nil
}

type rankedID struct {
	id    string
	score float64
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
