package database

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"strings"

	"iosplit/internal/contract"
)

// DocumentRecord is the ledger entry for one processed upload.
type DocumentRecord struct {
	ID         string
	Name       string
	PageCount  int
	BlockCount int
	UploadedAt *string
}

// ExportBatch records one append to the export sheet.
type ExportBatch struct {
	ID          int64
	DocumentID  string
	Shows       []string
	RowCount    int
	Fingerprint string
	SheetURL    *string
	ExportedAt  *string
}

// Stats contains aggregate ledger statistics.
type Stats struct {
	Documents     int
	ExportBatches int
	ExportedRows  int
}

// RecordDocument upserts the ledger entry for an uploaded document.
func (db *DB) RecordDocument(id, name string, pageCount, blockCount int) error {
	_, err := db.conn.Exec(
		`INSERT INTO documents (id, name, page_count, block_count) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name,
			page_count = excluded.page_count, block_count = excluded.block_count`,
		id, name, pageCount, blockCount,
	)
	return err
}

// RecordExport appends an export batch to the ledger.
func (db *DB) RecordExport(documentID string, shows []string, rowCount int, fingerprint, sheetURL string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO export_batches (document_id, shows, row_count, fingerprint, sheet_url)
		VALUES (?, ?, ?, ?, ?)`,
		documentID, strings.Join(shows, ", "), rowCount, fingerprint, sheetURL,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// LastExportFingerprint returns the fingerprint of the most recent export
// batch for a document, empty if none. Callers use it to flag a repeat
// export of identical rows.
func (db *DB) LastExportFingerprint(documentID string) (string, error) {
	var fp string
	err := db.conn.QueryRow(
		`SELECT fingerprint FROM export_batches WHERE document_id = ?
		ORDER BY id DESC LIMIT 1`, documentID,
	).Scan(&fp)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return fp, nil
}

// GetExportsForDocument returns a document's export batches, newest first.
func (db *DB) GetExportsForDocument(documentID string) ([]ExportBatch, error) {
	rows, err := db.conn.Query(
		`SELECT id, document_id, shows, row_count, fingerprint, sheet_url, exported_at
		FROM export_batches WHERE document_id = ? ORDER BY id DESC`, documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []ExportBatch
	for rows.Next() {
		var b ExportBatch
		var shows string
		if err := rows.Scan(&b.ID, &b.DocumentID, &shows, &b.RowCount, &b.Fingerprint, &b.SheetURL, &b.ExportedAt); err != nil {
			return nil, err
		}
		if shows != "" {
			b.Shows = strings.Split(shows, ", ")
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// GetStats returns aggregate ledger statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM documents").Scan(&s.Documents); err != nil {
		return nil, err
	}
	err := db.conn.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(row_count), 0) FROM export_batches",
	).Scan(&s.ExportBatches, &s.ExportedRows)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Fingerprint derives a stable digest of an export batch so identical
// re-exports can be recognised.
func Fingerprint(documentID string, rows []contract.ExportRow) string {
	h := sha256.New()
	h.Write([]byte(documentID))
	enc := json.NewEncoder(h)
	for _, r := range rows {
		enc.Encode(r)
	}
	return hex.EncodeToString(h.Sum(nil))
}
