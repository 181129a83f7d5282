package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"admissions-workers/internal/models"
)

// Documents stores the latest uploaded file of each kind per student.
type Documents struct {
	db *sql.DB
}

func NewDocuments(db *sql.DB) *Documents {
	return &Documents{db: db}
}

// SaveDocument replaces the student's document of the same kind.
func (d *Documents) SaveDocument(ctx context.Context, doc models.StudentDocument) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO student_documents (student_id, kind, file_name, object_key, url, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, kind) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			object_key = EXCLUDED.object_key,
			url = EXCLUDED.url,
			uploaded_at = EXCLUDED.uploaded_at`,
		doc.StudentID, doc.Kind, doc.FileName, doc.ObjectKey, doc.URL, doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}
	return nil
}

// ListDocuments returns a student's documents ordered by kind.
func (d *Documents) ListDocuments(ctx context.Context, studentID string) ([]models.StudentDocument, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT student_id, kind, file_name, object_key, url, uploaded_at
		FROM student_documents WHERE student_id = $1 ORDER BY kind`, studentID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]models.StudentDocument, 0)
	for rows.Next() {
		var doc models.StudentDocument
		if err := rows.Scan(&doc.StudentID, &doc.Kind, &doc.FileName, &doc.ObjectKey, &doc.URL, &doc.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}
