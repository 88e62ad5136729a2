package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"eddn-ingester/internal/shared/database"

	"github.com/lib/pq"
)

// Repository appends audit records to the logs table.
type Repository struct {
	db     *database.DB
	logger *slog.Logger
}

func NewRepository(db *database.DB, logger *slog.Logger) *Repository {
	logger.Debug("Initializing audit repository")

	return &Repository{
		db:     db,
		logger: logger.With("component", "audit_repository"),
	}
}

func (r *Repository) Name() string { return "postgres" }

func (r *Repository) Append(ctx context.Context, rec Record) error {
	query := `
		INSERT INTO logs (message_id, status, meta_message, event_type, schema_ref, payload,
			system_of_interest, body_of_interest, upload_timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	reasons := rec.Reasons
	if reasons == nil {
		reasons = []string{}
	}

	err := r.db.WithConn(ctx, func(exec database.Executor) error {
		_, err := exec.ExecContext(ctx, query,
			rec.MessageID.String(),
			string(rec.Status),
			pq.Array(reasons),
			rec.EventType,
			nullString(rec.SchemaRef),
			textPayload(rec.Payload),
			nullString(rec.SystemOfInterest),
			nullString(rec.BodyOfInterest),
			rec.Timestamp.UTC(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	r.logger.Debug("Audit record stored", "message_id", rec.MessageID.String(), "status", rec.Status)
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// textPayload makes arbitrary frame bytes storable in a TEXT column.
func textPayload(b []byte) string {
	s := strings.ToValidUTF8(string(b), "�")
	return strings.ReplaceAll(s, "\x00", "")
}
