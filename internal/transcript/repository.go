package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository stores transcripts in Postgres. Every query filters on the
// owner, so a record under another owner behaves exactly like a missing one.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const transcriptColumns = "id, owner_id, text, words, filename, model, created_at"

func scanTranscript(row pgx.Row) (*Transcript, error) {
	var t Transcript
	var wordsRaw []byte
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Text, &wordsRaw, &t.Filename, &t.Model, &t.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(wordsRaw, &t.Words); err != nil {
		return nil, fmt.Errorf("decode words: %w", err)
	}
	if t.Words == nil {
		t.Words = []Word{}
	}
	return &t, nil
}

func (r *Repository) Create(ctx context.Context, owner string, fields CreateFields) (*Transcript, error) {
	words := fields.Words
	if words == nil {
		words = []Word{}
	}
	wordsJSON, err := json.Marshal(words)
	if err != nil {
		return nil, fmt.Errorf("encode words: %w", err)
	}

	t, err := scanTranscript(r.db.QueryRow(ctx,
		`INSERT INTO transcripts (owner_id, text, words, filename, model)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+transcriptColumns,
		owner, fields.Text, wordsJSON, fields.Filename, fields.Model,
	))
	if err != nil {
		return nil, fmt.Errorf("insert transcript: %w", err)
	}
	return t, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID, owner string) (*Transcript, error) {
	t, err := scanTranscript(r.db.QueryRow(ctx,
		`SELECT `+transcriptColumns+` FROM transcripts WHERE id = $1 AND owner_id = $2`,
		id, owner,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	return t, nil
}

func (r *Repository) List(ctx context.Context, owner string) ([]Transcript, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+transcriptColumns+` FROM transcripts WHERE owner_id = $1 ORDER BY created_at DESC`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	defer rows.Close()

	transcripts := []Transcript{}
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		transcripts = append(transcripts, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transcripts: %w", err)
	}
	return transcripts, nil
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, owner string, fields UpdateFields) error {
	sets, args, err := updateSet(fields)
	if err != nil {
		return err
	}
	if len(sets) == 0 {
		// Nothing to write, but the caller still gets NotFound semantics.
		_, err := r.Get(ctx, id, owner)
		return err
	}

	args = append(args, id, owner)
	query := fmt.Sprintf(
		"UPDATE transcripts SET %s WHERE id = $%d AND owner_id = $%d",
		strings.Join(sets, ", "), len(args)-1, len(args),
	)

	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update transcript: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// updateSet builds the SET clause for a partial update. Owner, id and
// creation time are never assignable through this path.
func updateSet(fields UpdateFields) ([]string, []any, error) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if fields.Text != nil {
		add("text", *fields.Text)
	}
	if fields.Words != nil {
		wordsJSON, err := json.Marshal(*fields.Words)
		if err != nil {
			return nil, nil, fmt.Errorf("encode words: %w", err)
		}
		add("words", wordsJSON)
	}
	if fields.Filename != nil {
		add("filename", *fields.Filename)
	}
	return sets, args, nil
}

// Delete is idempotent for missing records. A record under another owner is
// reported as NotFound and left untouched.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID, owner string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM transcripts WHERE id = $1 AND owner_id = $2`, id, owner)
	if err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM transcripts WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	if exists {
		return ErrNotFound
	}
	return nil
}
