package transcript

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound covers both a missing transcript and one that belongs to a
// different owner. Callers cannot tell the two apart.
var ErrNotFound = errors.New("transcript not found")

// ErrEmptyAudio rejects uploads with no payload before any recognition runs.
var ErrEmptyAudio = errors.New("empty audio upload")

// Word is one recognized token. Start and End are seconds into the source
// audio; nil means the model produced no alignment for the token.
type Word struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

// Transcript is an owner-scoped persisted transcript record.
type Transcript struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Text      string    `json:"text"`
	Words     []Word    `json:"words"`
	Filename  *string   `json:"filename,omitempty"`
	Model     *string   `json:"model,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateFields are the writable fields of a new transcript. ID, owner and
// creation time are assigned by the store.
type CreateFields struct {
	Text     string
	Words    []Word
	Filename *string
	Model    *string
}

// UpdateFields are the fields a partial update may touch. Nil means leave
// unchanged; Words uses a pointer to a slice so an explicit empty sequence is
// expressible.
type UpdateFields struct {
	Text     *string
	Words    *[]Word
	Filename *string
}
