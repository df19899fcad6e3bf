package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/zhikangxie107/transcribe/internal/auth"
	"github.com/zhikangxie107/transcribe/internal/queue"
)

// DisplayNameWorker applies the display name a user picked at signup to
// their identity-provider account. The write is best-effort from the API's
// point of view, but failures land here where they retry and get logged.
type DisplayNameWorker struct {
	identity *auth.IdentityClient
}

func NewDisplayNameWorker(identity *auth.IdentityClient) *DisplayNameWorker {
	return &DisplayNameWorker{identity: identity}
}

func (w *DisplayNameWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DisplayNameSetPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.DisplayName == "" {
		return nil
	}

	if err := w.identity.UpdateDisplayName(ctx, payload.IDToken, payload.DisplayName); err != nil {
		slog.Error("display name update failed", "error", err)
		return fmt.Errorf("update display name: %w", err)
	}
	return nil
}
