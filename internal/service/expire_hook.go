package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/HibiKier/wuthering-waves/internal/domain"
	"github.com/HibiKier/wuthering-waves/internal/repository"
	"github.com/HibiKier/wuthering-waves/pkg/cache"
)

// ExpireSessionHook returns the hook the API client runs when a response
// says a player's login expired. The player's session is marked INVALID and
// its cached access token dropped, but only when the rejected token is the
// one stored for that player: a borrowed session failing says nothing about
// the target player's own login.
func ExpireSessionHook(sessions repository.SessionRepository, tokens cache.Store) func(ctx context.Context, playerID, token string) error {
	return func(ctx context.Context, playerID, token string) error {
		record, err := sessions.GetByPlayerID(ctx, playerID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to load session for player %s: %w", playerID, err)
		}
		if record.SessionToken != token || record.Status == domain.SessionStatusInvalid {
			return nil
		}

		if err := sessions.UpdateStatus(ctx, playerID, domain.SessionStatusInvalid); err != nil {
			return fmt.Errorf("failed to expire session for player %s: %w", playerID, err)
		}
		if tokens != nil {
			if err := tokens.Delete(ctx, playerID); err != nil {
				return fmt.Errorf("failed to drop access token for player %s: %w", playerID, err)
			}
		}
		return nil
	}
}
