// internal/database/game.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"pongd/internal/models"
)

// Persistence collaborator for game sessions. Every call here is
// fire-and-forget from the simulation's point of view: callers run them
// in their own goroutine and log failures, never propagating them into
// the tick path.

// CreateGame records a new game row plus its initial participants and
// observers in one transaction.
func CreateGame(ctx context.Context, gameID uuid.UUID, participants, observers []models.Gamer, competitionID *int64) error {
	if DB == nil {
		return nil
	}
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			INSERT INTO games (id, competition_id, status)
			VALUES ($1, $2, 'open')
			ON CONFLICT (id) DO NOTHING
		`
		if _, err := tx.Exec(ctx, q, gameID, competitionID); err != nil {
			return fmt.Errorf("insert game: %w", err)
		}
		for _, p := range participants {
			if p.UserID == models.BotID {
				continue
			}
			if err := insertMember(ctx, tx, gameID, p.UserID, "player"); err != nil {
				return err
			}
		}
		for _, o := range observers {
			if err := insertMember(ctx, tx, gameID, o.UserID, "viewer"); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertMember(ctx context.Context, tx pgx.Tx, gameID uuid.UUID, userID int64, role string) error {
	q := `
		INSERT INTO game_members (game_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (game_id, user_id) DO UPDATE SET role = $3
	`
	if _, err := tx.Exec(ctx, q, gameID, userID, role); err != nil {
		return fmt.Errorf("insert game member %d: %w", userID, err)
	}
	return nil
}

// AddParticipant registers a later-joining player on an existing game.
func AddParticipant(ctx context.Context, gameID uuid.UUID, userID int64) error {
	if DB == nil || userID == models.BotID {
		return nil
	}
	q := `
		INSERT INTO game_members (game_id, user_id, role)
		VALUES ($1, $2, 'player')
		ON CONFLICT (game_id, user_id) DO UPDATE SET role = 'player'
	`
	_, err := DB.Exec(ctx, q, gameID, userID)
	return err
}

// AddObserver registers a spectator on an existing game.
func AddObserver(ctx context.Context, gameID uuid.UUID, userID int64) error {
	if DB == nil {
		return nil
	}
	q := `
		INSERT INTO game_members (game_id, user_id, role)
		VALUES ($1, $2, 'viewer')
		ON CONFLICT (game_id, user_id) DO NOTHING
	`
	_, err := DB.Exec(ctx, q, gameID, userID)
	return err
}

// AddHistoryEntry writes one win/loss/termination history line for a user.
func AddHistoryEntry(ctx context.Context, event string, userID int64, gameID uuid.UUID) error {
	if DB == nil || userID == models.BotID {
		return nil
	}
	q := `
		INSERT INTO game_history (game_id, user_id, event)
		VALUES ($1, $2, $3)
	`
	_, err := DB.Exec(ctx, q, gameID, userID, event)
	return err
}

// UpdateGameWinner marks a game completed with its winner.
func UpdateGameWinner(ctx context.Context, gameID uuid.UUID, winnerID *int64) error {
	if DB == nil {
		return nil
	}
	q := `
		UPDATE games SET status = 'completed', winner_id = $2 WHERE id = $1
	`
	_, err := DB.Exec(ctx, q, gameID, winnerID)
	return err
}
