package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/skirmish/internal/combat/domain"
	"github.com/louisbranch/skirmish/internal/combat/storage"
)

// PutContest upserts a skill or attack contest. The full contest is stored
// as JSON; status is duplicated for filtered queries.
func (s *Store) PutContest(ctx context.Context, contest domain.Contest) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(contest.ID) == "" {
		return fmt.Errorf("contest id is required")
	}

	data, err := json.Marshal(contest)
	if err != nil {
		return fmt.Errorf("marshal contest: %w", err)
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO skill_contests (id, status, data, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   data = excluded.data`,
		contest.ID,
		contest.Status,
		string(data),
		toMillis(contest.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put contest: %w", err)
	}
	return nil
}

// GetContest returns one contest by id.
func (s *Store) GetContest(ctx context.Context, contestID string) (domain.Contest, error) {
	if err := s.ready(ctx); err != nil {
		return domain.Contest{}, err
	}
	contestID = strings.TrimSpace(contestID)
	if contestID == "" {
		return domain.Contest{}, fmt.Errorf("contest id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT data FROM skill_contests WHERE id = ?`, contestID)
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Contest{}, storage.ErrNotFound
		}
		return domain.Contest{}, fmt.Errorf("get contest: %w", err)
	}
	var contest domain.Contest
	if err := json.Unmarshal([]byte(data), &contest); err != nil {
		return domain.Contest{}, fmt.Errorf("unmarshal contest: %w", err)
	}
	return contest, nil
}
