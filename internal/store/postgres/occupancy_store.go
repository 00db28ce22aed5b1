package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/iRail/occupancy-api/internal/store"
	"github.com/iRail/occupancy-api/types"
	"github.com/jackc/pgx/v5"
)

// Querier is the subset of *pgxpool.Pool the store needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OccupancyStore implements store.OccupancyStore on PostgreSQL.
type OccupancyStore struct {
	db    Querier
	newID func() string
}

var _ store.OccupancyStore = (*OccupancyStore)(nil)

// NewOccupancyStore creates a new OccupancyStore.
func NewOccupancyStore(db Querier) *OccupancyStore {
	return &OccupancyStore{
		db:    db,
		newID: uuid.NewString,
	}
}

// SaveFeedback inserts the report. Values are written exactly as submitted.
func (s *OccupancyStore) SaveFeedback(ctx context.Context, feedback *types.OccupancyFeedback) error {
	query := `
		INSERT INTO occupancy_feedback (id, connection, from_station, to_station, feedback_date, vehicle, occupancy)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	id := s.newID()
	err := s.db.QueryRow(ctx, query,
		id,
		feedback.Connection,
		feedback.From,
		feedback.To,
		feedback.Date,
		feedback.Vehicle,
		string(feedback.Occupancy),
	).Scan(&feedback.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert occupancy feedback: %w", err)
	}

	feedback.ID = id
	return nil
}

