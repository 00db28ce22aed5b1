package store

import (
	"context"

	"github.com/iRail/occupancy-api/types"
)

// OccupancyStore persists validated occupancy reports.
type OccupancyStore interface {
	// SaveFeedback stores the report and fills in its ID and CreatedAt.
	SaveFeedback(ctx context.Context, feedback *types.OccupancyFeedback) error
}
