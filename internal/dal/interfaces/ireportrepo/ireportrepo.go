package ireportrepo

import (
	"context"

	"github.com/crashfeed/reporter/internal/service/models/report"
)

// IReportRepository defines the interface for pending-report storage.
type IReportRepository interface {
	// Add persists a pending record and returns it with its assigned ID
	Add(ctx context.Context, rec report.Record) (report.Record, error)

	// Remove deletes a record after successful delivery or expiry
	Remove(ctx context.Context, rec report.Record) error

	// ListForDestination retrieves all pending records for one destination,
	// oldest first
	ListForDestination(ctx context.Context, dest report.Destination) ([]report.Record, error)

	// ListDestinations retrieves every destination known to the index
	ListDestinations(ctx context.Context) ([]report.Destination, error)

	// PurgeUnusedDestinations removes destinations with no pending records
	PurgeUnusedDestinations(ctx context.Context) error
}
