package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/crashfeed/reporter/internal/dal/postgres"
	"github.com/crashfeed/reporter/internal/service/models/report"
)

// ReportRepository implements the pending-report repository for PostgreSQL.
type ReportRepository struct {
	client *postgres.Client
}

// NewReportRepository creates a new report repository.
func NewReportRepository(client *postgres.Client) *ReportRepository {
	return &ReportRepository{
		client: client,
	}
}

// Add persists a pending record, registering its destination in the index
// if it is not already known.
func (r *ReportRepository) Add(
	ctx context.Context,
	rec report.Record,
) (report.Record, error) {
	destID, err := r.upsertDestination(ctx, rec.Destination)
	if err != nil {
		return report.Record{}, err
	}

	query, args, err := sq.Insert("reports").
		Columns(
			"destination_id",
			"payload",
			"created_at",
		).
		Values(
			destID,
			rec.Payload,
			rec.CreatedAt,
		).
		Suffix("RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return report.Record{}, fmt.Errorf("failed to build insert query: %w", err)
	}

	if err := r.client.DB().QueryRowContext(ctx, query, args...).Scan(&rec.ID); err != nil {
		return report.Record{}, fmt.Errorf("failed to insert report: %w", err)
	}

	return rec, nil
}

// Remove deletes a record from the repository.
func (r *ReportRepository) Remove(ctx context.Context, rec report.Record) error {
	query, args, err := sq.Delete("reports").
		Where(sq.Eq{"id": rec.ID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}

	return nil
}

// ListForDestination retrieves all pending records for one destination,
// oldest first.
func (r *ReportRepository) ListForDestination(
	ctx context.Context,
	dest report.Destination,
) ([]report.Record, error) {
	query, args, err := sq.Select(
		"r.id",
		"r.payload",
		"r.created_at",
	).
		From("reports r").
		Join("destinations d ON d.id = r.destination_id").
		Where(sq.Eq{"d.endpoint": dest.Endpoint, "d.api_key": dest.APIKey}).
		OrderBy("r.created_at ASC", "r.id ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var records []report.Record
	for rows.Next() {
		rec := report.Record{Destination: dest}
		if err := rows.Scan(&rec.ID, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}

	return records, nil
}

// ListDestinations retrieves every destination known to the index.
func (r *ReportRepository) ListDestinations(
	ctx context.Context,
) ([]report.Destination, error) {
	query, args, err := sq.Select("endpoint", "api_key").
		From("destinations").
		OrderBy("id ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build select query: %w", err)
	}

	rows, err := r.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query destinations: %w", err)
	}
	defer rows.Close()

	var dests []report.Destination
	for rows.Next() {
		var dest report.Destination
		if err := rows.Scan(&dest.Endpoint, &dest.APIKey); err != nil {
			return nil, fmt.Errorf("failed to scan destination: %w", err)
		}
		dests = append(dests, dest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating destinations: %w", err)
	}

	return dests, nil
}

// PurgeUnusedDestinations removes destinations with no pending records.
func (r *ReportRepository) PurgeUnusedDestinations(ctx context.Context) error {
	query, args, err := sq.Delete("destinations d").
		Where(sq.Expr("NOT EXISTS (SELECT 1 FROM reports r WHERE r.destination_id = d.id)")).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}

	_, err = r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to purge destinations: %w", err)
	}

	return nil
}

func (r *ReportRepository) upsertDestination(
	ctx context.Context,
	dest report.Destination,
) (int64, error) {
	query, args, err := sq.Insert("destinations").
		Columns("endpoint", "api_key").
		Values(dest.Endpoint, dest.APIKey).
		Suffix("ON CONFLICT (endpoint, api_key) DO UPDATE SET endpoint = EXCLUDED.endpoint RETURNING id").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build upsert query: %w", err)
	}

	var id int64
	if err := r.client.DB().QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to upsert destination: %w", err)
	}

	return id, nil
}
