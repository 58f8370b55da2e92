package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pandutama/tripbooking/internal/domain"
)

type PackageRepository interface {
	List(ctx context.Context) ([]domain.TourPackage, error)
	GetByID(ctx context.Context, id int64) (*domain.TourPackage, error)
}

type PGPackageRepository struct {
	db DB
}

func NewPackageRepository(db DB) PackageRepository {
	return &PGPackageRepository{db: db}
}

const packageColumns = `id, name, slug, destination, description, price, duration_days, max_participants, active, created_at, updated_at`

func (r *PGPackageRepository) List(ctx context.Context) ([]domain.TourPackage, error) {
	rows, err := r.db.Query(ctx, `SELECT `+packageColumns+` FROM tour_packages WHERE active ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%w: list packages: %v", domain.ErrUpstream, err)
	}
	defer rows.Close()

	var packages []domain.TourPackage
	for rows.Next() {
		var p domain.TourPackage
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.Destination, &p.Description, &p.Price,
			&p.DurationDays, &p.MaxParticipants, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan package: %v", domain.ErrUpstream, err)
		}
		packages = append(packages, p)
	}
	return packages, rows.Err()
}

func (r *PGPackageRepository) GetByID(ctx context.Context, id int64) (*domain.TourPackage, error) {
	row := r.db.QueryRow(ctx, `SELECT `+packageColumns+` FROM tour_packages WHERE id=$1`, id)
	var p domain.TourPackage
	if err := row.Scan(&p.ID, &p.Name, &p.Slug, &p.Destination, &p.Description, &p.Price,
		&p.DurationDays, &p.MaxParticipants, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get package: %v", domain.ErrUpstream, err)
	}
	return &p, nil
}

var _ PackageRepository = (*PGPackageRepository)(nil)
