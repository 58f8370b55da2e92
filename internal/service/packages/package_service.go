package packages

import (
	"context"

	"github.com/pandutama/tripbooking/internal/domain"
	"github.com/pandutama/tripbooking/internal/repository"
)

type PackageUseCase interface {
	List(ctx context.Context) ([]domain.TourPackage, error)
	GetByID(ctx context.Context, id int64) (*domain.TourPackage, error)
}

type CatalogCache interface {
	GetPackages(ctx context.Context) ([]domain.TourPackage, error)
	SetPackages(ctx context.Context, packages []domain.TourPackage) error
}

type PackageService struct {
	repo  repository.PackageRepository
	cache CatalogCache
}

func NewPackageService(repo repository.PackageRepository, cache CatalogCache) *PackageService {
	return &PackageService{repo: repo, cache: cache}
}

func (s *PackageService) List(ctx context.Context) ([]domain.TourPackage, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetPackages(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	packages, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetPackages(ctx, packages)
	}
	return packages, nil
}

func (s *PackageService) GetByID(ctx context.Context, id int64) (*domain.TourPackage, error) {
	return s.repo.GetByID(ctx, id)
}

var _ PackageUseCase = (*PackageService)(nil)
