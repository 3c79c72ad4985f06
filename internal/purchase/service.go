package purchase

import (
	"context"
	"log/slog"

	"github.com/nabeul-archive/poemap/internal/location"
	"github.com/nabeul-archive/poemap/internal/profile"
)

// Service orchestrates the unlock workflow against the profile repository,
// the location catalog, and the grant store.
type Service struct {
	profiles  profile.Repository
	locations location.Repository
	grants    GrantStore
	logger    *slog.Logger
}

// NewService creates a purchase service.
func NewService(profiles profile.Repository, locations location.Repository, grants GrantStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		profiles:  profiles,
		locations: locations,
		grants:    grants,
		logger:    logger,
	}
}

// Purchase unlocks the location for the viewer. Admin viewers see every
// location without paying, so nothing is debited or recorded for them.
// Everyone else goes through the atomic debit-and-grant in the store.
func (s *Service) Purchase(ctx context.Context, viewerID, locationID string) (*Receipt, error) {
	p, err := s.profiles.GetOrCreate(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	loc, err := s.locations.GetByID(ctx, locationID)
	if err != nil {
		return nil, err
	}

	if p.IsAdmin() {
		return &Receipt{
			LocationID:  locationID,
			PricePaid:   0,
			NewBalance:  p.Balance,
			AdminBypass: true,
		}, nil
	}

	balance, err := s.grants.Grant(ctx, viewerID, locationID, loc.Price)
	if err != nil {
		return nil, err
	}

	s.logger.Info("location unlocked",
		slog.String("user_id", viewerID),
		slog.String("location_id", locationID),
		slog.Int64("price", loc.Price),
		slog.Int64("balance", balance))

	return &Receipt{
		LocationID: locationID,
		PricePaid:  loc.Price,
		NewBalance: balance,
	}, nil
}

// Location resolves a catalog entry by ID. Convenience for callers that
// already hold the purchase service but not the catalog itself.
func (s *Service) Location(ctx context.Context, locationID string) (*location.Location, error) {
	return s.locations.GetByID(ctx, locationID)
}

// Unlocked reports whether the viewer may see the location's full content.
// An empty viewerID means an anonymous session, which never has access.
func (s *Service) Unlocked(ctx context.Context, viewerID, locationID string) (bool, error) {
	if viewerID == "" {
		return false, nil
	}

	p, err := s.profiles.GetOrCreate(ctx, viewerID)
	if err != nil {
		return false, err
	}
	if p.IsAdmin() {
		return true, nil
	}

	return s.grants.Has(ctx, viewerID, locationID)
}

// UnlockedSet returns the IDs of every location the viewer has unlocked.
// Admin viewers get every catalog entry.
func (s *Service) UnlockedSet(ctx context.Context, viewerID string) (map[string]bool, error) {
	out := make(map[string]bool)
	if viewerID == "" {
		return out, nil
	}

	p, err := s.profiles.GetOrCreate(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	if p.IsAdmin() {
		locs, err := s.locations.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, loc := range locs {
			out[loc.ID] = true
		}
		return out, nil
	}

	grants, err := s.grants.ListByUser(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	for _, g := range grants {
		out[g.LocationID] = true
	}
	return out, nil
}
