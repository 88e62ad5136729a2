// Package handler applies validated feed events to the store.
package handler

import (
	"context"
	"log/slog"

	"eddn-ingester/internal/audit"
	"eddn-ingester/internal/event"
	"eddn-ingester/internal/shared/errors"
	"eddn-ingester/internal/store"
)

// Store is the subset of the persistent store the handlers use. Existence
// checks are advisory; every write must be insert-or-update.
type Store interface {
	SystemExists(ctx context.Context, systemID string) (bool, error)
	SystemExistsByName(ctx context.Context, name string) (bool, error)
	StarExists(ctx context.Context, systemID, bodyID string) (bool, error)
	PlanetExists(ctx context.Context, systemID, bodyID string) (bool, error)
	StationExists(ctx context.Context, systemID, stationName string) (bool, error)
	StationExistsInSystemNamed(ctx context.Context, systemName, stationName string) (bool, error)

	SystemIDByName(ctx context.Context, name string) (string, bool, error)
	StationBodyID(ctx context.Context, stationID string) (string, bool, error)

	UpsertSystem(ctx context.Context, system store.System) error
	UpsertStar(ctx context.Context, star store.Star) error
	UpsertPlanet(ctx context.Context, planet store.Planet) error
	UpsertStation(ctx context.Context, station store.Station) error
	UpsertCommodity(ctx context.Context, listing store.CommodityListing) (bool, error)
}

// Result is a handler outcome. Precondition failures are Ignored results,
// not errors.
type Result struct {
	Status           audit.Status
	Reasons          []string
	SystemOfInterest string
	BodyOfInterest   string
}

func success(systemID, bodyID string, reasons ...string) Result {
	return Result{Status: audit.StatusSuccess, Reasons: reasons, SystemOfInterest: systemID, BodyOfInterest: bodyID}
}

func ignored(systemID, bodyID string, reasons ...string) Result {
	return Result{Status: audit.StatusIgnored, Reasons: reasons, SystemOfInterest: systemID, BodyOfInterest: bodyID}
}

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(s Store, logger *slog.Logger) *Service {
	return &Service{
		store:  s,
		logger: logger.With("component", "handler"),
	}
}

// Handle dispatches ev to its handler. The returned error is always a store
// or internal failure.
func (s *Service) Handle(ctx context.Context, ev event.Event) (Result, error) {
	switch ev := ev.(type) {
	case *event.SystemJump:
		return s.handleSystemJump(ctx, ev)
	case *event.Location:
		return s.handleLocation(ctx, ev)
	case *event.Scan:
		return s.handleScan(ctx, ev)
	case *event.CommoditySnapshot:
		return s.handleCommodity(ctx, ev)
	default:
		return Result{}, errors.Internalf("no handler for event %T", ev)
	}
}

// ensureSystem creates the system on first sighting.
func (s *Service) ensureSystem(ctx context.Context, name, systemID string, pos [3]float64) error {
	known, err := s.store.SystemExists(ctx, systemID)
	if err != nil {
		return err
	}
	if known {
		return nil
	}

	s.logger.Debug("Logging new system", "system_id", systemID, "name", name)
	return s.store.UpsertSystem(ctx, store.System{
		Name: name,
		ID:   systemID,
		X:    pos[0],
		Y:    pos[1],
		Z:    pos[2],
	})
}
