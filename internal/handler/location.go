package handler

import (
	"context"
	"fmt"
	"time"

	"eddn-ingester/internal/event"
	"eddn-ingester/internal/store"
)

// handleLocation logs the system and the current body. A present distance
// always refreshes the stored row, even for known bodies and stations.
func (s *Service) handleLocation(ctx context.Context, ev *event.Location) (Result, error) {
	systemID := event.FormatID(ev.SystemAddress)
	bodyID := event.FormatID(ev.BodyID)
	hasDistance := ev.DistFromStarLS != nil
	distance := store.DistanceOrUnknown(ev.DistFromStarLS)

	var reasons []string

	if err := s.ensureSystem(ctx, ev.StarSystem, systemID, ev.StarPos); err != nil {
		return Result{}, err
	}

	switch store.BodyType(ev.BodyType) {
	case store.BodyTypeStar:
		known, err := s.store.StarExists(ctx, systemID, bodyID)
		if err != nil {
			return Result{}, err
		}
		if !known || hasDistance {
			err = s.store.UpsertStar(ctx, store.Star{
				Name:     ev.Body,
				BodyID:   bodyID,
				SystemID: systemID,
				Distance: distance,
			})
			if err != nil {
				return Result{}, err
			}
		}
	case store.BodyTypePlanet:
		known, err := s.store.PlanetExists(ctx, systemID, bodyID)
		if err != nil {
			return Result{}, err
		}
		if !known || hasDistance {
			err = s.store.UpsertPlanet(ctx, store.Planet{
				Name:     ev.Body,
				BodyID:   bodyID,
				SystemID: systemID,
				Distance: distance,
			})
			if err != nil {
				return Result{}, err
			}
		}
	default:
		// A docked Station body is covered by the station write below.
		if !ev.Docked || store.BodyType(ev.BodyType) != store.BodyTypeStation {
			reasons = append(reasons, unsupportedBodyReason(ev.BodyType))
		}
	}

	if ev.Docked {
		reason, err := s.logDockedStation(ctx, ev, systemID, bodyID, hasDistance, distance)
		if err != nil {
			return Result{}, err
		}
		if reason != "" {
			reasons = append(reasons, reason)
		}
	}

	return success(systemID, bodyID, reasons...), nil
}

func (s *Service) logDockedStation(ctx context.Context, ev *event.Location, systemID, bodyID string, hasDistance bool, distance float64) (string, error) {
	if ev.MarketID == nil {
		return fmt.Sprintf("Station %s has no market id", ev.StationName), nil
	}

	known, err := s.store.StationExists(ctx, systemID, ev.StationName)
	if err != nil {
		return "", err
	}
	if known && !hasDistance {
		return "", nil
	}

	updated := ev.Timestamp
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	return "", s.store.UpsertStation(ctx, store.Station{
		Name:        ev.StationName,
		BodyID:      bodyID,
		SystemID:    systemID,
		StationID:   event.FormatID(*ev.MarketID),
		Distance:    distance,
		Type:        ev.StationType,
		LastUpdated: updated,
	})
}
