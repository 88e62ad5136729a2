package handler

import (
	"context"
	"fmt"

	"eddn-ingester/internal/event"
	"eddn-ingester/internal/store"
)

// handleSystemJump logs the arrival system and, for star or planet arrival
// bodies, a placeholder body with unknown distance.
func (s *Service) handleSystemJump(ctx context.Context, ev *event.SystemJump) (Result, error) {
	systemID := event.FormatID(ev.SystemAddress)
	bodyID := event.FormatID(ev.BodyID)

	if err := s.ensureSystem(ctx, ev.StarSystem, systemID, ev.StarPos); err != nil {
		return Result{}, err
	}

	switch store.BodyType(ev.BodyType) {
	case store.BodyTypeStar:
		known, err := s.store.StarExists(ctx, systemID, bodyID)
		if err != nil {
			return Result{}, err
		}
		if !known {
			err = s.store.UpsertStar(ctx, store.Star{
				Name:     ev.Body,
				BodyID:   bodyID,
				SystemID: systemID,
				Distance: store.UnknownDistance,
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
		if !known {
			err = s.store.UpsertPlanet(ctx, store.Planet{
				Name:     ev.Body,
				BodyID:   bodyID,
				SystemID: systemID,
				Distance: store.UnknownDistance,
			})
			if err != nil {
				return Result{}, err
			}
		}
	default:
		return ignored(systemID, "", unsupportedBodyReason(ev.BodyType)), nil
	}

	return success(systemID, bodyID), nil
}

func unsupportedBodyReason(bodyType string) string {
	return fmt.Sprintf("Bodies of type %s are not logged with this event", bodyType)
}
