package handler

import (
	"context"

	"eddn-ingester/internal/event"
	"eddn-ingester/internal/store"
)

const (
	reasonParentsNotLogged  = "Parent bodies are not already logged"
	reasonNoTerraformState  = "Lacking terraform information"
	reasonBodyTypeNotLogged = "Bodies of this type are not logged"
)

// handleScan records full body detail for a system that is already known.
// Scans never create systems.
func (s *Service) handleScan(ctx context.Context, ev *event.Scan) (Result, error) {
	systemID := event.FormatID(ev.SystemAddress)
	bodyID := event.FormatID(ev.BodyID)

	known, err := s.store.SystemExists(ctx, systemID)
	if err != nil {
		return Result{}, err
	}
	if !known {
		return ignored("", "", reasonParentsNotLogged), nil
	}

	distance := store.DistanceOrUnknown(ev.DistanceFromArrivalLS)

	switch {
	case ev.PlanetClass != nil:
		if ev.TerraformState == nil {
			return ignored(systemID, bodyID, reasonNoTerraformState), nil
		}
		err = s.store.UpsertPlanet(ctx, store.Planet{
			Name:           ev.BodyName,
			BodyID:         bodyID,
			SystemID:       systemID,
			Class:          ev.PlanetClass,
			TerraformState: ev.TerraformState,
			Mass:           ev.MassEM,
			Distance:       distance,
			Discovered:     ev.WasDiscovered,
			Mapped:         ev.WasMapped,
		})
	case ev.StarType != nil:
		err = s.store.UpsertStar(ctx, store.Star{
			Name:     ev.BodyName,
			BodyID:   bodyID,
			SystemID: systemID,
			Class:    ev.StarType,
			Mass:     ev.StellarMass,
			Distance: distance,
		})
	default:
		return ignored(systemID, "", reasonBodyTypeNotLogged), nil
	}
	if err != nil {
		return Result{}, err
	}

	return success(systemID, bodyID), nil
}
