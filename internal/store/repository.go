// Package store persists systems, bodies, stations and commodity listings in Postgres.
package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"log/slog"

	"eddn-ingester/internal/shared/database"
	"eddn-ingester/internal/shared/errors"
)

// Store issues each statement on its own pooled connection with autocommit.
// Writes are insert-or-update, so any of them can be retried or raced safely.
type Store struct {
	db     *database.DB
	logger *slog.Logger
}

func New(db *database.DB, logger *slog.Logger) *Store {
	logger.Debug("Initializing store")

	return &Store{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.WithConn(ctx, func(exec database.Executor) error {
		var one int
		if err := exec.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			return errors.WrapStore("database ping failed", err)
		}
		return nil
	})
}

func (s *Store) exists(ctx context.Context, operation, query string, args ...interface{}) (bool, error) {
	var found bool
	err := s.db.WithConn(ctx, func(exec database.Executor) error {
		return exec.QueryRowContext(ctx, query, args...).Scan(&found)
	})
	if err != nil {
		s.logger.Error("Existence check failed", "operation", operation, "error", err)
		return false, errors.WrapStore("failed to "+operation, err)
	}
	return found, nil
}

func (s *Store) SystemExists(ctx context.Context, systemID string) (bool, error) {
	return s.exists(ctx, "check system",
		`SELECT EXISTS(SELECT 1 FROM systems WHERE system_id = $1)`, systemID)
}

func (s *Store) SystemExistsByName(ctx context.Context, name string) (bool, error) {
	return s.exists(ctx, "check system by name",
		`SELECT EXISTS(SELECT 1 FROM systems WHERE name = $1)`, name)
}

func (s *Store) StarExists(ctx context.Context, systemID, bodyID string) (bool, error) {
	return s.exists(ctx, "check star",
		`SELECT EXISTS(SELECT 1 FROM stars WHERE system_id = $1 AND body_id = $2)`, systemID, bodyID)
}

func (s *Store) PlanetExists(ctx context.Context, systemID, bodyID string) (bool, error) {
	return s.exists(ctx, "check planet",
		`SELECT EXISTS(SELECT 1 FROM planets WHERE system_id = $1 AND body_id = $2)`, systemID, bodyID)
}

func (s *Store) StationExists(ctx context.Context, systemID, stationName string) (bool, error) {
	return s.exists(ctx, "check station",
		`SELECT EXISTS(SELECT 1 FROM stations WHERE system_id = $1 AND name = $2)`, systemID, stationName)
}

func (s *Store) StationExistsInSystemNamed(ctx context.Context, systemName, stationName string) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1
			FROM stations st
			JOIN systems sy ON sy.system_id = st.system_id
			WHERE sy.name = $1 AND st.name = $2
		)
	`
	return s.exists(ctx, "check station by system name", query, systemName, stationName)
}

func (s *Store) lookup(ctx context.Context, operation, query string, arg interface{}) (string, bool, error) {
	var value sql.NullString
	err := s.db.WithConn(ctx, func(exec database.Executor) error {
		return exec.QueryRowContext(ctx, query, arg).Scan(&value)
	})
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		s.logger.Error("Lookup failed", "operation", operation, "error", err)
		return "", false, errors.WrapStore("failed to "+operation, err)
	}
	return value.String, value.Valid, nil
}

// SystemIDByName reports false when no system carries the name.
func (s *Store) SystemIDByName(ctx context.Context, name string) (string, bool, error) {
	return s.lookup(ctx, "look up system id",
		`SELECT system_id FROM systems WHERE name = $1 LIMIT 1`, name)
}

func (s *Store) StationBodyID(ctx context.Context, stationID string) (string, bool, error) {
	return s.lookup(ctx, "look up station body id",
		`SELECT body_id FROM stations WHERE station_id = $1`, stationID)
}

// UpsertSystem creates the system once; later observations never move it.
func (s *Store) UpsertSystem(ctx context.Context, system System) error {
	logger := s.logger.With("operation", "upsert_system", "system_id", system.ID)

	query := `
		INSERT INTO systems (name, system_id, x, y, z)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (system_id) DO NOTHING
	`

	err := s.db.WithConn(ctx, func(exec database.Executor) error {
		_, err := exec.ExecContext(ctx, query, system.Name, system.ID, system.X, system.Y, system.Z)
		return err
	})
	if err != nil {
		logger.Error("Failed to upsert system", "error", err)
		return errors.WrapStore("failed to upsert system", err)
	}

	logger.Debug("System upserted", "name", system.Name)
	return nil
}

const upsertBodyQuery = `
	INSERT INTO abstract_bodies (name, body_id, system_id, body_type, distance)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (body_id, system_id) DO UPDATE
	SET distance = EXCLUDED.distance
	WHERE EXCLUDED.distance >= 0
`

func (s *Store) UpsertStar(ctx context.Context, star Star) error {
	logger := s.logger.With("operation", "upsert_star", "system_id", star.SystemID, "body_id", star.BodyID)
	distance := NormalizeDistance(star.Distance)

	query := `
		INSERT INTO stars (name, body_id, system_id, class, mass, distance)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (body_id, system_id) DO UPDATE
		SET class = COALESCE(EXCLUDED.class, stars.class),
			mass = COALESCE(EXCLUDED.mass, stars.mass),
			distance = CASE WHEN EXCLUDED.distance >= 0 THEN EXCLUDED.distance ELSE stars.distance END
	`

	err := s.db.WithConn(ctx, func(exec database.Executor) error {
		if _, err := exec.ExecContext(ctx, upsertBodyQuery,
			star.Name, star.BodyID, star.SystemID, BodyTypeStar, distance); err != nil {
			return err
		}
		_, err := exec.ExecContext(ctx, query,
			star.Name, star.BodyID, star.SystemID, star.Class, star.Mass, distance)
		return err
	})
	if err != nil {
		logger.Error("Failed to upsert star", "error", err)
		return errors.WrapStore("failed to upsert star", err)
	}

	logger.Debug("Star upserted", "name", star.Name, "distance", distance)
	return nil
}

func (s *Store) UpsertPlanet(ctx context.Context, planet Planet) error {
	logger := s.logger.With("operation", "upsert_planet", "system_id", planet.SystemID, "body_id", planet.BodyID)
	distance := NormalizeDistance(planet.Distance)

	query := `
		INSERT INTO planets (name, body_id, system_id, class, terraforming_state, mass, distance, is_discovered, is_mapped)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (body_id, system_id) DO UPDATE
		SET class = COALESCE(EXCLUDED.class, planets.class),
			terraforming_state = COALESCE(EXCLUDED.terraforming_state, planets.terraforming_state),
			mass = COALESCE(EXCLUDED.mass, planets.mass),
			distance = CASE WHEN EXCLUDED.distance >= 0 THEN EXCLUDED.distance ELSE planets.distance END,
			is_discovered = COALESCE(EXCLUDED.is_discovered, planets.is_discovered),
			is_mapped = COALESCE(EXCLUDED.is_mapped, planets.is_mapped)
	`

	err := s.db.WithConn(ctx, func(exec database.Executor) error {
		if _, err := exec.ExecContext(ctx, upsertBodyQuery,
			planet.Name, planet.BodyID, planet.SystemID, BodyTypePlanet, distance); err != nil {
			return err
		}
		_, err := exec.ExecContext(ctx, query,
			planet.Name, planet.BodyID, planet.SystemID, planet.Class, planet.TerraformState,
			planet.Mass, distance, planet.Discovered, planet.Mapped)
		return err
	})
	if err != nil {
		logger.Error("Failed to upsert planet", "error", err)
		return errors.WrapStore("failed to upsert planet", err)
	}

	logger.Debug("Planet upserted", "name", planet.Name, "distance", distance)
	return nil
}

// UpsertStation keys on StationID (the market id) and refreshes type and
// last_updated on every call.
func (s *Store) UpsertStation(ctx context.Context, station Station) error {
	logger := s.logger.With("operation", "upsert_station", "station_id", station.StationID)
	distance := NormalizeDistance(station.Distance)

	query := `
		INSERT INTO stations (name, body_id, system_id, station_id, distance, station_type, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (station_id) DO UPDATE
		SET distance = CASE WHEN EXCLUDED.distance >= 0 THEN EXCLUDED.distance ELSE stations.distance END,
			station_type = EXCLUDED.station_type,
			last_updated = EXCLUDED.last_updated
	`

	err := s.db.WithConn(ctx, func(exec database.Executor) error {
		if _, err := exec.ExecContext(ctx, upsertBodyQuery,
			station.Name, station.BodyID, station.SystemID, BodyTypeStation, distance); err != nil {
			return err
		}
		_, err := exec.ExecContext(ctx, query,
			station.Name, station.BodyID, station.SystemID, station.StationID,
			distance, station.Type, station.LastUpdated.UTC())
		return err
	})
	if err != nil {
		logger.Error("Failed to upsert station", "error", err)
		return errors.WrapStore("failed to upsert station", err)
	}

	logger.Debug("Station upserted", "name", station.Name, "system_id", station.SystemID)
	return nil
}

// UpsertCommodity reports false when the stored row was observed later than
// listing, in which case the row is left untouched.
func (s *Store) UpsertCommodity(ctx context.Context, listing CommodityListing) (bool, error) {
	logger := s.logger.With("operation", "upsert_commodity", "commodity_id", listing.CommodityID)

	query := `
		INSERT INTO commodities (name, commodity_id, station_id, buy_price, sell_price, mean_price,
			units_in_stock, units_in_demand, observed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (commodity_id) DO UPDATE
		SET buy_price = EXCLUDED.buy_price,
			sell_price = EXCLUDED.sell_price,
			mean_price = EXCLUDED.mean_price,
			units_in_stock = EXCLUDED.units_in_stock,
			units_in_demand = EXCLUDED.units_in_demand,
			observed_at = EXCLUDED.observed_at
		WHERE commodities.observed_at <= EXCLUDED.observed_at
	`

	var applied bool
	err := s.db.WithConn(ctx, func(exec database.Executor) error {
		res, err := exec.ExecContext(ctx, query,
			listing.Name, listing.CommodityID, listing.StationID, listing.BuyPrice, listing.SellPrice,
			listing.MeanPrice, listing.Stock, listing.Demand, listing.ObservedAt.UTC())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		applied = n > 0
		return nil
	})
	if err != nil {
		logger.Error("Failed to upsert commodity", "error", err)
		return false, errors.WrapStore("failed to upsert commodity", err)
	}

	if !applied {
		logger.Debug("Stale commodity listing left in place", "observed_at", listing.ObservedAt)
	}
	return applied, nil
}
