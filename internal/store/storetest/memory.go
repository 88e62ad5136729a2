// Package storetest provides an in-memory store with the same upsert rules as
// the Postgres store, for handler and worker tests.
package storetest

import (
	"context"
	"sync"

	"eddn-ingester/internal/store"
)

type bodyKey struct {
	systemID string
	bodyID   string
}

type Memory struct {
	mu          sync.Mutex
	err         error
	systems     map[string]store.System
	stars       map[bodyKey]store.Star
	planets     map[bodyKey]store.Planet
	stations    map[string]store.Station
	commodities map[string]store.CommodityListing
	writes      int
}

func NewMemory() *Memory {
	return &Memory{
		systems:     make(map[string]store.System),
		stars:       make(map[bodyKey]store.Star),
		planets:     make(map[bodyKey]store.Planet),
		stations:    make(map[string]store.Station),
		commodities: make(map[string]store.CommodityListing),
	}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Memory) SystemExists(ctx context.Context, systemID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.systems[systemID]
	return ok, nil
}

func (m *Memory) SystemExistsByName(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.systemByName(name)
	return ok, nil
}

func (m *Memory) StarExists(ctx context.Context, systemID, bodyID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.stars[bodyKey{systemID, bodyID}]
	return ok, nil
}

func (m *Memory) PlanetExists(ctx context.Context, systemID, bodyID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.planets[bodyKey{systemID, bodyID}]
	return ok, nil
}

func (m *Memory) StationExists(ctx context.Context, systemID, stationName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	return m.stationIn(systemID, stationName), nil
}

func (m *Memory) StationExistsInSystemNamed(ctx context.Context, systemName, stationName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	sys, ok := m.systemByName(systemName)
	if !ok {
		return false, nil
	}
	return m.stationIn(sys.ID, stationName), nil
}

func (m *Memory) SystemIDByName(ctx context.Context, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	sys, ok := m.systemByName(name)
	return sys.ID, ok, nil
}

func (m *Memory) StationBodyID(ctx context.Context, stationID string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	st, ok := m.stations[stationID]
	return st.BodyID, ok, nil
}

func (m *Memory) UpsertSystem(ctx context.Context, system store.System) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.writes++
	if _, ok := m.systems[system.ID]; !ok {
		m.systems[system.ID] = system
	}
	return nil
}

func (m *Memory) UpsertStar(ctx context.Context, star store.Star) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.writes++
	star.Distance = store.NormalizeDistance(star.Distance)

	key := bodyKey{star.SystemID, star.BodyID}
	if cur, ok := m.stars[key]; ok {
		star.Class = coalesce(star.Class, cur.Class)
		star.Mass = coalesce(star.Mass, cur.Mass)
		star.Distance = mergeDistance(star.Distance, cur.Distance)
	}
	m.stars[key] = star
	return nil
}

func (m *Memory) UpsertPlanet(ctx context.Context, planet store.Planet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.writes++
	planet.Distance = store.NormalizeDistance(planet.Distance)

	key := bodyKey{planet.SystemID, planet.BodyID}
	if cur, ok := m.planets[key]; ok {
		planet.Class = coalesce(planet.Class, cur.Class)
		planet.TerraformState = coalesce(planet.TerraformState, cur.TerraformState)
		planet.Mass = coalesce(planet.Mass, cur.Mass)
		planet.Discovered = coalesce(planet.Discovered, cur.Discovered)
		planet.Mapped = coalesce(planet.Mapped, cur.Mapped)
		planet.Distance = mergeDistance(planet.Distance, cur.Distance)
	}
	m.planets[key] = planet
	return nil
}

func (m *Memory) UpsertStation(ctx context.Context, station store.Station) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.writes++
	station.Distance = store.NormalizeDistance(station.Distance)

	if cur, ok := m.stations[station.StationID]; ok {
		station.Distance = mergeDistance(station.Distance, cur.Distance)
	}
	m.stations[station.StationID] = station
	return nil
}

func (m *Memory) UpsertCommodity(ctx context.Context, listing store.CommodityListing) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	m.writes++

	if cur, ok := m.commodities[listing.CommodityID]; ok && cur.ObservedAt.After(listing.ObservedAt) {
		return false, nil
	}
	m.commodities[listing.CommodityID] = listing
	return true, nil
}

func (m *Memory) System(id string) (store.System, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.systems[id]
	return s, ok
}

func (m *Memory) Star(systemID, bodyID string) (store.Star, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stars[bodyKey{systemID, bodyID}]
	return s, ok
}

func (m *Memory) Planet(systemID, bodyID string) (store.Planet, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.planets[bodyKey{systemID, bodyID}]
	return p, ok
}

func (m *Memory) Station(stationID string) (store.Station, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.stations[stationID]
	return s, ok
}

func (m *Memory) Commodity(commodityID string) (store.CommodityListing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.commodities[commodityID]
	return c, ok
}

func (m *Memory) Systems() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.systems)
}

func (m *Memory) Stars() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stars)
}

func (m *Memory) Planets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.planets)
}

func (m *Memory) Stations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stations)
}

func (m *Memory) Commodities() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.commodities)
}

// Writes counts upsert calls, including ones that changed nothing.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *Memory) systemByName(name string) (store.System, bool) {
	for _, s := range m.systems {
		if s.Name == name {
			return s, true
		}
	}
	return store.System{}, false
}

func (m *Memory) stationIn(systemID, name string) bool {
	for _, st := range m.stations {
		if st.SystemID == systemID && st.Name == name {
			return true
		}
	}
	return false
}

func coalesce[T any](incoming, stored *T) *T {
	if incoming != nil {
		return incoming
	}
	return stored
}

func mergeDistance(incoming, stored float64) float64 {
	if incoming >= 0 {
		return incoming
	}
	return stored
}
