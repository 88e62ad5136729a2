package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"eddn-ingester/internal/event"
	"eddn-ingester/internal/store"
)

// Salvage that shows up in markets but cannot be traded.
var untradable = map[string]struct{}{
	"DamagedEscapePod":   {},
	"Hostage":            {},
	"OccupiedCryoPod":    {},
	"PersonalEffects":    {},
	"WreckageComponents": {},
}

var untradablePrefixes = []string{"USS"}

func Tradable(name string) bool {
	if _, ok := untradable[name]; ok {
		return false
	}
	for _, prefix := range untradablePrefixes {
		if strings.HasPrefix(name, prefix) {
			return false
		}
	}
	return true
}

func (s *Service) handleCommodity(ctx context.Context, ev *event.CommoditySnapshot) (Result, error) {
	known, err := s.store.SystemExistsByName(ctx, ev.SystemName)
	if err != nil {
		return Result{}, err
	}
	if known {
		known, err = s.store.StationExistsInSystemNamed(ctx, ev.SystemName, ev.StationName)
		if err != nil {
			return Result{}, err
		}
	}
	if !known {
		return ignored("", "", reasonParentsNotLogged), nil
	}

	stationID := event.FormatID(ev.MarketID)

	systemID, _, err := s.store.SystemIDByName(ctx, ev.SystemName)
	if err != nil {
		return Result{}, err
	}
	bodyID, _, err := s.store.StationBodyID(ctx, stationID)
	if err != nil {
		return Result{}, err
	}

	if len(ev.Commodities) == 0 {
		return ignored(systemID, bodyID, "No commodities present"), nil
	}

	observed := ev.Timestamp
	if observed.IsZero() {
		observed = time.Now().UTC()
	}

	var reasons []string
	written, stale := 0, 0

	for _, c := range ev.Commodities {
		if !Tradable(c.Name) {
			reasons = append(reasons, fmt.Sprintf("Ignoring untradable commodity %s", c.Name))
			continue
		}

		applied, err := s.store.UpsertCommodity(ctx, store.CommodityListing{
			Name:        c.Name,
			CommodityID: store.CommodityID(ev.MarketID, c.Name),
			StationID:   stationID,
			BuyPrice:    c.BuyPrice,
			SellPrice:   c.SellPrice,
			MeanPrice:   c.MeanPrice,
			Stock:       c.Stock,
			Demand:      c.Demand,
			ObservedAt:  observed,
		})
		if err != nil {
			return Result{}, err
		}
		if applied {
			written++
		} else {
			stale++
		}
	}

	s.logger.Debug("Commodity snapshot applied",
		"station_id", stationID,
		"written", written,
		"stale", stale,
		"skipped", len(reasons),
	)

	return success(systemID, bodyID, reasons...), nil
}
