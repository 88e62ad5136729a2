package store

import (
	"fmt"
	"time"
)

// UnknownDistance marks a body or station whose distance from arrival has not been observed.
const UnknownDistance = -1.0

type BodyType string

const (
	BodyTypeStar    BodyType = "Star"
	BodyTypePlanet  BodyType = "Planet"
	BodyTypeStation BodyType = "Station"
)

type System struct {
	Name string
	ID   string
	X    float64
	Y    float64
	Z    float64
}

// Star and Planet attributes held as pointers are optional: nil never
// overwrites a stored value.
type Star struct {
	Name     string
	BodyID   string
	SystemID string
	Class    *string
	Mass     *float64
	Distance float64
}

type Planet struct {
	Name           string
	BodyID         string
	SystemID       string
	Class          *string
	TerraformState *string
	Mass           *float64
	Distance       float64
	Discovered     *bool
	Mapped         *bool
}

type Station struct {
	Name        string
	BodyID      string
	SystemID    string
	StationID   string
	Distance    float64
	Type        string
	LastUpdated time.Time
}

type CommodityListing struct {
	Name        string
	CommodityID string
	StationID   string
	BuyPrice    int64
	SellPrice   int64
	MeanPrice   int64
	Stock       int64
	Demand      int64
	ObservedAt  time.Time
}

// NormalizeDistance folds every negative distance into UnknownDistance.
func NormalizeDistance(d float64) float64 {
	if d < 0 {
		return UnknownDistance
	}
	return d
}

// DistanceOrUnknown reads an optional feed distance.
func DistanceOrUnknown(d *float64) float64 {
	if d == nil {
		return UnknownDistance
	}
	return NormalizeDistance(*d)
}

func CommodityID(marketID int64, name string) string {
	return fmt.Sprintf("%d_%s", marketID, name)
}
