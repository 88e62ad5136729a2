// Package event defines the feed envelope and the closed set of event variants
// the pipeline understands.
package event

import (
	"encoding/json"
	"strconv"
	"time"

	"eddn-ingester/internal/shared/errors"
	"eddn-ingester/internal/shared/jsoncodec"
)

const (
	SchemaCommodity = "https://eddn.edcd.io/schemas/commodity/3"
	SchemaJournal   = "https://eddn.edcd.io/schemas/journal/1"
)

// Kind tags a queued task. The zero value is KindUnrecognized.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindMalformed
	KindCommodity
	KindSystemJump
	KindLocation
	KindScan
)

func (k Kind) String() string {
	switch k {
	case KindMalformed:
		return "Malformed"
	case KindCommodity:
		return "Commodity"
	case KindSystemJump:
		return "journal/FSDJump"
	case KindLocation:
		return "journal/Location"
	case KindScan:
		return "journal/Scan"
	default:
		return "Unrecognized"
	}
}

// Dispatchable reports whether tasks of this kind carry an event for a handler.
func (k Kind) Dispatchable() bool {
	switch k {
	case KindCommodity, KindSystemJump, KindLocation, KindScan:
		return true
	default:
		return false
	}
}

type Header struct {
	UploaderID       string `json:"uploaderID"`
	SoftwareName     string `json:"softwareName"`
	SoftwareVersion  string `json:"softwareVersion"`
	GatewayTimestamp string `json:"gatewayTimestamp"`
}

// Envelope is one decoded feed message. Raw holds the decompressed document
// exactly as received and is what gets validated and audited.
type Envelope struct {
	SchemaRef string          `json:"$schemaRef"`
	Header    Header          `json:"header"`
	Message   json.RawMessage `json:"message"`
	Raw       []byte          `json:"-"`
}

// Event is implemented only by the variants in this package.
type Event interface {
	Kind() Kind
	sealed()
}

type SystemJump struct {
	Timestamp     time.Time  `json:"timestamp"`
	StarSystem    string     `json:"StarSystem"`
	SystemAddress int64      `json:"SystemAddress"`
	StarPos       [3]float64 `json:"StarPos"`
	Body          string     `json:"Body"`
	BodyID        int64      `json:"BodyID"`
	BodyType      string     `json:"BodyType"`
}

type Location struct {
	Timestamp      time.Time  `json:"timestamp"`
	StarSystem     string     `json:"StarSystem"`
	SystemAddress  int64      `json:"SystemAddress"`
	StarPos        [3]float64 `json:"StarPos"`
	Body           string     `json:"Body"`
	BodyID         int64      `json:"BodyID"`
	BodyType       string     `json:"BodyType"`
	DistFromStarLS *float64   `json:"DistFromStarLS"`
	Docked         bool       `json:"Docked"`
	MarketID       *int64     `json:"MarketID"`
	StationName    string     `json:"StationName"`
	StationType    string     `json:"StationType"`
}

type Scan struct {
	Timestamp             time.Time `json:"timestamp"`
	StarSystem            string    `json:"StarSystem"`
	SystemAddress         int64     `json:"SystemAddress"`
	BodyName              string    `json:"BodyName"`
	BodyID                int64     `json:"BodyID"`
	DistanceFromArrivalLS *float64  `json:"DistanceFromArrivalLS"`
	PlanetClass           *string   `json:"PlanetClass"`
	TerraformState        *string   `json:"TerraformState"`
	MassEM                *float64  `json:"MassEM"`
	WasDiscovered         *bool     `json:"WasDiscovered"`
	WasMapped             *bool     `json:"WasMapped"`
	StarType              *string   `json:"StarType"`
	StellarMass           *float64  `json:"StellarMass"`
}

type Commodity struct {
	Name      string `json:"name"`
	BuyPrice  int64  `json:"buyPrice"`
	SellPrice int64  `json:"sellPrice"`
	MeanPrice int64  `json:"meanPrice"`
	Stock     int64  `json:"stock"`
	Demand    int64  `json:"demand"`
}

type CommoditySnapshot struct {
	Timestamp   time.Time   `json:"timestamp"`
	SystemName  string      `json:"systemName"`
	StationName string      `json:"stationName"`
	MarketID    int64       `json:"marketId"`
	Commodities []Commodity `json:"commodities"`
}

func (*SystemJump) Kind() Kind        { return KindSystemJump }
func (*Location) Kind() Kind          { return KindLocation }
func (*Scan) Kind() Kind              { return KindScan }
func (*CommoditySnapshot) Kind() Kind { return KindCommodity }

func (*SystemJump) sealed()        {}
func (*Location) sealed()          {}
func (*Scan) sealed()              {}
func (*CommoditySnapshot) sealed() {}

// Decode unmarshals the envelope's message into the variant for kind.
func Decode(kind Kind, env *Envelope) (Event, error) {
	var ev Event

	switch kind {
	case KindSystemJump:
		ev = &SystemJump{}
	case KindLocation:
		ev = &Location{}
	case KindScan:
		ev = &Scan{}
	case KindCommodity:
		ev = &CommoditySnapshot{}
	default:
		return nil, errors.Decodef("no event variant for %s", kind)
	}

	if env == nil || len(env.Message) == 0 {
		return nil, errors.Decodef("%s envelope has no message", kind)
	}

	if err := jsoncodec.Unmarshal(env.Message, ev); err != nil {
		return nil, errors.WrapDecode("failed to decode "+kind.String()+" message", err)
	}

	return ev, nil
}

// FormatID renders a feed-supplied numeric identifier as a store key.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
