package feed

import (
	"fmt"
	"strings"

	"eddn-ingester/internal/event"
	"eddn-ingester/internal/shared/jsoncodec"
)

// Route classifies an envelope. For KindUnrecognized the returned reason says why.
func Route(env *event.Envelope) (event.Kind, string) {
	switch normalizeRef(env.SchemaRef) {
	case event.SchemaCommodity:
		return event.KindCommodity, ""
	case event.SchemaJournal:
		return routeJournal(env)
	default:
		return event.KindUnrecognized, fmt.Sprintf("Unrecognized schema %s", env.SchemaRef)
	}
}

func routeJournal(env *event.Envelope) (event.Kind, string) {
	var probe struct {
		Event string `json:"event"`
	}
	if err := jsoncodec.Unmarshal(env.Message, &probe); err != nil {
		return event.KindUnrecognized, "Journal message has no readable event field"
	}

	switch probe.Event {
	case "FSDJump":
		return event.KindSystemJump, ""
	case "Location":
		return event.KindLocation, ""
	case "Scan":
		return event.KindScan, ""
	default:
		return event.KindUnrecognized, fmt.Sprintf("Journal event %q is not logged", probe.Event)
	}
}

// normalizeRef drops the trailing fragment marker some publishers append.
func normalizeRef(ref string) string {
	return strings.TrimSuffix(ref, "#")
}
