// Package interaction matches a traveler's route context against configured
// rule tables and triggers the associated external interaction at most once
// per journey, using the journey store's idempotency map as the guard.
package interaction

import (
	"fmt"

	"github.com/ibi-group/otp-middleware-sub001/geom"
)

// HandlerKind tags which statically-known handler a rule invokes. Rule
// configuration carries the tag; the registry resolves it at startup.
type HandlerKind string

const (
	HandlerTrafficSignal HandlerKind = "traffic-signal"
	HandlerBusOperator   HandlerKind = "bus-operator"
)

// DefaultMatchRadiusMeters is how close a traveler's segment endpoints must
// be to a configured rule's endpoints to count as a match.
const DefaultMatchRadiusMeters = 10.0

// SegmentAction associates a geographic segment with a handler. Rule authors
// do not encode traversal direction, so matching checks both orientations.
type SegmentAction struct {
	ID      string      `yaml:"id" validate:"required"`
	Start   geom.Point  `yaml:"start"`
	End     geom.Point  `yaml:"end"`
	Handler HandlerKind `yaml:"handler" validate:"required,oneof=traffic-signal bus-operator"`
}

// AgencyAction associates a transit agency with a handler, optionally
// restricted to an allow-list of routes. An empty allow-list means every
// route of the agency qualifies.
type AgencyAction struct {
	AgencyID string      `yaml:"agencyId" validate:"required"`
	Routes   []string    `yaml:"routes"`
	Handler  HandlerKind `yaml:"handler" validate:"required,oneof=traffic-signal bus-operator"`
}

// RuleSet is the immutable rule configuration, loaded once at process start.
type RuleSet struct {
	Segments          []SegmentAction `yaml:"segments"`
	Agencies          []AgencyAction  `yaml:"agencies"`
	MatchRadiusMeters float64         `yaml:"matchRadiusMeters"`
}

func (rs RuleSet) matchRadius() float64 {
	if rs.MatchRadiusMeters > 0 {
		return rs.MatchRadiusMeters
	}
	return DefaultMatchRadiusMeters
}

// MatchSegment returns the first segment rule whose endpoints lie within the
// match radius of from/to in either traversal direction, or nil.
func (rs RuleSet) MatchSegment(from, to geom.Point) *SegmentAction {
	r := rs.matchRadius()
	for i := range rs.Segments {
		rule := &rs.Segments[i]
		forward := geom.DistanceMeters(from, rule.Start) <= r && geom.DistanceMeters(to, rule.End) <= r
		reverse := geom.DistanceMeters(from, rule.End) <= r && geom.DistanceMeters(to, rule.Start) <= r
		if forward || reverse {
			return rule
		}
	}
	return nil
}

// MatchAgency returns the first agency rule matching the agency and route,
// or nil.
func (rs RuleSet) MatchAgency(agencyID, routeID string) *AgencyAction {
	for i := range rs.Agencies {
		rule := &rs.Agencies[i]
		if rule.AgencyID != agencyID {
			continue
		}
		if len(rule.Routes) == 0 {
			return rule
		}
		for _, route := range rule.Routes {
			if route == routeID {
				return rule
			}
		}
	}
	return nil
}

// SegmentKey and AgencyKey build the idempotency keys for the journey's
// interaction map.

func SegmentKey(ruleID string) string {
	return "segment:" + ruleID
}

func AgencyKey(agencyID, routeID string) string {
	return fmt.Sprintf("agency:%s:%s", agencyID, routeID)
}
