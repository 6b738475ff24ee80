package domain

// LinkType identifies a directed, typed association between two entity types.
type LinkType string

// Supported link types. Containment relationships are expressed by foreign-key
// fields on the child entity; explicit links exist only where the ontology
// declares a non-containment association.
const (
	// LinkDeliverableSupportsOutcome declares that a deliverable contributes
	// evidence toward an outcome.
	LinkDeliverableSupportsOutcome LinkType = "deliverable_supports_outcome"
)

// RelationLink is an immutable, directed, typed association between two entity
// instances. Links carry no derived state; the engine uses them purely for
// traversal. Multiple links of different types may connect the same pair.
type RelationLink struct {
	ID       string   `json:"id"`
	LinkType LinkType `json:"link_type"`
	FromID   string   `json:"from_id"`
	ToID     string   `json:"to_id"`
}

// Endpoints returns the declared entity types for a link type's from/to sides.
// Unknown link types return empty types; callers treat those links as inert.
func (t LinkType) Endpoints() (from, to EntityType) {
	switch t {
	case LinkDeliverableSupportsOutcome:
		return EntityDeliverable, EntityOutcome
	default:
		return "", ""
	}
}
