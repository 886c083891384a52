// Package events carries element change notifications over NATS.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/vantutran2k1/elements/internal/element"
)

const DefaultSubjectPrefix = "elements.events"

type Kind string

const (
	KindCreated Kind = "created"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
)

// Event describes one committed write. Element is the stored state after
// the write and is nil for deletions.
type Event struct {
	ID        uuid.UUID        `json:"id"`
	Kind      Kind             `json:"kind"`
	ElementID int64            `json:"elementId"`
	Element   *element.Element `json:"element,omitempty"`
	At        time.Time        `json:"at"`
}

func New(kind Kind, e element.Element) Event {
	ev := Event{
		ID:        uuid.New(),
		Kind:      kind,
		ElementID: e.ID,
		At:        time.Now().UTC(),
	}
	if kind != KindDeleted {
		ev.Element = &e
	}
	return ev
}

func Deleted(id int64) Event {
	return New(KindDeleted, element.Element{ID: id})
}

func Subject(prefix string, kind Kind) string {
	return prefix + "." + string(kind)
}

// Wildcard matches every kind published under prefix.
func Wildcard(prefix string) string {
	return prefix + ".*"
}

// MatchFilter keeps events whose element satisfies f. Deletions carry no
// element and always pass.
func MatchFilter(f element.Filter) func(Event) bool {
	return func(ev Event) bool {
		return ev.Element == nil || f.Match(*ev.Element)
	}
}
