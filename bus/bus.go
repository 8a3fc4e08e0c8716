// Package bus fans out catalog change events so downstream consumers
// (indexers, cache invalidators) can react to mutations.
package bus

import (
	"encoding/json"
	"time"
)

// Event describes one committed catalog mutation.
type Event struct {
	Op         string    `json:"op"` // created, replaced, patched, deleted
	Collection string    `json:"collection"`
	Id         string    `json:"id,omitempty"` // empty for collection events
	Time       time.Time `json:"time"`
}

// Subject returns the topic an event publishes on.
func (e Event) Subject() string {
	if e.Id == "" {
		return "stac.collection." + e.Op
	}
	return "stac.item." + e.Op
}

type Bus interface {
	Publish(e Event) error
	Subscribe(subject string) (chan Event, error)
	Close()
}

func marshalEvent(e Event) []byte {
	b, _ := json.Marshal(e)
	return b
}
