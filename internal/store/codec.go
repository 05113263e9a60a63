package store

import (
	"encoding/json"
	"fmt"

	"github.com/liorcore/star-journey-sub000/internal/model"
)

// Decoding is centralized here so defaulting rules (Normalize) apply exactly
// once, at read time, for every call site.

func decodeGroup(data json.RawMessage) (*model.Group, error) {
	var g model.Group
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode group: %w", err)
	}
	g.Normalize()
	return &g, nil
}

func decodeEvent(data json.RawMessage) (*model.Event, error) {
	var e model.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	e.Normalize()
	return &e, nil
}
