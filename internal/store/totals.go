package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/liorcore/star-journey-sub000/internal/apperr"
	"github.com/liorcore/star-journey-sub000/internal/docstore"
)

// eventIDs enumerates the ids of a group's events. Runs outside transactions;
// transactional callers re-read each event by id and tolerate ones deleted in
// between.
func eventIDs(ctx context.Context, docs docstore.Store, tenantID, groupID string) ([]string, error) {
	children, err := docs.ListChildren(ctx, docstore.GroupPath(tenantID, groupID), docstore.KindEvent)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	ids := make([]string, 0, len(children))
	for _, d := range children {
		ids = append(ids, docstore.PathID(d.Path))
	}
	return ids, nil
}

// reconcileTotals restores the aggregate invariant: each participant's
// totalStars equals the sum of that participant's stars across all the
// group's events, and eventCount equals the number of events linking them.
// Deliberately a separate transaction from the star write that triggers it —
// the eventual-consistency window is explicit and bounded by this call.
func reconcileTotals(ctx context.Context, docs docstore.Store, tenantID, groupID string) error {
	ids, err := eventIDs(ctx, docs, tenantID, groupID)
	if err != nil {
		return err
	}

	return docs.RunTransaction(ctx, func(tx docstore.Txn) error {
		path := docstore.GroupPath(tenantID, groupID)
		data, err := tx.Get(path)
		if err != nil {
			return err
		}
		g, err := decodeGroup(data)
		if err != nil {
			return err
		}

		stars := make(map[string]int)
		count := make(map[string]int)
		for _, id := range ids {
			evData, err := tx.Get(docstore.EventPath(tenantID, groupID, id))
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			e, err := decodeEvent(evData)
			if err != nil {
				return err
			}
			for _, link := range e.Participants {
				stars[link.ParticipantID] += link.Stars
				count[link.ParticipantID]++
			}
		}

		changed := false
		for i := range g.Participants {
			p := &g.Participants[i]
			if p.TotalStars != stars[p.ID] || p.EventCount != count[p.ID] {
				p.TotalStars = stars[p.ID]
				p.EventCount = count[p.ID]
				changed = true
			}
		}
		if !changed {
			return nil
		}
		return tx.Set(path, g)
	})
}
