package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/models"
	"github.com/Arnan-bit/ubuntuhostvoucher-sub002/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ssePollInterval is how often the stream looks for new ledger entries.
var ssePollInterval = 2 * time.Second

// ledgerLookback bounds how far behind the newest streamed entry a late
// commit may be stamped and still get delivered.
const ledgerLookback = 30 * time.Second

// ledgerCursor tracks what a stream has already delivered. created_at is
// taken before commit, so entries can appear out of order; the cursor
// re-scans a window behind the newest entry and skips ids it already sent.
type ledgerCursor struct {
	actorID string
	newest  time.Time
	sent    map[string]time.Time
}

// newLedgerCursor starts a cursor at the actor's current ledger tail.
func (l *PointLedger) newLedgerCursor(actorID string) (*ledgerCursor, error) {
	cur := &ledgerCursor{actorID: actorID, sent: map[string]time.Time{}}
	var latest models.PointLedgerEntry
	err := l.DB.Where("actor_id = ?", actorID).Order("created_at DESC").First(&latest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return cur, nil
	}
	if err != nil {
		return cur, err
	}
	cur.newest = latest.CreatedAt

	var seen []models.PointLedgerEntry
	if err := l.DB.Select("id", "created_at").
		Where("actor_id = ? AND created_at > ?", actorID, cur.newest.Add(-ledgerLookback)).
		Find(&seen).Error; err != nil {
		return cur, err
	}
	for _, e := range seen {
		cur.sent[e.ID] = e.CreatedAt
	}
	return cur, nil
}

// pollLedger returns the entries committed since the last poll.
func (l *PointLedger) pollLedger(cur *ledgerCursor) ([]models.PointLedgerEntry, error) {
	var entries []models.PointLedgerEntry
	q := l.DB.Where("actor_id = ?", cur.actorID)
	if !cur.newest.IsZero() {
		q = q.Where("created_at > ?", cur.newest.Add(-ledgerLookback))
	}
	if err := q.Order("created_at ASC").Find(&entries).Error; err != nil {
		return nil, err
	}

	fresh := entries[:0]
	for _, e := range entries {
		if _, ok := cur.sent[e.ID]; ok {
			continue
		}
		cur.sent[e.ID] = e.CreatedAt
		if e.CreatedAt.After(cur.newest) {
			cur.newest = e.CreatedAt
		}
		fresh = append(fresh, e)
	}

	horizon := cur.newest.Add(-ledgerLookback)
	for id, at := range cur.sent {
		if !at.After(horizon) {
			delete(cur.sent, id)
		}
	}
	return fresh, nil
}

// streamState reads the committed balance for the trailing state event.
func (l *PointLedger) streamState(actorID string) (fiber.Map, error) {
	var actor models.GamificationActor
	if err := l.DB.Select("id", "points").Where("id = ?", actorID).First(&actor).Error; err != nil {
		return nil, err
	}
	return fiber.Map{
		"actor_id": actorID,
		"points":   actor.Points,
		"badge":    EvaluateTier(actor.Points).Name,
	}, nil
}

// StreamLedgerSSE pushes the actor's new ledger entries as they are written,
// each batch followed by the fresh balance, so clients can drop their cached state.
func (l *PointLedger) StreamLedgerSSE(c *fiber.Ctx) error {
	actorID, _ := c.Locals("actor_id").(string)
	if err := validActorID(actorID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(ssePollInterval)
		defer ticker.Stop()

		cur, err := l.newLedgerCursor(actorID)
		if err != nil {
			utils.LogError("SSE init error for actor %s: %v", actorID, err)
		}

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for range ticker.C {
			entries, err := l.pollLedger(cur)
			if err != nil {
				utils.LogError("SSE query error for actor %s: %v", actorID, err)
				continue
			}

			if len(entries) == 0 {
				// keepalive; a failed flush means the client is gone
				w.WriteString(":\n\n")
				if err := w.Flush(); err != nil {
					return
				}
				continue
			}

			for _, e := range entries {
				payload, _ := json.Marshal(e)
				fmt.Fprintf(w, "event: ledger\ndata: %s\n\n", payload)
			}
			if state, err := l.streamState(actorID); err == nil {
				payload, _ := json.Marshal(state)
				fmt.Fprintf(w, "event: state\ndata: %s\n\n", payload)
			} else {
				utils.LogError("SSE state error for actor %s: %v", actorID, err)
			}

			if err := w.Flush(); err != nil {
				return
			}
		}
	})

	return nil
}
