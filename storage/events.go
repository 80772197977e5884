package storage

import (
	"errors"

	"github.com/vocdoni/confidential-fundraiser/types"
)

// appendEvents assigns sequence numbers to the queued events and appends
// them to the event log.
func (tx *Tx) appendEvents() error {
	if len(tx.events) == 0 {
		return nil
	}
	seq, err := tx.getUint64(counterPrefix, eventCounterKey)
	if err != nil {
		return err
	}
	for _, ev := range tx.events {
		seq++
		ev.Seq = seq
		if err := tx.setArtifact(eventPrefix, uint64Key(seq), ev); err != nil {
			return err
		}
	}
	return tx.setUint64(counterPrefix, eventCounterKey, seq)
}

// Events returns up to limit events with sequence number greater than or
// equal to from, in order.
func (s *Storage) Events(from uint64, limit int) ([]*types.Event, error) {
	if from == 0 {
		from = 1
	}
	events := []*types.Event{}
	err := s.View(func(tx *Tx) error {
		for seq := from; limit <= 0 || len(events) < limit; seq++ {
			ev := &types.Event{}
			err := tx.getArtifact(eventPrefix, uint64Key(seq), ev)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			events = append(events, ev)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// LastEventSeq returns the sequence number of the latest event, 0 if the
// log is empty.
func (s *Storage) LastEventSeq() (uint64, error) {
	var seq uint64
	err := s.View(func(tx *Tx) (err error) {
		seq, err = tx.getUint64(counterPrefix, eventCounterKey)
		return err
	})
	return seq, err
}
