package client

import (
	"context"
	"time"

	"github.com/vocdoni/confidential-fundraiser/log"
	"github.com/vocdoni/confidential-fundraiser/types"
)

const eventsPageSize = 100

// MonitorEvents polls the event log every interval and sends every new
// event, in sequence order, on the returned channel. Events already seen
// are never sent twice. The channel is closed when ctx is done.
func (c *HTTPclient) MonitorEvents(ctx context.Context, interval time.Duration, from uint64) <-chan *types.Event {
	ch := make(chan *types.Event)
	if from == 0 {
		from = 1
	}
	go func() {
		defer close(ch)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		next := from
		for {
			// drain every page available before waiting again
			for {
				page, err := c.Events(ctx, next, eventsPageSize)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Warnw("failed to fetch events, retrying", "from", next, "error", err.Error())
					break
				}
				for _, ev := range page.Events {
					if ev.Seq < next {
						continue
					}
					select {
					case ch <- ev:
					case <-ctx.Done():
						return
					}
					next = ev.Seq + 1
				}
				if len(page.Events) < eventsPageSize {
					break
				}
			}
			select {
			case <-ctx.Done():
				log.Debugw("exiting event monitor", "next", next)
				return
			case <-ticker.C:
			}
		}
	}()
	return ch
}
