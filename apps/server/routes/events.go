package routes

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/osbench/osbench/pkg/notify"
)

// EventsInput defines the input for the event stream
type EventsInput struct {
	RunID string `query:"runId" doc:"Only deliver events for this run" required:"false"`
}

// RegisterEvents registers the server-sent-events stream fed by the
// notification hub. Delivery is best-effort; a client that is not
// listening misses events and run execution is unaffected.
func RegisterEvents(api huma.API, hub *notify.Hub) {
	sse.Register(api, huma.Operation{
		OperationID: "stream-events",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Stream run lifecycle events",
		Description: "Server-sent events for run lifecycle notifications: started, environment-created, environment-started, log chunks, completed, failed.",
		Tags:        []string{"Events"},
	}, map[string]any{
		"run-event": notify.Event{},
	}, func(ctx context.Context, input *EventsInput, send sse.Sender) {
		sub := hub.Subscribe()
		defer sub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C:
				if !ok {
					return
				}
				if input.RunID != "" && ev.RunID != input.RunID {
					continue
				}
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
