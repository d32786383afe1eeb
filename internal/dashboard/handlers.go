package dashboard

import (
	"context"

	"backend-birdtours/internal/booking"
	"backend-birdtours/internal/logging"
	"backend-birdtours/internal/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

// Command is what a dashboard client may send over the socket. Booking is
// read by "create", ID and Patch by "update", ID by "delete".
type Command struct {
	Action  string                 `json:"action"`
	Status  booking.Status         `json:"status,omitempty"`
	ID      string                 `json:"id,omitempty"`
	Booking *booking.CreateRequest `json:"booking,omitempty"`
	Patch   *booking.Patch         `json:"patch,omitempty"`
}

// RegisterRoutes mounts GET /ws. Each connection gets its own State; a
// snapshot is written after the initial load and after every change.
func RegisterRoutes(r fiber.Router, store Store, hub Subscriber, tokens stream.TokenValidator, logger *logrus.Logger) {
	logger = logging.OrDiscard(logger)

	r.Get("/ws", stream.UpgradeAuth(tokens), websocket.New(func(c *websocket.Conn) {
		userID, _ := c.Locals("user_id").(string)
		state := NewState(store, hub, userID, logger)

		notify := make(chan struct{}, 1)
		state.OnChange(func() {
			select {
			case notify <- struct{}{}:
			default:
			}
		})

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				select {
				case <-ctx.Done():
					return
				case <-notify:
					if err := c.WriteJSON(state.Snapshot()); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		state.Subscribe()
		_ = state.Reload(ctx)

		for {
			var cmd Command
			if err := c.ReadJSON(&cmd); err != nil {
				break
			}
			switch cmd.Action {
			case "load":
				if err := state.LoadBookings(ctx, cmd.Status); err == nil {
					_ = state.LoadStats(ctx)
				}
			case "reload":
				_ = state.Reload(ctx)
			case "create":
				var req booking.CreateRequest
				if cmd.Booking != nil {
					req = *cmd.Booking
				}
				_, _ = state.CreateBooking(ctx, req)
			case "update":
				var patch booking.Patch
				if cmd.Patch != nil {
					patch = *cmd.Patch
				}
				_, _ = state.UpdateBooking(ctx, cmd.ID, patch)
			case "delete":
				_ = state.DeleteBooking(ctx, cmd.ID)
			default:
				logger.WithFields(logrus.Fields{"user_id": userID, "action": cmd.Action}).Debug("dashboard: unknown command")
			}
		}

		state.Close()
		cancel()
		<-done
	}))
}
