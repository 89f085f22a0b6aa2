package stream

import (
	"context"
	"encoding/json"

	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/auth"
	"github.com/AsimAftab/SalesSphere-Backend-sub002/internal/tracking"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes mounts the realtime channel. The handshake is authenticated
// before the upgrade; a bad credential never reaches message handling.
func RegisterRoutes(r fiber.Router, hub *Hub, authSvc *auth.Service, trackingSvc *tracking.Service) {
	r.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		ident, err := authSvc.Authenticate(c.Context(), auth.Handshake{
			AuthToken:           c.Query("token"),
			AuthorizationHeader: c.Get("Authorization"),
			CookieHeader:        c.Get("Cookie"),
		})
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		c.Locals("identity", ident)
		return c.Next()
	})

	r.Get("/ws", websocket.New(func(conn *websocket.Conn) {
		ident, _ := conn.Locals("identity").(auth.Identity)
		client := hub.Register(ident)

		done := make(chan struct{})
		go func() {
			for msg := range client.Send {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			close(done)
		}()

		// Plans this connection is actively tracking. Disconnection drops
		// their routing entries but never stops the sessions.
		owned := map[string]struct{}{}

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				break
			}
			dispatch(context.Background(), hub, client, trackingSvc, raw, owned)
		}

		for beatPlanID := range owned {
			trackingSvc.DropRouting(context.Background(), beatPlanID)
		}
		hub.Unregister(client)
		<-done
	}))
}

func dispatch(ctx context.Context, hub *Hub, client *Client, svc *tracking.Service, raw []byte, owned map[string]struct{}) {
	var msg Inbound
	if err := decodeInbound(raw, &msg); err != nil {
		sendError(hub, client, err)
		return
	}

	ident := client.Identity

	switch msg.Event {
	case MsgStartTracking:
		req, err := decodePayload[PlanRequest](msg.Data)
		if err != nil {
			sendError(hub, client, err)
			return
		}
		sess, err := svc.Start(ctx, ident.OrganizationID, ident.UserID, req.BeatPlanID)
		if err != nil {
			sendError(hub, client, err)
			return
		}
		// The tracker implicitly joins its own room after the started
		// broadcast, so it does not see its own announcement.
		hub.Join(client, req.BeatPlanID)
		owned[req.BeatPlanID] = struct{}{}
		hub.Unicast(client, tracking.EventTrackingStarted, fiber.Map{
			"trackingSessionId": sess.ID,
			"beatPlanId":        sess.BeatPlanID,
		})

	case MsgUpdateLocation:
		req, err := decodePayload[LocationRequest](msg.Data)
		if err != nil {
			sendError(hub, client, err)
			return
		}
		input := tracking.LocationInput{
			Latitude:  *req.Latitude,
			Longitude: *req.Longitude,
			Accuracy:  req.Accuracy,
			Speed:     req.Speed,
			Heading:   req.Heading,
			Address:   req.Address,
		}
		if req.Timestamp != nil {
			input.Timestamp = *req.Timestamp
		}
		if _, err := svc.UpdateLocation(ctx, ident.OrganizationID, ident.UserID, req.BeatPlanID, input); err != nil {
			sendError(hub, client, err)
		}

	case MsgPauseTracking:
		req, err := decodePayload[PlanRequest](msg.Data)
		if err != nil {
			sendError(hub, client, err)
			return
		}
		sess, err := svc.Pause(ctx, ident.OrganizationID, ident.UserID, req.BeatPlanID)
		if err != nil {
			sendError(hub, client, err)
			return
		}
		hub.Unicast(client, EventTrackingPaused, fiber.Map{
			"trackingSessionId": sess.ID,
			"beatPlanId":        sess.BeatPlanID,
		})

	case MsgResumeTracking:
		req, err := decodePayload[PlanRequest](msg.Data)
		if err != nil {
			sendError(hub, client, err)
			return
		}
		sess, err := svc.Resume(ctx, ident.OrganizationID, ident.UserID, req.BeatPlanID)
		if err != nil {
			sendError(hub, client, err)
			return
		}
		hub.Unicast(client, EventTrackingResumed, fiber.Map{
			"trackingSessionId": sess.ID,
			"beatPlanId":        sess.BeatPlanID,
		})

	case MsgStopTracking:
		req, err := decodePayload[PlanRequest](msg.Data)
		if err != nil {
			sendError(hub, client, err)
			return
		}
		sess, err := svc.Stop(ctx, ident.OrganizationID, ident.UserID, req.BeatPlanID)
		if err != nil {
			sendError(hub, client, err)
			return
		}
		delete(owned, req.BeatPlanID)
		hub.Unicast(client, EventTrackingStopped, fiber.Map{
			"trackingSessionId": sess.ID,
			"beatPlanId":        sess.BeatPlanID,
			"summary":           sess.Summary,
		})

	case MsgWatchBeatPlan:
		req, err := decodePayload[PlanRequest](msg.Data)
		if err != nil {
			sendError(hub, client, err)
			return
		}
		snap, err := svc.WatchSnapshot(ctx, ident.OrganizationID, req.BeatPlanID)
		if err != nil {
			sendError(hub, client, err)
			return
		}
		hub.Join(client, req.BeatPlanID)
		hub.Unicast(client, EventWatchStarted, WatchPayload{
			BeatPlanID:    req.BeatPlanID,
			ActiveSession: snap,
		})

	case MsgUnwatch:
		req, err := decodePayload[PlanRequest](msg.Data)
		if err != nil {
			sendError(hub, client, err)
			return
		}
		hub.Leave(client, req.BeatPlanID)

	default:
		sendError(hub, client, &tracking.ValidationError{Msg: "unknown event: " + msg.Event})
	}
}

func decodeInbound(raw []byte, msg *Inbound) error {
	if err := json.Unmarshal(raw, msg); err != nil || msg.Event == "" {
		return &tracking.ValidationError{Msg: "malformed message envelope"}
	}
	return nil
}

// Errors are unicast to the originating connection; the connection stays
// open for subsequent messages.
func sendError(hub *Hub, client *Client, err error) {
	hub.Unicast(client, EventTrackingError, ErrorPayload{
		Code:    tracking.Code(err),
		Message: err.Error(),
	})
}
