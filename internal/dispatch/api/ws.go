package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"ride-dispatch/internal/dispatch/app"
	"ride-dispatch/internal/dispatch/domain"
	"ride-dispatch/internal/dispatch/router"
	"ride-dispatch/internal/shared/apperrors"
	"ride-dispatch/internal/shared/jwt"
	"ride-dispatch/internal/shared/util"
)

const authTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHandler upgrades driver and rider connections and pumps their messages
// into the service layer.
type WSHandler struct {
	svc       *app.Service
	router    *router.Router
	jwtSecret string
	log       *util.Logger
}

func NewWSHandler(svc *app.Service, rt *router.Router, jwtSecret string, log *util.Logger) *WSHandler {
	return &WSHandler{svc: svc, router: rt, jwtSecret: jwtSecret, log: log}
}

func (h *WSHandler) Drivers(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, router.RoleDriver)
}

func (h *WSHandler) Riders(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, router.RoleRider)
}

func (h *WSHandler) serve(w http.ResponseWriter, r *http.Request, role router.Role) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WS", "upgrade failed", err)
		return
	}
	session := router.NewSession(conn)

	identity, err := h.authenticate(conn, role)
	if err != nil {
		session.Send(Response{Type: "error", Action: ActionAuth, Reason: "forbidden", Message: err.Error()})
		session.Close()
		return
	}
	session.Send(Response{Type: "ok", Action: ActionAuth})

	h.router.Join(identity.Subject, role, session)
	defer func() {
		h.router.Leave(identity.Subject, session)
		session.Close()
	}()

	for {
		var env Envelope
		if err := session.ReadJSON(&env); err != nil {
			return
		}
		h.dispatch(r.Context(), session, role, identity, env)
	}
}

// authenticate expects the first frame to carry a valid token whose role
// matches the endpoint. The deadline bounds how long an anonymous socket
// can sit open.
func (h *WSHandler) authenticate(conn *websocket.Conn, role router.Role) (*jwt.Identity, error) {
	conn.SetReadDeadline(time.Now().Add(authTimeout))
	defer conn.SetReadDeadline(time.Now().Add(60 * time.Second))

	var env Envelope
	if err := conn.ReadJSON(&env); err != nil {
		return nil, err
	}
	if env.Action != ActionAuth {
		return nil, jwt.ErrInvalidToken
	}
	identity, err := jwt.Verify(env.Token, h.jwtSecret)
	if err != nil {
		return nil, err
	}
	if identity.Role != string(role) {
		return nil, jwt.ErrInvalidToken
	}
	return identity, nil
}

func (h *WSHandler) dispatch(ctx context.Context, s *router.Session, role router.Role, id *jwt.Identity, env Envelope) {
	var err error
	var payload interface{}

	switch {
	case role == router.RoleDriver:
		payload, err = h.driverAction(ctx, id, env)
	case role == router.RoleRider:
		payload, err = h.riderAction(ctx, id, env)
	}

	if err != nil {
		s.Send(Response{
			Type:    "error",
			Action:  env.Action,
			Reason:  apperrors.Kind(err),
			Message: err.Error(),
		})
		return
	}
	s.Send(Response{Type: "ok", Action: env.Action, Payload: payload})
}

func (h *WSHandler) driverAction(ctx context.Context, id *jwt.Identity, env Envelope) (interface{}, error) {
	switch env.Action {
	case ActionRegisterDriver:
		var req registerDriverReq
		if err := unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		name := req.Name
		if name == "" {
			name = id.Name
		}
		return nil, h.svc.RegisterDriver(ctx, id.Subject, name, req.VehicleClass, req.Location, req.PushToken)

	case ActionAcceptRide:
		var req rideRef
		if err := unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		return h.svc.AttemptAccept(ctx, req.RideCode, id.Subject)

	case ActionRejectRide:
		var req rideRef
		if err := unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		h.svc.DeclineOffer(ctx, req.RideCode, id.Subject)
		return nil, nil

	case ActionVerifyAndStart:
		var req verifyStartReq
		if err := unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		ride, err := h.svc.VerifyAndStart(ctx, req.RideCode, id.Subject, req.VerifyCode)
		if err != nil {
			return nil, err
		}
		return toRideState(ride), nil

	case ActionCompleteRide:
		var req completeRideReq
		if err := unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		ride, err := h.svc.CompleteRide(ctx, req.RideCode, id.Subject, domain.CompletionReport{
			ActualKm:     req.ActualKm,
			ActualFare:   req.ActualFare,
			ActualPickup: req.ActualPickup,
			ActualDrop:   req.ActualDrop,
		})
		if err != nil {
			return nil, err
		}
		return toRideState(ride), nil

	case ActionDriverLocation:
		var req locationReq
		if err := unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		h.svc.RelayDriverLocation(ctx, id.Subject, domain.Point{Lat: req.Lat, Lng: req.Lng})
		if req.Status != "" {
			h.svc.SetDriverState(id.Subject, domain.DriverState(req.Status))
		}
		return nil, nil

	case ActionHeartbeat:
		h.svc.Heartbeat(id.Subject)
		return nil, nil

	case ActionUpdatePushToken:
		var req pushTokenReq
		if err := unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		h.svc.UpdatePushToken(id.Subject, req.Token)
		return nil, nil

	case ActionRideState:
		return h.rideState(ctx, env)

	default:
		return nil, unknownAction(env.Action)
	}
}

func (h *WSHandler) riderAction(ctx context.Context, id *jwt.Identity, env Envelope) (interface{}, error) {
	switch env.Action {
	case ActionBookRide:
		var req bookRideReq
		if err := unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		name := req.RiderName
		if name == "" {
			name = id.Name
		}
		return h.svc.BookRide(ctx, app.BookingRequest{
			RiderID:      id.Subject,
			RiderName:    name,
			RiderContact: req.RiderContact,
			CustomerID:   req.CustomerID,
			Pickup:       req.Pickup,
			Drop:         req.Drop,
			VehicleClass: req.VehicleClass,
		})

	case ActionCancelRide:
		var req cancelRideReq
		if err := unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		ride, err := h.svc.CancelRide(ctx, req.RideCode, id.Subject, req.Reason)
		if err != nil {
			return nil, err
		}
		return toRideState(ride), nil

	case ActionRegisterRider:
		var req registerRiderReq
		if err := unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		h.svc.RegisterRider(id.Subject, req.Location)
		return nil, nil

	case ActionRetryPush:
		var req retryPushReq
		if err := unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		pushed, err := h.svc.RetryPush(ctx, req.RideCode, req.RetryCount)
		if err != nil {
			return nil, err
		}
		return map[string]int{"pushed": pushed}, nil

	case ActionRiderLocation:
		var req locationReq
		if err := unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		h.svc.RelayRiderLocation(ctx, id.Subject, req.RideCode, domain.Point{Lat: req.Lat, Lng: req.Lng})
		return nil, nil

	case ActionNearbyDrivers:
		var req nearbyReq
		if err := unmarshal(env.Payload, &req); err != nil {
			return nil, err
		}
		radius := req.RadiusKm
		if radius <= 0 {
			radius = 5
		}
		return h.svc.NearbyDrivers(req.VehicleClass, domain.Point{Lat: req.Lat, Lng: req.Lng}, radius), nil

	case ActionRideState:
		return h.rideState(ctx, env)

	default:
		return nil, unknownAction(env.Action)
	}
}

func (h *WSHandler) rideState(ctx context.Context, env Envelope) (interface{}, error) {
	var req rideRef
	if err := unmarshal(env.Payload, &req); err != nil {
		return nil, err
	}
	ride, err := h.svc.RideState(ctx, req.RideCode)
	if err != nil {
		return nil, err
	}
	return toRideState(ride), nil
}

func toRideState(r *domain.Ride) rideStateResp {
	return rideStateResp{
		RideCode:   r.Code,
		Status:     r.Status,
		DriverID:   r.DriverID,
		DriverName: r.DriverName,
		Fare:       r.Fare,
		Pickup:     r.Pickup,
		Drop:       r.Drop,
	}
}

func unmarshal(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return domain.ErrValidation
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return domain.ErrValidation
	}
	return nil
}

func unknownAction(action string) error {
	return fmt.Errorf("%w: unknown action %q", domain.ErrValidation, action)
}
