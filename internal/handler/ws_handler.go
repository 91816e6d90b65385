package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
	"github.com/weiawesome/wes-io-live/live-service/internal/hub"
	"github.com/weiawesome/wes-io-live/live-service/internal/service"
	pkglog "github.com/weiawesome/wes-io-live/live-service/pkg/log"
)

// WSHandler upgrades connections and routes their frames to the live service.
type WSHandler struct {
	hub      *hub.Hub
	service  service.LiveService
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WebSocket handler. An empty allowedOrigins
// accepts any origin.
func NewWSHandler(h *hub.Hub, svc service.LiveService, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		hub:     h,
		service: svc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			// not a browser
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// HandleWebSocket upgrades the request and starts the client's pumps.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	l := pkglog.L()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	clientID := uuid.New().String()
	client := hub.NewClient(clientID, h.hub, conn)
	ctx := pkglog.WithConnection(context.Background(), clientID)

	client.SetDisconnectHandler(func(c *hub.Client) {
		if err := h.service.HandleDisconnect(ctx, c.ID); err != nil && !domain.IsDrop(err) {
			cl := pkglog.Ctx(ctx)
			cl.Error().Err(err).Msg("disconnect handler error")
		}
	})

	if err := h.hub.Register(client); err != nil {
		l.Debug().Err(err).Str(pkglog.FieldConnectionID, clientID).Msg("rejecting connection")
		conn.Close()
		return
	}
	if err := h.service.HandleConnect(ctx, clientID); err != nil {
		l.Error().Err(err).Str(pkglog.FieldConnectionID, clientID).Msg("failed to register participant")
		h.hub.Unregister(client)
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(func(c *hub.Client, message []byte) {
		h.handleMessage(ctx, c, message)
	})
}

func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, message []byte) {
	var base domain.BaseMessage
	if err := json.Unmarshal(message, &base); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message format"))
		return
	}

	var err error
	switch base.Type {
	case domain.MsgTypeWatch:
		var msg domain.WatchMessage
		if !decode(client, message, &msg) {
			return
		}
		err = h.service.HandleWatch(ctx, client.ID, &msg)

	case domain.MsgTypeLeave:
		err = h.service.HandleLeave(ctx, client.ID)

	case domain.MsgTypeStartBroadcast:
		err = h.service.HandleStartBroadcast(ctx, client.ID)

	case domain.MsgTypeEndBroadcast:
		err = h.service.HandleEndBroadcast(ctx, client.ID)

	case domain.MsgTypeOffer, domain.MsgTypeAnswer, domain.MsgTypeICECandidate:
		var msg domain.SignalMessage
		if !decode(client, message, &msg) {
			return
		}
		err = h.service.HandleSignal(ctx, client.ID, base.Type, msg.Target, msg.Body())

	case domain.MsgTypeMicRequest:
		var msg domain.MicRequestMessage
		if !decode(client, message, &msg) {
			return
		}
		err = h.service.HandleMicRequest(ctx, client.ID, msg.DisplayName)

	case domain.MsgTypeApproveMic, domain.MsgTypeRejectMic, domain.MsgTypeMuteMic:
		var msg domain.MicDecisionMessage
		if !decode(client, message, &msg) {
			return
		}
		err = h.service.HandleMicDecision(ctx, client.ID, base.Type, msg.ViewerID)

	case domain.MsgTypeMicRelease:
		err = h.service.HandleMicRelease(ctx, client.ID)

	case domain.MsgTypeStartRecording:
		var msg domain.StartRecordingMessage
		if !decode(client, message, &msg) {
			return
		}
		err = h.service.HandleStartRecording(ctx, client.ID, msg.SessionTag)

	case domain.MsgTypeStopRecording:
		err = h.service.HandleStopRecording(ctx, client.ID)

	case domain.MsgTypeChatMessage:
		var msg domain.ChatMessage
		if !decode(client, message, &msg) {
			return
		}
		err = h.service.HandleChat(ctx, client.ID, msg.Text)

	case domain.MsgTypePing:
		client.SendMessage(&domain.BaseMessage{Type: domain.MsgTypePong})

	default:
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeUnknownType, "Unknown message type"))
	}

	// drops were logged by the service
	if err != nil && !domain.IsDrop(err) {
		l := pkglog.Ctx(ctx)
		l.Error().Err(err).Str(pkglog.FieldMsgType, base.Type).Msg("message handling failed")
	}
}

func decode(client *hub.Client, message []byte, v interface{}) bool {
	if err := json.Unmarshal(message, v); err != nil {
		client.SendMessage(domain.NewErrorMessage(domain.ErrCodeBadRequest, "Invalid message body"))
		return false
	}
	return true
}
