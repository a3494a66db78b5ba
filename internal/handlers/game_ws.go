// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pongd/internal/database"
	"pongd/internal/game"
	"pongd/internal/middleware"
	"pongd/internal/models"
)

// ClientMessage is the envelope for inbound client intents.
type ClientMessage struct {
	EventName string          `json:"eventName"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type joinPayload struct {
	UserID   int64           `json:"userId"`
	RoomID   string          `json:"roomId"`
	UserType models.UserType `json:"userType"`
	Username string          `json:"username"`
	Avatar   string          `json:"avatar"`
}

type padMovedPayload struct {
	Direction float64 `json:"direction"`
}

type sceneLoadedPayload struct {
	Phase string `json:"phase"`
}

// GameWSHandler upgrades the HTTP connection to a WebSocket bound to one
// game session: /game/ws/{game_id}. The upgrade is accepted before the
// game id and token are checked, so rejections reach the client as
// application close codes instead of opaque HTTP failures.
func GameWSHandler(logger *logrus.Logger, gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"game"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error on %s: %v", r.URL.Path, err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "internal error during handler exit")

		if c.Subprotocol() != "game" {
			c.Close(BadSubprotocolError, "client must use the 'game' subprotocol")
			return
		}

		gameIDStr := strings.TrimPrefix(r.URL.Path, "/game/ws/")
		if i := strings.IndexByte(gameIDStr, '/'); i >= 0 {
			gameIDStr = gameIDStr[:i]
		}
		gameID, err := uuid.Parse(gameIDStr)
		if err != nil {
			c.Close(InvalidGameIDError, "invalid game_id in path (/game/ws/{game_id})")
			return
		}

		s, ok := gs.Registry.GetSession(gameID)
		if !ok {
			c.Close(InvalidGameIDError, "game not found")
			return
		}
		if s.IsFinished() {
			c.Close(InvalidGameIDError, "game has already ended")
			return
		}

		userID, err := authenticateRequest(r)
		if err != nil {
			logger.Warnf("authentication failed for game %s: %v", gameID, err)
			c.Close(InvalidAuthTokenError, "authentication failed")
			return
		}
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, gameID.String(), userID)

		connID, _ := uuid.NewRandom()
		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		rc := &RoomConnection{
			ConnID:  connID,
			UserID:  userID,
			OutChan: make(chan []byte, 64),
			Cancel:  cancel,
		}
		room := gs.Rooms.Room(gameID)
		room.Join(rc)
		go writePump(ctx, c, rc, logger)

		readErr := readClientMessages(ctx, c, gs, s, userID, connID, logger)

		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, gameID.String(), userID, readErr)
		gs.HandleDisconnect(connID)
		room.Leave(connID)
	}
}

// readClientMessages routes inbound intents to the session and its
// engine, flushing pending events after each handled message.
func readClientMessages(ctx context.Context, c *websocket.Conn, gs *GameServer, s *game.GameSession, userID int64, connID uuid.UUID, logger *logrus.Logger) error {
	for {
		msgType, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				return nil
			}
			if strings.Contains(err.Error(), "context canceled") {
				return nil
			}
			return err
		}
		if msgType != websocket.MessageText {
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warnf("invalid JSON from user %d on game %s: %v", userID, s.ID, err)
			continue
		}

		handleClientMessage(gs, s, msg, userID, connID, logger)
		gs.Flush(s)

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

// handleClientMessage applies one inbound intent. Failed operations
// produce no state change rather than surfacing errors to the wire;
// clients observe outcomes through the flushed events.
func handleClientMessage(gs *GameServer, s *game.GameSession, msg ClientMessage, userID int64, connID uuid.UUID, logger *logrus.Logger) {
	switch msg.EventName {
	case game.EventJoinGame:
		var p joinPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &p); err != nil {
				logger.Warnf("bad joinGame payload from user %d: %v", userID, err)
				return
			}
		}
		handleJoin(gs, s, p, userID, connID, logger)

	case game.EventPadMoved:
		var p padMovedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			logger.Warnf("bad padMoved payload from user %d: %v", userID, err)
			return
		}
		if e := gs.EngineFor(s.ID); e != nil {
			e.SetPadDirection(userID, p.Direction)
			s.QueueEvent(game.EventPadMoved, map[string]interface{}{
				"userId":    userID,
				"direction": p.Direction,
			})
		}

	case game.EventBallServed:
		if e := gs.EngineFor(s.ID); e != nil {
			if e.Serve() {
				s.QueueEvent(game.EventBallServed, map[string]interface{}{
					"userId": userID,
				})
			}
		}

	case "sceneLoaded":
		var p sceneLoadedPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			logger.Warnf("bad sceneLoaded payload from user %d: %v", userID, err)
			return
		}
		var ackErr error
		switch p.Phase {
		case "waiting":
			ackErr = s.AckWaitingDone(userID)
		case "playing":
			ackErr = s.AckSceneLoaded(userID)
		default:
			logger.Warnf("unknown sceneLoaded phase %q from user %d", p.Phase, userID)
			return
		}
		if ackErr != nil {
			logger.Warnf("scene ack rejected for user %d on game %s: %v", userID, s.ID, ackErr)
		}

	default:
		logger.Warnf("unknown event %q from user %d on game %s", msg.EventName, userID, s.ID)
	}
}

// handleJoin registers the caller as participant or observer, marks
// their monitor Ready, and queues the current membership lists.
func handleJoin(gs *GameServer, s *game.GameSession, p joinPayload, userID int64, connID uuid.UUID, logger *logrus.Logger) {
	gamer := models.Gamer{
		UserID:       userID,
		Username:     p.Username,
		Avatar:       p.Avatar,
		ConnectionID: connID,
	}

	if p.UserType == models.UserTypeViewer {
		if s.AddObserver(gamer) {
			go persistMembership(gs, s.ID, userID, true, logger)
		}
		s.QueueEvent(game.EventViewersRetrieved, s.ObserversSnapshot())
		return
	}

	added := s.AddParticipant(gamer)
	if added {
		go persistMembership(gs, s.ID, userID, false, logger)
	}
	if err := s.MarkReady(userID); err != nil {
		logger.Warnf("cannot mark user %d ready on game %s: %v", userID, s.ID, err)
	}
	s.QueueEvent(game.EventPlayersRetrieved, s.ParticipantsSnapshot())
}

func persistMembership(gs *GameServer, gameID uuid.UUID, userID int64, viewer bool, logger *logrus.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var err error
	if viewer {
		err = database.AddObserver(ctx, gameID, userID)
	} else {
		err = database.AddParticipant(ctx, gameID, userID)
	}
	if err != nil {
		logger.Warnf("failed to persist membership for user %d on game %s: %v", userID, gameID, err)
	}
}
