package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/graph-gophers/graphql-go"
	"github.com/sirupsen/logrus"

	"library-api/internal/auth"
)

const (
	protocolTransportWS = "graphql-transport-ws"
	protocolGraphQLWS   = "graphql-ws"

	closeBadRequest       = 4400
	closeForbidden        = 4403
	closeInitTimeout      = 4408
	closeSubscriberExists = 4409

	wsWriteTimeout = 10 * time.Second
)

// client -> server and server -> client message types for both subprotocols
const (
	msgConnectionInit      = "connection_init"
	msgConnectionAck       = "connection_ack"
	msgConnectionTerminate = "connection_terminate"
	msgKeepAlive           = "ka"
	msgPing                = "ping"
	msgPong                = "pong"
	msgSubscribe           = "subscribe"
	msgStart               = "start"
	msgNext                = "next"
	msgData                = "data"
	msgError               = "error"
	msgComplete            = "complete"
	msgStop                = "stop"
)

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type subscribePayload struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// subscriptionServer serves GraphQL subscriptions over websockets.
type subscriptionServer struct {
	schema      *graphql.Schema
	gate        *auth.Gate
	logger      *logrus.Logger
	upgrader    websocket.Upgrader
	initTimeout time.Duration
}

func newSubscriptionServer(schema *graphql.Schema, gate *auth.Gate, logger *logrus.Logger) *subscriptionServer {
	return &subscriptionServer{
		schema: schema,
		gate:   gate,
		logger: logger,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{protocolTransportWS, protocolGraphQLWS},
			CheckOrigin:  func(*http.Request) bool { return true },
		},
		initTimeout: 10 * time.Second,
	}
}

func (s *subscriptionServer) serve(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket upgrade failed")
		return
	}

	protocol := conn.Subprotocol()
	if protocol == "" {
		protocol = protocolTransportWS
	}
	session := &wsSession{
		conn:     conn,
		protocol: protocol,
		server:   s,
		log:      s.logger.WithField("request_id", c.GetString(requestIDKey)),
		active:   make(map[string]context.CancelFunc),
	}
	session.run(c.Request.Context())
}

type wsSession struct {
	conn     *websocket.Conn
	protocol string
	server   *subscriptionServer
	log      *logrus.Entry

	writeMu sync.Mutex
	mu      sync.Mutex
	active  map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func (s *wsSession) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.wg.Wait()
		s.conn.Close()
	}()

	ctx, ok := s.init(ctx)
	if !ok {
		return
	}

	for {
		var msg wsMessage
		if err := s.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.WithError(err).Debug("websocket read")
			}
			return
		}

		switch msg.Type {
		case msgSubscribe, msgStart:
			if !s.start(ctx, msg) {
				return
			}
		case msgComplete, msgStop:
			s.stop(msg.ID)
		case msgPing:
			s.write(wsMessage{Type: msgPong})
		case msgPong:
		case msgConnectionTerminate:
			return
		default:
			s.close(closeBadRequest, "unexpected message "+msg.Type)
			return
		}
	}
}

// init waits for connection_init. An Authorization entry in its payload
// replaces whatever identity the upgrade request carried.
func (s *wsSession) init(ctx context.Context) (context.Context, bool) {
	_ = s.conn.SetReadDeadline(time.Now().Add(s.server.initTimeout))
	var msg wsMessage
	err := s.conn.ReadJSON(&msg)
	_ = s.conn.SetReadDeadline(time.Time{})
	if err != nil {
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			s.close(closeInitTimeout, "Connection initialisation timeout")
		}
		return ctx, false
	}
	if msg.Type != msgConnectionInit {
		s.close(closeBadRequest, "expected connection_init")
		return ctx, false
	}

	if header := initAuthorization(msg.Payload); header != "" {
		user, err := s.server.gate.Authenticate(ctx, header)
		if err != nil {
			s.log.WithError(err).Warn("rejected websocket credentials")
			s.close(closeForbidden, "Forbidden")
			return ctx, false
		}
		ctx = auth.WithUser(ctx, user)
	}

	s.write(wsMessage{Type: msgConnectionAck})
	if s.protocol == protocolGraphQLWS {
		s.write(wsMessage{Type: msgKeepAlive})
	}
	return ctx, true
}

func initAuthorization(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	for _, key := range []string{"Authorization", "authorization"} {
		if v, ok := payload[key].(string); ok {
			return v
		}
	}
	return ""
}

func (s *wsSession) start(ctx context.Context, msg wsMessage) bool {
	if msg.ID == "" {
		s.close(closeBadRequest, "subscription id is required")
		return false
	}

	var payload subscribePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		s.close(closeBadRequest, "invalid subscribe payload")
		return false
	}

	s.mu.Lock()
	if _, exists := s.active[msg.ID]; exists {
		s.mu.Unlock()
		s.close(closeSubscriberExists, "Subscriber for "+msg.ID+" already exists")
		return false
	}
	subCtx, cancel := context.WithCancel(ctx)
	s.active[msg.ID] = cancel
	s.mu.Unlock()

	results, err := s.server.schema.Subscribe(subCtx, payload.Query, payload.OperationName, payload.Variables)
	if err != nil {
		s.stop(msg.ID)
		s.sendErrors(msg.ID, []map[string]string{{"message": err.Error()}})
		return true
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finish(msg.ID)

		for result := range results {
			resp, ok := result.(*graphql.Response)
			if !ok {
				continue
			}
			if resp.Data == nil && len(resp.Errors) > 0 {
				// an error message ends the operation; no complete follows
				s.stop(msg.ID)
				s.sendErrors(msg.ID, resp.Errors)
				return
			}
			body, err := json.Marshal(resp)
			if err != nil {
				s.log.WithError(err).Error("encode subscription payload")
				return
			}
			s.write(wsMessage{ID: msg.ID, Type: s.dataType(), Payload: body})
		}
	}()
	return true
}

// stop ends a subscription at the client's request; no complete is echoed.
func (s *wsSession) stop(id string) {
	s.mu.Lock()
	cancel, ok := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// finish ends a subscription from the server side and tells the client.
func (s *wsSession) finish(id string) {
	s.mu.Lock()
	cancel, ok := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	cancel()
	s.write(wsMessage{ID: id, Type: msgComplete})
}

func (s *wsSession) sendErrors(id string, errs interface{}) {
	body, err := json.Marshal(errs)
	if err != nil {
		s.log.WithError(err).Error("encode subscription errors")
		return
	}
	s.write(wsMessage{ID: id, Type: msgError, Payload: body})
}

func (s *wsSession) dataType() string {
	if s.protocol == protocolGraphQLWS {
		return msgData
	}
	return msgNext
}

func (s *wsSession) write(msg wsMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := s.conn.WriteJSON(msg); err != nil {
		s.log.WithError(err).Debug("websocket write")
	}
}

func (s *wsSession) close(code int, reason string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	deadline := time.Now().Add(wsWriteTimeout)
	_ = s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
}
