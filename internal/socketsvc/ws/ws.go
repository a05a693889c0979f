package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bluff-services/internal/comm"
	natscli "github.com/avvvet/bluff-services/internal/nats"
)

const writeWait = 10 * time.Second

var ErrNoSocket = errors.New("socket not connected")

// Publisher forwards client messages to the game service.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// client serializes writes; gorilla connections allow one writer at a time.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

type Ws struct {
	connMap sync.Map // socketId -> *client
	userMap sync.Map // socketId -> userId, set once the game service answers init

	mu    sync.RWMutex
	rooms map[string]map[string]struct{} // roomId -> socketIds
	games map[string]map[string]int64    // socketId -> roomId -> gameId

	Broker Publisher
}

func NewWs() *Ws {
	return &Ws{
		rooms: make(map[string]map[string]struct{}),
		games: make(map[string]map[string]int64),
	}
}

// SocketMessage stamps a client message with its socket and user and hands
// it to the game service. Only init may arrive before the user is known.
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	message.SocketId = socketId
	message.RoomId = ""
	message.UserId = 0

	if message.Type != comm.TypeInit {
		userId, ok := s.GetUser(socketId)
		if !ok {
			s.SendError(socketId, "send init first")
			return
		}
		message.UserId = userId
	}

	if err := s.publish(message); err != nil {
		s.SendError(socketId, "game service unavailable")
	}
}

func (s *Ws) publish(msg *comm.WSMessage) error {
	bytes, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Failed to marshal WSMessage for NATS: %v", err)
		return err
	}

	if err := s.Broker.Publish(natscli.SocketTopic, bytes); err != nil {
		log.Errorf("Failed to publish to NATS topic %s: %v", natscli.SocketTopic, err)
		return err
	}
	return nil
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, &client{conn: conn})
}

// Send writes one message to a socket.
func (s *Ws) Send(socketId string, m *comm.WSMessage) error {
	v, ok := s.connMap.Load(socketId)
	if !ok {
		return ErrNoSocket
	}
	c := v.(*client)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(m)
}

func (s *Ws) SendError(socketId, reason string) {
	data, _ := json.Marshal(comm.ErrorReply{Error: reason})
	if err := s.Send(socketId, &comm.WSMessage{Type: comm.TypeError, Data: data}); err != nil {
		log.Errorf("Failed to send error message to %s: %v", socketId, err)
	}
}

func (s *Ws) BindUser(socketId string, userId int64) {
	if _, ok := s.connMap.Load(socketId); !ok {
		return
	}
	s.userMap.Store(socketId, userId)
}

func (s *Ws) GetUser(socketId string) (int64, bool) {
	v, ok := s.userMap.Load(socketId)
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

func (s *Ws) JoinRoom(socketId, roomId string, gameId int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.connMap.Load(socketId); !ok {
		return
	}
	if s.rooms[roomId] == nil {
		s.rooms[roomId] = make(map[string]struct{})
	}
	s.rooms[roomId][socketId] = struct{}{}
	if s.games[socketId] == nil {
		s.games[socketId] = make(map[string]int64)
	}
	s.games[socketId][roomId] = gameId
}

func (s *Ws) LeaveRoom(socketId, roomId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaveRoom(socketId, roomId)
}

func (s *Ws) leaveRoom(socketId, roomId string) {
	delete(s.rooms[roomId], socketId)
	if len(s.rooms[roomId]) == 0 {
		delete(s.rooms, roomId)
	}
	delete(s.games[socketId], roomId)
	if len(s.games[socketId]) == 0 {
		delete(s.games, socketId)
	}
}

// CloseRoom forgets a room whose game is over.
func (s *Ws) CloseRoom(roomId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for socketId := range s.rooms[roomId] {
		s.leaveRoom(socketId, roomId)
	}
}

func (s *Ws) GetRoomSockets(roomId string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sockets := make([]string, 0, len(s.rooms[roomId]))
	for socketId := range s.rooms[roomId] {
		sockets = append(sockets, socketId)
	}
	return sockets, len(sockets) > 0
}

// HandleDisconnect drops the socket and leaves every game it sat at on the
// player's behalf. The leave carries no socket id, so nothing is replied.
func (s *Ws) HandleDisconnect(socketId string) {
	s.mu.Lock()
	joined := make(map[string]int64, len(s.games[socketId]))
	for roomId, gameId := range s.games[socketId] {
		joined[roomId] = gameId
	}
	for roomId := range joined {
		s.leaveRoom(socketId, roomId)
	}
	// JoinRoom checks connMap under s.mu, so a late join-response is dropped
	s.connMap.Delete(socketId)
	s.mu.Unlock()

	userId, ok := s.GetUser(socketId)
	s.userMap.Delete(socketId)
	if !ok {
		return
	}

	for _, gameId := range joined {
		data, _ := json.Marshal(comm.GameRequest{GameId: gameId})
		if err := s.publish(&comm.WSMessage{Type: comm.TypeLeave, Data: data, UserId: userId}); err != nil {
			log.Errorf("Failed to leave game %d for user %d: %v", gameId, userId, err)
		}
	}
}
