package broker

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bluff-services/internal/comm"
	"github.com/avvvet/bluff-services/internal/table"
)

// Sockets is the connection registry the broker delivers into.
type Sockets interface {
	Send(socketId string, m *comm.WSMessage) error
	GetRoomSockets(roomId string) ([]string, bool)
	BindUser(socketId string, userId int64)
	JoinRoom(socketId, roomId string, gameId int64)
	LeaveRoom(socketId, roomId string)
	CloseRoom(roomId string)
}

type Broker struct {
	Conn    *nats.Conn
	Sockets Sockets
}

func NewBroker(conn *nats.Conn, sockets Sockets) *Broker {
	return &Broker{
		Conn:    conn,
		Sockets: sockets,
	}
}

// consume message from game service
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// publish message to game service
func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}

func (b *Broker) handleMessages(msgNats *nats.Msg) {
	b.HandleMessage(msgNats.Data)
}

// HandleMessage routes one game service message: replies go to a single
// socket, events to every socket in the room.
func (b *Broker) HandleMessage(data []byte) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(data, message); err != nil {
		log.Errorf("Error %s", err)
		return
	}

	switch {
	case message.SocketId != "":
		b.track(message)
		b.sendMessage(message.SocketId, message)
	case message.RoomId != "":
		b.fanOut(message)
	default:
		log.Warnf("message %s has no socket or room", message.Type)
	}
}

// track keeps identity and room membership in step with the game service.
func (b *Broker) track(m *comm.WSMessage) {
	switch m.Type {
	case comm.TypeInitResponse:
		var p comm.PlayerData
		if err := json.Unmarshal(m.Data, &p); err != nil {
			log.Errorf("Error malformed init-response %s", err)
			return
		}
		b.Sockets.BindUser(m.SocketId, p.UserId)
	case comm.TypeJoinResponse, comm.TypeLeaveResponse:
		var r comm.RoomJoined
		if err := json.Unmarshal(m.Data, &r); err != nil {
			log.Errorf("Error malformed %s %s", m.Type, err)
			return
		}
		if m.Type == comm.TypeJoinResponse {
			b.Sockets.JoinRoom(m.SocketId, r.RoomId, r.GameId)
		} else {
			b.Sockets.LeaveRoom(m.SocketId, r.RoomId)
		}
	}
}

func (b *Broker) fanOut(m *comm.WSMessage) {
	roomId := m.RoomId
	sockets, _ := b.Sockets.GetRoomSockets(roomId)
	for _, socketId := range sockets {
		b.sendMessage(socketId, m)
	}
	if m.Type == string(table.EventGameFinished) {
		b.Sockets.CloseRoom(roomId)
	}
}

// send socket message to the web client
func (b *Broker) sendMessage(socketId string, m *comm.WSMessage) {
	if err := b.Sockets.Send(socketId, m); err != nil {
		log.Debugf("drop %s for socket %s: %v", m.Type, socketId, err)
	}
}
