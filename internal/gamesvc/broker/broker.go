package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bluff-services/internal/comm"
	"github.com/avvvet/bluff-services/internal/gamesvc/models"
	"github.com/avvvet/bluff-services/internal/gamesvc/service"
	natscli "github.com/avvvet/bluff-services/internal/nats"
	"github.com/avvvet/bluff-services/internal/table"
)

const requestTimeout = 10 * time.Second

// Publisher is the part of *nats.Conn the broker writes through.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// handlerFunc validates one inbound message and queues its work. The
// returned waitFunc blocks for the direct reply to the sender, if any.
type handlerFunc func(ctx context.Context, msg *comm.WSMessage) (waitFunc, error)

type waitFunc func(ctx context.Context) (replyType string, reply any, err error)

type Broker struct {
	Conn     *nats.Conn
	pub      Publisher
	Users    *service.UserService
	Games    *service.GameService
	Queries  *service.QueryService
	Messages *service.MessageService

	handlers map[string]handlerFunc
}

func NewBroker(nc *nats.Conn, pub Publisher, users *service.UserService, games *service.GameService,
	queries *service.QueryService, messages *service.MessageService) *Broker {
	b := &Broker{
		Conn:     nc,
		pub:      pub,
		Users:    users,
		Games:    games,
		Queries:  queries,
		Messages: messages,
	}
	b.handlers = map[string]handlerFunc{
		comm.TypeInit:      b.handleInit,
		comm.TypeJoin:      b.handleJoin,
		comm.TypeLeave:     b.handleLeave,
		comm.TypeStart:     b.handleStart,
		comm.TypeClaim:     b.handleClaim,
		comm.TypeChallenge: b.handleChallenge,
		comm.TypeMessage:   b.handleChat,

		comm.TypeStatus:        b.query(func(ctx context.Context, gid, _ int64) (any, error) { return b.Queries.Status(ctx, gid) }),
		comm.TypePlayerCount:   b.query(func(ctx context.Context, gid, _ int64) (any, error) { return b.Queries.PlayerCount(ctx, gid) }),
		comm.TypeDeckSize:      b.query(func(ctx context.Context, gid, _ int64) (any, error) { return b.Queries.DeckSize(ctx, gid) }),
		comm.TypeRoster:        b.query(func(ctx context.Context, gid, _ int64) (any, error) { return b.Queries.Roster(ctx, gid) }),
		comm.TypeTurnInfo:      b.query(func(ctx context.Context, gid, _ int64) (any, error) { return b.Queries.TurnInfo(ctx, gid) }),
		comm.TypeLastClaimInfo: b.query(func(ctx context.Context, gid, _ int64) (any, error) { return b.Queries.LastClaimInfo(ctx, gid) }),
		comm.TypeHandInfo:      b.query(func(ctx context.Context, gid, uid int64) (any, error) { return b.Queries.HandInfo(ctx, gid, uid) }),
	}
	return b
}

// QueueSubscribe consumes player input; instances in the same queue group
// share the load.
func (b *Broker) QueueSubscribe(topic, queueGroup string) (*nats.Subscription, error) {
	return b.Conn.QueueSubscribe(topic, queueGroup, b.handleMessage)
}

// handles message coming from socket. Messages are queued in arrival order
// before the subscription moves on; only the waiting happens elsewhere.
func (b *Broker) handleMessage(msgNat *nats.Msg) {
	b.Dispatch(msgNat.Data)
}

// HandleMessage serves one message and returns once its reply is out.
func (b *Broker) HandleMessage(data []byte) {
	<-b.Dispatch(data)
}

// Dispatch parses data and queues it with its game. The returned channel is
// closed once the sender has been answered.
func (b *Broker) Dispatch(data []byte) <-chan struct{} {
	done := make(chan struct{})

	msg := &comm.WSMessage{}
	if err := json.Unmarshal(data, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		close(done)
		return done
	}

	h, ok := b.handlers[msg.Type]
	if !ok {
		log.Warnf("unknown message type %q from socket %s", msg.Type, msg.SocketId)
		b.replyError(msg, fmt.Errorf("%w: %q", table.ErrUnknownAction, msg.Type))
		close(done)
		return done
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	wait, err := h(ctx, msg)
	if err != nil {
		cancel()
		b.replyError(msg, err)
		close(done)
		return done
	}

	go func() {
		defer close(done)
		defer cancel()

		replyType, reply, err := wait(ctx)
		if err != nil {
			b.replyError(msg, err)
			return
		}
		if replyType != "" {
			b.reply(msg.SocketId, replyType, reply)
		}
	}()
	return done
}

func (b *Broker) handleInit(_ context.Context, msg *comm.WSMessage) (waitFunc, error) {
	var req comm.InitRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return nil, fmt.Errorf("malformed init payload: %w", err)
	}

	// the socket holds every other message back until init is answered
	return func(ctx context.Context) (string, any, error) {
		user, err := b.Users.GetOrCreateUser(ctx, models.User{UserId: req.UserId, Name: req.Name, Avatar: req.Avatar})
		if err != nil {
			log.Errorf("Error [UserService.GetOrCreateUser] %s", err)
			return "", nil, err
		}
		return comm.TypeInitResponse, comm.PlayerData{Name: user.Name, UserId: user.UserId}, nil
	}, nil
}

func (b *Broker) handleJoin(ctx context.Context, msg *comm.WSMessage) (waitFunc, error) {
	req, err := gameRequest(msg)
	if err != nil {
		return nil, err
	}
	p, err := b.Games.Submit(ctx, req.GameId, table.Action{Kind: table.ActionJoin, PlayerID: msg.UserId})
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (string, any, error) {
		out, err := p.Wait(ctx)
		if err != nil {
			return "", nil, err
		}
		return comm.TypeJoinResponse, comm.RoomJoined{GameId: req.GameId, RoomId: comm.RoomOf(req.GameId), Players: out.Game.Seats}, nil
	}, nil
}

func (b *Broker) handleLeave(ctx context.Context, msg *comm.WSMessage) (waitFunc, error) {
	req, err := gameRequest(msg)
	if err != nil {
		return nil, err
	}
	p, err := b.Games.Submit(ctx, req.GameId, table.Action{Kind: table.ActionLeave, PlayerID: msg.UserId})
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (string, any, error) {
		if _, err := p.Wait(ctx); err != nil {
			return "", nil, err
		}
		return comm.TypeLeaveResponse, comm.RoomJoined{GameId: req.GameId, RoomId: comm.RoomOf(req.GameId)}, nil
	}, nil
}

func (b *Broker) handleStart(ctx context.Context, msg *comm.WSMessage) (waitFunc, error) {
	req, err := gameRequest(msg)
	if err != nil {
		return nil, err
	}
	return b.submit(ctx, msg, req.GameId, table.Action{Kind: table.ActionStart, PlayerID: msg.UserId})
}

func (b *Broker) handleClaim(ctx context.Context, msg *comm.WSMessage) (waitFunc, error) {
	req, err := gameRequest(msg)
	if err != nil {
		return nil, err
	}
	rankID := req.CombinationId
	if rankID == 0 {
		rank, err := b.Games.Rules().Catalog.Lookup(req.Description)
		if err != nil {
			return nil, err
		}
		rankID = rank.ID
	}
	return b.submit(ctx, msg, req.GameId, table.Action{Kind: table.ActionClaim, PlayerID: msg.UserId, RankID: rankID})
}

func (b *Broker) handleChallenge(ctx context.Context, msg *comm.WSMessage) (waitFunc, error) {
	req, err := gameRequest(msg)
	if err != nil {
		return nil, err
	}
	return b.submit(ctx, msg, req.GameId, table.Action{Kind: table.ActionChallenge, PlayerID: msg.UserId})
}

func (b *Broker) handleChat(ctx context.Context, msg *comm.WSMessage) (waitFunc, error) {
	req, err := gameRequest(msg)
	if err != nil {
		return nil, err
	}
	p, err := b.Games.Within(ctx, req.GameId, func(ctx context.Context) (any, error) {
		return b.Messages.Post(ctx, req.GameId, msg.UserId, req.Text)
	})
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (string, any, error) {
		if _, err := p.Value(ctx); err != nil {
			return "", nil, err
		}
		return actionOK(req.GameId, msg.Type)
	}, nil
}

// submit queues a and acknowledges it once it has gone through.
func (b *Broker) submit(ctx context.Context, msg *comm.WSMessage, gameID int64, a table.Action) (waitFunc, error) {
	p, err := b.Games.Submit(ctx, gameID, a)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (string, any, error) {
		if _, err := p.Wait(ctx); err != nil {
			return "", nil, err
		}
		return actionOK(gameID, msg.Type)
	}, nil
}

// query wraps a read so its answer goes back to the asking socket only. The
// read sees every action queued on the game before it.
func (b *Broker) query(read func(ctx context.Context, gameID, userID int64) (any, error)) handlerFunc {
	return func(ctx context.Context, msg *comm.WSMessage) (waitFunc, error) {
		req, err := gameRequest(msg)
		if err != nil {
			return nil, err
		}
		p, err := b.Games.Within(ctx, req.GameId, func(ctx context.Context) (any, error) {
			return read(ctx, req.GameId, msg.UserId)
		})
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) (string, any, error) {
			v, err := p.Value(ctx)
			if err != nil {
				return "", nil, err
			}
			return msg.Type + "-response", comm.QueryReply{GameId: req.GameId, Value: v}, nil
		}, nil
	}
}

func gameRequest(msg *comm.WSMessage) (comm.GameRequest, error) {
	var req comm.GameRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		return req, fmt.Errorf("malformed %s payload: %w", msg.Type, err)
	}
	if msg.UserId <= 0 {
		return req, fmt.Errorf("%w: socket has not sent init", table.ErrUnknownPlayer)
	}
	return req, nil
}

func actionOK(gameID int64, action string) (string, any, error) {
	return comm.TypeActionOK, comm.ActionOK{GameId: gameID, Action: action}, nil
}

// replyError tells the sender why its message failed. Rejections keep their
// own event kind; everything else is a plain error.
func (b *Broker) replyError(msg *comm.WSMessage, err error) {
	if rej, isRejection := table.AsRejection(err); isRejection {
		var gameID int64
		if req, perr := gameRequest(msg); perr == nil {
			gameID = req.GameId
		}
		ev := table.RejectionEvent(gameID, rej)
		b.reply(msg.SocketId, string(ev.Kind), ev.Payload)
		return
	}
	log.Warnf("message %s from user %d failed: %s", msg.Type, msg.UserId, err)
	b.reply(msg.SocketId, comm.TypeError, comm.ErrorReply{Error: err.Error()})
}

func (b *Broker) reply(socketId, msgType string, v any) {
	if socketId == "" {
		return
	}
	if err := b.publish(&comm.WSMessage{Type: msgType, SocketId: socketId}, v); err != nil {
		log.Errorf("Error [Broker.reply] %s to %s: %s", msgType, socketId, err)
	}
}

// Broadcast sends a game event to every socket in the game's room.
func (b *Broker) Broadcast(e table.Event) error {
	return b.publish(&comm.WSMessage{Type: string(e.Kind), RoomId: comm.RoomOf(e.GameID)}, e.Payload)
}

func (b *Broker) publish(msg *comm.WSMessage, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Type, err)
	}
	msg.Data = data

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal envelope %s: %w", msg.Type, err)
	}
	return b.pub.Publish(natscli.GameTopic, payload)
}
