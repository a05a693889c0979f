package nats

import (
	"time"

	"github.com/nats-io/nats.go"
)

// Topics shared by the services. The socket service publishes player input
// on SocketTopic, the game service answers on GameTopic.
const (
	SocketTopic = "socket.service"
	GameTopic   = "game.service"
)

type Nats struct {
	Url   string
	Token string
	Conn  *nats.Conn
}

func Connect(url, token, name string) (*Nats, error) {
	n := &Nats{
		Url:   url,
		Token: token,
	}

	if n.Url == "" {
		n.Url = "nats://localhost:4224"
	}

	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}

	// if token provided
	if n.Token != "" {
		opts = append(opts, nats.Token(n.Token))
	}

	conn, err := nats.Connect(n.Url, opts...)
	if err != nil {
		return nil, err
	}

	n.Conn = conn

	return n, nil
}
