package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/bluff-services/configs"
	"github.com/avvvet/bluff-services/internal/comm"
	"github.com/avvvet/bluff-services/internal/gamesvc/db"
	"github.com/avvvet/bluff-services/internal/gamesvc/service"
	"github.com/avvvet/bluff-services/internal/gamesvc/store"
	natscli "github.com/avvvet/bluff-services/internal/nats"
)

const SERVICE_NAME = "ctl"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg := config.Load()
	if cfg.AutostartMinPlayers <= 0 {
		log.Infof("AUTOSTART_MIN_PLAYERS not set, nothing to do")
		return
	}

	// pg connection
	dbpool, err := db.Connect(context.Background(), cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	// Connect to NATS
	n, err := natscli.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"_"+instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	auto := &service.AutoStart{
		Games:      store.NewGameStore(dbpool),
		MinPlayers: cfg.AutostartMinPlayers,
		After:      cfg.AutostartAfter,
		Publish: func(gameID, playerID int64) error {
			return PublishStart(n, gameID, playerID)
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	auto.Run(ctx, 5*time.Second)
	log.Infof("%s service stopped", SERVICE_NAME)
}

// PublishStart asks the game service to start a table as its first player.
// There is no socket to answer, so the outcome is only seen as the
// round-started broadcast.
func PublishStart(n *natscli.Nats, gameID, playerID int64) error {
	data, err := json.Marshal(comm.GameRequest{GameId: gameID})
	if err != nil {
		return err
	}

	msg := &comm.WSMessage{
		Type:   comm.TypeStart,
		Data:   data,
		UserId: playerID,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return n.Conn.Publish(natscli.SocketTopic, payload)
}
