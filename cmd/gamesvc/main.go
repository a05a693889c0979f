package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/httprate"
	log "github.com/sirupsen/logrus"

	config "github.com/avvvet/bluff-services/configs"
	mongodb "github.com/avvvet/bluff-services/internal/db"
	"github.com/avvvet/bluff-services/internal/gamesvc/broker"
	"github.com/avvvet/bluff-services/internal/gamesvc/db"
	handlers "github.com/avvvet/bluff-services/internal/gamesvc/handlers"
	"github.com/avvvet/bluff-services/internal/gamesvc/service"
	"github.com/avvvet/bluff-services/internal/gamesvc/store"
	"github.com/avvvet/bluff-services/internal/hands"
	natscli "github.com/avvvet/bluff-services/internal/nats"
	"github.com/avvvet/bluff-services/internal/table"
)

const SERVICE_NAME = "game"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg := config.Load()
	ctx := context.Background()

	if err := db.Migrate(cfg.PostgresURL); err != nil {
		log.Fatalf("Failed to migrate DB: %v", err)
	}

	// pg connection
	dbpool, err := db.Connect(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer db.ClosePool()
	log.Printf("pg connection established successfully")

	// mongo keeps the table chat
	mdb, err := mongodb.ConnectToDB(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to mongo: %v", err)
	}
	defer mongodb.Disconnect(mdb)
	if err := mongodb.CreateTTLIndexForCollection(ctx, mdb, store.MessagesCollection); err != nil {
		log.Fatalf("Failed to create TTL index: %v", err)
	}

	// Connect to NATS
	n, err := natscli.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"_"+instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	userStore := store.NewUserStore(dbpool)
	gameStore := store.NewGameStore(dbpool)
	messageStore := store.NewMessageStore(mdb)

	catalog := hands.Default()
	rules := table.Rules{Catalog: catalog, HandSize: cfg.HandSize, MinSeats: 2, MaxSeats: cfg.MaxSeats}

	userService := service.NewUserService(userStore)
	queryService := service.NewQueryService(gameStore, catalog)

	// init peer message broker; the services broadcast through it
	b := broker.NewBroker(n.Conn, n.Conn, userService, nil, queryService, nil)
	b.Games = service.NewGameService(gameStore, userStore, b, service.GameOptions{Rules: rules, WildCards: cfg.WildCards})
	b.Messages = service.NewMessageService(messageStore, gameStore, b, cfg.MessageTTL)

	// game instances share the socket input
	sub, err := b.QueueSubscribe(natscli.SocketTopic, "game-workers")
	if err != nil {
		log.Errorf("Error: unable to subscribe to queue %v", err)
		os.Exit(1)
	}

	// Setup router
	r := chi.NewRouter()
	c := config.CORS(cfg.CORSOrigins)

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Init handlers and routes
	h := handlers.NewHandler(cfg.GamePort, queryService, b.Messages)
	h.InitAuth(cfg.JWTSecret, os.Getenv("JWT_DEBUG") == "true")
	h.SetRoutes(r)

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.GamePort,
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe(): %v", err)
		}
	}()
	log.Infof("%s service running at port %s", SERVICE_NAME, server.Addr)

	// Wait for interrupt signal to gracefully shutdown the server
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	if err := sub.Drain(); err != nil {
		log.Warnf("drain subscription: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
