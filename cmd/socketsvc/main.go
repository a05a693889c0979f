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
	natscli "github.com/avvvet/bluff-services/internal/nats"
	"github.com/avvvet/bluff-services/internal/socketsvc/broker"
	"github.com/avvvet/bluff-services/internal/socketsvc/handlers"
	"github.com/avvvet/bluff-services/internal/socketsvc/routes"
	"github.com/avvvet/bluff-services/internal/socketsvc/ws"
)

const SERVICE_NAME = "socket"

var instanceId string

func init() {
	instanceId = config.CreateUniqueInstance(SERVICE_NAME)
	config.Logging(SERVICE_NAME + "_service_" + instanceId)
	config.LoadEnv(SERVICE_NAME)
}

func main() {
	cfg := config.Load()

	// Connect to NATS
	n, err := natscli.Connect(cfg.NatsURL, cfg.NatsToken, SERVICE_NAME+"_"+instanceId)
	if err != nil {
		log.Errorf("Error: unable to connect to NATS server %v", err)
		os.Exit(1)
	}
	defer n.Conn.Close()
	log.Printf("NATS connection established successfully %s", n.Url)

	// Setup router
	r := chi.NewRouter()
	c := config.CORS(cfg.CORSOrigins)

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(config.CustomLoggerMiddleware())
	r.Use(c.Handler)

	// to protect the service api from any over requests
	r.Use(httprate.LimitByIP(cfg.RateLimit, 1*time.Minute))

	// Initialize websocket registry and broker
	s := ws.NewWs()
	b := broker.NewBroker(n.Conn, s)
	s.Broker = b

	routes.InitAuth(cfg.JWTSecret, os.Getenv("JWT_DEBUG") == "true")
	routes.SetRoutes(r, handlers.NewHandler(s, cfg.SocketPort, cfg.SocketMsgRate))

	// every socket instance sees every reply and event; each delivers to the
	// sockets it holds
	sub, err := b.Subscribe(natscli.GameTopic)
	if err != nil {
		log.Errorf("Error: unable to subscribe to topic %v", err)
		os.Exit(1)
	}

	// Create server with timeout settings
	server := &http.Server{
		Addr:         ":" + cfg.SocketPort,
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

	sub.Unsubscribe()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("%s service shutdown Failed:%+v", SERVICE_NAME, err)
	}
	log.Infof("%s service gracefully stopped", SERVICE_NAME)
}
