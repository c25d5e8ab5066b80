package server

import (
	"fmt"
	"net/http"
	"time"

	"vanpower2mqtt/internal/config"
	"vanpower2mqtt/internal/core/domain"

	_ "github.com/joho/godotenv/autoload"
)

// StatusSource exposes the supervisor's last tick for the HTTP surface.
type StatusSource interface {
	Status() domain.StatusSnapshot
	Healthy() bool
}

type Server struct {
	port    uint
	httpLog bool
	monitor StatusSource
}

func NewServer(cfg config.Config, monitor StatusSource) *http.Server {
	NewServer := &Server{
		port:    cfg.Port,
		monitor: monitor,
		httpLog: cfg.HttpLog,
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
