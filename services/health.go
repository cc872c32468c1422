package services

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"
)

// HealthServer answers liveness probes from the hosting platform. It says
// nothing about watchdog state; a process that can serve "OK" is alive.
type HealthServer struct {
	server *http.Server
}

func NewHealthServer(port int) *HealthServer {
	mux := http.NewServeMux()
	ok := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
	mux.HandleFunc("/", ok)
	mux.HandleFunc("/health", ok)

	return &HealthServer{
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		},
	}
}

// Start serves in the background and shuts down when ctx is canceled.
func (h *HealthServer) Start(ctx context.Context) {
	go func() {
		log.Printf("Health server listening on %s", h.server.Addr)
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Health server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h.server.Shutdown(shutdownCtx)
	}()
}
