// Package web serves the buoy status API and a WebSocket feed of cycle
// reports.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/porcej/njord/arbiter"
	"github.com/porcej/njord/buoy"
	"github.com/porcej/njord/gps"
)

type Server struct {
	service   *buoy.Service
	logger    *log.Logger
	upgrader  websocket.Upgrader
	mu        sync.Mutex
	clients   map[*websocket.Conn]bool
	broadcast chan buoy.Report
}

// NewServer creates a server for service and subscribes to its reports.
func NewServer(service *buoy.Service, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	ws := &Server{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // dashboards are served from other hosts
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan buoy.Report, 16),
	}
	service.AddCallback(func(report buoy.Report) {
		select {
		case ws.broadcast <- report:
		default:
			// Channel full, skip this update
		}
	})
	return ws
}

type message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (ws *Server) clientCount() int {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return len(ws.clients)
}

func (ws *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.logger.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Send current status before registering, so it is the first message
	if err := conn.WriteJSON(message{Type: "status", Data: ws.service.GetStatus()}); err != nil {
		ws.logger.Printf("Error sending status: %v", err)
		return
	}

	ws.mu.Lock()
	ws.clients[conn] = true
	ws.mu.Unlock()
	ws.logger.Printf("Client connected. Total clients: %d", ws.clientCount())

	// Read until the client goes away; incoming messages are ignored
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	ws.mu.Lock()
	delete(ws.clients, conn)
	ws.mu.Unlock()
	ws.logger.Printf("Client disconnected. Total clients: %d", ws.clientCount())
}

// broadcastToClients forwards cycle reports to every client until ctx ends.
func (ws *Server) broadcastToClients(ctx context.Context) {
	for {
		var report buoy.Report
		select {
		case <-ctx.Done():
			return
		case report = <-ws.broadcast:
		}

		msg := message{Type: "report", Data: report}

		ws.mu.Lock()
		for client := range ws.clients {
			client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteJSON(msg); err != nil {
				ws.logger.Printf("WebSocket write error: %v", err)
				client.Close()
				delete(ws.clients, client)
			}
		}
		ws.mu.Unlock()
	}
}

func (ws *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ws.service.GetStatus())
}

func (ws *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := ws.service.Start(); err != nil {
		http.Error(w, fmt.Sprintf("Failed to start buoy: %v", err), http.StatusConflict)
		return
	}
	ws.logger.Printf("Buoy started")
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (ws *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := ws.service.Stop(); err != nil {
		http.Error(w, fmt.Sprintf("Failed to stop buoy: %v", err), http.StatusConflict)
		return
	}
	ws.logger.Printf("Buoy stopped")
	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// handleCycle runs one cycle now, outside the regular schedule.
func (ws *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	report, err := ws.service.RunCycle(r.Context())
	if err != nil {
		writeJSON(w, http.StatusBadGateway, report)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (ws *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	ws.service.Engine().InvalidateCache()
	ws.logger.Printf("Access point cache cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (ws *Server) handleAccessPoints(w http.ResponseWriter, r *http.Request) {
	aps := ws.service.Engine().Table().All()
	if aps == nil {
		aps = []arbiter.AccessPoint{}
	}
	writeJSON(w, http.StatusOK, aps)
}

func (ws *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var jsonConfig map[string]any
	if err := json.NewDecoder(r.Body).Decode(&jsonConfig); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	config := ws.parseConfig(jsonConfig)
	if err := ws.service.UpdateConfig(config); err != nil {
		http.Error(w, fmt.Sprintf("Failed to update config: %v", err), http.StatusBadRequest)
		return
	}
	ws.logger.Printf("Updated config: %+v", config)
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// parseConfig overlays the JSON fields on the current cycle config
func (ws *Server) parseConfig(jsonConfig map[string]any) buoy.Config {
	config := ws.service.GetStatus().Config

	getString := func(key string, defaultValue string) string {
		if s, ok := jsonConfig[key].(string); ok {
			return s
		}
		return defaultValue
	}

	// Durations are accepted as strings ("2s") or seconds
	getDuration := func(key string, defaultValue time.Duration) time.Duration {
		switch v := jsonConfig[key].(type) {
		case string:
			if d, err := time.ParseDuration(v); err == nil {
				return d
			}
			return -1
		case float64:
			return time.Duration(v * float64(time.Second))
		}
		return defaultValue
	}

	config.Interval = getDuration("interval", config.Interval)
	config.MessageType = gps.MessageType(getString("message_type", string(config.MessageType)))
	config.Talker = gps.Talker(getString("talker", string(config.Talker)))
	return config
}

// Router returns the API routes.
func (ws *Server) Router() *mux.Router {
	r := mux.NewRouter()

	// Routes are registered on r itself: a PathPrefix subrouter answers a
	// method mismatch with 404 instead of 405.
	r.HandleFunc("/api/status", ws.handleGetStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/start", ws.handleStart).Methods(http.MethodPost)
	r.HandleFunc("/api/stop", ws.handleStop).Methods(http.MethodPost)
	r.HandleFunc("/api/cycle", ws.handleCycle).Methods(http.MethodPost)
	r.HandleFunc("/api/cache", ws.handleInvalidateCache).Methods(http.MethodDelete)
	r.HandleFunc("/api/accesspoints", ws.handleAccessPoints).Methods(http.MethodGet)
	r.HandleFunc("/api/config", ws.handleUpdateConfig).Methods(http.MethodPost)
	r.HandleFunc("/api/ws", ws.handleWebSocket)

	r.HandleFunc("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

// ListenAndServe serves the API on addr until ctx is cancelled.
func (ws *Server) ListenAndServe(ctx context.Context, addr string) error {
	go ws.broadcastToClients(ctx)

	server := &http.Server{
		Addr:         addr,
		Handler:      ws.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	ws.logger.Printf("Status server listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
