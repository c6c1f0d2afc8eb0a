package wakey_server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	wakey_device "wakey-bot/wakey/device"
	wakey_dispatch "wakey-bot/wakey/dispatch"
	wakey_ipcache "wakey-bot/wakey/ipcache"
	wakey_log "wakey-bot/wakey/log"

	"github.com/gorilla/mux"
)

const (
	shutdownTimeout = 5 * time.Second
	maxBodyBytes    = 64 << 10
)

type Dispatcher interface {
	Dispatch(ctx context.Context, msg wakey_dispatch.Message, replier wakey_dispatch.Replier)
}

type ServerConfig struct {
	Port        int
	Host        string
	Token       string
	Version     string
	EnableCORS  bool
	Dispatcher  Dispatcher
	IPCache     *wakey_ipcache.Cache
	DeviceStore *wakey_device.DeviceStore
	Logger      *wakey_log.Logger
}

type Server struct {
	config     ServerConfig
	router     *mux.Router
	httpServer *http.Server
	startTime  time.Time
}

type MessageRequest struct {
	SenderID string `json:"sender_id"`
	Private  bool   `json:"private"`
	Content  string `json:"content"`
}

type MessageData struct {
	Replies []string `json:"replies"`
}

type AddDeviceRequest struct {
	Name        string `json:"name"`
	MACAddress  string `json:"mac"`
	Description string `json:"description,omitempty"`
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type HealthData struct {
	Status      string `json:"status"`
	Uptime      string `json:"uptime"`
	IP          string `json:"ip"`
	DeviceCount int    `json:"device_count"`
	Version     string `json:"version"`
}

func NewServer(config ServerConfig) *Server {
	if config.Logger == nil {
		config.Logger = wakey_log.Discard()
	}

	server := &Server{
		config:    config,
		router:    mux.NewRouter(),
		startTime: time.Now(),
	}

	server.setupRoutes()
	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	if s.config.EnableCORS {
		// mux runs middleware only on a matched route. This one lets
		// corsMiddleware see preflights, which carry no bearer token.
		s.router.Methods(http.MethodOptions).HandlerFunc(s.handlePreflight)
	}

	s.router.HandleFunc("/api/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.authMiddleware)

	api.HandleFunc("/messages", s.handleMessage).Methods("POST")

	api.HandleFunc("/devices", s.handleListDevices).Methods("GET")
	api.HandleFunc("/devices", s.handleAddDevice).Methods("POST")
	api.HandleFunc("/devices/{name}", s.handleGetDevice).Methods("GET")
	api.HandleFunc("/devices/{name}", s.handleRemoveDevice).Methods("DELETE")

	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}
	s.router.Use(s.loggingMiddleware)
}

// collector gathers the replies the dispatcher produces for one request.
type collector struct {
	mu      sync.Mutex
	replies []string
}

func (c *collector) Reply(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, text)
	return nil
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.config.Logger.Warn("API: Invalid JSON in message request: %v", err)
		s.writeJSONError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	c := &collector{replies: []string{}}
	s.config.Dispatcher.Dispatch(r.Context(), wakey_dispatch.Message{
		SenderID: req.SenderID,
		Private:  req.Private,
		Content:  req.Content,
	}, c)

	s.writeJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    MessageData{Replies: c.replies},
	})
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.config.DeviceStore.ListDevices()
	s.config.Logger.Debug("API: Listed %d devices", len(devices))

	s.writeJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    devices,
		Message: fmt.Sprintf("Found %d devices", len(devices)),
	})
}

func (s *Server) handleAddDevice(w http.ResponseWriter, r *http.Request) {
	var req AddDeviceRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.config.Logger.Warn("API: Invalid JSON in add device request: %v", err)
		s.writeJSONError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	if req.Name == "" {
		s.writeJSONError(w, http.StatusBadRequest, "Device name is required")
		return
	}
	if req.MACAddress == "" {
		s.writeJSONError(w, http.StatusBadRequest, "MAC address is required")
		return
	}

	if err := s.config.DeviceStore.AddDevice(req.Name, req.MACAddress, req.Description); err != nil {
		s.config.Logger.Error("API: Failed to add device %s: %v", req.Name, err)
		s.writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.config.Logger.Info("API: Device %s added successfully", req.Name)
	s.writeJSONResponse(w, http.StatusCreated, APIResponse{
		Success: true,
		Message: fmt.Sprintf("Device '%s' added successfully", req.Name),
	})
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	device, err := s.config.DeviceStore.GetDevice(name)
	if err != nil {
		s.config.Logger.Debug("API: Device %s not found", name)
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}

	s.writeJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    device,
	})
}

func (s *Server) handleRemoveDevice(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if err := s.config.DeviceStore.RemoveDevice(name); err != nil {
		s.config.Logger.Error("API: Failed to remove device %s: %v", name, err)
		s.writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}

	s.config.Logger.Info("API: Device %s removed successfully", name)
	s.writeJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Message: fmt.Sprintf("Device '%s' removed successfully", name),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ip := "None"
	if s.config.IPCache != nil {
		addr, _ := s.config.IPCache.Peek()
		ip = wakey_ipcache.Format(addr)
	}

	count := 0
	if s.config.DeviceStore != nil {
		count = s.config.DeviceStore.GetDeviceCount()
	}

	s.writeJSONResponse(w, http.StatusOK, APIResponse{
		Success: true,
		Data: HealthData{
			Status:      "healthy",
			Uptime:      time.Since(s.startTime).Round(time.Second).String(),
			IP:          ip,
			DeviceCount: count,
			Version:     s.config.Version,
		},
	})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.config.Logger.Info("Starting control API on http://%s/api/", addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("control API: %w", err)
	case <-ctx.Done():
		return s.Stop()
	}
}

func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.config.Logger.Info("Stopping control API")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) writeJSONResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.config.Logger.Error("Failed to encode JSON response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, message string) {
	s.writeJSONResponse(w, status, APIResponse{
		Success: false,
		Error:   message,
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || s.config.Token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.config.Token)) != 1 {
			s.config.Logger.Warn("API: Rejected %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
			s.writeJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		s.config.Logger.Info("HTTP %s %s - %d - %v", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
