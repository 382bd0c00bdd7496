package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	offerledger "hearth/contexts/agent-routing/offer-ledger"
	notificationservice "hearth/contexts/engagement/notification-service"
	commissionengine "hearth/contexts/finance-core/commission-engine"
	moderationservice "hearth/contexts/moderation-safety/moderation-service"

	httpSwagger "github.com/swaggo/http-swagger"
)

type Server struct {
	mux           *http.ServeMux
	logger        *slog.Logger
	addr          string
	webhookSecret string
	metrics       *Metrics

	offers        offerledger.Module
	commissions   commissionengine.Module
	moderation    moderationservice.Module
	notifications notificationservice.Module
}

type Modules struct {
	Offers        offerledger.Module
	Commissions   commissionengine.Module
	Moderation    moderationservice.Module
	Notifications notificationservice.Module
}

func New(modules Modules, logger *slog.Logger, addr string, webhookSecret string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:           http.NewServeMux(),
		logger:        logger,
		addr:          addr,
		webhookSecret: webhookSecret,
		metrics:       NewMetrics(),
		offers:        modules.Offers,
		commissions:   modules.Commissions,
		moderation:    modules.Moderation,
		notifications: modules.Notifications,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	s.mux.Handle("/metrics", s.metrics.HTTPHandler())

	s.registerOfferRoutes()
	s.registerCommissionRoutes()
	s.registerModerationRoutes()
	s.registerNotificationRoutes()
}

func (s *Server) handle(method string, pattern string, route string, handler http.HandlerFunc) {
	s.mux.HandleFunc(method+" "+pattern, s.metrics.Instrument(route, handler))
}

func (s *Server) decodeJSON(
	w http.ResponseWriter,
	r *http.Request,
	target any,
	writeError func(http.ResponseWriter, int, string, string),
) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
