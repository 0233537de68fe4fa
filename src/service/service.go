package service

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mirrornet/mirror/src/nodebook"
)

// StatsProvider exposes the ingestor's operational counters.
type StatsProvider interface {
	GetStats() map[string]string
}

// Service ...
type Service struct {
	sync.Mutex

	bindAddress string
	stats       StatsProvider
	books       *nodebook.Manager
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string, stats StatsProvider, books *nodebook.Manager, logger *logrus.Entry) *Service {
	service := Service{
		bindAddress: bindAddress,
		stats:       stats,
		books:       books,
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServerMux of the
// http package. It is possible that another server in the same process is
// simultaneously using the DefaultServerMux. In which case, the handlers will
// be accessible from both servers. This is usefull when the ingestor is used
// in-memory and expected to use the same endpoint (address:port) as the
// application's API.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering mirror API handlers")
	http.HandleFunc("/stats", s.makeHandler(s.GetStats))
	http.HandleFunc("/nodes", s.makeHandler(s.GetNodes))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call. It is not necessary to
// call Serve when another server has already been started with the
// DefaultServerMux and the same address:port combination; the API handlers
// have already been registered when the service was instantiated.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving mirror API")

	// Use the DefaultServerMux
	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.stats.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetNodes returns the current node book.
func (s *Service) GetNodes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.books.Current().Nodes)
}
