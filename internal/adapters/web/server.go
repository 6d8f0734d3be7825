// Package web exposes the warehouse status API: health, metrics, the latest
// run report and the executive summary in JSON or PDF.
package web

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/lcalzada-xor/cvemart/internal/adapters/reporting"
	"github.com/lcalzada-xor/cvemart/internal/core/domain"
	"github.com/lcalzada-xor/cvemart/internal/core/ports"
	"github.com/lcalzada-xor/cvemart/internal/core/services/analytics"
)

// Server handles the HTTP status API.
type Server struct {
	Addr      string
	Analytics *analytics.Service
	Reader    ports.AnalyticsReader
	Exporter  *reporting.PDFExporter

	srv *http.Server

	mu      sync.RWMutex
	lastRun *domain.RunReport
}

// NewServer creates a new status server.
func NewServer(addr string, svc *analytics.Service, reader ports.AnalyticsReader, exporter *reporting.PDFExporter) *Server {
	return &Server{
		Addr:      addr,
		Analytics: svc,
		Reader:    reader,
		Exporter:  exporter,
	}
}

// SetRunReport publishes the outcome of the latest pipeline run.
func (s *Server) SetRunReport(report domain.RunReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = &report
}

func (s *Server) runReport() *domain.RunReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	handler := SetupRoutes(s)

	// Instrument with OpenTelemetry
	instrumentedHandler := otelhttp.NewHandler(handler, "cvemart-server")

	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           instrumentedHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful Shutdown implementation
	go func() {
		<-ctx.Done()
		log.Println("Status server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Status server shutdown error: %v", err)
		}
	}()

	log.Printf("Status server listening on %s", s.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
