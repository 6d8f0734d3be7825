package web

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(s *Server) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/api/run", s.handleRunReport).Methods(http.MethodGet)
	r.HandleFunc("/api/report", s.handleExecutiveReport).Methods(http.MethodGet)
	r.HandleFunc("/api/report/pdf", s.handleExecutivePDF).Methods(http.MethodGet)
	r.HandleFunc("/api/cves/{id}", s.handleCve).Methods(http.MethodGet)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRunReport returns the latest pipeline run, 404 before the first run.
func (s *Server) handleRunReport(w http.ResponseWriter, _ *http.Request) {
	report := s.runReport()
	if report == nil {
		http.Error(w, "no pipeline run yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleExecutiveReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.Analytics.ExecutiveReport(r.Context(), 10)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleExecutivePDF(w http.ResponseWriter, r *http.Request) {
	report, err := s.Analytics.ExecutiveReport(r.Context(), 10)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data, err := s.Exporter.ExportExecutiveReport(&report)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="cvemart-summary.pdf"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleCve looks up one CVE row of dim_cve.
func (s *Server) handleCve(w http.ResponseWriter, r *http.Request) {
	cveID := mux.Vars(r)["id"]

	cves, err := s.Reader.Cves(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, cve := range cves {
		if cve.CveID == cveID {
			writeJSON(w, http.StatusOK, cve)
			return
		}
	}
	http.Error(w, "unknown CVE", http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
