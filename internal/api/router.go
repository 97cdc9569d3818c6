package api

import (
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
)

// NewRouter wires the booking routes. Ticket files under ticketDir are
// served read-only at /bookings/.
func NewRouter(h *Handler, ticketDir string) *mux.Router {
	r := mux.NewRouter()

	// Apply middleware
	r.Use(RecoverMiddleware(h.Logger))
	r.Use(CORSMiddleware)
	r.Use(TraceContextMiddleware)
	r.Use(LoggingMiddleware(h.Logger))

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(JSONMiddleware)

	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/availability", h.Availability).Methods("GET")

	// Booking routes
	api.HandleFunc("/bookings", h.CreateBooking).Methods("POST")
	api.HandleFunc("/bookings/{orderId}", h.GetBooking).Methods("GET")
	api.HandleFunc("/bookings/{orderId}/ticket", h.ReissueTicket).Methods("POST")

	// Attempt routes
	api.HandleFunc("/attempts/{attemptId}", h.GetAttempt).Methods("GET")

	// Ticket files
	r.PathPrefix("/bookings/").Handler(ticketFiles(ticketDir)).Methods("GET", "HEAD")

	return r
}

// ticketFiles serves ticket PDFs by literal file name. Order ids may carry
// percent escapes of their own ("...Ap%2fAiY="), so the escaped request
// path is looked up first and the decoded one second.
func ticketFiles(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		escaped := strings.TrimPrefix(r.URL.EscapedPath(), "/bookings/")
		names := []string{escaped}
		if decoded, err := url.PathUnescape(escaped); err == nil && decoded != escaped {
			names = append(names, decoded)
		}
		for _, name := range names {
			if serveTicketFile(w, r, dir, name) {
				return
			}
		}
		http.NotFound(w, r)
	})
}

func serveTicketFile(w http.ResponseWriter, r *http.Request, dir, name string) bool {
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsRune(name, '\\') {
		return false
	}
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeContent(w, r, name, info.ModTime(), f)
	return true
}
