package main

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"marketquotes/internal/app"
	"marketquotes/internal/config"
	"marketquotes/internal/logger"
	"marketquotes/internal/metrics"
	"marketquotes/internal/quote"
	"marketquotes/internal/validate"
)

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// maxBody caps batch request bodies; a batch is at most 50 identifiers.
const maxBody = 1 << 20

type batchBody struct {
	Symbols []string `json:"symbols"`
}

type server struct {
	app            *app.App
	log            *logger.Log
	development    bool
	trustProxy     bool
	corsOrigin     string
	requestTimeout time.Duration
}

func newServer(a *app.App, cfg config.Config, log *logger.Log) *server {
	return &server{
		app:            a,
		log:            logger.OrDiscard(log),
		development:    cfg.Server.Development,
		trustProxy:     cfg.Server.TrustProxy,
		corsOrigin:     cfg.Server.CORSOrigin,
		requestTimeout: cfg.RequestTimeout(),
	}
}

// handler returns the full middleware stack around the router.
func (s *server) handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	for _, svc := range s.app.Services() {
		base := "/" + svc.Endpoint.Name
		api.HandleFunc(base+"/batch", s.handleBatchBody(svc)).Methods(http.MethodPost)
		api.HandleFunc(base+"/{id}", s.handleSingle(svc)).Methods(http.MethodGet)
		api.HandleFunc(base, s.handleBatchQuery(svc)).Methods(http.MethodGet)
	}
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, envelope{Error: "route not found"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, envelope{Error: "method not allowed"})
	})

	return withRequestID(metrics.InstrumentHandler(
		withJSONHeaders(s.corsOrigin)(withGzip(recoverPanic(s.log)(r))),
	))
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"status":       "ok",
		"cached_items": s.app.State.Items.Len(),
	}})
}

func (s *server) handleSingle(svc *quote.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
		defer cancel()

		q, err := svc.Get(ctx, s.clientKey(r), mux.Vars(r)["id"])
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: q})
	}
}

func (s *server) handleBatchQuery(svc *quote.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.batch(w, r, svc, validate.SplitCSV(r.URL.Query().Get("symbols")))
	}
}

func (s *server) handleBatchBody(svc *quote.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var b batchBody
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&b); err != nil {
			msg := "invalid JSON body"
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				msg = "request body too large"
			}
			s.writeError(w, r, &quote.Error{Kind: quote.InvalidInput, Message: msg, Err: err})
			return
		}
		s.batch(w, r, svc, b.Symbols)
	}
}

func (s *server) batch(w http.ResponseWriter, r *http.Request, svc *quote.Service, symbols []string) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	quotes, err := svc.Batch(ctx, s.clientKey(r), symbols)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: quotes})
}

// writeError renders err as an envelope. Only *quote.Error messages reach
// callers; causes are added in development mode.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var qe *quote.Error
	if !errors.As(err, &qe) {
		qe = &quote.Error{Kind: quote.Internal, Message: "internal server error", Err: err}
	}

	msg := qe.Message
	if s.development && qe.Err != nil {
		msg = qe.Error()
	}
	if qe.Kind == quote.RateLimited && qe.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(qe.RetryAfter.Seconds()))))
	}

	entry := s.log.WithComponent("http").WithFields(logger.Fields{
		"request_id": requestID(r.Context()),
		"path":       r.URL.Path,
		"kind":       qe.Kind.String(),
		"status":     qe.Status(),
	})
	if qe.Status() >= http.StatusInternalServerError {
		entry.WithError(err).Warn("request failed")
	} else {
		entry.Debug(qe.Message)
	}
	writeJSON(w, qe.Status(), envelope{Error: msg})
}

// clientKey identifies the caller for rate limiting.
func (s *server) clientKey(r *http.Request) string {
	if s.trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if first = strings.TrimSpace(first); first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
