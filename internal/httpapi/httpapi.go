// Package httpapi implements the HTTP surface (C6): two gorilla/mux
// routers sharing the same route table, mounted under a configurable
// prefix. ReadOnly exposes only the GET/watch routes for the public
// listener; ReadWrite additionally mounts the mutating routes, rate
// limited per remote address, for the private listener.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/adred-codev/swec/internal/metrics"
	"github.com/adred-codev/swec/internal/state"
	"github.com/adred-codev/swec/internal/watcher"
	"github.com/adred-codev/swec/internal/wsapi"
)

// Version is reported via GET /info. Set at build time in a full
// release pipeline; fixed here since there is no build-info wiring in
// scope.
const Version = "0.1.0"

// api bundles the dependencies every handler needs.
type api struct {
	state   *state.State
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// ReadOnly builds the router mounted on the public listener: every GET
// and watch route, no mutating routes.
func ReadOnly(prefix string, s *state.State, m *metrics.Metrics, log zerolog.Logger) *mux.Router {
	a := &api{state: s, metrics: m, log: log}
	r := mux.NewRouter()
	sub := r.PathPrefix(prefix).Subrouter()
	a.mountReadRoutes(sub, false)
	return r
}

// ReadWrite builds the router mounted on the private listener: the same
// read routes plus the mutating ones, with a per-remote-address token
// bucket guarding the mutating routes.
func ReadWrite(prefix string, s *state.State, m *metrics.Metrics, log zerolog.Logger, ratePerSec int) *mux.Router {
	a := &api{state: s, metrics: m, log: log}
	r := mux.NewRouter()
	sub := r.PathPrefix(prefix).Subrouter()
	a.mountReadRoutes(sub, true)

	limiter := newLimiterByAddr(ratePerSec)
	sub.Handle("/checkers/{name}", limiter.wrap(http.HandlerFunc(a.deleteChecker))).Methods(http.MethodDelete)
	sub.Handle("/checkers/{name}/spec", limiter.wrap(http.HandlerFunc(a.createSpec))).Methods(http.MethodPost)
	sub.Handle("/checkers/{name}/spec", limiter.wrap(http.HandlerFunc(a.updateSpec))).Methods(http.MethodPut)
	sub.Handle("/checkers/{name}/statuses", limiter.wrap(http.HandlerFunc(a.addStatus))).Methods(http.MethodPost)
	return r
}

func (a *api) mountReadRoutes(r *mux.Router, writable bool) {
	r.HandleFunc("/info", a.info(writable)).Methods(http.MethodGet)
	r.HandleFunc("/checkers", a.getCheckers).Methods(http.MethodGet)
	r.HandleFunc("/checker_names", a.getCheckerNames).Methods(http.MethodGet)
	r.HandleFunc("/checkers/{name}", a.getChecker).Methods(http.MethodGet)
	r.HandleFunc("/checkers/{name}/spec", a.getSpec).Methods(http.MethodGet)
	r.HandleFunc("/checkers/{name}/statuses", a.getStatuses).Methods(http.MethodGet)
	r.HandleFunc("/checkers/{name}/statuses/{index}", a.getStatusAt).Methods(http.MethodGet)
	r.HandleFunc("/checkers/{name}/watch", a.watchChecker).Methods(http.MethodGet)
	r.HandleFunc("/watch", a.watchList).Methods(http.MethodGet)
}

type infoResponse struct {
	Writable bool   `json:"writable"`
	Version  string `json:"swec_version"`
}

func (a *api) info(writable bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, infoResponse{Writable: writable, Version: Version})
	}
}

func (a *api) getCheckers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.state.GetCheckers())
}

func (a *api) getCheckerNames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.state.CheckerNames())
}

func (a *api) getChecker(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	view, err := a.state.GetChecker(name)
	if a.writeStateError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *api) getSpec(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	view, err := a.state.GetChecker(name)
	if a.writeStateError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, view.Spec)
}

func (a *api) getStatuses(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	view, err := a.state.GetChecker(name)
	if a.writeStateError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, view.Statuses)
}

func (a *api) getStatusAt(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name := vars["name"]
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	view, err := a.state.GetChecker(name)
	if a.writeStateError(w, err) {
		return
	}
	// index is from newest (0 = newest); Statuses is oldest-first.
	n := len(view.Statuses)
	pos := n - 1 - index
	if index < 0 || pos < 0 || pos >= n {
		http.Error(w, "", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, view.Statuses[pos])
}

func (a *api) deleteChecker(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	view, err := a.state.RemoveChecker(name)
	if a.writeStateError(w, err) {
		return
	}
	if a.metrics != nil {
		a.metrics.CheckersTotal.Set(float64(len(a.state.CheckerNames())))
	}
	writeJSON(w, http.StatusOK, view)
}

type specRequest = watcher.Spec

func (a *api) createSpec(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var spec specRequest
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, "", http.StatusBadRequest)
		return
	}
	if err := a.state.AddChecker(name, spec); err != nil {
		if errors.Is(err, state.ErrAlreadyExists) {
			http.Error(w, "", http.StatusConflict)
			return
		}
		a.log.Error().Err(err).Msg("httpapi: create spec failed")
		http.Error(w, "", http.StatusInternalServerError)
		return
	}
	if a.metrics != nil {
		a.metrics.CheckersTotal.Set(float64(len(a.state.CheckerNames())))
	}
	writeJSON(w, http.StatusCreated, map[string]watcher.Spec{"spec": spec})
}

func (a *api) updateSpec(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var spec specRequest
	if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
		http.Error(w, "", http.StatusBadRequest)
		return
	}
	if a.writeStateError(w, a.state.UpdateSpec(name, spec)) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]watcher.Spec{"spec": spec})
}

func (a *api) addStatus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var status watcher.Status
	if err := json.NewDecoder(r.Body).Decode(&status); err != nil {
		http.Error(w, "", http.StatusBadRequest)
		return
	}
	ts, err := a.state.AddStatus(name, status)
	if a.writeStateError(w, err) {
		return
	}
	if a.metrics != nil {
		a.metrics.StatusesAppended.Inc()
	}
	writeJSON(w, http.StatusCreated, ts)
}

func (a *api) watchChecker(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	sub, initial, err := a.state.SubscribeChecker(name)
	if err != nil {
		http.Error(w, "", http.StatusNotFound)
		return
	}
	wsapi.Serve(w, r, initial, sub, watcher.NewCheckerLagged, "checker", a.metrics, a.log)
}

func (a *api) watchList(w http.ResponseWriter, r *http.Request) {
	sub, initial := a.state.SubscribeList()
	wsapi.Serve(w, r, initial, sub, watcher.NewListLagged, "list", a.metrics, a.log)
}

// writeStateError maps a state-facade sentinel error to an HTTP status
// and writes the response if err is non-nil. Returns true when it did,
// so callers can early-return.
func (a *api) writeStateError(w http.ResponseWriter, err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, state.ErrNotFound):
		http.Error(w, "", http.StatusNotFound)
	case errors.Is(err, state.ErrAlreadyExists):
		http.Error(w, "", http.StatusConflict)
	default:
		a.log.Error().Err(err).Msg("httpapi: unexpected state error")
		http.Error(w, "", http.StatusInternalServerError)
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// limiterByAddr hands out one token bucket per remote address,
// generalizing the teacher's single-bucket MaxBroadcastRate/MaxNATSRate
// knobs to a per-client limiter for the write surface.
type limiterByAddr struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	ratePS   int
}

func newLimiterByAddr(ratePerSec int) *limiterByAddr {
	return &limiterByAddr{limiters: make(map[string]*rate.Limiter), ratePS: ratePerSec}
}

func (l *limiterByAddr) get(addr string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[addr]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.ratePS), l.ratePS)
		l.limiters[addr] = lim
	}
	return lim
}

func (l *limiterByAddr) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.get(r.RemoteAddr).Allow() {
			http.Error(w, "", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
