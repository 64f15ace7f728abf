package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/dyluth/standings/internal/scheduler"
	"github.com/dyluth/standings/internal/timespec"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OpsServer exposes health, cycle status, forced firings and metrics over HTTP.
type OpsServer struct {
	addr     string
	service  *Service
	server   *http.Server
	listener net.Listener
}

// NewOpsServer creates an ops server for svc listening on addr.
func NewOpsServer(addr string, svc *Service) *OpsServer {
	return &OpsServer{addr: addr, service: svc}
}

// Handler returns the ops routes.
func (o *OpsServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", o.healthCheckHandler)
	mux.HandleFunc("/status", o.statusHandler)
	mux.HandleFunc("/cycles/{name}/fire", o.fireHandler)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// Start binds the listen address and serves in the background.
func (o *OpsServer) Start() error {
	ln, err := net.Listen("tcp", o.addr)
	if err != nil {
		return err
	}
	o.listener = ln

	// Forced firings can run as long as a cycle does, so there is no
	// write timeout.
	o.server = &http.Server{
		Handler:     o.Handler(),
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		if err := o.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[Ops] Server error: %v", err)
		}
	}()

	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (o *OpsServer) Addr() string {
	if o.listener != nil {
		return o.listener.Addr().String()
	}
	return o.addr
}

// Shutdown gracefully shuts down the ops server.
func (o *OpsServer) Shutdown(ctx context.Context) error {
	if o.server == nil {
		return nil
	}
	return o.server.Shutdown(ctx)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status string `json:"status"`
	Redis  string `json:"redis,omitempty"`
	Error  string `json:"error,omitempty"`
}

// CycleStatus is the JSON form of a scheduler.Status.
type CycleStatus struct {
	Cycle          string     `json:"cycle"`
	State          string     `json:"state"`
	Interval       string     `json:"interval"`
	LastFiredAt    *time.Time `json:"last_fired_at,omitempty"`
	NextDue        *time.Time `json:"next_due,omitempty"`
	Remaining      string     `json:"remaining"`
	LastInvocation string     `json:"last_invocation,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

// NewCycleStatus converts a scheduler status for display.
func NewCycleStatus(st scheduler.Status) CycleStatus {
	cs := CycleStatus{
		Cycle:          st.Cycle,
		State:          string(st.State),
		Interval:       timespec.FormatInterval(st.Interval),
		Remaining:      timespec.FormatInterval(st.Remaining.Round(time.Second)),
		LastInvocation: st.LastInvocation,
		LastError:      st.LastError,
	}
	if !st.LastFiredAt.IsZero() {
		t := st.LastFiredAt.UTC()
		cs.LastFiredAt = &t
	}
	if !st.NextDue.IsZero() {
		t := st.NextDue.UTC()
		cs.NextDue = &t
	}
	return cs
}

// FireResponse is returned by POST /cycles/{name}/fire.
type FireResponse struct {
	Cycle        string    `json:"cycle"`
	InvocationID string    `json:"invocation_id"`
	FiredAt      time.Time `json:"fired_at"`
	Error        string    `json:"error,omitempty"`
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK if Redis is accessible, 503 Service Unavailable otherwise.
func (o *OpsServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{Status: "healthy", Redis: "connected"}
	status := http.StatusOK
	if err := o.service.Ping(ctx); err != nil {
		response = HealthResponse{Status: "unhealthy", Redis: "disconnected", Error: err.Error()}
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, response)
}

// statusHandler handles GET /status requests.
func (o *OpsServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	statuses, err := o.service.ScheduleStatus(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	out := make([]CycleStatus, 0, len(statuses))
	for _, st := range statuses {
		out = append(out, NewCycleStatus(st))
	}
	writeJSON(w, http.StatusOK, out)
}

// fireHandler handles POST /cycles/{name}/fire requests and blocks until the
// firing completes.
func (o *OpsServer) fireHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.PathValue("name")
	f, err := o.service.ForceFireCycle(r.Context(), name)
	resp := FireResponse{Cycle: name, InvocationID: f.InvocationID, FiredAt: f.FiredAt}
	switch {
	case errors.Is(err, scheduler.ErrUnknownCycle):
		resp.Error = err.Error()
		writeJSON(w, http.StatusNotFound, resp)
	case errors.Is(err, scheduler.ErrNotInitialized):
		resp.Error = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
	case err != nil:
		resp.Error = err.Error()
		writeJSON(w, http.StatusInternalServerError, resp)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Ops] Failed to write response: %v", err)
	}
}

// OpsClient talks to a running instance's ops server.
type OpsClient struct {
	BaseURL string
	Client  *http.Client
}

// NewOpsClient creates a client for the ops server at addr. An address
// without a host, such as ":8080", targets localhost.
func NewOpsClient(addr string) *OpsClient {
	host, port, err := net.SplitHostPort(addr)
	if err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		addr = net.JoinHostPort("localhost", port)
	}
	return &OpsClient{BaseURL: "http://" + addr, Client: &http.Client{}}
}

// Status fetches the status of every cycle.
func (c *OpsClient) Status(ctx context.Context) ([]CycleStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/status", nil)
	if err != nil {
		return nil, err
	}
	var out []CycleStatus
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Fire forces a cycle and waits for the result.
func (c *OpsClient) Fire(ctx context.Context, cycle string) (*FireResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/cycles/"+cycle+"/fire", nil)
	if err != nil {
		return nil, err
	}
	var out FireResponse
	if err := c.do(req, &out); err != nil {
		if out.Error != "" {
			return &out, fmt.Errorf("cycle %s failed: %s", cycle, out.Error)
		}
		return nil, err
	}
	return &out, nil
}

func (c *OpsClient) do(req *http.Request, out interface{}) error {
	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("ops server not reachable at %s: %w", c.BaseURL, err)
	}
	defer resp.Body.Close()

	decodeErr := json.NewDecoder(resp.Body).Decode(out)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ops server returned %s", resp.Status)
	}
	if decodeErr != nil {
		return fmt.Errorf("failed to decode ops response: %w", decodeErr)
	}
	return nil
}
