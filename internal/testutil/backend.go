package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/t77yq/roma-console/internal/model"
)

// RecordedRequest is one call seen by the fake backend
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   []byte
}

// RestoreCall records a restore command received by the fake backend
type RestoreCall struct {
	CheckpointID string
	Resume       bool
}

type failure struct {
	status int
	detail string
}

// Backend is an in-memory ROMA backend served over httptest
type Backend struct {
	Server *httptest.Server

	mu            sync.Mutex
	nextID        int
	executions    map[string]*model.Execution
	order         []string
	statusScript  map[string][]model.ExecutionStatus
	statusCalls   map[string]int
	checkpoints   map[string]model.Checkpoint
	taskTraces    map[string][]model.TaskTrace
	lmTraces      map[string][]model.LMTrace
	profiles      []model.ConfigProfile
	configUpdates []model.ConfigUpdate
	restores      []RestoreCall
	requests      []RecordedRequest
	failures      map[string]failure
	health        model.Health
	delay         time.Duration
	bareLists     bool
}

// NewBackend starts a fake backend that is closed when the test ends
func NewBackend(t *testing.T) *Backend {
	t.Helper()

	b := &Backend{
		executions:   make(map[string]*model.Execution),
		statusScript: make(map[string][]model.ExecutionStatus),
		statusCalls:  make(map[string]int),
		checkpoints:  make(map[string]model.Checkpoint),
		taskTraces:   make(map[string][]model.TaskTrace),
		lmTraces:     make(map[string][]model.LMTrace),
		failures:     make(map[string]failure),
		health: model.Health{
			Status:           model.HealthStatusHealthy,
			Version:          "0.1.0",
			StorageConnected: true,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", b.handleHealth)
	mux.HandleFunc("GET /api/v1/executions", b.handleListExecutions)
	mux.HandleFunc("POST /api/v1/executions", b.handleCreateExecution)
	mux.HandleFunc("GET /api/v1/executions/{id}", b.handleGetExecution)
	mux.HandleFunc("DELETE /api/v1/executions/{id}", b.handleDeleteExecution)
	mux.HandleFunc("GET /api/v1/executions/{id}/status", b.handleStatus)
	mux.HandleFunc("GET /api/v1/executions/{id}/metrics", b.handleMetrics)
	mux.HandleFunc("GET /api/v1/executions/{id}/data", b.handleData)
	mux.HandleFunc("GET /api/v1/checkpoints", b.handleListCheckpoints)
	mux.HandleFunc("GET /api/v1/checkpoints/{id}", b.handleGetCheckpoint)
	mux.HandleFunc("POST /api/v1/checkpoints/{id}/restore", b.handleRestore)
	mux.HandleFunc("GET /api/v1/traces/tasks", b.handleTaskTraces)
	mux.HandleFunc("GET /api/v1/traces/lm", b.handleLMTraces)
	mux.HandleFunc("GET /api/v1/config/profiles", b.handleListProfiles)
	mux.HandleFunc("GET /api/v1/config/profiles/{name}", b.handleGetProfile)
	mux.HandleFunc("POST /api/v1/config/update", b.handleConfigUpdate)

	b.Server = httptest.NewServer(b.middleware(mux))
	t.Cleanup(b.Server.Close)
	return b
}

// URL returns the base URL of the fake backend
func (b *Backend) URL() string {
	return b.Server.URL
}

func (b *Backend) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body.Close()
		}

		b.mu.Lock()
		b.requests = append(b.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Body:   body,
		})
		f, failing := b.failures[r.Method+" "+r.URL.Path]
		delay := b.delay
		b.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}

		if failing {
			writeJSON(w, f.status, map[string]string{"detail": f.detail})
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// AddExecution stores exec as-is
func (b *Backend) AddExecution(exec model.Execution) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.executions[exec.ExecutionID]; !ok {
		b.order = append(b.order, exec.ExecutionID)
	}
	e := exec
	b.executions[exec.ExecutionID] = &e
}

// ScriptStatus makes successive status calls for id return statuses in order; the last one repeats
func (b *Backend) ScriptStatus(id string, statuses ...model.ExecutionStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusScript[id] = statuses
	b.statusCalls[id] = 0
}

// AddCheckpoint stores a checkpoint
func (b *Backend) AddCheckpoint(checkpoint model.Checkpoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkpoints[checkpoint.CheckpointID] = checkpoint
}

// AddTaskTraces stores task traces for an execution
func (b *Backend) AddTaskTraces(executionID string, traces ...model.TaskTrace) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.taskTraces[executionID] = append(b.taskTraces[executionID], traces...)
}

// AddLMTraces stores LM traces for an execution
func (b *Backend) AddLMTraces(executionID string, traces ...model.LMTrace) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lmTraces[executionID] = append(b.lmTraces[executionID], traces...)
}

// AddProfile stores a configuration profile
func (b *Backend) AddProfile(profile model.ConfigProfile) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profiles = append(b.profiles, profile)
}

// SetHealth replaces the health payload
func (b *Backend) SetHealth(health model.Health) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.health = health
}

// SetDelay delays every response
func (b *Backend) SetDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

// UseBareLists makes list endpoints answer with a bare JSON array
func (b *Backend) UseBareLists(bare bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bareLists = bare
}

// FailWith makes method+path answer with status and a FastAPI detail body
func (b *Backend) FailWith(method, path string, status int, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[method+" "+path] = failure{status: status, detail: detail}
}

// ClearFailures removes every injected failure
func (b *Backend) ClearFailures() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = make(map[string]failure)
}

// Requests returns a copy of every request received
func (b *Backend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RecordedRequest, len(b.requests))
	copy(out, b.requests)
	return out
}

// RequestCount returns the number of requests matching method and path
func (b *Backend) RequestCount(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, r := range b.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Restores returns the restore commands received
func (b *Backend) Restores() []RestoreCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RestoreCall, len(b.restores))
	copy(out, b.restores)
	return out
}

// ConfigUpdates returns the configuration updates received
func (b *Backend) ConfigUpdates() []model.ConfigUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.ConfigUpdate, len(b.configUpdates))
	copy(out, b.configUpdates)
	return out
}

// StatusCalls returns how many status calls were served for id
func (b *Backend) StatusCalls(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusCalls[id]
}

func (b *Backend) handleHealth(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	health := b.health
	health.ActiveExecutions = 0
	for _, exec := range b.executions {
		if exec.Status == model.ExecutionStatusRunning {
			health.ActiveExecutions++
		}
	}
	health.Timestamp = model.NewTimestamp(time.Now())
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, health)
}

func (b *Backend) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	all := make([]model.Execution, 0, len(b.order))
	for i := len(b.order) - 1; i >= 0; i-- {
		all = append(all, *b.executions[b.order[i]])
	}
	page := []model.Execution{}
	if offset < len(all) {
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		page = all[offset:end]
	}

	if b.bareLists {
		writeJSON(w, http.StatusOK, page)
		return
	}
	writeJSON(w, http.StatusOK, model.ExecutionPage{
		Executions: page,
		Total:      len(all),
		Offset:     offset,
		Limit:      limit,
	})
}

func (b *Backend) handleCreateExecution(w http.ResponseWriter, r *http.Request) {
	var req model.CreateExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"detail": []map[string]string{{"msg": "invalid body"}},
		})
		return
	}
	if req.Goal == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "goal is required"})
		return
	}

	b.mu.Lock()
	b.nextID++
	now := model.NewTimestamp(time.Now())
	exec := &model.Execution{
		ExecutionID: fmt.Sprintf("exec-%d", b.nextID),
		Status:      model.ExecutionStatusPending,
		InitialGoal: req.Goal,
		MaxDepth:    req.MaxDepth,
		CreatedAt:   now,
		UpdatedAt:   now,
		Metadata:    req.Metadata,
	}
	b.executions[exec.ExecutionID] = exec
	b.order = append(b.order, exec.ExecutionID)
	out := *exec
	b.mu.Unlock()

	writeJSON(w, http.StatusCreated, out)
}

func (b *Backend) lookup(w http.ResponseWriter, id string) (model.Execution, bool) {
	b.mu.Lock()
	exec, ok := b.executions[id]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Execution not found"})
		return model.Execution{}, false
	}
	return *exec, true
}

func (b *Backend) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, ok := b.lookup(w, r.PathValue("id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, exec)
}

func (b *Backend) handleDeleteExecution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	b.mu.Lock()
	_, ok := b.executions[id]
	if ok {
		delete(b.executions, id)
		for i, existing := range b.order {
			if existing == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Execution not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	b.mu.Lock()
	exec, ok := b.executions[id]
	script, scripted := b.statusScript[id]
	if !ok && !scripted {
		b.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Execution not found"})
		return
	}

	var snapshot model.StatusSnapshot
	snapshot.ExecutionID = id
	if ok {
		snapshot.Status = exec.Status
		snapshot.CompletedTasks = exec.CompletedTasks
		snapshot.TotalTasks = exec.TotalTasks
		snapshot.Progress = exec.Progress()
	}
	if scripted && len(script) > 0 {
		idx := b.statusCalls[id]
		if idx >= len(script) {
			idx = len(script) - 1
		}
		snapshot.Status = script[idx]
		if ok {
			exec.Status = script[idx]
		}
	}
	b.statusCalls[id]++
	snapshot.LastUpdated = model.NewTimestamp(time.Now())
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, snapshot)
}

func (b *Backend) handleMetrics(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := b.lookup(w, id); !ok {
		return
	}

	b.mu.Lock()
	metrics := model.ExecutionMetrics{ExecutionID: id}
	for _, trace := range b.lmTraces[id] {
		metrics.TotalLMCalls++
		metrics.PromptTokens += trace.PromptTokens
		metrics.CompletionTokens += trace.CompletionTokens
		metrics.TotalCostUSD += trace.CostUSD
		metrics.AverageLatencyMS += trace.LatencyMS
	}
	b.mu.Unlock()

	metrics.TotalTokens = metrics.PromptTokens + metrics.CompletionTokens
	if metrics.TotalLMCalls > 0 {
		metrics.AverageLatencyMS /= float64(metrics.TotalLMCalls)
	}
	writeJSON(w, http.StatusOK, metrics)
}

func (b *Backend) handleData(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	exec, ok := b.lookup(w, id)
	if !ok {
		return
	}

	b.mu.Lock()
	data := model.ExecutionData{
		Execution: &exec,
		Tasks:     append([]model.TaskTrace{}, b.taskTraces[id]...),
		LMTraces:  append([]model.LMTrace{}, b.lmTraces[id]...),
	}
	for _, checkpoint := range b.checkpoints {
		if checkpoint.ExecutionID == id {
			data.Checkpoints = append(data.Checkpoints, checkpoint)
		}
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, data)
}

func (b *Backend) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	executionID := r.URL.Query().Get("execution_id")

	b.mu.Lock()
	checkpoints := []model.Checkpoint{}
	for _, checkpoint := range b.checkpoints {
		if executionID == "" || checkpoint.ExecutionID == executionID {
			checkpoints = append(checkpoints, checkpoint)
		}
	}
	bare := b.bareLists
	b.mu.Unlock()

	if bare {
		writeJSON(w, http.StatusOK, checkpoints)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"checkpoints": checkpoints,
		"total":       len(checkpoints),
	})
}

func (b *Backend) handleGetCheckpoint(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	checkpoint, ok := b.checkpoints[r.PathValue("id")]
	b.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Checkpoint not found"})
		return
	}
	writeJSON(w, http.StatusOK, checkpoint)
}

func (b *Backend) handleRestore(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req model.RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}

	b.mu.Lock()
	checkpoint, ok := b.checkpoints[id]
	if ok {
		b.restores = append(b.restores, RestoreCall{CheckpointID: id, Resume: req.Resume})
	}
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Checkpoint not found"})
		return
	}

	status := model.ExecutionStatusPending
	if req.Resume {
		status = model.ExecutionStatusRunning
	}
	writeJSON(w, http.StatusOK, model.RestoreResult{
		CheckpointID: id,
		ExecutionID:  checkpoint.ExecutionID,
		Status:       status,
		Resumed:      req.Resume,
		Message:      "Checkpoint restored",
	})
}

func (b *Backend) handleTaskTraces(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	traces := append([]model.TaskTrace{}, b.taskTraces[r.URL.Query().Get("execution_id")]...)
	bare := b.bareLists
	b.mu.Unlock()

	if bare {
		writeJSON(w, http.StatusOK, traces)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"traces": traces})
}

func (b *Backend) handleLMTraces(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	traces := append([]model.LMTrace{}, b.lmTraces[r.URL.Query().Get("execution_id")]...)
	bare := b.bareLists
	b.mu.Unlock()

	if bare {
		writeJSON(w, http.StatusOK, traces)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"traces": traces})
}

func (b *Backend) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	profiles := append([]model.ConfigProfile{}, b.profiles...)
	bare := b.bareLists
	b.mu.Unlock()

	if bare {
		names := make([]string, 0, len(profiles))
		for _, p := range profiles {
			names = append(names, p.Name)
		}
		writeJSON(w, http.StatusOK, names)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profiles": profiles})
}

func (b *Backend) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.profiles {
		if p.Name == name {
			writeJSON(w, http.StatusOK, p)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Profile not found"})
}

func (b *Backend) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var update model.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid body"})
		return
	}

	b.mu.Lock()
	b.configUpdates = append(b.configUpdates, update)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, model.ConfigUpdateResult{
		Profile: update.Profile,
		Applied: update.Overrides,
		Message: "Configuration updated",
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
