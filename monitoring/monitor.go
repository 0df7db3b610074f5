// Package monitoring turns a running model into an HTTP server. It reports
// the run status, exposes Prometheus metrics and lets a user pause, continue
// and stop the run.
package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"github.com/syifan/goseth"

	"github.com/sarchlab/tempora/monitoring/web"
	"github.com/sarchlab/tempora/sim/actor"
	"github.com/sarchlab/tempora/sim/manager"
)

// Controller is what the monitor needs from the manager of the run.
type Controller interface {
	RunID() string
	State() manager.State
	Iteration() int64
	IsPaused() bool
	Pause()
	Continue()
	Stop()
}

// Monitor serves the monitoring API.
type Monitor struct {
	ctrl        Controller
	model       *actor.Model
	metrics     *Metrics
	logger      logrus.FieldLogger
	portNumber  int
	openBrowser bool

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
	addr   string
}

// Builder builds monitors.
type Builder struct {
	logger      logrus.FieldLogger
	portNumber  int
	openBrowser bool
	metrics     *Metrics
}

// MakeBuilder returns a builder that listens on a random port.
func MakeBuilder() Builder {
	return Builder{logger: logrus.StandardLogger()}
}

// WithLogger sets the logger.
func (b Builder) WithLogger(l logrus.FieldLogger) Builder {
	b.logger = l
	return b
}

// WithPortNumber sets the port. Ports below 1000 are refused and a random
// port is used instead.
func (b Builder) WithPortNumber(n int) Builder {
	b.portNumber = n
	return b
}

// WithBrowser makes StartServer open the monitor in a browser.
func (b Builder) WithBrowser(open bool) Builder {
	b.openBrowser = open
	return b
}

// WithMetrics makes the monitor serve m at /metrics.
func (b Builder) WithMetrics(m *Metrics) Builder {
	b.metrics = m
	return b
}

// Build creates a monitor for the run controlled by ctrl.
func (b Builder) Build(ctrl Controller, model *actor.Model) *Monitor {
	port := b.portNumber
	if port != 0 && port < 1000 {
		b.logger.WithField("port", port).
			Warn("monitor port below 1000 refused, using a random port")

		port = 0
	}

	return &Monitor{
		ctrl:        ctrl,
		model:       model,
		metrics:     b.metrics,
		logger:      b.logger,
		portNumber:  port,
		openBrowser: b.openBrowser,
	}
}

// CreateProgressBar adds a bar to show on the web page.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := NewProgressBar(name, total)

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	kept := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			kept = append(kept, b)
		}
	}

	m.progressBars = kept
}

// Handler returns the router serving the API and the web page.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pause).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/api/continue", m.resume).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/api/stop", m.stop).Methods(http.MethodPost)
	r.HandleFunc("/api/status", m.status)
	r.HandleFunc("/api/actors", m.listActors)
	r.HandleFunc("/api/actor/{name}", m.actorDetails)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)

	if m.metrics != nil {
		r.Handle("/metrics", m.metrics.Handler())
	}

	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer listens and serves in the background. It returns the URL of
// the monitor.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", err
	}

	port := listener.Addr().(*net.TCPAddr).Port
	m.addr = fmt.Sprintf("http://localhost:%d", port)
	m.server = &http.Server{
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.WithError(err).Error("monitor stopped")
		}
	}()

	m.logger.WithField("url", m.addr).Info("monitoring the run")

	if m.openBrowser {
		if err := browser.OpenURL(m.addr); err != nil {
			m.logger.WithError(err).Warn("cannot open a browser")
		}
	}

	return m.addr, nil
}

// Shutdown stops the server.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) pause(w http.ResponseWriter, _ *http.Request) {
	m.ctrl.Pause()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) resume(w http.ResponseWriter, _ *http.Request) {
	m.ctrl.Continue()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) stop(w http.ResponseWriter, _ *http.Request) {
	m.ctrl.Stop()
	w.WriteHeader(http.StatusOK)
}

type statusRsp struct {
	RunID     string  `json:"run_id"`
	State     string  `json:"state"`
	Iteration int64   `json:"iteration"`
	Paused    bool    `json:"paused"`
	ModelTime float64 `json:"model_time"`
}

func (m *Monitor) status(w http.ResponseWriter, _ *http.Request) {
	rsp := statusRsp{
		RunID:     m.ctrl.RunID(),
		State:     m.ctrl.State().String(),
		Iteration: m.ctrl.Iteration(),
		Paused:    m.ctrl.IsPaused(),
	}

	if m.metrics != nil {
		rsp.ModelTime = m.metrics.ModelTime()
	}

	m.writeJSON(w, rsp)
}

func (m *Monitor) listActors(w http.ResponseWriter, _ *http.Request) {
	names := []string{}

	if m.model != nil {
		for _, a := range m.model.Actors() {
			names = append(names, m.model.FullName(a))
		}
	}

	sort.Strings(names)

	m.writeJSON(w, names)
}

func (m *Monitor) actorDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	var a actor.Actor
	if m.model != nil {
		a, _ = m.model.Find(name)
	}

	if a == nil {
		http.Error(w, "actor not found", http.StatusNotFound)
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(a)
	serializer.SetMaxDepth(1)

	if err := serializer.Serialize(w); err != nil {
		m.logger.WithField("actor", name).WithError(err).
			Warn("cannot serialize actor")
	}
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]ProgressSnapshot, len(m.progressBars))
	for i, b := range m.progressBars {
		bars[i] = b.Snapshot()
	}
	m.progressBarsLock.Unlock()

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	cpu, err := proc.CPUPercent()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	mem, err := proc.MemoryInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, resourceRsp{CPUPercent: cpu, MemorySize: mem.RSS})
}

// collectProfile samples the CPU for the number of seconds given by the
// "seconds" query parameter, one by default.
func (m *Monitor) collectProfile(w http.ResponseWriter, r *http.Request) {
	duration := time.Second

	if s := r.URL.Query().Get("seconds"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			http.Error(w, "bad seconds", http.StatusBadRequest)
			return
		}

		duration = time.Duration(v * float64(time.Second))
	}

	buf := bytes.NewBuffer(nil)
	if err := pprof.StartCPUProfile(buf); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	select {
	case <-time.After(duration):
	case <-r.Context().Done():
	}

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, prof)
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.WithError(err).Warn("cannot write response")
	}
}
