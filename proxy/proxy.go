// Package proxy implements the engine's core: the lifecycle
// Coordinator, the TCP Accept Loop, and the per-request Dispatcher,
// wired together behind the Proxy type that is the Control API's
// receiver.
package proxy

import (
	"sync"
	"time"

	"github.com/incendiarybean/proxy-address-blocker/logger"
	"github.com/incendiarybean/proxy-address-blocker/metrics"
	"github.com/incendiarybean/proxy-address-blocker/requestlog"
	"github.com/incendiarybean/proxy-address-blocker/trafficfilter"
)

// commandBufferSize bounds the command channel. The original
// implementation used an effectively unbounded mpsc channel; a large
// buffer gets the same "never blocks a worker" property without an
// actually-unbounded allocation.
const commandBufferSize = 256

// terminationPollInterval is how often the shutdown watcher checks the
// status cell for Terminating. The spec requires at least 500ms to
// keep the idle CPU cost negligible; 750ms leaves headroom.
const terminationPollInterval = 750 * time.Millisecond

// Proxy is the Control API's receiver: the externally visible surface
// by which a supervising process starts/stops the engine, inspects its
// state, and edits the traffic filter. Every field below is guarded
// independently, matching the spec's ownership model: no guard is ever
// held across an I/O await or a command-channel send.
type Proxy struct {
	port uint16

	logger  *logger.Logger
	filter  *trafficfilter.TrafficFilter
	log     *requestlog.Log
	metrics *metrics.Registry
	events  EventSink

	statusMu sync.RWMutex
	status   Status

	runTimeMu      sync.RWMutex
	runTimeStarted *time.Time

	senderMu sync.Mutex
	sender   chan<- Command

	wait sync.WaitGroup
}

// Option configures optional collaborators on New.
type Option func(*Proxy)

// WithMetrics attaches a metrics.Registry. Without this option, metrics
// calls are no-ops (Registry's methods are nil-receiver safe).
func WithMetrics(registry *metrics.Registry) Option {
	return func(proxy *Proxy) { proxy.metrics = registry }
}

// WithEventSink attaches an EventSink that receives every status
// transition and logged request. Without this option, events are
// discarded.
func WithEventSink(sink EventSink) Option {
	return func(proxy *Proxy) { proxy.events = sink }
}

// New constructs a Proxy from explicit initial state: the port to bind,
// the traffic filter to classify against, and a Logger at the given
// level. This mirrors the original constructor's signature
// (port, view, filter, log_level) minus the view, which belongs to the
// out-of-scope GUI.
func New(port uint16, filterInstance *trafficfilter.TrafficFilter, log *logger.Logger, options ...Option) *Proxy {
	proxy := &Proxy{
		port:   port,
		logger: log,
		filter: filterInstance,
		log:    requestlog.New(requestlog.DefaultCapacity),
		status: StoppedStatus,
		events: noopSink{},
	}
	for _, option := range options {
		option(proxy)
	}
	return proxy
}

// Status returns a snapshot of the current lifecycle status.
func (proxy *Proxy) Status() Status {
	proxy.statusMu.RLock()
	defer proxy.statusMu.RUnlock()
	return proxy.status
}

func (proxy *Proxy) setStatus(status Status) {
	proxy.statusMu.Lock()
	proxy.status = status
	proxy.statusMu.Unlock()

	if proxy.metrics != nil {
		proxy.metrics.SetStatus(statusMetricLabel(status.Kind))
	}
	proxy.events.Publish(Event{Kind: EventStatusChanged, Status: status})
}

func statusMetricLabel(kind StatusKind) string {
	switch kind {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Terminating:
		return "terminating"
	case Terminated:
		return "terminated"
	case Error:
		return "error"
	default:
		return "stopped"
	}
}

// RunTime returns the number of seconds since the Proxy entered
// Running, or 0 in every other state.
func (proxy *Proxy) RunTime() int64 {
	proxy.runTimeMu.RLock()
	defer proxy.runTimeMu.RUnlock()

	if proxy.runTimeStarted == nil {
		return 0
	}
	return int64(time.Since(*proxy.runTimeStarted).Seconds())
}

func (proxy *Proxy) setRunTimeStarted(when time.Time) {
	proxy.runTimeMu.Lock()
	proxy.runTimeStarted = &when
	proxy.runTimeMu.Unlock()
}

func (proxy *Proxy) clearRunTimeStarted() {
	proxy.runTimeMu.Lock()
	proxy.runTimeStarted = nil
	proxy.runTimeMu.Unlock()
}

// Requests returns a snapshot of the RequestLog.
func (proxy *Proxy) Requests() []requestlog.Record {
	return proxy.log.Snapshot()
}

// Filter returns a snapshot of the current TrafficFilter state.
func (proxy *Proxy) Filter() trafficfilter.Snapshot {
	return proxy.filter.Snapshot()
}

// ToggleFilterEnabled flips whether the traffic filter classifies
// requests at all.
func (proxy *Proxy) ToggleFilterEnabled() {
	proxy.filter.SetEnabled(!proxy.filter.IsEnabled())
	proxy.logger.Debug("traffic filtering toggled", "enabled", proxy.filter.IsEnabled())
}

// ToggleFilterPolarity swaps the filter between Allow and Deny.
func (proxy *Proxy) ToggleFilterPolarity() {
	proxy.filter.TogglePolarity()
	proxy.logger.Debug("filter polarity toggled", "polarity", proxy.filter.PolarityValue().String())
}

// UpdateFilterList adds value to the pattern list, or removes it if
// already present.
func (proxy *Proxy) UpdateFilterList(value string) {
	proxy.filter.Update(value)
	proxy.logger.Debug("filter list updated", "value", value)
}

// UpdateFilterListItem replaces the pattern at index in place.
func (proxy *Proxy) UpdateFilterListItem(index int, value string) {
	proxy.filter.UpdateAt(index, value)
	proxy.logger.Debug("filter list item edited", "index", index, "value", value)
}

// SetFilterList replaces the entire pattern list.
func (proxy *Proxy) SetFilterList(values []string) {
	proxy.filter.ReplaceAll(values)
	proxy.logger.Debug("filter list replaced", "count", len(values))
}

// send delivers a Command to the Coordinator if one is currently
// running. It is a no-op when the Proxy is Stopped and no Coordinator
// is live, matching the original's "only send if a sender exists"
// behaviour.
func (proxy *Proxy) send(command Command) {
	proxy.senderMu.Lock()
	sender := proxy.sender
	proxy.senderMu.Unlock()

	if sender != nil {
		sender <- command
	}
}

func (proxy *Proxy) setSender(sender chan<- Command) {
	proxy.senderMu.Lock()
	proxy.sender = sender
	proxy.senderMu.Unlock()
}

// Run is idempotent only from Stopped; any other status is a no-op.
// It spawns the Coordinator and the Accept Loop and returns
// immediately — callers observe progress via Status/RunTime or the
// Event Hub.
func (proxy *Proxy) Run() {
	if proxy.Status().Kind != Stopped {
		return
	}

	commands := make(chan Command, commandBufferSize)
	proxy.setSender(commands)

	proxy.wait.Add(1)
	go runCoordinator(proxy, commands)

	proxy.logger.Info("service is now starting...")
	proxy.send(startingCommand())

	proxy.wait.Add(1)
	go runAcceptLoop(proxy)
}

// Stop publishes Terminating and returns immediately. The Accept Loop
// drains within terminationPollInterval and the Coordinator then
// transitions Terminating -> Terminated -> Stopped.
func (proxy *Proxy) Stop() {
	proxy.logger.Info("service is now stopping...")
	proxy.send(terminatingCommand())
}

// Wait blocks until the Coordinator and Accept Loop have both exited.
// It is intended for tests and the CLI entrypoint's graceful shutdown,
// not for the Control API's Stop, which must return immediately.
func (proxy *Proxy) Wait() {
	proxy.wait.Wait()
}
