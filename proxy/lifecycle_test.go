package proxy

import (
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/incendiarybean/proxy-address-blocker/logger"
	"github.com/incendiarybean/proxy-address-blocker/trafficfilter"
)

// testEventSink records every published event for assertions, without
// ever blocking the Coordinator: the channel is generously buffered
// and a full channel silently drops, matching the production Hub's
// own best-effort contract.
type testEventSink struct {
	events chan Event
}

func newTestEventSink() *testEventSink {
	return &testEventSink{events: make(chan Event, 256)}
}

func (sink *testEventSink) Publish(event Event) {
	select {
	case sink.events <- event:
	default:
	}
}

func freePort(t *testing.T) uint16 {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	return uint16(listener.Addr().(*net.TCPAddr).Port)
}

func waitForStatus(t *testing.T, proxyInstance *Proxy, kind StatusKind, timeout time.Duration) Status {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if status := proxyInstance.Status(); status.Kind == kind {
			return status
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %v, last was %v", kind, proxyInstance.Status().Kind)
	return Status{}
}

func TestRun_TransitionsStoppedToRunning(t *testing.T) {
	filter := trafficfilter.New(false, trafficfilter.Deny, nil)
	log := logger.New(logger.LevelWarning, logger.FormatText)
	proxyInstance := New(freePort(t), filter, log)

	assert.Equal(t, Stopped, proxyInstance.Status().Kind)

	proxyInstance.Run()
	waitForStatus(t, proxyInstance, Running, 2*time.Second)

	assert.Greater(t, proxyInstance.RunTime(), int64(-1))

	proxyInstance.Stop()
	proxyInstance.Wait()

	assert.Equal(t, Stopped, proxyInstance.Status().Kind)
	assert.Equal(t, int64(0), proxyInstance.RunTime())
}

func TestRun_IsANoOpWhenNotStopped(t *testing.T) {
	filter := trafficfilter.New(false, trafficfilter.Deny, nil)
	log := logger.New(logger.LevelWarning, logger.FormatText)
	sink := newTestEventSink()
	proxyInstance := New(freePort(t), filter, log, WithEventSink(sink))

	proxyInstance.Run()
	waitForStatus(t, proxyInstance, Running, 2*time.Second)

	proxyInstance.Run() // no-op: already Running

	proxyInstance.Stop()
	proxyInstance.Wait()

	startingEvents := 0
drain:
	for {
		select {
		case event := <-sink.events:
			if event.Kind == EventStatusChanged && event.Status.Kind == Starting {
				startingEvents++
			}
		default:
			break drain
		}
	}
	assert.Equal(t, 1, startingEvents)
}

func TestRun_BindFailureTransitionsToError(t *testing.T) {
	filter := trafficfilter.New(false, trafficfilter.Deny, nil)
	log := logger.New(logger.LevelWarning, logger.FormatText)

	blocker, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()

	port := uint16(blocker.Addr().(*net.TCPAddr).Port)
	proxyInstance := New(port, filter, log)

	proxyInstance.Run()
	status := waitForStatus(t, proxyInstance, Error, 2*time.Second)
	assert.NotEmpty(t, status.Message)
}

// TestRun_MultipleInstancesDrainConcurrently starts several engines at
// once and waits on the whole fleet with an errgroup; each engine's own
// Wait covers its Coordinator and Accept Loop.
func TestRun_MultipleInstancesDrainConcurrently(t *testing.T) {
	const fleetSize = 4
	engines := make([]*Proxy, fleetSize)
	for i := range engines {
		filter := trafficfilter.New(false, trafficfilter.Deny, nil)
		log := logger.New(logger.LevelWarning, logger.FormatText)
		engines[i] = New(freePort(t), filter, log)
	}

	var group errgroup.Group
	for _, engine := range engines {
		engine := engine
		group.Go(func() error {
			engine.Run()
			waitForStatus(t, engine, Running, 2*time.Second)
			return nil
		})
	}
	require.NoError(t, group.Wait())

	var shutdown errgroup.Group
	for _, engine := range engines {
		engine := engine
		shutdown.Go(func() error {
			engine.Stop()
			engine.Wait()
			return nil
		})
	}
	require.NoError(t, shutdown.Wait())

	for _, engine := range engines {
		assert.Equal(t, Stopped, engine.Status().Kind)
	}
}

// TestRun_StopBeforeRunningStillReachesStopped exercises the race where
// Stop() is issued before the Accept Loop has published Running: the
// Terminating command must still be accepted while Starting, not
// dropped, or the engine would latch into Running forever once the
// Accept Loop catches up.
func TestRun_StopBeforeRunningStillReachesStopped(t *testing.T) {
	filter := trafficfilter.New(false, trafficfilter.Deny, nil)
	log := logger.New(logger.LevelWarning, logger.FormatText)
	proxyInstance := New(freePort(t), filter, log)

	proxyInstance.Run()
	proxyInstance.Stop()

	proxyInstance.Wait()
	assert.Equal(t, Stopped, proxyInstance.Status().Kind)
}

func TestStop_WhenStoppedIsHarmless(t *testing.T) {
	filter := trafficfilter.New(false, trafficfilter.Deny, nil)
	log := logger.New(logger.LevelWarning, logger.FormatText)
	proxyInstance := New(freePort(t), filter, log)

	assert.NotPanics(t, func() { proxyInstance.Stop() })
	assert.Equal(t, Stopped, proxyInstance.Status().Kind)
}

func TestRequestLog_PopulatedOnlyWhileRunning(t *testing.T) {
	filter := trafficfilter.New(true, trafficfilter.Deny, []string{"blocked.invalid"})
	log := logger.New(logger.LevelWarning, logger.FormatText)
	proxyInstance := New(freePort(t), filter, log)

	proxyInstance.Run()
	status := waitForStatus(t, proxyInstance, Running, 2*time.Second)
	require.Equal(t, Running, status.Kind)

	target := "http://127.0.0.1:" + strconv.Itoa(int(proxyInstance.port))
	client := &http.Client{Timeout: 2 * time.Second}
	request, err := http.NewRequest(http.MethodGet, target, nil)
	require.NoError(t, err)

	response, doErr := client.Do(request)
	if doErr == nil {
		response.Body.Close()
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && len(proxyInstance.Requests()) == 0 {
		time.Sleep(10 * time.Millisecond)
	}

	assert.NotEmpty(t, proxyInstance.Requests())

	proxyInstance.Stop()
	proxyInstance.Wait()
}
