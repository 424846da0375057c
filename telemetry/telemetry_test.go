package telemetry

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.jpl.nasa.gov/bdube/goixon/acquire"
	"github.jpl.nasa.gov/bdube/goixon/drv"
	"github.jpl.nasa.gov/bdube/goixon/ixon"
)

type fakeToken struct{}

func (fakeToken) Wait() bool                     { return true }
func (fakeToken) WaitTimeout(time.Duration) bool { return true }
func (fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (fakeToken) Error() error { return nil }

type fakePublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{messages: map[string][][]byte{}}
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[topic] = append(f.messages[topic], payload.([]byte))
	return fakeToken{}
}

func (f *fakePublisher) byTopic(topic string) [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages[topic]
}

func newRig(t *testing.T) (*ixon.Camera, *acquire.Worker) {
	t.Helper()
	sim := drv.NewSim()
	caps := ixon.DefaultCapabilities()
	caps.InitExposureMS = 1
	caps.WaitForTemp = false
	cam := ixon.New(sim, caps)
	if err := cam.Initialize(""); err != nil {
		t.Fatalf("Initialize, expected nil error, got %v", err)
	}
	hub := acquire.NewHub()
	w := acquire.NewWorker(cam, hub)
	w.Start()
	t.Cleanup(func() { w.Stop() })
	return cam, w
}

func TestPublishOncePausedEmitsBothTopics(t *testing.T) {
	cam, w := newRig(t)
	pub := newFakePublisher()
	rp := newReporter(pub, "cam/ixon", time.Second, cam, w)
	rp.publishOnce()

	states := pub.byTopic("cam/ixon/state")
	if len(states) != 1 {
		t.Fatalf("expected 1 state message, got %d", len(states))
	}
	var st statePayload
	if err := json.Unmarshal(states[0], &st); err != nil {
		t.Fatalf("decoding state message, expected nil error, got %v", err)
	}
	if st.Worker != "paused" {
		t.Errorf("got worker %q, expected paused", st.Worker)
	}
	if st.TriggerMode != "internal" {
		t.Errorf("got trigger mode %q, expected internal", st.TriggerMode)
	}

	temps := pub.byTopic("cam/ixon/temperature")
	if len(temps) != 1 {
		t.Fatalf("expected 1 temperature message, got %d", len(temps))
	}
	var tp tempPayload
	if err := json.Unmarshal(temps[0], &tp); err != nil {
		t.Fatalf("decoding temperature message, expected nil error, got %v", err)
	}
	if tp.SetPoint != cam.GetTemperatureSetpoint() {
		t.Errorf("got set point %d, expected %d", tp.SetPoint, cam.GetTemperatureSetpoint())
	}
}

func TestPublishOnceStreamingSkipsTemperature(t *testing.T) {
	cam, w := newRig(t)
	if err := w.Resume(); err != nil {
		t.Fatalf("Resume, expected nil error, got %v", err)
	}
	pub := newFakePublisher()
	rp := newReporter(pub, "cam/ixon", time.Second, cam, w)
	rp.publishOnce()

	if n := len(pub.byTopic("cam/ixon/state")); n != 1 {
		t.Errorf("expected 1 state message, got %d", n)
	}
	// the device cannot answer temperature queries while acquiring
	if n := len(pub.byTopic("cam/ixon/temperature")); n != 0 {
		t.Errorf("expected no temperature messages while streaming, got %d", n)
	}
}
