/*Package telemetry publishes camera housekeeping over MQTT.

Operations groups thermal data into dashboards from many bench
instruments; the camera contributes its commanded state and sensor
temperature on two topics under a configurable root.  Telemetry is
optional: a server with no broker configured simply does not construct
a Reporter.
*/
package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.jpl.nasa.gov/bdube/goixon/acquire"
	"github.jpl.nasa.gov/bdube/goixon/ixon"
)

// publisher is the slice of mqtt.Client the reporter uses
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Reporter periodically publishes state and temperature messages
type Reporter struct {
	client    publisher
	cam       *ixon.Camera
	worker    *acquire.Worker
	topicRoot string
	interval  time.Duration
	stop      chan struct{}
}

// statePayload is the json body of the state topic
type statePayload struct {
	ixon.DeviceState

	// Worker is the acquisition worker's lifecycle state
	Worker string `json:"worker"`
}

// tempPayload is the json body of the temperature topic
type tempPayload struct {
	// Temp is the sensor temperature in Celsius
	Temp int `json:"temp"`

	// SetPoint is the commanded cooler set point
	SetPoint int `json:"set_point"`

	// Stabilized is true when the sensor has settled at the set point
	Stabilized bool `json:"stabilized"`

	// Cooler is true when the TEC is commanded on
	Cooler bool `json:"cooler"`

	// Time is when the sample was taken
	Time time.Time `json:"time"`
}

// Dial connects to an MQTT broker and returns a reporter publishing
// under topicRoot every interval.  Call Start to begin publishing.
func Dial(broker, clientID, topicRoot string, interval time.Duration, cam *ixon.Camera, w *acquire.Worker) (*Reporter, error) {
	opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.SetKeepAlive(10 * time.Second)
	opts.SetPingTimeout(2 * time.Second)
	opts.SetAutoReconnect(true)
	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("telemetry: connecting to %s: %w", broker, token.Error())
	}
	return newReporter(c, topicRoot, interval, cam, w), nil
}

func newReporter(client publisher, topicRoot string, interval time.Duration, cam *ixon.Camera, w *acquire.Worker) *Reporter {
	return &Reporter{
		client:    client,
		cam:       cam,
		worker:    w,
		topicRoot: topicRoot,
		interval:  interval,
		stop:      make(chan struct{}),
	}
}

// Start launches the publish loop
func (rp *Reporter) Start() {
	go rp.run()
}

// Stop ends the publish loop
func (rp *Reporter) Stop() {
	close(rp.stop)
}

func (rp *Reporter) run() {
	tick := time.NewTicker(rp.interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			rp.publishOnce()
		case <-rp.stop:
			return
		}
	}
}

// publishOnce emits one state message, and one temperature message
// when the device can answer; temperature reads are refused while the
// device is acquiring and simply skipped.
func (rp *Reporter) publishOnce() {
	st := statePayload{
		DeviceState: rp.cam.Snapshot(),
		Worker:      rp.worker.State().String(),
	}
	rp.publishJSON(rp.topicRoot+"/state", st)

	if rp.worker.State() != acquire.Paused {
		return
	}
	temp, err := rp.cam.GetTemperature()
	if err != nil {
		log.Printf("telemetry: temperature read, %v", err)
		return
	}
	snap := rp.cam.Snapshot()
	rp.publishJSON(rp.topicRoot+"/temperature", tempPayload{
		Temp:       temp,
		SetPoint:   snap.TemperatureSetPoint,
		Stabilized: snap.TemperatureStabilized,
		Cooler:     snap.CoolerActive,
		Time:       time.Now(),
	})
}

func (rp *Reporter) publishJSON(topic string, obj interface{}) {
	msg, err := json.Marshal(obj)
	if err != nil {
		log.Printf("telemetry: marshaling %s, %v", topic, err)
		return
	}
	rp.client.Publish(topic, 0, false, msg)
}
