package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// TelemetryPoint is one EC telemetry sample destined for the
// ec_telemetry measurement. Temperatures are degrees Celsius, speeds
// are percent, RPM is revolutions per minute.
type TelemetryPoint struct {
	CPUTemp     int
	CPUFanSpeed int
	CPUFanRPM   int
	GPUTemp     int
	GPUFanSpeed int
	GPUFanRPM   int
	Time        time.Time
}

// WriteTelemetry queues one sample tagged with the reporting host. A
// zero Time is stamped with now; the write itself is batched and
// asynchronous.
func (c *Client) WriteTelemetry(host string, p TelemetryPoint) {
	if c.closed.Load() {
		return
	}
	ts := p.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	c.writer.WritePoint(write.NewPoint("ec_telemetry",
		map[string]string{"host": host},
		map[string]interface{}{
			"cpu_temp":      p.CPUTemp,
			"cpu_fan_speed": p.CPUFanSpeed,
			"cpu_fan_rpm":   p.CPUFanRPM,
			"gpu_temp":      p.GPUTemp,
			"gpu_fan_speed": p.GPUFanSpeed,
			"gpu_fan_rpm":   p.GPUFanRPM,
		},
		ts))
}

// WriteApplyEvent queues a profile application to the ec_apply
// measurement: host, section name and origin (api, mqtt, cli) as tags,
// the register write count as the field. Dashboards use it to annotate
// telemetry with the moments a profile changed.
func (c *Client) WriteApplyEvent(host, profile, source string, writes int) {
	if c.closed.Load() {
		return
	}
	c.writer.WritePoint(write.NewPoint("ec_apply",
		map[string]string{
			"host":    host,
			"profile": profile,
			"source":  source,
		},
		map[string]interface{}{"writes": writes},
		time.Now()))
}
