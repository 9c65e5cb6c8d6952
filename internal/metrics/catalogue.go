package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Kind tells the mapper how to turn a field into samples.
type Kind int

const (
	// KindGauge parses the field as a number.
	KindGauge Kind = iota
	// KindInfo carries the raw value as a label on a constant 1.
	KindInfo
	// KindEnum emits one 0/1 sample per known Status.
	KindEnum
)

// Descriptor is the static definition of one metric.
type Descriptor struct {
	Name   string
	Help   string
	Kind   Kind
	Field  string   // status record key the metric is read from
	Labels []string // label schema; always starts with "host"

	// Required marks fields every responding UPS reports.
	Required bool
	// Absent is a raw value meaning "no data", skipped without parsing.
	Absent string

	parse func(string) (float64, error)
	desc  *prometheus.Desc
}

// Desc returns the prometheus descriptor for d.
func (d *Descriptor) Desc() *prometheus.Desc { return d.desc }

func newDescriptor(d Descriptor) *Descriptor {
	if d.parse == nil {
		d.parse = parseNumber
	}
	d.desc = prometheus.NewDesc(d.Name, d.Help, d.Labels, nil)
	return &d
}

var (
	ModelInfo = newDescriptor(Descriptor{
		Name: "apcupsd_model_info", Help: "UPS model as reported by apcupsd.",
		Kind: KindInfo, Field: "MODEL", Labels: []string{"host", "model"}, Required: true,
	})
	StatusState = newDescriptor(Descriptor{
		Name: "apcupsd_status", Help: "Current UPS status; 1 for the reported status, 0 for the others.",
		Kind: KindEnum, Field: "STATUS", Labels: []string{"host", "status"}, Required: true,
	})
	TimeOnBattery = newDescriptor(Descriptor{
		Name: "apcupsd_time_on_battery_seconds", Help: "Time spent on battery since the last transfer.",
		Field: "TONBATT", Labels: []string{"host"}, Required: true,
	})
	CumulativeTimeOnBattery = newDescriptor(Descriptor{
		Name: "apcupsd_cumulative_time_on_battery_seconds", Help: "Total time spent on battery since apcupsd started.",
		Field: "CUMONBATT", Labels: []string{"host"}, Required: true,
	})
	StartTime = newDescriptor(Descriptor{
		Name: "apcupsd_start_time_seconds", Help: "Time apcupsd was started, in seconds since the epoch.",
		Field: "STARTTIME", Labels: []string{"host"}, parse: parseTimestamp,
	})
	LineVolts = newDescriptor(Descriptor{
		Name: "apcupsd_line_volts", Help: "Input line voltage.",
		Field: "LINEV", Labels: []string{"host"},
	})
	LoadPercent = newDescriptor(Descriptor{
		Name: "apcupsd_load_percent", Help: "Load as a percentage of capacity.",
		Field: "LOADPCT", Labels: []string{"host"},
	})
	BatteryChargePercent = newDescriptor(Descriptor{
		Name: "apcupsd_battery_charge_percent", Help: "Battery charge as a percentage.",
		Field: "BCHARGE", Labels: []string{"host"},
	})
	TimeLeftMinutes = newDescriptor(Descriptor{
		Name: "apcupsd_time_left_minutes", Help: "Estimated runtime left on battery.",
		Field: "TIMELEFT", Labels: []string{"host"},
	})
	Transfers = newDescriptor(Descriptor{
		Name: "apcupsd_transfers", Help: "Number of transfers to battery since apcupsd started.",
		Field: "NUMXFERS", Labels: []string{"host"},
	})
	BatteryVolts = newDescriptor(Descriptor{
		Name: "apcupsd_battery_volts", Help: "Battery voltage.",
		Field: "BATTV", Labels: []string{"host"},
	})
	LastTransferInfo = newDescriptor(Descriptor{
		Name: "apcupsd_last_transfer_info", Help: "Reason for the last transfer to battery.",
		Kind: KindInfo, Field: "LASTXFER", Labels: []string{"host", "reason"},
	})
	FirmwareInfo = newDescriptor(Descriptor{
		Name: "apcupsd_firmware_info", Help: "UPS firmware revision.",
		Kind: KindInfo, Field: "FIRMWARE", Labels: []string{"host", "firmware"},
	})
	BatteryDate = newDescriptor(Descriptor{
		Name: "apcupsd_battery_date_seconds", Help: "Date the battery was last replaced, in seconds since the epoch.",
		Field: "BATTDATE", Labels: []string{"host"}, parse: parseDate,
	})
	LastOffBattery = newDescriptor(Descriptor{
		Name: "apcupsd_last_off_battery_time_seconds", Help: "Time of the last transfer off battery, in seconds since the epoch.",
		Field: "XOFFBATT", Labels: []string{"host"}, Absent: "N/A", parse: parseTimestamp,
	})
)

// Catalogue is every metric the mapper can emit, in emission order.
var Catalogue = []*Descriptor{
	ModelInfo,
	StatusState,
	TimeOnBattery,
	CumulativeTimeOnBattery,
	StartTime,
	LineVolts,
	LoadPercent,
	BatteryChargePercent,
	TimeLeftMinutes,
	Transfers,
	BatteryVolts,
	LastTransferInfo,
	FirmwareInfo,
	BatteryDate,
	LastOffBattery,
}
