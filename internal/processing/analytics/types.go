package analytics

import (
	"strings"
	"time"
)

// DeviceClass is the coarse visitor categorization. The set is fixed;
// anything the parser cannot place lands in DeviceDesktop.
type DeviceClass string

const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceDesktop DeviceClass = "desktop"
	DeviceTablet  DeviceClass = "tablet"
)

// ParseDeviceClass normalizes a raw device string to the canonical lowercase
// enum so case variations never create spurious buckets.
func ParseDeviceClass(raw string) DeviceClass {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mobile":
		return DeviceMobile
	case "tablet":
		return DeviceTablet
	default:
		return DeviceDesktop
	}
}

// DeviceClicks holds per-device-class click counters. The fixed fields mirror
// the DeviceClass enum; there is deliberately no map here.
type DeviceClicks struct {
	Mobile  int64 `json:"mobile" bson:"mobile"`
	Desktop int64 `json:"desktop" bson:"desktop"`
	Tablet  int64 `json:"tablet" bson:"tablet"`
}

func (d *DeviceClicks) Add(class DeviceClass, n int64) {
	switch class {
	case DeviceMobile:
		d.Mobile += n
	case DeviceTablet:
		d.Tablet += n
	default:
		d.Desktop += n
	}
}

func (d *DeviceClicks) Merge(other DeviceClicks) {
	d.Mobile += other.Mobile
	d.Desktop += other.Desktop
	d.Tablet += other.Tablet
}

func (d DeviceClicks) Total() int64 {
	return d.Mobile + d.Desktop + d.Tablet
}

// Visit is one logged redirect event. Token and destination are denormalized
// onto the visit so the log can be read without joining back to the link.
type Visit struct {
	Token       string
	Destination string
	OwnerID     string
	Date        string // YYYY-MM-DD (UTC)
	Timestamp   time.Time
	IP          string
	Device      DeviceClass
	OS          string
	Browser     string
}

// DateClicks is one per-day aggregate: a total and its device breakdown.
// Invariant: Devices.Total() == Total for every stored bucket.
type DateClicks struct {
	Date    string       `json:"date"`
	Total   int64        `json:"totalClicks"`
	Devices DeviceClicks `json:"deviceClicks"`
}

// ClickSummary is the owner-facing rollup across all of an owner's links.
type ClickSummary struct {
	TotalClicks int64        `json:"totalClicks"`
	DateWise    []DateClicks `json:"dateWiseClicks"`
	Devices     DeviceClicks `json:"deviceClicks"`
}

// RequestContext is the raw visitor information captured on a redirect.
type RequestContext struct {
	UserAgent string
	IP        string
}
