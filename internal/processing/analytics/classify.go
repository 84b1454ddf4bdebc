package analytics

import (
	"strings"

	"github.com/mileusna/useragent"
)

const unknown = "unknown"

// Classification is the parsed visitor fingerprint.
type Classification struct {
	Device  DeviceClass
	OS      string
	Browser string
}

// Classify parses a raw User-Agent header into device class, OS and browser.
// Best effort: unparseable device falls back to desktop, unparseable OS and
// browser to "unknown". Never fails.
func Classify(rawUserAgent string) Classification {
	rawUserAgent = strings.TrimSpace(rawUserAgent)
	if rawUserAgent == "" {
		return Classification{Device: DeviceDesktop, OS: unknown, Browser: unknown}
	}

	ua := useragent.Parse(rawUserAgent)

	device := DeviceDesktop
	switch {
	case ua.Tablet:
		device = DeviceTablet
	case ua.Mobile:
		device = DeviceMobile
	}

	os := strings.TrimSpace(ua.OS)
	if os == "" {
		os = unknown
	}
	browser := strings.TrimSpace(ua.Name)
	if browser == "" {
		browser = unknown
	}

	return Classification{Device: device, OS: os, Browser: browser}
}
