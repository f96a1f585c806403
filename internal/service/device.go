package service

import (
	"strings"

	"github.com/marketlens/account-service/internal/domain"
)

// Device classification buckets.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"

	deviceUnknown = "unknown"
)

// ParseDeviceInfo classifies a raw user-agent string into the coarse device
// fingerprint recorded on sessions. Best effort only: the result is used for
// display and for the exact same-device equality check, never for security
// decisions.
func ParseDeviceInfo(userAgent, ipAddress string) domain.DeviceInfo {
	return domain.DeviceInfo{
		UserAgent:  userAgent,
		IPAddress:  ipAddress,
		Platform:   parsePlatform(userAgent),
		Browser:    parseBrowser(userAgent),
		DeviceType: parseDeviceType(userAgent),
	}
}

func parseDeviceType(userAgent string) string {
	ua := strings.ToLower(userAgent)

	if strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet") {
		return DeviceTablet
	}

	for _, marker := range []string{"mobile", "android", "iphone", "ipod", "blackberry", "windows phone"} {
		if strings.Contains(ua, marker) {
			return DeviceMobile
		}
	}

	return DeviceDesktop
}

func parsePlatform(userAgent string) string {
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "windows"):
		return "Windows"
	// iOS agents say "like Mac OS X", Android agents say "Linux"; check the
	// mobile markers before the desktop ones.
	case strings.Contains(ua, "iphone"), strings.Contains(ua, "ipad"), strings.Contains(ua, "ios"):
		return "iOS"
	case strings.Contains(ua, "mac os") || strings.Contains(ua, "macintosh"):
		return "macOS"
	case strings.Contains(ua, "android"):
		return "Android"
	case strings.Contains(ua, "linux"):
		return "Linux"
	}

	return deviceUnknown
}

func parseBrowser(userAgent string) string {
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "chrome") && !strings.Contains(ua, "edg"):
		return "Chrome"
	case strings.Contains(ua, "firefox"):
		return "Firefox"
	case strings.Contains(ua, "safari") && !strings.Contains(ua, "chrome"):
		return "Safari"
	case strings.Contains(ua, "edg"):
		return "Edge"
	case strings.Contains(ua, "opr") || strings.Contains(ua, "opera"):
		return "Opera"
	}

	return deviceUnknown
}
