package mcp

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// EnrichTimezoneArgument injects a default timezone value when the cached
// tool schema requires one and the caller omitted it (§4.6, testable
// property 10 / S5). Caller-supplied values are preserved byte-for-byte.
func EnrichTimezoneArgument(schema map[string]interface{}, args map[string]interface{}) map[string]interface{} {
	if args == nil {
		args = map[string]interface{}{}
	}
	if !schemaRequiresTimezone(schema) {
		return args
	}
	if v, ok := args["timezone"]; ok {
		if s, isStr := v.(string); !isStr || strings.TrimSpace(s) != "" {
			return args
		}
	}

	args["timezone"] = resolveDefaultTimezone()
	return args
}

func schemaRequiresTimezone(schema map[string]interface{}) bool {
	if schema == nil {
		return false
	}
	required, ok := schema["required"].([]interface{})
	if !ok {
		return false
	}
	for _, r := range required {
		if s, ok := r.(string); ok && s == "timezone" {
			return true
		}
	}
	return false
}

// resolveDefaultTimezone follows the precedence order from §4.6:
// VT_LOCAL_TIMEZONE -> TZ -> local zone-name probe -> numeric-offset fallback.
func resolveDefaultTimezone() string {
	if v, ok := os.LookupEnv("VT_LOCAL_TIMEZONE"); ok && strings.TrimSpace(v) != "" {
		return v
	}
	if v, ok := os.LookupEnv("TZ"); ok && strings.TrimSpace(v) != "" {
		return v
	}
	if name := probeLocalIANAZone(); name != "" {
		return name
	}
	return numericOffsetFallback()
}

// probeLocalIANAZone returns the zone abbreviation reported by time.Now
// (such as "CET") when the local offset is non-zero, else time.Local's name
// when it is not "Local", else "". It does not read the system's IANA zone
// name, so the abbreviation it may return is not an IANA identifier.
func probeLocalIANAZone() string {
	name, offset := time.Now().Zone()
	if name != "" && name != "UTC" && offset != 0 {
		return name
	}
	if loc := time.Local; loc != nil && loc.String() != "" && loc.String() != "Local" {
		return loc.String()
	}
	return ""
}

func numericOffsetFallback() string {
	_, offsetSeconds := time.Now().Zone()
	sign := "+"
	if offsetSeconds < 0 {
		sign = "-"
		offsetSeconds = -offsetSeconds
	}
	hours := offsetSeconds / 3600
	minutes := (offsetSeconds % 3600) / 60
	return fmt.Sprintf("%s%02d:%02d", sign, hours, minutes)
}
