package logic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/avct/uasurfer"
)

// Attribute keys derived from the host's User-Agent.
const (
	AttrDeviceType     = "device_type"
	AttrOS             = "os"
	AttrOSVersion      = "os_version"
	AttrBrowser        = "browser"
	AttrBrowserVersion = "browser_version"
	AttrIsBot          = "is_bot"
)

// AttributesFromUserAgent parses a raw User-Agent string into targeting
// attributes sent along with hydration requests. An empty string yields nil.
func AttributesFromUserAgent(uaString string) map[string]string {
	if strings.TrimSpace(uaString) == "" {
		return nil
	}
	u := uasurfer.Parse(uaString)

	var deviceType string
	switch u.DeviceType {
	case uasurfer.DeviceComputer:
		deviceType = "desktop"
	case uasurfer.DevicePhone:
		deviceType = "mobile"
	case uasurfer.DeviceTablet:
		deviceType = "tablet"
	default:
		deviceType = "other"
	}

	v := u.OS.Version
	bv := u.Browser.Version
	return map[string]string{
		AttrDeviceType:     deviceType,
		AttrOS:             strings.TrimPrefix(u.OS.Name.String(), "OS"),
		AttrOSVersion:      fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch),
		AttrBrowser:        strings.TrimPrefix(u.Browser.Name.String(), "Browser"),
		AttrBrowserVersion: fmt.Sprintf("%d.%d.%d", bv.Major, bv.Minor, bv.Patch),
		AttrIsBot:          strconv.FormatBool(u.IsBot()),
	}
}

// MergeAttributes layers caller-supplied attributes over derived ones. Caller
// values always win; empty caller values are kept as explicit overrides.
func MergeAttributes(derived, caller map[string]string) map[string]string {
	if len(derived) == 0 && len(caller) == 0 {
		return nil
	}
	out := make(map[string]string, len(derived)+len(caller))
	for k, v := range derived {
		out[k] = v
	}
	for k, v := range caller {
		out[k] = v
	}
	return out
}
