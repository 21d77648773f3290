package visitor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/tgolabs/chatkit/internal/api"
)

// User-agent fragments, most specific first: mobile browsers carry the
// desktop engine tokens too.
var (
	reCriOS   = regexp.MustCompile(`CriOS/(\d+(?:\.\d+)?)`)
	reFxiOS   = regexp.MustCompile(`FxiOS/(\d+(?:\.\d+)?)`)
	reEdge    = regexp.MustCompile(`Edg/(\d+(?:\.\d+)?)`)
	reChrome  = regexp.MustCompile(`Chrome/(\d+(?:\.\d+)?)`)
	reFirefox = regexp.MustCompile(`Firefox/(\d+(?:\.\d+)?)`)
	reSafari  = regexp.MustCompile(`Version/(\d+(?:\.\d+)?)`)

	reIOS     = regexp.MustCompile(`(?:iPhone|iPad|iPod).*?OS (\d[._\d]*)`)
	reAndroid = regexp.MustCompile(`Android (\d+(?:\.\d+)?)`)
	reWindows = regexp.MustCompile(`Windows NT (\d+\.\d+)`)
	reMacOS   = regexp.MustCompile(`Mac OS X (\d+[._]\d+(?:[._]\d+)?)`)
)

var windowsVersions = map[string]string{
	"10.0": "Windows 10+",
	"6.3":  "Windows 8.1",
	"6.2":  "Windows 8",
	"6.1":  "Windows 7",
}

// utmKeys are the tracking parameters extracted from the page URL.
var utmKeys = []string{
	"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
	"gclid", "msclkid", "fbclid",
}

// ParseBrowser extracts a "Name version" browser label from a user agent.
// Returns "" when nothing recognizable is found.
func ParseBrowser(ua string) string {
	if m := reCriOS.FindStringSubmatch(ua); m != nil {
		return "Chrome iOS " + m[1]
	}
	if m := reFxiOS.FindStringSubmatch(ua); m != nil {
		return "Firefox iOS " + m[1]
	}
	if m := reEdge.FindStringSubmatch(ua); m != nil {
		return "Edge " + m[1]
	}
	if m := reChrome.FindStringSubmatch(ua); m != nil && !strings.Contains(ua, "Edg/") && !strings.Contains(ua, "OPR/") {
		return "Chrome " + m[1]
	}
	if m := reFirefox.FindStringSubmatch(ua); m != nil {
		return "Firefox " + m[1]
	}
	if strings.Contains(ua, "Safari/") && !strings.Contains(ua, "Chrome/") {
		if m := reSafari.FindStringSubmatch(ua); m != nil {
			return "Safari " + m[1]
		}
		return "Safari"
	}
	return ""
}

// ParseOS extracts an operating system label from a user agent.
func ParseOS(ua string) string {
	if m := reIOS.FindStringSubmatch(ua); m != nil {
		return "iOS " + strings.ReplaceAll(m[1], "_", ".")
	}
	if m := reAndroid.FindStringSubmatch(ua); m != nil {
		return "Android " + m[1]
	}
	if m := reWindows.FindStringSubmatch(ua); m != nil {
		if name, ok := windowsVersions[m[1]]; ok {
			return name
		}
		return "Windows NT " + m[1]
	}
	if m := reMacOS.FindStringSubmatch(ua); m != nil {
		return "macOS " + strings.ReplaceAll(m[1], "_", ".")
	}
	if strings.Contains(ua, "Linux") && !strings.Contains(ua, "Android") {
		return "Linux"
	}
	return ""
}

// SourceDetail combines the referrer and any tracking parameters found in
// the page URL into a single attribution string.
func SourceDetail(referrer, pageURL string) string {
	var utm string
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			q := u.Query()
			var parts []string
			for _, k := range utmKeys {
				if v := q.Get(k); v != "" {
					parts = append(parts, k+"="+v)
				}
			}
			utm = strings.Join(parts, "&")
		}
	}

	switch {
	case referrer != "" && utm != "":
		return "referrer=" + referrer + "; utm=" + utm
	case referrer != "":
		return referrer
	case utm != "":
		return "utm=" + utm
	}
	return ""
}

// CollectSystemInfo builds registration context from the hosting surface's
// client context. Returns nil when nothing useful was found.
func CollectSystemInfo(cctx ClientContext) *api.VisitorSystemInfo {
	info := api.VisitorSystemInfo{
		SourceDetail:    SourceDetail(cctx.Referrer, cctx.PageURL),
		Browser:         ParseBrowser(cctx.UserAgent),
		OperatingSystem: ParseOS(cctx.UserAgent),
	}
	if info == (api.VisitorSystemInfo{}) {
		return nil
	}
	return &info
}
