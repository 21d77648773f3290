package transport

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tgolabs/chatkit/internal/api"
	"github.com/tgolabs/chatkit/internal/domain"
)

var httpScheme = regexp.MustCompile(`(?i)^http`)

// ResolveWSAddr applies the ordered route fallback policy: an explicit
// secure address wins; otherwise the generic ws fields are tried in order;
// under a secure preference the TLS-specific fields are a last resort.
// Any http(s) scheme is rewritten to ws(s).
func ResolveWSAddr(r *api.RouteResponse, preferSecure bool) (string, error) {
	if addr := strings.TrimSpace(r.WSSAddr); addr != "" {
		return rewriteScheme(addr), nil
	}

	addr := firstNonEmpty(r.WSAddr, r.WS, r.WSURL, r.WSAddr2, r.Websocket)
	if addr == "" && preferSecure {
		addr = firstNonEmpty(r.WSS, r.WSAddrTLS)
	}
	if addr == "" {
		return "", domain.RouteResolutionError(fmt.Errorf("missing ws address"))
	}
	return rewriteScheme(addr), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// rewriteScheme converts http:// to ws:// and https:// to wss://.
func rewriteScheme(addr string) string {
	return httpScheme.ReplaceAllString(addr, "ws")
}
