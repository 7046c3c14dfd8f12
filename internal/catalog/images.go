package catalog

import (
	"net/url"
	"regexp"
	"strings"
)

// doubanImagePattern matches the third-party image host URLs embedded
// in catalog JSON. Browsers cannot load them directly (referer checks),
// so they are routed through the local image proxy.
var doubanImagePattern = regexp.MustCompile(`(https?://)(img\d+\.doubanio\.com)(/[^\s"']*)?`)

const imageProxyMarker = "image-proxy?url="

// RewriteImageHosts routes known third-party image URLs through the
// gateway's image proxy. Idempotent: text that already carries proxied
// URLs is returned untouched.
func RewriteImageHosts(text, publicBaseURL string) string {
	if strings.Contains(text, imageProxyMarker) {
		return text
	}
	base := strings.TrimRight(publicBaseURL, "/")
	return doubanImagePattern.ReplaceAllStringFunc(text, func(match string) string {
		return base + "/api/image-proxy?url=" + url.QueryEscape(match)
	})
}
