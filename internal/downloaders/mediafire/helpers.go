package mediafire

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// findDownloadLink walks the share page for the download button. Mediafire has
// shipped the button as aria-label="Download file" and as id="downloadButton";
// any anchor on a download*.mediafire.com host is the last resort.
func findDownloadLink(page io.Reader, base *url.URL) string {
	tokenizer := html.NewTokenizer(page)
	fallback := ""
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return fallback
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			attrs := map[string]string{}
			for {
				key, val, more := tokenizer.TagAttr()
				attrs[string(key)] = string(val)
				if !more {
					break
				}
			}
			href := resolveHref(base, attrs["href"])
			if href == "" {
				continue
			}
			if attrs["aria-label"] == "Download file" || attrs["id"] == "downloadButton" {
				return href
			}
			if fallback == "" && isDownloadHost(href) {
				fallback = href
			}
		}
	}
}

func resolveHref(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || href == "#" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	return ref.String()
}

func isDownloadHost(link string) bool {
	parsed, err := url.Parse(link)
	if err != nil {
		return false
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.HasPrefix(host, "download") && strings.HasSuffix(host, ".mediafire.com")
}
