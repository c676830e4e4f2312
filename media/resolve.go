package media

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"emperror.dev/errors"
	"golang.org/x/net/html"
)

const maxPageBytes = 2 << 20 // 2 MB

// IsShortLink reports whether raw is a short link that redirects to a
// canonical TikTok or Pinterest URL.
func IsShortLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Host) {
	case "vm.tiktok.com", "vt.tiktok.com", "pin.it":
		return true
	}
	return false
}

// Resolve follows the redirects of a short link and returns the canonical URL
// of the page it lands on.
func (d *Downloader) Resolve(ctx context.Context, raw string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return "", errors.Wrap(err, "invalid URL")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; fishie)")
	req.Header.Set("Accept", "text/html")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "follow short link")
	}
	defer resp.Body.Close()

	final := resp.Request.URL.String()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return final, nil
	}

	meta := pageMeta(io.LimitReader(resp.Body, maxPageBytes))
	for _, key := range []string{"canonical", "og:url"} {
		if v := meta[key]; v != "" {
			if u, err := resp.Request.URL.Parse(v); err == nil {
				return u.String(), nil
			}
		}
	}
	return final, nil
}

// pageMeta collects the OpenGraph meta properties and the canonical link of
// an HTML document. Parsing stops at </head>.
func pageMeta(r io.Reader) map[string]string {
	meta := make(map[string]string)
	tokenizer := html.NewTokenizer(r)
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return meta

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := tokenizer.Token()
			switch tok.Data {
			case "meta":
				prop, content := attr(tok, "property"), attr(tok, "content")
				if strings.HasPrefix(prop, "og:") && content != "" {
					if _, seen := meta[prop]; !seen {
						meta[prop] = content
					}
				}
			case "link":
				if attr(tok, "rel") == "canonical" {
					meta["canonical"] = attr(tok, "href")
				}
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return meta
			}
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
