package media

import (
	"context"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/gocolly/colly"
)

var ErrNotTenor = &DownloadError{Message: "That is not a valid Tenor link."}

// TenorGIF scrapes a Tenor page for the URL of the actual GIF. A direct GIF
// URL is returned unchanged.
func (d *Downloader) TenorGIF(ctx context.Context, pageURL string) (string, error) {
	pageURL = strings.TrimSpace(pageURL)
	if IsTenorGIF(pageURL) {
		return pageURL, nil
	}
	if !tenorPageRE.MatchString(pageURL) {
		return "", ErrNotTenor
	}

	c := colly.NewCollector(
		colly.UserAgent("Mozilla/5.0 (compatible; fishie)"),
		colly.AllowURLRevisit(),
	)
	c.SetRequestTimeout(30 * time.Second)
	if d.client.Transport != nil {
		c.WithTransport(d.client.Transport)
	}

	var contentURL, ogImage string
	var scrapeErr error
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnHTML(`meta[itemprop="contentUrl"]`, func(e *colly.HTMLElement) {
		if u := e.Attr("content"); contentURL == "" && strings.HasSuffix(u, ".gif") {
			contentURL = u
		}
	})
	c.OnHTML(`meta[property="og:image"]`, func(e *colly.HTMLElement) {
		if ogImage == "" {
			ogImage = e.Attr("content")
		}
	})
	c.OnError(func(_ *colly.Response, err error) {
		scrapeErr = err
	})

	if err := c.Visit(pageURL); err != nil {
		return "", errors.Wrap(err, "visit tenor page")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if scrapeErr != nil {
		return "", errors.Wrap(scrapeErr, "scrape tenor page")
	}

	switch {
	case contentURL != "":
		return contentURL, nil
	case ogImage != "":
		return ogImage, nil
	}
	return "", ErrNotTenor
}

// FetchImage downloads url into memory.
func (d *Downloader) FetchImage(ctx context.Context, url string) ([]byte, error) {
	data, err := d.fetch(ctx, url)
	if err != nil {
		return nil, errors.Wrap(err, "fetch image")
	}
	return data, nil
}
