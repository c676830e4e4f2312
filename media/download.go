package media

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/google/uuid"

	"github.com/tomasmach/fishie/metrics"
)

const (
	maxProxyBody    = 200 << 20
	proxyErrMessage = "Something went wrong, this was sent to the developers, sorry."
)

// File is a downloaded file. Path is set for files written to disk by yt-dlp,
// Data for files fetched into memory.
type File struct {
	Name string
	Path string
	Data []byte
}

// Open returns a reader over the file contents.
func (f File) Open() (io.ReadCloser, error) {
	if f.Path != "" {
		return os.Open(f.Path)
	}
	return io.NopCloser(bytes.NewReader(f.Data)), nil
}

// Bytes returns the file contents, reading from disk when needed.
func (f File) Bytes() ([]byte, error) {
	if f.Path != "" {
		return os.ReadFile(f.Path)
	}
	return f.Data, nil
}

// Request describes one download.
type Request struct {
	URL        string
	Format     string // mp4, mp3 or webm
	Title      string // file base name; random when empty
	TwitterGif bool
	// OnPicker is called before a multi-item Twitter post is downloaded.
	OnPicker func()
}

// Options configures a Downloader.
type Options struct {
	HTTPClient  *http.Client
	ProxyURL    string
	Dir         string
	Cookies     string
	YTDLP       string
	MaxFileSize int64
	Runner      Runner
	Logger      *slog.Logger
	// LitterboxURL is the paste host upload endpoint.
	LitterboxURL string
}

// Downloader fetches media through the download proxy or yt-dlp.
type Downloader struct {
	client   *http.Client
	proxyURL string
	dir      string
	cookies  string
	ytdlp    string
	maxSize  int64
	runner   Runner
	logger   *slog.Logger

	litterboxURL string
}

func New(opts Options) *Downloader {
	d := &Downloader{
		client:   opts.HTTPClient,
		proxyURL: opts.ProxyURL,
		dir:      opts.Dir,
		cookies:  opts.Cookies,
		ytdlp:    opts.YTDLP,
		maxSize:  opts.MaxFileSize,
		runner:   opts.Runner,
		logger:   opts.Logger,

		litterboxURL: opts.LitterboxURL,
	}
	if d.client == nil {
		d.client = &http.Client{Timeout: 5 * time.Minute}
	}
	if d.proxyURL == "" {
		d.proxyURL = "https://api.cobalt.tools/api/json"
	}
	if d.dir == "" {
		d.dir = "files/downloads"
	}
	if d.ytdlp == "" {
		d.ytdlp = "yt-dlp"
	}
	if d.maxSize == 0 {
		d.maxSize = 100 << 20
	}
	if d.runner == nil {
		d.runner = ExecRunner{}
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.litterboxURL == "" {
		d.litterboxURL = "https://litterbox.catbox.moe/resources/internals/api.php"
	}
	return d
}

// Dir returns the directory yt-dlp writes into.
func (d *Downloader) Dir() string { return d.dir }

// Download fetches every file behind req.URL.
func (d *Downloader) Download(ctx context.Context, req Request) ([]File, error) {
	if req.Format == "" {
		req.Format = "mp4"
	}
	if req.Title == "" {
		req.Title = randomName()
	}
	req.Title = sanitizeName(req.Title)

	if IsShortLink(req.URL) {
		resolved, err := d.Resolve(ctx, req.URL)
		if err != nil {
			d.logger.Debug("short link not resolved", "url", req.URL, "error", err)
		} else {
			req.URL = resolved
		}
	}

	site := Classify(req.URL)
	method := "ytdlp"
	files, err := func() ([]File, error) {
		switch {
		case site == YouTubeClip:
			return nil, ErrYouTubeClip
		case site == Instagram:
			f, err := d.ytDLP(ctx, req, d.cookies)
			if err != nil {
				return nil, err
			}
			return []File{f}, nil
		case usesProxy(site):
			method = "proxy"
			return d.viaProxy(ctx, req, site)
		default:
			f, err := d.ytDLP(ctx, req, "")
			if err != nil {
				return nil, err
			}
			return []File{f}, nil
		}
	}()

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.Downloads.WithLabelValues(method, outcome).Inc()
	return files, err
}

type proxyRequest struct {
	URL         string `json:"url"`
	VQuality    string `json:"vQuality"`
	IsAudioOnly bool   `json:"isAudioOnly"`
	VCodec      string `json:"vCodec"`
	TwitterGif  bool   `json:"twitterGif"`
}

type proxyResponse struct {
	Status string `json:"status"`
	URL    string `json:"url"`
	Error  string `json:"error"`
	Text   string `json:"text"`
	Picker []struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"picker"`
}

func (d *Downloader) viaProxy(ctx context.Context, req Request, site Site) ([]File, error) {
	raw, resp, err := d.callProxy(ctx, req)
	if err != nil {
		if raw != nil {
			return nil, d.proxyFailure(req, raw, resp, err)
		}
		return nil, errors.Wrap(err, "download proxy")
	}

	if site == Twitter && resp.Status == "picker" {
		if req.OnPicker != nil {
			req.OnPicker()
		}
		var files []File
		for _, item := range resp.Picker {
			if item.Type == "photo" {
				continue
			}
			ext := "mp4"
			if item.Type == "gif" {
				ext = "gif"
			}
			data, err := d.fetch(ctx, item.URL)
			if err != nil {
				return nil, d.proxyFailure(req, raw, resp, err)
			}
			files = append(files, File{Name: req.Title + "." + ext, Data: data})
		}
		return files, nil
	}

	if resp.URL == "" {
		return nil, d.proxyFailure(req, raw, resp, errors.Errorf("proxy returned status %q", resp.Status))
	}
	data, err := d.fetch(ctx, resp.URL)
	if err != nil {
		return nil, d.proxyFailure(req, raw, resp, err)
	}
	format := req.Format
	if site == Twitter && resp.Status == "stream" {
		format = "gif"
	}
	return []File{{Name: req.Title + "." + format, Data: data}}, nil
}

func (d *Downloader) callProxy(ctx context.Context, req Request) ([]byte, proxyResponse, error) {
	var resp proxyResponse
	body, err := json.Marshal(proxyRequest{
		URL:         req.URL,
		VQuality:    "max",
		IsAudioOnly: req.Format == "mp3",
		VCodec:      "h264",
		TwitterGif:  req.TwitterGif,
	})
	if err != nil {
		return nil, resp, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.proxyURL, bytes.NewReader(body))
	if err != nil {
		return nil, resp, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := d.client.Do(httpReq)
	if err != nil {
		return nil, resp, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, resp, err
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return raw, resp, errors.Wrap(err, "decode proxy response")
	}
	return raw, resp, nil
}

// proxyFailure builds the user-facing error for a failed proxy download,
// keeping the raw response so it can be forwarded to the operator.
func (d *Downloader) proxyFailure(req Request, raw []byte, resp proxyResponse, cause error) error {
	id := uuid.NewString()[:8]
	msg := resp.Error
	if msg == "" {
		msg = resp.Text
	}
	if msg == "" {
		msg = proxyErrMessage
	}
	d.logger.Warn("proxy download failed", "url", req.URL, "error_id", id, "error", cause)

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "    "); err != nil {
		pretty.Reset()
		pretty.Write(raw)
	}
	return &DownloadError{
		Message: capitalizeSentences(msg) + " Error ID: `" + id + "`",
		ID:      id,
		Detail:  pretty.Bytes(),
		Err:     cause,
	}
}

func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxProxyBody))
}

// Cleanup removes the on-disk files among files.
func (d *Downloader) Cleanup(files []File) {
	for _, f := range files {
		if f.Path == "" {
			continue
		}
		if err := os.Remove(f.Path); err != nil && !os.IsNotExist(err) {
			d.logger.Warn("failed to remove download", "path", f.Path, "error", err)
		}
	}
}

// SweepStale removes files in the download directory older than maxAge and
// returns how many were removed.
func (d *Downloader) SweepStale(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "read download dir")
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(d.dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

func randomName() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:11]
}

// sanitizeName keeps user supplied titles inside the download directory.
func sanitizeName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return randomName()
	}
	return name
}
