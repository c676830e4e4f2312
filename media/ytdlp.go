package media

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"emperror.dev/errors"
)

// Runner runs an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), errors.Wrapf(err, "%s: %s", name, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

type videoInfo struct {
	LiveStatus string `json:"live_status"`
	IsLive     bool   `json:"is_live"`
}

// ytDLP downloads through the yt-dlp binary. cookies is a cookies file path
// or "".
func (d *Downloader) ytDLP(ctx context.Context, req Request, cookies string) (File, error) {
	video, site, ok := FindVideo(req.URL)
	if !ok {
		return File{}, ErrInvalidWebsite
	}

	common := []string{"--no-playlist", "--quiet"}
	if cookies != "" {
		common = append(common, "--cookies", cookies)
	}

	probe, err := d.runner.Run(ctx, d.ytdlp, append(append([]string{}, common...), "--dump-single-json", "--skip-download", video)...)
	if err != nil {
		return File{}, &DownloadError{Message: "Could not find a video at that link.", Err: err}
	}
	var info videoInfo
	if err := json.Unmarshal(probe, &info); err != nil {
		return File{}, errors.Wrap(err, "decode yt-dlp info")
	}
	if info.IsLive || info.LiveStatus == "is_live" {
		return File{}, ErrVideoIsLive
	}

	format := req.Format
	args := append([]string{}, common...)
	args = append(args,
		"--max-filesize", strconv.FormatInt(d.maxSize, 10),
		"-o", filepath.Join(d.dir, req.Title+".%(ext)s"),
	)
	if site == SoundCloud || format == "mp3" {
		format = "mp3"
		args = append(args, "-f", "bestaudio/best", "-x", "--audio-format", "mp3", "--audio-quality", "192K")
	} else {
		args = append(args, "-f", "bestvideo+bestaudio[ext="+format+"]/best", "--merge-output-format", format)
	}
	args = append(args, video)

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return File{}, errors.Wrap(err, "create download dir")
	}
	if _, err := d.runner.Run(ctx, d.ytdlp, args...); err != nil {
		return File{}, &DownloadError{Message: "Failed to download the video.", Err: err}
	}

	name := req.Title + "." + format
	path := filepath.Join(d.dir, name)
	if _, err := os.Stat(path); err != nil {
		return File{}, ErrNothingReturned
	}
	return File{Name: name, Path: path}, nil
}
