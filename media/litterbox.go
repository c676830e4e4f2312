package media

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"emperror.dev/errors"
)

// ErrUploadRejected is returned when the paste host refuses a file.
var ErrUploadRejected = &DownloadError{Message: "File too large."}

// UploadTemporary uploads f to the litterbox paste host, where it is kept
// for 72 hours, and returns its URL.
func (d *Downloader) UploadTemporary(ctx context.Context, f File) (string, error) {
	data, err := f.Bytes()
	if err != nil {
		return "", errors.Wrap(err, "read upload")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("fileToUpload", f.Name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := w.WriteField("reqtype", "fileupload"); err != nil {
		return "", err
	}
	if err := w.WriteField("time", "72h"); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.litterboxURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "upload to litterbox")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", ErrUploadRejected
	}
	text, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", errors.Wrap(err, "read litterbox response")
	}
	return strings.TrimSpace(string(text)), nil
}
