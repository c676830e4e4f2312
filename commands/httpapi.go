package commands

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"emperror.dev/errors"
)

const maxAPIBody = 4 << 20

// checkResponse turns a failed API status into a message for the user.
func checkResponse(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusBadGateway:
		return Userf("The server is down or under maintenance, try again later.")
	case status == http.StatusNotFound:
		return Userf("The requested resource could not be found.")
	case status == http.StatusBadRequest:
		return Userf("The request was invalid.")
	case status == http.StatusUnauthorized:
		return Userf("The request requires authentication.")
	case status == http.StatusForbidden:
		return Userf("The request was forbidden.")
	case status >= 500:
		return Userf("The server returned an error (%d).", status)
	}
	return Userf("Something went wrong, try again later? \nStatus code: `%d`", status)
}

// getJSON fetches url and decodes the JSON body into dest.
func getJSON(ctx context.Context, client *http.Client, url string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "request")
	}
	defer resp.Body.Close()

	if err := checkResponse(resp.StatusCode); err != nil {
		return err
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAPIBody)).Decode(dest); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}
