package media

import (
	"strings"
	"unicode"
)

// DownloadError is a download failure whose message is shown to the user as is.
// ID and Detail are set when the raw failure was captured for the operator.
type DownloadError struct {
	Message string
	ID      string
	Detail  []byte
	Err     error
}

func (e *DownloadError) Error() string { return e.Message }

func (e *DownloadError) Unwrap() error { return e.Err }

var (
	ErrInvalidWebsite = &DownloadError{Message: "Unaccepted website. Only Twitter, TikTok, Twitch, Instagram, YouTube, " +
		"Reddit and Soundcloud are accepted right now. If you want to suggest another website join the " +
		"support server and let us know."}
	ErrVideoIsLive     = &DownloadError{Message: "You are not allowed to download live videos."}
	ErrYouTubeClip     = &DownloadError{Message: "Youtube clips are not supported at the moment, sorry."}
	ErrNothingReturned = &DownloadError{Message: "Nothing was downloaded, the file is probably larger than 100MB."}
)

// capitalizeSentences lower-cases text, then upper-cases the first letter of
// every sentence.
func capitalizeSentences(text string) string {
	runes := []rune(strings.ToLower(text))
	upper := true
	for i, r := range runes {
		switch {
		case upper && !unicode.IsSpace(r):
			runes[i] = unicode.ToUpper(r)
			upper = false
		case r == '.' || r == '!' || r == '?':
			if i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
				upper = true
			}
		}
	}
	return string(runes)
}
