// Package discorderr classifies Discord REST failures.
//
// Missing permissions, missing access and unknown message/channel/member
// responses are expected in normal operation (a reply deleted before we could
// delete it, a guild that revoked a permission) and are safe to ignore.
// Everything else is unexpected and should propagate.
package discorderr

import (
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"
)

// Code returns the Discord JSON error code carried by err, or 0.
func Code(err error) int {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Message != nil {
		return rest.Message.Code
	}
	return 0
}

// Status returns the HTTP status of a REST failure, or 0.
func Status(err error) int {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return rest.Response.StatusCode
	}
	return 0
}

// Ignorable reports whether err is a Discord failure that callers may drop.
func Ignorable(err error) bool {
	if err == nil {
		return true
	}
	switch Code(err) {
	case discordgo.ErrCodeMissingPermissions,
		discordgo.ErrCodeMissingAccess,
		discordgo.ErrCodeUnknownMessage,
		discordgo.ErrCodeUnknownChannel,
		discordgo.ErrCodeUnknownMember,
		discordgo.ErrCodeCannotSendMessagesToThisUser:
		return true
	}
	switch Status(err) {
	case http.StatusForbidden, http.StatusNotFound:
		return true
	}
	return false
}

// TooLarge reports whether Discord rejected an upload for its size.
func TooLarge(err error) bool {
	return Code(err) == discordgo.ErrCodeRequestEntityTooLarge || Status(err) == http.StatusRequestEntityTooLarge
}
