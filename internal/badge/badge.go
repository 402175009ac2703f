// Package badge is the outbound boundary to the visual count indicator. The
// host environment renders it; the core only pushes text and color.
package badge

import (
	"context"
	"errors"
	"strconv"

	"github.com/rs/zerolog/log"
)

// ErrSessionInvalid is returned by host implementations when the session id
// no longer refers to an active page. Callers treat it as a signal to drop
// the update, never as fatal.
var ErrSessionInvalid = errors.New("session no longer has an active page")

// Badge colors.
const (
	ColorMatch = "#1E8E3E"
	ColorNone  = "#9AA0A6"
)

// Badge is the capability interface for the badge collaborator.
type Badge interface {
	SetText(ctx context.Context, sessionID, text string) error
	SetColor(ctx context.Context, sessionID, color string) error
}

// Text formats a match count for display. Zero or unavailable counts render
// as empty text; large counts are capped at "99+".
func Text(count int) string {
	if count <= 0 {
		return ""
	}
	if count > 99 {
		return "99+"
	}
	return strconv.Itoa(count)
}

// Color returns the badge color for a count.
func Color(count int) string {
	if count > 0 {
		return ColorMatch
	}
	return ColorNone
}

// LogBadge is a Badge that only logs updates. It stands in for the host
// badge surface in CLI runs and tests.
type LogBadge struct{}

// SetText implements Badge.
func (LogBadge) SetText(_ context.Context, sessionID, text string) error {
	log.Debug().Str("session", sessionID).Str("text", text).Msg("Badge text updated")
	return nil
}

// SetColor implements Badge.
func (LogBadge) SetColor(_ context.Context, sessionID, color string) error {
	log.Debug().Str("session", sessionID).Str("color", color).Msg("Badge color updated")
	return nil
}
