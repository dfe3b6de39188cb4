// ABOUTME: Resolves a post's media URL into what the client should display.
// ABOUTME: Photos fall back to a placeholder; YouTube links become embed URLs.
package media

import (
	"net/url"
	"regexp"

	"github.com/2389-research/laulau/internal/models"
)

// PlaceholderImage is shown when a photo URL is unusable.
const PlaceholderImage = "https://placehold.co/600x400/1E293B/E2E8F0?text=Image+Not+Found"

var youtubeID = regexp.MustCompile(`(?:youtube\.com/(?:[^/]+/.+/|(?:v|e(?:mbed)?)/|.*[?&]v=)|youtu\.be/)([^"&?/\s]{11})`)

// Resolve returns the display URL for a post's media.
func Resolve(kind models.MediaKind, raw string) string {
	switch kind {
	case models.MediaVideo:
		if id := YouTubeID(raw); id != "" {
			return "https://www.youtube.com/embed/" + id
		}
		return raw
	default:
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return PlaceholderImage
		}
		return raw
	}
}

// YouTubeID extracts the 11-character video id, or "" if raw is not a YouTube link.
func YouTubeID(raw string) string {
	m := youtubeID.FindStringSubmatch(raw)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}
