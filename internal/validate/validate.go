// Package validate classifies short-video URLs into supported platforms and
// extracts their video ids.
package validate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/savx/savxbot/internal/model"
)

// Result is the outcome of validating a URL.
type Result struct {
	Valid        bool
	Platform     model.Platform
	VideoID      string
	ErrorMessage string
}

var youtubeShortsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]+)`),
}

var tiktokPatterns = []*regexp.Regexp{
	regexp.MustCompile(`tiktok\.com/@[\w.-]+/video/(\d+)`),
	regexp.MustCompile(`tiktok\.com/.*\?.*v=(\d+)`),
	regexp.MustCompile(`vm\.tiktok\.com/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`vt\.tiktok\.com/([a-zA-Z0-9]+)`),
}

// Validator classifies video URLs. The zero value is ready to use.
type Validator struct{}

// NewValidator creates a new URL validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks whether the URL points to a supported video platform and
// extracts the video id. Short-link domains (youtu.be, vm/vt.tiktok.com) are
// assumed to carry short-video content without confirming it.
func (v *Validator) Validate(rawURL string) Result {
	if rawURL == "" {
		return Result{
			Platform:     model.PlatformUnsupported,
			ErrorMessage: "URL must be a non-empty string",
		}
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Result{
			Platform:     model.PlatformUnsupported,
			ErrorMessage: "invalid URL format",
		}
	}

	platform := v.PlatformOf(rawURL)
	if platform == model.PlatformUnsupported {
		return Result{
			Platform:     model.PlatformUnsupported,
			ErrorMessage: "unsupported platform, only YouTube Shorts and TikTok are supported",
		}
	}

	videoID := v.extractVideoID(rawURL, platform)
	if videoID == "" {
		return Result{
			Platform:     platform,
			ErrorMessage: "could not extract video id from " + string(platform) + " URL",
		}
	}

	return Result{
		Valid:    true,
		Platform: platform,
		VideoID:  videoID,
	}
}

// PlatformOf determines the platform from the URL alone.
func (v *Validator) PlatformOf(rawURL string) model.Platform {
	lower := strings.ToLower(rawURL)

	if strings.Contains(lower, "youtube.com/shorts") || strings.Contains(lower, "youtu.be") {
		return model.PlatformYouTubeShorts
	}

	if strings.Contains(lower, "tiktok.com") {
		return model.PlatformTikTok
	}

	return model.PlatformUnsupported
}

func (v *Validator) extractVideoID(rawURL string, platform model.Platform) string {
	switch platform {
	case model.PlatformYouTubeShorts:
		return extractYouTubeID(rawURL)
	case model.PlatformTikTok:
		return extractTikTokID(rawURL)
	}
	return ""
}

func extractYouTubeID(rawURL string) string {
	for _, pattern := range youtubeShortsPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}

	// Fall back to the v query parameter.
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Query().Get("v")
}

func extractTikTokID(rawURL string) string {
	for _, pattern := range tiktokPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}

	// Fall back to a long numeric path segment, TikTok video ids are long
	// numbers.
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	for _, part := range strings.Split(parsed.Path, "/") {
		if len(part) > 10 && isDigits(part) {
			return part
		}
	}

	return ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
