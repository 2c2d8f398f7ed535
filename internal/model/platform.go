package model

// Platform is the classified source site of a requested video.
type Platform string

const (
	PlatformYouTubeShorts Platform = "youtube_shorts"
	PlatformTikTok        Platform = "tiktok"
	PlatformUnsupported   Platform = "unsupported"
)
