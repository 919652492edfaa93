package content

import (
	"crypto/sha1"
	"encoding/hex"
)

// ArticleID derives the canonical id for an article from its URL.
// The same URL always yields the same id, across runs and processes.
func ArticleID(url string) string {
	hash := sha1.Sum([]byte(url))
	return "rss:" + hex.EncodeToString(hash[:])
}

// VideoID derives the canonical id for a video from its platform video id.
func VideoID(videoID string) string {
	return "yt:" + videoID
}
