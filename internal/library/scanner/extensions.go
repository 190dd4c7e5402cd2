package scanner

import (
	"path/filepath"
	"strings"
)

// VideoExtensions contains the container extensions the scanner ingests.
var VideoExtensions = map[string]bool{
	".mkv":  true,
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".m4v":  true,
	".webm": true,
	".mpg":  true,
	".mpeg": true,
	".wmv":  true,
	".flv":  true,
	".ts":   true,
}

// JunkNameIndicators mark undersized files that are almost certainly not
// a feature: samples, trailers and bonus material.
var JunkNameIndicators = []string{
	"sample",
	"trailer",
	"extras",
	"bonus",
	"featurette",
}

// IsVideoFile checks if a filename has a video extension.
func IsVideoFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return VideoExtensions[ext]
}

// IsJunkName checks if a filename indicates sample or bonus material.
// Only consulted for files below the minimum size, a full-size file
// keeps its name.
func IsJunkName(filename string) bool {
	lower := strings.ToLower(filename)
	for _, indicator := range JunkNameIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
