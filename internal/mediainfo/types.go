package mediainfo

import (
	"strings"

	"golang.org/x/text/language"
)

// MediaInfo holds probed media file information. Field values use the
// normalized vocabulary stored on catalog entities.
type MediaInfo struct {
	// Video
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	ResolutionLabel string `json:"resolutionLabel"`
	VideoCodec      string `json:"videoCodec"`

	// Audio, one entry per track in stream order
	AudioCodecs    []string `json:"audioCodecs"`
	AudioChannels  string   `json:"audioChannels"`
	AudioLanguages []string `json:"audioLanguages"`

	// Container
	Container       string  `json:"container"`
	DurationSeconds float64 `json:"durationSeconds"`
	FileSize        int64   `json:"fileSize"`
}

// VideoCodecMap maps raw codec names to the normalized catalog names.
// Container codec ids (avc1, hvc1, hev1) are listed explicitly so they
// never fall through to substring matching.
var VideoCodecMap = map[string]string{
	"hevc":   "x265",
	"h265":   "x265",
	"h.265":  "x265",
	"x265":   "x265",
	"hvc1":   "x265",
	"hev1":   "x265",
	"avc":    "x264",
	"h264":   "x264",
	"h.264":  "x264",
	"x264":   "x264",
	"avc1":   "x264",
	"av1":    "AV1",
	"vp9":    "VP9",
	"vp8":    "VP8",
	"mpeg2":  "MPEG2",
	"mpeg-2": "MPEG2",
	"vc1":    "VC-1",
	"vc-1":   "VC-1",
	"xvid":   "XviD",
	"divx":   "DivX",
}

// AudioCodecMap maps raw audio codec names to the normalized catalog names.
// DTS-HD MA collapses to DTS-HD.
var AudioCodecMap = map[string]string{
	"dts-hd ma":     "DTS-HD",
	"dts-hd master": "DTS-HD",
	"dts-hd":        "DTS-HD",
	"dts":           "DTS",
	"truehd":        "TrueHD",
	"dolby truehd":  "TrueHD",
	"e-ac-3":        "EAC3",
	"eac3":          "EAC3",
	"ec-3":          "EAC3",
	"ac3":           "AC3",
	"ac-3":          "AC3",
	"dolby digital": "AC3",
	"aac":           "AAC",
	"he-aac":        "AAC",
	"flac":          "FLAC",
	"opus":          "Opus",
	"mp3":           "MP3",
	"mpeg audio":    "MP3",
	"pcm":           "PCM",
	"vorbis":        "Vorbis",
}

// containerMap maps probe container names to short catalog names.
var containerMap = map[string]string{
	"matroska": "mkv",
	"mpeg-4":   "mp4",
	"mp4":      "mp4",
	"avi":      "avi",
	"webm":     "webm",
	"quicktime": "mov",
}

// NormalizeVideoCodec normalizes a video codec name to its catalog form.
func NormalizeVideoCodec(codec string) string {
	lower := normalizeString(codec)
	if lower == "" {
		return ""
	}

	if normalized, ok := VideoCodecMap[lower]; ok {
		return normalized
	}

	// Encoder signatures inside longer strings ("V_MPEGH/ISO/HEVC").
	// Longest key wins so the match is deterministic.
	best := ""
	bestLen := 0
	for key, value := range VideoCodecMap {
		if strings.Contains(lower, key) && len(key) > bestLen {
			best = value
			bestLen = len(key)
		}
	}
	if best != "" {
		return best
	}

	return codec
}

// NormalizeAudioCodec normalizes an audio codec name to its catalog form.
func NormalizeAudioCodec(codec string) string {
	lower := normalizeString(codec)
	if lower == "" {
		return ""
	}

	if normalized, ok := AudioCodecMap[lower]; ok {
		return normalized
	}

	// Longest keys first so "dts-hd ma" wins over "dts"
	best := ""
	bestLen := 0
	for key, value := range AudioCodecMap {
		if strings.Contains(lower, key) && len(key) > bestLen {
			best = value
			bestLen = len(key)
		}
	}
	if best != "" {
		return best
	}

	return codec
}

// NormalizeContainer maps a probe container name to its short form.
func NormalizeContainer(name string) string {
	lower := normalizeString(name)
	if short, ok := containerMap[lower]; ok {
		return short
	}
	// ffprobe reports comma lists like "mov,mp4,m4a,3gp,3g2,mj2"
	for _, part := range strings.Split(lower, ",") {
		if short, ok := containerMap[strings.TrimSpace(part)]; ok {
			return short
		}
	}
	return lower
}

// FormatChannels converts a channel count into the usual layout label.
// 6 channels is 5.1 and 8 channels is 7.1.
func FormatChannels(channels int, layout string) string {
	l := normalizeString(layout)
	switch {
	case strings.Contains(l, "7.1"):
		return "7.1"
	case strings.Contains(l, "5.1"):
		return "5.1"
	case strings.Contains(l, "stereo") || strings.Contains(l, "2.0"):
		return "2.0"
	case strings.Contains(l, "mono"):
		return "1.0"
	}

	switch {
	case channels >= 8:
		return "7.1"
	case channels >= 6:
		return "5.1"
	case channels >= 2:
		return "2.0"
	case channels == 1:
		return "1.0"
	default:
		return ""
	}
}

// ResolutionLabel buckets frame dimensions into SD, 720p, 1080p or 4K.
// Both dimensions are considered because scope encodes crop height.
func ResolutionLabel(width, height int) string {
	switch {
	case width >= 3000 || height >= 1600:
		return "4K"
	case width >= 1800 || height >= 1000:
		return "1080p"
	case width >= 1200 || height >= 700:
		return "720p"
	case width > 0 || height > 0:
		return "SD"
	default:
		return ""
	}
}

// iso639Bibliographic maps ISO 639-2/B codes that x/text cannot parse
// onto their 639-1 equivalents.
var iso639Bibliographic = map[string]string{
	"fre": "fr",
	"ger": "de",
	"dut": "nl",
	"gre": "el",
	"chi": "zh",
	"cze": "cs",
	"per": "fa",
	"rum": "ro",
	"slo": "sk",
	"ice": "is",
	"arm": "hy",
	"geo": "ka",
	"mac": "mk",
	"may": "ms",
	"alb": "sq",
	"baq": "eu",
	"bur": "my",
	"wel": "cy",
}

// NormalizeLanguage converts a track language tag to ISO 639-1 where one
// exists. Unknown and undetermined tags yield the empty string.
func NormalizeLanguage(code string) string {
	code = normalizeString(code)
	if code == "" || code == "und" {
		return ""
	}
	if mapped, ok := iso639Bibliographic[code]; ok {
		return mapped
	}
	tag, err := language.Parse(code)
	if err != nil {
		if len(code) > 2 {
			return code[:2]
		}
		return code
	}
	base, _ := tag.Base()
	return base.String()
}

// normalizeString lowercases and trims a string.
func normalizeString(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
