package mediainfo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// findExecutable finds an executable by name or explicit path.
func findExecutable(name, explicitPath string) string {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err == nil {
			return explicitPath
		}
	}

	// Try PATH lookup
	if path, err := exec.LookPath(name); err == nil {
		return path
	}

	// Platform-specific common locations
	var commonPaths []string
	switch runtime.GOOS {
	case "darwin":
		commonPaths = []string{
			"/usr/local/bin/" + name,
			"/opt/homebrew/bin/" + name,
		}
	case "linux":
		commonPaths = []string{
			"/usr/bin/" + name,
			"/usr/local/bin/" + name,
		}
	case "windows":
		commonPaths = []string{
			`C:\Program Files\MediaInfo\` + name + ".exe",
			`C:\Program Files (x86)\MediaInfo\` + name + ".exe",
		}
	}

	for _, p := range commonPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// probeWithMediaInfo extracts info using the mediainfo CLI.
func (s *Service) probeWithMediaInfo(ctx context.Context, path, binaryPath string) (*MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath, "--Output=JSON", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("mediainfo failed: %w: %s", err, stderr.String())
	}

	return parseMediaInfoJSON(stdout.Bytes())
}

// probeWithFFprobe extracts info using the ffprobe CLI.
func (s *Service) probeWithFFprobe(ctx context.Context, path, binaryPath string) (*MediaInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, stderr.String())
	}

	return parseFFprobeJSON(stdout.Bytes())
}

// mediaInfoOutput represents the JSON output from mediainfo.
type mediaInfoOutput struct {
	Media struct {
		Track []mediaInfoTrack `json:"track"`
	} `json:"media"`
}

type mediaInfoTrack struct {
	Type          string `json:"@type"`
	Format        string `json:"Format"`
	FormatProfile string `json:"Format_Profile"`
	CodecID       string `json:"CodecID"`
	Width         string `json:"Width"`
	Height        string `json:"Height"`
	Channels      string `json:"Channels"`
	ChannelLayout string `json:"ChannelLayout"`
	Language      string `json:"Language"`
	Duration      string `json:"Duration"`
	FileSize      string `json:"FileSize"`
}

// parseMediaInfoJSON parses mediainfo JSON output. The General track
// reports duration in milliseconds; everything downstream works in
// seconds, so the conversion happens here and nowhere else.
func parseMediaInfoJSON(data []byte) (*MediaInfo, error) {
	var output mediaInfoOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("failed to parse mediainfo output: %w", err)
	}

	info := &MediaInfo{}
	var firstVideo, firstAudio bool

	for _, track := range output.Media.Track {
		switch track.Type {
		case "General":
			info.Container = NormalizeContainer(track.Format)
			if track.FileSize != "" {
				if size, err := strconv.ParseInt(track.FileSize, 10, 64); err == nil {
					info.FileSize = size
				}
			}
			if track.Duration != "" {
				if ms, err := strconv.ParseFloat(track.Duration, 64); err == nil {
					info.DurationSeconds = ms / 1000
				}
			}

		case "Video":
			if firstVideo {
				continue
			}
			firstVideo = true

			info.VideoCodec = NormalizeVideoCodec(track.Format)
			if track.CodecID != "" && info.VideoCodec == track.Format {
				info.VideoCodec = NormalizeVideoCodec(track.CodecID)
			}

			if w, err := parseInt(track.Width); err == nil {
				info.Width = w
			}
			if h, err := parseInt(track.Height); err == nil {
				info.Height = h
			}
			info.ResolutionLabel = ResolutionLabel(info.Width, info.Height)

		case "Audio":
			codec := track.Format
			if strings.Contains(strings.ToLower(track.FormatProfile), "ma") && strings.EqualFold(track.Format, "dts") {
				codec = "DTS-HD MA"
			}
			info.AudioCodecs = append(info.AudioCodecs, NormalizeAudioCodec(codec))

			if !firstAudio {
				firstAudio = true
				channels, _ := parseInt(track.Channels)
				info.AudioChannels = FormatChannels(channels, track.ChannelLayout)
			}

			if lang := NormalizeLanguage(track.Language); lang != "" {
				info.AudioLanguages = append(info.AudioLanguages, lang)
			}
		}
	}

	return info, nil
}

// ffprobeOutput represents the JSON output from ffprobe.
type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

type ffprobeStream struct {
	CodecType     string      `json:"codec_type"`
	CodecName     string      `json:"codec_name"`
	Profile       string      `json:"profile"`
	Width         int         `json:"width"`
	Height        int         `json:"height"`
	Channels      int         `json:"channels"`
	ChannelLayout string      `json:"channel_layout"`
	Tags          ffprobeTags `json:"tags"`
}

type ffprobeTags struct {
	Language string `json:"language"`
}

// parseFFprobeJSON parses ffprobe JSON output. ffprobe reports duration
// in seconds already.
func parseFFprobeJSON(data []byte) (*MediaInfo, error) {
	var output ffprobeOutput
	if err := json.Unmarshal(data, &output); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &MediaInfo{}
	var firstVideo, firstAudio bool

	info.Container = NormalizeContainer(output.Format.FormatName)
	if output.Format.Size != "" {
		if size, err := strconv.ParseInt(output.Format.Size, 10, 64); err == nil {
			info.FileSize = size
		}
	}
	if output.Format.Duration != "" {
		if seconds, err := strconv.ParseFloat(output.Format.Duration, 64); err == nil {
			info.DurationSeconds = seconds
		}
	}

	for _, stream := range output.Streams {
		switch stream.CodecType {
		case "video":
			if firstVideo {
				continue
			}
			firstVideo = true

			info.VideoCodec = NormalizeVideoCodec(stream.CodecName)
			info.Width = stream.Width
			info.Height = stream.Height
			info.ResolutionLabel = ResolutionLabel(info.Width, info.Height)

		case "audio":
			codec := stream.CodecName
			if strings.EqualFold(codec, "dts") && strings.Contains(strings.ToLower(stream.Profile), "ma") {
				codec = "DTS-HD MA"
			}
			info.AudioCodecs = append(info.AudioCodecs, NormalizeAudioCodec(codec))

			if !firstAudio {
				firstAudio = true
				info.AudioChannels = FormatChannels(stream.Channels, stream.ChannelLayout)
			}

			if lang := NormalizeLanguage(stream.Tags.Language); lang != "" {
				info.AudioLanguages = append(info.AudioLanguages, lang)
			}
		}
	}

	return info, nil
}

// parseInt parses an int from a string, ignoring non-numeric suffixes
// like "1920 pixels".
func parseInt(s string) (int, error) {
	s = strings.TrimSpace(s)
	for i, c := range s {
		if c < '0' || c > '9' {
			s = s[:i]
			break
		}
	}
	return strconv.Atoi(s)
}
