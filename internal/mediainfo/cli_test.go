package mediainfo

import "testing"

const mediaInfoSample = `{
  "media": {
    "track": [
      {
        "@type": "General",
        "Format": "Matroska",
        "FileSize": "4815162342",
        "Duration": "6134000.000"
      },
      {
        "@type": "Video",
        "Format": "HEVC",
        "Width": "1920",
        "Height": "1080"
      },
      {
        "@type": "Audio",
        "Format": "AC-3",
        "Channels": "6",
        "Language": "fr"
      },
      {
        "@type": "Audio",
        "Format": "DTS",
        "Format_Profile": "MA / Core",
        "Channels": "8",
        "Language": "eng"
      }
    ]
  }
}`

func TestParseMediaInfoJSON(t *testing.T) {
	info, err := parseMediaInfoJSON([]byte(mediaInfoSample))
	if err != nil {
		t.Fatalf("parseMediaInfoJSON failed: %v", err)
	}

	// General duration is in milliseconds
	if info.DurationSeconds != 6134 {
		t.Errorf("DurationSeconds = %v, want 6134", info.DurationSeconds)
	}
	if info.Container != "mkv" {
		t.Errorf("Container = %q, want mkv", info.Container)
	}
	if info.FileSize != 4815162342 {
		t.Errorf("FileSize = %d, want 4815162342", info.FileSize)
	}
	if info.VideoCodec != "x265" {
		t.Errorf("VideoCodec = %q, want x265", info.VideoCodec)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("dimensions = %dx%d, want 1920x1080", info.Width, info.Height)
	}
	if info.ResolutionLabel != "1080p" {
		t.Errorf("ResolutionLabel = %q, want 1080p", info.ResolutionLabel)
	}

	wantCodecs := []string{"AC3", "DTS-HD"}
	if len(info.AudioCodecs) != len(wantCodecs) {
		t.Fatalf("AudioCodecs = %v, want %v", info.AudioCodecs, wantCodecs)
	}
	for i, want := range wantCodecs {
		if info.AudioCodecs[i] != want {
			t.Errorf("AudioCodecs[%d] = %q, want %q", i, info.AudioCodecs[i], want)
		}
	}

	// Channels come from the first audio track
	if info.AudioChannels != "5.1" {
		t.Errorf("AudioChannels = %q, want 5.1", info.AudioChannels)
	}

	wantLangs := []string{"fr", "en"}
	if len(info.AudioLanguages) != len(wantLangs) {
		t.Fatalf("AudioLanguages = %v, want %v", info.AudioLanguages, wantLangs)
	}
	for i, want := range wantLangs {
		if info.AudioLanguages[i] != want {
			t.Errorf("AudioLanguages[%d] = %q, want %q", i, info.AudioLanguages[i], want)
		}
	}
}

const ffprobeSample = `{
  "format": {
    "format_name": "matroska,webm",
    "duration": "6134.217000",
    "size": "4815162342"
  },
  "streams": [
    {
      "codec_type": "video",
      "codec_name": "h264",
      "width": 3840,
      "height": 2160
    },
    {
      "codec_type": "audio",
      "codec_name": "eac3",
      "channels": 6,
      "tags": {"language": "fra"}
    }
  ]
}`

func TestParseFFprobeJSON(t *testing.T) {
	info, err := parseFFprobeJSON([]byte(ffprobeSample))
	if err != nil {
		t.Fatalf("parseFFprobeJSON failed: %v", err)
	}

	// ffprobe reports seconds directly
	if info.DurationSeconds < 6134 || info.DurationSeconds > 6135 {
		t.Errorf("DurationSeconds = %v, want ~6134", info.DurationSeconds)
	}
	if info.Container != "mkv" {
		t.Errorf("Container = %q, want mkv", info.Container)
	}
	if info.VideoCodec != "x264" {
		t.Errorf("VideoCodec = %q, want x264", info.VideoCodec)
	}
	if info.ResolutionLabel != "4K" {
		t.Errorf("ResolutionLabel = %q, want 4K", info.ResolutionLabel)
	}
	if len(info.AudioCodecs) != 1 || info.AudioCodecs[0] != "EAC3" {
		t.Errorf("AudioCodecs = %v, want [EAC3]", info.AudioCodecs)
	}
	if info.AudioChannels != "5.1" {
		t.Errorf("AudioChannels = %q, want 5.1", info.AudioChannels)
	}
	if len(info.AudioLanguages) != 1 || info.AudioLanguages[0] != "fr" {
		t.Errorf("AudioLanguages = %v, want [fr]", info.AudioLanguages)
	}
}

func TestMergeMediaInfo(t *testing.T) {
	probed := &MediaInfo{VideoCodec: "x265", DurationSeconds: 5400}
	hints := &MediaInfo{VideoCodec: "x264", ResolutionLabel: "1080p", Container: "mkv"}

	mergeMediaInfo(probed, hints)

	if probed.VideoCodec != "x265" {
		t.Errorf("probed codec overwritten: %q", probed.VideoCodec)
	}
	if probed.ResolutionLabel != "1080p" {
		t.Errorf("ResolutionLabel = %q, want hint filled in", probed.ResolutionLabel)
	}
	if probed.Container != "mkv" {
		t.Errorf("Container = %q, want hint filled in", probed.Container)
	}
	if probed.DurationSeconds != 5400 {
		t.Errorf("DurationSeconds = %v, want 5400", probed.DurationSeconds)
	}
}
