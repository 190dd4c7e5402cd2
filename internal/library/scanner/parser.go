package scanner

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// MediaType classifies a scanned file.
type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeSeries  MediaType = "series"
	MediaTypeUnknown MediaType = "unknown"
)

// ParsedFilename is the structured reading of a release name. Type is
// the parser's own view of the filename; directory intent is tracked
// separately by the scanner.
type ParsedFilename struct {
	Title      string
	Year       int
	Season     int
	SeasonEnd  int // multi-season packs (S01-S04)
	Episode    int
	EpisodeEnd int // multi-episode files (S01E02E03, S01E02-04)
	Type       MediaType
	SeasonPack bool // season or complete-series pack without an episode number
	Stacked    bool // one part of a split movie (CD1, Part 2)
	StackPart  string
	Quality    string // "720p", "1080p", "2160p"
	Source     string // "BluRay", "WEB-DL", ...
	Codec      string // "x264", "x265", ...
}

// Regex patterns for parsing. The title prefix on the episode pattern is
// optional: season folders commonly hold files named "S01E05 - Title".
var (
	// Show.S01E02, S01E02 - Title, Show.S01E02E03, Show.S01E02-04
	tvPatternSE = regexp.MustCompile(`(?i)^(?:(.+?)[\.\s_-]+)?s(\d{1,2})[\.\s_-]?e(\d{1,3})(?:[\.\s_-]?(?:e|-e?)(\d{1,3}))?(?:[\.\s_-]+(.*))?$`)

	// Show.1x02
	tvPatternX = regexp.MustCompile(`(?i)^(.+?)[\.\s_-]+(\d{1,2})x(\d{1,3})(?:[\.\s_-]+(.*))?$`)

	// Show.S01-S04 (multi-season boxsets)
	tvPatternSeasonRange = regexp.MustCompile(`(?i)^(.+?)[\.\s_-]+s(\d{1,2})-s?(\d{1,2})(?:[\.\s_-]+(.*))?$`)

	// Show.S01 (season pack, no episode number)
	tvPatternSeasonPack = regexp.MustCompile(`(?i)^(.+?)[\.\s_-]+s(\d{1,2})(?:[\.\s_-]+(.*))?$`)

	// Show.Season.1 or Show.Saison.2
	tvPatternSeasonSpelled = regexp.MustCompile(`(?i)^(.+?)[\.\s_-]+(?:season|saison)[\.\s_-]+(\d{1,2})(?:[\.\s_-]+(.*))?$`)

	// Show.COMPLETE or Show.Complete.Series
	tvPatternComplete = regexp.MustCompile(`(?i)^(.+?)[\.\s_-]+complete(?:[\.\s_-]+series)?(?:[\.\s_-]+(.*))?$`)

	// Episode 5, Ep.3, E01 as the whole name; season comes from the directory
	tvPatternBareEpisode = regexp.MustCompile(`(?i)^(?:episode|ep|e)[\.\s_-]*(\d{1,3})(?:[\.\s_-]+(.*))?$`)

	// Title (Year)
	moviePatternParen = regexp.MustCompile(`^(.+?)\s*\(((?:19|20)\d{2})\)[\.\s_-]*(.*)$`)

	// Year token inside a dotted name. Boundaries are checked by hand so
	// every candidate in "Blade.Runner.2049.2017" is seen and the last
	// valid one wins.
	yearToken = regexp.MustCompile(`(?:19|20)\d{2}`)

	// Trailing year on an episode-pattern prefix: "Show.2008", "Show (2008)"
	prefixYear = regexp.MustCompile(`^(.+?)[\.\s_-]*[\(\[]?((?:19|20)\d{2})[\)\]]?$`)

	// Season directory names: "Season 2", "Saison 02", "S02"
	seasonDirPattern = regexp.MustCompile(`(?i)^(?:season|saison|s)[\.\s_-]*(\d{1,2})$`)

	// Split-movie markers in the post-year segment: CD1, Part.2, pta
	stackAfterYear = regexp.MustCompile(`(?i)(?:^|[\.\s_-])(cd|dvd|disc|disk|part|pt)[\.\s_-]?(\d{1,2}|[a-d])(?:[\.\s_-]|$)`)

	// Without a year only an explicit disc marker at the very end counts;
	// "part" appears in too many real titles.
	stackAtEnd = regexp.MustCompile(`(?i)[\.\s_-](cd|disc|disk)[\.\s_-]?(\d{1,2})$`)

	// Titles that name an episode rather than a series
	episodeScopedTitle = regexp.MustCompile(`(?i)^(?:episode|ep|chapter|chapitre|partie|part)[\.\s_-]*\d*$`)

	bracketGroup   = regexp.MustCompile(`\[[^\]]*\]`)
	cleanupPattern = regexp.MustCompile(`[\.\s_-]+`)
)

// ParseFilename parses a release name into structured data. Names with
// no year and no episode structure come back as MediaTypeUnknown; the
// directory intent decides for them.
func ParseFilename(filename string) ParsedFilename {
	ext := filepath.Ext(filename)
	name := strings.TrimSuffix(filename, ext)

	parsed := ParsedFilename{Type: MediaTypeUnknown}

	if m := tvPatternSE.FindStringSubmatch(name); m != nil {
		parsed.Type = MediaTypeSeries
		parsed.Title, parsed.Year = splitPrefixYear(m[1])
		parsed.Season, _ = strconv.Atoi(m[2])
		parsed.Episode, _ = strconv.Atoi(m[3])
		if m[4] != "" {
			if end, _ := strconv.Atoi(m[4]); end > parsed.Episode {
				parsed.EpisodeEnd = end
			}
		}
		parseTechHints(m[5], &parsed)
		return parsed
	}

	if m := tvPatternX.FindStringSubmatch(name); m != nil {
		parsed.Type = MediaTypeSeries
		parsed.Title, parsed.Year = splitPrefixYear(m[1])
		parsed.Season, _ = strconv.Atoi(m[2])
		parsed.Episode, _ = strconv.Atoi(m[3])
		parseTechHints(m[4], &parsed)
		return parsed
	}

	if m := tvPatternSeasonRange.FindStringSubmatch(name); m != nil {
		parsed.Type = MediaTypeSeries
		parsed.SeasonPack = true
		parsed.Title, parsed.Year = splitPrefixYear(m[1])
		parsed.Season, _ = strconv.Atoi(m[2])
		if end, _ := strconv.Atoi(m[3]); end > parsed.Season {
			parsed.SeasonEnd = end
		}
		parseTechHints(m[4], &parsed)
		return parsed
	}

	if m := tvPatternSeasonPack.FindStringSubmatch(name); m != nil {
		parsed.Type = MediaTypeSeries
		parsed.SeasonPack = true
		parsed.Title, parsed.Year = splitPrefixYear(m[1])
		parsed.Season, _ = strconv.Atoi(m[2])
		parseTechHints(m[3], &parsed)
		return parsed
	}

	if m := tvPatternSeasonSpelled.FindStringSubmatch(name); m != nil {
		parsed.Type = MediaTypeSeries
		parsed.SeasonPack = true
		parsed.Title, parsed.Year = splitPrefixYear(m[1])
		parsed.Season, _ = strconv.Atoi(m[2])
		parseTechHints(m[3], &parsed)
		return parsed
	}

	if m := tvPatternComplete.FindStringSubmatch(name); m != nil {
		parsed.Type = MediaTypeSeries
		parsed.SeasonPack = true
		parsed.Title, parsed.Year = splitPrefixYear(m[1])
		parseTechHints(m[2], &parsed)
		return parsed
	}

	if m := tvPatternBareEpisode.FindStringSubmatch(name); m != nil {
		parsed.Type = MediaTypeSeries
		parsed.Episode, _ = strconv.Atoi(m[1])
		parseTechHints(m[2], &parsed)
		return parsed
	}

	if m := moviePatternParen.FindStringSubmatch(name); m != nil {
		parsed.Type = MediaTypeMovie
		parsed.Title = cleanTitle(m[1])
		parsed.Year, _ = strconv.Atoi(m[2])
		parseTechHints(m[3], &parsed)
		markStacked(&parsed, m[3], true)
		return parsed
	}

	if title, rest, year := splitLastYear(name); year != 0 {
		parsed.Type = MediaTypeMovie
		parsed.Title = cleanTitle(title)
		parsed.Year = year
		parseTechHints(rest, &parsed)
		markStacked(&parsed, rest, true)
		return parsed
	}

	// No structural evidence: keep what reads like a title, note hints.
	parsed.Title = cleanTitle(cutAtTechToken(name))
	parseTechHints(name, &parsed)
	markStacked(&parsed, name, false)
	return parsed
}

// ParsePath parses a file path, using the directory chain to fill what
// the filename alone cannot: the season from a "Season NN" folder, the
// series title when the file-level title is episode-scoped, and the
// movie title/year from a "Title (Year)" folder. root marks the scanned
// tree; its own name never contributes.
func ParsePath(root, fullPath string) ParsedFilename {
	parsed := ParseFilename(filepath.Base(fullPath))
	fileHadSeriesMarkers := parsed.Type == MediaTypeSeries

	dir := filepath.Dir(fullPath)
	underSeasonDir := false
	if m := seasonDirPattern.FindStringSubmatch(filepath.Base(dir)); m != nil && !sameDir(dir, root) {
		underSeasonDir = true
		if parsed.Season == 0 {
			parsed.Season, _ = strconv.Atoi(m[1])
		}
		if parsed.Type == MediaTypeUnknown {
			parsed.Type = MediaTypeSeries
		}
		dir = filepath.Dir(dir)
	}

	if sameDir(dir, root) || dir == "." || dir == string(filepath.Separator) {
		return parsed
	}
	parentName := filepath.Base(dir)

	switch parsed.Type {
	case MediaTypeSeries:
		dirParsed := ParseFilename(parentName)
		episodeScoped := parsed.Title == "" ||
			episodeScopedTitle.MatchString(parsed.Title) ||
			(underSeasonDir && !fileHadSeriesMarkers)
		switch {
		case episodeScoped:
			if dirParsed.Title != "" {
				parsed.Title = dirParsed.Title
			}
			if parsed.Year == 0 {
				parsed.Year = dirParsed.Year
			}
			if parsed.Season == 0 && dirParsed.Season > 0 {
				parsed.Season = dirParsed.Season
			}
		case strings.EqualFold(dirParsed.Title, parsed.Title):
			if parsed.Year == 0 {
				parsed.Year = dirParsed.Year
			}
			if parsed.Season == 0 && dirParsed.Season > 0 {
				parsed.Season = dirParsed.Season
			}
		}
	case MediaTypeUnknown:
		// "The Matrix (1999)/The.Matrix.1080p.mkv"
		if dirParsed := ParseFilename(parentName); dirParsed.Type == MediaTypeMovie && dirParsed.Year != 0 {
			parsed.Type = MediaTypeMovie
			parsed.Title = dirParsed.Title
			parsed.Year = dirParsed.Year
		}
	}

	return parsed
}

// ResolutionLabel maps the quality hint onto the resolution labels used
// by media info, "" when the filename carries no hint.
func (p ParsedFilename) ResolutionLabel() string {
	switch p.Quality {
	case "2160p":
		return "4K"
	case "1080p":
		return "1080p"
	case "720p":
		return "720p"
	case "480p":
		return "SD"
	default:
		return ""
	}
}

// cleanTitle strips bracket groups and turns separators into spaces.
func cleanTitle(title string) string {
	cleaned := bracketGroup.ReplaceAllString(title, " ")
	cleaned = cleanupPattern.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// splitPrefixYear peels a trailing year off an episode-pattern prefix:
// "Show.2008" and "Show (2008)" both give ("Show", 2008). A bare year
// like "1883" stays a title.
func splitPrefixYear(raw string) (string, int) {
	if m := prefixYear.FindStringSubmatch(raw); m != nil {
		year, _ := strconv.Atoi(m[2])
		return cleanTitle(m[1]), year
	}
	return cleanTitle(raw), 0
}

// splitLastYear finds the last separator-delimited year token in a name.
// Taking the last one keeps year-bearing titles intact:
// "Blade.Runner.2049.2017" splits at 2017, not 2049.
func splitLastYear(name string) (title, rest string, year int) {
	locs := yearToken.FindAllStringIndex(name, -1)
	for i := len(locs) - 1; i >= 0; i-- {
		s, e := locs[i][0], locs[i][1]
		if s == 0 {
			continue // a bare year is a title, not a year
		}
		if !isSeparator(name[s-1]) {
			continue
		}
		if e < len(name) && !isSeparator(name[e]) {
			continue
		}
		y, _ := strconv.Atoi(name[s:e])
		return name[:s], name[e:], y
	}
	return "", "", 0
}

func isSeparator(b byte) bool {
	switch b {
	case '.', ' ', '_', '-', '(', ')', '[', ']':
		return true
	}
	return false
}

func sameDir(dir, root string) bool {
	return root != "" && filepath.Clean(dir) == filepath.Clean(root)
}

// Hint tables are ordered slices so extraction is deterministic and the
// most specific pattern wins.
var qualityHints = []struct {
	label   string
	pattern *regexp.Regexp
}{
	{"2160p", regexp.MustCompile(`(?i)\b(?:2160p|4k|uhd)\b`)},
	{"1080p", regexp.MustCompile(`(?i)\b1080p\b`)},
	{"720p", regexp.MustCompile(`(?i)\b720p\b`)},
	{"480p", regexp.MustCompile(`(?i)\b(?:480p|sdtv)\b`)},
}

var sourceHints = []struct {
	label   string
	pattern *regexp.Regexp
}{
	{"BluRay", regexp.MustCompile(`(?i)\b(?:blu-?ray|bdrip|brrip|bd-?remux)\b`)},
	{"WEB-DL", regexp.MustCompile(`(?i)\bweb-?dl\b`)},
	{"WEBRip", regexp.MustCompile(`(?i)\bweb-?rip\b`)},
	{"HDTV", regexp.MustCompile(`(?i)\bhdtv\b`)},
	{"DVDRip", regexp.MustCompile(`(?i)\b(?:dvdrip|dvd-?r)\b`)},
	{"Remux", regexp.MustCompile(`(?i)\bremux\b`)},
	{"CAM", regexp.MustCompile(`(?i)\b(?:cam|hdcam|telesync|ts)\b`)},
}

var codecHints = []struct {
	label   string
	pattern *regexp.Regexp
}{
	{"x265", regexp.MustCompile(`(?i)\b(?:x\.?265|h\.?265|hevc)\b`)},
	{"x264", regexp.MustCompile(`(?i)\b(?:x\.?264|h\.?264|avc)\b`)},
	{"AV1", regexp.MustCompile(`(?i)\bav1\b`)},
	{"VP9", regexp.MustCompile(`(?i)\bvp9\b`)},
	{"XviD", regexp.MustCompile(`(?i)\bxvid\b`)},
	{"DivX", regexp.MustCompile(`(?i)\bdivx\b`)},
	{"MPEG2", regexp.MustCompile(`(?i)\bmpeg-?2\b`)},
}

// parseTechHints extracts quality, source and codec from the segment a
// title pattern did not consume.
func parseTechHints(text string, parsed *ParsedFilename) {
	if text == "" {
		return
	}
	for _, h := range qualityHints {
		if h.pattern.MatchString(text) {
			parsed.Quality = h.label
			break
		}
	}
	for _, h := range sourceHints {
		if h.pattern.MatchString(text) {
			parsed.Source = h.label
			break
		}
	}
	for _, h := range codecHints {
		if h.pattern.MatchString(text) {
			parsed.Codec = h.label
			break
		}
	}
}

// markStacked flags split movies. With a year parsed, markers are only
// trusted in the post-year segment so titles like
// "Harry Potter and the Deathly Hallows Part 2 (2011)" stay whole.
func markStacked(parsed *ParsedFilename, text string, afterYear bool) {
	pattern := stackAtEnd
	if afterYear {
		pattern = stackAfterYear
	}
	m := pattern.FindStringSubmatch(text)
	if m == nil {
		return
	}
	parsed.Stacked = true
	parsed.StackPart = strings.ToUpper(m[1] + m[2])
}

// techTokens end a title in names without year or episode structure.
// Only tokens that never appear in real titles are listed; "web" or
// "french" alone would truncate legitimate names.
var techTokens = map[string]bool{
	"720p": true, "1080p": true, "2160p": true, "480p": true, "4k": true, "uhd": true,
	"bluray": true, "bdrip": true, "brrip": true, "bdremux": true, "remux": true,
	"webdl": true, "webrip": true, "hdtv": true, "dvdrip": true,
	"x264": true, "x265": true, "h264": true, "h265": true, "hevc": true,
	"av1": true, "xvid": true, "divx": true,
	"multi": true, "vostfr": true, "vff": true, "vfq": true, "truefrench": true,
	"proper": true, "repack": true, "unrated": true, "remastered": true, "internal": true,
	"aac": true, "ac3": true, "eac3": true, "ddp": true, "dts": true, "flac": true,
	"atmos": true, "truehd": true, "10bit": true, "hdr": true, "hdr10": true,
}

// cutAtTechToken returns the leading part of a name up to the first
// release-cruft token. The first token is never cut away.
func cutAtTechToken(name string) string {
	tokens := cleanupPattern.Split(name, -1)
	for i, tok := range tokens {
		if i == 0 {
			continue
		}
		low := strings.ToLower(tok)
		if techTokens[low] {
			return strings.Join(tokens[:i], " ")
		}
		// "WEB-DL" and "WEB-Rip" split into two tokens
		if low == "web" && i+1 < len(tokens) {
			if next := strings.ToLower(tokens[i+1]); next == "dl" || next == "rip" {
				return strings.Join(tokens[:i], " ")
			}
		}
	}
	return strings.Join(tokens, " ")
}
