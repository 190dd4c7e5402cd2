package transfer

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/mediatheque/mediatheque/internal/library/movies"
	"github.com/mediatheque/mediatheque/internal/library/scanner"
	"github.com/mediatheque/mediatheque/internal/library/tv"
	"github.com/mediatheque/mediatheque/internal/titles"
)

const (
	filmsTree    = "Films"
	seriesTree   = "Series"
	defaultGenre = "Divers"
)

// Namer computes storage and presentation paths. Both trees share one
// relative layout, so every storage file has a mirror-position link.
type Namer struct {
	storageDir string
	videoDir   string
}

func NewNamer(storageDir, videoDir string) *Namer {
	return &Namer{storageDir: storageDir, videoDir: videoDir}
}

// MovieDestination returns the storage path and the presentation link
// path for a movie file:
// Films/<Genre>/<Letter>/<Title (Year)>/Title (Year).ext
// Parts of a split movie keep their disc marker so they coexist in the
// movie folder: Title (Year) - CD1.ext.
func (n *Namer) MovieDestination(movie *movies.Movie, sourcePath string) (dest, link string) {
	leaf := sanitizeName(displayTitle(movie.Title, movie.Year))
	genre := defaultGenre
	if len(movie.Genres) > 0 && movie.Genres[0] != "" {
		genre = movie.Genres[0]
	}
	name := leaf
	if parsed := scanner.ParseFilename(filepath.Base(sourcePath)); parsed.Stacked && parsed.StackPart != "" {
		name += " - " + parsed.StackPart
	}
	rel := filepath.Join(
		filmsTree,
		sanitizeName(genre),
		letterBucket(movie.SortTitle, movie.Title),
		leaf,
		name+sourceExt(sourcePath),
	)
	return filepath.Join(n.storageDir, rel), filepath.Join(n.videoDir, rel)
}

// EpisodeDestination returns the storage path and the presentation
// link path for an episode file (all episodes share one file):
// Series/<Letter>/<Series Title (Year)>/Season NN/
// Series Title (Year) - SxxEyy - Episode Title.ext
func (n *Namer) EpisodeDestination(series *tv.Series, episodes []*tv.Episode, sourcePath string) (dest, link string) {
	seriesLeaf := sanitizeName(displayTitle(series.Title, series.Year))
	first := episodes[0]
	last := episodes[len(episodes)-1]

	name := fmt.Sprintf("%s - S%02dE%02d", seriesLeaf, first.SeasonNumber, first.EpisodeNumber)
	if last.EpisodeNumber > first.EpisodeNumber {
		name += fmt.Sprintf("-E%02d", last.EpisodeNumber)
	}
	if title := firstEpisodeTitle(episodes); title != "" {
		name += " - " + sanitizeName(title)
	}
	rel := filepath.Join(
		seriesTree,
		letterBucket(series.SortTitle, series.Title),
		seriesLeaf,
		fmt.Sprintf("Season %02d", first.SeasonNumber),
		name+sourceExt(sourcePath),
	)
	return filepath.Join(n.storageDir, rel), filepath.Join(n.videoDir, rel)
}

// displayTitle renders "Title (Year)", dropping the parens when the
// year is unknown.
func displayTitle(title string, year int) string {
	if year > 0 {
		return fmt.Sprintf("%s (%d)", title, year)
	}
	return title
}

// letterBucket returns the single-letter shelf a title files under:
// the first rune of the sort key uppercased, # for anything that does
// not start with a letter.
func letterBucket(sortTitle, title string) string {
	key := sortTitle
	if key == "" {
		key = titles.SortKey(title)
	}
	for _, r := range key {
		if unicode.IsLetter(r) {
			return strings.ToUpper(string(r))
		}
		break
	}
	return "#"
}

// firstEpisodeTitle returns the first non-empty episode title; a file
// spanning two episodes is named after the first one.
func firstEpisodeTitle(episodes []*tv.Episode) string {
	for _, e := range episodes {
		if e.Title != "" {
			return e.Title
		}
	}
	return ""
}

// sourceExt keeps the container extension of the source file,
// lowercased so the curated tree stays uniform.
func sourceExt(sourcePath string) string {
	return strings.ToLower(filepath.Ext(sourcePath))
}

// nameSanitizer maps characters that cannot appear in path segments:
// colons become " -", path separators become hyphens, the rest become
// spaces and collapse away.
var nameSanitizer = strings.NewReplacer(
	":", " -",
	"/", "-",
	"\\", "-",
	"|", "-",
	"<", " ",
	">", " ",
	`"`, " ",
	"?", " ",
	"*", " ",
)

var spaceRun = regexp.MustCompile(`\s+`)

var windowsReserved = map[string]struct{}{
	"con": {}, "prn": {}, "aux": {}, "nul": {},
	"com1": {}, "com2": {}, "com3": {}, "com4": {}, "com5": {},
	"com6": {}, "com7": {}, "com8": {}, "com9": {},
	"lpt1": {}, "lpt2": {}, "lpt3": {}, "lpt4": {}, "lpt5": {},
	"lpt6": {}, "lpt7": {}, "lpt8": {}, "lpt9": {},
}

// sanitizeName makes one path segment safe on every filesystem the
// storage tree may land on. Windows device names and trailing dots
// are guarded even on Linux so the tree survives an SMB export.
func sanitizeName(name string) string {
	name = nameSanitizer.Replace(name)
	name = spaceRun.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	name = strings.TrimRight(name, ". ")
	if name == "" {
		return "_"
	}
	if _, reserved := windowsReserved[strings.ToLower(name)]; reserved {
		return name + "_"
	}
	return name
}
