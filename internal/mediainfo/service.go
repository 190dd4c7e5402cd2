package mediainfo

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/mediatheque/mediatheque/internal/logger"
)

// Config holds probe service configuration.
type Config struct {
	MediaInfoPath string        // Path to mediainfo binary (empty = search PATH)
	FFprobePath   string        // Path to ffprobe binary (empty = search PATH)
	CacheEnabled  bool          // Enable caching of probe results
	CacheTTL      time.Duration // How long to keep cached results
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		CacheEnabled: true,
		CacheTTL:     time.Hour,
	}
}

// cacheEntry holds a cached probe result.
type cacheEntry struct {
	info      *MediaInfo
	timestamp time.Time
	size      int64
	modTime   time.Time
}

// Service extracts media information from files on disk. mediainfo is
// preferred when installed, with ffprobe as the fallback.
type Service struct {
	config Config
	logger *logger.Logger
	cache  map[string]*cacheEntry
	mu     sync.RWMutex

	probeFunc func(ctx context.Context, path string) (*MediaInfo, error)
}

// NewService creates a new probe service.
func NewService(config Config, log *logger.Logger) *Service {
	s := &Service{
		config: config,
		logger: log.WithComponent("mediainfo"),
		cache:  make(map[string]*cacheEntry),
	}
	s.probeFunc = s.selectProbeMethod()
	return s
}

// selectProbeMethod determines the best available probe method.
func (s *Service) selectProbeMethod() func(context.Context, string) (*MediaInfo, error) {
	if path := findExecutable("mediainfo", s.config.MediaInfoPath); path != "" {
		s.logger.Info().Str("path", path).Msg("using mediainfo CLI")
		return func(ctx context.Context, p string) (*MediaInfo, error) {
			return s.probeWithMediaInfo(ctx, p, path)
		}
	}

	if path := findExecutable("ffprobe", s.config.FFprobePath); path != "" {
		s.logger.Info().Str("path", path).Msg("using ffprobe CLI")
		return func(ctx context.Context, p string) (*MediaInfo, error) {
			return s.probeWithFFprobe(ctx, p, path)
		}
	}

	s.logger.Warn().Msg("no media probe tool found (mediainfo or ffprobe)")
	return nil
}

// IsAvailable returns true if a probe tool is available.
func (s *Service) IsAvailable() bool {
	return s.probeFunc != nil
}

// Probe extracts media information from a file. Without a probe tool an
// empty MediaInfo is returned so ingestion can degrade instead of abort.
func (s *Service) Probe(ctx context.Context, path string) (*MediaInfo, error) {
	if s.config.CacheEnabled {
		if info := s.getCached(path); info != nil {
			return info, nil
		}
	}

	if s.probeFunc == nil {
		return &MediaInfo{}, nil
	}

	info, err := s.probeFunc(ctx, path)
	if err != nil {
		return nil, err
	}

	if s.config.CacheEnabled {
		s.setCache(path, info)
	}

	return info, nil
}

// ProbeWithFallback probes a file, merging filename-derived hints into
// missing fields and falling back to them entirely on probe failure.
func (s *Service) ProbeWithFallback(ctx context.Context, path string, fallback *MediaInfo) *MediaInfo {
	info, err := s.Probe(ctx, path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("probe failed, using filename hints")
		if fallback != nil {
			return fallback
		}
		return &MediaInfo{}
	}

	if fallback != nil {
		mergeMediaInfo(info, fallback)
	}
	return info
}

// getCached retrieves a cached result if still valid for the file's
// current size and mtime.
func (s *Service) getCached(path string) *MediaInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.cache[path]
	if !ok {
		return nil
	}
	if time.Since(entry.timestamp) > s.config.CacheTTL {
		return nil
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil
	}
	if stat.Size() != entry.size || !stat.ModTime().Equal(entry.modTime) {
		return nil
	}

	return entry.info
}

// setCache stores a result in the cache.
func (s *Service) setCache(path string, info *MediaInfo) {
	stat, err := os.Stat(path)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache[path] = &cacheEntry{
		info:      info,
		timestamp: time.Now(),
		size:      stat.Size(),
		modTime:   stat.ModTime(),
	}
}

// ClearCache clears all cached entries.
func (s *Service) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]*cacheEntry)
}

// mergeMediaInfo fills empty fields of info from fallback.
func mergeMediaInfo(info, fallback *MediaInfo) {
	if info.VideoCodec == "" {
		info.VideoCodec = fallback.VideoCodec
	}
	if info.ResolutionLabel == "" {
		info.ResolutionLabel = fallback.ResolutionLabel
	}
	if info.Width == 0 && info.Height == 0 {
		info.Width = fallback.Width
		info.Height = fallback.Height
	}
	if len(info.AudioCodecs) == 0 {
		info.AudioCodecs = fallback.AudioCodecs
	}
	if info.AudioChannels == "" {
		info.AudioChannels = fallback.AudioChannels
	}
	if len(info.AudioLanguages) == 0 {
		info.AudioLanguages = fallback.AudioLanguages
	}
	if info.DurationSeconds == 0 {
		info.DurationSeconds = fallback.DurationSeconds
	}
	if info.Container == "" {
		info.Container = fallback.Container
	}
}
