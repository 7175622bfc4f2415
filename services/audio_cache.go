package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/prepmate/backend/metrics"
)

// AudioCache is a filesystem cache of synthesized speech keyed by text and voice
type AudioCache struct {
	cacheDir string
	mutex    sync.RWMutex
}

func NewAudioCache(cacheDir string) *AudioCache {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		slog.Error("Failed to create cache directory", "dir", cacheDir, "error", err)
	}
	return &AudioCache{
		cacheDir: cacheDir,
	}
}

func (ac *AudioCache) generateCacheKey(text, voiceID string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s:%s", text, voiceID)))
	return hex.EncodeToString(hash[:])
}

func (ac *AudioCache) getCachePath(key string) string {
	return filepath.Join(ac.cacheDir, key+".mp3")
}

// Get retrieves cached audio data if it exists
func (ac *AudioCache) Get(text, voiceID string) ([]byte, bool) {
	ac.mutex.RLock()
	defer ac.mutex.RUnlock()

	cachePath := ac.getCachePath(ac.generateCacheKey(text, voiceID))
	data, err := os.ReadFile(cachePath)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("Failed to read cached audio", "path", cachePath, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Set stores audio data in the cache. Writes go through a temp file so
// readers never see a partial mp3.
func (ac *AudioCache) Set(text, voiceID string, audioData []byte) error {
	ac.mutex.Lock()
	defer ac.mutex.Unlock()

	cachePath := ac.getCachePath(ac.generateCacheKey(text, voiceID))
	tmp := cachePath + ".tmp"
	if err := os.WriteFile(tmp, audioData, 0644); err != nil {
		slog.Error("Failed to write audio to cache", "path", cachePath, "error", err)
		return err
	}
	if err := os.Rename(tmp, cachePath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Clear removes all cached audio files and returns how many were deleted
func (ac *AudioCache) Clear() (int, error) {
	ac.mutex.Lock()
	defer ac.mutex.Unlock()

	files, err := filepath.Glob(filepath.Join(ac.cacheDir, "*.mp3"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, file := range files {
		if err := os.Remove(file); err != nil {
			slog.Error("Failed to remove cached file", "file", file, "error", err)
			continue
		}
		removed++
	}
	slog.Info("Cleared audio cache", "files_removed", removed)
	return removed, nil
}

type CacheStats struct {
	Files     int   `json:"files"`
	SizeBytes int64 `json:"size_bytes"`
}

// Stats counts the cached clips and their total size
func (ac *AudioCache) Stats() (CacheStats, error) {
	ac.mutex.RLock()
	defer ac.mutex.RUnlock()

	files, err := filepath.Glob(filepath.Join(ac.cacheDir, "*.mp3"))
	if err != nil {
		return CacheStats{}, err
	}
	stats := CacheStats{Files: len(files)}
	for _, file := range files {
		if info, err := os.Stat(file); err == nil {
			stats.SizeBytes += info.Size()
		}
	}
	return stats, nil
}

// SpeechService serves question audio, synthesizing on a cache miss
type SpeechService struct {
	tts     TTS
	cache   *AudioCache
	metrics *metrics.Metrics
}

func NewSpeechService(tts TTS, cache *AudioCache, m *metrics.Metrics) *SpeechService {
	return &SpeechService{tts: tts, cache: cache, metrics: m}
}

// CacheStats reports the audio cache; zero when caching is off
func (s *SpeechService) CacheStats() (CacheStats, error) {
	if s.cache == nil {
		return CacheStats{}, nil
	}
	return s.cache.Stats()
}

// Speak returns mp3 audio for text in the given voice
func (s *SpeechService) Speak(ctx context.Context, text, voiceID string) ([]byte, error) {
	if voiceID == "" {
		voiceID = defaultVoiceID
	}
	if s.cache != nil {
		if data, ok := s.cache.Get(text, voiceID); ok {
			s.metrics.TTSRequest(metrics.TTSCacheHit)
			return data, nil
		}
	}
	if s.tts == nil {
		return nil, fmt.Errorf("text to speech: %w", ErrAIUnavailable)
	}

	body, err := s.tts.TextToSpeech(ctx, text, voiceID)
	if err != nil {
		s.metrics.TTSRequest(metrics.TTSError)
		if errors.Is(err, ErrAIUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: text to speech: %v", ErrAIUnavailable, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		s.metrics.TTSRequest(metrics.TTSError)
		return nil, fmt.Errorf("%w: failed to read audio: %v", ErrAIUnavailable, err)
	}
	s.metrics.TTSRequest(metrics.TTSGenerated)

	if s.cache != nil {
		if err := s.cache.Set(text, voiceID, data); err != nil {
			slog.Warn("Audio not cached", "error", err)
		}
	}
	return data, nil
}
