package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "bishop/pkg/logx"
)

// tailCap bounds the in-memory tail the file backend keeps for
// RecentSamples. Older samples stay on disk only.
const tailCap = 1000

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.samples.jsonl (append-only JSON Lines)
//
// The tail of the log is replayed into memory at open so RecentSamples
// never reads the file on the hot path.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	samplesFile *os.File
	tail        []Sample // oldest first
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	samplesPath := filepath.Join(dir, base+".samples.jsonl")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	tail, err := replaySamples(samplesPath)
	if err != nil {
		log.Debug("sample replay failed", logx.Err(err))
	}

	f, err := os.OpenFile(samplesPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{log: log, samplesFile: f, tail: tail}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.samplesFile == nil {
		return nil
	}
	err := s.samplesFile.Close()
	s.samplesFile = nil
	return err
}

func (s *fileStore) AppendSample(ctx context.Context, e Sample) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.samplesFile == nil {
		return errors.New("sample log closed")
	}
	if err := json.NewEncoder(s.samplesFile).Encode(e); err != nil {
		return err
	}

	s.tail = append(s.tail, e)
	if len(s.tail) > tailCap {
		s.tail = s.tail[len(s.tail)-tailCap:]
	}
	return nil
}

func (s *fileStore) RecentSamples(ctx context.Context, n int) ([]Sample, error) {
	_ = ctx
	if n <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.tail) {
		n = len(s.tail)
	}

	// Newest first.
	out := make([]Sample, 0, n)
	for i := len(s.tail) - 1; i >= len(s.tail)-n; i-- {
		out = append(out, s.tail[i])
	}
	return out, nil
}

func replaySamples(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var tail []Sample
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e Sample
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		tail = append(tail, e)
		if len(tail) > tailCap {
			tail = tail[len(tail)-tailCap:]
		}
	}
	return tail, sc.Err()
}
