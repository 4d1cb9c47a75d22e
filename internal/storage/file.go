package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	logx "github.com/achrafouajid/noor-daily/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.alarms.json         (full snapshot, rewritten on change)
//   - <prefix>.fired.jsonl         (append-only journal)
//
// The fired journal is periodically compacted, dropping keys for past
// dates (they are never looked up again).
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	alarmsPath string
	alarms     map[string]AlarmRecord

	firedPath string
	firedFile *os.File
	fired     map[string]int64 // key -> unix milli

	firedWrites int
}

type firedRecord struct {
	Key string `json:"key"`
	At  int64  `json:"at"`
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
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:        log,
		alarmsPath: prefix + ".alarms.json",
		firedPath:  prefix + ".fired.jsonl",
		alarms:     map[string]AlarmRecord{},
		fired:      map[string]int64{},
	}

	if err := s.loadAlarms(); err != nil && !os.IsNotExist(err) {
		log.Warn("alarms snapshot unreadable, starting empty", logx.Err(err))
	}
	if err := s.replayFired(); err != nil && !os.IsNotExist(err) {
		log.Warn("fired journal unreadable, starting empty", logx.Err(err))
	}
	pruneOldFired(s.fired)

	ff, err := os.OpenFile(s.firedPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	s.firedFile = ff

	return s, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firedFile != nil {
		err := s.firedFile.Close()
		s.firedFile = nil
		return err
	}
	return nil
}

func (s *fileStore) ListAlarms(ctx context.Context) ([]AlarmRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AlarmRecord, 0, len(s.alarms))
	for _, rec := range s.alarms {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fileStore) PutAlarm(ctx context.Context, rec AlarmRecord) error {
	_ = ctx
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("alarm id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alarms[rec.ID] = rec
	return s.writeAlarmsLocked()
}

func (s *fileStore) DeleteAlarm(ctx context.Context, id string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.alarms[id]; !ok {
		return nil
	}
	delete(s.alarms, id)
	return s.writeAlarmsLocked()
}

func (s *fileStore) MarkFired(ctx context.Context, key string, at time.Time) error {
	_ = ctx
	key = strings.TrimSpace(key)
	if key == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firedFile == nil {
		return errors.New("fired journal closed")
	}
	s.fired[key] = at.UnixMilli()

	enc := json.NewEncoder(s.firedFile)
	if err := enc.Encode(firedRecord{Key: key, At: at.UnixMilli()}); err != nil {
		return err
	}
	s.firedWrites++
	if s.firedWrites%500 == 0 {
		if err := s.compactFiredLocked(); err != nil {
			s.log.Debug("fired journal compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) ListFired(ctx context.Context, dateKey string) ([]string, error) {
	_ = ctx
	suffix := "@" + dateKey
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for k := range s.fired {
		if strings.HasSuffix(k, suffix) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *fileStore) writeAlarmsLocked() error {
	tmp := s.alarmsPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	recs := make([]AlarmRecord, 0, len(s.alarms))
	for _, rec := range s.alarms {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	if err := json.NewEncoder(f).Encode(recs); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.alarmsPath)
}

func (s *fileStore) loadAlarms() error {
	f, err := os.Open(s.alarmsPath)
	if err != nil {
		return err
	}
	defer f.Close()
	var recs []AlarmRecord
	if err := json.NewDecoder(f).Decode(&recs); err != nil {
		return err
	}
	for _, rec := range recs {
		if rec.ID != "" {
			s.alarms[rec.ID] = rec
		}
	}
	return nil
}

func (s *fileStore) replayFired() error {
	f, err := os.Open(s.firedPath)
	if err != nil {
		return err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r firedRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		if r.Key == "" {
			continue
		}
		s.fired[r.Key] = r.At
	}
	return sc.Err()
}

func (s *fileStore) compactFiredLocked() error {
	pruneOldFired(s.fired)

	tmp := s.firedPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for k, at := range s.fired {
		if err := enc.Encode(firedRecord{Key: k, At: at}); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := s.firedFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.firedPath); err != nil {
		return err
	}
	ff, err := os.OpenFile(s.firedPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		s.firedFile = nil
		return err
	}
	s.firedFile = ff
	return nil
}

// pruneOldFired drops ledger keys whose date suffix is strictly before
// yesterday. Yesterday's keys must survive: occurrences are keyed by
// their anchor day, and one that straddled midnight still consults
// yesterday's entry after a restart.
func pruneOldFired(m map[string]int64) {
	floor := time.Now().AddDate(0, 0, -1).Format("2006-01-02")
	for k := range m {
		i := strings.LastIndexByte(k, '@')
		if i < 0 {
			delete(m, k)
			continue
		}
		if k[i+1:] < floor {
			delete(m, k)
		}
	}
}
