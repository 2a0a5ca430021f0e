package recorder

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/mockforge/core/internal/apierrors"
	"github.com/mockforge/core/internal/model"
)

// DiskStore persists each recorded exchange as one JSON file, named by
// its URL-safe base64 request key (spec.md §4.6). It ignores files
// whose stored version does not match CurrentRecordingVersion, per
// spec.md §6, treating them as a miss rather than an error so a
// format migration does not break replay of old recordings outright.
type DiskStore struct {
	Dir string
}

// NewDiskStore ensures dir exists and returns a store rooted there.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apierrors.NewInternalError("create recording directory", err)
	}
	return &DiskStore{Dir: dir}, nil
}

func (s *DiskStore) pathFor(key string) string {
	return filepath.Join(s.Dir, key+".json")
}

// Put writes exchange to disk, overwriting any prior recording for the
// same key.
func (s *DiskStore) Put(key string, exchange *model.RecordedExchange) error {
	data, err := json.Marshal(exchange)
	if err != nil {
		return apierrors.NewInternalError("marshal recorded exchange", err)
	}
	tmp := s.pathFor(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return apierrors.NewInternalError("write recorded exchange", err)
	}
	return os.Rename(tmp, s.pathFor(key))
}

// Get reads the exchange for key, if present.
func (s *DiskStore) Get(key string) (*model.RecordedExchange, bool, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, apierrors.NewInternalError("read recorded exchange", err)
	}

	var exchange model.RecordedExchange
	if err := json.Unmarshal(data, &exchange); err != nil {
		return nil, false, apierrors.NewInternalError("unmarshal recorded exchange", err)
	}
	if exchange.Version != model.CurrentRecordingVersion {
		return nil, false, nil
	}
	return &exchange, true, nil
}
