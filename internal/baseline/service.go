package baseline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gocv.io/x/gocv"

	"github.com/rendiffdev/visionguard/internal/apperrors"
)

// metadataFile is the index file's name within the service's base
// directory, keyed by baseline id (§6: "a metadata.json index keyed by
// uuid").
const metadataFile = "metadata.json"

// Service implements the Baseline Service contract against the local
// filesystem: one image file per baseline at <base>/baselines/<uuid>.jpg
// plus the shared metadata index. All mutations are serialized through a
// single mutex so a record's file and its index entry are never observed
// out of sync by a concurrent reader (§4.8's atomicity guarantee: "a
// record either exists with its file or not at all from the caller's
// perspective").
type Service struct {
	mu       sync.Mutex
	baseDir  string
	imageDir string
	index    map[string]Record
}

// NewService opens (or creates) a baseline store rooted at baseDir.
func NewService(baseDir string) (*Service, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve baseline base dir: %w", err)
	}
	imageDir := filepath.Join(abs, "baselines")
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		return nil, fmt.Errorf("create baseline image dir: %w", err)
	}

	s := &Service{baseDir: abs, imageDir: imageDir, index: make(map[string]Record)}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Service) indexPath() string { return filepath.Join(s.baseDir, metadataFile) }

func (s *Service) loadIndex() error {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read baseline metadata index: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parse baseline metadata index: %w", err)
	}
	for _, r := range records {
		s.index[r.ID] = r
	}
	return nil
}

// saveIndex must be called with mu held. It writes the whole index
// atomically (temp file + rename), matching the taskstore idiom used
// elsewhere in this engine for file-backed stores.
func (s *Service) saveIndex() error {
	records := make([]Record, 0, len(s.index))
	for _, r := range s.index {
		records = append(records, r)
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.baseDir, ".metadata-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.indexPath())
}

// securePath resolves id to a path inside imageDir, rejecting any id that
// would escape it (ported from internal/storage/local.go's securePath,
// scoped to the fixed "<uuid>.jpg" layout this service uses).
func (s *Service) securePath(id string) (string, error) {
	clean := filepath.Clean(id)
	if clean != id || strings.ContainsAny(id, `/\`) {
		return "", apperrors.InvalidInput("invalid baseline id", id)
	}
	path := filepath.Join(s.imageDir, clean+".jpg")
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(abs, s.imageDir+string(filepath.Separator)) {
		return "", apperrors.InvalidInput("invalid baseline id", id)
	}
	return abs, nil
}

// Save persists image (a gocv.Mat the caller still owns) as a new baseline
// and returns its id. The image is encoded to JPEG and written before the
// metadata index is updated, so a crash mid-write never leaves a dangling
// index entry.
func (s *Service) Save(image gocv.Mat, name, description string, tags []string) (string, error) {
	if image.Empty() {
		return "", apperrors.InvalidInput("baseline image is empty", "")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	path, err := s.securePath(id)
	if err != nil {
		return "", err
	}

	buf, err := gocv.IMEncode(".jpg", image)
	if err != nil {
		return "", fmt.Errorf("encode baseline image: %w", err)
	}
	defer buf.Close()

	if err := os.WriteFile(path, buf.GetBytes(), 0o644); err != nil {
		return "", fmt.Errorf("write baseline image: %w", err)
	}

	rec := Record{ID: id, Name: name, Description: description, Tags: tags, CreatedAt: time.Now()}
	s.index[id] = rec
	if err := s.saveIndex(); err != nil {
		os.Remove(path)
		delete(s.index, id)
		return "", fmt.Errorf("persist baseline metadata: %w", err)
	}
	return id, nil
}

// Get returns the metadata record for id.
func (s *Service) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.index[id]
	return r, ok
}

// GetImage decodes and returns id's stored image. The caller owns the
// returned Mat and must Close it.
func (s *Service) GetImage(id string) (gocv.Mat, bool) {
	s.mu.Lock()
	if _, ok := s.index[id]; !ok {
		s.mu.Unlock()
		return gocv.Mat{}, false
	}
	path, err := s.securePath(id)
	s.mu.Unlock()
	if err != nil {
		return gocv.Mat{}, false
	}

	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		return gocv.Mat{}, false
	}
	return mat, true
}

// Reference implements detectors.BaselineSource: it looks up a baseline
// keyed directly by scene/image id, which is the convention this engine
// uses for per-camera baselines (the baseline id and the scene id are the
// same string).
func (s *Service) Reference(sceneID string) (gocv.Mat, bool) {
	return s.GetImage(sceneID)
}

// List returns every baseline record whose image file still exists,
// filtering out any whose backing file went missing out-of-band (§4.8:
// "with missing files filtered").
func (s *Service) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.index))
	for _, r := range s.index {
		path, err := s.securePath(r.ID)
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Update replaces the mutable fields of id's record that are non-nil.
func (s *Service) Update(id string, name, description *string, tags []string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.index[id]
	if !ok {
		return Record{}, apperrors.NotFound("unknown baseline", id)
	}
	if name != nil {
		r.Name = *name
	}
	if description != nil {
		r.Description = *description
	}
	if tags != nil {
		r.Tags = tags
	}
	s.index[id] = r
	if err := s.saveIndex(); err != nil {
		return Record{}, fmt.Errorf("persist baseline metadata: %w", err)
	}
	return r, nil
}

// Delete removes id's image file and metadata entry.
func (s *Service) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[id]; !ok {
		return apperrors.NotFound("unknown baseline", id)
	}
	path, err := s.securePath(id)
	if err != nil {
		return err
	}
	delete(s.index, id)
	if err := s.saveIndex(); err != nil {
		return fmt.Errorf("persist baseline metadata: %w", err)
	}
	_ = os.Remove(path)
	return nil
}
