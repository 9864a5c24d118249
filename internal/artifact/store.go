// Package artifact persists pipeline artifacts as flat files under a data
// directory:
//
//	list/imoveis_{city}_{state}.html
//	detail/{city}_{state}/{id}.html
//	detail/{city}_{state}/{id}.pdf
//	analysis/{id}_analysis.json
//	results/automation_result_{task}.json
//
// Writes replace whole files through a temp file and rename, so concurrent
// readers never observe a partial artifact. Concurrent writers of the same key
// are not coordinated; the last writer wins.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmylchreest/leilao/internal/domain"
)

const (
	listDir     = "list"
	detailDir   = "detail"
	analysisDir = "analysis"
	resultsDir  = "results"

	analysisSuffix = "_analysis.json"
)

// Store is a flat-file artifact store rooted at a data directory.
type Store struct {
	root string
}

// New creates a store rooted at dir. Directories are created on first write.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Root returns the data directory.
func (s *Store) Root() string {
	return s.root
}

func keySegment(key domain.ListingKey) string {
	return sanitize(strings.ToLower(key.City)) + "_" + sanitize(strings.ToLower(key.State))
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "_", `\`, "_", "..", "_").Replace(strings.TrimSpace(s))
}

// ListingPath returns the file holding the listing for key.
func (s *Store) ListingPath(key domain.ListingKey) string {
	return filepath.Join(s.root, listDir, "imoveis_"+keySegment(key)+".html")
}

func (s *Store) detailDir(key domain.ListingKey) string {
	return filepath.Join(s.root, detailDir, keySegment(key))
}

// DetailPath returns the file holding the detail markup of a property.
func (s *Store) DetailPath(key domain.ListingKey, id string) string {
	return filepath.Join(s.detailDir(key), sanitize(id)+".html")
}

// DeedPath returns the file holding the deed PDF of a property.
func (s *Store) DeedPath(key domain.ListingKey, id string) string {
	return filepath.Join(s.detailDir(key), sanitize(id)+".pdf")
}

// AnalysisPath returns the file holding the analysis of a property.
func (s *Store) AnalysisPath(id string) string {
	return filepath.Join(s.root, analysisDir, sanitize(id)+analysisSuffix)
}

// ResultPath returns the file holding the report of a task.
func (s *Store) ResultPath(taskID string) string {
	return filepath.Join(s.root, resultsDir, "automation_result_"+sanitize(taskID)+".json")
}

// --- listing ---

// WriteListing stores the listing markup for key.
func (s *Store) WriteListing(key domain.ListingKey, html string) error {
	return writeFile(s.ListingPath(key), []byte(html))
}

// ReadListing loads the listing for key. Returns domain.ErrNotFound when absent.
func (s *Store) ReadListing(key domain.ListingKey) (domain.Listing, error) {
	path := s.ListingPath(key)
	data, err := readFile(path)
	if err != nil {
		return domain.Listing{}, err
	}
	listing := domain.Listing{Key: key, HTML: string(data)}
	if info, err := os.Stat(path); err == nil {
		listing.FetchedAt = info.ModTime()
	}
	return listing, nil
}

// HasListing reports whether a listing exists for key.
func (s *Store) HasListing(key domain.ListingKey) bool {
	return exists(s.ListingPath(key))
}

// --- detail ---

// WriteDetail stores the detail markup and, when present, the deed document.
func (s *Store) WriteDetail(d domain.Detail) error {
	if err := writeFile(s.DetailPath(d.Key, d.ID), []byte(d.HTML)); err != nil {
		return err
	}
	if d.HasDeed() {
		return writeFile(s.DeedPath(d.Key, d.ID), d.Deed)
	}
	return nil
}

// ReadDetail loads the detail of a property. The deed is optional; the
// detail markup is not, and its absence yields domain.ErrNotFound.
func (s *Store) ReadDetail(key domain.ListingKey, id string) (domain.Detail, error) {
	html, err := readFile(s.DetailPath(key, id))
	if err != nil {
		return domain.Detail{}, err
	}
	d := domain.Detail{Key: key, ID: id, HTML: string(html)}

	deed, err := readFile(s.DeedPath(key, id))
	switch {
	case err == nil:
		d.Deed = deed
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Detail{}, err
	}
	return d, nil
}

// HasDetail reports whether the detail markup of a property exists.
func (s *Store) HasDetail(key domain.ListingKey, id string) bool {
	return exists(s.DetailPath(key, id))
}

// --- analysis ---

// HasAnalysis reports whether an analysis is persisted for id.
func (s *Store) HasAnalysis(id string) bool {
	return exists(s.AnalysisPath(id))
}

// WriteAnalysis persists the analysis of id.
func (s *Store) WriteAnalysis(id string, a *domain.Analysis) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("encode analysis %s: %w", id, err)
	}
	return writeFile(s.AnalysisPath(id), append(data, '\n'))
}

// ReadAnalysis loads the analysis of id. Returns domain.ErrNotFound when absent.
func (s *Store) ReadAnalysis(id string) (*domain.Analysis, error) {
	data, err := readFile(s.AnalysisPath(id))
	if err != nil {
		return nil, err
	}
	var a domain.Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode analysis %s: %w", id, err)
	}
	return &a, nil
}

// Record is one entry produced by Analyses. Err is set when the record could
// not be decoded; callers decide whether to skip it.
type Record struct {
	ID       string
	Analysis *domain.Analysis
	Err      error
}

// AnalysisIDs returns the ids of all persisted analyses in lexical order.
func (s *Store) AnalysisIDs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, analysisDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list analyses: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, analysisSuffix) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, analysisSuffix))
	}
	sort.Strings(ids)
	return ids, nil
}

// Analyses lazily yields every persisted analysis. Each record is read only
// when the consumer reaches it.
func (s *Store) Analyses() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		ids, err := s.AnalysisIDs()
		if err != nil {
			yield(Record{Err: err})
			return
		}
		for _, id := range ids {
			a, err := s.ReadAnalysis(id)
			if !yield(Record{ID: id, Analysis: a, Err: err}) {
				return
			}
		}
	}
}

// --- run results ---

// WriteResult persists the report of a task.
func (s *Store) WriteResult(taskID string, r *domain.Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result %s: %w", taskID, err)
	}
	return writeFile(s.ResultPath(taskID), append(data, '\n'))
}

// ReadResult loads the report of a task.
func (s *Store) ReadResult(taskID string) (*domain.Report, error) {
	data, err := readFile(s.ResultPath(taskID))
	if err != nil {
		return nil, err
	}
	var r domain.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode result %s: %w", taskID, err)
	}
	return &r, nil
}

// RemoveResult deletes the report of a task. A missing file is not an error.
func (s *Store) RemoveResult(taskID string) error {
	if err := os.Remove(s.ResultPath(taskID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove result %s: %w", taskID, err)
	}
	return nil
}

// --- file helpers ---

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- paths are built from sanitized keys under the store root
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func writeFile(path string, data []byte) (retErr error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = os.Remove(tmp.Name()) // Clean up partial write on error.
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
