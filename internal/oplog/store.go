package oplog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hayley-d/collaborative-coding-backend/internal/s4vector"
)

// Store is the durable operation log plus its latest-value snapshot
// projection, scoped to a data directory shared by every document this
// replica process hosts.
//
// Every accepted operation goes through Append, in one logical transaction:
// log append, then snapshot upsert. Recovery scans the snapshot projection
// in (ssn, sum, sid, seq) order per document and replays it into a fresh
// rga.Document via RemoteApply — the scan order is monotone in S4Vector, so
// every anchor a record names has already been replayed by the time that
// record is reached, and replay degenerates to a sequence of appends.
type Store struct {
	mu      sync.Mutex
	dataDir string
	wal     *wal

	// snapshot holds, per document, the latest record per S4Vector. It is
	// the in-memory mirror of document_snapshots.
	snapshot map[string]map[s4vector.S4Vector]Record
}

// Open creates or reopens the log rooted at dataDir: loads the last snapshot
// file (if any), opens the WAL, and replays any entries appended after that
// snapshot was taken.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		dataDir:  dataDir,
		snapshot: make(map[string]map[s4vector.S4Vector]Record),
	}

	if err := s.loadSnapshotFile(); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	w, err := newWAL(filepath.Join(dataDir, "operations.log"))
	if err != nil {
		return nil, fmt.Errorf("open operation log: %w", err)
	}
	s.wal = w

	if err := s.replay(); err != nil {
		return nil, fmt.Errorf("replay operation log: %w", err)
	}

	return s, nil
}

// Append durably records rec, upserting the snapshot projection row keyed
// by (DocumentID, ID) — the same quadruple key an Insert, and every later
// Update/Delete against the node it created, all share, matching the
// document_snapshots upsert-on-conflict semantics the relational substrate
// this store stands in for would use.
//
// Only a byte-identical re-delivery of a record already at that key (same
// Kind, Value, Tombstone, and anchors) is treated as a duplicate and
// skipped: that is the at-least-once-broadcast case, not a state
// transition. A record that differs — an Update changing Value, or a
// Delete setting Tombstone on a row an Insert already occupies — always
// overwrites; a row that is already tombstoned stays tombstoned. Returns
// whether the record was newly written (i.e. not skipped as a duplicate).
func (s *Store) Append(rec Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.snapshot[rec.DocumentID]
	if !ok {
		doc = make(map[s4vector.S4Vector]Record)
		s.snapshot[rec.DocumentID] = doc
	}
	if existing, exists := doc[rec.ID]; exists {
		if existing.Tombstone {
			rec.Tombstone = true // tombstones are monotone
		}
		if recordsEqual(existing, rec) {
			return false, nil
		}
	}

	if err := s.wal.append(rec); err != nil {
		return false, fmt.Errorf("append: %w", err)
	}

	doc[rec.ID] = rec
	return true, nil
}

// recordsEqual reports whether two records at the same S4Vector key
// represent the same observed state, as opposed to a later Update/Delete
// superseding an earlier row at that key.
func recordsEqual(a, b Record) bool {
	if a.Kind != b.Kind || a.Tombstone != b.Tombstone {
		return false
	}
	if !bytes.Equal(a.Value, b.Value) {
		return false
	}
	return s4PtrEqual(a.LeftID, b.LeftID) && s4PtrEqual(a.RightID, b.RightID)
}

func s4PtrEqual(a, b *s4vector.S4Vector) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Has reports whether a record with the given S4Vector has already been
// logged for the document, without mutating anything.
func (s *Store) Has(documentID string, id s4vector.S4Vector) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.snapshot[documentID]
	if !ok {
		return false
	}
	_, ok = doc[id]
	return ok
}

// LoadDocument returns every record logged for documentID, ordered by
// S4Vector so that replaying them in sequence via rga.Document.RemoteApply
// never stalls on a missing anchor.
func (s *Store) LoadDocument(documentID string) []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.snapshot[documentID]
	records := make([]Record, 0, len(doc))
	for _, r := range doc {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		return s4vector.Less(records[i].ID, records[j].ID)
	})
	return records
}

// Snapshot persists the current projection to disk and truncates the log,
// via the same create-temp/rename/truncate sequence the teacher storage
// layer uses: a crash between the write and the rename leaves the previous
// snapshot file intact.
func (s *Store) Snapshot() error {
	s.mu.Lock()
	flat := make(map[string][]Record, len(s.snapshot))
	for docID, doc := range s.snapshot {
		records := make([]Record, 0, len(doc))
		for _, r := range doc {
			records = append(records, r)
		}
		flat[docID] = records
	}
	s.mu.Unlock()

	path := filepath.Join(s.dataDir, "snapshot.json")
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(flat); err != nil {
		f.Close()
		return err
	}
	f.Close()

	if err := os.Rename(tmp, path); err != nil {
		return err
	}

	return s.wal.truncate()
}

func (s *Store) loadSnapshotFile() error {
	path := filepath.Join(s.dataDir, "snapshot.json")
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	var flat map[string][]Record
	if err := json.NewDecoder(f).Decode(&flat); err != nil {
		return err
	}
	for docID, records := range flat {
		doc := make(map[s4vector.S4Vector]Record, len(records))
		for _, r := range records {
			doc[r.ID] = r
		}
		s.snapshot[docID] = doc
	}
	return nil
}

func (s *Store) replay() error {
	records, err := s.wal.readAll()
	if err != nil {
		return err
	}
	for _, r := range records {
		doc, ok := s.snapshot[r.DocumentID]
		if !ok {
			doc = make(map[s4vector.S4Vector]Record)
			s.snapshot[r.DocumentID] = doc
		}
		doc[r.ID] = r
	}
	return nil
}

// Close closes the underlying log file. Call during graceful shutdown.
func (s *Store) Close() error {
	return s.wal.close()
}
