// Package state tracks per-file content hashes so a refresh only
// re-extracts files that changed.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/skelly-dev/codegraph/internal/fileutil"
)

const (
	StateFile            = "state.json"
	CurrentStateVersion  = "3"
	CurrentParserVersion = "tree-sitter-v2"
)

// FileState tracks the state of a single file
type FileState struct {
	Hash      string    `json:"hash"`
	Language  string    `json:"language,omitempty"`
	Symbols   int       `json:"symbols"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State tracks the state of all files for incremental updates
type State struct {
	Version       string               `json:"version"`
	ParserVersion string               `json:"parser_version,omitempty"`
	UpdatedAt     time.Time            `json:"updated_at"`
	Files         map[string]FileState `json:"files"`
}

// NewState creates a new empty state
func NewState() *State {
	return &State{
		Version:       CurrentStateVersion,
		ParserVersion: CurrentParserVersion,
		Files:         make(map[string]FileState),
	}
}

// Load reads a snapshot from dir. A missing snapshot yields an empty state.
func Load(dir string) (*State, error) {
	path := filepath.Join(dir, StateFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("failed to read state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state: %w", err)
	}

	migrateState(&state)

	return &state, nil
}

// Save writes a snapshot to dir.
func (s *State) Save(dir string) error {
	if s.Version == "" {
		s.Version = CurrentStateVersion
	}
	if s.ParserVersion == "" {
		s.ParserVersion = CurrentParserVersion
	}
	if s.Files == nil {
		s.Files = make(map[string]FileState)
	}

	s.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	return fileutil.WriteIfChanged(filepath.Join(dir, StateFile), data)
}

// SetFile records the hash, language and symbol count of an indexed file.
func (s *State) SetFile(file, hash, language string, symbols int) {
	s.Files[file] = FileState{
		Hash:      hash,
		Language:  language,
		Symbols:   symbols,
		UpdatedAt: time.Now(),
	}
}

// HasChanged reports whether file is untracked, differs from currentHash,
// or failed to parse last time (empty stored hash).
func (s *State) HasChanged(file, currentHash string) bool {
	fs, ok := s.Files[file]
	if !ok || fs.Hash == "" {
		return true
	}
	return fs.Hash != currentHash
}

// RemoveFile removes a file from state tracking
func (s *State) RemoveFile(file string) {
	delete(s.Files, file)
}

// ChangedFiles returns new or modified files, sorted.
func (s *State) ChangedFiles(currentHashes map[string]string) []string {
	changed := make([]string, 0)
	for file, hash := range currentHashes {
		if s.HasChanged(file, hash) {
			changed = append(changed, file)
		}
	}
	sort.Strings(changed)
	return changed
}

// DeletedFiles returns tracked files that no longer exist, sorted.
func (s *State) DeletedFiles(currentFiles map[string]bool) []string {
	deleted := make([]string, 0)
	for file := range s.Files {
		if !currentFiles[file] {
			deleted = append(deleted, file)
		}
	}
	sort.Strings(deleted)
	return deleted
}

func migrateState(s *State) {
	if s.Files == nil {
		s.Files = make(map[string]FileState)
	}

	if s.ParserVersion != CurrentParserVersion {
		// symbol IDs may differ between parser versions; force a full re-index
		s.Files = make(map[string]FileState)
		s.ParserVersion = CurrentParserVersion
	}
	s.Version = CurrentStateVersion
}
