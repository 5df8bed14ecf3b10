package memory

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/petasbytes/go-chat/internal/safety"
)

// DefaultPath is the state file used when none is configured.
const DefaultPath = ".conversation_id"

// State is the conversation carried from one invocation to the next.
// The zero State means no prior conversation.
type State struct {
	Handle string
}

// Continues reports whether s links the next request to a prior exchange.
func (s State) Continues() bool { return s.Handle != "" }

// Store reads and writes State at a single path.
type Store struct {
	path string
	log  *log.Logger
}

// NewStore returns a store for path. Non-fatal read problems are reported on warn.
func NewStore(path string, warn io.Writer) *Store {
	if warn == nil {
		warn = io.Discard
	}
	return &Store{path: path, log: log.New(warn, "warning: ", 0)}
}

// OpenStore confines path to the working directory root and returns a store for it.
func OpenStore(root, path string, warn io.Writer) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	abs, err := safety.ValidateFilePath(root, path)
	if err != nil {
		return nil, fmt.Errorf("state file %s: %w", path, err)
	}
	return NewStore(abs, warn), nil
}

// Path returns the file backing the store.
func (s *Store) Path() string { return s.path }

// Load returns the persisted state, or the zero State when there is none.
func (s *Store) Load() State {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Printf("could not read conversation state, starting fresh: %v", err)
		}
		return State{}
	}
	return State{Handle: strings.TrimSpace(string(b))}
}

// Save overwrites the persisted state with st.
func (s *Store) Save(st State) error {
	if st.Handle == "" {
		return errors.New("save conversation state: empty handle")
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save conversation state: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("save conversation state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(st.Handle); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save conversation state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save conversation state: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save conversation state: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save conversation state: %w", err)
	}
	return nil
}

// Clear deletes the persisted state. It reports whether a file was removed.
func (s *Store) Clear() (bool, error) {
	err := os.Remove(s.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("clear conversation state: %w", err)
}
