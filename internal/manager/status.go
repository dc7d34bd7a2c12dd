package manager

import "fmt"

// Phase is the lifecycle stage of the primary index.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseInitializing
	PhaseReady
	PhaseFailed
)

var phaseNames = [...]string{"not_started", "initializing", "ready", "failed"}

func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Status reports indexing progress. Progress fields are set while
// initializing; Reason is set when failed.
type Status struct {
	Phase          Phase  `json:"phase"`
	FilesProcessed int    `json:"files_processed,omitempty"`
	TotalFiles     int    `json:"total_files,omitempty"`
	CurrentFile    string `json:"current_file,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

func (s Status) String() string {
	switch s.Phase {
	case PhaseInitializing:
		return fmt.Sprintf("initializing %d/%d %s", s.FilesProcessed, s.TotalFiles, s.CurrentFile)
	case PhaseFailed:
		return "failed: " + s.Reason
	}
	return s.Phase.String()
}

// Status returns the current lifecycle status. Queries are served in every
// phase with whatever has been indexed.
func (m *Manager) Status() Status {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	return m.status
}

func (m *Manager) setStatus(s Status) {
	m.statusMu.Lock()
	m.status = s
	m.statusMu.Unlock()
}

func (m *Manager) progress(processed, total int, current string) {
	m.statusMu.Lock()
	if m.status.Phase == PhaseInitializing && processed >= m.status.FilesProcessed {
		m.status.FilesProcessed = processed
		m.status.TotalFiles = total
		m.status.CurrentFile = current
	}
	m.statusMu.Unlock()
}
