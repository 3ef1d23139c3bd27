package models

import "time"

// RawFile is the latest raw CSV selected for one indicator.
type RawFile struct {
	Indicator Indicator
	Path      string
	Name      string
	Stamp     time.Time // parsed from the file name
}

// Manifest maps each catalog indicator to the raw file consumed by a run.
// It is built once per run and only read afterwards.
type Manifest struct {
	dir     string
	builtAt time.Time
	files   map[string]RawFile
}

func NewManifest(dir string, builtAt time.Time, files []RawFile) *Manifest {
	m := &Manifest{dir: dir, builtAt: builtAt, files: make(map[string]RawFile, len(files))}
	for _, f := range files {
		m.files[f.Indicator.Prefix] = f
	}
	return m
}

func (m *Manifest) Dir() string        { return m.dir }
func (m *Manifest) BuiltAt() time.Time { return m.builtAt }
func (m *Manifest) Len() int           { return len(m.files) }

// Lookup returns the raw file for an indicator prefix.
func (m *Manifest) Lookup(prefix string) (RawFile, bool) {
	f, ok := m.files[prefix]
	return f, ok
}

// Files returns the entries in catalog order.
func (m *Manifest) Files() []RawFile {
	out := make([]RawFile, 0, len(m.files))
	for _, ind := range catalog {
		if f, ok := m.files[ind.Prefix]; ok {
			out = append(out, f)
		}
	}
	return out
}

// ArchiveRecord is one raw file moved to the archive.
type ArchiveRecord struct {
	Indicator    string    `json:"indicator"`
	SourcePath   string    `json:"source_path"`
	ArchivedPath string    `json:"archived_path"`
	MovedAt      time.Time `json:"moved_at"`
}
