package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Info holds metadata about an existing archive file.
type Info struct {
	Path      string
	Filename  string
	Size      int64
	Timestamp string // From the manifest, or the file mod time
	World     string
	Entities  int
	GameClock int64
}

// List scans dir for .tar.gz archives, newest first.
func List(dir string) ([]Info, error) {
	pattern := filepath.Join(dir, "*.tar.gz")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("archive: glob %s: %w", pattern, err)
	}

	var out []Info
	for _, path := range matches {
		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		info := Info{
			Path:      path,
			Filename:  filepath.Base(path),
			Size:      st.Size(),
			Timestamp: st.ModTime().UTC().Format(timeFormat),
		}
		if m, err := ReadManifest(path); err == nil {
			info.Timestamp = m.Timestamp
			info.World = m.World
			info.Entities = m.Entities
			info.GameClock = m.GameClock
		}
		out = append(out, info)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp > out[j].Timestamp
		}
		return out[i].Filename > out[j].Filename
	})
	return out, nil
}

// Prune deletes all but the newest keep archives in dir and returns the
// number removed. keep <= 0 keeps everything.
func Prune(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	all, err := List(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, info := range all[min(keep, len(all)):] {
		if err := os.Remove(info.Path); err != nil {
			return removed, fmt.Errorf("archive: prune %s: %w", info.Filename, err)
		}
		removed++
	}
	return removed, nil
}

// ReadManifest reads the manifest of an archive without extracting it.
func ReadManifest(archivePath string) (*Manifest, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Name != manifestName {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return &m, nil
	}
	return nil, fmt.Errorf("archive: %s has no manifest", filepath.Base(archivePath))
}
