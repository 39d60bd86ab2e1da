// Package archive bundles a simulation's save game, journal, scripts and
// configuration into a single .tar.gz with a checksummed manifest.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// File kinds recorded in the manifest.
const (
	KindSave    = "save"
	KindJournal = "journal"
	KindScript  = "script"
	KindLevel   = "level"
	KindConf    = "conf"
)

// Archive member names.
const (
	saveName     = "data/save.db"
	journalName  = "data/journal.db"
	scriptPrefix = "scripts"
	levelPrefix  = "level/"
	confPrefix   = "conf/"
	manifestName = "manifest.json"
)

// timeFormat is RFC 3339 with fixed nanosecond precision so that
// timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Manifest describes the contents of an archive.
type Manifest struct {
	Version   int                  `json:"version"`
	Tool      string               `json:"tool"`
	Timestamp string               `json:"timestamp"`
	World     string               `json:"world"`
	Entities  int                  `json:"entities"`
	Instances int                  `json:"instances"`
	GameClock int64                `json:"game_clock_ms"`
	Files     map[string]FileEntry `json:"files"`
}

// FileEntry describes a single file within the archive.
type FileEntry struct {
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
	Kind   string `json:"kind"`
}

// Params holds everything needed to create an archive. Empty paths and nil
// funcs are skipped.
type Params struct {
	SaveSnapshot      func(destPath string) error // Writes a consistent copy of the save store
	JournalPath       string
	JournalCheckpoint func() error // Flushes the journal WAL before the copy
	ScriptDir         string
	LevelPath         string
	ConfPath          string
	Dir               string // Output directory
	World             string
	Entities          int
	Instances         int
	GameClock         int64
}

// Create writes a .tar.gz archive into p.Dir and returns its path.
func Create(p Params) (string, error) {
	if err := os.MkdirAll(p.Dir, 0755); err != nil {
		return "", fmt.Errorf("archive: create dir %s: %w", p.Dir, err)
	}
	now := time.Now()
	archivePath := filepath.Join(p.Dir, fmt.Sprintf("arx-%s.tar.gz", now.Format("20060102-150405.000000")))

	tmpDir, err := os.MkdirTemp("", "arx-archive-*")
	if err != nil {
		return "", fmt.Errorf("archive: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	manifest := Manifest{
		Version:   1,
		Tool:      "arxscript",
		Timestamp: now.UTC().Format(timeFormat),
		World:     p.World,
		Entities:  p.Entities,
		Instances: p.Instances,
		GameClock: p.GameClock,
		Files:     make(map[string]FileEntry),
	}

	// Stage the databases first so the tar only sees stable copies.
	var saveStaged, journalStaged string
	if p.SaveSnapshot != nil {
		saveStaged = filepath.Join(tmpDir, "save.db")
		if err := p.SaveSnapshot(saveStaged); err != nil {
			return "", fmt.Errorf("archive: save snapshot: %w", err)
		}
	}
	if p.JournalPath != "" {
		if p.JournalCheckpoint != nil {
			if err := p.JournalCheckpoint(); err != nil {
				return "", fmt.Errorf("archive: journal checkpoint: %w", err)
			}
		}
		journalStaged = filepath.Join(tmpDir, "journal.db")
		if err := copyFile(p.JournalPath, journalStaged); err != nil {
			return "", fmt.Errorf("archive: copy journal: %w", err)
		}
	}

	outFile, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("archive: create %s: %w", archivePath, err)
	}
	gw := gzip.NewWriter(outFile)
	tw := tar.NewWriter(gw)

	err = writeMembers(tw, &manifest, p, saveStaged, journalStaged)
	if err == nil {
		err = writeManifest(tw, &manifest)
	}
	for _, c := range []io.Closer{tw, gw, outFile} {
		if cerr := c.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("archive: close %s: %w", archivePath, cerr)
		}
	}
	if err != nil {
		os.Remove(archivePath)
		return "", err
	}
	return archivePath, nil
}

func writeMembers(tw *tar.Writer, m *Manifest, p Params, saveStaged, journalStaged string) error {
	add := func(src, name, kind string) error {
		entry, err := addFileToTar(tw, src, name)
		if err != nil {
			return err
		}
		entry.Kind = kind
		m.Files[name] = entry
		return nil
	}

	if saveStaged != "" {
		if err := add(saveStaged, saveName, KindSave); err != nil {
			return err
		}
	}
	if journalStaged != "" {
		if err := add(journalStaged, journalName, KindJournal); err != nil {
			return err
		}
	}
	if p.ScriptDir != "" {
		if info, err := os.Stat(p.ScriptDir); err == nil && info.IsDir() {
			entries, err := addDirToTar(tw, p.ScriptDir, scriptPrefix)
			if err != nil {
				return err
			}
			for k, v := range entries {
				v.Kind = KindScript
				m.Files[k] = v
			}
		}
	}
	if p.LevelPath != "" {
		if _, err := os.Stat(p.LevelPath); err == nil {
			if err := add(p.LevelPath, levelPrefix+filepath.Base(p.LevelPath), KindLevel); err != nil {
				return err
			}
		}
	}
	if p.ConfPath != "" {
		if _, err := os.Stat(p.ConfPath); err == nil {
			if err := add(p.ConfPath, confPrefix+filepath.Base(p.ConfPath), KindConf); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeManifest adds the manifest as the last entry.
func writeManifest(tw *tar.Writer, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: marshal manifest: %w", err)
	}
	if err := tw.WriteHeader(&tar.Header{
		Name:    manifestName,
		Size:    int64(len(data)),
		Mode:    0644,
		ModTime: time.Now(),
	}); err != nil {
		return fmt.Errorf("archive: write manifest header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("archive: write manifest: %w", err)
	}
	return nil
}

// addFileToTar adds one file under archName, hashing it while it is written.
func addFileToTar(tw *tar.Writer, srcPath, archName string) (FileEntry, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: open %s: %w", srcPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: stat %s: %w", srcPath, err)
	}

	archName = strings.ReplaceAll(archName, "\\", "/")
	if err := tw.WriteHeader(&tar.Header{
		Name:    archName,
		Size:    info.Size(),
		Mode:    0644,
		ModTime: info.ModTime(),
	}); err != nil {
		return FileEntry{}, fmt.Errorf("archive: header %s: %w", archName, err)
	}

	h := sha256.New()
	written, err := io.Copy(tw, io.TeeReader(f, h))
	if err != nil {
		return FileEntry{}, fmt.Errorf("archive: write %s: %w", archName, err)
	}
	return FileEntry{SHA256: hex.EncodeToString(h.Sum(nil)), Size: written}, nil
}

// addDirToTar adds every regular file below srcDir.
func addDirToTar(tw *tar.Writer, srcDir, archPrefix string) (map[string]FileEntry, error) {
	entries := make(map[string]FileEntry)
	err := filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		archName := archPrefix + "/" + filepath.ToSlash(rel)
		entry, err := addFileToTar(tw, path, archName)
		if err != nil {
			return err
		}
		entries[archName] = entry
		return nil
	})
	return entries, err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
