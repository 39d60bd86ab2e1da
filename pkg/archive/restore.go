package archive

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// RestoreParams selects where the parts of an archive go. Empty
// destinations are skipped.
type RestoreParams struct {
	ArchivePath string
	SaveDest    string
	JournalDest string
	ScriptDest  string    // Directory
	LevelDest   string    // File
	ConfDest    string    // File
	Stdin       io.Reader // Answers for the config prompt; nil keeps changed files
	Stdout      io.Writer
}

// RestoreResult summarizes a completed restore.
type RestoreResult struct {
	Manifest      *Manifest
	FilesRestored int
	Warnings      []string
}

// Restore extracts an archive, verifies every checksum and copies the
// parts to their destinations. The save game and journal are replaced;
// a level or config file that differs from the archived one is only
// replaced when the user answers the prompt with U.
func Restore(p RestoreParams) (*RestoreResult, error) {
	tmpDir, err := os.MkdirTemp("", "arx-restore-*")
	if err != nil {
		return nil, fmt.Errorf("restore: create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	if err := extract(p.ArchivePath, tmpDir); err != nil {
		return nil, fmt.Errorf("restore: extract: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, manifestName))
	if err != nil {
		return nil, fmt.Errorf("restore: %s has no manifest", filepath.Base(p.ArchivePath))
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("restore: parse manifest: %w", err)
	}
	for name, entry := range manifest.Files {
		ok, err := validateChecksum(filepath.Join(tmpDir, filepath.FromSlash(name)), entry.SHA256)
		if err != nil {
			return nil, fmt.Errorf("restore: checksum %s: %w", name, err)
		}
		if !ok {
			return nil, fmt.Errorf("restore: checksum mismatch for %s, archive may be corrupt", name)
		}
	}

	result := &RestoreResult{Manifest: &manifest}
	for _, f := range []struct{ src, dest string }{
		{saveName, p.SaveDest},
		{journalName, p.JournalDest},
	} {
		src := filepath.Join(tmpDir, filepath.FromSlash(f.src))
		if _, err := os.Stat(src); err != nil || f.dest == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f.dest), 0755); err != nil {
			return nil, fmt.Errorf("restore: create dir for %s: %w", f.dest, err)
		}
		if err := copyFile(src, f.dest); err != nil {
			return nil, fmt.Errorf("restore: copy %s: %w", f.src, err)
		}
		result.FilesRestored++
	}

	scriptSrc := filepath.Join(tmpDir, scriptPrefix)
	if info, err := os.Stat(scriptSrc); err == nil && info.IsDir() && p.ScriptDest != "" {
		n, err := copyDir(scriptSrc, p.ScriptDest)
		if err != nil {
			return nil, fmt.Errorf("restore: copy scripts: %w", err)
		}
		result.FilesRestored += n
	}

	for _, f := range []struct{ dir, dest string }{
		{levelPrefix, p.LevelDest},
		{confPrefix, p.ConfDest},
	} {
		if f.dest == "" {
			continue
		}
		src := filepath.Join(tmpDir, filepath.FromSlash(f.dir), filepath.Base(f.dest))
		if _, err := os.Stat(src); err != nil {
			continue
		}
		action, err := promptReplace(src, f.dest, p.Stdin, p.Stdout)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("prompt for %s: %v", f.dest, err))
			continue
		}
		switch action {
		case 'U':
			if err := os.MkdirAll(filepath.Dir(f.dest), 0755); err != nil {
				return nil, fmt.Errorf("restore: create dir for %s: %w", f.dest, err)
			}
			if err := copyFile(src, f.dest); err != nil {
				return nil, fmt.Errorf("restore: copy %s: %w", f.dest, err)
			}
			result.FilesRestored++
		case 'K':
			result.Warnings = append(result.Warnings, fmt.Sprintf("kept current %s", f.dest))
		}
	}
	return result, nil
}

// extract unpacks a .tar.gz into destDir.
func extract(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gr.Close()

	root := filepath.Clean(destDir) + string(os.PathSeparator)
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		target := filepath.Join(destDir, filepath.FromSlash(hdr.Name))
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("invalid archive entry: %s", hdr.Name)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.Create(target)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
		}
	}
}

func validateChecksum(path, expected string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	return hex.EncodeToString(h.Sum(nil)) == expected, nil
}

// promptReplace decides what to do with an archived file whose
// destination exists: 'U' use the archived copy, 'K' keep the current
// one, 'S' skip because they are identical.
func promptReplace(src, dest string, stdin io.Reader, stdout io.Writer) (byte, error) {
	if _, err := os.Stat(dest); errors.Is(err, os.ErrNotExist) {
		return 'U', nil
	}
	srcData, err := os.ReadFile(src)
	if err != nil {
		return 0, err
	}
	destData, err := os.ReadFile(dest)
	if err != nil {
		return 0, err
	}
	if bytes.Equal(srcData, destData) {
		return 'S', nil
	}
	if stdin == nil {
		return 'K', nil
	}
	if stdout == nil {
		stdout = io.Discard
	}

	name := filepath.Base(dest)
	scanner := bufio.NewScanner(stdin)
	for {
		fmt.Fprintf(stdout, "\n%s differs from the archived copy.\n", name)
		fmt.Fprintf(stdout, "[K]eep current  [U]se archived  [D]iff: ")
		if !scanner.Scan() {
			return 'K', nil
		}
		input := strings.ToUpper(strings.TrimSpace(scanner.Text()))
		if input == "" {
			continue
		}
		switch input[0] {
		case 'K', 'U':
			return input[0], nil
		case 'D':
			simpleDiff(string(destData), string(srcData), stdout)
		default:
			fmt.Fprintf(stdout, "Please enter K, U or D.\n")
		}
	}
}

// simpleDiff prints the lines that differ between the current and the
// archived content, position by position.
func simpleDiff(current, archived string, w io.Writer) {
	curLines := strings.Split(current, "\n")
	arcLines := strings.Split(archived, "\n")

	fmt.Fprintf(w, "\n--- current\n+++ archived\n")
	for i := 0; i < max(len(curLines), len(arcLines)); i++ {
		var cur, arc string
		if i < len(curLines) {
			cur = curLines[i]
		}
		if i < len(arcLines) {
			arc = arcLines[i]
		}
		if cur == arc {
			continue
		}
		if i < len(curLines) {
			fmt.Fprintf(w, "- %s\n", cur)
		}
		if i < len(arcLines) {
			fmt.Fprintf(w, "+ %s\n", arc)
		}
	}
	fmt.Fprintln(w)
}

// copyDir copies every regular file below src into dst and returns the
// number copied.
func copyDir(src, dst string) (int, error) {
	count := 0
	err := filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		destPath := filepath.Join(dst, rel)
		if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
			return err
		}
		if err := copyFile(path, destPath); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}
