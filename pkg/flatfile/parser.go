package flatfile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/crystal-mush/arxscript/pkg/script"
)

// Parser reads .asl script text and produces a Program.
type Parser struct {
	b    *script.Builder
	line int
}

// LoadScript reads a script from disk. The program is named after the file
// without its extension.
func LoadScript(path string) (*script.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return ParseScript(name, f)
}

// ParseScript compiles script text. Input that is not valid UTF-8 is taken
// to be in the legacy Windows-1252 encoding of .asl files.
func ParseScript(name string, r io.Reader) (*script.Program, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", name, err)
	}
	if !utf8.Valid(data) {
		data, err = charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode script %s: %w", name, err)
		}
	}

	p := &Parser{b: script.NewBuilder(strings.ToLower(name))}
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		p.line++
		p.parseLine(sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan script %s: %w", name, err)
	}
	return p.b.Build()
}

// ParseScriptString compiles script source held in a string.
func ParseScriptString(name, src string) (*script.Program, error) {
	return ParseScript(name, strings.NewReader(src))
}

func (p *Parser) parseLine(s string) {
	s = stripComment(s)
	for {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		switch {
		case s[0] == '{':
			p.b.Open(p.line)
			s = s[1:]
			continue
		case s[0] == '}':
			p.b.Close(p.line)
			s = s[1:]
			continue
		case strings.HasPrefix(s, ">>"):
			name, rest := cutWord(s[2:])
			p.b.Label(name, p.line)
			s = rest
			continue
		}

		word, rest := cutWord(s)
		if strings.EqualFold(word, "on") {
			name, rest := cutWord(rest)
			p.b.Event(name, p.line)
			s = rest
			continue
		}
		args, tail := script.SplitStatement(word, rest)
		args, braces := trailingBraces(args)
		p.b.Command(word, args, p.line)
		s = braces + " " + tail
	}
}

// cutWord splits off the first word. A '(' also ends the word so that
// "if(" and "random(" parse like their spaced forms.
func cutWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t(")
	if i < 0 {
		return s, ""
	}
	if i == 0 {
		return "", s
	}
	return s[:i], s[i:]
}

// trailingBraces moves standalone brace tokens at the end of args out so
// they become statements of their own.
func trailingBraces(args string) (string, string) {
	var braces []string
	for {
		args = strings.TrimSpace(args)
		i := strings.LastIndexAny(args, " \t")
		last := args[i+1:]
		if last != "{" && last != "}" {
			break
		}
		braces = append([]string{last}, braces...)
		if i < 0 {
			args = ""
			break
		}
		args = args[:i]
	}
	return args, strings.Join(braces, " ")
}

func stripComment(s string) string {
	quoted := false
	for i := 0; i+1 < len(s); i++ {
		switch {
		case s[i] == '"':
			quoted = !quoted
		case !quoted && s[i] == '/' && s[i+1] == '/':
			return s[:i]
		}
	}
	return s
}
