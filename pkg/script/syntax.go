package script

import (
	"strconv"
	"strings"
)

// IsTimerCommand reports whether cmd is settimer or a timer<name> command.
func IsTimerCommand(cmd string) bool {
	return cmd == "settimer" || strings.HasPrefix(cmd, "timer")
}

// SplitStatement separates a statement's own arguments from a statement
// written after it on the same line: the guarded statement of if and
// random, the body of else, and the body of an armed timer.
func SplitStatement(cmd, rest string) (args, tail string) {
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(cmd) {
	case "if":
		if strings.HasPrefix(rest, "(") {
			return splitParen(rest)
		}
		return splitWords(rest, 3)
	case "random":
		if strings.HasPrefix(rest, "(") {
			return splitParen(rest)
		}
		return splitWords(rest, 1)
	case "else":
		return "", rest
	}
	if IsTimerCommand(strings.ToLower(cmd)) {
		return splitWords(rest, timerArity(strings.ToLower(cmd), rest))
	}
	return rest, ""
}

// timerArity counts the words that belong to a timer statement.
func timerArity(cmd, args string) int {
	words := Fields(args)
	i := 0
	for i < len(words) && isFlagWord(words[i]) {
		i++
	}
	if cmd == "settimer" {
		i++
	}
	if i < len(words) {
		switch strings.ToLower(words[i]) {
		case "off", "kill_local":
			return i + 1
		}
	}
	return i + 2
}

func timerCancels(cmd, args string) bool {
	words := Fields(args)
	n := timerArity(cmd, args)
	if n > len(words) {
		return true
	}
	last := strings.ToLower(words[n-1])
	return last == "off" || last == "kill_local"
}

func isFlagWord(w string) bool {
	if len(w) < 2 || w[0] != '-' {
		return false
	}
	_, err := strconv.ParseFloat(w, 64)
	return err != nil
}

func splitParen(s string) (string, string) {
	depth := 0
	quoted := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[1:i]), strings.TrimSpace(s[i+1:])
			}
		}
	}
	return strings.TrimSpace(strings.TrimPrefix(s, "(")), ""
}

func splitWords(s string, n int) (string, string) {
	pos := 0
	for k := 0; k < n; k++ {
		_, next, ok := nextWord(s, pos)
		if !ok {
			return strings.TrimSpace(s), ""
		}
		pos = next
	}
	return strings.TrimSpace(s[:pos]), strings.TrimSpace(s[pos:])
}

// Fields splits argument text into words. A double-quoted run is one word
// with the quotes removed.
func Fields(s string) []string {
	var out []string
	pos := 0
	for {
		w, next, ok := nextWord(s, pos)
		if !ok {
			return out
		}
		out = append(out, w)
		pos = next
	}
}

// nextWord reads the word starting at or after pos. It returns false when
// only whitespace remains.
func nextWord(s string, pos int) (string, int, bool) {
	for pos < len(s) && isSpace(s[pos]) {
		pos++
	}
	if pos >= len(s) {
		return "", pos, false
	}
	if s[pos] == '"' {
		end := strings.IndexByte(s[pos+1:], '"')
		if end < 0 {
			return s[pos+1:], len(s), true
		}
		return s[pos+1 : pos+1+end], pos + end + 2, true
	}
	start := pos
	for pos < len(s) && !isSpace(s[pos]) {
		pos++
	}
	return s[start:pos], pos, true
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
