// Package shell turns an input line into the pipelines the job controller
// runs.
//
// A line is a pipeline of one or more commands separated by "|", optionally
// followed by "&" to run it in the background. Each command's words are split
// the way a POSIX shell splits them (quotes, backslash escapes) and the
// redirection operators "<", ">" and ">>" are recognised even without
// surrounding whitespace. Only unquoted operators redirect, a quoted ">" or
// one that came from a variable is an ordinary argument. Unquoted words that
// start with "$" are expanded before splitting.
package shell

import (
	"errors"
	"fmt"
	"strings"

	"github.com/anmitsu/go-shlex"
	"github.com/josephlewis42/jobsh/core/redirect"
)

// operatorMark prefixes an unquoted redirection operator so it survives word
// splitting distinguishable from a quoted one. NUL can't appear in an
// argument so no typed word carries it.
const operatorMark = "\x00"

// ErrSyntax is returned for lines that can't be parsed.
var ErrSyntax = errors.New("syntax error")

// VarFunc returns the value of a variable, or an error if it is undefined.
type VarFunc func(name string) (string, error)

// Line is a parsed input line.
type Line struct {
	// Text is the line as typed without the background marker, used to
	// describe the job.
	Text string
	// Segments holds each pipeline stage with its redirections split out.
	Segments []redirect.Command
	// Background is set when the line ended with "&".
	Background bool
}

// Empty is true if the line holds no command.
func (l *Line) Empty() bool {
	return len(l.Segments) == 0
}

// Name returns the program name of the first stage.
func (l *Line) Name() string {
	if l.Empty() || len(l.Segments[0].Args) == 0 {
		return ""
	}
	return l.Segments[0].Args[0]
}

func syntaxError(token string) error {
	return fmt.Errorf("%w near unexpected token `%s'", ErrSyntax, token)
}

// Parse splits a line into pipeline segments. Variables are expanded with
// vars, a nil vars leaves them as typed.
func Parse(line string, vars VarFunc) (*Line, error) {
	text := strings.TrimSpace(line)
	out := &Line{Text: text}
	if strings.Contains(text, operatorMark) {
		return nil, fmt.Errorf("%w: NUL byte in input", ErrSyntax)
	}

	var (
		segments  []string
		cur       strings.Builder
		quote     byte
		wordStart = true
	)

	for i := 0; i < len(text); i++ {
		c := text[i]
		nextWordStart := false

		switch {
		case quote == '\'':
			cur.WriteByte(c)
			if c == '\'' {
				quote = 0
			}

		case c == '\\':
			cur.WriteByte(c)
			if i+1 < len(text) {
				i++
				cur.WriteByte(text[i])
			}

		case quote == '"':
			cur.WriteByte(c)
			if c == '"' {
				quote = 0
			}

		case c == '\'' || c == '"':
			quote = c
			cur.WriteByte(c)

		case c == '|':
			segments = append(segments, cur.String())
			cur.Reset()
			nextWordStart = true

		case c == '&':
			rest := strings.TrimSpace(text[i+1:])
			if rest != "" {
				return nil, syntaxError(firstToken(rest))
			}
			out.Background = true
			out.Text = strings.TrimSpace(text[:i])
			i = len(text)

		case c == '<' || c == '>':
			cur.WriteByte(' ')
			cur.WriteString(operatorMark)
			cur.WriteByte(c)
			if c == '>' && i+1 < len(text) && text[i+1] == '>' {
				i++
				cur.WriteByte('>')
			}
			cur.WriteByte(' ')
			nextWordStart = true

		case c == '$' && wordStart && vars != nil:
			end := varEnd(text, i+1)
			if end == i+1 {
				cur.WriteByte(c)
				break
			}
			val, err := vars(text[i+1 : end])
			if err != nil {
				return nil, err
			}
			if strings.Contains(val, operatorMark) {
				return nil, fmt.Errorf("%w: NUL byte in $%s", ErrSyntax, text[i+1:end])
			}
			cur.WriteString(singleQuote(val))
			i = end - 1

		default:
			cur.WriteByte(c)
			nextWordStart = c == ' ' || c == '\t'
		}

		wordStart = nextWordStart
	}
	segments = append(segments, cur.String())

	if len(segments) == 1 && strings.TrimSpace(segments[0]) == "" {
		if out.Background {
			return nil, syntaxError("&")
		}
		return out, nil
	}

	for _, segment := range segments {
		words, err := shlex.Split(segment, true)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		if len(words) == 0 {
			return nil, syntaxError("|")
		}
		cmd, err := command(words)
		if err != nil {
			return nil, err
		}
		out.Segments = append(out.Segments, cmd)
	}

	return out, nil
}

// command separates marked operators and their targets from the arguments.
func command(words []string) (redirect.Command, error) {
	var cmd redirect.Command
	for i := 0; i < len(words); i++ {
		op, marked := operator(words[i])
		if !marked {
			cmd.Args = append(cmd.Args, words[i])
			continue
		}
		if i+1 == len(words) {
			return cmd, syntaxError("newline")
		}
		if next, ok := operator(words[i+1]); ok {
			return cmd, syntaxError(next)
		}
		i++
		cmd.Redirections = append(cmd.Redirections, redirect.Redirection{Op: op, Target: words[i]})
	}
	return cmd, nil
}

func operator(word string) (string, bool) {
	if !strings.HasPrefix(word, operatorMark) {
		return "", false
	}
	return strings.TrimPrefix(word, operatorMark), true
}

// varEnd returns the index just past the variable name starting at start.
// A positional parameter is a single digit.
func varEnd(s string, start int) int {
	if start < len(s) && isDigit(s[start]) {
		return start + 1
	}
	end := start
	for end < len(s) && isNameByte(s[end]) {
		end++
	}
	return end
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isNameByte(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// singleQuote quotes s so the word splitter keeps it as literal text.
func singleQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func firstToken(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return s
}
