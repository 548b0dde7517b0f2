package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// shell puts stdin into raw mode (when it is a terminal) and exposes a
// line-oriented io.Reader with arrow-key history recall, so
// pkg/debugger.Debugger's bufio.Scanner-based command loop gets a proper
// line-editing experience without needing to know raw mode exists.
// Grounded on cmd/repl/main.go's readLineWithHistory: same
// escape-sequence handling for up/down/left/right, backspace and
// Ctrl-C/Ctrl-D, ported from a single long-lived REPL loop into a
// reader goroutine feeding an io.Pipe.
type shell struct {
	oldState *term.State
	raw      bool

	pr *io.PipeReader
	pw *io.PipeWriter

	history      []string
	historyIndex int
}

// newShell puts the terminal into raw mode (if stdin is one) and starts
// the reader goroutine. Callers must call restore() when done.
func newShell() (*shell, error) {
	sh := &shell{}
	sh.pr, sh.pw = io.Pipe()

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return nil, fmt.Errorf("zxdbg: entering raw mode: %w", err)
		}
		sh.oldState = old
		sh.raw = true
	}

	go sh.readLoop()
	return sh, nil
}

// inputReader is the io.Reader to hand to debugger.Config.Input: lines
// the user enters (with history recall already resolved) arrive
// newline-terminated, exactly as a non-raw bufio.Scanner would see them.
func (s *shell) inputReader() io.Reader { return s.pr }

func (s *shell) restore() {
	if s.raw {
		_ = term.Restore(int(os.Stdin.Fd()), s.oldState)
	}
	_ = s.pw.Close()
}

func (s *shell) readLoop() {
	if !s.raw {
		// Not a terminal (piped input, test harness): pass bytes through
		// unedited, matching cmd/repl's non-terminal fallback.
		_, _ = io.Copy(s.pw, os.Stdin)
		return
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		line, ok := s.readLine(reader)
		if !ok {
			_ = s.pw.Close()
			return
		}
		if _, err := fmt.Fprintln(s.pw, line); err != nil {
			return
		}
	}
}

// readLine reads one edited line from the raw terminal, echoing input
// and handling the escape sequences cmd/repl's readLineWithHistory
// recognizes: Up/Down recall history, Left/Right move the cursor,
// Backspace deletes, Enter submits, Ctrl-C aborts the line, Ctrl-D on an
// empty line signals EOF.
func (s *shell) readLine(r *bufio.Reader) (string, bool) {
	fmt.Print("dbg> ")

	var line []rune
	cursor := 0
	s.historyIndex = len(s.history)

	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", false
		}

		switch {
		case b == 27: // ESC sequence
			b2, err := r.ReadByte()
			if err != nil || b2 != '[' {
				continue
			}
			b3, err := r.ReadByte()
			if err != nil {
				continue
			}
			switch b3 {
			case 'A':
				s.recallHistory(-1, &line, &cursor)
			case 'B':
				s.recallHistory(1, &line, &cursor)
			case 'C':
				if cursor < len(line) {
					fmt.Print("\033[1C")
					cursor++
				}
			case 'D':
				if cursor > 0 {
					fmt.Print("\033[1D")
					cursor--
				}
			}

		case b == 13 || b == 10: // Enter
			fmt.Print("\r\n")
			result := string(line)
			if result != "" && (len(s.history) == 0 || s.history[len(s.history)-1] != result) {
				s.history = append(s.history, result)
			}
			return result, true

		case b == 3: // Ctrl-C
			fmt.Print("^C\r\n")
			return "", true

		case b == 4: // Ctrl-D
			if len(line) == 0 {
				return "", false
			}

		case b == 127 || b == 8: // Backspace
			if cursor > 0 && len(line) > 0 {
				line = append(line[:cursor-1], line[cursor:]...)
				cursor--
				fmt.Print("\033[1D\033[K")
				fmt.Print(string(line[cursor:]))
				if len(line) > cursor {
					fmt.Printf("\033[%dD", len(line)-cursor)
				}
			}

		case b >= 32 && b < 127: // Printable
			ch := rune(b)
			if cursor == len(line) {
				line = append(line, ch)
			} else {
				line = append(line[:cursor+1], line[cursor:]...)
				line[cursor] = ch
			}
			fmt.Print(string(line[cursor:]))
			cursor++
			if len(line) > cursor {
				fmt.Printf("\033[%dD", len(line)-cursor)
			}
		}
	}
}

// recallHistory moves historyIndex by delta (-1 for Up, +1 for Down),
// clamped to [0, len(history)], replacing the in-progress line with the
// recalled entry (or an empty line past the end of history).
func (s *shell) recallHistory(delta int, line *[]rune, cursor *int) {
	newIndex := s.historyIndex + delta
	if newIndex < 0 || newIndex > len(s.history) {
		return
	}

	s.clearLine(len(*line), *cursor)
	s.historyIndex = newIndex

	if s.historyIndex == len(s.history) {
		*line = nil
		*cursor = 0
		return
	}

	*line = []rune(s.history[s.historyIndex])
	*cursor = len(*line)
	fmt.Print(string(*line))
}

func (s *shell) clearLine(lineLen, cursor int) {
	if cursor > 0 {
		fmt.Printf("\033[%dD", cursor)
	}
	fmt.Print("\033[K")
	_ = lineLen
}
