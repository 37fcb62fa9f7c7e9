package main

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// terminalKeys converts raw terminal input into hotkey names.
func terminalKeys(b []byte) []string {
	var keys []string
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case c == 0x1B && i+2 < len(b) && b[i+1] == '[':
			switch b[i+2] {
			case 'A':
				keys = append(keys, "Up")
			case 'B':
				keys = append(keys, "Down")
			}
			i += 2
		case c == 0x03: // Ctrl-C
			keys = append(keys, "Q")
		case c == '=':
			keys = append(keys, "+")
		case c >= 'a' && c <= 'z':
			keys = append(keys, string(c-'a'+'A'))
		case c > ' ' && c < 0x7F:
			keys = append(keys, string(c))
		}
	}
	return keys
}

// Terminal reads hotkeys from stdin in raw mode.
type Terminal struct {
	fd       int
	oldState *term.State
	out      io.Writer
}

// OpenTerminal switches stdin to raw mode. It returns nil when stdin is not
// a terminal.
func OpenTerminal() (*Terminal, error) {
	fd := int(os.Stdin.Fd()) // #nosec G115 -- file descriptors fit in int
	if !term.IsTerminal(fd) {
		return nil, nil
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("failed to enter raw mode: %w", err)
	}
	return &Terminal{fd: fd, oldState: oldState, out: os.Stdout}, nil
}

// Keys starts reading stdin and sends the names of pressed keys.
func (t *Terminal) Keys() <-chan string {
	ch := make(chan string, 16)
	go func() {
		buf := make([]byte, 16)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				close(ch)
				return
			}
			for _, k := range terminalKeys(buf[:n]) {
				ch <- k
			}
		}
	}()
	return ch
}

// Status overwrites the current line with s.
func (t *Terminal) Status(s string) {
	fmt.Fprintf(t.out, "\r\033[K%s", s)
}

// Restore returns the terminal to its original mode.
func (t *Terminal) Restore() {
	_ = term.Restore(t.fd, t.oldState)
	fmt.Fprint(t.out, "\r\n")
}
