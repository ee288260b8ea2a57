/*
Package console wires the host terminal to a guest UART device: raw mode
via golang.org/x/term so keystrokes reach the guest unbuffered and
un-echoed, and a background reader so emu/uart's Load never blocks on
host input (grounded on SchawnnDev-awesomeVM's and tinyrange-cc's use of
golang.org/x/term for the same raw-keyboard-passthrough problem).

This replaces the teacher's telnet/ package for this engine's purposes:
telnet.go implements full RFC 854 option negotiation and 3270 terminal-type
detection for a multi-user dial-in S/370 console, machinery this engine
has no use for since its one guest UART talks to the single local host
process that embeds it, not a pool of remote telnet clients (see
DESIGN.md).

Copyright 2026, rvchain authors
*/
package console

import (
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Host connects a guest UART to the process's own stdin/stdout, putting
// stdin into raw mode for the duration so ^C, backspace, and friends pass
// through to the guest instead of being line-edited by the host shell.
type Host struct {
	in    *nonBlockingReader
	out   io.Writer
	state *term.State
	fd    int
}

// Open starts relaying os.Stdin/os.Stdout to a guest UART. Call Close to
// restore the host terminal's original mode. If stdin is not a terminal
// (e.g. piped input, or running under a test harness), raw mode is
// skipped and input is relayed as plain buffered reads.
func Open() (*Host, error) {
	fd := int(os.Stdin.Fd())
	h := &Host{out: os.Stdout, fd: fd, in: newNonBlockingReader(os.Stdin)}
	if term.IsTerminal(fd) {
		state, err := term.MakeRaw(fd)
		if err != nil {
			return nil, err
		}
		h.state = state
	}
	return h, nil
}

// In satisfies the io.Reader emu/uart.UART expects: it never blocks,
// returning (0, nil) when no byte is currently available.
func (h *Host) In() io.Reader { return h.in }

// Out satisfies the io.Writer emu/uart.UART expects.
func (h *Host) Out() io.Writer { return h.out }

// Close restores the host terminal to its original (cooked) mode.
func (h *Host) Close() error {
	h.in.stop()
	if h.state != nil {
		return term.Restore(h.fd, h.state)
	}
	return nil
}

// nonBlockingReader drains an underlying blocking reader on its own
// goroutine into a small buffered channel, so Read can report "nothing
// yet" instead of blocking the emulator's single-threaded run loop.
type nonBlockingReader struct {
	ch   chan byte
	done chan struct{}
	once sync.Once
}

func newNonBlockingReader(r io.Reader) *nonBlockingReader {
	nr := &nonBlockingReader{ch: make(chan byte, 256), done: make(chan struct{})}
	go nr.pump(r)
	return nr
}

func (nr *nonBlockingReader) pump(r io.Reader) {
	var buf [1]byte
	for {
		n, err := r.Read(buf[:])
		if n == 1 {
			select {
			case nr.ch <- buf[0]:
			case <-nr.done:
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (nr *nonBlockingReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	select {
	case b := <-nr.ch:
		p[0] = b
		return 1, nil
	default:
		return 0, nil
	}
}

func (nr *nonBlockingReader) stop() {
	nr.once.Do(func() { close(nr.done) })
}
