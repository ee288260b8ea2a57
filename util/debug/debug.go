/*
 * rvchain - Masked debug logging.
 *
 * Copyright 2024, Richard Cornwell
 * Copyright 2026, rvchain authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package debug provides the same mask-and-level gated trace calls the
// original device debug log used, rebuilt on top of log/slog instead of a
// dedicated debug file registered through a config parser.
package debug

import (
	"context"
	"fmt"
	"log/slog"
)

// Mask bits select which subsystem a trace call belongs to; a zero Option
// mask means the call is always suppressed.
const (
	Decode  = 1 << iota // instruction decode
	Exec                // instruction execution
	Trap                // traps/interrupts
	MMU                 // address translation
	Bus                 // bus/device dispatch
	HostIO              // host syscall boundary
)

var (
	logger *slog.Logger
	enable int
)

// Init sets the logger traces are written to and the enabled mask. Called
// once at startup from main; a nil logger disables tracing entirely.
func Init(l *slog.Logger, mask int) {
	logger = l
	enable = mask
}

// Tracef logs a formatted trace message at debug level under the given
// mask, if both that mask bit and an active logger are set; a logger whose
// handler level is above debug drops it.
func Tracef(mask int, format string, a ...any) {
	if logger == nil || enable&mask == 0 {
		return
	}
	logger.Log(context.Background(), slog.LevelDebug, fmt.Sprintf(format, a...))
}
