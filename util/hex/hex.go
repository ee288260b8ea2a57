/*
 * rvchain - Convert hex to strings.
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

// Package hex renders the 64-bit registers and memory words the debugger
// and trace log print, in the fixed-width digit-group style of the
// original 32/16-bit formatter this was grown from.
package hex

import "strings"

var hexMap = "0123456789abcdef"

// FormatReg64 writes a zero-padded 16-hex-digit register value.
func FormatReg64(str *strings.Builder, v uint64) {
	shift := 60
	for range 16 {
		str.WriteByte(hexMap[(v>>uint(shift))&0xf])
		shift -= 4
	}
}

// FormatWords writes each of words as a space-separated 16-digit value.
func FormatWords(str *strings.Builder, words []uint64) {
	for i, w := range words {
		if i > 0 {
			str.WriteByte(' ')
		}
		FormatReg64(str, w)
	}
}

// FormatBytes writes data as hex byte pairs, space-separated if space.
func FormatBytes(str *strings.Builder, space bool, data []byte) {
	for i, b := range data {
		if space && i > 0 {
			str.WriteByte(' ')
		}
		str.WriteByte(hexMap[(b>>4)&0xf])
		str.WriteByte(hexMap[b&0xf])
	}
}

// FormatByte writes a single hex byte pair.
func FormatByte(str *strings.Builder, data byte) {
	str.WriteByte(hexMap[(data>>4)&0xf])
	str.WriteByte(hexMap[data&0xf])
}
