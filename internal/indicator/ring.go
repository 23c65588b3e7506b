// Copyright (c) 2024 OBI-Scalp-Bot
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package indicator

// returnWindow keeps the most recent log returns in a fixed-size circular buffer.
type returnWindow struct {
	values []float64
	size   int
	head   int // next slot to write
	count  int
}

func newReturnWindow(size int) *returnWindow {
	if size <= 0 {
		panic("return window size must be positive")
	}
	return &returnWindow{
		values: make([]float64, size),
		size:   size,
	}
}

// add stores v, overwriting the oldest value once the window is full.
func (w *returnWindow) add(v float64) {
	w.values[w.head] = v
	w.head = (w.head + 1) % w.size
	if w.count < w.size {
		w.count++
	}
}

func (w *returnWindow) full() bool {
	return w.count == w.size
}

func (w *returnWindow) reset() {
	w.head = 0
	w.count = 0
}

// chronological returns the stored values oldest first.
func (w *returnWindow) chronological() []float64 {
	result := make([]float64, w.count)
	if w.count < w.size {
		copy(result, w.values[:w.head])
		return result
	}
	copied := copy(result, w.values[w.head:])
	copy(result[copied:], w.values[:w.head])
	return result
}
