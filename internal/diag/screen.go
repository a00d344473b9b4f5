package diag

import (
	"strings"
	"sync"
)

const (
	// Columns and Rows are the text-mode grid bounds.
	Columns = 80
	Rows    = 25
)

// Attr is a text-mode colour attribute (foreground in the low nibble, background in the high).
type Attr uint8

// DefaultAttr is light grey on black.
const DefaultAttr Attr = 0x07

// Cell is one character position on the screen.
type Cell struct {
	Char byte
	Attr Attr
}

// Screen is an 80x25 character grid written at a sequential cursor. Writing past the
// last column moves to the next row; moving past the last row wraps to row 0 without
// scrolling.
type Screen struct {
	mu     sync.RWMutex
	cells  [Rows * Columns]Cell
	cursor struct{ x, y int }
}

// NewScreen returns a cleared screen.
func NewScreen() *Screen {
	s := &Screen{}
	s.Clear()
	return s
}

// Clear fills the grid with blanks in the default attribute. The cursor is left where it is.
func (s *Screen) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cells {
		s.cells[i] = Cell{Char: ' ', Attr: DefaultAttr}
	}
}

// Home moves the cursor to the top left corner.
func (s *Screen) Home() {
	s.mu.Lock()
	s.cursor.x, s.cursor.y = 0, 0
	s.mu.Unlock()
}

func (s *Screen) putChar(c byte, attr Attr) {
	if c == '\n' {
		s.newline()
		return
	}
	s.cells[s.cursor.y*Columns+s.cursor.x] = Cell{Char: c, Attr: attr}
	s.cursor.x++
	if s.cursor.x >= Columns {
		s.newline()
	}
}

func (s *Screen) newline() {
	s.cursor.x = 0
	s.cursor.y++
	if s.cursor.y >= Rows {
		s.cursor.y = 0
	}
}

// Print writes text in the default attribute.
func (s *Screen) Print(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < len(text); i++ {
		s.putChar(text[i], DefaultAttr)
	}
}

// SetCell writes directly to a grid position without moving the cursor.
// Out-of-range positions are ignored.
func (s *Screen) SetCell(row, col int, c Cell) {
	if row < 0 || row >= Rows || col < 0 || col >= Columns {
		return
	}
	s.mu.Lock()
	s.cells[row*Columns+col] = c
	s.mu.Unlock()
}

// Cell returns the cell at row, col. ok is false, with a zero Cell, for out-of-range positions.
func (s *Screen) Cell(row, col int) (c Cell, ok bool) {
	if row < 0 || row >= Rows || col < 0 || col >= Columns {
		return Cell{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cells[row*Columns+col], true
}

// Cursor returns the current cursor row and column.
func (s *Screen) Cursor() (row, col int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor.y, s.cursor.x
}

func (s *Screen) row(n int) string {
	var b strings.Builder
	for _, c := range s.cells[n*Columns : (n+1)*Columns] {
		b.WriteByte(c.Char)
	}
	return strings.TrimRight(b.String(), " ")
}

// Lines returns every row, trimmed. Trailing empty rows are dropped.
func (s *Screen) Lines() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lines := make([]string, Rows)
	last := -1
	for i := range lines {
		lines[i] = s.row(i)
		if lines[i] != "" {
			last = i
		}
	}
	return lines[:last+1]
}
