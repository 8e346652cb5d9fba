package entity

const (
	PlayerX = "X"
	PlayerO = "O"

	EmptyCell = ""

	BoardSize = 9
)

// WinLines - the 8 winning triples, checked in this exact order:
// rows, then columns, then diagonals.
var WinLines = [8][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Board - the 9 cells of a game, each EmptyCell, PlayerX or PlayerO.
type Board [BoardSize]string

func NewBoard() Board {
	return Board{}
}

// WinnerOf - returns the winning mark and its line. When more than one line
// is complete the earliest one in WinLines order wins.
func WinnerOf(board Board) (string, [3]int, bool) {
	for _, line := range WinLines {
		a, b, c := board[line[0]], board[line[1]], board[line[2]]
		if a != EmptyCell && a == b && b == c {
			return a, line, true
		}
	}

	return "", [3]int{}, false
}

// IsLegalMove - reports whether the cell may be played. Turn ownership is
// checked by callers, not here.
func IsLegalMove(board Board, position int) bool {
	if position < 0 || position >= BoardSize {
		return false
	}

	return board[position] == EmptyCell
}

// IsDraw - true only for a full board with no winner.
func IsDraw(board Board) bool {
	if _, _, ok := WinnerOf(board); ok {
		return false
	}

	for _, cell := range board {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}

// IsTerminal - true when the board has a winner or is drawn.
func IsTerminal(board Board) bool {
	if _, _, ok := WinnerOf(board); ok {
		return true
	}

	return IsDraw(board)
}

// EmptyCells - indexes of all playable cells, ascending.
func EmptyCells(board Board) []int {
	cells := make([]int, 0, BoardSize)
	for i, cell := range board {
		if cell == EmptyCell {
			cells = append(cells, i)
		}
	}

	return cells
}

// ToggleMark - X becomes O and O becomes X.
func ToggleMark(mark string) string {
	if mark == PlayerX {
		return PlayerO
	}

	return PlayerX
}
