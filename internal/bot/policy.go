package bot

import (
	"errors"
	"math/rand"

	"github.com/clickwinreign/tictactoe-backend/internal/entity"
)

var ErrNoAvailableMoves = errors.New("no available moves")

// ChooseMove - picks the bot's cell, playing O. Rules are tried in order and
// the first applicable one wins:
//  1. take a cell that wins the game for O right now
//  2. block a cell that would let X win next turn
//  3. pick a random empty cell
//
// The bot never looks further than one ply ahead.
func ChooseMove(board entity.Board) (int, error) {
	available := entity.EmptyCells(board)
	if len(available) == 0 {
		return 0, ErrNoAvailableMoves
	}

	if cell, ok := winningCell(board, entity.PlayerO, available); ok {
		return cell, nil
	}

	if cell, ok := winningCell(board, entity.PlayerX, available); ok {
		return cell, nil
	}

	return available[rand.Intn(len(available))], nil //nolint: gosec // it's ok
}

// winningCell - the first empty cell that completes a line for mark.
func winningCell(board entity.Board, mark string, available []int) (int, bool) {
	for _, cell := range available {
		probe := board
		probe[cell] = mark
		if winner, _, ok := entity.WinnerOf(probe); ok && winner == mark {
			return cell, true
		}
	}

	return 0, false
}
