package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clickwinreign/tictactoe-backend/internal/entity"
)

func TestChooseMove_WinNow(t *testing.T) {
	t.Run("Takes the winning cell when O can win immediately", func(t *testing.T) {
		// Given: O has two in the top row, cell 2 wins
		board := entity.Board{
			entity.PlayerO, entity.PlayerO, entity.EmptyCell,
			entity.PlayerX, entity.PlayerX, entity.EmptyCell,
			entity.EmptyCell, entity.EmptyCell, entity.EmptyCell,
		}

		// When: the bot chooses a move
		cell, err := ChooseMove(board)

		// Then: it should complete its own row
		require.NoError(t, err)
		assert.Equal(t, 2, cell)
	})

	t.Run("Prefers winning over blocking when both are available", func(t *testing.T) {
		// Given: X threatens to win at 2, but O can win at 5
		board := entity.Board{
			entity.PlayerX, entity.PlayerX, entity.EmptyCell,
			entity.PlayerO, entity.PlayerO, entity.EmptyCell,
			entity.EmptyCell, entity.EmptyCell, entity.EmptyCell,
		}

		// When: the bot chooses a move
		cell, err := ChooseMove(board)

		// Then: it should take its own win, not the block
		require.NoError(t, err)
		assert.Equal(t, 5, cell)
	})
}

func TestChooseMove_Block(t *testing.T) {
	t.Run("Blocks X's immediate win when O cannot win", func(t *testing.T) {
		// Given: X has two in the left column, no win for O anywhere
		board := entity.Board{
			entity.PlayerX, entity.EmptyCell, entity.EmptyCell,
			entity.PlayerX, entity.PlayerO, entity.EmptyCell,
			entity.EmptyCell, entity.EmptyCell, entity.EmptyCell,
		}

		// When: the bot chooses a move
		cell, err := ChooseMove(board)

		// Then: it should block at 6
		require.NoError(t, err)
		assert.Equal(t, 6, cell)
	})
}

func TestChooseMove_Fallback(t *testing.T) {
	t.Run("Plays some empty cell when nothing is urgent", func(t *testing.T) {
		// Given: a board with no immediate win or threat
		board := entity.Board{
			entity.PlayerX, entity.EmptyCell, entity.EmptyCell,
			entity.EmptyCell, entity.EmptyCell, entity.EmptyCell,
			entity.EmptyCell, entity.EmptyCell, entity.EmptyCell,
		}

		// When: the bot chooses a move
		cell, err := ChooseMove(board)

		// Then: the chosen cell is empty and in range
		require.NoError(t, err)
		assert.True(t, entity.IsLegalMove(board, cell))
	})

	t.Run("Returns ErrNoAvailableMoves on a full board", func(t *testing.T) {
		// Given: a completely filled board
		board := entity.Board{
			entity.PlayerX, entity.PlayerO, entity.PlayerX,
			entity.PlayerO, entity.PlayerX, entity.PlayerO,
			entity.PlayerO, entity.PlayerX, entity.PlayerO,
		}

		// When: the bot chooses a move
		_, err := ChooseMove(board)

		// Then: it should report there is nothing to play
		assert.ErrorIs(t, err, ErrNoAvailableMoves)
	})
}
