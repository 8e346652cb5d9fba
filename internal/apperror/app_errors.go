package apperror

import "errors"

var (
	ErrIllegalMove  = errors.New("illegal move")
	ErrGameFinished = errors.New("game is already finished")
	ErrNotYourTurn  = errors.New("it's not your turn")

	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomNotJoinable  = errors.New("room is not joinable")
	ErrSelfJoin         = errors.New("cannot join your own room")
	ErrStaleTurn        = errors.New("turn already advanced remotely")
	ErrUpdateConflict   = errors.New("concurrent update conflict")
	ErrRoomCreateFailed = errors.New("failed to create room")

	ErrNotFound = errors.New("not found")
)
