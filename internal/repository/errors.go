package repository

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user with this username or email already exists")
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomNameExists  = errors.New("room name already exists")
	ErrMessageNotFound = errors.New("message not found")
)
