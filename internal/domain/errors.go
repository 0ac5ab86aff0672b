package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room ID does not resolve.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomNotWaiting guards joins and cancels against started rooms.
	ErrRoomNotWaiting = errors.New("room is not accepting players")
	// ErrRoomNotActive guards answer submission outside the active phase.
	ErrRoomNotActive = errors.New("room is not active")
	// ErrAlreadyJoined rejects a second join with the same address.
	ErrAlreadyJoined = errors.New("address already joined")
	// ErrIsOrganizer rejects the organizer joining their own room.
	ErrIsOrganizer = errors.New("organizer cannot participate")
	// ErrNotOrganizer rejects start/cancel/complete from non-organizers.
	ErrNotOrganizer = errors.New("only the organizer may do this")
	// ErrUnknownParticipant is returned when an address never joined.
	ErrUnknownParticipant = errors.New("participant not found in room")
	// ErrAlreadyAnswered rejects a second answer to the same question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrQuestionMismatch rejects answers for a non-current question.
	ErrQuestionMismatch = errors.New("answer does not target the current question")
	// ErrNoParticipants guards starting an empty room.
	ErrNoParticipants = errors.New("room has no participants")
	// ErrInvalidRoom covers creation-time validation failures.
	ErrInvalidRoom = errors.New("invalid room definition")
	// ErrInsufficientBalance is returned by custody when the stake
	// exceeds the organizer's balance.
	ErrInsufficientBalance = errors.New("insufficient token balance")
)
