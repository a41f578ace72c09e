package chat

import "errors"

var (
	// ErrNotFound is returned when a conversation or message does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotAuthor is returned when a party other than the original author
	// attempts a delete-for-everyone.
	ErrNotAuthor = errors.New("only the author may delete for everyone")

	// ErrEmptyMessage is returned when a send carries neither text nor an
	// attachment.
	ErrEmptyMessage = errors.New("message requires text or an attachment")

	// ErrSelfConversation is returned when a user addresses themselves.
	ErrSelfConversation = errors.New("cannot start a conversation with yourself")
)
