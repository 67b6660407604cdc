package utils

import "github.com/google/uuid"

// GenThreadID returns a new unique thread identifier.
func GenThreadID() string {
	return "th_" + uuid.NewString()
}

// GenMessageID returns a new unique message identifier.
func GenMessageID() string {
	return "msg_" + uuid.NewString()
}
