package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/westbrookdaniel/chat/pkg/models"
)

func seedController() *Controller {
	th := models.Thread{
		ID: "th_1",
		Messages: []models.Message{
			{ID: "u0", Role: models.RoleUser, Parts: []models.Part{{Type: models.PartText, Text: "q"}}},
			{ID: "a0", Role: models.RoleAssistant, Parts: []models.Part{{Type: models.PartText, Text: "r"}}},
		},
	}
	return NewController(&Client{}, th, Hooks{})
}

func TestEditOutOfRangeDoesNotInvoke(t *testing.T) {
	c := seedController()

	c.Edit(context.Background(), 2, "x")
	c.Edit(context.Background(), -1, "x")

	// an invocation would have moved the state machine off idle
	assert.Equal(t, StateIdle, c.StateNow())
	assert.Len(t, c.Messages(), 2)
	assert.Equal(t, "q", c.Messages()[0].Content())
}

func TestRetryOutOfRangeDoesNotInvoke(t *testing.T) {
	c := seedController()

	c.Retry(context.Background(), 2)
	c.Retry(context.Background(), -1)

	assert.Equal(t, StateIdle, c.StateNow())
	assert.Len(t, c.Messages(), 2)
}
