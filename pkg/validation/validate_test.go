package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/westbrookdaniel/chat/pkg/models"
)

func msg(id, role, text string) models.Message {
	return models.Message{ID: id, Role: role, Parts: []models.Part{{Type: models.PartText, Text: text}}}
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Field
}

func TestValidateMessages(t *testing.T) {
	assert.NoError(t, ValidateMessages(nil))
	assert.NoError(t, ValidateMessages([]models.Message{
		msg("u0", models.RoleUser, "hi"),
		msg("a0", models.RoleAssistant, "hello"),
	}))

	err := ValidateMessages([]models.Message{msg("", models.RoleUser, "hi")})
	assert.Equal(t, "messages", fieldOf(t, err))

	err = ValidateMessages([]models.Message{
		msg("u0", models.RoleUser, "hi"),
		msg("u0", models.RoleUser, "again"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	err = ValidateMessages([]models.Message{msg("s0", "system", "nope")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")

	err = ValidateMessages([]models.Message{{ID: "u0", Role: models.RoleUser}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no parts")
}

func TestValidateChatTurn(t *testing.T) {
	ok := []models.Message{
		msg("u0", models.RoleUser, "hi"),
		msg("a0", models.RoleAssistant, "hello"),
		msg("u1", models.RoleUser, "and?"),
	}
	assert.NoError(t, ValidateChatTurn("th_1", ok))

	assert.Equal(t, "thread_id", fieldOf(t, ValidateChatTurn("", ok)))
	assert.Equal(t, "messages", fieldOf(t, ValidateChatTurn("th_1", nil)))

	endsOnAssistant := ok[:2]
	err := ValidateChatTurn("th_1", endsOnAssistant)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user turn")
}

func TestValidateCreateThread(t *testing.T) {
	assert.NoError(t, ValidateCreateThread("alice", nil))
	assert.Equal(t, "owner", fieldOf(t, ValidateCreateThread("", nil)))
	assert.Error(t, ValidateCreateThread("alice", []models.Message{msg("", models.RoleUser, "x")}))
}
