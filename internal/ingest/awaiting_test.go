package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/gemsieve/internal/model"
)

func TestClassifyAwaitingEmptyBody(t *testing.T) {
	assert.Equal(t, model.AwaitingOther, ClassifyAwaiting("", true))
	assert.Equal(t, model.AwaitingUser, ClassifyAwaiting("   \n ", false))
}

func TestClassifyAwaitingConcludedTail(t *testing.T) {
	body := "Attached is the final report.\n\nGreat working with you.\n\nThanks!"
	assert.Equal(t, model.AwaitingNone, ClassifyAwaiting(body, false))
	assert.Equal(t, model.AwaitingNone, ClassifyAwaiting("Sounds good, will do", true))
}

func TestClassifyAwaitingConcludedBeyondTailWindow(t *testing.T) {
	// "thanks" appears more than 3 non-blank lines from the end, so the
	// question after it still governs.
	body := "Thanks for the update.\nline\nline\nline\nCan you send the invoice?"
	assert.Equal(t, model.AwaitingUser, ClassifyAwaiting(body, false))
}

func TestClassifyAwaitingQuestionFromSender(t *testing.T) {
	assert.Equal(t, model.AwaitingUser,
		ClassifyAwaiting("What does the enterprise tier cost?", false))
	assert.Equal(t, model.AwaitingUser,
		ClassifyAwaiting("Let me know if Tuesday works.", false))
}

func TestClassifyAwaitingQuestionFromUser(t *testing.T) {
	assert.Equal(t, model.AwaitingOther,
		ClassifyAwaiting("Could you share the deck before Friday?", true))
}

func TestClassifyAwaitingStatementNeedsNothing(t *testing.T) {
	assert.Equal(t, model.AwaitingNone,
		ClassifyAwaiting("We shipped the January newsletter today.", false))
	assert.Equal(t, model.AwaitingNone,
		ClassifyAwaiting("I pushed the fix to production.", true))
}

func TestClassifyAwaitingQuestionMidBody(t *testing.T) {
	body := "Are you free next week?\nMy calendar link is below.\nBest,\nSam"
	assert.Equal(t, model.AwaitingUser, ClassifyAwaiting(body, false))
}
