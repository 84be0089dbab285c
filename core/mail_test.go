package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmailMessage_Render(t *testing.T) {
	t.Run("plain body", func(t *testing.T) {
		msg := &EmailMessage{Subject: "hi", BodyStr: "plain text"}
		require.NoError(t, msg.Render("Nujoom"))
		assert.Equal(t, "plain text", msg.TextContent)
		assert.Empty(t, msg.HTMLContent)
		assert.True(t, msg.HasContent())
		assert.False(t, msg.HasRecipients())
	})

	t.Run("unknown template", func(t *testing.T) {
		msg := &EmailMessage{TemplateName: "nope"}
		assert.Error(t, msg.Render("Nujoom"))
		assert.False(t, msg.HasContent())
	})
}
