package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/imigraflow/internal/config"
)

func TestAlternate(t *testing.T) {
	img := Attachment{MIMEType: "image/png", Data: []byte{1, 2}}
	turns := []Turn{
		{Role: RoleModel, Text: "Bem-vindo"},
		{Role: RoleUser, Text: "oi"},
		{Role: RoleUser, Text: ""},
		{Role: RoleSystem, Text: "[SYSTEM TRIGGER: passo 1]"},
		{Role: RoleModel, Text: "Vamos"},
		{Role: RoleUser, Text: "veja", Attachments: []Attachment{img}},
	}

	got := alternate(turns)

	require.Len(t, got, 5)
	assert.Equal(t, RoleUser, got[0].Role, "leading model turn gets a user turn before it")
	assert.Equal(t, RoleModel, got[1].Role)
	assert.Equal(t, "oi\n\n[SYSTEM TRIGGER: passo 1]", got[2].Text)
	assert.Equal(t, RoleModel, got[3].Role)
	assert.Equal(t, []Attachment{img}, got[4].Attachments)
}

func TestAlternate_Empty(t *testing.T) {
	assert.Empty(t, alternate(nil))
	assert.Empty(t, alternate([]Turn{{Role: RoleUser, Text: "  "}}))
}

func TestModelFor(t *testing.T) {
	cfg := config.LLMConfig{FastModel: "fast", VisionModel: "vision"}

	assert.Equal(t, "fast", modelFor(cfg, Request{Turns: []Turn{{Role: RoleUser, Text: "x"}}}))
	assert.Equal(t, "vision", modelFor(cfg, Request{Tier: TierVision}))
	assert.Equal(t, "vision", modelFor(cfg, Request{Turns: []Turn{{
		Role:        RoleUser,
		Attachments: []Attachment{{MIMEType: "image/jpeg", Data: []byte{0}}},
	}}}))
}
