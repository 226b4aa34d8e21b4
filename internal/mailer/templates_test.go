package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tpl := NewTemplates("https://news.example.com")

	tests := []struct {
		name     string
		source   string
		bindings map[string]interface{}
		want     string
	}{
		{
			name:     "simple substitution",
			source:   "Hello {{ first_name }}!",
			bindings: map[string]interface{}{"first_name": "Ada"},
			want:     "Hello Ada!",
		},
		{
			name:     "missing variable renders empty",
			source:   "Hello {{ first_name }}!",
			bindings: map[string]interface{}{},
			want:     "Hello !",
		},
		{
			name:     "default filter fills blanks",
			source:   `Hello {{ first_name | default: "there" }}!`,
			bindings: map[string]interface{}{"first_name": ""},
			want:     "Hello there!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tpl.Render(tt.source, tt.bindings)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderParseError(t *testing.T) {
	tpl := NewTemplates("https://news.example.com")
	_, err := tpl.Render("{% if %}", nil)
	assert.Error(t, err)
}

func TestConfirmationEmail(t *testing.T) {
	tpl := NewTemplates("https://news.example.com")

	subject, html, err := tpl.ConfirmationEmail(ConfirmationData{
		FirstName:    "Ada",
		ConfirmToken: "tok123",
		ListName:     "Weekly Digest",
	})
	require.NoError(t, err)
	assert.Equal(t, "Confirm your subscription to Weekly Digest", subject)
	assert.Contains(t, html, "https://news.example.com/api/newsletter/confirm/tok123")
	assert.Contains(t, html, "Hi Ada,")
}

func TestMilestoneCongrats(t *testing.T) {
	tpl := NewTemplates("https://news.example.com")

	subject, html, err := tpl.MilestoneCongrats(MilestoneEmail{
		FirstName:     "",
		MilestoneName: "Silver Circle",
		Threshold:     5,
		Badge:         "🥈",
		RewardCopy:    "a discount: 20% off",
	})
	require.NoError(t, err)
	assert.Equal(t, "🥈 You reached Silver Circle!", subject)
	assert.Contains(t, html, "Hi there,")
	assert.Contains(t, html, "referring 5 readers")
	assert.Contains(t, html, "a discount: 20% off")
}

func TestMilestoneAdminAlert(t *testing.T) {
	tpl := NewTemplates("https://news.example.com")

	subject, html, err := tpl.MilestoneAdminAlert(MilestoneEmail{
		SubscriberEmail: "ada@example.com",
		MilestoneName:   "Gold Tier",
		Threshold:       10,
		ReferralCount:   11,
	})
	require.NoError(t, err)
	assert.Equal(t, "Referral milestone: ada@example.com hit 10", subject)
	assert.Contains(t, html, "now at 11")
	assert.NotContains(t, html, "Configured reward")
}

func TestSubscriberBindings(t *testing.T) {
	tpl := NewTemplates("https://news.example.com")

	b := tpl.SubscriberBindings("ada@example.com", "Ada", "ABCD2345")
	assert.Equal(t, "https://news.example.com/r/ABCD2345", b["referral_url"])

	b = tpl.SubscriberBindings("ada@example.com", "Ada", "")
	_, ok := b["referral_url"]
	assert.False(t, ok)
}
