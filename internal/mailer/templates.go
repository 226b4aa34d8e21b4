package mailer

import (
	"fmt"
	"sync"

	"github.com/osteele/liquid"
)

// Templates renders the built-in transactional emails and arbitrary
// campaign bodies with Liquid. Parsed templates are cached by source.
type Templates struct {
	engine  *liquid.Engine
	baseURL string
	cache   sync.Map // map[string]*liquid.Template
}

// NewTemplates creates the template renderer. baseURL is the public site
// root used for confirmation and referral links, without trailing slash.
func NewTemplates(baseURL string) *Templates {
	engine := liquid.NewEngine()

	// {{ first_name | default: "there" }}
	engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})

	return &Templates{engine: engine, baseURL: baseURL}
}

// Render parses (or fetches from cache) and renders a Liquid template with
// the given bindings. Missing variables render empty, matching how
// campaign sends must never fail on an absent personalization field.
func (t *Templates) Render(source string, bindings map[string]interface{}) (string, error) {
	var tpl *liquid.Template
	if cached, ok := t.cache.Load(source); ok {
		tpl = cached.(*liquid.Template)
	} else {
		parsed, err := t.engine.ParseString(source)
		if err != nil {
			return "", fmt.Errorf("parsing template: %w", err)
		}
		t.cache.Store(source, parsed)
		tpl = parsed
	}

	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("rendering template: %w", err)
	}
	return out, nil
}

// ConfirmationEmail data.
type ConfirmationData struct {
	FirstName    string
	ConfirmToken string
	ListName     string
}

const confirmationSubject = `Confirm your subscription{% if list_name != "" %} to {{ list_name }}{% endif %}`

const confirmationBody = `<html><body>
<p>Hi {{ first_name | default: "there" }},</p>
<p>Please confirm your subscription by clicking the link below:</p>
<p><a href="{{ confirm_url }}">Confirm my subscription</a></p>
<p>If you did not sign up, you can safely ignore this email.</p>
</body></html>`

// ConfirmationEmail renders the double-opt-in confirmation message.
func (t *Templates) ConfirmationEmail(data ConfirmationData) (subject, html string, err error) {
	bindings := map[string]interface{}{
		"first_name":  data.FirstName,
		"list_name":   data.ListName,
		"confirm_url": fmt.Sprintf("%s/api/newsletter/confirm/%s", t.baseURL, data.ConfirmToken),
	}
	if subject, err = t.Render(confirmationSubject, bindings); err != nil {
		return "", "", err
	}
	if html, err = t.Render(confirmationBody, bindings); err != nil {
		return "", "", err
	}
	return subject, html, nil
}

// MilestoneEmail data shared by the admin alert and the subscriber
// congratulation.
type MilestoneEmail struct {
	FirstName       string
	SubscriberEmail string
	MilestoneName   string
	Threshold       int
	Badge           string
	RewardCopy      string
	ReferralCount   int
}

const milestoneCongratsSubject = `{{ badge }} You reached {{ milestone_name }}!`

const milestoneCongratsBody = `<html><body>
<p>Hi {{ first_name | default: "there" }},</p>
<p>You just reached <strong>{{ milestone_name }}</strong> by referring {{ threshold }} readers. {{ badge }}</p>
{% if reward_copy != "" %}<p>Your reward: {{ reward_copy }}.</p>{% endif %}
<p>Keep sharing your referral link to unlock the next milestone!</p>
</body></html>`

// MilestoneCongrats renders the subscriber-facing milestone email.
func (t *Templates) MilestoneCongrats(data MilestoneEmail) (subject, html string, err error) {
	bindings := t.milestoneBindings(data)
	if subject, err = t.Render(milestoneCongratsSubject, bindings); err != nil {
		return "", "", err
	}
	if html, err = t.Render(milestoneCongratsBody, bindings); err != nil {
		return "", "", err
	}
	return subject, html, nil
}

const milestoneAdminSubject = `Referral milestone: {{ subscriber_email }} hit {{ threshold }}`

const milestoneAdminBody = `<html><body>
<p>{{ subscriber_email }} just crossed <strong>{{ milestone_name }}</strong> ({{ threshold }} referrals, now at {{ referral_count }}).</p>
{% if reward_copy != "" %}<p>Configured reward: {{ reward_copy }}.</p>{% endif %}
</body></html>`

// MilestoneAdminAlert renders the admin notification email.
func (t *Templates) MilestoneAdminAlert(data MilestoneEmail) (subject, html string, err error) {
	bindings := t.milestoneBindings(data)
	if subject, err = t.Render(milestoneAdminSubject, bindings); err != nil {
		return "", "", err
	}
	if html, err = t.Render(milestoneAdminBody, bindings); err != nil {
		return "", "", err
	}
	return subject, html, nil
}

func (t *Templates) milestoneBindings(data MilestoneEmail) map[string]interface{} {
	return map[string]interface{}{
		"first_name":       data.FirstName,
		"subscriber_email": data.SubscriberEmail,
		"milestone_name":   data.MilestoneName,
		"threshold":        data.Threshold,
		"badge":            data.Badge,
		"reward_copy":      data.RewardCopy,
		"referral_count":   data.ReferralCount,
	}
}

// SubscriberBindings builds the standard personalization bindings for
// campaign and sequence sends.
func (t *Templates) SubscriberBindings(email, firstName, referralCode string) map[string]interface{} {
	bindings := map[string]interface{}{
		"email":      email,
		"first_name": firstName,
	}
	if referralCode != "" {
		bindings["referral_code"] = referralCode
		bindings["referral_url"] = fmt.Sprintf("%s/r/%s", t.baseURL, referralCode)
	}
	return bindings
}

// UnsubscribeURL builds the one-click unsubscribe link for a token.
func (t *Templates) UnsubscribeURL(token string) string {
	return fmt.Sprintf("%s/api/newsletter/unsubscribe/%s", t.baseURL, token)
}
