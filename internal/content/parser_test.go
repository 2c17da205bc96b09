package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/gemsieve/internal/model"
)

const campaignHTML = `<html><head><style>@media (max-width: 600px) { .x { width: 100%; } }</style></head>
<body>
<table><tr><td>
<h1>Introducing Flow 2.0</h1>
<p>Hi *|FNAME|*, our new release is now available.</p>
<img src="https://cdn.acme.com/hero.png" width="600" height="300">
<img src="https://track.acme.com/o.gif" width="1" height="1">
<a class="button" style="background-color:#1a73e8" href="https://acme.com/pricing?utm_campaign=launch26&utm_source=email">See pricing</a>
<a href="https://acme.com/partners">Partner with us</a>
<a href="https://twitter.com/acmehq">Follow us</a>
<p>Trusted by 4000 customers.</p>
</td></tr></table>
<p>Unsubscribe | 123 Main Street, Springfield, IL 62704</p>
</body></html>`

func TestParseHTMLCampaign(t *testing.T) {
	msg := &model.Message{MessageID: "m1", BodyHTML: campaignHTML}
	c := Parse(msg)

	assert.Equal(t, "Introducing Flow 2.0", c.PrimaryHeadline)
	assert.Equal(t, []string{"See pricing"}, c.CTATexts)
	assert.Equal(t, 3, c.LinkCount)
	assert.Equal(t, 1, c.TrackingPixelCount)
	assert.Equal(t, 1, c.ImageCount)
	assert.Contains(t, c.UniqueLinkDomains, "acme.com")
	assert.Contains(t, c.UniqueLinkDomains, "twitter.com")
	assert.Equal(t, []string{"launch26"}, c.UTMCampaigns)
	assert.True(t, c.HasPersonalization)
	assert.Equal(t, []string{"*|FNAME|*"}, c.PersonalizationTokens)

	require.Contains(t, c.LinkIntents, "pricing_page")
	assert.Contains(t, c.LinkIntents["pricing_page"][0], "/pricing")
	require.Contains(t, c.LinkIntents, "partner_program")
	assert.Equal(t, "https://twitter.com/acmehq", c.SocialLinks["twitter"])

	assert.Contains(t, c.OfferTypes, "product_launch")
	assert.Contains(t, c.OfferTypes, "social_proof")
	assert.Positive(t, c.TemplateComplexity)
	assert.Contains(t, c.PhysicalAddress, "123 Main Street")
}

func TestParseLinkIntentFirstMatchWins(t *testing.T) {
	// "partner-demo" contains both a demo and a partner signal; the intent
	// table is ordered so demo_booking wins.
	msg := &model.Message{MessageID: "m2", BodyHTML: `<a href="https://acme.com/partner-demo">x</a>`}
	c := Parse(msg)
	assert.Contains(t, c.LinkIntents, "demo_booking")
	assert.NotContains(t, c.LinkIntents, "partner_program")
}

func TestParsePlainTextWithSignature(t *testing.T) {
	msg := &model.Message{MessageID: "m3", BodyText: `Quick question about your platform.

Can we get a quote for 50 seats?

Best regards,
Jane Smith
VP Marketing, Acme
jane@acme.com`}

	c := Parse(msg)
	assert.Contains(t, c.BodyClean, "quote for 50 seats")
	assert.NotContains(t, c.BodyClean, "VP Marketing")
	assert.Contains(t, c.SignatureBlock, "Jane Smith")
	assert.Empty(t, c.FooterBlock)
}

func TestParseStripsQuotedReply(t *testing.T) {
	msg := &model.Message{MessageID: "m4", BodyText: `Sounds good to me.

On Tue, Jan 6, 2026 at 9:00 AM Jane Smith <jane@acme.com> wrote:
> Can we move the call?
> Thanks`}

	c := Parse(msg)
	assert.Contains(t, c.BodyClean, "Sounds good")
	assert.NotContains(t, c.BodyClean, "move the call")
}

func TestStripFooter(t *testing.T) {
	text := `Our January roundup is here.

Read the full story on the blog.

You received this because you signed up at acme.com.
Unsubscribe | Privacy Policy
© 2026 Acme Inc. All rights reserved.`

	clean, footer := stripFooter(text)
	assert.Contains(t, clean, "January roundup")
	assert.NotContains(t, clean, "Unsubscribe")
	assert.Contains(t, footer, "Unsubscribe")
	assert.Contains(t, footer, "All rights reserved")
}

func TestStripFooterOnlyScansTail(t *testing.T) {
	var b []string
	b = append(b, "unsubscribe mentioned early, should stay")
	for i := 0; i < 20; i++ {
		b = append(b, "body line")
	}
	clean, footer := stripFooter(joinLines(b))
	assert.Contains(t, clean, "unsubscribe mentioned early")
	assert.Empty(t, footer)
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}

func TestDetectOffers(t *testing.T) {
	offers := detectOffers("Your annual renewal is coming up. Save $200 with promo code EARLY. SOC 2 report attached.")
	assert.Contains(t, offers, "renewal")
	assert.Contains(t, offers, "discount")
	assert.Contains(t, offers, "procurement")
	assert.NotContains(t, offers, "webinar")
}

func TestParseEmptyBodies(t *testing.T) {
	c := Parse(&model.Message{MessageID: "m5"})
	assert.Empty(t, c.BodyClean)
	assert.Empty(t, c.OfferTypes)
	assert.Zero(t, c.TemplateComplexity)
}
