package extract

import (
	"testing"

	"honeypot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor() *Extractor {
	return New(Options{})
}

func TestExtractUPI(t *testing.T) {
	e := newTestExtractor()
	cases := []struct {
		text string
		want []string
	}{
		{"pay to rahul@upi now or account blocked", []string{"rahul@upi"}},
		{"send to Scammer.Pay@YBL.", []string{"scammer.pay@ybl"}},
		{"collect from shop@okhdfcbank", []string{"shop@okhdfcbank"}},
		{"mail me at victim@gmail.com", nil},
		{"or john@yahoo", nil},
		{"see me@some.company.example", nil},
		{"generic handle ramesh@freecharge", []string{"ramesh@freecharge"}},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got := e.Extract(tc.text)
			if tc.want == nil {
				assert.Empty(t, got.Values(models.IntelUPI))
				return
			}
			assert.Equal(t, tc.want, got.Values(models.IntelUPI))
		})
	}
}

func TestExtractPhoneAndAccountPrecedence(t *testing.T) {
	e := newTestExtractor()

	got := e.Extract("call 9876543210 and deposit in 12345678901234 today")
	assert.Equal(t, []string{"+919876543210"}, got.Values(models.IntelPhone))
	assert.Equal(t, []string{"12345678901234"}, got.Values(models.IntelBankAccount))

	// order in the text does not change the classification
	got = e.Extract("a/c 12345678901234, helpline 9876543210")
	assert.Equal(t, []string{"+919876543210"}, got.Values(models.IntelPhone))
	assert.Equal(t, []string{"12345678901234"}, got.Values(models.IntelBankAccount))
}

func TestExtractPhoneForms(t *testing.T) {
	e := newTestExtractor()
	for _, text := range []string{
		"call +91 98765 43210",
		"call +91-9876543210",
		"call 98765-43210",
		"call +919876543210",
		"call 9876543210.",
	} {
		got := e.Extract(text)
		assert.Equal(t, []string{"+919876543210"}, got.Values(models.IntelPhone), text)
		assert.Empty(t, got.Values(models.IntelBankAccount), text)
	}

	// country code without "+" is not a phone
	got := e.Extract("ref 919876543210")
	assert.Empty(t, got.Values(models.IntelPhone))
	assert.Equal(t, []string{"919876543210"}, got.Values(models.IntelBankAccount))

	// 10 digits with an invalid leading digit read as an account
	got = e.Extract("account 1234567890")
	assert.Empty(t, got.Values(models.IntelPhone))
	assert.Equal(t, []string{"1234567890"}, got.Values(models.IntelBankAccount))
}

func TestExtractFormattedPhoneNextToOtherNumbers(t *testing.T) {
	e := newTestExtractor()

	got := e.Extract("Sir number is +91 98765 43210 2 times try")
	assert.Equal(t, []string{"+919876543210"}, got.Values(models.IntelPhone))
	assert.Empty(t, got.Values(models.IntelBankAccount))

	got = e.Extract("call 98765 43210 123456789012")
	assert.Equal(t, []string{"+919876543210"}, got.Values(models.IntelPhone))
	assert.Equal(t, []string{"123456789012"}, got.Values(models.IntelBankAccount))

	got = e.Extract("Rs 50000 98765 43210 today")
	assert.Equal(t, []string{"+919876543210"}, got.Values(models.IntelPhone))
	assert.Empty(t, got.Values(models.IntelBankAccount))
}

func TestExtractIgnoresShortAndGluedNumbers(t *testing.T) {
	e := newTestExtractor()
	got := e.Extract("OTP is 482913, order ORD12345678901, amount 50000, date 2026-01-10")
	assert.True(t, got.Empty())
}

func TestExtractObfuscatedLink(t *testing.T) {
	e := newTestExtractor()
	got := e.Extract("verify at hxxp://phish[.]example.com/login now")
	assert.Equal(t, []string{"http://phish.example.com/login"}, got.Values(models.IntelPhishingLink))

	benign := e.Extract("the meeting is at noon")
	assert.Empty(t, benign.Values(models.IntelPhishingLink))
}

func TestExtractLinkForms(t *testing.T) {
	e := newTestExtractor()
	cases := map[string]string{
		"open HTTPS://Secure-Bank.EXAMPLE.com/Verify#top.": "https://secure-bank.example.com/Verify",
		"click bit.ly/xfg2 to claim":                      "https://bit.ly/xfg2",
		"go to hxxps[:]//pay(.)example{.}in/x":            "https://pay.example.in/x",
		"visit phish[.]example[.]com/login":               "http://phish.example.com/login",
		"open http://phish .example .com/a":               "http://phish.example.com/a",
	}
	for text, want := range cases {
		got := e.Extract(text)
		assert.Equal(t, []string{want}, got.Values(models.IntelPhishingLink), text)
	}
}

func TestExtractShortenerNeedsHostBoundary(t *testing.T) {
	e := newTestExtractor()

	got := e.Extract("verify at SBI-verify.bit.ly/abc today")
	assert.Equal(t, []string{"https://sbi-verify.bit.ly/abc"}, got.Values(models.IntelPhishingLink))

	got = e.Extract("menu at bat.co/lunch and evilbit.ly/x")
	assert.Empty(t, got.Values(models.IntelPhishingLink))

	got = e.Extract("two links: bit.ly/a,t.co/b")
	assert.ElementsMatch(t, []string{"https://bit.ly/a", "https://t.co/b"}, got.Values(models.IntelPhishingLink))
}

func TestExtractDigitsInsideLinksAreNotAccounts(t *testing.T) {
	e := newTestExtractor()
	got := e.Extract("https://pay.example.com/txn/123456789012 and 9876543210@ybl")
	assert.Equal(t, []string{"https://pay.example.com/txn/123456789012"}, got.Values(models.IntelPhishingLink))
	assert.Equal(t, []string{"9876543210@ybl"}, got.Values(models.IntelUPI))
	assert.Empty(t, got.Values(models.IntelBankAccount))
	assert.Empty(t, got.Values(models.IntelPhone))
}

func TestExtractHTMLBody(t *testing.T) {
	e := newTestExtractor()
	body := `<html><body><p>Dear customer, your KYC expired.</p>
<a href="http://kyc-update.example.net/form">Click here</a>
<p>Helpline 98765 43210</p></body></html>`
	got := e.Extract(body)
	assert.Equal(t, []string{"http://kyc-update.example.net/form"}, got.Values(models.IntelPhishingLink))
	assert.Equal(t, []string{"+919876543210"}, got.Values(models.IntelPhone))
}

func TestExtractIsIdempotent(t *testing.T) {
	e := newTestExtractor()
	text := "pay rahul@upi or 12345678901234, call +91 98765 43210, hxxp://phish[.]example.com/login"
	first := e.Extract(text)
	second := e.Extract(text)
	assert.Equal(t, first, second)

	merged := first.Clone()
	assert.Equal(t, 0, merged.Merge(second))
	assert.Equal(t, first, merged)
}

func TestCanonicalizeRejectsUnparseable(t *testing.T) {
	_, err := Canonicalize("http://")
	require.Error(t, err)
	var exErr *Error
	assert.ErrorAs(t, err, &exErr)
	assert.Equal(t, models.IntelPhishingLink, exErr.Kind)

	_, err = Canonicalize("http://bad host.com")
	assert.Error(t, err)
}

func TestCustomRegion(t *testing.T) {
	e := New(Options{CountryCode: "+44", NationalLength: 10, LeadingDigits: "7"})
	got := e.Extract("ring +44 7911 123456 or 7911123456")
	assert.Equal(t, []string{"+447911123456"}, got.Values(models.IntelPhone))
}
