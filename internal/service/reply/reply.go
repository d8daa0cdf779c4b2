// Package reply produces the honeypot persona's next message.
package reply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"honeypot/internal/models"
)

// ErrGeneration wraps every failure to produce a reply. Callers treat it as transient.
var ErrGeneration = errors.New("reply generation failed")

// DefaultMaxChars bounds a reply so a runaway model never floods the conversation.
const DefaultMaxChars = 500

// Generator returns the next persona message for the conversation so far.
type Generator interface {
	Next(ctx context.Context, history []models.Message, intel models.Intelligence) (string, error)
}

const personaPrompt = `You are a naive but curious potential victim.
Your goal is to waste the scammer's time and subtly extract their payment details (UPI, bank account) or phishing links.
Do not reveal that you know it is a scam. Act confused, eager, or worried.
Use Indian English or casual Hinglish. Keep replies short (1-3 lines).

Strategy:
1) First respond worried or confused about the issue (e.g. "bank blocked?").
2) Then ask for the "UPI id / link" because "my app is asking for it".
3) If the scammer asks for an OTP, delay with excuses (server down, battery low).
4) After two failures to get details, ask for a payment request link, QR code or account number.

Context:
- You are a middle-aged person who is not comfortable with technology.
- You have some money but the "server is down" or the "otp is not coming".`

const pushForDetail = `
IMPORTANT: You have not got payment details yet. Push for ONE concrete detail: ask for a payment link, QR code, or bank account number now. Avoid repeating the same request.`

// turnIndex counts completed exchanges: inbound messages answered by the persona, plus
// the one being answered now.
func turnIndex(history []models.Message) int {
	inbound, agent := 0, 0
	for _, m := range history {
		switch {
		case m.Inbound():
			inbound++
		case m.Persona():
			agent++
		}
	}
	return min(inbound, agent+1)
}

// needsPush reports whether the persona should press for a concrete payment detail.
func needsPush(history []models.Message, intel models.Intelligence) bool {
	return turnIndex(history) >= 2 && !intel.HasHighValue()
}

// SystemPrompt is the persona instruction for the given state of the conversation.
func SystemPrompt(history []models.Message, intel models.Intelligence) string {
	if needsPush(history, intel) {
		return personaPrompt + pushForDetail
	}
	return personaPrompt
}

// clean trims model output and bounds it to max runes.
func clean(text string, max int) (string, error) {
	text = strings.TrimSpace(text)
	text = strings.Trim(text, "\"'")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty reply", ErrGeneration)
	}
	if max <= 0 {
		max = DefaultMaxChars
	}
	if utf8.RuneCountInString(text) > max {
		runes := []rune(text)
		text = strings.TrimSpace(string(runes[:max]))
	}
	return text, nil
}
