package reply

import (
	"context"

	"honeypot/internal/models"
)

var stallingReplies = []string{
	"Hello? I am not understanding properly. Can you explain correctly?",
	"My internet is slow, message is not loading fully. Please wait.",
	"Ok checking one minute...",
	"Where to click? I am confused.",
	"Sir, my son is calling, I will reply in 5 mins.",
}

var detailReplies = []string{
	"Payment is failing repeatedly. What is UPI ID properly?",
	"Bank server down I think. Do you have other account number?",
	"App is asking for payment link, please send link again.",
	"Can you send QR code? Typing is difficult for me.",
}

// Canned picks a scripted reply. The choice depends only on the conversation, so the
// same history always gets the same answer.
type Canned struct{}

func (Canned) Next(_ context.Context, history []models.Message, intel models.Intelligence) (string, error) {
	pool := stallingReplies
	if needsPush(history, intel) {
		pool = detailReplies
	}
	return pool[len(history)%len(pool)], nil
}
