package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCardErrorMessagesLocalized(t *testing.T) {
	m := NewCardErrorMessages(true)

	tests := []struct {
		name, code, decline, provider, want string
	}{
		{"declined", "card_declined", "", "Your card was declined.", "カードが拒否されました。"},
		{"expired", "expired_card", "", "Your card has expired.", "カードの有効期限が切れています。"},
		{"cvc", "incorrect_cvc", "", "Bad CVC.", "セキュリティコードが正しくありません。"},
		{"processing", "processing_error", "", "Processing.", "カードの処理中にエラーが発生しました。"},
		{"decline code wins", "card_declined", "insufficient_funds", "Declined.", "残高が不足しています。"},
		{"unmapped decline code", "card_declined", "do_not_honor", "Declined.", "カードが拒否されました。"},
		{"unmapped code falls back", "card_velocity_exceeded", "", "Too many attempts.", "Too many attempts."},
		{"nothing at all", "mystery", "", "", MsgServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Message(tt.code, tt.decline, tt.provider))
		})
	}
}

func TestCardErrorMessagesProviderText(t *testing.T) {
	m := NewCardErrorMessages(false)

	assert.Equal(t, "Your card was declined.", m.Message("card_declined", "", "Your card was declined."))
	assert.Equal(t, MsgServerError, m.Message("card_declined", "", ""))
}
