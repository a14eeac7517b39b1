package billing

import "github.com/stripe/stripe-go/v82"

// cardErrorMessages are the buyer-facing Japanese texts for Stripe card
// error codes.
var cardErrorMessages = map[string]string{
	string(stripe.ErrorCodeCardDeclined):      "カードが拒否されました。",
	string(stripe.ErrorCodeExpiredCard):       "カードの有効期限が切れています。",
	string(stripe.ErrorCodeIncorrectCVC):      "セキュリティコードが正しくありません。",
	string(stripe.ErrorCodeProcessingError):   "カードの処理中にエラーが発生しました。",
	string(stripe.ErrorCodeIncorrectNumber):   "カード番号が正しくありません。",
	string(stripe.ErrorCodeInvalidExpiryMonth): "有効期限の月が正しくありません。",
	string(stripe.ErrorCodeInvalidExpiryYear):  "有効期限の年が正しくありません。",
	"insufficient_funds":                       "残高が不足しています。",
}

// Client-facing messages for the non-card failure envelopes.
const (
	MsgMissingFields    = "必須フィールドが不足しています。"
	MsgServerConfig     = "サーバー設定エラー"
	MsgInvalidPlan      = "無効なプランです。"
	MsgServerError      = "サーバーエラー"
	MsgMethodNotAllowed = "Method Not Allowed"
	MsgSaleNotOpen      = "販売開始時刻前です。"
	MsgNotFound         = "Not Found"
)

// CardErrorMessages resolves the text shown to a buyer whose card failed.
type CardErrorMessages struct {
	localize bool
}

// NewCardErrorMessages returns a resolver. With localize false the provider's
// own message is always used.
func NewCardErrorMessages(localize bool) CardErrorMessages {
	return CardErrorMessages{localize: localize}
}

// Message picks the localized text for code, falling back to the provider's
// message for unmapped codes. The decline code is tried first when present
// because it is the more specific of the two.
func (m CardErrorMessages) Message(code, declineCode, providerMessage string) string {
	if m.localize {
		if msg, ok := cardErrorMessages[declineCode]; ok && declineCode != "" {
			return msg
		}
		if msg, ok := cardErrorMessages[code]; ok {
			return msg
		}
	}
	if providerMessage == "" {
		return MsgServerError
	}
	return providerMessage
}
