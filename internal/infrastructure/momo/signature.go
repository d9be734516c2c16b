package momo

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

type Field struct {
	Name  string
	Value string
}

// Canonical joins fields as name=value pairs with '&' in the given order.
// Values are not escaped; the gateway signs the same raw string.
func Canonical(fields []Field) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return b.String()
}

// Sign returns the lowercase hex HMAC-SHA256 of the canonical string.
func Sign(fields []Field, secretKey string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(Canonical(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

func Verify(fields []Field, secretKey, signature string) bool {
	expected := Sign(fields, secretKey)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// CreateFields is the signed subset of a create request, in gateway order.
func CreateFields(accessKey string, p CreateParams) []Field {
	return []Field{
		{"accessKey", accessKey},
		{"amount", formatAmount(p.Amount)},
		{"extraData", p.ExtraData},
		{"ipnUrl", p.IPNURL},
		{"orderId", p.OrderID},
		{"orderInfo", p.OrderInfo},
		{"partnerCode", p.PartnerCode},
		{"redirectUrl", p.RedirectURL},
		{"requestId", p.RequestID},
		{"requestType", p.RequestType},
	}
}

// NotificationFields covers both the IPN body and the browser return query.
func NotificationFields(accessKey string, n Notification) []Field {
	return []Field{
		{"accessKey", accessKey},
		{"amount", n.Amount.String()},
		{"extraData", n.ExtraData},
		{"message", n.Message},
		{"orderId", n.OrderID},
		{"orderInfo", n.OrderInfo},
		{"orderType", n.OrderType},
		{"partnerCode", n.PartnerCode},
		{"payType", n.PayType},
		{"requestId", n.RequestID},
		{"responseTime", n.ResponseTime.String()},
		{"resultCode", n.ResultCode.String()},
		{"transId", n.TransID.String()},
	}
}

func QueryFields(accessKey, partnerCode, orderID, requestID string) []Field {
	return []Field{
		{"accessKey", accessKey},
		{"orderId", orderID},
		{"partnerCode", partnerCode},
		{"requestId", requestID},
	}
}
