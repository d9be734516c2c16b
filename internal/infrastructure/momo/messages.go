package momo

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
)

// CreateParams carries the per-order values of a create request. Partner
// level values (keys, URLs) come from Config.
type CreateParams struct {
	PartnerCode string
	RequestID   string
	OrderID     string
	Amount      int64
	OrderInfo   string
	RedirectURL string
	IPNURL      string
	RequestType string
	ExtraData   string
}

type createRequest struct {
	PartnerCode  string `json:"partnerCode"`
	PartnerName  string `json:"partnerName,omitempty"`
	StoreID      string `json:"storeId,omitempty"`
	RequestID    string `json:"requestId"`
	Amount       string `json:"amount"`
	OrderID      string `json:"orderId"`
	OrderInfo    string `json:"orderInfo"`
	RedirectURL  string `json:"redirectUrl"`
	IPNURL       string `json:"ipnUrl"`
	Lang         string `json:"lang"`
	RequestType  string `json:"requestType"`
	AutoCapture  bool   `json:"autoCapture"`
	ExtraData    string `json:"extraData"`
	OrderGroupID string `json:"orderGroupId"`
	Signature    string `json:"signature"`
}

type CreateResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	ResponseTime int64  `json:"responseTime"`
	Message      string `json:"message"`
	ResultCode   int    `json:"resultCode"`
	PayURL       string `json:"payUrl"`
	Deeplink     string `json:"deeplink,omitempty"`
	QRCodeURL    string `json:"qrCodeUrl,omitempty"`
	ShortLink    string `json:"shortLink,omitempty"`
}

type queryRequest struct {
	PartnerCode string `json:"partnerCode"`
	RequestID   string `json:"requestId"`
	OrderID     string `json:"orderId"`
	Lang        string `json:"lang"`
	Signature   string `json:"signature"`
}

type QueryResponse struct {
	PartnerCode  string `json:"partnerCode"`
	OrderID      string `json:"orderId"`
	RequestID    string `json:"requestId"`
	Amount       int64  `json:"amount"`
	TransID      Scalar `json:"transId"`
	ResultCode   int    `json:"resultCode"`
	Message      string `json:"message"`
	PayType      string `json:"payType,omitempty"`
	ResponseTime int64  `json:"responseTime"`
}

// Notification is the IPN body the gateway posts back, also used for the
// browser return redirect. Numeric fields stay as json.Number so the signed
// string is rebuilt from the exact digits received.
type Notification struct {
	PartnerCode  string      `json:"partnerCode"`
	OrderID      string      `json:"orderId"`
	RequestID    string      `json:"requestId"`
	Amount       json.Number `json:"amount"`
	OrderInfo    string      `json:"orderInfo"`
	OrderType    string      `json:"orderType"`
	TransID      Scalar      `json:"transId"`
	ResultCode   json.Number `json:"resultCode"`
	Message      string      `json:"message"`
	PayType      string      `json:"payType"`
	ResponseTime json.Number `json:"responseTime"`
	ExtraData    string      `json:"extraData"`
	Signature    string      `json:"signature"`
}

func ParseNotification(raw []byte) (Notification, error) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return Notification{}, fmt.Errorf("decode notification: %w", err)
	}
	return n, n.validate()
}

// NotificationFromQuery reads the return redirect. url.Values already
// decodes '+' and percent escapes.
func NotificationFromQuery(q url.Values) (Notification, error) {
	n := Notification{
		PartnerCode:  q.Get("partnerCode"),
		OrderID:      q.Get("orderId"),
		RequestID:    q.Get("requestId"),
		Amount:       json.Number(q.Get("amount")),
		OrderInfo:    q.Get("orderInfo"),
		OrderType:    q.Get("orderType"),
		TransID:      Scalar(q.Get("transId")),
		ResultCode:   json.Number(q.Get("resultCode")),
		Message:      q.Get("message"),
		PayType:      q.Get("payType"),
		ResponseTime: json.Number(q.Get("responseTime")),
		ExtraData:    q.Get("extraData"),
		Signature:    q.Get("signature"),
	}
	return n, n.validate()
}

func (n Notification) validate() error {
	switch {
	case n.OrderID == "":
		return fmt.Errorf("missing orderId")
	case n.Signature == "":
		return fmt.Errorf("missing signature")
	case n.ResultCode == "":
		return fmt.Errorf("missing resultCode")
	}
	if _, err := n.ResultCode.Int64(); err != nil {
		return fmt.Errorf("invalid resultCode %q", n.ResultCode)
	}
	if n.Amount != "" {
		if _, err := n.Amount.Int64(); err != nil {
			return fmt.Errorf("invalid amount %q", n.Amount)
		}
	}
	return nil
}

func (n Notification) Code() int {
	v, _ := n.ResultCode.Int64()
	return int(v)
}

func (n Notification) AmountValue() int64 {
	v, _ := n.Amount.Int64()
	return v
}

func formatAmount(v int64) string {
	return strconv.FormatInt(v, 10)
}

// Scalar keeps a JSON string or number exactly as received. Transaction ids
// arrive as either depending on the gateway endpoint.
type Scalar string

func (s *Scalar) UnmarshalJSON(b []byte) error {
	switch {
	case string(b) == "null":
		*s = ""
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = Scalar(v)
	default:
		*s = Scalar(b)
	}
	return nil
}

var bareNumber = regexp.MustCompile(`^(0|[1-9][0-9]*)$`)

func (s Scalar) MarshalJSON() ([]byte, error) {
	if bareNumber.MatchString(string(s)) {
		return []byte(s), nil
	}
	return json.Marshal(string(s))
}

func (s Scalar) String() string {
	return string(s)
}
