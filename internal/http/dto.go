package http

import (
	"time"

	"movie-membership/internal/domain"
)

type createOrderRequest struct {
	PlanCode string `json:"planCode"`
	Period   string `json:"period"`
}

type createOrderResponse struct {
	PayURL  string `json:"payUrl"`
	OrderID string `json:"orderId"`
	Amount  int64  `json:"amount"`
}

type overrideStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type orderResponse struct {
	OrderID   string             `json:"orderId"`
	RequestID string             `json:"requestId"`
	UserID    string             `json:"userId"`
	PlanID    string             `json:"planId"`
	Period    domain.Period      `json:"period"`
	Amount    int64              `json:"amount"`
	OrderInfo string             `json:"orderInfo"`
	PayURL    string             `json:"payUrl,omitempty"`
	TransID   string             `json:"transId,omitempty"`
	Status    domain.OrderStatus `json:"status"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// adminOrderResponse adds the raw gateway payloads kept for audit.
type adminOrderResponse struct {
	orderResponse
	RawCreateRes any `json:"rawCreateRes,omitempty"`
	RawIPN       any `json:"rawIpn,omitempty"`
	RawQuery     any `json:"rawQuery,omitempty"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		OrderID:   o.OrderID,
		RequestID: o.RequestID,
		UserID:    o.UserID,
		PlanID:    o.PlanID,
		Period:    o.Period,
		Amount:    o.Amount,
		OrderInfo: o.OrderInfo,
		PayURL:    o.PayURL,
		TransID:   o.TransID,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

func toAdminOrderResponse(o *domain.Order) adminOrderResponse {
	res := adminOrderResponse{orderResponse: toOrderResponse(o)}
	if len(o.RawCreateRes) > 0 {
		res.RawCreateRes = o.RawCreateRes
	}
	if len(o.RawIPN) > 0 {
		res.RawIPN = o.RawIPN
	}
	if len(o.RawQuery) > 0 {
		res.RawQuery = o.RawQuery
	}
	return res
}
