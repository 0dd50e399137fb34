package interaction

import (
	"context"
	"net/http"
	"time"
)

// Bus operator message types. A cancel is the same payload with the type
// flipped.
const (
	busOpMsgNotify = 1
	busOpMsgCancel = 0
)

// BusOperatorHandler notifies a transit agency's operator system that a
// traveler needing assistance intends to board an upcoming vehicle of a
// qualifying route.
type BusOperatorHandler struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewBusOperatorHandler builds the handler against the operator notify URL.
func NewBusOperatorHandler(url, apiKey string, timeout time.Duration) *BusOperatorHandler {
	return &BusOperatorHandler{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type busOpNotifyBody struct {
	MsgType      int     `json:"msgType"`
	AgencyID     string  `json:"agencyId"`
	RouteID      string  `json:"routeId"`
	TripID       string  `json:"tripId"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	MobilityMode string  `json:"mobilityMode,omitempty"`
}

func (h *BusOperatorHandler) Invoke(ctx context.Context, req Request) error {
	msgType := busOpMsgNotify
	if req.Cancel {
		msgType = busOpMsgCancel
	}
	body := busOpNotifyBody{
		MsgType:      msgType,
		AgencyID:     req.AgencyID,
		RouteID:      req.RouteID,
		TripID:       req.TripID,
		Lat:          req.Position.Lat,
		Lon:          req.Position.Lon,
		MobilityMode: req.MobilityMode,
	}
	return postJSON(ctx, h.httpClient, h.url, h.apiKey, body)
}
