// Package broker defines the brokerage interface and its implementations.
package broker

import (
	"context"
	"errors"
	"time"

	"github.com/tradepilot/tradepilot/internal/market"
)

// Order sides
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// Order types
const (
	TypeMarket = "market"
	TypeLimit  = "limit"
)

// Time in force
const (
	TIFDay = "day"
	TIFGTC = "gtc"
)

// Order statuses
const (
	StatusAccepted = "accepted"
	StatusFilled   = "filled"
	StatusRejected = "rejected"
	StatusCanceled = "canceled"
)

// ErrNoPosition is returned when an operation targets a symbol without
// an open position.
var ErrNoPosition = errors.New("no open position")

// Account is a snapshot of the trading account
type Account struct {
	ID          string  `json:"id"`
	Equity      float64 `json:"equity"`
	Cash        float64 `json:"cash"`
	BuyingPower float64 `json:"buying_power"`
}

// Position is one open holding
type Position struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	EntryPrice    float64 `json:"entry_price"`
	CurrentPrice  float64 `json:"current_price"`
	MarketValue   float64 `json:"market_value"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// OrderRequest describes an order to submit
type OrderRequest struct {
	Symbol      string  `json:"symbol"`
	Quantity    float64 `json:"quantity"`
	Side        string  `json:"side"`
	Type        string  `json:"type"`
	TimeInForce string  `json:"time_in_force"`
	LimitPrice  float64 `json:"limit_price,omitempty"`
	StopLoss    float64 `json:"stop_loss,omitempty"` // attached stop for buys
}

// Order is the broker's view of a submitted order
type Order struct {
	ID             string     `json:"id"`
	Symbol         string     `json:"symbol"`
	Side           string     `json:"side"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	Quantity       float64    `json:"quantity"`
	FilledQuantity float64    `json:"filled_quantity"`
	FilledPrice    float64    `json:"filled_price"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	FilledAt       *time.Time `json:"filled_at,omitempty"`
}

// Broker is the brokerage contract the executor and market provider consume.
// It includes the market.DataSource methods so one client serves both.
type Broker interface {
	GetAccount(ctx context.Context) (*Account, error)
	ListPositions(ctx context.Context) ([]Position, error)
	GetPosition(ctx context.Context, symbol string) (*Position, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (*Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	ClosePosition(ctx context.Context, symbol string) (*Order, error)
	GetLatestQuote(ctx context.Context, symbol string) (*market.Quote, error)
	GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]market.Bar, error)
}
