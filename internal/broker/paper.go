package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tradepilot/tradepilot/internal/config"
	"github.com/tradepilot/tradepilot/internal/market"
)

// PaperBroker simulates a brokerage in memory. Market orders fill
// immediately at the posted quote. Quotes and bars are seeded by the
// embedding process (tests, simulations, dry runs).
type PaperBroker struct {
	mu        sync.RWMutex
	cash      float64
	positions map[string]*Position
	orders    map[string]*Order
	quotes    map[string]*market.Quote
	bars      map[string][]market.Bar
	logger    zerolog.Logger
}

// NewPaperBroker creates a paper broker with the given starting cash
func NewPaperBroker(initialCash float64) *PaperBroker {
	return &PaperBroker{
		cash:      initialCash,
		positions: make(map[string]*Position),
		orders:    make(map[string]*Order),
		quotes:    make(map[string]*market.Quote),
		bars:      make(map[string][]market.Bar),
		logger:    config.NewLogger("broker.paper"),
	}
}

// SetQuote posts the quote market orders will fill against
func (p *PaperBroker) SetQuote(quote *market.Quote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[quote.Symbol] = quote
}

// SetBars seeds historical bars for GetBars
func (p *PaperBroker) SetBars(symbol string, bars []market.Bar) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bars[symbol] = bars
}

func (p *PaperBroker) GetAccount(_ context.Context) (*Account, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	equity := p.cash
	for _, pos := range p.positions {
		equity += pos.MarketValue
	}
	return &Account{
		ID:          "paper",
		Equity:      equity,
		Cash:        p.cash,
		BuyingPower: p.cash,
	}, nil
}

func (p *PaperBroker) ListPositions(_ context.Context) ([]Position, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	positions := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		positions = append(positions, *pos)
	}
	return positions, nil
}

func (p *PaperBroker) GetPosition(_ context.Context, symbol string) (*Position, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pos, ok := p.positions[symbol]
	if !ok {
		return nil, ErrNoPosition
	}
	copied := *pos
	return &copied, nil
}

// SubmitOrder fills a market order at the posted quote. Rejections
// (no quote, insufficient cash, overselling) come back as rejected
// orders with an error.
func (p *PaperBroker) SubmitOrder(_ context.Context, req OrderRequest) (*Order, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	order := &Order{
		ID:          uuid.NewString(),
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Status:      StatusAccepted,
		Quantity:    req.Quantity,
		SubmittedAt: time.Now().UTC(),
	}

	quote, ok := p.quotes[req.Symbol]
	if !ok || quote.Price() <= 0 {
		order.Status = StatusRejected
		p.orders[order.ID] = order
		return order, fmt.Errorf("no quote available for %s", req.Symbol)
	}
	price := quote.Price()

	switch req.Side {
	case SideBuy:
		cost := req.Quantity * price
		if cost > p.cash {
			order.Status = StatusRejected
			p.orders[order.ID] = order
			return order, fmt.Errorf("insufficient cash: need %.2f, have %.2f", cost, p.cash)
		}
		p.cash -= cost
		p.applyBuy(req.Symbol, req.Quantity, price)

	case SideSell:
		pos, ok := p.positions[req.Symbol]
		if !ok || pos.Quantity < req.Quantity {
			order.Status = StatusRejected
			p.orders[order.ID] = order
			return order, fmt.Errorf("cannot sell %.8f %s: position too small", req.Quantity, req.Symbol)
		}
		p.cash += req.Quantity * price
		pos.Quantity -= req.Quantity
		if pos.Quantity <= 0 {
			delete(p.positions, req.Symbol)
		} else {
			p.revalue(pos, price)
		}

	default:
		order.Status = StatusRejected
		p.orders[order.ID] = order
		return order, fmt.Errorf("unsupported order side %q", req.Side)
	}

	now := time.Now().UTC()
	order.Status = StatusFilled
	order.FilledQuantity = req.Quantity
	order.FilledPrice = price
	order.FilledAt = &now
	p.orders[order.ID] = order

	p.logger.Debug().
		Str("order_id", order.ID).
		Str("symbol", req.Symbol).
		Str("side", req.Side).
		Float64("quantity", req.Quantity).
		Float64("price", price).
		Msg("Paper order filled")

	return order, nil
}

func (p *PaperBroker) applyBuy(symbol string, quantity, price float64) {
	pos, ok := p.positions[symbol]
	if !ok {
		pos = &Position{Symbol: symbol, EntryPrice: price}
		p.positions[symbol] = pos
	}
	// Average the entry price across fills.
	total := pos.Quantity + quantity
	pos.EntryPrice = (pos.EntryPrice*pos.Quantity + price*quantity) / total
	pos.Quantity = total
	p.revalue(pos, price)
}

func (p *PaperBroker) revalue(pos *Position, price float64) {
	pos.CurrentPrice = price
	pos.MarketValue = pos.Quantity * price
	pos.UnrealizedPnL = (price - pos.EntryPrice) * pos.Quantity
}

func (p *PaperBroker) CancelOrder(_ context.Context, orderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	order, ok := p.orders[orderID]
	if !ok {
		return fmt.Errorf("order %s not found", orderID)
	}
	if order.Status != StatusAccepted {
		return fmt.Errorf("order %s is %s, cannot cancel", orderID, order.Status)
	}
	order.Status = StatusCanceled
	return nil
}

func (p *PaperBroker) ClosePosition(ctx context.Context, symbol string) (*Order, error) {
	p.mu.RLock()
	pos, ok := p.positions[symbol]
	var quantity float64
	if ok {
		quantity = pos.Quantity
	}
	p.mu.RUnlock()

	if !ok {
		return nil, ErrNoPosition
	}
	return p.SubmitOrder(ctx, OrderRequest{
		Symbol:      symbol,
		Quantity:    quantity,
		Side:        SideSell,
		Type:        TypeMarket,
		TimeInForce: TIFDay,
	})
}

func (p *PaperBroker) GetLatestQuote(_ context.Context, symbol string) (*market.Quote, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	quote, ok := p.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("no quote available for %s", symbol)
	}
	copied := *quote
	return &copied, nil
}

func (p *PaperBroker) GetBars(_ context.Context, symbol, _ string, limit int) ([]market.Bar, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	bars := p.bars[symbol]
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	out := make([]market.Bar, len(bars))
	copy(out, bars)
	return out, nil
}
