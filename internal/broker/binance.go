package broker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog"

	"github.com/tradepilot/tradepilot/internal/config"
	"github.com/tradepilot/tradepilot/internal/market"
)

// BinanceBroker routes orders and market data through Binance spot
type BinanceBroker struct {
	client      *binance.Client
	quoteAsset  string
	retryConfig RetryConfig
	logger      zerolog.Logger
}

// BinanceConfig configures the Binance broker
type BinanceConfig struct {
	APIKey      string
	SecretKey   string
	Testnet     bool
	QuoteAsset  string // e.g. "USDT"
	RetryConfig RetryConfig
}

// NewBinanceBroker creates a Binance-backed broker
func NewBinanceBroker(cfg BinanceConfig) *BinanceBroker {
	if cfg.Testnet {
		binance.UseTestnet = true
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	if cfg.RetryConfig.MaxRetries == 0 {
		cfg.RetryConfig = DefaultRetryConfig()
	}

	logger := config.NewLogger("broker.binance")
	if cfg.Testnet {
		logger.Info().Msg("Binance broker initialized (testnet)")
	} else {
		logger.Warn().Msg("Binance broker initialized (live trading)")
	}

	return &BinanceBroker{
		client:      binance.NewClient(cfg.APIKey, cfg.SecretKey),
		quoteAsset:  cfg.QuoteAsset,
		retryConfig: cfg.RetryConfig,
		logger:      logger,
	}
}

// binanceSymbol converts BTC/USDT to the exchange form BTCUSDT
func binanceSymbol(symbol string) string {
	return strings.ReplaceAll(symbol, "/", "")
}

func (b *BinanceBroker) GetAccount(ctx context.Context) (*Account, error) {
	var acct *binance.Account
	err := WithRetry(ctx, b.retryConfig, func() error {
		var err error
		acct, err = b.client.NewGetAccountService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	var cash float64
	for _, bal := range acct.Balances {
		if bal.Asset == b.quoteAsset {
			free, _ := strconv.ParseFloat(bal.Free, 64)
			locked, _ := strconv.ParseFloat(bal.Locked, 64)
			cash = free + locked
			break
		}
	}

	// Spot accounts report balances, not marked equity. Quote-asset cash
	// is the conservative equity floor; position values add on read.
	return &Account{
		ID:          "binance",
		Equity:      cash,
		Cash:        cash,
		BuyingPower: cash,
	}, nil
}

func (b *BinanceBroker) ListPositions(ctx context.Context) ([]Position, error) {
	var acct *binance.Account
	err := WithRetry(ctx, b.retryConfig, func() error {
		var err error
		acct, err = b.client.NewGetAccountService().Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}

	var positions []Position
	for _, bal := range acct.Balances {
		if bal.Asset == b.quoteAsset {
			continue
		}
		free, _ := strconv.ParseFloat(bal.Free, 64)
		locked, _ := strconv.ParseFloat(bal.Locked, 64)
		quantity := free + locked
		if quantity <= 0 {
			continue
		}

		symbol := bal.Asset + "/" + b.quoteAsset
		quote, err := b.GetLatestQuote(ctx, symbol)
		price := 0.0
		if err == nil {
			price = quote.Price()
		}

		positions = append(positions, Position{
			Symbol:       symbol,
			Quantity:     quantity,
			EntryPrice:   price, // spot balances carry no cost basis
			CurrentPrice: price,
			MarketValue:  quantity * price,
		})
	}
	return positions, nil
}

func (b *BinanceBroker) GetPosition(ctx context.Context, symbol string) (*Position, error) {
	positions, err := b.ListPositions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range positions {
		if positions[i].Symbol == symbol {
			return &positions[i], nil
		}
	}
	return nil, ErrNoPosition
}

func (b *BinanceBroker) SubmitOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	side := binance.SideTypeBuy
	if req.Side == SideSell {
		side = binance.SideTypeSell
	}

	var resp *binance.CreateOrderResponse
	err := WithRetry(ctx, b.retryConfig, func() error {
		var err error
		svc := b.client.NewCreateOrderService().
			Symbol(binanceSymbol(req.Symbol)).
			Side(side).
			Quantity(fmt.Sprintf("%.8f", req.Quantity))

		if req.Type == TypeLimit {
			resp, err = svc.
				Type(binance.OrderTypeLimit).
				TimeInForce(binance.TimeInForceTypeGTC).
				Price(fmt.Sprintf("%.8f", req.LimitPrice)).
				Do(ctx)
		} else {
			resp, err = svc.Type(binance.OrderTypeMarket).Do(ctx)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit order: %w", err)
	}

	order := convertOrder(resp, req)

	// Buys carry a protective stop as a separate child order.
	if req.Side == SideBuy && req.StopLoss > 0 {
		if stopErr := b.placeStopLoss(ctx, req); stopErr != nil {
			b.logger.Error().
				Err(stopErr).
				Str("symbol", req.Symbol).
				Float64("stop_loss", req.StopLoss).
				Msg("Failed to place stop loss order")
		}
	}

	b.logger.Info().
		Str("order_id", order.ID).
		Str("symbol", req.Symbol).
		Str("side", req.Side).
		Float64("quantity", req.Quantity).
		Str("status", order.Status).
		Msg("Order submitted")

	return order, nil
}

func (b *BinanceBroker) placeStopLoss(ctx context.Context, req OrderRequest) error {
	return WithRetry(ctx, b.retryConfig, func() error {
		_, err := b.client.NewCreateOrderService().
			Symbol(binanceSymbol(req.Symbol)).
			Side(binance.SideTypeSell).
			Type(binance.OrderTypeStopLossLimit).
			TimeInForce(binance.TimeInForceTypeGTC).
			Quantity(fmt.Sprintf("%.8f", req.Quantity)).
			StopPrice(fmt.Sprintf("%.8f", req.StopLoss)).
			Price(fmt.Sprintf("%.8f", req.StopLoss)).
			Do(ctx)
		return err
	})
}

func convertOrder(resp *binance.CreateOrderResponse, req OrderRequest) *Order {
	order := &Order{
		ID:          strconv.FormatInt(resp.OrderID, 10),
		Symbol:      req.Symbol,
		Side:        req.Side,
		Type:        req.Type,
		Quantity:    req.Quantity,
		SubmittedAt: time.UnixMilli(resp.TransactTime).UTC(),
	}

	executed, _ := strconv.ParseFloat(resp.ExecutedQuantity, 64)
	order.FilledQuantity = executed
	if executed > 0 {
		quoteQty, _ := strconv.ParseFloat(resp.CummulativeQuoteQuantity, 64)
		order.FilledPrice = quoteQty / executed
	}

	switch resp.Status {
	case binance.OrderStatusTypeFilled:
		order.Status = StatusFilled
		filledAt := order.SubmittedAt
		order.FilledAt = &filledAt
	case binance.OrderStatusTypeCanceled:
		order.Status = StatusCanceled
	case binance.OrderStatusTypeRejected:
		order.Status = StatusRejected
	default:
		order.Status = StatusAccepted
	}
	return order
}

func (b *BinanceBroker) CancelOrder(ctx context.Context, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid order id %q: %w", orderID, err)
	}
	return WithRetry(ctx, b.retryConfig, func() error {
		_, err := b.client.NewCancelOrderService().OrderID(id).Do(ctx)
		return err
	})
}

func (b *BinanceBroker) ClosePosition(ctx context.Context, symbol string) (*Order, error) {
	pos, err := b.GetPosition(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return b.SubmitOrder(ctx, OrderRequest{
		Symbol:      symbol,
		Quantity:    pos.Quantity,
		Side:        SideSell,
		Type:        TypeMarket,
		TimeInForce: TIFDay,
	})
}

func (b *BinanceBroker) GetLatestQuote(ctx context.Context, symbol string) (*market.Quote, error) {
	var tickers []*binance.BookTicker
	err := WithRetry(ctx, b.retryConfig, func() error {
		var err error
		tickers, err = b.client.NewListBookTickersService().
			Symbol(binanceSymbol(symbol)).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", symbol, err)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no quote returned for %s", symbol)
	}

	bid, _ := strconv.ParseFloat(tickers[0].BidPrice, 64)
	ask, _ := strconv.ParseFloat(tickers[0].AskPrice, 64)
	return &market.Quote{
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (b *BinanceBroker) GetBars(ctx context.Context, symbol, timeframe string, limit int) ([]market.Bar, error) {
	var klines []*binance.Kline
	err := WithRetry(ctx, b.retryConfig, func() error {
		var err error
		klines, err = b.client.NewKlinesService().
			Symbol(binanceSymbol(symbol)).
			Interval(timeframe).
			Limit(limit).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get bars for %s: %w", symbol, err)
	}

	bars := make([]market.Bar, 0, len(klines))
	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		closePrice, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)

		bars = append(bars, market.Bar{
			Symbol:    symbol,
			Timestamp: time.UnixMilli(k.OpenTime).UTC(),
			Timeframe: timeframe,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
		})
	}
	return bars, nil
}
