// Package mockserver provides a mock Binance USDⓈ-M futures server for testing.
// It implements the REST endpoints the futures client uses in one-way position mode.
package mockserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Binance error codes returned by the mock.
const (
	CodeInvalidAPIKey      = -2015
	CodeMarginInsufficient = -2019
	CodeReduceOnlyRejected = -2022
	CodeUnknownSymbol      = -1121
	CodeMandatoryParameter = -1102
	CodeServerBusy         = -1008
)

// OrderStatus represents the status of an order.
type OrderStatus string

const (
	OrderStatusNew      OrderStatus = "NEW"
	OrderStatusFilled   OrderStatus = "FILLED"
	OrderStatusCanceled OrderStatus = "CANCELED"
)

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket           OrderType = "MARKET"
	OrderTypeStopMarket       OrderType = "STOP_MARKET"
	OrderTypeTakeProfitMarket OrderType = "TAKE_PROFIT_MARKET"
)

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Order is an order the server accepted.
type Order struct {
	OrderID     int64
	Symbol      string
	Side        OrderSide
	Type        OrderType
	Quantity    float64
	StopPrice   float64
	ReduceOnly  bool
	Status      OrderStatus
	AvgPrice    float64
	ExecutedQty float64
	UpdatedAt   time.Time
}

// Position is the one-way position of a symbol. Amount is negative when short.
type Position struct {
	Symbol     string
	Amount     float64
	EntryPrice float64
}

// ServerConfig holds configuration for the mock server.
type ServerConfig struct {
	// APIKey, when set, is required in the X-MBX-APIKEY header of every request
	APIKey string
	// QuoteAsset is the margin asset, USDT when empty
	QuoteAsset string
	// InitialBalance is the wallet balance of the quote asset
	InitialBalance float64
	// Prices maps symbol to its initial mark price
	Prices map[string]float64
}

// MockFuturesServer is an in-memory Binance futures exchange.
type MockFuturesServer struct {
	mu sync.RWMutex

	httpServer *http.Server
	listener   net.Listener

	apiKey     string
	quoteAsset string
	wallet     float64
	prices     map[string]float64
	leverage   map[string]int
	positions  map[string]*Position
	orders     map[int64]*Order
	orderIDSeq int64

	// failNext makes the next order request fail with this code
	failNext int
}

// NewMockFuturesServer creates a new mock futures server.
func NewMockFuturesServer(config ServerConfig) *MockFuturesServer {
	quote := config.QuoteAsset
	if quote == "" {
		quote = "USDT"
	}

	server := &MockFuturesServer{
		apiKey:     config.APIKey,
		quoteAsset: quote,
		wallet:     config.InitialBalance,
		prices:     make(map[string]float64),
		leverage:   make(map[string]int),
		positions:  make(map[string]*Position),
		orders:     make(map[int64]*Order),
		orderIDSeq: 1000,
	}

	for symbol, price := range config.Prices {
		server.prices[symbol] = price
	}

	return server
}

// Start starts the mock server on the given address.
// If address is empty a random port on the loopback interface is used.
func (s *MockFuturesServer) Start(address string) error {
	if address == "" {
		address = "127.0.0.1:0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener

	router := mux.NewRouter()
	router.Use(s.authenticate)

	router.HandleFunc("/fapi/v1/order", s.handleCreateOrder).Methods(http.MethodPost)
	router.HandleFunc("/fapi/v1/allOpenOrders", s.handleCancelAllOrders).Methods(http.MethodDelete)
	router.HandleFunc("/fapi/v1/leverage", s.handleChangeLeverage).Methods(http.MethodPost)
	router.HandleFunc("/fapi/v1/openOrders", s.handleOpenOrders).Methods(http.MethodGet)

	// the SDK moved between API versions for these two, so serve both
	for _, version := range []string{"v2", "v3"} {
		router.HandleFunc("/fapi/"+version+"/balance", s.handleBalance).Methods(http.MethodGet)
		router.HandleFunc("/fapi/"+version+"/positionRisk", s.handlePositionRisk).Methods(http.MethodGet)
	}

	s.httpServer = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			fmt.Printf("HTTP server error: %v\n", err)
		}
	}()

	return nil
}

// Stop stops the mock server.
func (s *MockFuturesServer) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.httpServer.Shutdown(ctx)
}

// BaseURL returns the base URL for the server.
func (s *MockFuturesServer) BaseURL() string {
	if s.listener == nil {
		return ""
	}

	return "http://" + s.listener.Addr().String()
}

// SetPrice moves the mark price of a symbol and fires every resting stop or target it crosses.
func (s *MockFuturesServer) SetPrice(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[symbol] = price

	ids := make([]int64, 0, len(s.orders))
	for id := range s.orders {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		order := s.orders[id]
		if order.Symbol != symbol || order.Status != OrderStatusNew || !triggered(order, price) {
			continue
		}

		// a reduce-only order left behind by a flat position expires instead of opening one
		if order.ReduceOnly && !s.reduces(order) {
			order.Status = OrderStatusCanceled
			order.UpdatedAt = time.Now()

			continue
		}

		s.fill(order, price)
	}
}

// FailNextOrder makes the next order request fail with the given Binance error code.
func (s *MockFuturesServer) FailNextOrder(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failNext = code
}

// Wallet returns the wallet balance of the quote asset.
func (s *MockFuturesServer) Wallet() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wallet
}

// Leverage returns the leverage last set for a symbol.
func (s *MockFuturesServer) Leverage(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.leverage[symbol]
}

// GetPosition returns a copy of the position of a symbol, nil when flat.
func (s *MockFuturesServer) GetPosition(symbol string) *Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.positions[symbol]
	if !ok || pos.Amount == 0 {
		return nil
	}

	copied := *pos

	return &copied
}

// GetOrders returns copies of every order of a symbol in submission order.
func (s *MockFuturesServer) GetOrders(symbol string) []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]Order, 0, len(s.orders))

	for _, order := range s.orders {
		if order.Symbol == symbol {
			orders = append(orders, *order)
		}
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderID < orders[j].OrderID })

	return orders
}

func (s *MockFuturesServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("X-MBX-APIKEY") != s.apiKey {
			writeError(w, http.StatusUnauthorized, CodeInvalidAPIKey, "Invalid API-key, IP, or permissions for action.")

			return
		}

		next.ServeHTTP(w, r)
	})
}

// params merges the query string with a form body. The SDK sends signed parameters in either.
func params(r *http.Request) (url.Values, error) {
	values := r.URL.Query()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, err
	}

	for key, vals := range form {
		values[key] = append(values[key], vals...)
	}

	return values, nil
}

// handleCreateOrder handles POST /fapi/v1/order
func (s *MockFuturesServer) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	values, err := params(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeMandatoryParameter, "Failed to parse parameters")

		return
	}

	symbol := values.Get("symbol")
	side := OrderSide(values.Get("side"))
	orderType := OrderType(values.Get("type"))

	quantity, err := strconv.ParseFloat(values.Get("quantity"), 64)
	if symbol == "" || side == "" || orderType == "" || err != nil || quantity <= 0 {
		writeError(w, http.StatusBadRequest, CodeMandatoryParameter, "Mandatory parameter was not sent, was empty/null, or malformed.")

		return
	}

	var stopPrice float64
	if raw := values.Get("stopPrice"); raw != "" {
		if stopPrice, err = strconv.ParseFloat(raw, 64); err != nil {
			writeError(w, http.StatusBadRequest, CodeMandatoryParameter, "Invalid stopPrice")

			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if code := s.failNext; code != 0 {
		s.failNext = 0
		writeError(w, http.StatusBadRequest, code, "Injected failure")

		return
	}

	price, ok := s.prices[symbol]
	if !ok {
		writeError(w, http.StatusBadRequest, CodeUnknownSymbol, "Invalid symbol.")

		return
	}

	order := &Order{
		Symbol:     symbol,
		Side:       side,
		Type:       orderType,
		Quantity:   quantity,
		StopPrice:  stopPrice,
		ReduceOnly: values.Get("reduceOnly") == "true",
		Status:     OrderStatusNew,
		UpdatedAt:  time.Now(),
	}

	if order.ReduceOnly && !s.reduces(order) {
		writeError(w, http.StatusBadRequest, CodeReduceOnlyRejected, "ReduceOnly Order is rejected.")

		return
	}

	if orderType == OrderTypeMarket {
		if !s.hasMargin(order, price) {
			writeError(w, http.StatusBadRequest, CodeMarginInsufficient, "Margin is insufficient.")

			return
		}

		s.fill(order, price)
	}

	s.orderIDSeq++
	order.OrderID = s.orderIDSeq
	s.orders[order.OrderID] = order

	writeJSON(w, orderResponse(order))
}

// handleCancelAllOrders handles DELETE /fapi/v1/allOpenOrders
func (s *MockFuturesServer) handleCancelAllOrders(w http.ResponseWriter, r *http.Request) {
	values, err := params(r)
	if err != nil || values.Get("symbol") == "" {
		writeError(w, http.StatusBadRequest, CodeMandatoryParameter, "Mandatory parameter 'symbol' was not sent.")

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, order := range s.orders {
		if order.Symbol == values.Get("symbol") && order.Status == OrderStatusNew {
			order.Status = OrderStatusCanceled
			order.UpdatedAt = time.Now()
		}
	}

	writeJSON(w, map[string]interface{}{
		"code": 200,
		"msg":  "The operation of cancel all open order is done.",
	})
}

// handleOpenOrders handles GET /fapi/v1/openOrders
func (s *MockFuturesServer) handleOpenOrders(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	s.mu.RLock()
	defer s.mu.RUnlock()

	open := make([]map[string]interface{}, 0)

	for _, order := range s.orders {
		if order.Status == OrderStatusNew && (symbol == "" || order.Symbol == symbol) {
			open = append(open, orderResponse(order))
		}
	}

	writeJSON(w, open)
}

// handleChangeLeverage handles POST /fapi/v1/leverage
func (s *MockFuturesServer) handleChangeLeverage(w http.ResponseWriter, r *http.Request) {
	values, err := params(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeMandatoryParameter, "Failed to parse parameters")

		return
	}

	leverage, err := strconv.Atoi(values.Get("leverage"))
	if err != nil || leverage < 1 || leverage > 125 {
		writeError(w, http.StatusBadRequest, CodeMandatoryParameter, "Leverage is not valid.")

		return
	}

	symbol := values.Get("symbol")

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.prices[symbol]; !ok {
		writeError(w, http.StatusBadRequest, CodeUnknownSymbol, "Invalid symbol.")

		return
	}

	s.leverage[symbol] = leverage

	writeJSON(w, map[string]interface{}{
		"leverage":         leverage,
		"maxNotionalValue": "1000000",
		"symbol":           symbol,
	})
}

// handleBalance handles GET /fapi/v2/balance
func (s *MockFuturesServer) handleBalance(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var unrealized float64
	for symbol, pos := range s.positions {
		unrealized += pos.Amount * (s.prices[symbol] - pos.EntryPrice)
	}

	writeJSON(w, []map[string]interface{}{
		{
			"accountAlias":       "mock",
			"asset":              s.quoteAsset,
			"balance":            formatFloat(s.wallet),
			"crossWalletBalance": formatFloat(s.wallet),
			"crossUnPnl":         formatFloat(unrealized),
			"availableBalance":   formatFloat(s.wallet - s.usedMargin()),
			"maxWithdrawAmount":  formatFloat(s.wallet - s.usedMargin()),
		},
	})
}

// handlePositionRisk handles GET /fapi/v2/positionRisk. Flat symbols are listed with a zero amount.
func (s *MockFuturesServer) handlePositionRisk(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	symbols := make([]string, 0, len(s.prices))
	for symbol := range s.prices {
		symbols = append(symbols, symbol)
	}

	sort.Strings(symbols)

	risks := make([]map[string]interface{}, 0, len(symbols))

	for _, symbol := range symbols {
		pos := s.positions[symbol]
		if pos == nil {
			pos = &Position{Symbol: symbol}
		}

		mark := s.prices[symbol]

		risks = append(risks, map[string]interface{}{
			"symbol":           symbol,
			"positionAmt":      formatFloat(pos.Amount),
			"entryPrice":       formatFloat(pos.EntryPrice),
			"markPrice":        formatFloat(mark),
			"unRealizedProfit": formatFloat(pos.Amount * (mark - pos.EntryPrice)),
			"liquidationPrice": "0",
			"leverage":         strconv.Itoa(s.leverageOf(symbol)),
			"positionSide":     "BOTH",
			"notional":         formatFloat(pos.Amount * mark),
		})
	}

	writeJSON(w, risks)
}

// fill executes an order at price against the one-way position. Callers hold the lock.
func (s *MockFuturesServer) fill(order *Order, price float64) {
	signed := order.Quantity
	if order.Side == OrderSideSell {
		signed = -signed
	}

	pos, ok := s.positions[order.Symbol]
	if !ok {
		pos = &Position{Symbol: order.Symbol}
		s.positions[order.Symbol] = pos
	}

	if order.ReduceOnly {
		signed = math.Copysign(math.Min(math.Abs(signed), math.Abs(pos.Amount)), signed)
	}

	switch {
	case pos.Amount == 0 || sameSign(pos.Amount, signed):
		total := pos.Amount + signed
		pos.EntryPrice = (math.Abs(pos.Amount)*pos.EntryPrice + math.Abs(signed)*price) / math.Abs(total)
		pos.Amount = total
	default:
		closed := math.Min(math.Abs(signed), math.Abs(pos.Amount))
		s.wallet += closed * (price - pos.EntryPrice) * math.Copysign(1, pos.Amount)

		remaining := pos.Amount + signed
		if math.Abs(remaining) < 1e-12 {
			remaining = 0
		}

		if remaining != 0 && !sameSign(remaining, pos.Amount) {
			pos.EntryPrice = price
		}

		pos.Amount = remaining
		if remaining == 0 {
			pos.EntryPrice = 0
		}
	}

	order.Status = OrderStatusFilled
	order.AvgPrice = price
	order.ExecutedQty = math.Abs(signed)
	order.UpdatedAt = time.Now()
}

// reduces reports whether a reduce-only order points against the current position.
func (s *MockFuturesServer) reduces(order *Order) bool {
	pos, ok := s.positions[order.Symbol]
	if !ok || pos.Amount == 0 {
		return false
	}

	return (pos.Amount > 0) == (order.Side == OrderSideSell)
}

func (s *MockFuturesServer) hasMargin(order *Order, price float64) bool {
	if s.reduces(order) {
		return true
	}

	required := order.Quantity * price / float64(s.leverageOf(order.Symbol))

	return required <= s.wallet-s.usedMargin()+1e-9
}

func (s *MockFuturesServer) usedMargin() float64 {
	var used float64
	for symbol, pos := range s.positions {
		used += math.Abs(pos.Amount) * pos.EntryPrice / float64(s.leverageOf(symbol))
	}

	return used
}

func (s *MockFuturesServer) leverageOf(symbol string) int {
	if leverage, ok := s.leverage[symbol]; ok {
		return leverage
	}

	return 1
}

// triggered reports whether a resting conditional order fires at price.
func triggered(order *Order, price float64) bool {
	closesLong := order.Side == OrderSideSell

	switch order.Type {
	case OrderTypeStopMarket:
		if closesLong {
			return price <= order.StopPrice
		}

		return price >= order.StopPrice
	case OrderTypeTakeProfitMarket:
		if closesLong {
			return price >= order.StopPrice
		}

		return price <= order.StopPrice
	default:
		return false
	}
}

func sameSign(a, b float64) bool {
	return (a > 0) == (b > 0)
}

func orderResponse(order *Order) map[string]interface{} {
	return map[string]interface{}{
		"symbol":        order.Symbol,
		"orderId":       order.OrderID,
		"clientOrderId": uuid.New().String(),
		"price":         "0",
		"origQty":       formatFloat(order.Quantity),
		"executedQty":   formatFloat(order.ExecutedQty),
		"cumQuote":      formatFloat(order.ExecutedQty * order.AvgPrice),
		"avgPrice":      formatFloat(order.AvgPrice),
		"reduceOnly":    order.ReduceOnly,
		"status":        string(order.Status),
		"stopPrice":     formatFloat(order.StopPrice),
		"timeInForce":   "GTC",
		"type":          string(order.Type),
		"origType":      string(order.Type),
		"side":          string(order.Side),
		"positionSide":  "BOTH",
		"updateTime":    order.UpdatedAt.UnixMilli(),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}

func writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": code, "msg": msg})
}
