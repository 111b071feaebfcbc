// Package api exposes the exchange over REST and WebSocket. Mutating
// endpoints authenticate by signature recovery; reads are open.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/jmpark/tokendex/pkg/app/core/asset"
	"github.com/jmpark/tokendex/pkg/app/core/exchange"
	"github.com/jmpark/tokendex/pkg/app/core/orderbook"
	"github.com/jmpark/tokendex/pkg/crypto"
)

type Server struct {
	ex             *exchange.Exchange
	router         *mux.Router
	hub            *Hub
	log            *zap.SugaredLogger
	allowedOrigins []string
}

func NewServer(ex *exchange.Exchange, log *zap.SugaredLogger, allowedOrigins []string) *Server {
	s := &Server{
		ex:             ex,
		router:         mux.NewRouter(),
		hub:            NewHub(log),
		log:            log,
		allowedOrigins: allowedOrigins,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/assets", s.handleGetAssets).Methods("GET")
	api.HandleFunc("/accounts/{address}/balances", s.handleGetBalances).Methods("GET")
	api.HandleFunc("/markets/{ticker}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{ticker}/orders", s.handleGetOrders).Methods("GET")
	api.HandleFunc("/markets/{ticker}/trades", s.handleGetTrades).Methods("GET")

	api.HandleFunc("/deposit", s.handleDeposit).Methods("POST")
	api.HandleFunc("/withdraw", s.handleWithdraw).Methods("POST")
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")

	// Dev-token endpoints: mint external balances and grant allowances.
	api.HandleFunc("/faucet", s.handleFaucet).Methods("POST")
	api.HandleFunc("/approve", s.handleApprove).Methods("POST")

	api.HandleFunc("/admin/assets", s.handleAddAsset).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the WebSocket hub and serves HTTP on addr, blocking forever.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	s.log.Infow("api server starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

func (s *Server) handleGetAssets(w http.ResponseWriter, r *http.Request) {
	tickers := s.ex.Assets()
	out := make([]AssetInfo, len(tickers))
	for i, t := range tickers {
		out[i] = AssetInfo{Ticker: t.String(), Settlement: t == s.ex.Settlement()}
	}
	respondJSON(w, out)
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	addrStr := mux.Vars(r)["address"]
	if !common.IsHexAddress(addrStr) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	addr := common.HexToAddress(addrStr)

	var out []BalanceInfo
	for _, t := range s.ex.Assets() {
		bal := s.ex.BalanceOf(addr, t)
		if bal.IsZero() {
			continue
		}
		out = append(out, BalanceInfo{Ticker: t.String(), Amount: bal.Dec()})
	}
	if out == nil {
		out = []BalanceInfo{}
	}
	respondJSON(w, out)
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	ticker, err := asset.TickerFromString(mux.Vars(r)["ticker"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid ticker", err.Error())
		return
	}
	snapshot, err := s.snapshotBook(ticker)
	if err != nil {
		respondExchangeError(w, err)
		return
	}
	respondJSON(w, snapshot)
}

func (s *Server) handleGetOrders(w http.ResponseWriter, r *http.Request) {
	ticker, err := asset.TickerFromString(mux.Vars(r)["ticker"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid ticker", err.Error())
		return
	}
	side, ok := orderbook.ParseSide(r.URL.Query().Get("side"))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid side", "side must be buy or sell")
		return
	}
	orders, err := s.ex.GetOrders(ticker, side)
	if err != nil {
		respondExchangeError(w, err)
		return
	}
	out := make([]*OrderInfo, len(orders))
	for i, o := range orders {
		out[i] = toOrderInfo(o)
	}
	respondJSON(w, out)
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	ticker, err := asset.TickerFromString(mux.Vars(r)["ticker"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid ticker", err.Error())
		return
	}
	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "invalid limit", "limit must be 1..500")
			return
		}
		limit = n
	}
	trades, err := s.ex.RecentTrades(ticker, limit)
	if err != nil {
		respondExchangeError(w, err)
		return
	}
	out := make([]*TradeInfo, len(trades))
	for i, t := range trades {
		out[i] = toTradeInfo(t)
	}
	respondJSON(w, out)
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	trader, ok := s.recoverSigner(w, req.CanonicalMessage(), req.Signature)
	if !ok {
		return
	}
	ticker, amount, ok := s.parseTickerAmount(w, req.Ticker, req.Amount)
	if !ok {
		return
	}
	if err := s.ex.Deposit(trader, ticker, amount); err != nil {
		respondExchangeError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	trader, ok := s.recoverSigner(w, req.CanonicalMessage(), req.Signature)
	if !ok {
		return
	}
	ticker, amount, ok := s.parseTickerAmount(w, req.Ticker, req.Amount)
	if !ok {
		return
	}
	if err := s.ex.Withdraw(trader, ticker, amount); err != nil {
		respondExchangeError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	trader, ok := s.recoverSigner(w, req.CanonicalMessage(), req.Signature)
	if !ok {
		return
	}
	ticker, amount, ok := s.parseTickerAmount(w, req.Ticker, req.Amount)
	if !ok {
		return
	}
	side, sideOK := orderbook.ParseSide(req.Side)
	if !sideOK {
		respondError(w, http.StatusBadRequest, "invalid side", "side must be buy or sell")
		return
	}

	switch req.Type {
	case "limit":
		price, err := parseAmount(req.Price)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid price", err.Error())
			return
		}
		order, err := s.ex.CreateLimitOrder(trader, ticker, side, amount, price)
		if err != nil {
			respondExchangeError(w, err)
			return
		}
		respondJSON(w, OrderResponse{Status: "resting", Order: toOrderInfo(order)})

	case "market":
		trades, err := s.ex.CreateMarketOrder(trader, ticker, side, amount)
		if err != nil {
			respondExchangeError(w, err)
			return
		}
		out := make([]*TradeInfo, len(trades))
		for i, t := range trades {
			out[i] = toTradeInfo(t)
			s.hub.BroadcastToChannel("trades:"+ticker.String(), TradeUpdate{Type: "trade", Trade: out[i]})
		}
		if len(trades) > 0 {
			if snapshot, err := s.snapshotBook(ticker); err == nil {
				s.hub.BroadcastToChannel("orderbook:"+ticker.String(), OrderbookUpdate{Type: "orderbook", Snapshot: snapshot})
			}
		}
		respondJSON(w, OrderResponse{Status: "executed", Trades: out})

	default:
		respondError(w, http.StatusBadRequest, "invalid order type", "type must be limit or market")
	}
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req FaucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if !common.IsHexAddress(req.Address) {
		respondError(w, http.StatusBadRequest, "invalid address", "")
		return
	}
	ticker, amount, ok := s.parseTickerAmount(w, req.Ticker, req.Amount)
	if !ok {
		return
	}
	token, ok := s.devToken(w, ticker)
	if !ok {
		return
	}
	token.Faucet(common.HexToAddress(req.Address), amount)
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req ApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	trader, ok := s.recoverSigner(w, req.CanonicalMessage(), req.Signature)
	if !ok {
		return
	}
	ticker, amount, ok := s.parseTickerAmount(w, req.Ticker, req.Amount)
	if !ok {
		return
	}
	token, ok := s.devToken(w, ticker)
	if !ok {
		return
	}
	token.Approve(trader, amount)
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleAddAsset(w http.ResponseWriter, r *http.Request) {
	var req AddAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	ticker, err := asset.TickerFromString(req.Ticker)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid ticker", err.Error())
		return
	}
	name := req.Name
	if name == "" {
		name = ticker.String()
	}
	if err := s.ex.AddAsset(ticker, asset.NewToken(name)); err != nil {
		respondError(w, http.StatusConflict, "asset not added", err.Error())
		return
	}
	respondJSON(w, AssetInfo{Ticker: ticker.String()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// recoverSigner authenticates a request by recovering the address that
// signed the canonical message. Responds with 401 on failure.
func (s *Server) recoverSigner(w http.ResponseWriter, message []byte, sigHex string) (common.Address, bool) {
	sig := common.FromHex(sigHex)
	if len(sig) != 65 {
		respondError(w, http.StatusUnauthorized, "invalid signature", "expected 65-byte hex signature")
		return common.Address{}, false
	}
	addr, err := crypto.RecoverMessageSigner(message, sig)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid signature", err.Error())
		return common.Address{}, false
	}
	return addr, true
}

// parseTickerAmount validates the two fields shared by most requests.
func (s *Server) parseTickerAmount(w http.ResponseWriter, tickerStr, amountStr string) (asset.Ticker, *uint256.Int, bool) {
	ticker, err := asset.TickerFromString(tickerStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid ticker", err.Error())
		return asset.Ticker{}, nil, false
	}
	amount, err := parseAmount(amountStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid amount", err.Error())
		return asset.Ticker{}, nil, false
	}
	return ticker, amount, true
}

// devToken fetches the in-process token vault behind ticker, for the faucet
// and approve endpoints.
func (s *Server) devToken(w http.ResponseWriter, ticker asset.Ticker) (*asset.Token, bool) {
	vault, ok := s.ex.Vault(ticker)
	if !ok {
		respondExchangeError(w, exchange.ErrUnknownAsset)
		return nil, false
	}
	token, ok := vault.(*asset.Token)
	if !ok {
		respondError(w, http.StatusBadRequest, "unsupported vault", "asset is not backed by a dev token")
		return nil, false
	}
	return token, true
}

func (s *Server) snapshotBook(ticker asset.Ticker) (OrderbookSnapshot, error) {
	bids, err := s.ex.Levels(ticker, orderbook.Buy)
	if err != nil {
		return OrderbookSnapshot{}, err
	}
	asks, err := s.ex.Levels(ticker, orderbook.Sell)
	if err != nil {
		return OrderbookSnapshot{}, err
	}
	return OrderbookSnapshot{
		Ticker:    ticker.String(),
		Bids:      toPriceLevels(bids),
		Asks:      toPriceLevels(asks),
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

func toPriceLevels(levels []orderbook.Level) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: l.Price.Dec(), Amount: l.Amount.Dec()}
	}
	return out
}

func toOrderInfo(o *orderbook.Order) *OrderInfo {
	return &OrderInfo{
		ID:        o.ID,
		Trader:    o.Trader.Hex(),
		Ticker:    o.Ticker.String(),
		Side:      o.Side.String(),
		Amount:    o.Amount.Dec(),
		Price:     o.Price.Dec(),
		Filled:    o.Filled.Dec(),
		Remaining: o.Remaining().Dec(),
		CreatedAt: o.CreatedAt,
	}
}

func toTradeInfo(t *exchange.Trade) *TradeInfo {
	return &TradeInfo{
		ID:           t.ID,
		Ticker:       t.Ticker.String(),
		TakerSide:    t.TakerSide.String(),
		Price:        t.Price.Dec(),
		Amount:       t.Amount.Dec(),
		Value:        t.Value.Dec(),
		Taker:        t.Taker.Hex(),
		Maker:        t.Maker.Hex(),
		MakerOrderID: t.MakerOrderID,
		Timestamp:    t.Timestamp,
	}
}

// respondExchangeError maps exchange sentinel errors to HTTP statuses.
func respondExchangeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, exchange.ErrUnknownAsset):
		respondError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, exchange.ErrCannotTradeSettlementAsset),
		errors.Is(err, exchange.ErrNonPositiveAmount),
		errors.Is(err, exchange.ErrNonPositivePrice):
		respondError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, exchange.ErrInsufficientBalance),
		errors.Is(err, exchange.ErrInsufficientAssetBalance),
		errors.Is(err, exchange.ErrInsufficientSettlementBalance):
		respondError(w, http.StatusUnprocessableEntity, err.Error(), "")
	default:
		respondError(w, http.StatusInternalServerError, "operation failed", err.Error())
	}
}

func respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{Error: errMsg, Message: message})
}
