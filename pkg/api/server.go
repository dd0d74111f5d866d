package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/swapslot/escrowd/pkg/escrow"
	"github.com/swapslot/escrowd/pkg/ledger"
	"github.com/swapslot/escrowd/pkg/node"
	"github.com/swapslot/escrowd/pkg/token"
)

// Server exposes the node over REST and WebSocket.
type Server struct {
	node   *node.Node
	router *mux.Router
	hub    *Hub
}

// NewServer creates a new API server.
func NewServer(n *node.Node) *Server {
	s := &Server{
		node:   n,
		router: mux.NewRouter(),
		hub:    NewHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Transaction submission
	api.HandleFunc("/transactions", s.handleSubmitTransaction).Methods("POST")

	// Query endpoints
	api.HandleFunc("/trades", s.handleGetTrades).Methods("GET")
	api.HandleFunc("/trades/{slot}", s.handleGetSlot).Methods("GET")
	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/tokens/{address}", s.handleGetTokenAccount).Methods("GET")

	// Bootstrap endpoints (devnet conveniences)
	api.HandleFunc("/faucet", s.handleFaucet).Methods("POST")
	api.HandleFunc("/slots", s.handleCreateSlot).Methods("POST")
	api.HandleFunc("/mints", s.handleCreateMint).Methods("POST")
	api.HandleFunc("/token-accounts", s.handleCreateTokenAccount).Methods("POST")
	api.HandleFunc("/mint", s.handleMintTo).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: false,
	})
	handler := c.Handler(s.router)

	log.Printf("[api] server starting on %s", addr)
	return http.ListenAndServe(addr, handler)
}

// BroadcastEvent fans a settlement event out to WebSocket subscribers of
// the "trades" channel. Wired to node.OnEvent by the daemon.
func (s *Server) BroadcastEvent(e *node.Event) {
	s.hub.BroadcastToChannel("trades", e)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req node.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error(), -1)
		return
	}

	event, err := s.node.Submit(&req)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, SubmitResponse{
		Status:  "executed",
		EventID: event.ID,
		Type:    string(event.Type),
	})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.node.OpenTrades()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "query failed", err.Error(), -1)
		return
	}

	response := make([]TradeInfo, 0, len(trades))
	for slot, t := range trades {
		response = append(response, tradeInfo(slot, t))
	}
	respondJSON(w, response)
}

func (s *Server) handleGetSlot(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "slot")
	if !ok {
		return
	}
	slot, err := s.node.Slot(addr)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	info := SlotInfo{Slot: addr.Hex(), Occupied: slot.Occupied}
	if slot.Occupied {
		t := tradeInfo(addr, slot.Trade)
		info.Trade = &t
	}
	respondJSON(w, info)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	acc, err := s.node.NativeAccount(addr)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "query failed", err.Error(), -1)
		return
	}
	respondJSON(w, AccountInfo{
		Address: addr.Hex(),
		Balance: acc.Balance,
		Owner:   acc.Owner.Hex(),
		Data:    acc.Data,
	})
}

func (s *Server) handleGetTokenAccount(w http.ResponseWriter, r *http.Request) {
	addr, ok := pathAddress(w, r, "address")
	if !ok {
		return
	}
	rec, err := s.node.TokenAccount(addr)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, TokenAccountInfo{
		Address: addr.Hex(),
		Mint:    rec.Mint.Hex(),
		Holder:  rec.Holder.Hex(),
		Amount:  rec.Amount,
	})
}

func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req FaucetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error(), -1)
		return
	}
	if err := s.node.Faucet(req.Address, req.Amount); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSlot(w http.ResponseWriter, r *http.Request) {
	var req CreateSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error(), -1)
		return
	}
	if err := s.node.CreateSlot(req.Payer, req.Address); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok", "slot": req.Address.Hex()})
}

func (s *Server) handleCreateMint(w http.ResponseWriter, r *http.Request) {
	var req CreateMintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error(), -1)
		return
	}
	if err := s.node.CreateMint(req.Payer, req.Address, req.Authority); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok", "mint": req.Address.Hex()})
}

func (s *Server) handleCreateTokenAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateTokenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error(), -1)
		return
	}
	if err := s.node.CreateTokenAccount(req.Payer, req.Address, req.Mint, req.Holder); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok", "account": req.Address.Hex()})
}

func (s *Server) handleMintTo(w http.ResponseWriter, r *http.Request) {
	var req MintToRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error(), -1)
		return
	}
	if err := s.node.MintTo(req.Mint, req.Dest, req.Amount); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, NodeStatus{
		Status:        "ok",
		EscrowProgram: escrow.ProgramAddress.Hex(),
		TokenProgram:  token.ProgramAddress.Hex(),
		Authority:     escrow.AuthorityAddress().Hex(),
		AttesterKey:   s.node.AttesterKey(),
	})
}

// ==============================
// Helper Functions
// ==============================

func tradeInfo(slot ledger.Address, t escrow.Trade) TradeInfo {
	return TradeInfo{
		Slot:              slot.Hex(),
		Maker:             t.Maker.Hex(),
		TakerAmount:       t.TakerAmount,
		MakerAmount:       t.MakerAmount,
		TakerAssetAccount: t.TakerAssetAccount.Hex(),
		MakerAssetAccount: t.MakerAssetAccount.Hex(),
		CreatedAt:         t.CreatedAt,
	}
}

func pathAddress(w http.ResponseWriter, r *http.Request, key string) (ledger.Address, bool) {
	vars := mux.Vars(r)
	addr, err := ledger.HexToAddress(vars[key])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid address", err.Error(), -1)
		return ledger.Address{}, false
	}
	return addr, true
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errStr string, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errStr,
		Message: message,
		Code:    code,
	})
}

// respondDomainError maps an execution error onto HTTP: escrow taxonomy
// codes keep their numeric code, host sentinels map to plain 4xx/5xx.
func respondDomainError(w http.ResponseWriter, err error) {
	var domain escrow.Error
	if errors.As(err, &domain) {
		status := http.StatusBadRequest
		switch domain {
		case escrow.ErrTradeNotFound:
			status = http.StatusNotFound
		case escrow.ErrTradeAlreadyExist:
			status = http.StatusConflict
		}
		respondError(w, status, domain.Error(), err.Error(), int(domain.Code()))
		return
	}
	switch {
	case errors.Is(err, ledger.ErrInvalidArgument),
		errors.Is(err, ledger.ErrLengthMismatch),
		errors.Is(err, ledger.ErrMissingAccount),
		errors.Is(err, ledger.ErrNotWritable),
		errors.Is(err, ledger.ErrNotRentExempt),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrUnauthorized):
		respondError(w, http.StatusBadRequest, "request rejected", err.Error(), -1)
	case errors.Is(err, ledger.ErrAccountExists):
		respondError(w, http.StatusConflict, "request rejected", err.Error(), -1)
	default:
		respondError(w, http.StatusInternalServerError, "execution failed", err.Error(), -1)
	}
}
