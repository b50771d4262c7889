package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayushsaklani-min/AutoXshift/native/swapledger"
)

type registerTokenRequest struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals *uint8 `json:"decimals"`
}

type supportedRequest struct {
	Supported *bool `json:"supported"`
}

type minterRequest struct {
	Account string `json:"account"`
}

type mintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type addressRequest struct {
	Address string `json:"address"`
}

type feeRequest struct {
	FeeBps *uint32 `json:"feeBps"`
}

func (s *Server) handleRegisterToken(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var req registerTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	addr, err := parseAddress("address", req.Address)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	decimals := swapledger.DefaultDecimals
	if req.Decimals != nil {
		decimals = *req.Decimals
	}
	tok, err := s.ledger.RegisterToken(r.Context(), caller, swapledger.Token{
		Address:  addr,
		Symbol:   req.Symbol,
		Name:     req.Name,
		Decimals: decimals,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newTokenView(tok, false))
}

func (s *Server) handleSetSupported(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	tok, err := s.tokenParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req supportedRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.Supported == nil {
		s.fail(w, r, fmt.Errorf("%w: supported flag required", errBadRequest))
		return
	}
	if err := s.ledger.SetSupportedToken(r.Context(), caller, tok.Address, *req.Supported); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newTokenView(tok, *req.Supported))
}

func (s *Server) handleAddMinter(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	tok, err := s.tokenParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req minterRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	account, err := parseAddress("account", req.Account)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.ledger.AddMinter(r.Context(), caller, tok.Address, account); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"token": tok.Address.Hex(), "minter": account.Hex(), "enabled": true})
}

func (s *Server) handleRemoveMinter(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	tok, err := s.tokenParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	account, err := parseAddress("account", chi.URLParam(r, "account"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.ledger.RemoveMinter(r.Context(), caller, tok.Address, account); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"token": tok.Address.Hex(), "minter": account.Hex(), "enabled": false})
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	tok, err := s.tokenParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req mintRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount, tok.Decimals)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.ledger.Mint(r.Context(), caller, tok.Address, to, amount); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"token":  tok.Address.Hex(),
		"to":     to.Hex(),
		"amount": formatAmount(amount, tok.Decimals),
	})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	if err := s.ledger.Pause(r.Context(), caller); err != nil {
		s.fail(w, r, err)
		return
	}
	s.handleState(w, r)
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	if err := s.ledger.Unpause(r.Context(), caller); err != nil {
		s.fail(w, r, err)
		return
	}
	s.handleState(w, r)
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	next, err := parseAddress("address", req.Address)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.ledger.TransferOwnership(r.Context(), caller, next); err != nil {
		s.fail(w, r, err)
		return
	}
	s.handleState(w, r)
}

func (s *Server) handleSetFeeRecipient(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	recipient, err := parseAddress("address", req.Address)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.ledger.SetFeeRecipient(r.Context(), caller, recipient); err != nil {
		s.fail(w, r, err)
		return
	}
	s.handleState(w, r)
}

func (s *Server) handleSetFee(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	var req feeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if req.FeeBps == nil {
		s.fail(w, r, fmt.Errorf("%w: feeBps required", errBadRequest))
		return
	}
	if err := s.ledger.SetFeeBasisPoints(r.Context(), caller, *req.FeeBps); err != nil {
		s.fail(w, r, err)
		return
	}
	s.handleState(w, r)
}
