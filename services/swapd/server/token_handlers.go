package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type approveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type transferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type burnRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	tok, err := s.tokenParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	holder, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	bal, err := s.ledger.BalanceOf(r.Context(), tok.Address, holder)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"token":   tok.Address.Hex(),
		"symbol":  tok.Symbol,
		"address": holder.Hex(),
		"balance": formatAmount(bal, tok.Decimals),
		"raw":     bal.String(),
	})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	tok, err := s.tokenParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	owner, err := parseAddress("owner", chi.URLParam(r, "owner"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	spender, err := parseAddress("spender", chi.URLParam(r, "spender"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	allowance, err := s.ledger.Allowance(r.Context(), tok.Address, owner, spender)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"token":     tok.Address.Hex(),
		"owner":     owner.Hex(),
		"spender":   spender.Hex(),
		"allowance": formatAmount(allowance, tok.Decimals),
	})
}

func (s *Server) handleMinters(w http.ResponseWriter, r *http.Request) {
	tok, err := s.tokenParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	minters, err := s.ledger.Minters(r.Context(), tok.Address)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]string, 0, len(minters))
	for _, m := range minters {
		out = append(out, m.Hex())
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"token": tok.Address.Hex(), "minters": out})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	tok, err := s.tokenParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req approveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	spender, err := parseAddress("spender", req.Spender)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	amount, err := parseAmount("amount", req.Amount, tok.Decimals)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.ledger.Approve(r.Context(), caller, tok.Address, spender, amount); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"token":     tok.Address.Hex(),
		"owner":     caller.Hex(),
		"spender":   spender.Hex(),
		"allowance": formatAmount(amount, tok.Decimals),
	})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	tok, err := s.tokenParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req transferRequest
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
	if err := s.ledger.Transfer(r.Context(), caller, tok.Address, to, amount); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"token":  tok.Address.Hex(),
		"from":   caller.Hex(),
		"to":     to.Hex(),
		"amount": formatAmount(amount, tok.Decimals),
	})
}

// handleBurn burns from the caller, or from another holder against the
// caller's allowance when from is set.
func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	caller, _ := CallerFromContext(r.Context())
	tok, err := s.tokenParam(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req burnRequest
	if err := decodeJSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	from := caller
	if strings.TrimSpace(req.From) != "" {
		if from, err = parseAddress("from", req.From); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	amount, err := parseAmount("amount", req.Amount, tok.Decimals)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.ledger.Burn(r.Context(), caller, tok.Address, from, amount); err != nil {
		s.fail(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"token":  tok.Address.Hex(),
		"from":   from.Hex(),
		"amount": formatAmount(amount, tok.Decimals),
	})
}
