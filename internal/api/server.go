package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"streamvault-go/internal/coordinator"
	"streamvault-go/internal/safe"
	"streamvault-go/internal/streaming"
)

// Server exposes the coordinator's command surface over JSON. Every
// handler answers with the coordinator's structured response envelope.
type Server struct {
	coordinator *coordinator.Coordinator
	log         *zap.Logger
}

func NewServer(c *coordinator.Coordinator, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{coordinator: c, log: log}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/safes", s.handleCreateSafe).Methods("POST")
	router.HandleFunc("/safes/{safe}/proposals", s.handlePropose).Methods("POST")
	router.HandleFunc("/proposals/{index}/approvals", s.handleApprove).Methods("POST")
	router.HandleFunc("/vaults/deposit", s.handleDeposit).Methods("POST")
	router.HandleFunc("/vaults/withdraw", s.handleWithdraw).Methods("POST")
	router.HandleFunc("/streams/{stream}/withdraw", s.handleStreamWithdraw).Methods("POST")
	router.HandleFunc("/streams/{stream}/accrued", s.handleAccrued).Methods("GET")
	return router
}

func (s *Server) respond(w http.ResponseWriter, resp coordinator.Response) {
	w.Header().Set("Content-Type", "application/json")
	if resp.Status != coordinator.StatusSuccess {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(coordinator.Response{
		Status:  coordinator.StatusError,
		Message: msg,
	})
}

func parseKey(value string) (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(value)
}

type tokenRequest struct {
	Mint     string `json:"mint"`
	Decimals uint8  `json:"decimals"`
}

func (t tokenRequest) kind() (streaming.TokenKind, error) {
	if t.Mint == "" {
		return streaming.Native(), nil
	}
	mint, err := parseKey(t.Mint)
	if err != nil {
		return streaming.TokenKind{}, err
	}
	return streaming.Fungible(mint, t.Decimals), nil
}

func (s *Server) handleCreateSafe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Creator   string   `json:"creator"`
		CreateKey string   `json:"create_key"`
		Owners    []string `json:"owners"`
		Threshold uint16   `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	creator, err := parseKey(req.Creator)
	if err != nil {
		s.badRequest(w, "invalid creator")
		return
	}
	createKey, err := parseKey(req.CreateKey)
	if err != nil {
		s.badRequest(w, "invalid create key")
		return
	}
	owners := make([]solana.PublicKey, 0, len(req.Owners))
	for _, o := range req.Owners {
		key, err := parseKey(o)
		if err != nil {
			s.badRequest(w, "invalid owner "+o)
			return
		}
		owners = append(owners, key)
	}
	s.respond(w, s.coordinator.CreateSafe(r.Context(), creator, createKey, owners, req.Threshold))
}

func (s *Server) handlePropose(w http.ResponseWriter, r *http.Request) {
	safeID, err := parseKey(mux.Vars(r)["safe"])
	if err != nil {
		s.badRequest(w, "invalid safe address")
		return
	}
	var req struct {
		Kind          string       `json:"kind"`
		Proposer      string       `json:"proposer"`
		Receiver      string       `json:"receiver"`
		Token         tokenRequest `json:"token"`
		Start         int64        `json:"start"`
		End           int64        `json:"end"`
		Amount        uint64       `json:"amount"`
		WithdrawLimit uint64       `json:"withdraw_limit"`
		Stream        string       `json:"stream"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	proposer, err := parseKey(req.Proposer)
	if err != nil {
		s.badRequest(w, "invalid proposer")
		return
	}
	op, err := s.buildOp(safeID, req.Kind, req.Receiver, req.Token, req.Start, req.End, req.Amount, req.WithdrawLimit, req.Stream)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}
	s.respond(w, s.coordinator.ProposeStreamOp(r.Context(), op, proposer))
}

func (s *Server) buildOp(safeID solana.PublicKey, kind, receiver string, token tokenRequest, start, end int64, amount, withdrawLimit uint64, stream string) (safe.Operation, error) {
	switch kind {
	case "init_stream":
		recv, err := parseKey(receiver)
		if err != nil {
			return nil, err
		}
		tok, err := token.kind()
		if err != nil {
			return nil, err
		}
		return coordinator.InitOp{
			Safe:          safeID,
			Receiver:      recv,
			Token:         tok,
			Start:         start,
			End:           end,
			Amount:        amount,
			WithdrawLimit: withdrawLimit,
		}, nil
	case "pause_stream", "resume_stream", "cancel_stream":
		streamKey, err := parseKey(stream)
		if err != nil {
			return nil, err
		}
		switch kind {
		case "pause_stream":
			return coordinator.PauseOp{Safe: safeID, Stream: streamKey}, nil
		case "resume_stream":
			return coordinator.ResumeOp{Safe: safeID, Stream: streamKey}, nil
		default:
			return coordinator.CancelOp{Safe: safeID, Stream: streamKey}, nil
		}
	case "instant_transfer":
		recv, err := parseKey(receiver)
		if err != nil {
			return nil, err
		}
		tok, err := token.kind()
		if err != nil {
			return nil, err
		}
		return coordinator.InstantTransferOp{Safe: safeID, Receiver: recv, Token: tok, Amount: amount}, nil
	default:
		return nil, coordinator.ErrUnknownOperation
	}
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(mux.Vars(r)["index"], 10, 64)
	if err != nil {
		s.badRequest(w, "invalid proposal index")
		return
	}
	var req struct {
		Owner  string `json:"owner"`
		Expect string `json:"expect"` // "", "approve_only" or "execute"
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	owner, err := parseKey(req.Owner)
	if err != nil {
		s.badRequest(w, "invalid owner")
		return
	}
	expect := safe.ExpectAny
	switch req.Expect {
	case "approve_only":
		expect = safe.ExpectApproveOnly
	case "execute":
		expect = safe.ExpectExecution
	case "":
	default:
		s.badRequest(w, "invalid expect value")
		return
	}
	s.respond(w, s.coordinator.ApproveAndMaybeCommit(r.Context(), index, owner, expect))
}

type vaultRequest struct {
	Owner     string       `json:"owner"`
	Recipient string       `json:"recipient"`
	Token     tokenRequest `json:"token"`
	Amount    uint64       `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req vaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	owner, err := parseKey(req.Owner)
	if err != nil {
		s.badRequest(w, "invalid owner")
		return
	}
	token, err := req.Token.kind()
	if err != nil {
		s.badRequest(w, "invalid token")
		return
	}
	s.respond(w, s.coordinator.Deposit(r.Context(), owner, token, req.Amount))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var req vaultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	owner, err := parseKey(req.Owner)
	if err != nil {
		s.badRequest(w, "invalid owner")
		return
	}
	recipient, err := parseKey(req.Recipient)
	if err != nil {
		s.badRequest(w, "invalid recipient")
		return
	}
	token, err := req.Token.kind()
	if err != nil {
		s.badRequest(w, "invalid token")
		return
	}
	s.respond(w, s.coordinator.Withdraw(r.Context(), owner, recipient, token, req.Amount))
}

func (s *Server) handleStreamWithdraw(w http.ResponseWriter, r *http.Request) {
	stream, err := parseKey(mux.Vars(r)["stream"])
	if err != nil {
		s.badRequest(w, "invalid stream address")
		return
	}
	var req struct {
		Amount uint64 `json:"amount"`
		All    bool   `json:"all"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	amount := req.Amount
	if req.All {
		amount = streaming.WithdrawAll
	}
	s.respond(w, s.coordinator.WithdrawFromStream(r.Context(), stream, amount))
}

func (s *Server) handleAccrued(w http.ResponseWriter, r *http.Request) {
	stream, err := parseKey(mux.Vars(r)["stream"])
	if err != nil {
		s.badRequest(w, "invalid stream address")
		return
	}
	s.respond(w, s.coordinator.FetchAccruedAmount(stream))
}
