package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/VeltarosLabs/blockforge/internal/blockchain"
	"github.com/VeltarosLabs/blockforge/internal/logging"
	apitypes "github.com/VeltarosLabs/blockforge/pkg/api"
	"github.com/VeltarosLabs/blockforge/pkg/version"
)

const maxBodyBytes = 1 << 20

type Config struct {
	Chain       *blockchain.Chain
	Builder     *blockchain.Builder
	Log         *slog.Logger
	MineTimeout time.Duration
	DigestName  string

	Security    SecurityConfig
	MineLimiter *Limiter // nil disables rate limiting
}

// Server exposes one chain and its builder over HTTP. Only one mine runs at a time.
type Server struct {
	chain       *blockchain.Chain
	builder     *blockchain.Builder
	log         *slog.Logger
	mineTimeout time.Duration
	digestName  string
	security    SecurityConfig
	limiter     *Limiter
	startedAt   time.Time

	mineMu sync.Mutex
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Chain == nil || cfg.Builder == nil {
		return nil, errors.New("api: chain and builder are required")
	}
	if cfg.DigestName == "" {
		cfg.DigestName = "charsum"
	}

	sec := cfg.Security
	if sec.RequireKeyFor == nil {
		sec.RequireKeyFor = map[string]bool{
			"/drafts": true,
			"/mine":   true,
			"/blocks": true,
		}
	}

	return &Server{
		chain:       cfg.Chain,
		builder:     cfg.Builder,
		log:         logging.OrDiscard(cfg.Log).With("component", "api"),
		mineTimeout: cfg.MineTimeout,
		digestName:  cfg.DigestName,
		security:    sec,
		limiter:     cfg.MineLimiter,
		startedAt:   time.Now().UTC(),
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("GET /status", s.handleStatus)

	mux.HandleFunc("GET /chain", s.handleChain)
	mux.HandleFunc("GET /chain/valid", s.handleValid)
	mux.HandleFunc("GET /chain/tip", s.handleTip)
	mux.HandleFunc("GET /blocks/{index}", s.handleBlock)

	mux.HandleFunc("POST /drafts", s.handleDraft)
	mine := s.handleMine
	if s.limiter != nil {
		mine = s.limiter.Wrap(mine)
	}
	mux.HandleFunc("POST /mine", mine)
	mux.HandleFunc("POST /blocks", s.handleAppend)

	return SecurityMiddleware(s.security, mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, apitypes.Health{
		OK:   true,
		Time: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	v := version.Get()
	writeJSON(w, http.StatusOK, apitypes.VersionInfo{
		Version:   v.Version,
		Commit:    v.Commit,
		GoVersion: v.GoVersion,
		Platform:  v.Platform,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	miner := s.builder.Miner()
	writeJSON(w, http.StatusOK, apitypes.NodeStatus{
		StartedAt:    s.startedAt.Format(time.RFC3339Nano),
		UptimeSec:    int64(time.Since(s.startedAt).Seconds()),
		Height:       s.chain.Len(),
		Valid:        s.chain.Validate(),
		Consensus:    miner.Engine().Describe(),
		MaxAttempts:  miner.MaxAttempts(),
		NextSequence: s.builder.Counter().Current(),
		Digest:       s.digestName,
	})
}

func (s *Server) handleChain(w http.ResponseWriter, _ *http.Request) {
	// one snapshot so length, validity and blocks agree
	snap := s.chain.Snapshot()
	blocks := snap.Blocks()
	out := apitypes.ChainView{
		Length: len(blocks),
		Valid:  snap.Validate(),
		Blocks: make([]apitypes.Block, 0, len(blocks)),
	}
	for _, b := range blocks {
		out.Blocks = append(out.Blocks, toAPIBlock(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleValid(w http.ResponseWriter, _ *http.Request) {
	snap := s.chain.Snapshot()
	writeJSON(w, http.StatusOK, apitypes.Validity{Valid: snap.Validate(), Length: snap.Len()})
}

func (s *Server) handleTip(w http.ResponseWriter, _ *http.Request) {
	tip, ok := s.chain.Tip()
	if !ok {
		s.writeError(w, fmt.Errorf("chain is empty: %w", blockchain.ErrIndexOutOfRange))
		return
	}
	writeJSON(w, http.StatusOK, toAPIBlock(tip))
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		s.writeBadRequest(w, "index must be an integer")
		return
	}
	b, err := s.chain.Get(idx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAPIBlock(b))
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	var req apitypes.DraftRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}

	var tip *blockchain.Block
	if t, ok := s.chain.Tip(); ok {
		tip = &t
	}
	d, err := s.builder.Draft(tip, req.Transactions)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, apitypes.DraftResponse{
		Block:       toAPIBlock(d.Block),
		ContentHash: d.ContentHash,
		TxList:      blockchain.ListTransactions(req.Transactions),
	})
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	var req apitypes.MineRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}

	if !s.mineMu.TryLock() {
		writeJSON(w, http.StatusConflict, apitypes.ErrorResponse{
			OK:    false,
			Code:  apitypes.CodeMiningBusy,
			Error: "another mine is in progress",
		})
		return
	}
	defer s.mineMu.Unlock()

	if !s.chain.Validate() {
		s.writeError(w, blockchain.ErrChainInvalid)
		return
	}

	fields := blockchain.DraftFields{
		Timestamp:    req.Timestamp,
		Merkle:       req.Merkle,
		PrevHash:     req.PreviousHash,
		Transactions: req.Transactions,
	}
	if fields.PrevHash == "" {
		fields.PrevHash = "0"
		if tip, ok := s.chain.Tip(); ok {
			fields.PrevHash = tip.Hash
		}
	}

	ctx := r.Context()
	if s.mineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.mineTimeout)
		defer cancel()
	}

	mined, err := s.builder.Mine(ctx, fields)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if req.Append {
		if err := s.chain.Append(mined); err != nil {
			s.writeError(w, err)
			return
		}
	}

	s.log.Info("mine request served", "sequence", mined.Sequence, "nonce", mined.Nonce, "appended", req.Append)
	writeJSON(w, http.StatusOK, apitypes.MineResponse{
		Block:    toAPIBlock(mined),
		Appended: req.Append,
		Length:   s.chain.Len(),
	})
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	var in apitypes.Block
	if err := decodeBody(r, &in); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	b := fromAPIBlock(in)
	if err := b.CheckFormat(); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.chain.Append(b); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apitypes.AppendResponse{OK: true, Length: s.chain.Len()})
}

func (s *Server) writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, apitypes.ErrorResponse{OK: false, Code: apitypes.CodeBadRequest, Error: msg})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "err", err)
	}
	writeJSON(w, status, apitypes.ErrorResponse{OK: false, Code: code, Error: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, blockchain.ErrMiningExhausted):
		return http.StatusUnprocessableEntity, apitypes.CodeMiningExhausted
	case errors.Is(err, blockchain.ErrLinkageOrProofRejected):
		return http.StatusConflict, apitypes.CodeLinkageRejected
	case errors.Is(err, blockchain.ErrChainInvalid):
		return http.StatusConflict, apitypes.CodeChainInvalid
	case errors.Is(err, blockchain.ErrAlreadyMined):
		return http.StatusConflict, apitypes.CodeAlreadyMined
	case errors.Is(err, blockchain.ErrIndexOutOfRange):
		return http.StatusNotFound, apitypes.CodeIndexOutOfRange
	case errors.Is(err, blockchain.ErrInvalidHash):
		return http.StatusBadRequest, apitypes.CodeInvalidHash
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, apitypes.CodeMiningTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, apitypes.CodeMiningCancelled
	default:
		return http.StatusInternalServerError, apitypes.CodeInternal
	}
}

func decodeBody(r *http.Request, v any) error {
	b, err := readBodyLimited(r.Body, maxBodyBytes)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func toAPIBlock(b blockchain.Block) apitypes.Block {
	return apitypes.Block{
		SequenceNumber: b.Sequence,
		Timestamp:      b.Timestamp,
		Merkle:         b.Merkle,
		PreviousHash:   b.PrevHash,
		Transactions:   b.Transactions,
		Nonce:          b.Nonce,
		Hash:           b.Hash,
	}
}

func fromAPIBlock(b apitypes.Block) blockchain.Block {
	return blockchain.Block{
		Sequence:     b.SequenceNumber,
		Timestamp:    b.Timestamp,
		Merkle:       b.Merkle,
		PrevHash:     b.PreviousHash,
		Transactions: b.Transactions,
		Nonce:        b.Nonce,
		Hash:         b.Hash,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readBodyLimited(r io.Reader, limit int64) ([]byte, error) {
	lr := io.LimitReader(r, limit)
	b, err := io.ReadAll(lr)
	if err != nil {
		return nil, err
	}
	if int64(len(b)) >= limit {
		return nil, errors.New("request too large")
	}
	return b, nil
}
