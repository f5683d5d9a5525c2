package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/VeltarosLabs/blockforge/internal/blockchain"
	"github.com/VeltarosLabs/blockforge/internal/clock"
	"github.com/VeltarosLabs/blockforge/internal/consensus"
	apitypes "github.com/VeltarosLabs/blockforge/pkg/api"
)

type testNode struct {
	chain  *blockchain.Chain
	srv    *httptest.Server
	client *apitypes.Client
}

func newTestNode(t *testing.T, length int, maxAttempts uint64, cfg Config) *testNode {
	t.Helper()

	engine, err := consensus.NewPoW('1', length)
	if err != nil {
		t.Fatalf("pow: %v", err)
	}
	chain := blockchain.New(engine, nil)
	builder := blockchain.NewBuilder(blockchain.BuilderConfig{
		Clock: clock.NewSimulated(1_700_000_000_000, 1),
		Miner: blockchain.NewMiner(engine, maxAttempts, nil),
	})

	cfg.Chain = chain
	cfg.Builder = builder
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	var opts []apitypes.Option
	if cfg.Security.APIKey != "" {
		opts = append(opts, apitypes.WithAPIKey(cfg.Security.APIKey))
	}
	client, err := apitypes.New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return &testNode{chain: chain, srv: srv, client: client}
}

func expectCode(t *testing.T, err error, status int, code string) {
	t.Helper()
	var se *apitypes.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError %d/%s, got %v", status, code, err)
	}
	if se.Status != status || se.Code != code {
		t.Fatalf("got %d/%s, want %d/%s (%s)", se.Status, se.Code, status, code, se.Message)
	}
}

func TestDraftMineAppendFlow(t *testing.T) {
	n := newTestNode(t, 1, 0, Config{})
	ctx := context.Background()

	st, err := n.client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Height != 0 || !st.Valid || st.Consensus != "pow(prefix=1)" || st.Digest != "charsum" {
		t.Fatalf("unexpected status: %+v", st)
	}
	if _, ok, err := n.client.Tip(ctx); err != nil || ok {
		t.Fatalf("Tip on empty chain: ok=%v err=%v", ok, err)
	}

	d, err := n.client.Draft(ctx, apitypes.DraftRequest{Transactions: "10&alice&bob\n5&bob&carol"})
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if d.Block.PreviousHash != strings.Repeat("0", 64) || d.Block.Hash != "" || len(d.ContentHash) != 64 {
		t.Fatalf("unexpected draft: %+v", d)
	}
	if len(d.TxList) != 2 || d.TxList[0] != "1. 10 from alice to bob" {
		t.Fatalf("unexpected tx list: %v", d.TxList)
	}

	ts := d.Block.Timestamp
	mr := d.Block.Merkle
	first, err := n.client.Mine(ctx, apitypes.MineRequest{
		Timestamp:    &ts,
		Merkle:       &mr,
		PreviousHash: d.Block.PreviousHash,
		Transactions: d.Block.Transactions,
		Append:       true,
	})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if !first.Appended || first.Length != 1 || !strings.HasPrefix(first.Block.Hash, "1") {
		t.Fatalf("unexpected mine response: %+v", first)
	}
	if first.Block.Timestamp != ts || first.Block.Merkle != mr {
		t.Fatalf("mine did not keep draft values: %+v", first.Block)
	}

	// previousHash left empty chains onto the tip
	second, err := n.client.Mine(ctx, apitypes.MineRequest{Transactions: "1&carol&dave", Append: true})
	if err != nil {
		t.Fatalf("Mine second: %v", err)
	}
	if second.Block.PreviousHash != first.Block.Hash || second.Block.SequenceNumber != first.Block.SequenceNumber+1 {
		t.Fatalf("second block not linked: %+v", second.Block)
	}

	tip, ok, err := n.client.Tip(ctx)
	if err != nil || !ok || tip.Hash != second.Block.Hash {
		t.Fatalf("Tip = %+v ok=%v err=%v", tip, ok, err)
	}
	b0, err := n.client.Block(ctx, 0)
	if err != nil || b0 != first.Block {
		t.Fatalf("Block(0) = %+v err=%v", b0, err)
	}

	view, err := n.client.Chain(ctx)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if view.Length != 2 || !view.Valid || len(view.Blocks) != 2 {
		t.Fatalf("unexpected chain view: %+v", view)
	}
	v, err := n.client.Valid(ctx)
	if err != nil || !v.Valid || v.Length != 2 {
		t.Fatalf("Valid = %+v err=%v", v, err)
	}
}

func TestBlockIndexErrors(t *testing.T) {
	n := newTestNode(t, 1, 0, Config{})

	_, err := n.client.Block(context.Background(), 3)
	expectCode(t, err, http.StatusNotFound, apitypes.CodeIndexOutOfRange)

	resp, err := http.Get(n.srv.URL + "/blocks/abc")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestAppendRejectsUnlinkedAndUnsigned(t *testing.T) {
	n := newTestNode(t, 1, 0, Config{})
	ctx := context.Background()

	res, err := n.client.Mine(ctx, apitypes.MineRequest{Transactions: "1&a&b"})
	if err != nil {
		t.Fatalf("Mine: %v", err)
	}
	if res.Appended || res.Length != 0 {
		t.Fatalf("mine without append changed the chain: %+v", res)
	}

	unsigned := res.Block
	unsigned.Nonce = 0
	unsigned.Hash = ""
	_, err = n.client.Append(ctx, unsigned)
	expectCode(t, err, http.StatusConflict, apitypes.CodeLinkageRejected)

	ok, err := n.client.Append(ctx, res.Block)
	if err != nil || !ok.OK || ok.Length != 1 {
		t.Fatalf("Append = %+v err=%v", ok, err)
	}

	// same block again does not extend the new tip
	_, err = n.client.Append(ctx, res.Block)
	expectCode(t, err, http.StatusConflict, apitypes.CodeLinkageRejected)
	if n.chain.Len() != 1 {
		t.Fatalf("chain length = %d", n.chain.Len())
	}

	bad := res.Block
	bad.PreviousHash = "not-hex"
	_, err = n.client.Append(ctx, bad)
	expectCode(t, err, http.StatusBadRequest, apitypes.CodeInvalidHash)
}

func TestMineExhausted(t *testing.T) {
	n := newTestNode(t, 64, 10, Config{})

	_, err := n.client.Mine(context.Background(), apitypes.MineRequest{Transactions: "x", Append: true})
	expectCode(t, err, http.StatusUnprocessableEntity, apitypes.CodeMiningExhausted)
	if n.chain.Len() != 0 {
		t.Fatalf("exhausted mine appended a block")
	}

	st, err := n.client.Status(context.Background())
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.NextSequence != 0 {
		t.Fatalf("counter advanced on failure: %d", st.NextSequence)
	}
}

func TestMineTimeout(t *testing.T) {
	n := newTestNode(t, 64, 1<<40, Config{MineTimeout: 20 * time.Millisecond})

	_, err := n.client.Mine(context.Background(), apitypes.MineRequest{Transactions: "x"})
	expectCode(t, err, http.StatusGatewayTimeout, apitypes.CodeMiningTimeout)
}

func TestMineRejectsUnknownFields(t *testing.T) {
	n := newTestNode(t, 1, 0, Config{})

	resp, err := http.Post(n.srv.URL+"/mine", "application/json", strings.NewReader(`{"transactions":"x","difficulty":9}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestAPIKeyGuardsMutations(t *testing.T) {
	n := newTestNode(t, 1, 0, Config{Security: SecurityConfig{APIKey: "s3cret"}})
	ctx := context.Background()

	anon, err := apitypes.New(n.srv.URL)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if _, err := anon.Valid(ctx); err != nil {
		t.Fatalf("reads should not need a key: %v", err)
	}
	_, err = anon.Mine(ctx, apitypes.MineRequest{Transactions: "x"})
	expectCode(t, err, http.StatusUnauthorized, apitypes.CodeUnauthorized)
	_, err = anon.Draft(ctx, apitypes.DraftRequest{Transactions: "x"})
	expectCode(t, err, http.StatusUnauthorized, apitypes.CodeUnauthorized)

	if _, err := n.client.Mine(ctx, apitypes.MineRequest{Transactions: "x", Append: true}); err != nil {
		t.Fatalf("keyed mine: %v", err)
	}
}

func TestMineRateLimited(t *testing.T) {
	n := newTestNode(t, 1, 0, Config{MineLimiter: NewLimiter(0, 1, 1)})
	ctx := context.Background()

	if _, err := n.client.Mine(ctx, apitypes.MineRequest{Transactions: "x"}); err != nil {
		t.Fatalf("first mine: %v", err)
	}
	_, err := n.client.Mine(ctx, apitypes.MineRequest{Transactions: "y"})
	expectCode(t, err, http.StatusTooManyRequests, apitypes.CodeRateLimited)

	// other endpoints are not limited
	if _, err := n.client.Status(ctx); err != nil {
		t.Fatalf("Status: %v", err)
	}
}

func TestSecurityHeadersAndPreflight(t *testing.T) {
	n := newTestNode(t, 1, 0, Config{Security: SecurityConfig{AllowedOrigins: []string{"https://ui.example"}}})

	req, _ := http.NewRequest(http.MethodOptions, n.srv.URL+"/mine", nil)
	req.Header.Set("Origin", "https://ui.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://ui.example" {
		t.Fatalf("allow origin = %q", got)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("missing nosniff header")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{blockchain.ErrMiningExhausted, http.StatusUnprocessableEntity, apitypes.CodeMiningExhausted},
		{fmt.Errorf("append: %w", blockchain.ErrLinkageOrProofRejected), http.StatusConflict, apitypes.CodeLinkageRejected},
		{blockchain.ErrChainInvalid, http.StatusConflict, apitypes.CodeChainInvalid},
		{blockchain.ErrAlreadyMined, http.StatusConflict, apitypes.CodeAlreadyMined},
		{blockchain.ErrIndexOutOfRange, http.StatusNotFound, apitypes.CodeIndexOutOfRange},
		{blockchain.ErrInvalidHash, http.StatusBadRequest, apitypes.CodeInvalidHash},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, apitypes.CodeMiningTimeout},
		{context.Canceled, http.StatusServiceUnavailable, apitypes.CodeMiningCancelled},
		{errors.New("boom"), http.StatusInternalServerError, apitypes.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			status, code := classify(tc.err)
			if status != tc.status || code != tc.code {
				t.Fatalf("classify(%v) = %d/%s", tc.err, status, code)
			}
		})
	}
}
