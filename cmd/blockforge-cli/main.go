package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/VeltarosLabs/blockforge/internal/blockchain"
	"github.com/VeltarosLabs/blockforge/internal/clock"
	"github.com/VeltarosLabs/blockforge/internal/consensus"
	"github.com/VeltarosLabs/blockforge/internal/logging"
	apitypes "github.com/VeltarosLabs/blockforge/pkg/api"
	"github.com/VeltarosLabs/blockforge/pkg/version"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "version":
		runVersion()
	case "status":
		runStatus(os.Args[2:])
	case "chain":
		runChain(os.Args[2:])
	case "block":
		runBlock(os.Args[2:])
	case "draft":
		runDraft(os.Args[2:])
	case "mine":
		runMine(os.Args[2:])
	case "valid":
		runValid(os.Args[2:])
	case "verify":
		runVerify(os.Args[2:])
	case "demo":
		runDemo(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Print(`blockforge CLI

Usage:
  blockforge-cli version
  blockforge-cli status [--node <url>]
  blockforge-cli chain [--node <url>] [--jsonl <path|->]
  blockforge-cli block --index <n> [--node <url>]
  blockforge-cli draft --tx <payload> [--node <url>]
  blockforge-cli mine [--tx <payload>] [--random <n>] [--append=true] [--node <url>]
  blockforge-cli valid [--node <url>]
  blockforge-cli verify --file <blocks.jsonl> [--digit 1] [--difficulty 4]
  blockforge-cli demo [--blocks 3] [--digit 1] [--difficulty 4] [--digest charsum|merkle|blake3]

Notes:
  - payloads hold one "amount&from&to" transaction per line.
  - --node defaults to $BLOCKFORGE_NODE or http://127.0.0.1:8080; --key to $BLOCKFORGE_API_KEY.
  - demo runs entirely in process; Ctrl-C cancels the mine in progress.
`)
}

func runVersion() {
	fmt.Printf("blockforge CLI\n%s\n", version.Get())
}

type nodeFlags struct {
	url *string
	key *string
}

func addNodeFlags(fs *flag.FlagSet) nodeFlags {
	def := strings.TrimSpace(os.Getenv("BLOCKFORGE_NODE"))
	if def == "" {
		def = "http://127.0.0.1:8080"
	}
	return nodeFlags{
		url: fs.String("node", def, "Node API base URL"),
		key: fs.String("key", os.Getenv("BLOCKFORGE_API_KEY"), "API key for mutating calls"),
	}
}

func (n nodeFlags) client() *apitypes.Client {
	c, err := apitypes.New(*n.url, apitypes.WithAPIKey(*n.key))
	if err != nil {
		fatal(err)
	}
	return c
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	nf := addNodeFlags(fs)
	_ = fs.Parse(args)

	st, err := nf.client().Status(context.Background())
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Height:        %d\nValid:         %t\nConsensus:     %s\nMax attempts:  %d\nNext sequence: %d\nDigest:        %s\nUptime:        %ds\n",
		st.Height, st.Valid, st.Consensus, st.MaxAttempts, st.NextSequence, st.Digest, st.UptimeSec)
}

func runChain(args []string) {
	fs := flag.NewFlagSet("chain", flag.ExitOnError)
	nf := addNodeFlags(fs)
	jsonl := fs.String("jsonl", "", "Write blocks as JSON lines to this path (- for stdout)")
	_ = fs.Parse(args)

	view, err := nf.client().Chain(context.Background())
	if err != nil {
		fatal(err)
	}

	blocks := make([]blockchain.Block, 0, len(view.Blocks))
	for _, b := range view.Blocks {
		blocks = append(blocks, fromAPIBlock(b))
	}

	if *jsonl != "" {
		var w io.Writer = os.Stdout
		if *jsonl != "-" {
			f, err := os.Create(*jsonl)
			if err != nil {
				fatal(err)
			}
			defer f.Close()
			w = f
		}
		if err := blockchain.WriteJSONL(w, blocks); err != nil {
			fatal(err)
		}
		return
	}

	for _, b := range blocks {
		fmt.Println(b.String())
		fmt.Println()
	}
	fmt.Printf("Length: %d  Valid: %t\n", view.Length, view.Valid)
}

func runBlock(args []string) {
	fs := flag.NewFlagSet("block", flag.ExitOnError)
	nf := addNodeFlags(fs)
	index := fs.Int("index", -1, "Block index (0 is the oldest)")
	_ = fs.Parse(args)

	if *index < 0 {
		fatal(errors.New("--index is required"))
	}
	b, err := nf.client().Block(context.Background(), *index)
	if err != nil {
		fatal(err)
	}
	fmt.Println(fromAPIBlock(b).String())
}

func runDraft(args []string) {
	fs := flag.NewFlagSet("draft", flag.ExitOnError)
	nf := addNodeFlags(fs)
	tx := fs.String("tx", "", "Transaction payload")
	_ = fs.Parse(args)

	d, err := nf.client().Draft(context.Background(), apitypes.DraftRequest{Transactions: *tx})
	if err != nil {
		fatal(err)
	}
	fmt.Println(fromAPIBlock(d.Block).String())
	fmt.Println("Content hash:", d.ContentHash)
	for _, l := range d.TxList {
		fmt.Println("  " + l)
	}
}

func runMine(args []string) {
	fs := flag.NewFlagSet("mine", flag.ExitOnError)
	nf := addNodeFlags(fs)
	tx := fs.String("tx", "", "Transaction payload")
	random := fs.Int("random", 0, "Append this many random transactions to the payload")
	appendBlock := fs.Bool("append", true, "Append the mined block to the node's chain")
	_ = fs.Parse(args)

	payload := *tx
	if *random > 0 {
		r := newRand()
		for range *random {
			payload = blockchain.AppendTx(payload, blockchain.GenerateTx(r, blockchain.DefaultParties))
		}
	}
	if strings.TrimSpace(payload) == "" {
		fatal(errors.New("--tx or --random is required"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	res, err := nf.client().Mine(ctx, apitypes.MineRequest{Transactions: payload, Append: *appendBlock})
	if apitypes.HasCode(err, apitypes.CodeChainInvalid) {
		fatal(errors.New("node chain is not valid; refusing to mine"))
	}
	if err != nil {
		fatal(err)
	}
	fmt.Println(fromAPIBlock(res.Block).String())
	fmt.Printf("\nMined in %s. Appended: %t  Chain length: %d\n", time.Since(start).Round(time.Millisecond), res.Appended, res.Length)
}

func runValid(args []string) {
	fs := flag.NewFlagSet("valid", flag.ExitOnError)
	nf := addNodeFlags(fs)
	_ = fs.Parse(args)

	v, err := nf.client().Valid(context.Background())
	if err != nil {
		fatal(err)
	}
	if v.Valid {
		fmt.Printf("OK (%d blocks)\n", v.Length)
		return
	}
	fmt.Printf("INVALID (%d blocks)\n", v.Length)
	os.Exit(1)
}

// runVerify replays a JSON lines dump into a fresh chain.
func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	file := fs.String("file", "", "JSON lines file written by 'chain --jsonl'")
	digit := fs.String("digit", string(consensus.DefaultDigit), "Hash prefix digit")
	difficulty := fs.Int("difficulty", consensus.DefaultLength, "Hash prefix length")
	_ = fs.Parse(args)

	if strings.TrimSpace(*file) == "" {
		fatal(errors.New("--file is required"))
	}
	engine := mustEngine(*digit, *difficulty)

	f, err := os.Open(*file)
	if err != nil {
		fatal(err)
	}
	defer f.Close()

	blocks, err := blockchain.ReadJSONL(f)
	if err != nil {
		fatal(err)
	}

	chain := blockchain.New(engine, nil)
	for i, b := range blocks {
		if err := chain.Append(b); err != nil {
			fmt.Printf("INVALID at block %d: %v\n", i, err)
			os.Exit(1)
		}
	}
	fmt.Printf("OK (%d blocks, %s)\n", chain.Len(), engine.Describe())
}

func runDemo(args []string) {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	n := fs.Int("blocks", 3, "Number of blocks to mine")
	digit := fs.String("digit", string(consensus.DefaultDigit), "Hash prefix digit")
	difficulty := fs.Int("difficulty", consensus.DefaultLength, "Hash prefix length")
	maxAttempts := fs.Uint64("maxAttempts", blockchain.DefaultMaxAttempts, "Nonces tried per block")
	digestName := fs.String("digest", "charsum", "Payload digest: charsum|merkle|blake3")
	txPerBlock := fs.Int("tx", 3, "Random transactions per block")
	logLevel := fs.String("log.level", "warn", "Log level: debug|info|warn|error")
	_ = fs.Parse(args)

	engine := mustEngine(*digit, *difficulty)
	digest, ok := blockchain.DigestByName(*digestName)
	if !ok {
		fatal(fmt.Errorf("unknown digest: %q", *digestName))
	}

	log := logging.New(logging.Config{Level: *logLevel, Format: "text", Output: os.Stderr})
	chain := blockchain.New(engine, log)
	miner := blockchain.NewMiner(engine, *maxAttempts, log)
	builder := blockchain.NewBuilder(blockchain.BuilderConfig{
		Clock:  clock.System{},
		Digest: digest,
		Miner:  miner,
		Log:    log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r := newRand()
	for i := 0; i < *n; i++ {
		if !chain.Validate() {
			fatal(blockchain.ErrChainInvalid)
		}

		payload := ""
		for range *txPerBlock {
			payload = blockchain.AppendTx(payload, blockchain.GenerateTx(r, blockchain.DefaultParties))
		}

		var tip *blockchain.Block
		if t, ok := chain.Tip(); ok {
			tip = &t
		}
		d, err := builder.Draft(tip, payload)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Drafting block #%d (content hash %s)\n", d.Block.Sequence, d.ContentHash)
		for _, l := range blockchain.ListTransactions(payload) {
			fmt.Println("  " + l)
		}

		job := miner.Start(ctx, d.Block)
		mined, out, err := job.Wait()
		if err != nil {
			fatal(fmt.Errorf("mining block #%d: %w", d.Block.Sequence, err))
		}
		builder.Counter().Advance()
		if err := chain.Append(mined); err != nil {
			fatal(err)
		}

		fmt.Printf("Mined after %d attempts\n\n%s\n\n", out.Attempts, mined.String())
	}

	fmt.Printf("Chain length: %d  Valid: %t\n", chain.Len(), chain.Validate())
}

func mustEngine(digit string, difficulty int) *consensus.PoW {
	if len(digit) != 1 {
		fatal(fmt.Errorf("--digit must be one character: %q", digit))
	}
	engine, err := consensus.NewPoW(digit[0], difficulty)
	if err != nil {
		fatal(err)
	}
	return engine
}

func newRand() *rand.Rand {
	seed := uint64(time.Now().UnixNano())
	return rand.New(rand.NewPCG(seed, seed>>1|1))
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

func fatal(err error) {
	_, _ = os.Stderr.WriteString("blockforge-cli error: " + err.Error() + "\n")
	os.Exit(1)
}
