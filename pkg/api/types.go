package api

type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

type Health struct {
	OK   bool   `json:"ok"`
	Time string `json:"time"`
}

type NodeStatus struct {
	StartedAt    string `json:"startedAt"`
	UptimeSec    int64  `json:"uptimeSec"`
	Height       int    `json:"height"`
	Valid        bool   `json:"valid"`
	Consensus    string `json:"consensus"`
	MaxAttempts  uint64 `json:"maxAttempts"`
	NextSequence uint64 `json:"nextSequence"`
	Digest       string `json:"digest"`
}

// Block mirrors the serialized block: every field, mined or not.
type Block struct {
	SequenceNumber uint64 `json:"sequenceNumber"`
	Timestamp      int64  `json:"timestamp"`
	Merkle         uint64 `json:"merkle"`
	PreviousHash   string `json:"previousHash"`
	Transactions   string `json:"transactions"`
	Nonce          uint64 `json:"nonce"`
	Hash           string `json:"hash"`
}

type ChainView struct {
	Length int     `json:"length"`
	Valid  bool    `json:"valid"`
	Blocks []Block `json:"blocks"`
}

type Validity struct {
	Valid  bool `json:"valid"`
	Length int  `json:"length"`
}

type DraftRequest struct {
	Transactions string `json:"transactions"`
}

type DraftResponse struct {
	Block       Block    `json:"block"`
	ContentHash string   `json:"contentHash"`
	TxList      []string `json:"txList"`
}

// MineRequest carries draft values. Nil Timestamp or Merkle are derived by the node.
type MineRequest struct {
	Timestamp    *int64  `json:"timestamp,omitempty"`
	Merkle       *uint64 `json:"merkle,omitempty"`
	PreviousHash string  `json:"previousHash"`
	Transactions string  `json:"transactions"`
	Append       bool    `json:"append"`
}

type MineResponse struct {
	Block    Block `json:"block"`
	Appended bool  `json:"appended"`
	Length   int   `json:"length"`
}

type AppendResponse struct {
	OK     bool `json:"ok"`
	Length int  `json:"length"`
}

// Error codes returned in ErrorResponse.Code.
const (
	CodeMiningExhausted = "mining_exhausted"
	CodeLinkageRejected = "linkage_or_proof_rejected"
	CodeIndexOutOfRange = "index_out_of_range"
	CodeChainInvalid    = "chain_invalid"
	CodeInvalidHash     = "invalid_hash"
	CodeAlreadyMined    = "already_mined"
	CodeMiningTimeout   = "mining_timeout"
	CodeMiningCancelled = "mining_cancelled"
	CodeMiningBusy      = "mining_busy"
	CodeBadRequest      = "bad_request"
	CodeRateLimited     = "rate_limited"
	CodeUnauthorized    = "unauthorized"
	CodeInternal        = "internal"
)

type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Code  string `json:"code"`
	Error string `json:"error"`
}
