package blockchain

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	vcrypto "github.com/VeltarosLabs/blockforge/internal/crypto"
)

// Serialize dumps every field of b as JSON.
func Serialize(b Block) ([]byte, error) {
	return json.Marshal(b)
}

// Deserialize is the inverse of Serialize. Hash fields must already be in fixed-width form.
func Deserialize(data []byte) (Block, error) {
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return Block{}, err
	}
	if err := b.CheckFormat(); err != nil {
		return Block{}, err
	}
	return b, nil
}

// WriteJSONL writes one serialized block per line, oldest first.
func WriteJSONL(w io.Writer, blocks []Block) error {
	bw := bufio.NewWriter(w)
	for i := range blocks {
		data, err := Serialize(blocks[i])
		if err != nil {
			return err
		}
		if _, err := bw.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func ReadJSONL(r io.Reader) ([]Block, error) {
	var out []Block
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		b, err := Deserialize(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, b)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CheckFormat verifies that hash fields are in the fixed-width lowercase hex form.
func (b Block) CheckFormat() error {
	if !vcrypto.IsHash64(b.PrevHash) {
		return fmt.Errorf("previousHash: %w", ErrInvalidHash)
	}
	if b.Hash != "" && !vcrypto.IsHash64(b.Hash) {
		return fmt.Errorf("hash: %w", ErrInvalidHash)
	}
	return nil
}
