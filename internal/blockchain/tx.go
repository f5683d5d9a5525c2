package blockchain

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// TxLine is one "amount&from&to" line of a payload. The chain never interprets it.
type TxLine struct {
	Amount string
	From   string
	To     string
}

func (t TxLine) String() string {
	return t.Amount + "&" + t.From + "&" + t.To
}

// ParseTransactions splits a payload into lines. Blank lines are skipped; missing parts stay empty.
func ParseTransactions(text string) []TxLine {
	var out []TxLine
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.SplitN(line, "&", 3)
		for len(parts) < 3 {
			parts = append(parts, "")
		}
		out = append(out, TxLine{Amount: parts[0], From: parts[1], To: parts[2]})
	}
	return out
}

// ListTransactions renders a payload as "1. 10 from alice to bob" lines.
func ListTransactions(text string) []string {
	lines := ParseTransactions(text)
	out := make([]string, 0, len(lines))
	for i, tx := range lines {
		out = append(out, fmt.Sprintf("%d. %s from %s to %s", i+1, tx.Amount, tx.From, tx.To))
	}
	return out
}

var DefaultParties = []string{"alice", "bob", "carol", "dave", "erin", "frank"}

// GenerateTx returns a random transaction line between two distinct parties.
func GenerateTx(r *rand.Rand, parties []string) string {
	if len(parties) < 2 {
		parties = DefaultParties
	}
	from := r.IntN(len(parties))
	to := r.IntN(len(parties) - 1)
	if to >= from {
		to++
	}
	amount := 1 + r.IntN(1000)
	return TxLine{
		Amount: strconv.Itoa(amount),
		From:   parties[from],
		To:     parties[to],
	}.String()
}

// AppendTx adds line to a payload, one transaction per line.
func AppendTx(payload, line string) string {
	payload = strings.TrimRight(payload, "\n")
	if payload == "" {
		return line
	}
	return payload + "\n" + line
}
