package blockchain

import (
	"math/rand/v2"
	"reflect"
	"strconv"
	"testing"
)

func TestParseTransactions(t *testing.T) {
	got := ParseTransactions("10&alice&bob\r\n\n5&bob\n7&carol&dave&extra")
	want := []TxLine{
		{Amount: "10", From: "alice", To: "bob"},
		{Amount: "5", From: "bob", To: ""},
		{Amount: "7", From: "carol", To: "dave&extra"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ParseTransactions = %+v, want %+v", got, want)
	}
}

func TestListTransactions(t *testing.T) {
	got := ListTransactions("10&alice&bob\n5&bob&carol")
	want := []string{"1. 10 from alice to bob", "2. 5 from bob to carol"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ListTransactions = %q, want %q", got, want)
	}
	if len(ListTransactions("")) != 0 {
		t.Fatalf("empty payload should list nothing")
	}
}

func TestGenerateTx(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 200; i++ {
		line := GenerateTx(r, nil)
		txs := ParseTransactions(line)
		if len(txs) != 1 {
			t.Fatalf("generated %q parses into %d lines", line, len(txs))
		}
		tx := txs[0]
		if tx.From == tx.To || tx.From == "" || tx.To == "" {
			t.Fatalf("bad parties in %q", line)
		}
		n, err := strconv.Atoi(tx.Amount)
		if err != nil || n < 1 || n > 1000 {
			t.Fatalf("bad amount in %q", line)
		}
	}
}

func TestAppendTx(t *testing.T) {
	if got := AppendTx("", "1&a&b"); got != "1&a&b" {
		t.Fatalf("AppendTx on empty = %q", got)
	}
	if got := AppendTx("1&a&b\n", "2&b&c"); got != "1&a&b\n2&b&c" {
		t.Fatalf("AppendTx = %q", got)
	}
}
