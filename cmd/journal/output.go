package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jacentio/quill/journal"
	"github.com/jacentio/quill/keys"
	"github.com/jacentio/quill/program"
)

func (a *app) jsonOutput() bool {
	return a.v.GetBool(cfgKeyJSON)
}

func (a *app) printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	fmt.Fprintln(a.out, string(out))
	return nil
}

func (a *app) printOwner(k *keys.Keypair, path string) error {
	if a.jsonOutput() {
		return a.printJSON(map[string]any{"owner": k.Owner(), "key": path})
	}
	fmt.Fprintf(a.out, "owner: %s\nkey:   %s\n", k.Owner(), path)
	return nil
}

func (a *app) printBalance(owner journal.Owner, balance int64) error {
	if a.jsonOutput() {
		return a.printJSON(map[string]any{"owner": owner, "balance": balance})
	}
	fmt.Fprintln(a.out, balance)
	return nil
}

func (a *app) printReceipt(r *program.Receipt) error {
	if a.jsonOutput() {
		return a.printJSON(r)
	}
	switch {
	case r.Entry != nil:
		return a.printEntry(r.Entry)
	case r.Counter != nil:
		fmt.Fprintf(a.out, "initialized journal count for %s\n", r.Counter.Owner)
	case r.Balance != nil:
		fmt.Fprintf(a.out, "balance: %d\n", *r.Balance)
	default:
		fmt.Fprintf(a.out, "%s: %s\n", r.Method, r.Message)
	}
	return nil
}

func (a *app) printEntry(e *journal.Entry) error {
	if a.jsonOutput() {
		return a.printJSON(e)
	}
	fmt.Fprintf(a.out, "id:       %d\n", e.ID)
	fmt.Fprintf(a.out, "owner:    %s\n", e.Owner)
	fmt.Fprintf(a.out, "title:    %s\n", e.Title)
	fmt.Fprintf(a.out, "content:  %s\n", e.Content)
	fmt.Fprintf(a.out, "created:  %s\n", formatTime(e.CreatedAt))
	fmt.Fprintf(a.out, "updated:  %s\n", formatTime(e.UpdatedAt))
	return nil
}

func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}
