package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jacentio/quill/journal"
	"github.com/jacentio/quill/keys"
	"github.com/jacentio/quill/program"
)

func (a *app) keygenCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an owner key",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.keyPath()
			if err != nil {
				return err
			}
			k, err := keys.Generate(rand.Reader)
			if err != nil {
				return err
			}
			if err := keys.Save(path, k, force); err != nil {
				return err
			}
			return a.printOwner(k, path)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing key file")
	return cmd
}

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the owner's journal count",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.submit(cmd, program.Instruction{Method: program.MethodInitialize})
		},
	}
}

func (a *app) fundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fund <amount>",
		Short: "Deposit lamports to pay for entry storage",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: invalid amount %q", errUsage, args[0])
			}
			return a.submit(cmd, program.Instruction{Method: program.MethodFund, Amount: amount})
		},
	}
}

func (a *app) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show the owner's balance",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := a.signer(cmd)
			if err != nil {
				return err
			}
			b, err := a.svc.Balance(cmd.Context(), k.Owner())
			if err != nil {
				return err
			}
			return a.printBalance(k.Owner(), b)
		},
	}
}

func (a *app) createCmd() *cobra.Command {
	var title, content string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a journal entry",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.submit(cmd, program.Instruction{
				Method:  program.MethodCreate,
				Title:   title,
				Content: content,
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "entry title (at most 50 bytes)")
	cmd.Flags().StringVar(&content, "content", "", "entry content (at most 500 bytes)")
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	var title, content string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Replace the title and content of a journal entry",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.submit(cmd, program.Instruction{
				Method:  program.MethodUpdate,
				ID:      id,
				Title:   title,
				Content: content,
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title (at most 50 bytes)")
	cmd.Flags().StringVar(&content, "content", "", "new content (at most 500 bytes)")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a journal entry and refund its storage",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.submit(cmd, program.Instruction{Method: program.MethodDelete, ID: id, Title: title})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title to record in the log")
	return cmd
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a journal entry",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			k, err := a.signer(cmd)
			if err != nil {
				return err
			}
			e, err := a.svc.Get(cmd.Context(), k.Owner(), id)
			if err != nil {
				return err
			}
			return a.printEntry(e)
		},
	}
}

// signer loads the owner key and opens the backend.
func (a *app) signer(cmd *cobra.Command) (*keys.Keypair, error) {
	path, err := a.keyPath()
	if err != nil {
		return nil, err
	}
	k, err := keys.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load key (run 'journal keygen' first): %w", err)
	}
	if err := a.open(cmd.Context()); err != nil {
		return nil, err
	}
	return k, nil
}

// submit signs ins with the owner key and processes it.
func (a *app) submit(cmd *cobra.Command, ins program.Instruction) error {
	k, err := a.signer(cmd)
	if err != nil {
		return err
	}
	if err := a.bind(cmd.Context(), k.Owner(), &ins); err != nil {
		return err
	}
	tx, err := program.Sign(k, ins)
	if err != nil {
		return err
	}
	r, err := a.prog.Process(cmd.Context(), tx)
	if err != nil {
		return err
	}
	return a.printReceipt(r)
}

// bind records the state ins is signed against, so the signed transaction
// cannot be applied a second time.
func (a *app) bind(ctx context.Context, owner journal.Owner, ins *program.Instruction) error {
	switch ins.Method {
	case program.MethodCreate:
		c, err := a.svc.Counter(ctx, owner)
		if err != nil {
			return err
		}
		ins.Count = c.Count
	case program.MethodUpdate, program.MethodDelete:
		e, err := a.svc.Get(ctx, owner, ins.ID)
		if err != nil {
			return err
		}
		ins.Version = e.Version
	}
	return nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid id %q", errUsage, s)
	}
	return id, nil
}
