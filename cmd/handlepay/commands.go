package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/vitwit/handlepay"
	"github.com/vitwit/handlepay/types"
	"github.com/vitwit/handlepay/utils"
)

type command struct {
	args int
	run  func(ctx context.Context, h *handlepay.HandlePay, args []string) (any, error)
}

var commands = map[string]command{
	"profile": {1, func(ctx context.Context, h *handlepay.HandlePay, args []string) (any, error) {
		return h.GetProfile(ctx, args[0])
	}},
	"whois": {1, func(ctx context.Context, h *handlepay.HandlePay, args []string) (any, error) {
		name, ok, err := h.ResolveUsername(ctx, args[0])
		if err != nil {
			return nil, err
		}
		return map[string]any{"address": args[0], "registered": ok, "username": name}, nil
	}},
	"payment": {1, func(ctx context.Context, h *handlepay.HandlePay, args []string) (any, error) {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid payment id %q", args[0])
		}
		p, err := h.GetPayment(ctx, id)
		if err != nil || p == nil {
			return nil, err
		}
		return paymentView(p), nil
	}},
	"payments": {1, func(ctx context.Context, h *handlepay.HandlePay, args []string) (any, error) {
		list, err := h.ListPayments(ctx, args[0])
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(list))
		for _, p := range list {
			out = append(out, paymentView(p))
		}
		return out, nil
	}},
	"check": {1, func(ctx context.Context, h *handlepay.HandlePay, args []string) (any, error) {
		return h.CheckUsername(ctx, args[0])
	}},
	"to-stroops": {1, func(_ context.Context, _ *handlepay.HandlePay, args []string) (any, error) {
		s, err := utils.ToStroops(args[0])
		if err != nil {
			return nil, err
		}
		return map[string]string{"amount": args[0], "stroops": s.String()}, nil
	}},
	"from-stroops": {1, func(_ context.Context, _ *handlepay.HandlePay, args []string) (any, error) {
		s, err := utils.ParseStroops(args[0])
		if err != nil {
			return nil, err
		}
		return map[string]string{"stroops": s.String(), "amount": utils.FromStroops(s)}, nil
	}},
	"disconnect": {1, func(_ context.Context, h *handlepay.HandlePay, args []string) (any, error) {
		if err := h.Disconnect(args[0]); err != nil {
			return nil, err
		}
		return map[string]any{"address": args[0], "disconnected": true}, nil
	}},
	"connect": {1, func(ctx context.Context, h *handlepay.HandlePay, args []string) (any, error) {
		return h.Connect(ctx, args[0])
	}},
}

// run executes one command and writes its result as indented JSON. An
// absent entity prints null.
func run(ctx context.Context, h *handlepay.HandlePay, args []string, out io.Writer) error {
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("unknown command %q", args[0])
	}
	if len(args)-1 != cmd.args {
		return fmt.Errorf("%s expects %d argument(s), got %d", args[0], cmd.args, len(args)-1)
	}

	result, err := cmd.run(ctx, h, args[1:])
	if err != nil {
		return err
	}
	body, err := utils.NormalizeJSON(result)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(body))
	return err
}

func paymentView(p *types.Payment) map[string]any {
	return map[string]any{
		"payment_id":         p.PaymentID,
		"recipient_username": p.RecipientUsername,
		"sender":             p.Sender,
		"token":              p.Token,
		"amount":             utils.FromStroops(p.Amount),
		"stroops":            p.Amount.String(),
		"message":            p.Message,
		"timestamp":          p.Timestamp,
		"claimed":            p.Claimed,
	}
}
