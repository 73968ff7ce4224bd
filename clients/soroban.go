package clients

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/stellar/go-stellar-sdk/xdr"
)

// SorobanTransport talks JSON-RPC 2.0 to a Soroban RPC endpoint. Request
// params are sent by name, as a single JSON object.
type SorobanTransport struct {
	client *jrpc2.Client
	rpcURL string
}

// NewSorobanTransport creates a transport for the given endpoint. HTTP is
// connectionless, so nothing is dialled until the first call.
func NewSorobanTransport(_ context.Context, rpcURL string) (*SorobanTransport, error) {
	u, err := url.Parse(rpcURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("failed to connect to %s: not an http(s) endpoint", rpcURL)
	}

	return &SorobanTransport{
		client: jrpc2.NewClient(jhttp.NewChannel(rpcURL, nil), nil),
		rpcURL: rpcURL,
	}, nil
}

type txParams struct {
	Transaction string `json:"transaction"`
}

type hashParams struct {
	Hash string `json:"hash"`
}

type simulateResponse struct {
	Error           string `json:"error,omitempty"`
	TransactionData string `json:"transactionData"`
	MinResourceFee  string `json:"minResourceFee"`
	Results         []struct {
		Auth []string `json:"auth"`
		XDR  string   `json:"xdr"`
	} `json:"results"`
	LatestLedger uint32 `json:"latestLedger"`
}

type sendResponse struct {
	Status         string `json:"status"`
	Hash           string `json:"hash"`
	LatestLedger   uint32 `json:"latestLedger"`
	ErrorResultXDR string `json:"errorResultXdr,omitempty"`
}

type getTransactionResponse struct {
	Status        string `json:"status"`
	Ledger        uint32 `json:"ledger"`
	ResultXDR     string `json:"resultXdr"`
	ResultMetaXDR string `json:"resultMetaXdr"`
}

// Simulate runs simulateTransaction for a base64 envelope.
func (t *SorobanTransport) Simulate(ctx context.Context, tx string) (*Simulation, error) {
	var resp simulateResponse
	if err := t.client.CallResult(ctx, "simulateTransaction", txParams{Transaction: tx}, &resp); err != nil {
		return nil, fmt.Errorf("simulateTransaction: %w", err)
	}

	sim := &Simulation{
		Error:           resp.Error,
		TransactionData: resp.TransactionData,
		LatestLedger:    resp.LatestLedger,
	}
	if resp.MinResourceFee != "" {
		fee, err := strconv.ParseInt(resp.MinResourceFee, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("simulateTransaction: invalid minResourceFee %q", resp.MinResourceFee)
		}
		sim.MinResourceFee = fee
	}
	if len(resp.Results) > 0 {
		sim.ResultXDR = resp.Results[0].XDR
		sim.Auth = resp.Results[0].Auth
	}
	return sim, nil
}

// Send broadcasts a signed base64 envelope.
func (t *SorobanTransport) Send(ctx context.Context, signedTx string) (*SendResult, error) {
	var resp sendResponse
	if err := t.client.CallResult(ctx, "sendTransaction", txParams{Transaction: signedTx}, &resp); err != nil {
		return nil, fmt.Errorf("sendTransaction: %w", err)
	}
	return &SendResult{
		Hash:           resp.Hash,
		Status:         resp.Status,
		LatestLedger:   resp.LatestLedger,
		ErrorResultXDR: resp.ErrorResultXDR,
	}, nil
}

// GetTransaction fetches the status of a transaction by hash.
func (t *SorobanTransport) GetTransaction(ctx context.Context, hash string) (*TransactionResult, error) {
	var resp getTransactionResponse
	if err := t.client.CallResult(ctx, "getTransaction", hashParams{Hash: hash}, &resp); err != nil {
		return nil, fmt.Errorf("getTransaction: %w", err)
	}
	return &TransactionResult{
		Status:        resp.Status,
		Ledger:        resp.Ledger,
		ResultXDR:     resp.ResultXDR,
		ResultMetaXDR: resp.ResultMetaXDR,
	}, nil
}

type ledgerKeysParams struct {
	Keys []string `json:"keys"`
}

type getLedgerEntriesResponse struct {
	Entries []struct {
		Key string `json:"key"`
		XDR string `json:"xdr"`
	} `json:"entries"`
	LatestLedger uint32 `json:"latestLedger"`
}

// SequenceNumber reads the current sequence number of an account through
// getLedgerEntries.
func (t *SorobanTransport) SequenceNumber(ctx context.Context, address string) (int64, error) {
	key, err := accountLedgerKey(address)
	if err != nil {
		return 0, err
	}

	var resp getLedgerEntriesResponse
	if err := t.client.CallResult(ctx, "getLedgerEntries", ledgerKeysParams{Keys: []string{key}}, &resp); err != nil {
		return 0, fmt.Errorf("getLedgerEntries: %w", err)
	}
	if len(resp.Entries) == 0 {
		return 0, fmt.Errorf("account %s not found", address)
	}

	var data xdr.LedgerEntryData
	if err := xdr.SafeUnmarshalBase64(resp.Entries[0].XDR, &data); err != nil {
		return 0, fmt.Errorf("getLedgerEntries: invalid entry: %w", err)
	}
	account, ok := data.GetAccount()
	if !ok {
		return 0, fmt.Errorf("getLedgerEntries: entry for %s is not an account", address)
	}
	return int64(account.SeqNum), nil
}

func accountLedgerKey(address string) (string, error) {
	var id xdr.AccountId
	if err := id.SetAddress(address); err != nil {
		return "", fmt.Errorf("%s is not an account: %w", address, err)
	}
	return xdr.MarshalBase64(xdr.LedgerKey{
		Type:    xdr.LedgerEntryTypeAccount,
		Account: &xdr.LedgerKeyAccount{AccountId: id},
	})
}

// URL returns the endpoint the transport is connected to.
func (t *SorobanTransport) URL() string {
	return t.rpcURL
}

// Close closes the underlying RPC client
func (t *SorobanTransport) Close() {
	if t.client != nil {
		_ = t.client.Close()
	}
}
