package types

// Network names a Stellar network by its passphrase.
type Network string

const (
	NetworkTestnet    Network = "Test SDF Network ; September 2015"
	NetworkPublic     Network = "Public Global Stellar Network ; September 2015"
	NetworkFuturenet  Network = "Test SDF Future Network ; October 2022"
	NetworkStandalone Network = "Standalone Network ; February 2017"
)

// IsTestnet reports whether the network holds no real value.
func (n Network) IsTestnet() bool {
	return n != NetworkPublic
}

func (n Network) String() string {
	return string(n)
}

// Transaction statuses reported by the RPC endpoint.
const (
	TxStatusPending       = "PENDING"
	TxStatusDuplicate     = "DUPLICATE"
	TxStatusTryAgainLater = "TRY_AGAIN_LATER"
	TxStatusError         = "ERROR"
	TxStatusSuccess       = "SUCCESS"
	TxStatusFailed        = "FAILED"
	TxStatusNotFound      = "NOT_FOUND"
)
