package types

import (
	"regexp"
	"strconv"
)

// ContractErrorCode is a numeric error raised by the payment contract.
type ContractErrorCode uint32

const (
	// User profile errors (1xx)
	ContractUsernameAlreadyExists ContractErrorCode = 100
	ContractUsernameNotFound      ContractErrorCode = 101
	ContractInvalidUsername       ContractErrorCode = 102
	ContractUserAlreadyRegistered ContractErrorCode = 103
	ContractDisplayNameTooLong    ContractErrorCode = 104
	ContractUnauthorized          ContractErrorCode = 105

	// Payment errors (2xx)
	ContractPaymentNotFound       ContractErrorCode = 200
	ContractPaymentAlreadyClaimed ContractErrorCode = 201
	ContractInvalidAmount         ContractErrorCode = 202
	ContractMessageTooLong        ContractErrorCode = 203
	ContractInvalidToken          ContractErrorCode = 204
	ContractRecipientNotFound     ContractErrorCode = 205
	ContractNotRecipient          ContractErrorCode = 206

	// Security errors (3xx)
	ContractPaused            ContractErrorCode = 300
	ContractRateLimitExceeded ContractErrorCode = 301
	ContractInvalidAddress    ContractErrorCode = 302

	// Storage errors (4xx)
	ContractStorageError ContractErrorCode = 400
	ContractDataNotFound ContractErrorCode = 401

	ContractInternalError ContractErrorCode = 900
)

var contractErrorMessages = map[ContractErrorCode]string{
	ContractUsernameAlreadyExists: "This username is already taken",
	ContractUsernameNotFound:      "Username not found",
	ContractInvalidUsername:       "Username must be 3-30 characters (alphanumeric and underscore only)",
	ContractUserAlreadyRegistered: "You already have a profile",
	ContractDisplayNameTooLong:    "Display name must be 100 characters or less",
	ContractUnauthorized:          "You are not authorized to perform this action",
	ContractPaymentNotFound:       "Payment not found",
	ContractPaymentAlreadyClaimed: "Payment has already been claimed",
	ContractInvalidAmount:         "Amount must be greater than zero",
	ContractMessageTooLong:        "Message must be 500 characters or less",
	ContractInvalidToken:          "Invalid token address",
	ContractRecipientNotFound:     "Recipient username does not exist",
	ContractNotRecipient:          "You are not the recipient of this payment",
	ContractPaused:                "Contract is currently paused",
	ContractRateLimitExceeded:     "Too many payments. Please wait a few minutes.",
	ContractInvalidAddress:        "Invalid address format",
	ContractStorageError:          "Storage operation failed",
	ContractDataNotFound:          "Data not found",
	ContractInternalError:         "Internal error occurred",
}

// Message returns the user-facing description of the code.
func (c ContractErrorCode) Message() string {
	if msg, ok := contractErrorMessages[c]; ok {
		return msg
	}
	return "Unknown contract error " + strconv.FormatUint(uint64(c), 10)
}

var contractErrorPattern = regexp.MustCompile(`Error\(Contract, #(\d+)\)`)

// ParseContractError extracts the contract error code embedded in a host
// diagnostic such as "HostError: Error(Contract, #201)".
func ParseContractError(detail string) (ContractErrorCode, bool) {
	m := contractErrorPattern.FindStringSubmatch(detail)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, false
	}
	return ContractErrorCode(n), true
}
