package evm

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strings"

	apperrors "github.com/earnx/earnx/internal/shared/errors"
)

// Revert reason patterns, tried in order against provider messages
var revertPatterns = []*regexp.Regexp{
	regexp.MustCompile(`execution reverted: (.+?)("|$)`),
	regexp.MustCompile(`reverted with reason string '(.+?)'`),
	regexp.MustCompile(`revert (.+?)("|$)`),
	regexp.MustCompile(`'(.+?)'`),
}

// Classify maps a provider or transport error onto the transaction failure taxonomy.
// Structured JSON-RPC codes and revert data are consulted first; message matching is
// only used when the provider gave nothing structured.
func Classify(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}

	if appErr := apperrors.GetAppError(err); appErr != nil {
		return appErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.TimedOut("Request timed out", err)
	}

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		if classified := classifyRPC(rpcErr, err); classified != nil {
			return classified
		}
	}

	return classifyMessage(err)
}

func classifyRPC(rpcErr *RPCError, err error) *apperrors.AppError {
	switch rpcErr.Code {
	case CodeUserRejected:
		return apperrors.UserRejected(err)
	case CodeUnauthorized:
		return apperrors.TransportFailure("Wallet account is not authorized. Please reconnect your wallet and try again", err)
	case CodeDisconnected:
		return apperrors.TransportFailure("Wallet is disconnected. Please reconnect your wallet and try again", err)
	}

	if data := rpcErr.DataHex(); data != "" {
		raw, decodeErr := DecodeHex(data)
		if decodeErr == nil {
			if reason, ok := DecodeRevertReason(raw); ok {
				return revertError(reason, err)
			}
		}
	}

	if rpcErr.Code == CodeExecutionReverted {
		return revertFromMessage(rpcErr.Message, err)
	}

	return nil
}

func classifyMessage(err error) *apperrors.AppError {
	msg := err.Error()
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "user rejected"),
		strings.Contains(lower, "user denied"),
		strings.Contains(lower, "rejected by user"):
		return apperrors.UserRejected(err)
	case strings.Contains(lower, "execution reverted"), strings.Contains(lower, "reverted with reason"):
		return revertFromMessage(msg, err)
	case strings.Contains(lower, "insufficient funds"):
		return apperrors.TransportFailure(apperrors.MsgInsufficientGas, err)
	case strings.Contains(lower, "gas"):
		return apperrors.Wrap(err, apperrors.ErrCodeContractRevert, apperrors.MsgGasEstimation)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperrors.TransportFailure("Network error: "+msg, err)
	}

	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return apperrors.TransportFailure("RPC endpoint is rate limited, please retry shortly", err)
	}

	return apperrors.TransportFailure("Wallet error: "+msg, err)
}

func revertFromMessage(msg string, err error) *apperrors.AppError {
	if reason := ExtractRevertReason(msg); reason != "" {
		return revertError(reason, err)
	}
	return apperrors.Wrap(err, apperrors.ErrCodeContractRevert, "Contract execution reverted: "+msg)
}

// revertError maps stablecoin token reverts onto the funding errors, and
// anything else onto a contract revert carrying the reason
func revertError(reason string, err error) *apperrors.AppError {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "insufficient allowance"), strings.Contains(lower, "exceeds allowance"):
		return apperrors.InsufficientAllowance(err)
	case strings.Contains(lower, "exceeds balance"), strings.Contains(lower, "insufficient balance"):
		return apperrors.Wrap(err, apperrors.ErrCodeInsufficientBalance, apperrors.MsgBalanceTooLow)
	}
	return apperrors.ContractRevert(reason, err)
}

// ExtractRevertReason pulls a human readable reason out of a provider message
func ExtractRevertReason(msg string) string {
	for _, pattern := range revertPatterns {
		if m := pattern.FindStringSubmatch(msg); len(m) > 1 && m[1] != "" {
			return m[1]
		}
	}
	return ""
}
