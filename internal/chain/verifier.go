package chain

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// Verification failure kinds. Handlers map these onto HTTP status
// classes, so every rejection path returns one of them (possibly
// wrapped with detail).
var (
	ErrMalformedTransactionHash = errors.New("malformed transaction hash")
	ErrTransactionNotFound      = errors.New("transaction not found")
	ErrTransactionFailed        = errors.New("transaction failed on chain")
	ErrWrongRecipientContract   = errors.New("transaction not sent to payment token contract")
	ErrTransferEventMissing     = errors.New("transfer event not found")
	ErrSellerMismatch           = errors.New("transfer recipient does not match seller")
	ErrAmountMismatch           = errors.New("transfer amount does not match expected payment")
	ErrChainUnavailable         = errors.New("blockchain node unavailable")
)

// transferEventSig is keccak256("Transfer(address,address,uint256)"),
// the first topic of every ERC-20 Transfer log.
var transferEventSig = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// tokenDecimals is fixed at 18: cUSD, like most ERC-20 stablecoins on
// Celo, uses 18 decimal places below the human-readable unit.
const tokenDecimals = 18

// DefaultTokenAddress is the cUSD contract on Celo Alfajores, the only
// payment rail this marketplace accepts unless overridden in config.
const DefaultTokenAddress = "0x874069Fa1Eb16D44d622BC6Cf16451f9B2bE0855"

// ChainReader is the node boundary the verifier needs: fetch a mined
// transaction and its receipt by hash. *ethclient.Client satisfies it.
// Receipts do not carry the recipient address, hence the extra
// transaction lookup.
type ChainReader interface {
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Verifier decides whether an on-chain transaction satisfies a payment
// assertion (hash, payee, amount). It only reads public chain state:
// calling it twice with the same inputs against an unchanged chain
// yields the same result.
type Verifier struct {
	reader ChainReader
	token  common.Address
}

// NewVerifier returns a Verifier that accepts transfers of the given
// token contract, read through the given node.
func NewVerifier(reader ChainReader, tokenAddress common.Address) *Verifier {
	return &Verifier{reader: reader, token: tokenAddress}
}

// VerifyPayment checks that txHash is a successful transfer of exactly
// `amount` of the payment token to sellerAddress. It never trusts a
// client-supplied success flag; recipient, amount and execution status
// are all re-derived from the receipt. The not-found case is returned
// as-is: the transaction may simply not be mined yet, and retry policy
// belongs to the caller.
func (v *Verifier) VerifyPayment(ctx context.Context, txHash, sellerAddress string, amount decimal.Decimal) error {
	hash, err := parseTxHash(txHash)
	if err != nil {
		return err
	}

	if !common.IsHexAddress(sellerAddress) {
		return fmt.Errorf("%w: invalid seller address %q", ErrSellerMismatch, sellerAddress)
	}
	seller := common.HexToAddress(sellerAddress)

	receipt, err := v.reader.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return ErrTransactionNotFound
		}
		return fmt.Errorf("%w: fetching receipt: %v", ErrChainUnavailable, err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return ErrTransactionFailed
	}

	tx, _, err := v.reader.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return ErrTransactionNotFound
		}
		return fmt.Errorf("%w: fetching transaction: %v", ErrChainUnavailable, err)
	}
	if tx.To() == nil || *tx.To() != v.token {
		return ErrWrongRecipientContract
	}

	expectedWei, err := toSmallestUnit(amount)
	if err != nil {
		return err
	}

	// Match on recipient AND amount rather than trusting log order: a
	// batched transaction can legitimately emit several Transfer events.
	sawTransfer := false
	sawSeller := false
	for _, lg := range receipt.Logs {
		if len(lg.Topics) < 3 || lg.Topics[0] != transferEventSig {
			continue
		}
		sawTransfer = true

		recipient := common.BytesToAddress(lg.Topics[2].Bytes())
		if recipient != seller {
			continue
		}
		sawSeller = true

		paid := new(big.Int).SetBytes(lg.Data)
		if paid.Cmp(expectedWei) == 0 {
			return nil
		}
	}

	if !sawTransfer {
		return ErrTransferEventMissing
	}
	if !sawSeller {
		return ErrSellerMismatch
	}
	return ErrAmountMismatch
}

// parseTxHash normalizes a transaction hash (the 0x prefix is
// optional) and rejects anything that is not 32 bytes of hex.
func parseTxHash(txHash string) (common.Hash, error) {
	cleaned := strings.TrimPrefix(strings.TrimSpace(txHash), "0x")
	raw, err := hex.DecodeString(cleaned)
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: %q", ErrMalformedTransactionHash, txHash)
	}
	return common.BytesToHash(raw), nil
}

// toSmallestUnit converts a decimal currency amount into the token's
// smallest unit (wei, 18 decimals). An amount with more precision than
// the token can represent cannot match any transfer exactly.
func toSmallestUnit(amount decimal.Decimal) (*big.Int, error) {
	shifted := amount.Shift(tokenDecimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: amount %s has more than %d decimal places", ErrAmountMismatch, amount, tokenDecimals)
	}
	return shifted.BigInt(), nil
}
