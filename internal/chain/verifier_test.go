package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testToken  = common.HexToAddress(DefaultTokenAddress)
	testSeller = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testBuyer  = common.HexToAddress("0x2222222222222222222222222222222222222222")
	otherAddr  = common.HexToAddress("0x3333333333333333333333333333333333333333")

	testHash = "0x" + "ab" + "cd" + "12345678901234567890123456789012345678901234567890123456789a"
)

// fakeReader implements ChainReader for tests.
type fakeReader struct {
	tx         *types.Transaction
	receipt    *types.Receipt
	txErr      error
	receiptErr error
	calls      int
}

func (f *fakeReader) TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error) {
	if f.txErr != nil {
		return nil, false, f.txErr
	}
	return f.tx, false, nil
}

func (f *fakeReader) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.calls++
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	return f.receipt, nil
}

func tokenTx(to common.Address) *types.Transaction {
	return types.NewTx(&types.LegacyTx{To: &to})
}

// transferLog builds an ERC-20 Transfer log from `from` to `to` of
// amountWei, with the address topics zero-padded to 32 bytes.
func transferLog(from, to common.Address, amountWei *big.Int) *types.Log {
	return &types.Log{
		Address: testToken,
		Topics: []common.Hash{
			transferEventSig,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data: common.LeftPadBytes(amountWei.Bytes(), 32),
	}
}

// wei converts a human-readable decimal string to the 18-decimal unit.
func wei(amount string) *big.Int {
	return decimal.RequireFromString(amount).Shift(18).BigInt()
}

func validReader(amount string) *fakeReader {
	return &fakeReader{
		tx: tokenTx(testToken),
		receipt: &types.Receipt{
			Status: types.ReceiptStatusSuccessful,
			Logs:   []*types.Log{transferLog(testBuyer, testSeller, wei(amount))},
		},
	}
}

func TestVerifyPayment_Success(t *testing.T) {
	v := NewVerifier(validReader("12.50"), testToken)

	err := v.VerifyPayment(context.Background(), testHash, testSeller.Hex(), decimal.RequireFromString("12.50"))
	require.NoError(t, err)
}

func TestVerifyPayment_HashPrefixOptional(t *testing.T) {
	v := NewVerifier(validReader("1"), testToken)
	one := decimal.NewFromInt(1)

	require.NoError(t, v.VerifyPayment(context.Background(), testHash, testSeller.Hex(), one))
	require.NoError(t, v.VerifyPayment(context.Background(), testHash[2:], testSeller.Hex(), one))
}

func TestVerifyPayment_MalformedHash(t *testing.T) {
	v := NewVerifier(validReader("1"), testToken)

	err := v.VerifyPayment(context.Background(), "0xnot-a-hash", testSeller.Hex(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrMalformedTransactionHash)

	err = v.VerifyPayment(context.Background(), "0xabcd", testSeller.Hex(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrMalformedTransactionHash)
}

func TestVerifyPayment_TransactionNotFound(t *testing.T) {
	reader := &fakeReader{receiptErr: ethereum.NotFound}
	v := NewVerifier(reader, testToken)

	err := v.VerifyPayment(context.Background(), testHash, testSeller.Hex(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestVerifyPayment_ChainUnavailable(t *testing.T) {
	reader := &fakeReader{receiptErr: errors.New("connection refused")}
	v := NewVerifier(reader, testToken)

	err := v.VerifyPayment(context.Background(), testHash, testSeller.Hex(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrChainUnavailable)
}

func TestVerifyPayment_TransactionFailed(t *testing.T) {
	// A reverted transaction is rejected even when its log set would
	// otherwise satisfy every check.
	reader := validReader("1")
	reader.receipt.Status = types.ReceiptStatusFailed
	v := NewVerifier(reader, testToken)

	err := v.VerifyPayment(context.Background(), testHash, testSeller.Hex(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrTransactionFailed)
}

func TestVerifyPayment_WrongRecipientContract(t *testing.T) {
	reader := validReader("1")
	reader.tx = tokenTx(otherAddr)
	v := NewVerifier(reader, testToken)

	err := v.VerifyPayment(context.Background(), testHash, testSeller.Hex(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrWrongRecipientContract)
}

func TestVerifyPayment_ContractCreationRejected(t *testing.T) {
	reader := validReader("1")
	reader.tx = types.NewTx(&types.LegacyTx{To: nil})
	v := NewVerifier(reader, testToken)

	err := v.VerifyPayment(context.Background(), testHash, testSeller.Hex(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrWrongRecipientContract)
}

func TestVerifyPayment_TransferEventMissing(t *testing.T) {
	reader := validReader("1")
	reader.receipt.Logs = []*types.Log{
		{Address: testToken, Topics: []common.Hash{common.HexToHash("0xdead"), {}, {}}},
	}
	v := NewVerifier(reader, testToken)

	err := v.VerifyPayment(context.Background(), testHash, testSeller.Hex(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrTransferEventMissing)
}

func TestVerifyPayment_SellerMismatch(t *testing.T) {
	reader := validReader("1")
	reader.receipt.Logs = []*types.Log{transferLog(testBuyer, otherAddr, wei("1"))}
	v := NewVerifier(reader, testToken)

	err := v.VerifyPayment(context.Background(), testHash, testSeller.Hex(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrSellerMismatch)
}

func TestVerifyPayment_AmountMismatch(t *testing.T) {
	v := NewVerifier(validReader("10"), testToken)

	err := v.VerifyPayment(context.Background(), testHash, testSeller.Hex(), decimal.RequireFromString("10.01"))
	assert.ErrorIs(t, err, ErrAmountMismatch)
}

func TestVerifyPayment_AmountMismatchBySmallestUnit(t *testing.T) {
	// Off by a single wei is still a mismatch: exact match, no tolerance.
	reader := validReader("1")
	paid := new(big.Int).Sub(wei("1"), big.NewInt(1))
	reader.receipt.Logs = []*types.Log{transferLog(testBuyer, testSeller, paid)}
	v := NewVerifier(reader, testToken)

	err := v.VerifyPayment(context.Background(), testHash, testSeller.Hex(), decimal.NewFromInt(1))
	assert.ErrorIs(t, err, ErrAmountMismatch)
}

func TestVerifyPayment_SubWeiPrecisionNeverMatches(t *testing.T) {
	v := NewVerifier(validReader("1"), testToken)

	amount := decimal.RequireFromString("1.0000000000000000001") // 19 decimal places
	err := v.VerifyPayment(context.Background(), testHash, testSeller.Hex(), amount)
	assert.ErrorIs(t, err, ErrAmountMismatch)
}

func TestVerifyPayment_BatchedTransfersDisambiguated(t *testing.T) {
	// Several Transfer events in one receipt: the payment is accepted as
	// long as one of them matches both recipient and amount, regardless
	// of log order.
	reader := validReader("5")
	reader.receipt.Logs = []*types.Log{
		transferLog(testBuyer, otherAddr, wei("99")),
		transferLog(testBuyer, testSeller, wei("3")),
		transferLog(testBuyer, testSeller, wei("5")),
	}
	v := NewVerifier(reader, testToken)

	require.NoError(t, v.VerifyPayment(context.Background(), testHash, testSeller.Hex(), decimal.NewFromInt(5)))

	// Payee matched but no amount did.
	reader.receipt.Logs = reader.receipt.Logs[:2]
	err := v.VerifyPayment(context.Background(), testHash, testSeller.Hex(), decimal.NewFromInt(5))
	assert.ErrorIs(t, err, ErrAmountMismatch)
}

func TestVerifyPayment_Idempotent(t *testing.T) {
	reader := validReader("7.25")
	v := NewVerifier(reader, testToken)
	amount := decimal.RequireFromString("7.25")

	first := v.VerifyPayment(context.Background(), testHash, testSeller.Hex(), amount)
	second := v.VerifyPayment(context.Background(), testHash, testSeller.Hex(), amount)

	assert.NoError(t, first)
	assert.NoError(t, second)
	assert.Equal(t, 2, reader.calls, "verifier reads the chain once per call, no caching, no writes")
}
