package fuzzerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/crytic/svmfuzz/chain/types"
	"github.com/stretchr/testify/assert"
)

// TestErrorMatching ensures each error type can be matched through wrapping with errors.Is and errors.As.
func TestErrorMatching(t *testing.T) {
	wrapped := fmt.Errorf("decoding amount: %w", ErrExhaustedInput)
	assert.True(t, IsExhaustedInput(wrapped))
	assert.False(t, IsExhaustedInput(errors.New("other")))

	mismatch := fmt.Errorf("check: %w", &DeserializationMismatchError{Index: 1, Side: SideAfter, TypeName: "Vault", Err: errors.New("short")})
	assert.ErrorIs(t, mismatch, ErrDeserializationMismatch)
	var mismatchErr *DeserializationMismatchError
	assert.True(t, errors.As(mismatch, &mismatchErr))
	assert.Equal(t, SideAfter, mismatchErr.Side)

	txErr := &types.TransactionError{Kind: types.ErrorKindCustom, Code: 3}
	cause := errors.New("unexpected")
	failure := &ExecutionFailureError{Transaction: "deposit", Err: txErr, Cause: cause}
	assert.ErrorIs(t, failure, cause)
	var unwrappedTxErr *types.TransactionError
	assert.True(t, errors.As(failure, &unwrappedTxErr))
	assert.EqualValues(t, 3, unwrappedTxErr.Code)

	violation := NewInvariantViolation("balance", "expected %d, got %d", 1, 2)
	assert.Equal(t, "invariant balance violated: expected 1, got 2", violation.Error())
	violation.Transaction = "withdraw"
	assert.Contains(t, violation.Error(), "of transaction withdraw")

	assert.Nil(t, NewConfigurationFatal(nil))
	var fatal *ConfigurationFatalError
	assert.True(t, errors.As(fmt.Errorf("worker: %w", NewConfigurationFatal(cause)), &fatal))

	finding := &FindingError{Category: "invariants", Key: "balance", SeedHex: "00", Err: violation}
	var findingViolation *InvariantViolationError
	assert.True(t, errors.As(finding, &findingViolation))
}
