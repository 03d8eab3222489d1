package snapshot

import (
	"fmt"
	"reflect"

	"github.com/crytic/svmfuzz/chain/types"
	"github.com/crytic/svmfuzz/fuzzing/fuzzerrors"
	"github.com/near/borsh-go"
	"github.com/pkg/errors"
)

// Unpacker describes an account type with its own binary layout. Types which do not implement it are decoded
// with borsh.
type Unpacker interface {
	// Unpack decodes data into the receiver.
	Unpack(data []byte) error
}

// TypedView holds both sides of one account decoded into T. A side is nil when the account did not exist.
type TypedView[T any] struct {
	// Before is the decoded pre-execution state.
	Before *T

	// After is the decoded post-execution state.
	After *T
}

// TypedBefore decodes the pre-execution data of the account at index into T. Returns nil if the account did not
// exist, and a *fuzzerrors.DeserializationMismatchError if the data does not decode.
func TypedBefore[T any](s *Snapshot, index int) (*T, error) {
	if !s.CapturedBefore() {
		return nil, errors.New("pre-execution state has not been captured")
	}
	return decodeSide[T](s.Before(index), index, fuzzerrors.SideBefore)
}

// TypedAfter decodes the post-execution data of the account at index into T. Returns nil if the account did not
// exist, and a *fuzzerrors.DeserializationMismatchError if the data does not decode.
func TypedAfter[T any](s *Snapshot, index int) (*T, error) {
	if !s.CapturedAfter() {
		return nil, errors.New("post-execution state has not been captured")
	}
	return decodeSide[T](s.After(index), index, fuzzerrors.SideAfter)
}

// View decodes both sides of the account at index into T. The before side is decoded first, and its failure is
// returned without decoding the after side.
func View[T any](s *Snapshot, index int) (*TypedView[T], error) {
	before, err := TypedBefore[T](s, index)
	if err != nil {
		return nil, err
	}
	after, err := TypedAfter[T](s, index)
	if err != nil {
		return nil, err
	}
	return &TypedView[T]{Before: before, After: after}, nil
}

// decodeSide decodes one captured account. Decoders which panic on malformed data are treated as mismatches.
func decodeSide[T any](account *types.Account, index int, side fuzzerrors.SnapshotSide) (result *T, err error) {
	if account == nil {
		return nil, nil
	}

	mismatch := func(cause error) *fuzzerrors.DeserializationMismatchError {
		return &fuzzerrors.DeserializationMismatchError{
			Index:    index,
			Side:     side,
			TypeName: reflect.TypeOf((*T)(nil)).Elem().String(),
			Err:      cause,
		}
	}
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = mismatch(fmt.Errorf("decoder panicked: %v", r))
		}
	}()

	value := new(T)
	data := account.Data
	if unpacker, ok := any(value).(Unpacker); ok {
		err = unpacker.Unpack(data)
	} else {
		err = borsh.Deserialize(value, data)
	}
	if err != nil {
		return nil, mismatch(err)
	}
	return value, nil
}
