package fuzzing

import (
	"github.com/crytic/svmfuzz/fuzzing/fuzzerrors"
	"github.com/crytic/svmfuzz/fuzzing/transactions"
	"github.com/crytic/svmfuzz/utils/randomutils"
	"github.com/pkg/errors"
)

// IterationStrategy produces the transactions of one fuzzing iteration and hands each to visitor. Returning
// fuzzerrors.ErrExhaustedInput ends the iteration silently.
type IterationStrategy interface {
	// RunIteration runs one iteration.
	RunIteration(env *transactions.Environment, visitor transactions.Visitor) error
}

// DeclarativeSequence is an IterationStrategy built from transaction variants: a fixed prologue, a body drawn from
// the fuzz input until it is exhausted, and a fixed epilogue.
type DeclarativeSequence struct {
	// Prologue variants run in order at the start of every iteration. Exhausting the input here ends the iteration.
	Prologue []transactions.Variant

	// Body variants are drawn repeatedly using the fuzz input. If no variant has a non-zero weight, every variant is
	// equally likely. Otherwise variants with a zero weight are never drawn.
	Body []transactions.WeightedVariant

	// Epilogue variants run in order once the body ends, including when it ended because the input was exhausted.
	Epilogue []transactions.Variant

	// MaxBodyLength caps the number of body transactions per iteration. Zero means the body runs until the input
	// is exhausted.
	MaxBodyLength int

	// chooser draws body variants. It is built on first use.
	chooser *randomutils.WeightedRandomChooser[transactions.Variant]
}

// bodyChooser returns the chooser over the body variants, building it if needed.
func (s *DeclarativeSequence) bodyChooser() (*randomutils.WeightedRandomChooser[transactions.Variant], error) {
	if s.chooser != nil {
		return s.chooser, nil
	}

	weighted := false
	for _, v := range s.Body {
		if v.Weight > 0 {
			weighted = true
			break
		}
	}

	chooser := randomutils.NewWeightedRandomChooser[transactions.Variant]()
	for _, v := range s.Body {
		weight := v.Weight
		if !weighted {
			weight = 1
		}
		if err := chooser.AddChoices(randomutils.NewWeightedRandomChoice(v.Variant, weight)); err != nil {
			return nil, fuzzerrors.NewConfigurationFatal(err)
		}
	}
	s.chooser = chooser
	return chooser, nil
}

// RunIteration runs the prologue, the body and the epilogue.
func (s *DeclarativeSequence) RunIteration(env *transactions.Environment, visitor transactions.Visitor) error {
	for _, v := range s.Prologue {
		if err := v.Accept(env, visitor); err != nil {
			return err
		}
	}

	if err := s.runBody(env, visitor); err != nil && !fuzzerrors.IsExhaustedInput(err) {
		return err
	}

	for _, v := range s.Epilogue {
		if err := v.Accept(env, visitor); err != nil {
			return err
		}
	}
	return nil
}

// runBody draws and runs body variants until the input is exhausted or MaxBodyLength is reached.
func (s *DeclarativeSequence) runBody(env *transactions.Environment, visitor transactions.Visitor) error {
	if len(s.Body) == 0 {
		return nil
	}
	chooser, err := s.bodyChooser()
	if err != nil {
		return err
	}

	for i := 0; s.MaxBodyLength <= 0 || i < s.MaxBodyLength; i++ {
		if env.Context.Err() != nil {
			return env.Context.Err()
		}
		variant, err := chooser.Choose(env.Input)
		if err != nil {
			if errors.Is(err, randomutils.ErrNoWeightedChoices) {
				return fuzzerrors.NewConfigurationFatal(err)
			}
			return err
		}
		if err = (*variant).Accept(env, visitor); err != nil {
			return err
		}
	}
	return nil
}
