package randomutils

import (
	"github.com/pkg/errors"
)

// ErrNoWeightedChoices is returned by WeightedRandomChooser.Choose when there is nothing with a non-zero weight to
// choose from.
var ErrNoWeightedChoices = errors.New("could not return a weighted random choice because no choices exist with non-zero weights")

// RandomProvider describes a source of uniformly distributed integers. Both the byte-stream decoder and the seeded
// generator satisfy it, so a WeightedRandomChooser can draw either from fuzz input or from the worker's generator.
type RandomProvider interface {
	// Uint64n returns a uniformly distributed integer in [0, n). n must be non-zero.
	Uint64n(n uint64) (uint64, error)
}

// WeightedRandomChoice describes a weighted, randomly selectable object for use with a WeightedRandomChooser.
type WeightedRandomChoice[T any] struct {
	// Data describes the wrapped data that a WeightedRandomChooser should return when making a random
	// WeightedRandomChoice selection.
	Data T

	// weight describes the likelihood of this choice being selected, relative to the sum of all weights in the
	// WeightedRandomChooser. A zero weight is never selected.
	weight uint64
}

// NewWeightedRandomChoice creates a WeightedRandomChoice with the given underlying data and weight to use when added
// to a WeightedRandomChooser.
func NewWeightedRandomChoice[T any](data T, weight uint64) *WeightedRandomChoice[T] {
	return &WeightedRandomChoice[T]{
		Data:   data,
		weight: weight,
	}
}

// Weight returns the weight of the choice.
func (c *WeightedRandomChoice[T]) Weight() uint64 {
	return c.weight
}

// WeightedRandomChooser takes a series of WeightedRandomChoice objects which wrap underlying data, and returns one
// of the weighted options randomly. It holds no random state of its own: every call to Choose draws from the
// RandomProvider it is given, which keeps selection reproducible for a given provider.
type WeightedRandomChooser[T any] struct {
	// choices describes the weighted choices from which the chooser will randomly select.
	choices []*WeightedRandomChoice[T]

	// totalWeight describes the sum of all weights in choices.
	totalWeight uint64
}

// NewWeightedRandomChooser creates an empty WeightedRandomChooser.
func NewWeightedRandomChooser[T any]() *WeightedRandomChooser[T] {
	return &WeightedRandomChooser[T]{
		choices: make([]*WeightedRandomChoice[T], 0),
	}
}

// ChoiceCount returns the count of choices added to this chooser.
func (c *WeightedRandomChooser[T]) ChoiceCount() int {
	return len(c.choices)
}

// TotalWeight returns the sum of all weights added to this chooser.
func (c *WeightedRandomChooser[T]) TotalWeight() uint64 {
	return c.totalWeight
}

// AddChoices adds weighted choices to the WeightedRandomChooser. Returns an error if the total weight would
// overflow.
func (c *WeightedRandomChooser[T]) AddChoices(choices ...*WeightedRandomChoice[T]) error {
	total := c.totalWeight
	for _, choice := range choices {
		if total+choice.weight < total {
			return errors.New("could not add weighted random choices because the total weight overflows")
		}
		total += choice.weight
	}
	c.totalWeight = total
	c.choices = append(c.choices, choices...)
	return nil
}

// Choose selects a weighted item using randomProvider. Returns ErrNoWeightedChoices if every weight is zero, or any
// error returned by the provider.
func (c *WeightedRandomChooser[T]) Choose(randomProvider RandomProvider) (*T, error) {
	if c.totalWeight == 0 {
		return nil, ErrNoWeightedChoices
	}

	// Pick a position within the total weight and find the choice whose range covers it
	position, err := randomProvider.Uint64n(c.totalWeight)
	if err != nil {
		return nil, err
	}
	for _, choice := range c.choices {
		if position < choice.weight {
			return &choice.Data, nil
		}
		position -= choice.weight
	}

	// Unreachable as long as totalWeight is the sum of all weights
	return nil, errors.New("weighted random choice position exceeded the total weight")
}
