package fuzzing

import (
	"github.com/crytic/svmfuzz/fuzzing/fuzzerrors"
	"github.com/crytic/svmfuzz/fuzzing/transactions"
	"github.com/crytic/svmfuzz/utils/randomutils"
	"github.com/pkg/errors"
)

// FlowFunc is one unit of user-defined behavior, which usually builds transactions and passes them to visitor.
type FlowFunc func(env *transactions.Environment, visitor transactions.Visitor) error

// Flow is a named FlowFunc registered in a FlowSet.
type Flow struct {
	// Name identifies the flow in logs.
	Name string

	// Run performs the flow.
	Run FlowFunc

	// Weight is the relative likelihood of the flow being drawn by FlowSelectRandom. It is ignored unless some flow
	// in the set has a non-zero weight, in which case zero-weight flows are never drawn.
	Weight uint64

	// Ignore excludes the flow from every selection.
	Ignore bool
}

// FlowSelection describes how a FlowSet picks flows each iteration.
type FlowSelection int

const (
	// FlowSelectInOrder runs every flow once, in registration order.
	FlowSelectInOrder FlowSelection = iota
	// FlowSelectRandom draws CallsPerIteration flows from the worker's generator.
	FlowSelectRandom
)

// FlowSet is an IterationStrategy built from imperative flows: Init runs first, then the flows picked by Selection,
// then End.
type FlowSet struct {
	// Init runs at the start of every iteration. It may be nil.
	Init FlowFunc

	// Flows are the repeatable flow steps.
	Flows []Flow

	// End runs at the end of every iteration in which the flows did not fail. It may be nil.
	End FlowFunc

	// Selection describes how flows are picked.
	Selection FlowSelection

	// RandomTail runs one extra randomly drawn flow after the in-order flows, to exercise sensitivity to flow
	// ordering. It only applies to FlowSelectInOrder.
	RandomTail bool

	// CallsPerIteration is the number of flows drawn by FlowSelectRandom. If zero, the fuzzer sets it from its
	// configuration.
	CallsPerIteration int

	// chooser draws flows. It is built on first use.
	chooser *randomutils.WeightedRandomChooser[Flow]
}

// activeFlows returns the flows that are not ignored.
func (s *FlowSet) activeFlows() []Flow {
	active := make([]Flow, 0, len(s.Flows))
	for _, flow := range s.Flows {
		if !flow.Ignore {
			active = append(active, flow)
		}
	}
	return active
}

// flowChooser returns the chooser over the active flows, building it if needed.
func (s *FlowSet) flowChooser() (*randomutils.WeightedRandomChooser[Flow], error) {
	if s.chooser != nil {
		return s.chooser, nil
	}

	active := s.activeFlows()
	weighted := false
	for _, flow := range active {
		if flow.Weight > 0 {
			weighted = true
			break
		}
	}

	chooser := randomutils.NewWeightedRandomChooser[Flow]()
	for _, flow := range active {
		weight := flow.Weight
		if !weighted {
			weight = 1
		}
		if err := chooser.AddChoices(randomutils.NewWeightedRandomChoice(flow, weight)); err != nil {
			return nil, fuzzerrors.NewConfigurationFatal(err)
		}
	}
	s.chooser = chooser
	return chooser, nil
}

// drawFlow draws one flow using the worker's generator. It returns nil if there is nothing to draw.
func (s *FlowSet) drawFlow(env *transactions.Environment) (*Flow, error) {
	chooser, err := s.flowChooser()
	if err != nil {
		return nil, err
	}
	flow, err := chooser.Choose(env.Rng)
	if errors.Is(err, randomutils.ErrNoWeightedChoices) {
		return nil, nil
	}
	return flow, err
}

// runFlow runs flow. Flows without a function do nothing.
func runFlow(env *transactions.Environment, visitor transactions.Visitor, flow *Flow) error {
	if flow.Run == nil {
		return nil
	}
	return flow.Run(env, visitor)
}

// RunIteration runs Init, the selected flows and End.
func (s *FlowSet) RunIteration(env *transactions.Environment, visitor transactions.Visitor) error {
	if s.Init != nil {
		if err := s.Init(env, visitor); err != nil {
			return err
		}
	}

	switch s.Selection {
	case FlowSelectInOrder:
		for _, flow := range s.activeFlows() {
			if err := runFlow(env, visitor, &flow); err != nil {
				return err
			}
		}
		if s.RandomTail {
			flow, err := s.drawFlow(env)
			if err != nil {
				return err
			}
			if flow != nil {
				if err = runFlow(env, visitor, flow); err != nil {
					return err
				}
			}
		}
	case FlowSelectRandom:
		for i := 0; i < s.CallsPerIteration; i++ {
			if env.Context.Err() != nil {
				return env.Context.Err()
			}
			flow, err := s.drawFlow(env)
			if err != nil {
				return err
			}
			if flow == nil {
				break
			}
			if err = runFlow(env, visitor, flow); err != nil {
				return err
			}
		}
	default:
		return fuzzerrors.NewConfigurationFatal(errors.Errorf("unknown flow selection %d", s.Selection))
	}

	if s.End != nil {
		return s.End(env, visitor)
	}
	return nil
}
