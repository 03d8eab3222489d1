package transactions

// Visitor receives the transactions produced by variants. The executor is the visitor used during fuzzing.
type Visitor interface {
	// VisitTransaction executes tx.
	VisitTransaction(env *Environment, tx *Transaction) error
}

// Variant describes one kind of transaction a fuzz test can issue. Each variant builds a fresh Transaction per
// attempt and hands it to the visitor, so dispatch over every kind goes through the single Visitor interface.
type Variant interface {
	// Name identifies the variant.
	Name() string

	// Accept builds a transaction and passes it to visitor.
	Accept(env *Environment, visitor Visitor) error
}

// BuildFunc creates a transaction for one attempt.
type BuildFunc func(env *Environment) (*Transaction, error)

// variantFunc is a Variant backed by a BuildFunc.
type variantFunc struct {
	name  string
	build BuildFunc
}

// NewVariant creates a Variant named name whose transactions are created by build.
func NewVariant(name string, build BuildFunc) Variant {
	return &variantFunc{name: name, build: build}
}

// Name returns the name of the variant.
func (v *variantFunc) Name() string {
	return v.name
}

// Accept creates a transaction and passes it to visitor.
func (v *variantFunc) Accept(env *Environment, visitor Visitor) error {
	tx, err := v.build(env)
	if err != nil {
		return err
	}
	if tx.Name == "" {
		tx.Name = v.name
	}
	return visitor.VisitTransaction(env, tx)
}

// WeightedVariant pairs a variant with its selection weight. A zero weight means the variant is never chosen.
type WeightedVariant struct {
	// Variant is the weighted variant.
	Variant Variant

	// Weight is the relative selection weight.
	Weight uint64
}
