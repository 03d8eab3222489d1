package accounts

import "github.com/crytic/svmfuzz/chain/types"

// SystemMaterializer creates plain accounts holding a balance, optionally with allocated data and a custom owner.
type SystemMaterializer struct {
	// lamports is the balance given when CreationParams.Lamports is zero.
	lamports uint64
}

// NewSystemMaterializer creates a SystemMaterializer with the given default balance. Zero selects DefaultLamports.
func NewSystemMaterializer(lamports uint64) *SystemMaterializer {
	if lamports == 0 {
		lamports = DefaultLamports
	}
	return &SystemMaterializer{lamports: lamports}
}

// Name returns SystemMaterializerName.
func (m *SystemMaterializer) Name() string {
	return SystemMaterializerName
}

// Materialize returns a funded account owned by the system program, or by params.Owner when set.
func (m *SystemMaterializer) Materialize(identity *Identity, params CreationParams) (*types.Account, error) {
	lamports := m.lamports
	if params.Lamports != 0 {
		lamports = params.Lamports
	}
	owner := types.SystemProgramAddress
	if params.Owner != nil {
		owner = *params.Owner
	}
	return types.NewAccount(lamports, params.Space, owner), nil
}
