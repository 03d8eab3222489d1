package accounts

import "github.com/crytic/svmfuzz/chain/types"

const (
	// MintAccountLength is the size of a packed mint account.
	MintAccountLength = 82

	// TokenAccountLength is the size of a packed token account.
	TokenAccountLength = 165

	// tokenAccountStateInitialized marks a token account as initialized.
	tokenAccountStateInitialized = 1
)

// MintParams describes the mint a MintMaterializer creates.
type MintParams struct {
	// Decimals is the number of base-10 digits to the right of the decimal point.
	Decimals uint8

	// MintAuthority may mint new tokens.
	MintAuthority types.Address

	// FreezeAuthority may freeze token accounts. Nil means the mint has none.
	FreezeAuthority *types.Address
}

// MintMaterializer creates initialized token mints with zero supply, owned by the token program.
type MintMaterializer struct{}

// Name returns MintMaterializerName.
func (m *MintMaterializer) Name() string {
	return MintMaterializerName
}

// Materialize packs a mint described by MintParams into a rent-exempt account.
func (m *MintMaterializer) Materialize(identity *Identity, params CreationParams) (*types.Account, error) {
	mint, err := flavorParams[MintParams](MintMaterializerName, params)
	if err != nil {
		return nil, err
	}

	account := types.NewAccount(MinimumBalance(MintAccountLength), MintAccountLength, types.TokenProgramAddress)
	data := layout(account.Data)
	data.optionalAddress(0, &mint.MintAuthority)
	data.u64(36, 0)
	data.u8(44, mint.Decimals)
	data.u8(45, 1)
	data.optionalAddress(46, mint.FreezeAuthority)
	return account, nil
}

// TokenParams describes the token account a TokenMaterializer creates.
type TokenParams struct {
	// Mint is the mint the account holds tokens of.
	Mint types.Address

	// Owner may transfer the account's tokens.
	Owner types.Address

	// Amount is the token balance. For native accounts it is the wrapped lamport balance on top of rent.
	Amount uint64

	// Delegate may transfer up to DelegatedAmount tokens. Nil means no delegate.
	Delegate *types.Address

	// IsNative marks the account as holding wrapped lamports.
	IsNative bool

	// DelegatedAmount is the amount Delegate may transfer.
	DelegatedAmount uint64

	// CloseAuthority may close the account. Nil means only the owner may.
	CloseAuthority *types.Address
}

// TokenMaterializer creates initialized token accounts owned by the token program.
type TokenMaterializer struct{}

// Name returns TokenMaterializerName.
func (m *TokenMaterializer) Name() string {
	return TokenMaterializerName
}

// Materialize packs a token account described by TokenParams into a rent-exempt account. Native accounts hold the
// rent reserve plus Amount in lamports, and record the rent reserve as their native marker.
func (m *TokenMaterializer) Materialize(identity *Identity, params CreationParams) (*types.Account, error) {
	token, err := flavorParams[TokenParams](TokenMaterializerName, params)
	if err != nil {
		return nil, err
	}

	rent := MinimumBalance(TokenAccountLength)
	account := types.NewAccount(rent, TokenAccountLength, types.TokenProgramAddress)
	amount := token.Amount
	if token.IsNative {
		account.Lamports = saturatingAdd(rent, token.Amount)
		amount = account.Lamports
	}

	data := layout(account.Data)
	data.address(0, token.Mint)
	data.address(32, token.Owner)
	data.u64(64, amount)
	data.optionalAddress(72, token.Delegate)
	data.u8(108, tokenAccountStateInitialized)
	if token.IsNative {
		data.u32(109, 1)
		data.u64(113, rent)
	}
	data.u64(121, token.DelegatedAmount)
	data.optionalAddress(129, token.CloseAuthority)
	return account, nil
}

// saturatingAdd returns a + b, clamped to the maximum uint64.
func saturatingAdd(a uint64, b uint64) uint64 {
	if sum := a + b; sum >= a {
		return sum
	}
	return ^uint64(0)
}
