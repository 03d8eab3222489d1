package accounts

const (
	// LamportsPerSol describes the number of lamports in one SOL.
	LamportsPerSol uint64 = 1_000_000_000

	// DefaultLamports is the balance given to accounts created by the system materializer.
	DefaultLamports = 500 * LamportsPerSol

	// accountStorageOverhead is the number of bytes of bookkeeping charged for every account on top of its data.
	accountStorageOverhead = 128

	// lamportsPerByteYear is the default rent rate.
	lamportsPerByteYear = 3480

	// exemptionThreshold is the number of years of rent a balance must cover to be exempt.
	exemptionThreshold = 2
)

// MinimumBalance returns the smallest balance which keeps an account holding dataLen bytes exempt from rent.
func MinimumBalance(dataLen uint64) uint64 {
	return (accountStorageOverhead + dataLen) * lamportsPerByteYear * exemptionThreshold
}
