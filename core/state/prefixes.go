package state

// Persistence keys. Each section of the manager serialises as one JSON blob so
// a commit either lands completely or not at all per section.
var (
	keyLocks       = []byte("vault/locks")
	keyRules       = []byte("vault/boost-rules")
	keyEpochs      = []byte("vault/epochs")
	keyPowers      = []byte("vault/user-epoch-power")
	keyContributed = []byte("vault/contributed")
	keyClaimable   = []byte("vault/claimable")
	keyLeaderboard = []byte("vault/leaderboard")
	keyAdmin       = []byte("vault/admin")
	keyStats       = []byte("vault/lock-stats")
	keyBank        = []byte("vault/bank")
	keyNFTs        = []byte("vault/nfts")
)
