package pds

// AccountSession is the credential set returned by createAccount and
// createSession.
type AccountSession struct {
	DID        string
	Handle     string
	AccessJwt  string
	RefreshJwt string
}

// TokenPair is the rotated credential pair returned by refreshSession.
type TokenPair struct {
	AccessJwt  string
	RefreshJwt string
}

// RecordResult identifies a record written to a repository.
type RecordResult struct {
	URI string
	CID string
	// CommitRev is the repo commit revision carrying the write. Only
	// putRecord responses populate it; the registration saga pins the
	// relay wait on it.
	CommitRev string
}
