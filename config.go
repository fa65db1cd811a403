package recidx

// Mode selects whether a handle may mutate its backing file.
type Mode int

const (
	ReadWrite Mode = iota
	ReadOnly
)

// Backend selects the on-disk structure a Create/Open call targets.
type Backend int

const (
	// BackendVA selects the direct-addressed Virtual Array (§4.1).
	BackendVA Backend = iota
	// BackendSS selects the open-addressed Scatter Storage hash table (§4.2).
	BackendSS
)

// Hash algorithm selectors for the SS backend's primary hash (§4.2.1).
// PJW, ADD and FLL are the spec's named trio; XXH3 and Blake2b are
// additional selectable algorithms for callers who want a faster or
// better-distributed hash than the original three.
type HashAlgorithm int

const (
	HashPJW HashAlgorithm = iota // default: Peter J. Weinberger's hash
	HashADD                      // shift-and-add sum of key bytes
	HashFLL                      // first + last + length
	HashXXH3
	HashBlake2b
)

// Config holds tunables shared by both backends. The zero value is a
// usable default: PJW hashing, a 100-element VA cache, resize at 80%
// load, synchronous-on-close semantics.
type Config struct {
	// Algorithm selects the SS primary hash function. Ignored by VA.
	Algorithm HashAlgorithm

	// CacheSize is the number of VA cache slots (§3.3). Zero defaults
	// to 100, the spec's recommended value.
	CacheSize int

	// ResizeLoadPercent is the SS load percentage at which GetLoad
	// reports ErrNeedsResize (§4.2.3). Zero defaults to 80.
	ResizeLoadPercent int

	// SyncWrites causes SS Insert and Delete to rewrite the on-disk
	// header's used-slot count immediately rather than only at Close.
	// It does not fsync the file. VA ignores it: VA rewrites its
	// used-slot count on every Insert and Delete regardless.
	SyncWrites bool

	// BlockSize tunes the record-fill engine's per-seek read size
	// (§4.4.3, "BLKSIZ"). Zero defaults to 128.
	BlockSize int

	// KeyMark is the byte that marks the start of a record in the data
	// file scanned by the index-make driver (§4.5, §6.4).
	KeyMark byte

	// WriteMetaSidecar causes the index-make driver to write a
	// `<path>.meta.json` sidecar with build statistics.
	WriteMetaSidecar bool
}

func (c Config) cacheSize() int {
	if c.CacheSize > 0 {
		return c.CacheSize
	}
	return DefaultCacheSize
}

func (c Config) resizeLoadPercent() int {
	if c.ResizeLoadPercent > 0 {
		return c.ResizeLoadPercent
	}
	return DefaultResizeLoadPercent
}

func (c Config) blockSize() int {
	if c.BlockSize > 0 {
		return c.BlockSize
	}
	return DefaultBlockSize
}

// Defaults referenced by Config's zero-value accessors.
const (
	DefaultCacheSize        = 100
	DefaultResizeLoadPercent = 80
	DefaultBlockSize        = 128
)
