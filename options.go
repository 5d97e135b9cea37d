package concur

const (
	defaultInitialBlockSize = 11
	defaultBlockGrowth      = 1.5

	defaultMaxRecordAge = 100

	defaultInitialCapacity = 7
	defaultArrayGrowth     = 1.5
)

// poolConfig holds the tunables exposed through PoolOption. It is a
// plain (non-generic) struct so options don't need a type parameter
// of their own.
type poolConfig struct {
	initialBlockSize int
	blockGrowth      float64
}

// PoolOption configures a DataPool at construction time.
type PoolOption func(*poolConfig)

// WithInitialBlockSize overrides the slot count of the first block.
func WithInitialBlockSize(n int) PoolOption {
	return func(c *poolConfig) { c.initialBlockSize = n }
}

// WithBlockGrowth overrides the block chain's growth factor.
func WithBlockGrowth(factor float64) PoolOption {
	return func(c *poolConfig) { c.blockGrowth = factor }
}

// queueConfig holds the tunables exposed through QueueOption.
type queueConfig struct {
	maxRecordAge uint64
}

// QueueOption configures a Queue at construction time.
type QueueOption func(*queueConfig)

// WithMaxRecordAge overrides the number of combiner passes a record
// may go unused before it is aged out of the publication list.
func WithMaxRecordAge(passes uint64) QueueOption {
	return func(c *queueConfig) { c.maxRecordAge = passes }
}

// seqConfig holds the tunables exposed through SeqOption.
type seqConfig struct {
	initialCapacity int
	arrayGrowth     float64
}

// SeqOption configures a Seq at construction time.
type SeqOption func(*seqConfig)

// WithInitialCapacity overrides the initial backing array capacity.
func WithInitialCapacity(n int) SeqOption {
	return func(c *seqConfig) { c.initialCapacity = n }
}

// WithArrayGrowth overrides the backing array's growth factor.
func WithArrayGrowth(factor float64) SeqOption {
	return func(c *seqConfig) { c.arrayGrowth = factor }
}
