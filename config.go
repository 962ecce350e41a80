package columnar

import (
	"fmt"

	"github.com/localcol/columnar/crypto"
)

// ReaderConfig carries the options enumerated in the reader's external
// configuration surface: filter levels, checksum verification, async mode,
// allocation bounds, metadata filtering, decryption, and the record
// predicate.
type ReaderConfig struct {
	UseStatsFilter              bool
	UseDictionaryFilter         bool
	UseBloomFilter              bool
	UseColumnIndexFilter        bool
	UsePageChecksumVerification bool
	AsyncReaderEnabled          bool
	MaxAllocationSize           int64
	MetadataFilter              MetadataFilter
	DecryptionProperties        *crypto.DecryptionProperties
	RecordFilter                Predicate
	Parallelism                 int
	IOExecutor                  IOExecutor
	ProcessingExecutor          ProcessingExecutor
	Logger                      Logger
}

// DefaultReaderConfig returns the configuration a reader is opened with
// absent any options: every filter level on, checksum verification on,
// synchronous I/O, a 64MiB allocation cap, no metadata filtering, and a
// parallelism of 5 for batch multi-footer reads.
func DefaultReaderConfig() *ReaderConfig {
	return &ReaderConfig{
		UseStatsFilter:              true,
		UseDictionaryFilter:         true,
		UseBloomFilter:              true,
		UseColumnIndexFilter:        true,
		UsePageChecksumVerification: true,
		MaxAllocationSize:           64 << 20,
		MetadataFilter:              NoFilter(),
		RecordFilter:                AcceptAll(),
		Parallelism:                 5,
		Logger:                      defaultLogger,
	}
}

// Apply applies the given options to c in order.
func (c *ReaderConfig) Apply(options ...ReaderOption) {
	for _, opt := range options {
		opt.ConfigureReader(c)
	}
}

// Validate reports whether c describes a usable configuration.
func (c *ReaderConfig) Validate() error {
	if c.MaxAllocationSize <= 0 {
		return fmt.Errorf("columnar: MaxAllocationSize must be positive, got %d", c.MaxAllocationSize)
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("columnar: Parallelism must be positive, got %d", c.Parallelism)
	}
	if c.MetadataFilter == nil {
		return fmt.Errorf("columnar: MetadataFilter must not be nil")
	}
	return nil
}

func (c *ReaderConfig) filterLevels() map[FilterLevel]bool {
	return map[FilterLevel]bool{
		FilterStatistics:   c.UseStatsFilter,
		FilterDictionary:   c.UseDictionaryFilter,
		FilterBloomFilter:  c.UseBloomFilter,
		FilterColumnIndex:  c.UseColumnIndexFilter,
	}
}

// ReaderOption configures a ReaderConfig; implementations are applied in
// the order passed to Open.
type ReaderOption interface {
	ConfigureReader(*ReaderConfig)
}

type readerOption func(*ReaderConfig)

func (opt readerOption) ConfigureReader(config *ReaderConfig) { opt(config) }

// WithStatsFilter toggles statistics-based row-group pruning.
func WithStatsFilter(enabled bool) ReaderOption {
	return readerOption(func(c *ReaderConfig) { c.UseStatsFilter = enabled })
}

// WithDictionaryFilter toggles dictionary-based row-group pruning.
func WithDictionaryFilter(enabled bool) ReaderOption {
	return readerOption(func(c *ReaderConfig) { c.UseDictionaryFilter = enabled })
}

// WithBloomFilter toggles bloom-filter-based row-group pruning.
func WithBloomFilter(enabled bool) ReaderOption {
	return readerOption(func(c *ReaderConfig) { c.UseBloomFilter = enabled })
}

// WithColumnIndexFilter toggles column-index page/row pruning.
func WithColumnIndexFilter(enabled bool) ReaderOption {
	return readerOption(func(c *ReaderConfig) { c.UseColumnIndexFilter = enabled })
}

// WithPageChecksumVerification toggles CRC-32 verification of page bodies.
func WithPageChecksumVerification(enabled bool) ReaderOption {
	return readerOption(func(c *ReaderConfig) { c.UsePageChecksumVerification = enabled })
}

// WithAsyncReader enables the two-executor asynchronous I/O and page
// pipeline. If enabled without executors configured, the reader falls back
// to synchronous mode and logs a warning once.
func WithAsyncReader(enabled bool) ReaderOption {
	return readerOption(func(c *ReaderConfig) { c.AsyncReaderEnabled = enabled })
}

// WithMaxAllocationSize bounds the size of a single buffer allocation;
// larger consecutive parts are read in multiple bounded chunks.
func WithMaxAllocationSize(n int64) ReaderOption {
	return readerOption(func(c *ReaderConfig) { c.MaxAllocationSize = n })
}

// WithMetadataFilter selects which row groups' metadata survive trailer
// parsing.
func WithMetadataFilter(f MetadataFilter) ReaderOption {
	return readerOption(func(c *ReaderConfig) { c.MetadataFilter = f })
}

// WithDecryptionProperties supplies the keys needed to open an encrypted
// file. Required when the file's tail magic is EFMagic.
func WithDecryptionProperties(props *crypto.DecryptionProperties) ReaderOption {
	return readerOption(func(c *ReaderConfig) { c.DecryptionProperties = props })
}

// WithRecordFilter installs the compiled predicate used for row-group and
// page pruning.
func WithRecordFilter(p Predicate) ReaderOption {
	return readerOption(func(c *ReaderConfig) { c.RecordFilter = p })
}

// WithParallelism sets the worker count for batch multi-footer reads.
func WithParallelism(n int) ReaderOption {
	return readerOption(func(c *ReaderConfig) { c.Parallelism = n })
}

// WithIOExecutor injects the executor async mode uses for background reads.
func WithIOExecutor(e IOExecutor) ReaderOption {
	return readerOption(func(c *ReaderConfig) { c.IOExecutor = e })
}

// WithProcessingExecutor injects the executor async mode uses for
// background page decoding.
func WithProcessingExecutor(e ProcessingExecutor) ReaderOption {
	return readerOption(func(c *ReaderConfig) { c.ProcessingExecutor = e })
}

// WithLogger injects the logger used for non-fatal warnings.
func WithLogger(l Logger) ReaderOption {
	return readerOption(func(c *ReaderConfig) {
		if l == nil {
			l = defaultLogger
		}
		c.Logger = l
	})
}
