package storage

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kden/esp32-sunlight-sensor-sub000/internal/models"
)

const (
	batchCountKey  = "batch_count"
	batchKeyPrefix = "batch_"
)

// OverflowStore is the durable fallback for readings that could not be
// delivered. Batches are appended as separate blobs under contiguous
// sequence numbers instead of rewriting one growing blob on every
// save; a wear-leveled medium pays for large read-modify-write cycles
// in flash wear and partial-write corruption risk.
//
// The sender task is the single writer; the BlobStore serializes its
// own operations, so no extra locking happens here.
type OverflowStore struct {
	kv         BlobStore
	maxBatches int
	logger     zerolog.Logger
}

// NewOverflowStore creates an overflow store over the given key-value
// collaborator, holding at most maxBatches batches. At the bound the
// oldest batch is evicted so the newest data always wins.
func NewOverflowStore(kv BlobStore, maxBatches int, logger zerolog.Logger) *OverflowStore {
	if maxBatches < 1 {
		maxBatches = 1
	}
	return &OverflowStore{
		kv:         kv,
		maxBatches: maxBatches,
		logger:     logger,
	}
}

func batchKey(seq int64) string {
	return fmt.Sprintf("%s%d", batchKeyPrefix, seq)
}

// batchCount returns the number of stored batches; a missing counter
// means an empty store.
func (s *OverflowStore) batchCount() (int64, error) {
	count, err := s.kv.GetCounter(batchCountKey)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// SaveBatch appends readings as the next sequence-numbered batch and
// commits the updated batch count. On error the prior state is
// unchanged and the caller must keep the readings in memory for a
// later retry.
func (s *OverflowStore) SaveBatch(readings []models.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	count, err := s.batchCount()
	if err != nil {
		return fmt.Errorf("failed to get batch count: %w", err)
	}

	if count >= int64(s.maxBatches) {
		count, err = s.evictOldest(count)
		if err != nil {
			return fmt.Errorf("failed to evict oldest batch: %w", err)
		}
	}

	key := batchKey(count)
	if err := s.kv.SetBlob(key, encodeReadings(readings)); err != nil {
		return fmt.Errorf("failed to save batch %q: %w", key, err)
	}
	// Counter last: a crash between the two writes leaves an orphan
	// blob that the next save at this sequence overwrites.
	if err := s.kv.SetCounter(batchCountKey, count+1); err != nil {
		return fmt.Errorf("failed to update batch count: %w", err)
	}
	if err := s.kv.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch save: %w", err)
	}

	s.logger.Info().
		Int64("batch", count).
		Int("readings", len(readings)).
		Msg("Saved batch to overflow store")
	return nil
}

// evictOldest drops batch 0 and re-packs the survivors into a single
// batch at sequence 0, returning the new batch count. Eviction only
// happens after the store has absorbed a multi-hour outage, so the
// rewrite cost is acceptable.
func (s *OverflowStore) evictOldest(count int64) (int64, error) {
	var survivors []models.Reading
	for seq := int64(1); seq < count; seq++ {
		blob, err := s.kv.GetBlob(batchKey(seq))
		if err != nil {
			s.logger.Warn().Int64("batch", seq).Err(err).
				Msg("Skipping unreadable batch during eviction")
			continue
		}
		readings, err := decodeReadings(blob)
		if err != nil {
			s.logger.Warn().Int64("batch", seq).Err(err).
				Msg("Skipping corrupt batch during eviction")
			continue
		}
		survivors = append(survivors, readings...)
	}

	if err := s.kv.SetBlob(batchKey(0), encodeReadings(survivors)); err != nil {
		return count, err
	}
	for seq := int64(1); seq < count; seq++ {
		if err := s.kv.Erase(batchKey(seq)); err != nil {
			return count, err
		}
	}
	if err := s.kv.SetCounter(batchCountKey, 1); err != nil {
		return count, err
	}

	s.logger.Warn().
		Int64("evicted_batches", count).
		Int("surviving_readings", len(survivors)).
		Msg("Overflow store full, evicted oldest batch")
	return 1, nil
}

// LoadAll iterates batches from sequence 0 upward, appending decoded
// readings until maxCapacity is reached or batches are exhausted. An
// unreadable or corrupt batch is skipped, not fatal.
func (s *OverflowStore) LoadAll(maxCapacity int) ([]models.Reading, int, error) {
	count, err := s.batchCount()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get batch count: %w", err)
	}
	if count == 0 {
		return nil, 0, nil
	}

	var out []models.Reading
	for seq := int64(0); seq < count; seq++ {
		key := batchKey(seq)
		blob, err := s.kv.GetBlob(key)
		if err != nil {
			s.logger.Warn().Str("key", key).Err(err).Msg("Failed to read batch, skipping")
			continue
		}
		readings, err := decodeReadings(blob)
		if err != nil {
			s.logger.Warn().Str("key", key).Err(err).Msg("Corrupt batch, skipping")
			continue
		}
		if len(out)+len(readings) > maxCapacity {
			s.logger.Warn().
				Int("loaded", len(out)).
				Int("max_capacity", maxCapacity).
				Msg("Load capacity reached, stopping")
			break
		}
		out = append(out, readings...)
	}

	s.logger.Info().
		Int("readings", len(out)).
		Int64("batches", count).
		Msg("Loaded readings from overflow store")
	return out, len(out), nil
}

// Clear erases every batch entry and the batch counter. Used only
// after a confirmed successful delivery of all loaded readings.
func (s *OverflowStore) Clear() error {
	count, err := s.batchCount()
	if err != nil {
		return fmt.Errorf("failed to get batch count: %w", err)
	}
	for seq := int64(0); seq < count; seq++ {
		if err := s.kv.Erase(batchKey(seq)); err != nil {
			return fmt.Errorf("failed to erase batch %d: %w", seq, err)
		}
	}
	if err := s.kv.Erase(batchCountKey); err != nil {
		return fmt.Errorf("failed to erase batch count: %w", err)
	}
	if err := s.kv.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}
	s.logger.Info().Msg("Cleared all stored readings")
	return nil
}

// Count sums batch sizes without materializing their contents.
func (s *OverflowStore) Count() (int, error) {
	count, err := s.batchCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get batch count: %w", err)
	}
	total := 0
	for seq := int64(0); seq < count; seq++ {
		size, err := s.kv.BlobSize(batchKey(seq))
		if err != nil {
			continue
		}
		total += size / recordSize
	}
	return total, nil
}
