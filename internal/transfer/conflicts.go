package transfer

import (
	"github.com/mediatheque/mediatheque/internal/faults"
	"github.com/mediatheque/mediatheque/internal/hashing"
)

// Resolution is an operator's answer to a deferred conflict.
type Resolution string

const (
	// ResolutionKeepOld leaves the existing file and skips the item.
	ResolutionKeepOld Resolution = "keep_old"
	// ResolutionKeepNew replaces the existing file with the new one.
	ResolutionKeepNew Resolution = "keep_new"
	// ResolutionKeepBoth places the new file under an -alt suffix.
	ResolutionKeepBoth Resolution = "keep_both"
	// ResolutionSkip skips the item without judging the existing file.
	ResolutionSkip Resolution = "skip"
)

// conflictOptions is the fixed menu offered for deferred conflicts.
var conflictOptions = []Resolution{ResolutionKeepOld, ResolutionKeepNew, ResolutionKeepBoth, ResolutionSkip}

func validResolution(r Resolution) bool {
	switch r {
	case ResolutionKeepOld, ResolutionKeepNew, ResolutionKeepBoth, ResolutionSkip:
		return true
	}
	return false
}

// Conflict describes what stands between an item and its destination.
// Duplicates are auto-skipped; the other kinds suspend the batch for
// an operator resolution.
type Conflict struct {
	Subkind      faults.ConflictSubkind `json:"subkind"`
	Path         string                 `json:"path"`
	ExistingHash string                 `json:"existingHash,omitempty"`
}

// detectConflict classifies the destination before any filesystem
// mutation. Duplicate requires hash equality on both sides; a missing
// hash on either side defers to the operator instead.
func (t *Transferer) detectConflict(item *PlannedItem) *Conflict {
	newHash := item.File.FileHash

	if t.ops.FileExists(item.Destination) {
		existingHash, err := hashing.SampledFile(item.Destination)
		if err != nil {
			t.logger.Warn().Err(err).
				Str("path", item.Destination).
				Msg("Could not hash existing destination")
			existingHash = ""
		}
		if existingHash != "" && newHash != "" && existingHash == newHash {
			return &Conflict{Subkind: faults.ConflictDuplicate, Path: item.Destination, ExistingHash: existingHash}
		}
		return &Conflict{Subkind: faults.ConflictNameCollision, Path: item.Destination, ExistingHash: existingHash}
	}

	// The entity may already hold a file somewhere else in storage,
	// typically another cut or re-encode of the same title.
	entityPath, entityHash := item.entityFile()
	if entityPath != "" && entityPath != item.Destination && t.ops.FileExists(entityPath) {
		if entityHash != "" && newHash != "" && entityHash == newHash {
			return &Conflict{Subkind: faults.ConflictDuplicate, Path: entityPath, ExistingHash: entityHash}
		}
		return &Conflict{Subkind: faults.ConflictSimilarContent, Path: entityPath, ExistingHash: entityHash}
	}
	return nil
}
