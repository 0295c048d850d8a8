package maintainer

import (
	"encoding/hex"
	"fmt"

	"github.com/S0me0neR0man/pagestash/internal/keys"
)

// TaskKind is the task queue kind of maintenance steps
const TaskKind = "pages.step"

// Step the persisted cursor of a pass: page PageIndex starts after StartKey
type Step struct {
	Generation uint64
	PageIndex  int64
	StartKey   keys.IndexKey
}

func (s Step) String() string {
	return fmt.Sprintf("step %d/%d after %s", s.Generation, s.PageIndex, s.StartKey)
}

// dedupKey identifies the step within the task queue. The start key is part
// of it so a rerun that moved the page end enqueues a fresh successor.
func (s Step) dedupKey() string {
	return fmt.Sprintf("%s/%d/%d/%s", TaskKind, s.Generation, s.PageIndex,
		hex.EncodeToString(keys.EncodeKey(s.StartKey)))
}

// marshal encodes the step as a tuple: generation, page index, start key fields
func (s Step) marshal() []byte {
	b := keys.AppendValue(nil, keys.Int(int64(s.Generation)))
	b = keys.AppendValue(b, keys.Int(s.PageIndex))
	return keys.AppendKey(b, s.StartKey)
}

func unmarshalStep(b []byte) (Step, error) {
	vals, err := keys.DecodeKey(b)
	if err != nil {
		return Step{}, fmt.Errorf("decode step: %w", err)
	}
	if len(vals) < 2 || vals[0].Kind() != keys.KindInt || vals[1].Kind() != keys.KindInt {
		return Step{}, fmt.Errorf("decode step: %w: bad header", keys.ErrValidation)
	}
	s := Step{
		Generation: uint64(vals[0].AsInt()),
		PageIndex:  vals[1].AsInt(),
	}
	if len(vals) > 2 {
		s.StartKey = vals[2:]
	}
	return s, nil
}
