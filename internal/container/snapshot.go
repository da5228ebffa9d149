package container

import (
	"errors"
	"fmt"

	"github.com/roach88/starcore/internal/ir"
)

// Entry is one (property name, encoded value) pair of a snapshot. For a
// collection the value is an array of encoded elements.
type Entry struct {
	Name  string
	Value ir.IRValue
}

// Snapshot is the full ordered property list of a container.
type Snapshot []Entry

// IR encodes the snapshot as [[name, value], ...].
func (s Snapshot) IR() ir.IRArray {
	arr := make(ir.IRArray, len(s))
	for i, e := range s {
		arr[i] = ir.IRArray{ir.IRString(e.Name), e.Value}
	}
	return arr
}

// ParseSnapshot decodes the [[name, value], ...] form produced by IR.
// A malformed pair is skipped and reported as an *EntryError while the
// remaining pairs are kept; the returned error joins those entry errors.
// Only a non-array snapshot is rejected outright, with a nil Snapshot.
func ParseSnapshot(v ir.IRValue) (Snapshot, error) {
	arr, ok := v.(ir.IRArray)
	if !ok {
		return nil, fmt.Errorf("snapshot: expected array, got %s", ir.TypeName(v))
	}
	var errs []error
	snap := make(Snapshot, 0, len(arr))
	for i, raw := range arr {
		pair, ok := raw.(ir.IRArray)
		if !ok || len(pair) != 2 {
			errs = append(errs, &EntryError{Name: fmt.Sprintf("[%d]", i), Err: errors.New("expected [name, value] pair")})
			continue
		}
		name, ok := pair[0].(ir.IRString)
		if !ok {
			errs = append(errs, &EntryError{Name: fmt.Sprintf("[%d]", i), Err: fmt.Errorf("name must be string, got %s", ir.TypeName(pair[0]))})
			continue
		}
		snap = append(snap, Entry{Name: string(name), Value: pair[1]})
	}
	return snap, errors.Join(errs...)
}
