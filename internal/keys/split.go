package keys

// Split turns a key range into index scan segments.
//
// Ascending it covers start < k <= end, descending it covers end <= k < start
// in reverse order. An empty start or end is unbounded on that side. Scanning
// the segments in order, each in dir, and concatenating the results yields the
// range exactly once.
func Split(fields FieldList, start, end IndexKey, dir Direction) ([]Segment, error) {
	if err := fields.Validate(start); err != nil {
		return nil, err
	}
	if err := fields.Validate(end); err != nil {
		return nil, err
	}

	startOp, endOp := GreaterThan, LessOrEqual
	if dir == Descending {
		startOp, endOp = LessThan, GreaterOrEqual
	}

	if len(start) > 0 && len(end) > 0 {
		c := start.Compare(end)
		if (dir == Ascending && c >= 0) || (dir == Descending && c <= 0) {
			return nil, nil
		}
	}

	p := commonPrefix(start, end)
	prefix := start[:p]
	startRest, endRest := start[p:], end[p:]

	var segments []Segment
	for len(startRest) > 1 {
		segments = append(segments, peel(prefix, startRest, startOp))
		startOp = startOp.Exclusive()
		startRest = startRest[:len(startRest)-1]
	}

	var tail []Segment
	for len(endRest) > 1 {
		tail = append(tail, peel(prefix, endRest, endOp))
		endOp = endOp.Exclusive()
		endRest = endRest[:len(endRest)-1]
	}

	middle := Segment{Eq: join(prefix, nil)}
	if len(startRest) == 1 {
		middle.bound(Bound{Op: startOp, Value: startRest[0]})
	}
	if len(endRest) == 1 {
		middle.bound(Bound{Op: endOp, Value: endRest[0]})
	}
	segments = append(segments, middle)

	for i := len(tail) - 1; i >= 0; i-- {
		segments = append(segments, tail[i])
	}
	return segments, nil
}

// peel fixes all but the last field of rest and bounds the last one with op
func peel(prefix, rest IndexKey, op Op) Segment {
	last := len(rest) - 1
	s := Segment{Eq: join(prefix, rest[:last])}
	s.bound(Bound{Op: op, Value: rest[last]})
	return s
}

func (s *Segment) bound(b Bound) {
	if b.Op.Lower() {
		s.Lower = &b
		return
	}
	s.Upper = &b
}

func join(a, b IndexKey) []Value {
	out := make([]Value, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}
