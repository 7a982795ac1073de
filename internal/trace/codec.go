package trace

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// wireEntry is the JSON shape of an Entry.
type wireEntry struct {
	EID            uint64   `json:"eid"`
	FID            uint32   `json:"fid"`
	IID            uint32   `json:"iid"`
	SP             uint32   `json:"sp"`
	AllocatedPages uint32   `json:"pages"`
	LastJumpEID    uint64   `json:"last_jump_eid"`
	Step           wireStep `json:"step"`
}

type wireStep struct {
	Kind   StepKind `json:"kind"`
	Opcode string   `json:"opcode,omitempty"`
	Callee uint32   `json:"callee,omitempty"`
	Op     int      `json:"op,omitempty"`
	Value  *uint64  `json:"value,omitempty"`
	Sig    string   `json:"sig,omitempty"`
}

// MarshalJSON encodes the entry with its step tagged by kind.
func (e Entry) MarshalJSON() ([]byte, error) {
	ws, err := toWireStep(e.Step)
	if err != nil {
		return nil, fmt.Errorf("entry %d: %w", e.EID, err)
	}
	return json.Marshal(wireEntry{
		EID:            e.EID,
		FID:            e.FID,
		IID:            e.IID,
		SP:             e.SP,
		AllocatedPages: e.AllocatedPages,
		LastJumpEID:    e.LastJumpEID,
		Step:           ws,
	})
}

// UnmarshalJSON decodes an entry. Unknown step kinds are rejected.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	step, err := fromWireStep(w.Step)
	if err != nil {
		return fmt.Errorf("entry %d: %w", w.EID, err)
	}
	*e = Entry{
		EID:            w.EID,
		FID:            w.FID,
		IID:            w.IID,
		SP:             w.SP,
		AllocatedPages: w.AllocatedPages,
		LastJumpEID:    w.LastJumpEID,
		Step:           step,
	}
	return nil
}

func toWireStep(s Step) (wireStep, error) {
	switch st := s.(type) {
	case Plain:
		return wireStep{Kind: KindPlain, Opcode: st.Opcode}, nil
	case Call:
		return wireStep{Kind: KindCall, Callee: st.Callee}, nil
	case Return:
		return wireStep{Kind: KindReturn}, nil
	case HostCall:
		return wireStep{Kind: KindHostCall, Op: st.Op, Value: st.Value, Sig: st.Sig.String()}, nil
	case nil:
		return wireStep{}, fmt.Errorf("missing step")
	default:
		return wireStep{}, fmt.Errorf("unsupported step type %T", s)
	}
}

func fromWireStep(w wireStep) (Step, error) {
	switch w.Kind {
	case KindPlain:
		return Plain{Opcode: w.Opcode}, nil
	case KindCall:
		return Call{Callee: w.Callee}, nil
	case KindReturn:
		return Return{}, nil
	case KindHostCall:
		sig, err := ParseSignature(w.Sig)
		if err != nil {
			return nil, err
		}
		return HostCall{Op: w.Op, Value: w.Value, Sig: sig}, nil
	default:
		return nil, fmt.Errorf("unknown step kind %q", w.Kind)
	}
}

// ParseSignature parses the wire form of a Signature. Empty means argument.
func ParseSignature(s string) (Signature, error) {
	switch s {
	case "", "argument":
		return SigArgument, nil
	case "return":
		return SigReturn, nil
	default:
		return 0, fmt.Errorf("unknown host call signature %q", s)
	}
}

// Reader decodes a JSON-lines trace.
type Reader struct {
	scanner *bufio.Scanner
	line    int
	seen    bool
	lastEID uint64
}

// maxLineBytes bounds a single encoded entry.
const maxLineBytes = 1 << 20

// NewReader wraps r. Blank lines are skipped.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{scanner: sc}
}

// Next returns the next entry, or io.EOF when the trace is exhausted.
// EIDs must be strictly increasing; a trace that violates this is rejected.
func (r *Reader) Next() (Entry, error) {
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			return Entry{}, fmt.Errorf("line %d: %w", r.line, err)
		}
		if r.seen && e.EID <= r.lastEID {
			return Entry{}, fmt.Errorf("line %d: eid %d does not follow %d", r.line, e.EID, r.lastEID)
		}
		r.seen = true
		r.lastEID = e.EID
		return e, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Entry{}, fmt.Errorf("read trace: %w", err)
	}
	return Entry{}, io.EOF
}

// ReadAll decodes every remaining entry.
func ReadAll(r io.Reader) ([]Entry, error) {
	tr := NewReader(r)
	var entries []Entry
	for {
		e, err := tr.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
}

// Writer encodes entries as JSON lines.
type Writer struct {
	enc *json.Encoder
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// Write appends one entry.
func (w *Writer) Write(e Entry) error {
	return w.enc.Encode(e)
}
