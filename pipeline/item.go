package pipeline

import (
	"fmt"
	"strconv"
)

// Kind identifies the payload an Item carries.
type Kind int

const (
	KindChar Kind = iota
	KindInt
)

func (k Kind) String() string {
	switch k {
	case KindChar:
		return "char"
	case KindInt:
		return "int"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Item is one generated value travelling from a producer through the queue.
type Item struct {
	Kind Kind
	Char rune
	Int  int
	// Source tags the generator input the item came from.
	Source string
	// Seq is the item's position within its generator.
	Seq int
}

// CharItem builds a character item.
func CharItem(source string, seq int, c rune) Item {
	return Item{Kind: KindChar, Char: c, Source: source, Seq: seq}
}

// IntItem builds an integer item.
func IntItem(source string, seq, n int) Item {
	return Item{Kind: KindInt, Int: n, Source: source, Seq: seq}
}

// String renders the raw payload.
func (it Item) String() string {
	switch it.Kind {
	case KindChar:
		return string(it.Char)
	case KindInt:
		return strconv.Itoa(it.Int)
	default:
		return ""
	}
}

// Step is one generator output: an item, or a failure in its place.
// A failed step never reaches the queue.
type Step struct {
	Item
	Err error
}

// Failed reports whether the step carries a generation failure.
func (s Step) Failed() bool { return s.Err != nil }

// ResultKind classifies what the consumer emitted.
type ResultKind string

const (
	ResultValue     ResultKind = "value"
	ResultBreak     ResultKind = "break"
	ResultCancelled ResultKind = "cancelled"
	ResultDone      ResultKind = "done"
)

// Marker texts emitted alongside transformed values.
const (
	BreakMessage     = "Consumer is taking a break..."
	CancelledMessage = "Consumer is cancelled!"
	DoneMessage      = "All producers are done."
)

// Result is one entry on the output stream of a run.
type Result struct {
	Kind   ResultKind `json:"kind"`
	Value  string     `json:"value"`
	Source string     `json:"source,omitempty"`
}

// IsMarker reports whether r is a control marker rather than a transformed value.
func (r Result) IsMarker() bool { return r.Kind != ResultValue }

func (r Result) String() string { return r.Value }

func valueResult(item Item, value string) Result {
	return Result{Kind: ResultValue, Value: value, Source: item.Source}
}

func markerResult(kind ResultKind) Result {
	switch kind {
	case ResultBreak:
		return Result{Kind: kind, Value: BreakMessage}
	case ResultCancelled:
		return Result{Kind: kind, Value: CancelledMessage}
	default:
		return Result{Kind: ResultDone, Value: DoneMessage}
	}
}
