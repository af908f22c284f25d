// Package guard implements the scope-restriction policy for the tutor.
//
// Classification is a deterministic keyword-membership test against a fixed
// vocabulary of operating-systems terms, with a small greeting allowlist so
// benign small talk passes. It is a heuristic, not a semantic classifier:
// on-topic queries phrased without a recognized keyword are refused, and
// off-topic queries containing a keyword slip through. Tests treat the
// vocabulary as ground truth.
package guard

import "strings"

// RefusalMessage is the fixed polite refusal returned for out-of-scope
// queries. No retrieval or generation happens for those.
const RefusalMessage = "I am an OS Tutor. I can only answer questions about " +
	"Operating Systems, Computer Science, or Coding."

// Decision is the result of classifying a query.
type Decision struct {
	// InScope reports whether the query may proceed to generation.
	InScope bool

	// Greeting marks small talk: in-scope, but retrieval is skipped.
	Greeting bool

	// Reason names the matched vocabulary term or greeting, for diagnostics.
	Reason string
}

// Classifier decides whether a query is in-domain. The vocabulary and
// greeting list are plain data so the policy can be tested and replaced
// without touching prompt text.
type Classifier struct {
	vocabulary []string
	greetings  []string
}

// NewClassifier builds a classifier from explicit term lists.
// Terms are matched case-insensitively as substrings of the query.
func NewClassifier(vocabulary, greetings []string) *Classifier {
	lower := func(terms []string) []string {
		out := make([]string, len(terms))
		for i, t := range terms {
			out[i] = strings.ToLower(t)
		}
		return out
	}
	return &Classifier{vocabulary: lower(vocabulary), greetings: lower(greetings)}
}

// New returns a classifier with the default OS-tutor vocabulary.
func New() *Classifier {
	return NewClassifier(defaultVocabulary, defaultGreetings)
}

// Classify applies the keyword rule to a query.
func (c *Classifier) Classify(query string) Decision {
	q := strings.ToLower(query)

	for _, g := range c.greetings {
		if strings.Contains(q, g) {
			return Decision{InScope: true, Greeting: true, Reason: "greeting: " + g}
		}
	}

	for _, term := range c.vocabulary {
		if strings.Contains(q, term) {
			return Decision{InScope: true, Reason: "keyword: " + term}
		}
	}

	return Decision{Reason: "no domain keyword matched"}
}

// defaultVocabulary is the domain term list. Multi-word and stemmed forms
// ("schedul" covers scheduler/scheduling) keep the substring rule useful.
// Very short tokens are avoided: they match unrelated words.
var defaultVocabulary = []string{
	"operating system",
	"kernel",
	"process",
	"thread",
	"deadlock",
	"schedul",
	"fcfs",
	"sjf",
	"round robin",
	"mlfq",
	"multilevel",
	"priority",
	"semaphore",
	"mutex",
	"monitor",
	"lock",
	"synchroniz",
	"race condition",
	"critical section",
	"starvation",
	"banker",
	"concurren",
	"parallel",
	"memory",
	"paging",
	"page fault",
	"page table",
	"segmentation",
	"fragmentation",
	"virtual memory",
	"swapping",
	"thrashing",
	"tlb",
	"cache",
	"file system",
	"filesystem",
	"inode",
	"disk",
	"i/o",
	"interrupt",
	"system call",
	"syscall",
	"context switch",
	"fork",
	"exec",
	"pipe",
	"signal",
	"cpu",
	"linux",
	"unix",
	"shell",
	"boot",
	"driver",
	"algorithm",
	"data structure",
	"compiler",
	"program",
	"code",
	"software",
	"computer",
}

// defaultGreetings is the small-talk allowlist: always in-scope, never
// triggers retrieval.
var defaultGreetings = []string{
	"hello",
	"hi there",
	"hey",
	"good morning",
	"good afternoon",
	"good evening",
	"how are you",
	"thank",
	"thanks",
	"bye",
	"goodbye",
	"see you",
}
