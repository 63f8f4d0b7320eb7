// Package parsing splits a streamed completion into reasoning and final text.
//
// DESIGN: TagParser is an incremental state machine over the decoded text of
// the upstream answer stream. The model is instructed to wrap its reasoning in
// <analysis>...</analysis> and the answer in <final>...</final>; tags may be
// split across arbitrary chunk boundaries, so the parser withholds the longest
// suffix that could still be a partial tag and only releases text once its
// classification is certain. Classification is therefore independent of how
// the stream happens to be chunked.
//
// Malformed input never fails the stream: reordered or repeated tags are
// literal content of the current section, and missing tags degrade to
// well-defined fallbacks at Finalize.
package parsing

import "strings"

// Boundary tags. Matching is exact and case-sensitive on decoded text.
const (
	OpenAnalysis  = "<analysis>"
	CloseAnalysis = "</analysis>"
	OpenFinal     = "<final>"
	CloseFinal    = "</final>"
)

type state int

const (
	// stateUnknown covers both "before any tag" and the gap between
	// </analysis> and <final>. Text is withheld until a tag resolves it.
	stateUnknown state = iota
	stateAnalysis
	stateFinal
	stateDone // after </final>; remaining bytes are ignored
)

// Result carries the classified increments released by one Feed or Finalize
// call, plus boundary transitions observed during that call.
type Result struct {
	Reasoning    string // text confirmed to belong to the analysis section
	Final        string // text confirmed to belong to the final section
	AnalysisDone bool   // the analysis section closed during this call
	FinalDone    bool   // the final section closed during this call
}

// Empty reports whether the result carries no text and no transitions.
func (r Result) Empty() bool {
	return r.Reasoning == "" && r.Final == "" && !r.AnalysisDone && !r.FinalDone
}

// TagParser incrementally classifies streamed text. One instance serves
// exactly one stream; it is not safe for concurrent use and never needs to be.
type TagParser struct {
	state        state
	carry        string
	seenAnyTag   bool
	seenAnalysis bool
}

// NewTagParser returns a parser ready to consume the first chunk.
func NewTagParser() *TagParser {
	return &TagParser{state: stateUnknown}
}

// Feed consumes the next decoded text chunk, in stream order, and returns any
// text whose classification became certain.
func (p *TagParser) Feed(text string) Result {
	p.carry += text
	var res Result
	var reasoning, final strings.Builder

	for {
		switch p.state {
		case stateUnknown:
			idxA := strings.Index(p.carry, OpenAnalysis)
			idxF := strings.Index(p.carry, OpenFinal)
			if idxA == -1 && idxF == -1 {
				// No opening tag yet; withhold everything. The carry may
				// still end in a partial tag, so nothing can be released.
				goto out
			}
			if idxA != -1 && (idxF == -1 || idxA < idxF) {
				p.seenAnyTag = true
				p.seenAnalysis = true
				p.carry = p.carry[idxA+len(OpenAnalysis):]
				p.state = stateAnalysis
				continue
			}
			p.seenAnyTag = true
			p.carry = p.carry[idxF+len(OpenFinal):]
			p.state = stateFinal

		case stateAnalysis:
			idx := strings.Index(p.carry, CloseAnalysis)
			if idx == -1 {
				// Release all but the longest possible close-tag prefix.
				safe := len(p.carry) - len(CloseAnalysis) + 1
				if safe > 0 {
					reasoning.WriteString(p.carry[:safe])
					p.carry = p.carry[safe:]
				}
				goto out
			}
			reasoning.WriteString(p.carry[:idx])
			p.carry = p.carry[idx+len(CloseAnalysis):]
			p.state = stateUnknown
			res.AnalysisDone = true

		case stateFinal:
			idx := strings.Index(p.carry, CloseFinal)
			if idx == -1 {
				safe := len(p.carry) - len(CloseFinal) + 1
				if safe > 0 {
					final.WriteString(p.carry[:safe])
					p.carry = p.carry[safe:]
				}
				goto out
			}
			final.WriteString(p.carry[:idx])
			p.carry = p.carry[idx+len(CloseFinal):]
			p.state = stateDone
			res.FinalDone = true

		case stateDone:
			p.carry = ""
			goto out
		}
	}

out:
	res.Reasoning = reasoning.String()
	res.Final = final.String()
	return res
}

// Finalize flushes whatever is still withheld once the stream has ended.
// The pending buffer is assigned to the current section:
//
//   - mid-analysis: the remainder is reasoning (close tag never arrived)
//   - mid-final: the remainder is final text
//   - no tag ever seen: the whole stream is the final answer
//   - after </analysis> with no <final>: the remainder is reasoning
//
// Must be called exactly once; the parser is spent afterwards.
func (p *TagParser) Finalize() Result {
	var res Result

	switch {
	case p.state == stateAnalysis && p.carry != "":
		res.Reasoning = p.carry
		res.AnalysisDone = true
	case p.state == stateFinal && p.carry != "":
		res.Final = p.carry
	case p.state == stateDone:
		res.FinalDone = true
	case p.state == stateUnknown && p.carry != "":
		if !p.seenAnyTag {
			res.Final = p.carry
		} else if p.seenAnalysis {
			res.Reasoning = p.carry
		}
	}

	p.carry = ""
	return res
}

// SeenAnyTag reports whether an opening tag has been observed so far.
func (p *TagParser) SeenAnyTag() bool { return p.seenAnyTag }
