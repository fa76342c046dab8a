package managesieve

import (
	"strings"
)

// responseLine is one parsed line of a ManageSieve response: an ordered
// list of atoms, where each atom is either a bare word (ACTIVE, OK, a
// number) or the unescaped contents of a quoted string / literal.
type responseLine []string

// completion is the tagged line ending a response (spec section 4.6):
// OK/NO/BYE, an optional parenthesized response code, and an optional
// human-readable trailer.
type completion struct {
	Status string
	Code   string
	CodeArgs []string
	Human  string
}

func (c completion) ok() bool  { return strings.EqualFold(c.Status, "OK") }
func (c completion) bye() bool { return strings.EqualFold(c.Status, "BYE") }

// readResponse reads untagged lines until it meets a tagged OK/NO/BYE
// completion, returning both.
func readResponse(t *transport) ([]responseLine, completion, error) {
	var lines []responseLine
	for {
		line, err := readLogicalLine(t)
		if err != nil {
			return nil, completion{}, err
		}
		if len(line) == 0 {
			continue
		}
		if status, rest, isCompletion := splitCompletion(line); isCompletion {
			return lines, parseCompletion(status, rest), nil
		}
		lines = append(lines, line)
	}
}

// readChallengeOrCompletion reads a single logical line during a SASL
// exchange (spec section 4.6's AUTHENTICATE continuation), where the server
// sends exactly one of: a bare untagged line carrying the next challenge, or
// a tagged OK/NO/BYE ending the exchange outright (e.g. a mechanism
// rejected with no further challenge). Unlike readResponse, this never loops
// past a single line, since a mid-exchange challenge is not itself preceded
// or followed by other untagged lines.
func readChallengeOrCompletion(t *transport) (challenge []byte, comp *completion, err error) {
	for {
		line, err := readLogicalLine(t)
		if err != nil {
			return nil, nil, err
		}
		if len(line) == 0 {
			continue
		}
		if status, rest, isCompletion := splitCompletion(line); isCompletion {
			c := parseCompletion(status, rest)
			return nil, &c, nil
		}
		if len(line) > 0 {
			challenge = []byte(line[0])
		} else {
			challenge = []byte{}
		}
		return challenge, nil, nil
	}
}

// readLogicalLine reads one response line, transparently following any
// literal announcement(s) at its end and merging the continuation onto the
// same logical line, per RFC 5804's literal framing.
func readLogicalLine(t *transport) (responseLine, error) {
	var out responseLine
	for {
		raw, err := t.readLine()
		if err != nil {
			return nil, err
		}
		n, _, hasLiteral := parseLiteralHeader(raw)
		if !hasLiteral {
			out = append(out, tokenizeAtoms(raw)...)
			return out, nil
		}
		open := strings.LastIndexByte(raw, '{')
		out = append(out, tokenizeAtoms(strings.TrimRight(raw[:open], " "))...)
		payload, err := t.readLiteral(n)
		if err != nil {
			return nil, err
		}
		out = append(out, string(payload))
		// loop again: whatever follows the literal payload completes this line.
	}
}

// splitCompletion reports whether line begins with a tagged OK/NO/BYE
// status word, returning it and the remaining atoms.
func splitCompletion(line responseLine) (status string, rest responseLine, ok bool) {
	if len(line) == 0 {
		return "", nil, false
	}
	head := line[0]
	if strings.EqualFold(head, "OK") || strings.EqualFold(head, "NO") || strings.EqualFold(head, "BYE") {
		return strings.ToUpper(head), line[1:], true
	}
	return "", nil, false
}

// parseCompletion extracts an optional `(CODE ...)` response code and the
// trailing human-readable string from the completion's remaining atoms.
// Our tokenizer already splits "(" / arguments / ")" out as bare atoms, so
// this walks them back into a single code block.
func parseCompletion(status string, rest responseLine) completion {
	c := completion{Status: status}
	if len(rest) == 0 {
		return c
	}
	if rest[0] == "(" {
		i := 1
		for i < len(rest) && rest[i] != ")" {
			if c.Code == "" {
				c.Code = rest[i]
			} else {
				c.CodeArgs = append(c.CodeArgs, rest[i])
			}
			i++
		}
		if i < len(rest) {
			i++ // skip ')'
		}
		rest = rest[i:]
	}
	c.Human = strings.Join(rest, " ")
	return c
}

// tokenizeAtoms splits one raw response line (sans any trailing literal
// marker) into quoted-string contents and bare words, with "(" and ")"
// always split off as their own atoms.
func tokenizeAtoms(line string) responseLine {
	var out responseLine
	i := 0
	for i < len(line) {
		switch line[i] {
		case ' ', '\t':
			i++
		case '"':
			j := i + 1
			var b strings.Builder
			for j < len(line) && line[j] != '"' {
				if line[j] == '\\' && j+1 < len(line) {
					j++
				}
				b.WriteByte(line[j])
				j++
			}
			out = append(out, b.String())
			i = j + 1
		case '(', ')':
			out = append(out, string(line[i]))
			i++
		default:
			j := i
			for j < len(line) && line[j] != ' ' && line[j] != '\t' && line[j] != '(' && line[j] != ')' {
				j++
			}
			out = append(out, line[i:j])
			i = j
		}
	}
	return out
}

// capabilitiesFromLines turns the untagged lines of a greeting or post-STARTTLS
// re-announce into a key/value map (spec section 4.6). A single-atom line
// (e.g. "STARTTLS") maps to an empty value, signalling a boolean capability.
func capabilitiesFromLines(lines []responseLine) map[string]string {
	caps := make(map[string]string)
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		key := strings.ToUpper(line[0])
		if len(line) > 1 {
			caps[key] = line[1]
		} else {
			caps[key] = ""
		}
	}
	return caps
}
