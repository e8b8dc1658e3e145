package content

import (
	"fmt"
	"strconv"
)

// ContentLexer tokenizes PDF content streams.
type ContentLexer struct {
	data []byte
	pos  int
}

// TokenType for content streams.
type TokenType int

const (
	TokenOperator TokenType = iota
	TokenOperand
)

// Token represents a content stream token.
type Token struct {
	Type  TokenType
	Value interface{}
}

// NewContentLexer creates a new content lexer.
func NewContentLexer(data []byte) *ContentLexer {
	return &ContentLexer{data: data, pos: 0}
}

// NextToken returns the next token from the content stream.
func (l *ContentLexer) NextToken() (*Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.data) {
		return nil, fmt.Errorf("EOF")
	}

	ch := l.data[l.pos]

	switch {
	case ch == '%':
		l.skipComment()
		return l.NextToken()
	case ch == '(':
		// String
		return l.readString()
	case ch == '<':
		// Hex string or dictionary
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
			l.pos += 2
			return &Token{Type: TokenOperand, Value: "<<"}, nil
		}
		return l.readHexString()
	case ch == '>':
		if l.pos+1 < len(l.data) && l.data[l.pos+1] == '>' {
			l.pos += 2
			return &Token{Type: TokenOperand, Value: ">>"}, nil
		}
		l.pos++
		return l.NextToken()
	case ch == '[':
		// Array - parse the entire array
		return l.readArray()
	case ch == ']':
		l.pos++
		return l.NextToken()
	case ch == '/':
		// Name
		return l.readName()
	case ch == '+' || ch == '-' || ch == '.' || (ch >= '0' && ch <= '9'):
		// Number
		return l.readNumber()
	default:
		// Operator or keyword
		return l.readOperator()
	}
}

// SkipInlineImage advances past an inline image: everything from the
// current position (just after BI's ID data marker or BI itself)
// through the EI delimiter. The binary payload must not reach the
// tokenizer.
func (l *ContentLexer) SkipInlineImage() {
	for l.pos+1 < len(l.data) {
		if l.data[l.pos] == 'E' && l.data[l.pos+1] == 'I' &&
			(l.pos+2 >= len(l.data) || isDelimiter(l.data[l.pos+2])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}

func isDelimiter(ch byte) bool {
	switch ch {
	case ' ', '\t', '\r', '\n', '\f', 0, '(', ')', '<', '>', '[', ']', '/', '%':
		return true
	}
	return false
}

// skipWhitespace skips whitespace characters.
func (l *ContentLexer) skipWhitespace() {
	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f' || ch == 0 {
			l.pos++
		} else {
			break
		}
	}
}

// skipComment skips to end of line.
func (l *ContentLexer) skipComment() {
	for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
		l.pos++
	}
}

// readString reads a string literal.
func (l *ContentLexer) readString() (*Token, error) {
	l.pos++ // Skip (
	start := l.pos
	parenCount := 1
	escaped := false

	for l.pos < len(l.data) && parenCount > 0 {
		ch := l.data[l.pos]
		if escaped {
			escaped = false
		} else {
			switch ch {
			case '\\':
				escaped = true
			case '(':
				parenCount++
			case ')':
				parenCount--
			}
		}
		l.pos++
	}

	if parenCount > 0 {
		return nil, fmt.Errorf("unterminated string")
	}

	// Process escape sequences
	text := l.data[start : l.pos-1]
	processed := processEscapes(text)

	return &Token{Type: TokenOperand, Value: processed}, nil
}

// readHexString reads a hexadecimal string.
func (l *ContentLexer) readHexString() (*Token, error) {
	l.pos++ // Skip <
	start := l.pos

	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		l.pos++
	}

	if l.pos >= len(l.data) {
		return nil, fmt.Errorf("unterminated hex string")
	}

	hex := l.data[start:l.pos]
	l.pos++ // Skip >

	// Convert hex to bytes - skip whitespace in hex
	cleanHex := make([]byte, 0, len(hex))
	for _, b := range hex {
		if (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F') {
			cleanHex = append(cleanHex, b)
		}
	}

	result := make([]byte, 0, len(cleanHex)/2)
	for i := 0; i < len(cleanHex); i += 2 {
		if i+1 < len(cleanHex) {
			val, _ := strconv.ParseUint(string(cleanHex[i:i+2]), 16, 8)
			result = append(result, byte(val))
		} else if i < len(cleanHex) {
			// Odd number of hex digits: final digit is the high nibble
			val, _ := strconv.ParseUint(string(cleanHex[i:i+1])+"0", 16, 8)
			result = append(result, byte(val))
		}
	}

	return &Token{Type: TokenOperand, Value: result}, nil
}

// readArray reads an array from the content stream.
func (l *ContentLexer) readArray() (*Token, error) {
	l.pos++ // Skip [
	array := []interface{}{}

	for l.pos < len(l.data) {
		l.skipWhitespace()

		if l.pos >= len(l.data) {
			break
		}

		ch := l.data[l.pos]

		if ch == ']' {
			l.pos++ // Skip ]
			break
		}

		switch {
		case ch == '(':
			token, err := l.readString()
			if err != nil {
				return nil, err
			}
			array = append(array, token.Value)

		case ch == '<':
			if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
				return nil, fmt.Errorf("unexpected dictionary in array")
			}
			token, err := l.readHexString()
			if err != nil {
				return nil, err
			}
			array = append(array, token.Value)

		case ch == '/':
			token, err := l.readName()
			if err != nil {
				return nil, err
			}
			array = append(array, token.Value)

		case ch == '+' || ch == '-' || ch == '.' || (ch >= '0' && ch <= '9'):
			token, err := l.readNumber()
			if err != nil {
				return nil, err
			}
			array = append(array, token.Value)

		default:
			return nil, fmt.Errorf("unexpected character in array: %c", ch)
		}
	}

	return &Token{Type: TokenOperand, Value: array}, nil
}

// readName reads a name object. The leading slash is stripped.
func (l *ContentLexer) readName() (*Token, error) {
	l.pos++ // Skip /
	start := l.pos

	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f' ||
			ch == '(' || ch == ')' || ch == '<' || ch == '>' || ch == '[' || ch == ']' ||
			ch == '/' || ch == '%' {
			break
		}
		l.pos++
	}

	name := string(l.data[start:l.pos])
	return &Token{Type: TokenOperand, Value: Name(name)}, nil
}

// Name distinguishes name operands (from /Name syntax) from decoded
// string operands in the operand buffer.
type Name string

// readNumber reads a numeric value.
func (l *ContentLexer) readNumber() (*Token, error) {
	start := l.pos
	hasDecimal := false

	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		if ch == '.' {
			if hasDecimal {
				break
			}
			hasDecimal = true
		} else if ch == '+' || ch == '-' {
			if l.pos != start {
				break
			}
		} else if ch < '0' || ch > '9' {
			break
		}
		l.pos++
	}

	numStr := string(l.data[start:l.pos])
	if hasDecimal {
		val, _ := strconv.ParseFloat(numStr, 64)
		return &Token{Type: TokenOperand, Value: val}, nil
	}
	val, _ := strconv.ParseInt(numStr, 10, 64)
	return &Token{Type: TokenOperand, Value: float64(val)}, nil
}

// readOperator reads an operator.
func (l *ContentLexer) readOperator() (*Token, error) {
	start := l.pos

	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f' || ch == 0 ||
			ch == '(' || ch == ')' || ch == '<' || ch == '>' || ch == '[' || ch == ']' ||
			ch == '/' || ch == '%' ||
			(ch >= '0' && ch <= '9') || ch == '+' || ch == '-' || ch == '.' {
			break
		}
		l.pos++
	}

	if l.pos == start {
		// Unparseable byte, step over it
		l.pos++
		return l.NextToken()
	}

	op := string(l.data[start:l.pos])
	return &Token{Type: TokenOperator, Value: op}, nil
}

// processEscapes processes escape sequences in a string.
func processEscapes(text []byte) []byte {
	var result []byte
	escaped := false

	for i := 0; i < len(text); i++ {
		if escaped {
			switch text[i] {
			case 'n':
				result = append(result, '\n')
			case 'r':
				result = append(result, '\r')
			case 't':
				result = append(result, '\t')
			case 'b':
				result = append(result, '\b')
			case 'f':
				result = append(result, '\f')
			case '\\', '(', ')':
				result = append(result, text[i])
			default:
				// Octal escape or literal
				if text[i] >= '0' && text[i] <= '7' {
					end := i + 3
					if end > len(text) {
						end = len(text)
					}
					octal := string(text[i:end])
					if val, err := strconv.ParseUint(octal, 8, 8); err == nil {
						result = append(result, byte(val))
						i += len(octal) - 1
					} else {
						result = append(result, text[i])
					}
				} else {
					result = append(result, text[i])
				}
			}
			escaped = false
		} else if text[i] == '\\' {
			escaped = true
		} else {
			result = append(result, text[i])
		}
	}

	return result
}
