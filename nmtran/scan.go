package nmtran

import "strings"

// scanTok is one raw token of a $THETA/$OMEGA/$SIGMA record body. Token
// texts concatenate back to the scanned input exactly.
type scanTok struct {
	rule string
	text string
}

// scanParamContent tokenizes the body of a parameter record. Rules:
//
//	WS NEWLINE COMMENT LPAREN RPAREN COMMA NUMERIC NEG_INF POS_INF
//	FIX X KEYWORD WORD
func scanParamContent(content string) []scanTok {
	var toks []scanTok
	i := 0
	for i < len(content) {
		ch := content[i]
		switch {
		case ch == '\n':
			toks = append(toks, scanTok{"NEWLINE", "\n"})
			i++
		case ch == '\r':
			if i+1 < len(content) && content[i+1] == '\n' {
				toks = append(toks, scanTok{"NEWLINE", "\r\n"})
				i += 2
			} else {
				toks = append(toks, scanTok{"WS", "\r"})
				i++
			}
		case ch == ' ' || ch == '\t':
			j := i
			for j < len(content) && (content[j] == ' ' || content[j] == '\t') {
				j++
			}
			toks = append(toks, scanTok{"WS", content[i:j]})
			i = j
		case ch == ';':
			j := i
			for j < len(content) && content[j] != '\n' && content[j] != '\r' {
				j++
			}
			toks = append(toks, scanTok{"COMMENT", content[i:j]})
			i = j
		case ch == '(':
			toks = append(toks, scanTok{"LPAREN", "("})
			i++
		case ch == ')':
			toks = append(toks, scanTok{"RPAREN", ")"})
			i++
		case ch == ',':
			toks = append(toks, scanTok{"COMMA", ","})
			i++
		case ch == '+' || ch == '-':
			// Signed number or signed infinity token.
			j := i + 1
			if j < len(content) && isLetterByte(content[j]) {
				word, end := scanWord(content, j)
				if isInfWord(word) {
					rule := "POS_INF"
					if ch == '-' {
						rule = "NEG_INF"
					}
					toks = append(toks, scanTok{rule, content[i:end]})
					i = end
					continue
				}
				toks = append(toks, scanTok{"WORD", content[i:end]})
				i = end
				continue
			}
			num, end := scanNumeric(content, i)
			if end > i {
				toks = append(toks, scanTok{"NUMERIC", num})
				i = end
			} else {
				toks = append(toks, scanTok{"WORD", string(ch)})
				i++
			}
		case ch >= '0' && ch <= '9' || ch == '.':
			num, end := scanNumeric(content, i)
			toks = append(toks, scanTok{"NUMERIC", num})
			i = end
		case isLetterByte(ch):
			word, end := scanWord(content, i)
			toks = append(toks, scanTok{classifyWord(word), word})
			i = end
		default:
			toks = append(toks, scanTok{"WORD", string(ch)})
			i++
		}
	}
	return toks
}

func isLetterByte(ch byte) bool {
	return ch >= 'A' && ch <= 'Z' || ch >= 'a' && ch <= 'z' || ch == '_'
}

func scanWord(content string, i int) (string, int) {
	j := i
	for j < len(content) && (isLetterByte(content[j]) || content[j] >= '0' && content[j] <= '9') {
		j++
	}
	return content[i:j], j
}

// scanNumeric scans a FORTRAN numeric literal starting at i, returning the
// token and the index past it. Returns end == i when no number is present.
func scanNumeric(content string, i int) (string, int) {
	j := i
	if j < len(content) && (content[j] == '+' || content[j] == '-') {
		j++
	}
	digits := 0
	for j < len(content) && content[j] >= '0' && content[j] <= '9' {
		j++
		digits++
	}
	if j < len(content) && content[j] == '.' {
		// A dot followed by a letter is not a decimal point.
		if j+1 >= len(content) || !isLetterByte(content[j+1]) {
			j++
			for j < len(content) && content[j] >= '0' && content[j] <= '9' {
				j++
				digits++
			}
		}
	}
	if digits == 0 {
		return "", i
	}
	if j < len(content) {
		switch content[j] {
		case 'E', 'e', 'D', 'd':
			k := j + 1
			if k < len(content) && (content[k] == '+' || content[k] == '-') {
				k++
			}
			expDigits := 0
			for k < len(content) && content[k] >= '0' && content[k] <= '9' {
				k++
				expDigits++
			}
			if expDigits > 0 {
				j = k
			}
		}
	}
	return content[i:j], j
}

func isInfWord(word string) bool {
	up := strings.ToUpper(word)
	return up == "INF" || up == "INFINITY"
}

func classifyWord(word string) string {
	up := strings.ToUpper(word)
	switch up {
	case "FIX", "FIXED":
		return "FIX"
	case "INF", "INFINITY":
		return "POS_INF"
	case "BLOCK", "DIAGONAL", "DIAG", "SAME":
		return "KEYWORD"
	}
	if (word[0] == 'x' || word[0] == 'X') && len(word) > 1 && allDigits(word[1:]) {
		return "X"
	}
	return "WORD"
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
