package shufmask

import (
	"bufio"
	"fmt"
	"strings"
)

type srcLine struct {
	no   int
	text string
}

// preprocess applies the small subset of the Plan 9 asm preprocessor that
// shuffle scanning needs:
//   - strips // and /* */ comments
//   - ignores #include and #undef
//   - honors #ifdef/#ifndef/#else/#endif against earlier #defines
//   - records object-like #define NAME <body> for $NAME immediates
//
// Function-like macro bodies are skipped, their parameters are unknown at
// definition time. Statements separated by ';' become separate lines that
// keep their source line number.
func preprocess(src string) ([]srcLine, map[string]string, error) {
	defines := map[string]string{}

	type ifState struct {
		outerActive bool
		cond        bool
		inElse      bool
	}
	var (
		out            []srcLine
		ifStack        []ifState
		active         = true
		inBlockComment bool
		inDefine       bool
	)

	sc := bufio.NewScanner(strings.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := sc.Text()
		for {
			if inBlockComment {
				end := strings.Index(line, "*/")
				if end < 0 {
					line = ""
					break
				}
				line = line[end+2:]
				inBlockComment = false
				continue
			}
			start := strings.Index(line, "/*")
			if start < 0 {
				break
			}
			if end := strings.Index(line[start+2:], "*/"); end >= 0 {
				line = line[:start] + line[start+2+end+2:]
				continue
			}
			line = line[:start]
			inBlockComment = true
			break
		}
		if idx := indexUnquoted(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		trim := strings.TrimSpace(line)

		if inDefine {
			inDefine = strings.HasSuffix(trim, "\\")
			continue
		}
		if trim == "" {
			continue
		}

		if strings.HasPrefix(trim, "#") {
			directive, rest, _ := strings.Cut(strings.TrimSpace(trim[1:]), " ")
			rest = strings.TrimSpace(rest)
			switch directive {
			case "include", "undef":
			case "ifdef", "ifndef":
				if rest == "" {
					return nil, nil, fmt.Errorf("line %d: invalid #%s: %q", lineno, directive, line)
				}
				_, defined := defines[rest]
				cond := defined == (directive == "ifdef")
				ifStack = append(ifStack, ifState{outerActive: active, cond: cond})
				active = active && cond
			case "else":
				if len(ifStack) == 0 {
					return nil, nil, fmt.Errorf("line %d: stray #else", lineno)
				}
				top := &ifStack[len(ifStack)-1]
				if top.inElse {
					return nil, nil, fmt.Errorf("line %d: duplicate #else", lineno)
				}
				top.inElse = true
				active = top.outerActive && !top.cond
			case "endif":
				if len(ifStack) == 0 {
					return nil, nil, fmt.Errorf("line %d: stray #endif", lineno)
				}
				active = ifStack[len(ifStack)-1].outerActive
				ifStack = ifStack[:len(ifStack)-1]
			case "define":
				inDefine = strings.HasSuffix(rest, "\\")
				if !active || inDefine {
					continue
				}
				name, body, err := parseObjectDefine(rest)
				if err != nil {
					return nil, nil, fmt.Errorf("line %d: %v", lineno, err)
				}
				if name != "" {
					defines[name] = body
				}
			default:
				return nil, nil, fmt.Errorf("line %d: unsupported directive %q", lineno, "#"+directive)
			}
			continue
		}
		if !active {
			continue
		}
		for trim != "" {
			stmt := trim
			if i := indexUnquoted(trim, ";"); i >= 0 {
				stmt, trim = trim[:i], trim[i+1:]
			} else {
				trim = ""
			}
			if stmt = strings.TrimSpace(stmt); stmt != "" {
				out = append(out, srcLine{no: lineno, text: stmt})
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	if len(ifStack) != 0 {
		return nil, nil, fmt.Errorf("unterminated #if block")
	}
	return out, defines, nil
}

// indexUnquoted is strings.Index that ignores matches inside "..." string
// literals such as DATA $"text" values.
func indexUnquoted(s, sub string) int {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case inQuote && c == '\\':
			i++
		case c == '"':
			inQuote = !inQuote
		case !inQuote && strings.HasPrefix(s[i:], sub):
			return i
		}
	}
	return -1
}

// parseObjectDefine splits "NAME body". Function-like macros return an empty
// name.
func parseObjectDefine(rest string) (name, body string, err error) {
	end := 0
	for end < len(rest) && isIdentByte(rest[end], end == 0) {
		end++
	}
	if end == 0 {
		return "", "", fmt.Errorf("invalid #define %q", rest)
	}
	if end < len(rest) && rest[end] == '(' {
		return "", "", nil
	}
	return rest[:end], strings.TrimSpace(rest[end:]), nil
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}
