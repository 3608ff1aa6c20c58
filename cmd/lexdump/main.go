// Command lexdump feeds its input through one of the two tokenizers (the
// HTML lexer by default, or the CSS tokenizer with the "css" argument) and
// prints the resulting token stream. It makes no tag/attribute policy decisions; it
// exists to exercise the iterator contract (§6) end to end, the way
// browser's cmd/browser dumps a parsed DOM tree for inspection.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/lukehoban/htmlsan/css"
	"github.com/lukehoban/htmlsan/htmltok"
)

func main() {
	mode := "html"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	input, err := readAll()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lexdump: %v\n", err)
		os.Exit(1)
	}

	switch mode {
	case "css":
		dumpCSS(input)
	case "html":
		dumpHTML(input)
	default:
		fmt.Fprintf(os.Stderr, "Usage: lexdump [css|html] < input\n")
		os.Exit(1)
	}
}

func readAll() (string, error) {
	r := bufio.NewReader(os.Stdin)
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return string(buf), nil
}

func dumpCSS(input string) {
	toks := css.Lex(input)
	it := toks.Iterator()
	i := 0
	for it.HasNext() {
		text, typ := it.Next()
		fmt.Printf("%3d: %-20s %q\n", i, typ, text)
		i++
	}
	fmt.Printf("normalized: %q\n", toks.NormalizedCSS)
}

func dumpHTML(input string) {
	l := htmltok.New(input)
	i := 0
	for l.HasNext() {
		tok := l.Next()
		fmt.Printf("%3d: %-12s %q\n", i, tok.Type, input[tok.Start:tok.End])
		i++
	}
}
