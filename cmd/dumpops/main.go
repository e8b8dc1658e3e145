// Command dumpops prints the raw operator trace of each page of a PDF
// file. Debugging aid for unexpected analysis results.
package main

import (
	"fmt"
	"os"

	"github.com/inkspect/inkspect/pkg/content"
	"github.com/inkspect/inkspect/pkg/pdf"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s FILE\n", os.Args[0])
		os.Exit(2)
	}

	doc, err := pdf.Open(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer doc.Close()

	for _, page := range doc.GetPages() {
		fmt.Printf("=== Page %d (MediaBox %.1f x %.1f pt) ===\n",
			page.Number, page.MediaBox.Width(), page.MediaBox.Height())

		lexer := content.NewContentLexer(page.Content)
		var operands []string
		for {
			token, err := lexer.NextToken()
			if err != nil {
				break
			}
			if token.Type == content.TokenOperator {
				op := token.Value.(string)
				fmt.Printf("  %-24s %s\n", joinOperands(operands), op)
				operands = operands[:0]
				if op == "BI" {
					lexer.SkipInlineImage()
					fmt.Println("  (inline image skipped)")
				}
				continue
			}
			operands = append(operands, formatOperand(token.Value))
		}
	}
}

func joinOperands(operands []string) string {
	out := ""
	for i, o := range operands {
		if i > 0 {
			out += " "
		}
		out += o
	}
	return out
}

func formatOperand(v interface{}) string {
	switch val := v.(type) {
	case float64:
		return fmt.Sprintf("%g", val)
	case []byte:
		return fmt.Sprintf("(%s)", val)
	case content.Name:
		return "/" + string(val)
	case []interface{}:
		out := "["
		for i, item := range val {
			if i > 0 {
				out += " "
			}
			out += formatOperand(item)
		}
		return out + "]"
	default:
		return fmt.Sprintf("%v", val)
	}
}
