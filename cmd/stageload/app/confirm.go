package app

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// confirm asks a yes/no question on the terminal. Without a terminal on stdin
// nobody can answer, so the answer is no and the caller must pass --yes.
func confirm(out io.Writer, in io.Reader, prompt string) bool {
	if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(out, "%s (refusing without a terminal; pass --yes)\n", prompt)
		return false
	}
	return readAnswer(out, in, prompt)
}

func readAnswer(out io.Writer, in io.Reader, prompt string) bool {
	fmt.Fprintf(out, "%s (yes/no): ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "yes", "y":
		return true
	default:
		return false
	}
}
