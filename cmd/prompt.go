package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/JakeFAU/pagewatch/internal/config"
	"github.com/JakeFAU/pagewatch/internal/recorder/xlsx"
)

var (
	promptStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "244"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	labelStyle   = lipgloss.NewStyle().Bold(true).Width(16)
)

// prompter reads answers line by line from an interactive terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewReader(in), out: out}
}

func (p *prompter) ask(question, hint string) (string, error) {
	fmt.Fprint(p.out, promptStyle.Render(question))
	if hint != "" {
		fmt.Fprint(p.out, " "+hintStyle.Render(hint))
	}
	fmt.Fprint(p.out, ": ")
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// URL asks until the answer is a valid web address.
func (p *prompter) URL() (string, error) {
	for {
		answer, err := p.ask("URL of the website to watch", "(http/https optional)")
		if err != nil {
			return "", err
		}
		u, err := config.NormalizeURL(answer)
		if err == nil {
			return u, nil
		}
		fmt.Fprintln(p.out, errorStyle.Render(err.Error()))
	}
}

// Output asks for the workbook name and appends the .xlsx extension.
func (p *prompter) Output() (string, error) {
	for {
		answer, err := p.ask("Excel file name to save changes to", "(.xlsx is added automatically)")
		if err != nil {
			return "", err
		}
		if answer != "" {
			return xlsx.WithExtension(answer), nil
		}
		fmt.Fprintln(p.out, errorStyle.Render("file name must not be empty"))
	}
}

func renderField(label, value string) string {
	return labelStyle.Render(label) + value
}
