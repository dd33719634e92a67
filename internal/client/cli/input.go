package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
// In tests you can replace it with a stub to avoid touching the terminal.
var readPassword = term.ReadPassword

// GetSimpleText prints a prompt to w and reads a single line of input from reader.
// The trailing newline is trimmed. If EOF occurs after some input was read,
// the partial line is returned.
func GetSimpleText(reader *bufio.Reader, prompt string, w io.Writer) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// GetPassword prints a password prompt to w and reads a password
// from the user's terminal without echo. A newline is printed after
// the read to keep the UI tidy.
//
// The returned byte slice should be wiped by the caller when no longer needed.
func GetPassword(w io.Writer) ([]byte, error) {
	if _, err := fmt.Fprint(w, "Enter password: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

// GetAmount reads a decimal money amount like "12.50" and returns cents.
func GetAmount(reader *bufio.Reader, prompt string, w io.Writer) (int64, error) {
	text, err := GetSimpleText(reader, prompt, w)
	if err != nil {
		return 0, err
	}
	return ParseAmount(text)
}

// ParseAmount converts "12.50" or "1250" style input to integer cents.
func ParseAmount(text string) (int64, error) {
	text = strings.TrimSpace(text)
	whole, frac, found := strings.Cut(text, ".")
	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", text)
	}
	if !found {
		return units * 100, nil
	}
	if len(frac) == 1 {
		frac += "0"
	}
	if len(frac) != 2 {
		return 0, fmt.Errorf("invalid amount %q", text)
	}
	cents, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", text)
	}
	if units < 0 {
		return units*100 - cents, nil
	}
	return units*100 + cents, nil
}

// GetDate reads a date in YYYY-MM-DD form; an empty line means defaultDate.
func GetDate(reader *bufio.Reader, prompt string, defaultDate time.Time, w io.Writer) (time.Time, error) {
	text, err := GetSimpleText(reader, prompt+" (YYYY-MM-DD, empty for "+defaultDate.Format(time.DateOnly)+")", w)
	if err != nil {
		return time.Time{}, err
	}
	if text == "" {
		return defaultDate, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, text, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", text)
	}
	return d, nil
}

// FormatAmount renders cents as a decimal string.
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
